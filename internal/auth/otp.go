// Package auth issues and verifies emailed one-time codes.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"expense-guard/internal/apperr"
	"expense-guard/internal/log"
	mailer "expense-guard/internal/mail"
	"expense-guard/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// ChallengeTTL is how long an issued code stays valid.
const ChallengeTTL = 5 * time.Minute

const codeDigits = 6

// Store is the persistence the OTP flow needs.
type Store interface {
	ReplaceChallenge(ctx context.Context, email, codeHash string, createdAt time.Time) (int64, error)
	RecentChallenges(ctx context.Context, email string, since time.Time) ([]models.OtpChallenge, error)
	DeleteChallenge(ctx context.Context, id int64) (bool, error)
	ResolveUser(ctx context.Context, email string, now time.Time) (*models.User, error)
}

// Service runs the email one-time-code login flow.
type Service struct {
	store   Store
	sender  mailer.Sender
	logger  *log.Logger
	appName string

	hashCost    int
	dbTimeout   time.Duration
	mailTimeout time.Duration

	now func() time.Time
}

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	AppName     string
	HashCost    int
	DBTimeout   time.Duration
	MailTimeout time.Duration
	Now         func() time.Time
}

func NewService(store Store, sender mailer.Sender, logger *log.Logger, opts Options) *Service {
	s := &Service{
		store:       store,
		sender:      sender,
		logger:      logger.WithComponent(log.ComponentAuth),
		appName:     opts.AppName,
		hashCost:    opts.HashCost,
		dbTimeout:   opts.DBTimeout,
		mailTimeout: opts.MailTimeout,
		now:         opts.Now,
	}
	if s.appName == "" {
		s.appName = "Smart Expense Guard"
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	if s.dbTimeout == 0 {
		s.dbTimeout = 5 * time.Second
	}
	if s.mailTimeout == 0 {
		s.mailTimeout = 10 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ValidateEmail checks that email is a single bare address.
func ValidateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return apperr.Validation(fmt.Sprintf("invalid email address %q", email))
	}
	return nil
}

// RequestChallenge issues a fresh code for email, replacing any earlier
// one, and mails it. If delivery fails the stored challenge remains valid.
func (s *Service) RequestChallenge(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}

	code, err := randomCode(codeDigits)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	dbCtx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()
	if _, err := s.store.ReplaceChallenge(dbCtx, email, string(hash), s.now()); err != nil {
		s.logger.Err(ctx, log.OpRequestChallenge, err, log.FieldEmail, email)
		return apperr.Unavailable("store challenge", err)
	}

	mailCtx, cancelMail := context.WithTimeout(ctx, s.mailTimeout)
	defer cancelMail()
	err = s.sender.Send(mailCtx, mailer.Message{
		To:      email,
		Subject: s.appName + " - OTP Verification",
		Body: fmt.Sprintf("Your OTP for %s is: %s\n\nThe code expires in %d minutes.",
			s.appName, code, int(ChallengeTTL/time.Minute)),
	})
	if err != nil {
		s.logger.Err(ctx, log.OpRequestChallenge, err, log.FieldEmail, email)
		return apperr.Unavailable("send code", err)
	}

	s.logger.Ctx(ctx).InfoContext(ctx, "otp issued", log.FieldEmail, email)
	return nil
}

// VerifyChallenge consumes the newest live challenge for email matching
// code and returns the user, created on first login. A consumed code
// never verifies again.
func (s *Service) VerifyChallenge(ctx context.Context, email, code string) (*models.User, error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, apperr.Validation("email and code are required")
	}
	if !isCode(code) {
		return nil, apperr.ErrInvalidOrExpired
	}

	ctx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()

	now := s.now()
	challenges, err := s.store.RecentChallenges(ctx, email, now.Add(-ChallengeTTL))
	if err != nil {
		return nil, apperr.Unavailable("load challenges", err)
	}

	var match *models.OtpChallenge
	for i := range challenges {
		if bcrypt.CompareHashAndPassword([]byte(challenges[i].CodeHash), []byte(code)) == nil {
			match = &challenges[i]
			break
		}
	}
	if match == nil {
		return nil, apperr.ErrInvalidOrExpired
	}

	deleted, err := s.store.DeleteChallenge(ctx, match.ID)
	if err != nil {
		return nil, apperr.Unavailable("consume challenge", err)
	}
	if !deleted {
		// Another verification consumed it first.
		return nil, apperr.ErrInvalidOrExpired
	}

	user, err := s.store.ResolveUser(ctx, email, now)
	if err != nil {
		return nil, apperr.Unavailable("resolve user", err)
	}

	s.logger.Ctx(ctx).InfoContext(ctx, "otp verified", log.FieldEmail, email, log.FieldUserID, user.ID)
	return user, nil
}

func isCode(s string) bool {
	if len(s) != codeDigits {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// randomCode returns a uniformly random code of n digits with no leading zero.
func randomCode(n int) (string, error) {
	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n-1)), nil)
	span := new(big.Int).Sub(new(big.Int).Mul(lo, big.NewInt(10)), lo)
	v, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return v.Add(v, lo).String(), nil
}

// IsInvalidOrExpired reports whether err rejects a code.
func IsInvalidOrExpired(err error) bool {
	return errors.Is(err, apperr.ErrInvalidOrExpired)
}
