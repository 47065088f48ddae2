package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"expense-guard/internal/apperr"
	"expense-guard/internal/auth"
	"expense-guard/internal/ledger"
	"expense-guard/internal/log"
	"expense-guard/internal/models"
	"expense-guard/internal/storage"

	"github.com/shopspring/decimal"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// SessionContextKey is the context key for the authenticated session.
	SessionContextKey contextKey = "session"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// DefaultSessionDuration is how long sessions last (30 days).
	DefaultSessionDuration = 30 * 24 * time.Hour

	maxBodyBytes = 1 << 20
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db     *storage.DB
	auth   *auth.Service
	ledger *ledger.Service
	logger *log.Logger

	secureCookie    bool
	sessionDuration time.Duration
	defaultBudget   decimal.Decimal
	now             func() time.Time
}

// Options configures Handlers.
type Options struct {
	SecureCookie    bool
	SessionDuration time.Duration
	DefaultBudget   decimal.Decimal
	Now             func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *storage.DB, authSvc *auth.Service, ledgerSvc *ledger.Service, logger *log.Logger, opts Options) *Handlers {
	h := &Handlers{
		db:              db,
		auth:            authSvc,
		ledger:          ledgerSvc,
		logger:          logger.WithComponent(log.ComponentHTTP),
		secureCookie:    opts.SecureCookie,
		sessionDuration: opts.SessionDuration,
		defaultBudget:   opts.DefaultBudget,
		now:             opts.Now,
	}
	if h.sessionDuration <= 0 {
		h.sessionDuration = DefaultSessionDuration
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// GetSessionFromContext retrieves the authenticated session from request context.
func GetSessionFromContext(r *http.Request) *storage.SessionInfo {
	if info, ok := r.Context().Value(SessionContextKey).(*storage.SessionInfo); ok {
		return info
	}
	return nil
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if info := GetSessionFromContext(r); info != nil {
		return info.User
	}
	return nil
}

// AuthMiddleware wraps handlers to require authentication.
// It also implements rolling sessions: if a session is past the halfway point
// of its lifetime, it automatically renews the session.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			h.writeError(w, r, apperr.ErrUnauthenticated)
			return
		}

		now := h.now()
		info, err := h.db.ValidateSession(r.Context(), cookie.Value, now)
		if errors.Is(err, storage.ErrNotFound) {
			// Invalid or expired session, clear the cookie
			h.clearSessionCookie(w)
			h.writeError(w, r, apperr.ErrUnauthenticated)
			return
		}
		if err != nil {
			h.writeError(w, r, apperr.Unavailable("validate session", err))
			return
		}

		// Rolling session: renew if past halfway point
		if info.Session.ExpiresAt.Sub(now) < h.sessionDuration/2 {
			newExpiresAt := now.Add(h.sessionDuration)
			if err := h.db.RenewSession(r.Context(), cookie.Value, newExpiresAt, now); err == nil {
				info.Session.ExpiresAt = newExpiresAt
				info.Session.LastActivity = now
				h.setSessionCookie(w, cookie.Value)
			} else {
				// If renewal fails, just continue with the current session
				h.logger.Err(r.Context(), "renew_session", err)
			}
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Health pings the store.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.writeError(w, r, apperr.Unavailable("ping", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type challengeRequest struct {
	Email string `json:"email"`
}

// RequestChallenge mails a one-time code to the submitted address.
func (h *Handlers) RequestChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.auth.RequestChallenge(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"msg": "OTP sent to " + strings.TrimSpace(req.Email)})
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type loginResponse struct {
	User   *models.User    `json:"user"`
	Budget decimal.Decimal `json:"budget"`
}

// Verify checks a one-time code and starts a session.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.auth.VerifyChallenge(r.Context(), req.Email, req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	now := h.now()
	session := &models.Session{
		Token:        token,
		UserID:       user.ID,
		Budget:       h.defaultBudget,
		ExpiresAt:    now.Add(h.sessionDuration),
		LastActivity: now,
	}
	if err := h.db.CreateSession(r.Context(), session); err != nil {
		h.writeError(w, r, apperr.Unavailable("create session", err))
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, loginResponse{User: user, Budget: session.Budget})
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.db.DeleteSession(r.Context(), cookie.Value); err != nil {
			h.logger.Err(r.Context(), "delete_session", err)
		}
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the logged-in user.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	info := GetSessionFromContext(r)
	writeJSON(w, http.StatusOK, loginResponse{User: info.User, Budget: info.Session.Budget})
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusOf maps an error kind to its HTTP status.
func statusOf(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrInvalidOrExpired, apperr.ErrUnauthenticated:
		return http.StatusUnauthorized
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		h.logger.Err(r.Context(), r.Method+" "+r.URL.Path, err)
		msg = "internal server error"
	case http.StatusServiceUnavailable:
		h.logger.Err(r.Context(), r.Method+" "+r.URL.Path, err)
		msg = "service temporarily unavailable"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid request body: " + err.Error())
	}
	return nil
}
