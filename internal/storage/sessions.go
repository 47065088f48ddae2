package storage

import (
	"context"
	"time"

	"expense-guard/internal/models"

	"github.com/shopspring/decimal"
)

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(ctx context.Context, s *models.Session) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, budget, expires_at, last_activity) VALUES (?, ?, ?, ?, ?)",
		s.Token, s.UserID, s.Budget.StringFixed(2), utc(s.ExpiresAt), utc(s.LastActivity),
	)
	return err
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User    *models.User
	Session *models.Session
}

// ValidateSession checks that a session token exists and has not expired at
// now, and returns the session with its user.
func (db *DB) ValidateSession(ctx context.Context, token string, now time.Time) (*SessionInfo, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT u.user_id, u.email, u.created_at, s.budget, s.expires_at, s.last_activity
		FROM sessions s
		JOIN users u ON s.user_id = u.user_id
		WHERE s.token = ? AND s.expires_at > ?
	`, token, utc(now))

	var u models.User
	s := models.Session{Token: token}
	if err := row.Scan(&u.ID, &u.Email, &u.CreatedAt, &s.Budget, &s.ExpiresAt, &s.LastActivity); err != nil {
		return nil, notFound(err)
	}
	s.UserID = u.ID
	return &SessionInfo{User: &u, Session: &s}, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(ctx context.Context, token string, newExpiresAt, now time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		utc(now), utc(newExpiresAt), token,
	)
	return err
}

// SetSessionBudget stores the budget threshold of a session.
func (db *DB) SetSessionBudget(ctx context.Context, token string, budget decimal.Decimal) error {
	ok, err := affected(db.conn.ExecContext(ctx,
		"UPDATE sessions SET budget = ? WHERE token = ?",
		budget.StringFixed(2), token,
	))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all sessions expired at now.
func (db *DB) CleanExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", utc(now))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
