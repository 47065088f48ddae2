package storage

import (
	"context"
	"fmt"
	"time"

	"expense-guard/internal/models"
)

// ResolveUser returns the user for email, creating it first if needed. The
// insert relies on the unique email key, so concurrent first logins for the
// same address end up with one row.
func (db *DB) ResolveUser(ctx context.Context, email string, now time.Time) (*models.User, error) {
	if _, err := db.conn.ExecContext(ctx, db.dialect.upsertUser, email, utc(now)); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return db.GetUserByEmail(ctx, email)
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT user_id, email, created_at FROM users WHERE user_id = ?",
		id,
	)

	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT user_id, email, created_at FROM users WHERE email = ?",
		email,
	)

	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}
