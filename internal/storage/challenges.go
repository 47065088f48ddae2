package storage

import (
	"context"
	"fmt"
	"time"

	"expense-guard/internal/models"
)

// ReplaceChallenge deletes every challenge for email and inserts a new one,
// in a single transaction. It returns the new challenge id.
func (db *DB) ReplaceChallenge(ctx context.Context, email, codeHash string, createdAt time.Time) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM otp_verification WHERE email = ?", email); err != nil {
		return 0, fmt.Errorf("delete previous challenges: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO otp_verification (email, code_hash, created_at) VALUES (?, ?, ?)",
		email, codeHash, utc(createdAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert challenge: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// RecentChallenges returns the challenges for email created at or after
// since, newest first.
func (db *DB) RecentChallenges(ctx context.Context, email string, since time.Time) ([]models.OtpChallenge, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, email, code_hash, created_at
		FROM otp_verification
		WHERE email = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC
	`, email, utc(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var challenges []models.OtpChallenge
	for rows.Next() {
		var c models.OtpChallenge
		if err := rows.Scan(&c.ID, &c.Email, &c.CodeHash, &c.CreatedAt); err != nil {
			return nil, err
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

// DeleteChallenge removes a challenge by id. It reports whether a row was
// removed, so concurrent consumers of the same code see exactly one winner.
func (db *DB) DeleteChallenge(ctx context.Context, id int64) (bool, error) {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM otp_verification WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PurgeChallenges removes challenges created before cutoff.
func (db *DB) PurgeChallenges(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM otp_verification WHERE created_at < ?", utc(cutoff))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ChallengeCount returns how many challenge rows exist for email.
func (db *DB) ChallengeCount(ctx context.Context, email string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM otp_verification WHERE email = ?", email).Scan(&count)
	return count, err
}
