package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense represents a financial expense record owned by one user.
type Expense struct {
	ID          int64           `json:"expense_id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category"`
	Description string          `json:"description"`
	Date        Date            `json:"expense_date"`
}

// User represents an account identified by a verified email address.
type User struct {
	ID        int64     `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// OtpChallenge is an issued one-time code awaiting verification.
// Only the bcrypt hash of the code is stored.
type OtpChallenge struct {
	ID        int64
	Email     string
	CodeHash  string
	CreatedAt time.Time
}

// Session represents a logged-in browser session.
type Session struct {
	Token        string          `json:"-"`
	UserID       int64           `json:"user_id"`
	Budget       decimal.Decimal `json:"budget"`
	ExpiresAt    time.Time       `json:"expires_at"`
	LastActivity time.Time       `json:"last_activity"`
}
