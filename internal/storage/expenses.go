package storage

import (
	"context"
	"database/sql"

	"expense-guard/internal/models"
)

const expenseColumns = "expense_id, user_id, amount, category, description, expense_date"

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (models.Expense, error) {
	var e models.Expense
	err := s.Scan(&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Description, &e.Date)
	return e, err
}

// CreateExpense inserts a new expense and returns its id.
func (db *DB) CreateExpense(ctx context.Context, e *models.Expense) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO expenses (user_id, amount, category, description, expense_date) VALUES (?, ?, ?, ?, ?)",
		e.UserID, e.Amount.StringFixed(2), string(e.Category), e.Description, e.Date,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetExpense retrieves a single expense by ID.
func (db *DB) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE expense_id = ?",
		id,
	)

	e, err := scanExpense(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// ExpenseOwner returns the user id owning expense id.
func (db *DB) ExpenseOwner(ctx context.Context, id int64) (int64, error) {
	var owner int64
	err := db.conn.QueryRowContext(ctx, "SELECT user_id FROM expenses WHERE expense_id = ?", id).Scan(&owner)
	if err != nil {
		return 0, notFound(err)
	}
	return owner, nil
}

// ListExpenses retrieves every expense of a user, newest date first.
func (db *DB) ListExpenses(ctx context.Context, userID int64) ([]models.Expense, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id = ? ORDER BY expense_date DESC, expense_id DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}

	return expenses, rows.Err()
}

// UpdateExpense overwrites amount, category and description of e.ID, only
// when it belongs to e.UserID. It reports whether a row matched.
func (db *DB) UpdateExpense(ctx context.Context, e *models.Expense) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		"UPDATE expenses SET amount = ?, category = ?, description = ? WHERE expense_id = ? AND user_id = ?",
		e.Amount.StringFixed(2), string(e.Category), e.Description, e.ID, e.UserID,
	)
	return affected(result, err)
}

// DeleteExpense removes expense id when it belongs to userID. It reports
// whether a row was removed.
func (db *DB) DeleteExpense(ctx context.Context, userID, id int64) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		"DELETE FROM expenses WHERE expense_id = ? AND user_id = ?",
		id, userID,
	)
	return affected(result, err)
}

// DeleteExpensesBetween removes the user's expenses dated in [from, to).
func (db *DB) DeleteExpensesBetween(ctx context.Context, userID int64, from, to models.Date) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		"DELETE FROM expenses WHERE user_id = ? AND expense_date >= ? AND expense_date < ?",
		userID, from, to,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func affected(result sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
