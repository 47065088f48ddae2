// Package ledger implements the user-scoped expense operations and the
// aggregates computed over them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"expense-guard/internal/apperr"
	"expense-guard/internal/log"
	"expense-guard/internal/models"
	"expense-guard/internal/storage"

	"github.com/shopspring/decimal"
)

// MaxDescription is the longest description accepted, in characters.
const MaxDescription = 255

// maxAmount is the exclusive upper bound of an amount, the range of a
// DECIMAL(12,2) column.
var maxAmount = decimal.New(1, 10)

// Store is the persistence the ledger needs.
type Store interface {
	CreateExpense(ctx context.Context, e *models.Expense) (int64, error)
	GetExpense(ctx context.Context, id int64) (*models.Expense, error)
	ExpenseOwner(ctx context.Context, id int64) (int64, error)
	ListExpenses(ctx context.Context, userID int64) ([]models.Expense, error)
	UpdateExpense(ctx context.Context, e *models.Expense) (bool, error)
	DeleteExpense(ctx context.Context, userID, id int64) (bool, error)
	DeleteExpensesBetween(ctx context.Context, userID int64, from, to models.Date) (int64, error)
}

// Service runs ledger operations for authenticated users.
type Service struct {
	store   Store
	logger  *log.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewService(store Store, logger *log.Logger, timeout time.Duration, now func() time.Time) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   store,
		logger:  logger.WithComponent(log.ComponentLedger),
		timeout: timeout,
		now:     now,
	}
}

// Input is the user-editable part of an expense.
type Input struct {
	Amount      decimal.Decimal
	Category    string
	Description string
}

func (in Input) validate() (decimal.Decimal, models.Category, string, error) {
	amount := in.Amount
	if amount.IsNegative() {
		return amount, "", "", apperr.Validation("amount must not be negative")
	}
	if !amount.Equal(amount.Round(2)) {
		return amount, "", "", apperr.Validation("amount must have at most 2 decimal places")
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return amount, "", "", apperr.Validation("amount is too large")
	}

	category, err := models.ParseCategory(in.Category)
	if err != nil {
		return amount, "", "", apperr.Validation(err.Error())
	}

	desc := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(desc) > MaxDescription {
		return amount, "", "", apperr.Validation(fmt.Sprintf("description must be at most %d characters", MaxDescription))
	}
	return amount.Round(2), category, desc, nil
}

// Today returns the service's current UTC date.
func (s *Service) Today() models.Date {
	return models.DateOf(s.now())
}

// AddExpense records a new expense dated today.
func (s *Service) AddExpense(ctx context.Context, userID int64, in Input) (*models.Expense, error) {
	amount, category, desc, err := in.validate()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	e := &models.Expense{
		UserID:      userID,
		Amount:      amount,
		Category:    category,
		Description: desc,
		Date:        s.Today(),
	}
	id, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		s.logger.Err(ctx, log.OpCreate, err, log.FieldUserID, userID)
		return nil, apperr.Unavailable("create expense", err)
	}
	e.ID = id

	s.logger.Ctx(ctx).DebugContext(ctx, "expense added",
		log.FieldUserID, userID,
		log.FieldExpenseID, id,
		log.FieldAmount, amount.StringFixed(2),
		log.FieldCategory, category,
	)
	return e, nil
}

// ListExpenses returns the user's expenses, newest first.
func (s *Service) ListExpenses(ctx context.Context, userID int64) ([]models.Expense, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		s.logger.Err(ctx, log.OpList, err, log.FieldUserID, userID)
		return nil, apperr.Unavailable("list expenses", err)
	}
	return expenses, nil
}

// TotalSpend is the exact sum of every expense of the user.
func (s *Service) TotalSpend(ctx context.Context, userID int64) (decimal.Decimal, error) {
	expenses, err := s.ListExpenses(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return Sum(expenses), nil
}

// GetExpense returns one of the user's expenses.
func (s *Service) GetExpense(ctx context.Context, userID, expenseID int64) (*models.Expense, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	e, err := s.store.GetExpense(ctx, expenseID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("expense %d: %w", expenseID, apperr.ErrNotFound)
	case err != nil:
		s.logger.Err(ctx, log.OpRead, err, log.FieldExpenseID, expenseID)
		return nil, apperr.Unavailable("get expense", err)
	case e.UserID != userID:
		return nil, fmt.Errorf("expense %d: %w", expenseID, apperr.ErrForbidden)
	}
	return e, nil
}

// UpdateExpense overwrites amount, category and description. The date and
// owner never change.
func (s *Service) UpdateExpense(ctx context.Context, userID, expenseID int64, in Input) (*models.Expense, error) {
	amount, category, desc, err := in.validate()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.store.UpdateExpense(ctx, &models.Expense{
		ID:          expenseID,
		UserID:      userID,
		Amount:      amount,
		Category:    category,
		Description: desc,
	})
	if err != nil {
		s.logger.Err(ctx, log.OpUpdate, err, log.FieldExpenseID, expenseID)
		return nil, apperr.Unavailable("update expense", err)
	}
	if !ok {
		if err := s.checkOwner(ctx, userID, expenseID); err != nil {
			return nil, err
		}
	}

	e, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("expense %d: %w", expenseID, apperr.ErrNotFound)
		}
		return nil, apperr.Unavailable("reload expense", err)
	}
	return e, nil
}

// DeleteExpense removes one of the user's expenses.
func (s *Service) DeleteExpense(ctx context.Context, userID, expenseID int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.store.DeleteExpense(ctx, userID, expenseID)
	if err != nil {
		s.logger.Err(ctx, log.OpDelete, err, log.FieldExpenseID, expenseID)
		return apperr.Unavailable("delete expense", err)
	}
	if ok {
		return nil
	}
	if err := s.checkOwner(ctx, userID, expenseID); err != nil {
		return err
	}
	// Owned but already gone between the two statements.
	return fmt.Errorf("expense %d: %w", expenseID, apperr.ErrNotFound)
}

// checkOwner classifies a statement that matched no row.
func (s *Service) checkOwner(ctx context.Context, userID, expenseID int64) error {
	owner, err := s.store.ExpenseOwner(ctx, expenseID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("expense %d: %w", expenseID, apperr.ErrNotFound)
	case err != nil:
		return apperr.Unavailable("look up expense owner", err)
	case owner != userID:
		return fmt.Errorf("expense %d: %w", expenseID, apperr.ErrForbidden)
	}
	return nil
}

// DeleteCurrentMonthExpenses removes the user's expenses dated in the
// current UTC month and returns how many were removed.
func (s *Service) DeleteCurrentMonthExpenses(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.Today().MonthStart()
	end := models.Date{Time: start.AddDate(0, 1, 0)}

	n, err := s.store.DeleteExpensesBetween(ctx, userID, start, end)
	if err != nil {
		s.logger.Err(ctx, log.OpPurgeMonth, err, log.FieldUserID, userID)
		return 0, apperr.Unavailable("delete current month", err)
	}

	s.logger.Ctx(ctx).InfoContext(ctx, "current month cleared", log.FieldUserID, userID, log.FieldCount, n)
	return n, nil
}

// Overview is every aggregate over a user's ledger.
type Overview struct {
	Summary    Summary         `json:"summary"`
	Categories []CategoryTotal `json:"categories"`
	Monthly    []MonthTotal    `json:"monthly"`
	Daily      []DayTotal      `json:"daily"`
}

// Overview recomputes the aggregates from the user's current expenses.
func (s *Service) Overview(ctx context.Context, userID int64) (Overview, error) {
	expenses, err := s.ListExpenses(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	return Compute(expenses, s.Today()), nil
}

// Compute builds an Overview of expenses as of today.
func Compute(expenses []models.Expense, today models.Date) Overview {
	return Overview{
		Summary:    Summarize(expenses, today),
		Categories: ByCategory(expenses),
		Monthly:    MonthlyTrend(expenses),
		Daily:      DailyTotals(expenses),
	}
}
