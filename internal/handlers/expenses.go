package handlers

import (
	"net/http"
	"strconv"

	"expense-guard/internal/apperr"
	"expense-guard/internal/ledger"
	"expense-guard/internal/models"

	"github.com/shopspring/decimal"
)

type expenseRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Category    string           `json:"category"`
	Description string           `json:"description"`
}

func (req expenseRequest) input() (ledger.Input, error) {
	if req.Amount == nil {
		return ledger.Input{}, apperr.Validation("amount is required")
	}
	return ledger.Input{Amount: *req.Amount, Category: req.Category, Description: req.Description}, nil
}

// ListViewModel is the filtered expense view.
type ListViewModel struct {
	Expenses []models.Expense `json:"expenses"`
	Total    decimal.Decimal  `json:"total"`
	Count    int              `json:"count"`
}

// ListExpenses returns the filtered list of expenses with its total.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.filteredExpenses(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListViewModel{
		Expenses: expenses,
		Total:    ledger.Sum(expenses),
		Count:    len(expenses),
	})
}

// CreateExpense handles the creation of a new expense.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	e, err := h.ledger.AddExpense(r.Context(), GetUserFromContext(r).ID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// GetExpense returns a single expense.
func (h *Handlers) GetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.ledger.GetExpense(r.Context(), GetUserFromContext(r).ID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// UpdateExpense handles the update of an existing expense.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	e, err := h.ledger.UpdateExpense(r.Context(), GetUserFromContext(r).ID, id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteExpense removes one expense.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ledger.DeleteExpense(r.Context(), GetUserFromContext(r).ID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type purgeResponse struct {
	Deleted int64  `json:"deleted"`
	Msg     string `json:"msg"`
}

// DeleteCurrentMonth removes every expense of the current month.
func (h *Handlers) DeleteCurrentMonth(w http.ResponseWriter, r *http.Request) {
	n, err := h.ledger.DeleteCurrentMonthExpenses(r.Context(), GetUserFromContext(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	msg := "No expenses found for this month."
	if n > 0 {
		msg = "Deleted " + strconv.FormatInt(n, 10) + " expenses for this month."
	}
	writeJSON(w, http.StatusOK, purgeResponse{Deleted: n, Msg: msg})
}

func (h *Handlers) filteredExpenses(r *http.Request) ([]models.Expense, error) {
	c, err := parseCriteria(r)
	if err != nil {
		return nil, err
	}
	expenses, err := h.ledger.ListExpenses(r.Context(), GetUserFromContext(r).ID)
	if err != nil {
		return nil, err
	}
	return ledger.Filter(expenses, c), nil
}

func parseCriteria(r *http.Request) (ledger.Criteria, error) {
	q := r.URL.Query()
	var c ledger.Criteria

	if v := q.Get("category"); v != "" && v != "All" {
		cat, err := models.ParseCategory(v)
		if err != nil {
			return c, apperr.Validation(err.Error())
		}
		c.Category = cat
	}
	if v := q.Get("from"); v != "" {
		d, err := models.ParseDate(v)
		if err != nil {
			return c, apperr.Validation("invalid from date, want YYYY-MM-DD")
		}
		c.From = d
	}
	if v := q.Get("to"); v != "" {
		d, err := models.ParseDate(v)
		if err != nil {
			return c, apperr.Validation("invalid to date, want YYYY-MM-DD")
		}
		c.To = d
	}
	if !c.From.IsZero() && !c.To.IsZero() && c.From.After(c.To.Time) {
		return c, apperr.Validation("from date is after to date")
	}
	c.Search = q.Get("q")
	return c, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid expense id")
	}
	return id, nil
}
