package handlers

import (
	"net/http"

	"expense-guard/internal/apperr"
	"expense-guard/internal/ledger"

	"github.com/shopspring/decimal"
)

// OverviewViewModel is the dashboard payload.
type OverviewViewModel struct {
	ledger.Overview
	Budget ledger.BudgetStatus `json:"budget"`
}

// Overview returns every aggregate plus the session budget status.
func (h *Handlers) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.ledger.Overview(r.Context(), GetUserFromContext(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	budget := GetSessionFromContext(r).Session.Budget
	writeJSON(w, http.StatusOK, OverviewViewModel{
		Overview: ov,
		Budget:   ledger.CheckBudget(budget, ov.Summary),
	})
}

// Categories returns the category breakdown.
func (h *Handlers) Categories(w http.ResponseWriter, r *http.Request) {
	ov, err := h.ledger.Overview(r.Context(), GetUserFromContext(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": ov.Categories})
}

// Monthly returns the per-month trend.
func (h *Handlers) Monthly(w http.ResponseWriter, r *http.Request) {
	ov, err := h.ledger.Overview(r.Context(), GetUserFromContext(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"monthly": ov.Monthly})
}

// Daily returns the per-day totals.
func (h *Handlers) Daily(w http.ResponseWriter, r *http.Request) {
	ov, err := h.ledger.Overview(r.Context(), GetUserFromContext(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"daily": ov.Daily})
}

type budgetRequest struct {
	Budget *decimal.Decimal `json:"budget"`
}

// GetBudget returns the session's budget threshold and its status.
func (h *Handlers) GetBudget(w http.ResponseWriter, r *http.Request) {
	ov, err := h.ledger.Overview(r.Context(), GetUserFromContext(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.CheckBudget(GetSessionFromContext(r).Session.Budget, ov.Summary))
}

// SetBudget changes the session's budget threshold.
func (h *Handlers) SetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	switch {
	case req.Budget == nil:
		h.writeError(w, r, apperr.Validation("budget is required"))
		return
	case req.Budget.IsNegative():
		h.writeError(w, r, apperr.Validation("budget must not be negative"))
		return
	case !req.Budget.Equal(req.Budget.Round(2)):
		h.writeError(w, r, apperr.Validation("budget must have at most 2 decimal places"))
		return
	}

	info := GetSessionFromContext(r)
	if err := h.db.SetSessionBudget(r.Context(), info.Session.Token, *req.Budget); err != nil {
		h.writeError(w, r, apperr.Unavailable("set budget", err))
		return
	}
	info.Session.Budget = *req.Budget
	h.GetBudget(w, r)
}
