package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"expense-guard/internal/log"
)

var csvHeader = []string{"expense_id", "expense_date", "category", "amount", "description"}

// ExportCSV writes the filtered expense view as CSV.
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.filteredExpenses(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for _, e := range expenses {
		_ = cw.Write([]string{
			strconv.FormatInt(e.ID, 10),
			e.Date.String(),
			string(e.Category),
			e.Amount.StringFixed(2),
			e.Description,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Err(r.Context(), "export_csv", err, log.FieldCount, len(expenses))
	}
}
