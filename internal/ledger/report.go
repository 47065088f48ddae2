package ledger

import (
	"sort"
	"strings"

	"expense-guard/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Summary holds the dashboard figures.
type Summary struct {
	Total   decimal.Decimal `json:"total"`
	Today   decimal.Decimal `json:"today"`
	Month   decimal.Decimal `json:"month"`
	Average decimal.Decimal `json:"average"`
	Count   int             `json:"count"`
}

// CategoryTotal represents a category with its spending statistics.
type CategoryTotal struct {
	Category   models.Category `json:"category"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

// MonthTotal is the spend of one YYYY-MM month.
type MonthTotal struct {
	Month string          `json:"month"`
	Total decimal.Decimal `json:"total"`
}

// DayTotal is the spend of one calendar day.
type DayTotal struct {
	Date  models.Date     `json:"date"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Sum adds up the amounts of expenses.
func Sum(expenses []models.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// Summarize computes the dashboard figures as of today. Average is the mean
// per expense, rounded to cents.
func Summarize(expenses []models.Expense, today models.Date) Summary {
	s := Summary{
		Total:   decimal.Zero,
		Today:   decimal.Zero,
		Month:   decimal.Zero,
		Average: decimal.Zero,
		Count:   len(expenses),
	}
	month := today.MonthKey()
	for _, e := range expenses {
		s.Total = s.Total.Add(e.Amount)
		if e.Date.Equal(today.Time) {
			s.Today = s.Today.Add(e.Amount)
		}
		if e.Date.MonthKey() == month {
			s.Month = s.Month.Add(e.Amount)
		}
	}
	if s.Count > 0 {
		s.Average = s.Total.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	}
	return s
}

// ByCategory totals expenses per category, largest first. Percentages are
// shares of the overall total, rounded to two places.
func ByCategory(expenses []models.Expense) []CategoryTotal {
	index := make(map[models.Category]*CategoryTotal)
	total := decimal.Zero
	for _, e := range expenses {
		ct, ok := index[e.Category]
		if !ok {
			ct = &CategoryTotal{Category: e.Category, Total: decimal.Zero}
			index[e.Category] = ct
		}
		ct.Total = ct.Total.Add(e.Amount)
		ct.Count++
		total = total.Add(e.Amount)
	}

	items := make([]CategoryTotal, 0, len(index))
	for _, ct := range index {
		ct.Percentage = decimal.Zero
		if total.IsPositive() {
			ct.Percentage = ct.Total.Mul(hundred).Div(total).Round(2)
		}
		items = append(items, *ct)
	}
	sort.Slice(items, func(i, j int) bool {
		if c := items[i].Total.Cmp(items[j].Total); c != 0 {
			return c > 0
		}
		return items[i].Category < items[j].Category
	})
	return items
}

// MonthlyTrend totals expenses per month, oldest first.
func MonthlyTrend(expenses []models.Expense) []MonthTotal {
	index := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		k := e.Date.MonthKey()
		index[k] = index[k].Add(e.Amount)
	}

	items := make([]MonthTotal, 0, len(index))
	for k, v := range index {
		items = append(items, MonthTotal{Month: k, Total: v})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Month < items[j].Month })
	return items
}

// DailyTotals totals expenses per day, newest first.
func DailyTotals(expenses []models.Expense) []DayTotal {
	index := make(map[string]*DayTotal)
	for _, e := range expenses {
		k := e.Date.String()
		dt, ok := index[k]
		if !ok {
			dt = &DayTotal{Date: e.Date, Total: decimal.Zero}
			index[k] = dt
		}
		dt.Total = dt.Total.Add(e.Amount)
		dt.Count++
	}

	items := make([]DayTotal, 0, len(index))
	for _, dt := range index {
		items = append(items, *dt)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Date.After(items[j].Date.Time) })
	return items
}

// Criteria narrows a list of expenses. Zero fields match everything.
type Criteria struct {
	Category models.Category
	From     models.Date
	To       models.Date
	Search   string
}

// Filter returns the expenses matching c, keeping their order. From and To
// are inclusive. Search matches description or category, ignoring case.
func Filter(expenses []models.Expense, c Criteria) []models.Expense {
	q := strings.ToLower(strings.TrimSpace(c.Search))
	out := make([]models.Expense, 0, len(expenses))
	for _, e := range expenses {
		if c.Category != "" && e.Category != c.Category {
			continue
		}
		if !c.From.IsZero() && e.Date.Before(c.From.Time) {
			continue
		}
		if !c.To.IsZero() && e.Date.After(c.To.Time) {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(e.Description), q) &&
			!strings.Contains(strings.ToLower(string(e.Category)), q) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// BudgetStatus compares this month's spend with a threshold.
type BudgetStatus struct {
	Limit     decimal.Decimal `json:"limit"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Exceeded  bool            `json:"exceeded"`
	Used      decimal.Decimal `json:"used_percent"`
}

// CheckBudget reports whether the month's spend in s went over limit.
// Spending exactly the limit is not exceeding it.
func CheckBudget(limit decimal.Decimal, s Summary) BudgetStatus {
	b := BudgetStatus{
		Limit:     limit,
		Spent:     s.Month,
		Remaining: limit.Sub(s.Month),
		Exceeded:  s.Month.GreaterThan(limit),
		Used:      decimal.Zero,
	}
	if limit.IsPositive() {
		b.Used = s.Month.Mul(hundred).Div(limit).Round(2)
	}
	return b
}
