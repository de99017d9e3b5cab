package http

import (
	"net/http"
	"time"
)

type summaryJSON struct {
	TotalIncome     float64 `json:"total_income"`
	TotalExpenses   float64 `json:"total_expenses"`
	Balance         float64 `json:"balance"`
	MonthlyIncome   float64 `json:"monthly_income"`
	MonthlyExpenses float64 `json:"monthly_expenses"`
	MonthlyBalance  float64 `json:"monthly_balance"`
}

type categoryTotalJSON struct {
	Category string  `json:"category"`
	Type     string  `json:"type"`
	Total    float64 `json:"total"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	sum, err := s.stats.Summary(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryJSON{
		TotalIncome:     sum.TotalIncome.Float(),
		TotalExpenses:   sum.TotalExpenses.Float(),
		Balance:         sum.Balance.Float(),
		MonthlyIncome:   sum.MonthlyIncome.Float(),
		MonthlyExpenses: sum.MonthlyExpenses.Float(),
		MonthlyBalance:  sum.MonthlyBalance.Float(),
	})
}

func (s *Server) handleByCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	totals, err := s.stats.SumByCategory(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryTotalJSON, 0, len(totals))
	for _, ct := range totals {
		out = append(out, categoryTotalJSON{
			Category: ct.Category,
			Type:     string(ct.Kind),
			Total:    ct.Total.Float(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
