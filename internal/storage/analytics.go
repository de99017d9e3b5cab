package storage

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Summary computes all-time and trailing-30-day totals per kind. The window
// is [now - 30 days, now], inclusive, evaluated against the calendar date, so
// a transaction dated exactly 30 days ago is included. All sums are zero when
// nothing matches.
func (r *SQLiteRepository) Summary(ctx context.Context, now time.Time) (core.Summary, error) {
	windowStart := core.DateOf(now.AddDate(0, 0, -30))

	var s core.Summary
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN kind = 'income' AND date >= ? THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN kind = 'expense' AND date >= ? THEN amount_cents END), 0)
		FROM transactions`,
		windowStart.String(), windowStart.String(),
	).Scan(&s.TotalIncome.Cents, &s.TotalExpenses.Cents, &s.MonthlyIncome.Cents, &s.MonthlyExpenses.Cents)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summary: %w", err)
	}

	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	s.MonthlyBalance = s.MonthlyIncome.Sub(s.MonthlyExpenses)
	return s, nil
}

// SumByCategory groups all transactions by (category name, kind). The join is
// inner: transactions without a resolvable category are excluded.
func (r *SQLiteRepository) SumByCategory(ctx context.Context) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.name, t.kind, SUM(t.amount_cents)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		GROUP BY c.name, t.kind`)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var (
			ct   core.CategoryTotal
			kind string
		)
		if err := rows.Scan(&ct.Category, &kind, &ct.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.Kind = core.Kind(kind)
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	return out, nil
}
