package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
)

type categoryKey struct {
	name string
	kind core.Kind
}

// ImportTransactions applies a staged batch as one atomic unit. Every
// category find-or-create and every transaction insert happens inside a
// single database transaction: either all rows land or none do, including
// categories created only for this batch.
func (r *SQLiteRepository) ImportTransactions(ctx context.Context, rows []core.ImportRow) (n int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import batch: %w", err)
	}
	// Rollback is a no-op after Commit; keeping it deferred releases the
	// transaction on every exit path.
	defer tx.Rollback()

	// Find-or-create results are cached per batch so repeated (name, kind)
	// pairs resolve to one category.
	resolved := make(map[categoryKey]int64)
	createdAt := time.Now().UTC()

	for i, row := range rows {
		var categoryID *int64
		if row.Category != "" {
			key := categoryKey{name: row.Category, kind: row.Kind}
			id, ok := resolved[key]
			if !ok {
				c, err := findOrCreateCategory(ctx, tx, row.Category, row.Kind)
				if err != nil {
					return 0, fmt.Errorf("row %d: resolve category: %w", i, err)
				}
				id = c.ID
				resolved[key] = id
			}
			categoryID = &id
		}

		nt := core.NewTransaction{
			Amount:      row.Amount,
			Kind:        row.Kind,
			CategoryID:  categoryID,
			Description: row.Description,
			Date:        row.Date,
		}
		if err := nt.Validate(); err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		if err := nt.Date.Validate(); err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}

		var cid any
		if categoryID != nil {
			cid = *categoryID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (amount_cents, kind, category_id, description, date, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			nt.Amount.Cents, string(nt.Kind), cid, nt.Description, nt.Date.String(), createdAt,
		); err != nil {
			return 0, fmt.Errorf("row %d: insert transaction: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import batch: %w", err)
	}

	slog.InfoContext(ctx, "Import batch committed",
		"transactions", len(rows),
		"categories_resolved", len(resolved))
	return len(rows), nil
}

// ExportRows projects the entire store in ascending id order, the same
// insertion order the importer wrote, so a fixed store state always exports
// identically. Category renders as its name, empty when absent.
func (r *SQLiteRepository) ExportRows(ctx context.Context) ([]core.ExportRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.date, t.amount_cents, t.kind, COALESCE(c.name, ''), t.description
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		ORDER BY t.id`)
	if err != nil {
		return nil, fmt.Errorf("export rows: %w", err)
	}
	defer rows.Close()

	var out []core.ExportRow
	for rows.Next() {
		var (
			er   core.ExportRow
			date string
			kind string
		)
		if err := rows.Scan(&date, &er.Amount.Cents, &kind, &er.Category, &er.Description); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("stored date %q: %w", date, err)
		}
		er.Date = d
		er.Kind = core.Kind(kind)
		out = append(out, er)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("export rows: %w", err)
	}
	return out, nil
}
