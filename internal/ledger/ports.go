package ledger

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// Ports for the persistent store, consumed by the HTTP layer and the CSV
// pipeline.
type (
	CategoryStore interface {
		// CreateCategory always inserts; no dedup check.
		CreateCategory(ctx context.Context, name string, kind core.Kind) (core.Category, error)
		// FindOrCreateCategory returns the existing exact (name, kind) match
		// or creates one.
		FindOrCreateCategory(ctx context.Context, name string, kind core.Kind) (core.Category, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.NewTransaction) (core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id int64) error
		// QueryTransactions returns matches ordered by date descending,
		// insertion order on ties.
		QueryTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
	}

	// Analytics aggregates the transaction store. Empty data yields zeroed
	// results, never an error.
	Analytics interface {
		// Summary computes all-time and trailing-30-day totals, the window
		// evaluated against now.
		Summary(ctx context.Context, now time.Time) (core.Summary, error)
		// SumByCategory groups by (category name, kind); transactions
		// without a category are excluded.
		SumByCategory(ctx context.Context) ([]core.CategoryTotal, error)
	}

	// BatchStore applies an import batch atomically and projects the full
	// store for export.
	BatchStore interface {
		// ImportTransactions persists every staged row or none of them,
		// returning the number imported.
		ImportTransactions(ctx context.Context, rows []core.ImportRow) (int, error)
		// ExportRows enumerates the entire store in id order.
		ExportRows(ctx context.Context) ([]core.ExportRow, error)
	}
)
