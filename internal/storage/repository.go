package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository owns the category and transaction tables. It satisfies
// every ledger port.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateCategory always inserts a new record; duplicates with the same
// (name, kind) can coexist when created directly.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, name string, kind core.Kind) (core.Category, error) {
	c := core.Category{Name: name, Kind: kind}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, kind) VALUES (?, ?)`, name, string(kind))
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	c.ID = id

	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name, "kind", c.Kind)
	return c, nil
}

// FindOrCreateCategory returns the earliest exact (name, kind) match,
// creating one when none exists.
func (r *SQLiteRepository) FindOrCreateCategory(ctx context.Context, name string, kind core.Kind) (core.Category, error) {
	return findOrCreateCategory(ctx, r.db, name, kind)
}

// querier is the subset of *sql.DB and *sql.Tx the category resolver needs,
// so the same code serves single calls and import batches.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findOrCreateCategory(ctx context.Context, q querier, name string, kind core.Kind) (core.Category, error) {
	c := core.Category{Name: name, Kind: kind}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	err := q.QueryRowContext(ctx,
		`SELECT id FROM categories WHERE name = ? AND kind = ? ORDER BY id LIMIT 1`,
		name, string(kind)).Scan(&c.ID)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, sql.ErrNoRows):
		res, err := q.ExecContext(ctx,
			`INSERT INTO categories (name, kind) VALUES (?, ?)`, name, string(kind))
		if err != nil {
			return core.Category{}, fmt.Errorf("insert category: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return core.Category{}, fmt.Errorf("category id: %w", err)
		}
		c.ID = id
		return c, nil
	default:
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, kind FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var kind string
		if err := rows.Scan(&c.ID, &c.Name, &kind); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.Kind(kind)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

const transactionColumns = `id, amount_cents, kind, category_id, description, date, created_at`

func scanTransaction(scan func(dest ...any) error) (core.Transaction, error) {
	var (
		t          core.Transaction
		kind       string
		categoryID sql.NullInt64
		date       string
		createdAt  sql.NullTime
	)
	if err := scan(&t.ID, &t.Amount.Cents, &kind, &categoryID, &t.Description, &date, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored date %q: %w", date, err)
	}
	t.Date = d
	if createdAt.Valid {
		t.CreatedAt = createdAt.Time
	}
	return t, nil
}

// CreateTransaction inserts a record; a zero date defaults to today.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, nt core.NewTransaction) (core.Transaction, error) {
	if err := nt.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if nt.Date.IsZero() {
		nt.Date = core.Today()
	}

	var categoryID sql.NullInt64
	if nt.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *nt.CategoryID, Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (amount_cents, kind, category_id, description, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nt.Amount.Cents, string(nt.Kind), categoryID, nt.Description, nt.Date.String(), time.Now().UTC())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", id,
		"kind", nt.Kind,
		"amount_cents", nt.Amount.Cents,
		"date", nt.Date.String())

	return r.GetTransaction(ctx, id)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// UpdateTransaction applies the supplied patch fields only; everything else
// keeps its prior value.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var (
		sets []string
		args []any
	)
	if p.Amount != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, p.Amount.Cents)
	}
	if p.Kind != nil {
		sets = append(sets, "kind = ?")
		args = append(args, string(*p.Kind))
	}
	if p.Category != nil {
		sets = append(sets, "category_id = ?")
		if p.Category.ID != nil {
			args = append(args, *p.Category.ID)
		} else {
			args = append(args, nil)
		}
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, p.Date.String())
	}

	if len(sets) == 0 {
		return r.GetTransaction(ctx, id)
	}

	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}

	return r.GetTransaction(ctx, id)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// QueryTransactions returns matches ordered by date descending; ties keep
// insertion order so results are deterministic for a fixed store state.
func (r *SQLiteRepository) QueryTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var (
		where []string
		args  []any
	)
	if f.From != nil {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Kind != nil {
		where = append(where, "kind = ?")
		args = append(args, string(*f.Kind))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return out, nil
}

// defaultCategories mirrors the seed set created on first boot.
var defaultCategories = []core.Category{
	{Name: "Salary", Kind: core.Income},
	{Name: "Freelance", Kind: core.Income},
	{Name: "Food", Kind: core.Expense},
	{Name: "Transportation", Kind: core.Expense},
	{Name: "Utilities", Kind: core.Expense},
	{Name: "Entertainment", Kind: core.Expense},
	{Name: "Healthcare", Kind: core.Expense},
}

// SeedDefaultCategories inserts the default set when the table is empty.
func (r *SQLiteRepository) SeedDefaultCategories(ctx context.Context) error {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, c := range defaultCategories {
		if _, err := r.CreateCategory(ctx, c.Name, c.Kind); err != nil {
			return fmt.Errorf("seed category %q: %w", c.Name, err)
		}
	}
	slog.InfoContext(ctx, "Seeded default categories", "count", len(defaultCategories))
	return nil
}
