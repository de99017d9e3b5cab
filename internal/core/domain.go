package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Kind classifies both transactions and categories.
	Kind string

	// Date is a calendar date with no time-of-day. The embedded time is
	// always UTC midnight.
	Date struct {
		time.Time
	}

	Category struct {
		ID   int64
		Name string
		Kind Kind
	}

	// Transaction references its category weakly, by id. The reference may
	// be absent and is resolved by lookup on read.
	Transaction struct {
		ID          int64
		Amount      Money
		Kind        Kind
		CategoryID  *int64
		Description string
		Date        Date
		CreatedAt   time.Time
	}

	// NewTransaction carries the fields accepted on creation. A zero Date
	// means "today".
	NewTransaction struct {
		Amount      Money
		Kind        Kind
		CategoryID  *int64
		Description string
		Date        Date
	}

	// CategoryRef wraps a nullable category reference inside a patch. A nil
	// ID detaches the category.
	CategoryRef struct {
		ID *int64
	}

	// TransactionPatch is a partial update. Nil fields keep their prior
	// value; a non-nil Category with nil ID clears the reference.
	TransactionPatch struct {
		Amount      *Money
		Kind        *Kind
		Category    *CategoryRef
		Description *string
		Date        *Date
	}

	// TransactionFilter narrows a query. Fields are independently optional
	// and combined with AND; date bounds are inclusive.
	TransactionFilter struct {
		From *Date
		To   *Date
		Kind *Kind
	}

	Summary struct {
		TotalIncome     Money
		TotalExpenses   Money
		Balance         Money
		MonthlyIncome   Money
		MonthlyExpenses Money
		MonthlyBalance  Money
	}

	// CategoryTotal is one row of the per-category breakdown, grouped by
	// (category name, transaction kind).
	CategoryTotal struct {
		Category string
		Kind     Kind
		Total    Money
	}

	// ImportRow is one staged row of a tabular import batch.
	ImportRow struct {
		Amount      Money
		Kind        Kind
		Category    string
		Description string
		Date        Date
	}

	// ExportRow is one projected row of a tabular export. Category holds
	// the resolved category name, empty when the reference is absent.
	ExportRow struct {
		Amount      Money
		Kind        Kind
		Category    string
		Description string
		Date        Date
	}
)

var (
	ErrNotFound = errors.New("not found")

	// ErrMalformedInput is the base of the bad-input taxonomy; the specific
	// errors below wrap it so callers can branch on the whole class.
	ErrMalformedInput = errors.New("malformed input")

	ErrInvalidKind   = fmt.Errorf("%w: invalid kind", ErrMalformedInput)
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrMalformedInput)
	ErrInvalidDate   = fmt.Errorf("%w: invalid date", ErrMalformedInput)
	ErrEmptyName     = fmt.Errorf("%w: empty name", ErrMalformedInput)
)

// ParseKind validates the literal kind values accepted on any boundary.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Income, Expense:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func (k Kind) Validate() error {
	_, err := ParseKind(string(k))
	return err
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	return DateOf(time.Now())
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDate accepts an ISO calendar date. A supplied time-of-day is accepted
// but truncated to the date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// String renders the ISO calendar form used on every boundary.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	return nil
}

// Before reports whether d falls strictly before other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d falls strictly after other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return c.Kind.Validate()
}

func (t NewTransaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	return t.Kind.Validate()
}

func (p TransactionPatch) Validate() error {
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return err
		}
	}
	if p.Kind != nil {
		if err := p.Kind.Validate(); err != nil {
			return err
		}
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return err
		}
	}
	return nil
}
