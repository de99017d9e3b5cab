// Package csvio parses and renders the five-column tabular transaction
// format: date, amount, type, category, description.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"

	"fintrack/internal/core"
)

// Columns is the fixed output order. Input headers may appear in any order;
// unknown columns are ignored.
var Columns = []string{"date", "amount", "type", "category", "description"}

// Parse reads the tabular input into staged import rows. The header must
// contain every required column. Row errors carry the 0-based row index and
// wrap core.ErrMalformedInput so callers can classify them.
func Parse(r io.Reader) ([]core.ImportRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", core.ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := toIndex(header)
	for _, name := range Columns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", core.ErrMalformedInput, name)
		}
	}

	var rows []core.ImportRow
	for i := 0; ; i++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w: %v", i, core.ErrMalformedInput, err)
		}

		amount, err := core.ParseAmount(rec[col["amount"]])
		if err != nil {
			return nil, fmt.Errorf("row %d: amount: %w", i, err)
		}
		kind, err := core.ParseKind(rec[col["type"]])
		if err != nil {
			return nil, fmt.Errorf("row %d: type: %w", i, err)
		}
		d, err := core.ParseDate(rec[col["date"]])
		if err != nil {
			return nil, fmt.Errorf("row %d: date: %w", i, err)
		}

		rows = append(rows, core.ImportRow{
			Amount:      amount,
			Kind:        kind,
			Category:    rec[col["category"]],
			Description: rec[col["description"]],
			Date:        d,
		})
	}
	return rows, nil
}

// Write renders export rows in the fixed column order with ISO dates and
// two-decimal amounts.
func Write(w io.Writer, rows []core.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		rec := []string{
			row.Date.String(),
			row.Amount.String(),
			string(row.Kind),
			row.Category,
			row.Description,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func toIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	return col
}
