// Package core provides the ledger domain model.
//
// This file contains amount parsing and rendering. Amounts are stored as
// non-negative cents; the sign of a movement is carried by its Kind, never by
// the numeric value.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Money is a non-negative magnitude in cents.
type Money struct {
	Cents int64
}

// ParseAmount converts a decimal string to cents with half-up rounding on the
// third decimal place.
//
// It accepts both dot (12.34) and comma (12,34) separators. Negative values
// are rejected; zero is allowed.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234, nil
//	ParseAmount("12,34")  -> 1234, nil
//	ParseAmount("12.345") -> 1234, nil (rounds down)
//	ParseAmount("12.346") -> 1235, nil (rounds up)
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, fmt.Errorf("%w: signed value %q", ErrInvalidAmount, s)
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	// Take first two fractional digits; half-up rounding on the third
	var fracCents int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracCents = d1 * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return Money{Cents: iv*100 + fracCents}, nil
}

// CentsOf builds a Money value from raw cents.
func CentsOf(cents int64) Money {
	return Money{Cents: cents}
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return fmt.Errorf("%w: negative", ErrInvalidAmount)
	}
	return nil
}

// Float returns the decimal value for serialization. Use cents for
// calculations to avoid floating-point precision issues.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// String renders a fixed two-decimal form ("1234.50"), the canonical shape
// used in tabular exports.
func (m Money) String() string {
	return fmt.Sprintf("%d.%02d", m.Cents/100, m.Cents%100)
}

// Sub returns m minus other; aggregate balances may go negative even though
// individual amounts never do.
func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// Add returns the sum of m and other.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}
