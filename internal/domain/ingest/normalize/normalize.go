// Package normalize converts the heterogeneous date and amount
// representations found in bank exports into canonical values. Both
// functions are pure and deterministic for identical input.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidDate is returned when no supported date representation matches.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidAmount is returned for null or unparsable amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// dateLayouts is tried in priority order before the generic fallback.
var dateLayouts = []string{
	"2006-01-02", // ISO 8601
	"02/01/2006", // DD/MM/YYYY
	"01/02/2006", // MM/DD/YYYY
	"02-01-2006", // DD-MM-YYYY
	"2006/01/02", // YYYY/MM/DD
	"02.01.2006", // DD.MM.YYYY
}

// fallbackLayouts covers timestamp-bearing strings some exports emit.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04",
}

// Date normalizes v to a calendar date (midnight UTC, no time component).
// Already-typed times pass through truncated; strings go through the
// layout ladder and then a best-effort timestamp parse.
func Date(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return time.Time{}, fmt.Errorf("%w: zero time", ErrInvalidDate)
		}
		return truncate(d), nil
	case *time.Time:
		if d == nil {
			return time.Time{}, fmt.Errorf("%w: nil", ErrInvalidDate)
		}
		return Date(*d)
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return truncate(t), nil
			}
		}
		for _, layout := range fallbackLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return truncate(t), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	case nil:
		return time.Time{}, fmt.Errorf("%w: nil", ErrInvalidDate)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidDate, v)
	}
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// currencyTokens are stripped before numeric parsing. Longer tokens first so
// "EUR" is removed before its "E" would survive into the number.
var currencyTokens = []string{"EUR", "eur", "Eur", "Rs", "rs", "RS", "$", "€", "£", "₹"}

// Amount normalizes v to a signed decimal. Numeric types pass through;
// strings are cleaned of whitespace, currency tokens and thousands
// separators, with comma decimal separators rewritten to the dot.
func Amount(v any) (decimal.Decimal, error) {
	switch a := v.(type) {
	case decimal.Decimal:
		return a, nil
	case float64:
		return decimal.NewFromFloat(a), nil
	case float32:
		return decimal.NewFromFloat32(a), nil
	case int:
		return decimal.NewFromInt(int64(a)), nil
	case int64:
		return decimal.NewFromInt(a), nil
	case string:
		s := strings.TrimSpace(a)
		if s == "" {
			return decimal.Decimal{}, fmt.Errorf("%w: empty value", ErrInvalidAmount)
		}
		cleaned := cleanAmount(s)
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, a)
		}
		return d, nil
	case nil:
		return decimal.Decimal{}, fmt.Errorf("%w: nil", ErrInvalidAmount)
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}
}

// cleanAmount strips currency tokens and whitespace, then resolves the
// separator convention: when both "," and "." appear, the rightmost one
// is the decimal separator; a lone comma is decimal only when followed
// by one or two digits, otherwise it is a thousands separator.
func cleanAmount(s string) string {
	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.Join(strings.Fields(s), "")

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// European: 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// American: 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		decimals := len(s) - lastComma - 1
		if decimals >= 1 && decimals <= 2 && strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return s
}
