package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate(t *testing.T) {
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input any
		want  time.Time
	}{
		{"iso", "2024-01-15", want},
		{"european slash", "15/01/2024", want},
		{"european dash", "15-01-2024", want},
		{"dotted", "15.01.2024", want},
		{"year first slash", "2024/01/15", want},
		{"timestamp", "2024-01-15T10:30:00", want},
		{"timestamp with space", "2024-01-15 10:30:00", want},
		{"already typed", time.Date(2024, 1, 15, 13, 45, 0, 0, time.UTC), want},
		{"padded", "  2024-01-15  ", want},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Date(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("ambiguous day-month prefers european order", func(t *testing.T) {
		got, err := Date("03/04/2024")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("deterministic for identical input", func(t *testing.T) {
		a, err := Date("07/08/2024")
		require.NoError(t, err)
		b, err := Date("07/08/2024")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	invalid := []struct {
		name  string
		input any
	}{
		{"empty", ""},
		{"garbage", "not a date"},
		{"nil", nil},
		{"zero time", time.Time{}},
		{"unsupported type", 3.14},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Date(tt.input)
			assert.ErrorIs(t, err, ErrInvalidDate)
		})
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"plain", "1234.56", "1234.56"},
		{"comma decimal", "1234,56", "1234.56"},
		{"european thousands", "1.234,56", "1234.56"},
		{"american thousands", "1,234.56", "1234.56"},
		{"thousands comma only", "1,234", "1234"},
		{"euro symbol", "€ 99,90", "99.9"},
		{"eur token", "EUR 1.500,00", "1500"},
		{"negative", "-42,10", "-42.1"},
		{"float passthrough", 12.5, "12.5"},
		{"int passthrough", 7, "7"},
		{"inner spaces", "1 234,56", "1234.56"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Amount(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(mustDec(t, tt.want)), "got %s want %s", got, tt.want)
		})
	}

	invalid := []struct {
		name  string
		input any
	}{
		{"empty", ""},
		{"letters", "abc"},
		{"nil", nil},
		{"unsupported type", struct{}{}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Amount(tt.input)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
