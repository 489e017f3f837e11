package parser

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avezzali/estratto/internal/domain/ingest/reader"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func makeTable(headers []string, rows ...[]string) *reader.Table {
	return &reader.Table{Headers: headers, Rows: rows}
}

func TestRegistry_Register(t *testing.T) {
	r, err := NewRegistry(NewIntesa(testLogger()), NewAllianz(testLogger()))
	require.NoError(t, err)

	t.Run("rejects duplicate bank id case-insensitively", func(t *testing.T) {
		err := r.Register(NewIntesa(testLogger()))
		assert.Error(t, err)
	})

	t.Run("lists banks in registration order", func(t *testing.T) {
		assert.Equal(t, []string{"intesa", "allianz"}, r.Banks())
	})
}

func TestRegistry_ByBank(t *testing.T) {
	r, err := NewRegistry(NewIntesa(testLogger()), NewAllianz(testLogger()), NewFineco(testLogger()))
	require.NoError(t, err)

	t.Run("resolves case-insensitively", func(t *testing.T) {
		p, err := r.ByBank("INTESA")
		require.NoError(t, err)
		assert.Equal(t, "intesa", p.Bank())
	})

	t.Run("unknown bank", func(t *testing.T) {
		_, err := r.ByBank("unicredit")
		assert.ErrorIs(t, err, ErrNoParserForBank)
	})
}

func TestRegistry_Detect(t *testing.T) {
	r, err := NewRegistry(NewIntesa(testLogger()), NewAllianz(testLogger()), NewFineco(testLogger()))
	require.NoError(t, err)

	tests := []struct {
		name     string
		table    *reader.Table
		wantBank string
		wantOK   bool
	}{
		{
			name:     "intesa shape",
			table:    makeTable([]string{"Data", "Operazione", "Dettagli", "Conto o Carta", "Importo"}),
			wantBank: "intesa",
			wantOK:   true,
		},
		{
			name:     "allianz shape",
			table:    makeTable([]string{"Data contabile", "Descrizione", "Dare euro", "Avere euro"}),
			wantBank: "allianz",
			wantOK:   true,
		},
		{
			name:     "fineco shape",
			table:    makeTable([]string{"Data_Valuta", "Entrate", "Uscite", "Descrizione", "Descrizione_Completa"}),
			wantBank: "fineco",
			wantOK:   true,
		},
		{
			name:   "unknown shape",
			table:  makeTable([]string{"foo", "bar"}),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := r.Detect(tt.table, "statement.xlsx")
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantBank, p.Bank())
			}
		})
	}
}

func TestRegistry_DetectFile(t *testing.T) {
	r, err := NewRegistry(NewIntesa(testLogger()), NewAllianz(testLogger()), NewFineco(testLogger()))
	require.NoError(t, err)

	write := func(t *testing.T, name, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("header buried under banner and footer rows", func(t *testing.T) {
		content := "Lista movimenti\n" +
			"Conto: IT00X0000000000000000000000\n" +
			"Periodo: 01/01/2024 - 31/01/2024\n" +
			"Data contabile,Data valuta,Descrizione,Dare euro,Avere euro\n" +
			"02/01/2024,02/01/2024,PAGAMENTO POS,-10.00,\n" +
			"03/01/2024,03/01/2024,ACCREDITO STIPENDIO,,1500.00\n" +
			"Saldo iniziale,,,,\n" +
			"Saldo finale,,,,\n" +
			",,,,\n" +
			"Documento generato automaticamente\n"

		p, tbl, ok := r.DetectFile(write(t, "movimenti.csv", content))
		require.True(t, ok)
		assert.Equal(t, "allianz", p.Bank())
		require.NotNil(t, tbl)
		assert.GreaterOrEqual(t, tbl.Col("dare euro"), 0)
		assert.Len(t, tbl.Rows, 2)
	})

	t.Run("file matching no bank", func(t *testing.T) {
		_, _, ok := r.DetectFile(write(t, "alien.csv", "foo,bar\n1,2\n3,4\n"))
		assert.False(t, ok)
	})
}

func TestTransaction_Key(t *testing.T) {
	base := Transaction{Bank: "intesa", Account: "main", Description: Ptr("Spesa")}

	t.Run("amount does not participate", func(t *testing.T) {
		a, b := base, base
		a.Amount = mustDecimal(t, "10.00")
		b.Amount = mustDecimal(t, "-3.50")
		assert.Equal(t, a.Key(), b.Key())
	})

	t.Run("description does", func(t *testing.T) {
		other := base
		other.Description = Ptr("Altro acquisto")
		assert.NotEqual(t, base.Key(), other.Key())
	})
}

func TestPtr(t *testing.T) {
	assert.Nil(t, Ptr(""))
	assert.Nil(t, Ptr("   "))
	require.NotNil(t, Ptr("x"))
	assert.Equal(t, "x", *Ptr("x"))
}
