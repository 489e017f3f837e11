package txtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"exact match", "giroconto", Giroconto},
		{"case and padding ignored", "  GIROCONTO  ", Giroconto},
		{"substring match", "Pagamento Adue Rid/Sdd", AddebitoDiretto},
		{"longest key wins", "Costo Bonifico Istantaneo", CommissioneSuBonifico},
		{"unknown falls back", "Operazione Ignota", Altro},
		{"empty falls back", "", Altro},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(IntesaMap, tt.token, Altro))
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	// Substring resolution must not depend on map iteration order.
	for i := 0; i < 50; i++ {
		assert.Equal(t, CommissioneSuBonifico, Resolve(IntesaMap, "maggiorazione bonifico istantaneo applicata", Altro))
	}
}

func TestLookup(t *testing.T) {
	t.Run("exact hit", func(t *testing.T) {
		got, ok := Lookup(AllianzMap, "Pagam. POS", Altro)
		assert.True(t, ok)
		assert.Equal(t, PagamentoConCarta, got)
	})

	t.Run("no substring matching", func(t *testing.T) {
		got, ok := Lookup(AllianzMap, "Pagam. POS estero", Altro)
		assert.False(t, ok)
		assert.Equal(t, Altro, got)
	})
}
