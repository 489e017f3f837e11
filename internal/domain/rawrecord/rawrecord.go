// Package rawrecord preserves the untouched statement rows behind each
// stored transaction, per bank, so the original bank data stays auditable
// after harmonization.
package rawrecord

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avezzali/estratto/internal/domain/harmonize"
	"github.com/avezzali/estratto/internal/domain/ingest/normalize"
	"github.com/avezzali/estratto/internal/domain/ingest/parser"
	"github.com/avezzali/estratto/internal/domain/ingest/reader"
)

// IntesaRaw mirrors one source row of an Intesa statement.
type IntesaRaw struct {
	TransactionID     uuid.UUID
	Data              time.Time
	Operazione        *string
	Dettagli          *string
	ContoOCarta       *string
	Contabilizzazione *string
	Categoria         *string
	Valuta            *string
	Importo           decimal.Decimal
}

// AllianzRaw mirrors one source row of an Allianz statement.
type AllianzRaw struct {
	TransactionID uuid.UUID
	DataContabile time.Time
	DataValuta    *time.Time
	Descrizione   *string
	Importo       decimal.Decimal
}

// Store persists raw rows per bank.
type Store interface {
	InsertIntesa(ctx context.Context, raw IntesaRaw) error
	InsertAllianz(ctx context.Context, raw AllianzRaw) error
}

// Linker walks the committed records of a harmonized batch and stores each
// one's source row, resolved through the explicit raw-row indices carried
// by the batch. Banks without a raw table are skipped.
type Linker struct {
	store  Store
	logger *slog.Logger
}

// NewLinker creates a raw-record linker.
func NewLinker(store Store, logger *slog.Logger) *Linker {
	return &Linker{store: store, logger: logger}
}

// Link stores the raw row behind every committed record. A row that cannot
// be rebuilt is logged and skipped; the canonical record stays committed.
// Returns how many raw rows were stored.
func (l *Linker) Link(ctx context.Context, bank string, raw *reader.Table, rawIndex []int, outcome *harmonize.Outcome) int {
	if raw == nil || len(outcome.Committed) == 0 {
		return 0
	}

	var insert func(ctx context.Context, row int, id uuid.UUID) error
	switch bank {
	case "intesa":
		insert = func(ctx context.Context, row int, id uuid.UUID) error {
			rec, err := l.intesaRow(raw, row, id)
			if err != nil {
				return err
			}
			return l.store.InsertIntesa(ctx, rec)
		}
	case "allianz":
		insert = func(ctx context.Context, row int, id uuid.UUID) error {
			rec, err := l.allianzRow(raw, row, id)
			if err != nil {
				return err
			}
			return l.store.InsertAllianz(ctx, rec)
		}
	default:
		l.logger.Warn("no raw table for bank, skipping raw linkage", "bank", bank)
		return 0
	}

	linked := 0
	for i, p := range outcome.Committed {
		pos := outcome.CommittedIndex[i]
		if pos < 0 || pos >= len(rawIndex) {
			l.logger.Warn("committed record has no raw-row index", "position", pos)
			continue
		}
		row := rawIndex[pos]
		if err := insert(ctx, row, p.ID); err != nil {
			l.logger.Warn("could not store raw row",
				"bank", bank, "row", row, "transaction_id", p.ID, "error", err)
			continue
		}
		linked++
	}

	l.logger.Info("raw rows linked", "bank", bank, "linked", linked, "committed", len(outcome.Committed))
	return linked
}

func (l *Linker) intesaRow(t *reader.Table, row int, id uuid.UUID) (IntesaRaw, error) {
	data, err := normalize.Date(cell(t, row, "data"))
	if err != nil {
		return IntesaRaw{}, err
	}
	importo, err := normalize.Amount(cell(t, row, "importo"))
	if err != nil {
		return IntesaRaw{}, err
	}
	return IntesaRaw{
		TransactionID:     id,
		Data:              data,
		Operazione:        parser.Ptr(cell(t, row, "operazione")),
		Dettagli:          parser.Ptr(cell(t, row, "dettagli")),
		ContoOCarta:       parser.Ptr(cell(t, row, "conto o carta")),
		Contabilizzazione: parser.Ptr(cell(t, row, "contabilizzazione")),
		Categoria:         parser.Ptr(cell(t, row, "categoria")),
		Valuta:            parser.Ptr(cell(t, row, "valuta")),
		Importo:           importo,
	}, nil
}

func (l *Linker) allianzRow(t *reader.Table, row int, id uuid.UUID) (AllianzRaw, error) {
	dataContabile, err := normalize.Date(cell(t, row, "data contabile"))
	if err != nil {
		return AllianzRaw{}, err
	}

	// The export has no single amount column; rebuild it the way the
	// parser does.
	total := decimal.Zero
	for _, name := range []string{"dare euro", "avere euro"} {
		v := cell(t, row, name)
		if v == "" {
			continue
		}
		d, err := normalize.Amount(v)
		if err != nil {
			return AllianzRaw{}, err
		}
		total = total.Add(d)
	}

	var dataValuta *time.Time
	if v := cell(t, row, "data valuta"); v != "" {
		if d, err := normalize.Date(v); err == nil {
			dataValuta = &d
		}
	}

	return AllianzRaw{
		TransactionID: id,
		DataContabile: dataContabile,
		DataValuta:    dataValuta,
		Descrizione:   parser.Ptr(cell(t, row, "descrizione")),
		Importo:       total,
	}, nil
}

// cell reads a named column from a row, empty when the column is absent.
func cell(t *reader.Table, row int, name string) string {
	col := t.Col(name)
	if col < 0 {
		return ""
	}
	return t.Value(row, col)
}
