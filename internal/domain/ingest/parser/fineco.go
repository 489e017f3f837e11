package parser

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/avezzali/estratto/internal/domain/ingest/normalize"
	"github.com/avezzali/estratto/internal/domain/ingest/reader"
	"github.com/avezzali/estratto/internal/domain/ingest/txtype"
)

// Fineco parses FinecoBank statements. Credits and debits live in separate
// columns (entrate / uscite) and the export carries both a short label
// (descrizione) and a full narrative (descrizione_completa). Twelve preamble
// rows precede the header.
type Fineco struct {
	logger *slog.Logger
}

// NewFineco creates the Fineco parser.
func NewFineco(logger *slog.Logger) *Fineco {
	return &Fineco{logger: logger}
}

func (p *Fineco) Bank() string    { return "fineco" }
func (p *Fineco) HeaderSkip() int { return 12 }
func (p *Fineco) FooterSkip() int { return 0 }

func (p *Fineco) CanParse(t *reader.Table, _ string) bool {
	if t == nil {
		return false
	}
	return t.Col("data_valuta") >= 0 && t.Col("entrate") >= 0 && t.Col("uscite") >= 0
}

func (p *Fineco) Parse(t *reader.Table) (*Result, error) {
	cols, err := requireColumns(t, "data_valuta", "entrate", "uscite", "descrizione", "descrizione_completa")
	if err != nil {
		return nil, err
	}

	res := &Result{Raw: t.Clone()}

	for i := range t.Rows {
		date, err := normalize.Date(t.Value(i, cols["data_valuta"]))
		if err != nil {
			p.logger.Warn("skipping row", "bank", p.Bank(), "row", i, "error", err)
			res.Dropped = append(res.Dropped, RowError{Row: i, Err: err})
			continue
		}

		// Debits arrive already signed in the uscite column, so the sum of
		// both columns is the signed amount.
		amount, err := sumColumns(t, i, cols["entrate"], cols["uscite"])
		if err != nil {
			p.logger.Warn("skipping row", "bank", p.Bank(), "row", i, "error", err)
			res.Dropped = append(res.Dropped, RowError{Row: i, Err: err})
			continue
		}

		label := strings.TrimSpace(t.Value(i, cols["descrizione"]))
		full := strings.TrimSpace(t.Value(i, cols["descrizione_completa"]))
		txType := p.extractType(label, amount)

		res.Transactions = append(res.Transactions, Transaction{
			Bank:        p.Bank(),
			Date:        date,
			Amount:      amount,
			Description: Ptr(full),
			Details:     Ptr(full),
			Type:        Ptr(txType),
		})
		res.RawIndex = append(res.RawIndex, i)
	}

	return res, nil
}

// extractType classifies via the short label. A bare "bonifico" label says
// nothing about direction, so the amount sign reclassifies it before lookup.
// An unmapped label passes through lowercased.
func (p *Fineco) extractType(label string, amount decimal.Decimal) string {
	token := strings.ToLower(strings.TrimSpace(label))
	if strings.Contains(token, "bonifico") {
		if amount.IsPositive() {
			token = "bonifico ricevuto"
		} else {
			token = "bonifico effettuato"
		}
	}
	if mapped, ok := txtype.Lookup(txtype.FinecoMap, token, ""); ok {
		return mapped
	}
	p.logger.Warn("unmapped transaction label", "bank", p.Bank(), "label", token)
	if token != "" {
		return token
	}
	return txtype.Altro
}
