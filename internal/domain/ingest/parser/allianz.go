package parser

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/avezzali/estratto/internal/domain/ingest/normalize"
	"github.com/avezzali/estratto/internal/domain/ingest/reader"
	"github.com/avezzali/estratto/internal/domain/ingest/txtype"
)

// Allianz parses Allianz Bank statements. The export splits the amount over
// two columns (dare euro / avere euro) and packs operation type, timestamp
// and counterparty into one dash-delimited description field. Three banner
// rows precede the header and four disclaimer rows trail the data.
type Allianz struct {
	logger *slog.Logger
}

// NewAllianz creates the Allianz parser.
func NewAllianz(logger *slog.Logger) *Allianz {
	return &Allianz{logger: logger}
}

func (p *Allianz) Bank() string    { return "allianz" }
func (p *Allianz) HeaderSkip() int { return 3 }
func (p *Allianz) FooterSkip() int { return 4 }

func (p *Allianz) CanParse(t *reader.Table, _ string) bool {
	if t == nil {
		return false
	}
	return t.Col("dare euro") >= 0 && t.Col("avere euro") >= 0 && t.Col("descrizione") >= 0
}

func (p *Allianz) Parse(t *reader.Table) (*Result, error) {
	cols, err := requireColumns(t, "data contabile", "descrizione", "dare euro", "avere euro")
	if err != nil {
		return nil, err
	}

	res := &Result{Raw: t.Clone()}

	for i := range t.Rows {
		date, err := normalize.Date(t.Value(i, cols["data contabile"]))
		if err != nil {
			p.logger.Warn("skipping row", "bank", p.Bank(), "row", i, "error", err)
			res.Dropped = append(res.Dropped, RowError{Row: i, Err: err})
			continue
		}

		amount, err := sumColumns(t, i, cols["dare euro"], cols["avere euro"])
		if err != nil {
			p.logger.Warn("skipping row", "bank", p.Bank(), "row", i, "error", err)
			res.Dropped = append(res.Dropped, RowError{Row: i, Err: err})
			continue
		}

		details := strings.TrimSpace(t.Value(i, cols["descrizione"]))
		description := extractAllianzDescription(details)
		txType := extractAllianzType(details)

		res.Transactions = append(res.Transactions, Transaction{
			Bank:        p.Bank(),
			Date:        date,
			Amount:      amount,
			Description: Ptr(description),
			Details:     Ptr(details),
			Type:        Ptr(txType),
		})
		res.RawIndex = append(res.RawIndex, i)
	}

	return res, nil
}

// sumColumns adds two amount columns treating blank cells as zero. Used by
// statements that split debit and credit into separate columns.
func sumColumns(t *reader.Table, row, colA, colB int) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, col := range []int{colA, colB} {
		cell := strings.TrimSpace(t.Value(row, col))
		if cell == "" {
			continue
		}
		v, err := normalize.Amount(cell)
		if err != nil {
			return decimal.Decimal{}, err
		}
		total = total.Add(v)
	}
	return total, nil
}

// extractAllianzDescription rewrites the composite description field into a
// readable form keyed on the token before the first dash.
func extractAllianzDescription(details string) string {
	parts := strings.Split(details, "-")
	token := strings.TrimSpace(parts[0])

	switch token {
	case "Pagam. POS":
		if len(parts) > 1 && strings.Contains(parts[1], "ORE") {
			_, after, _ := strings.Cut(strings.TrimSpace(parts[1]), "ORE")
			timeInfo := "ORE " + strings.TrimSpace(after)
			if len(parts) > 2 {
				merchant, _, _ := strings.Cut(strings.TrimSpace(parts[2]), "CARTA")
				return "POS - " + strings.TrimSpace(merchant) + " - " + timeInfo
			}
		}
		return "POS - " + details
	case "Addeb. diretto":
		if len(parts) > 1 {
			return "Addeb. diretto - " + strings.TrimSpace(parts[1])
		}
		return "Addeb. diretto - " + details
	case "Bancomat":
		if len(parts) > 1 && strings.Contains(parts[1], "ORE") {
			_, after, _ := strings.Cut(strings.TrimSpace(parts[1]), "ORE")
			info := "ORE " + strings.TrimSpace(after)
			info, _, _ = strings.Cut(info, "CARTA")
			return "Prelievo contanti - " + strings.TrimSpace(info)
		}
		return "Prelievo contanti - " + details
	case "Bonif. v/fav.":
		return strings.ReplaceAll(dropRefTokens(details), "Bonif. v/fav.", "Bonif. ricevuto")
	case "Disposizione":
		return strings.ReplaceAll(dropRefTokens(details), "Disposizione", "Bonif. effettuato")
	default:
		return strings.Join(strings.Fields(details), " ")
	}
}

// dropRefTokens removes the bank reference-number words ("RIF:...").
func dropRefTokens(s string) string {
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if strings.HasPrefix(w, "RIF:") {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// extractAllianzType maps the pre-dash token through the Allianz table,
// keeping the raw token when unmapped.
func extractAllianzType(details string) string {
	if strings.Contains(details, "-") {
		token := strings.TrimSpace(strings.SplitN(details, "-", 2)[0])
		if label, ok := txtype.Lookup(txtype.AllianzMap, token, ""); ok {
			return label
		}
		return token
	}
	if trimmed := strings.TrimSpace(details); trimmed != "" {
		return trimmed
	}
	return txtype.Altro
}
