package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avezzali/estratto/internal/domain/ingest/normalize"
	"github.com/avezzali/estratto/internal/domain/ingest/reader"
	"github.com/avezzali/estratto/internal/domain/ingest/txtype"
)

// ErrRowFiltered marks rows a bank rule intentionally removed, as opposed
// to rows dropped because they failed normalization.
var ErrRowFiltered = errors.New("row filtered by bank rule")

// Transfer instruction rows carry no settlement detail and are dropped.
const intesaTransferInstruction = "Disposizione Di Bonifico"

// Intesa parses Intesa Sanpaolo account statements. The export buries 18
// header rows above the column row and encodes the economic meaning of each
// movement in two free-text fields (operazione, dettagli) plus a card/account
// discriminator (conto o carta).
type Intesa struct {
	logger *slog.Logger
}

// NewIntesa creates the Intesa parser.
func NewIntesa(logger *slog.Logger) *Intesa {
	return &Intesa{logger: logger}
}

func (p *Intesa) Bank() string    { return "intesa" }
func (p *Intesa) HeaderSkip() int { return 18 }
func (p *Intesa) FooterSkip() int { return 0 }

// CanParse checks for the statement's defining columns.
func (p *Intesa) CanParse(t *reader.Table, _ string) bool {
	if t == nil {
		return false
	}
	return t.Col("data") >= 0 && t.Col("importo") >= 0
}

func (p *Intesa) Parse(t *reader.Table) (*Result, error) {
	cols, err := requireColumns(t, "data", "operazione", "dettagli", "conto o carta", "importo")
	if err != nil {
		return nil, err
	}
	categoriaCol := t.Col("categoria")

	res := &Result{Raw: t.Clone()}

	for i := range t.Rows {
		operazione := strings.TrimSpace(t.Value(i, cols["operazione"]))
		dettagli := strings.TrimSpace(t.Value(i, cols["dettagli"]))
		contoOCarta := strings.TrimSpace(t.Value(i, cols["conto o carta"]))

		if operazione == intesaTransferInstruction {
			p.logger.Warn("dropping transfer instruction row with no settlement detail",
				"bank", p.Bank(), "row", i, "dettagli", dettagli)
			res.Dropped = append(res.Dropped, RowError{Row: i, Err: fmt.Errorf("%w: %s", ErrRowFiltered, operazione)})
			continue
		}

		date, err := normalize.Date(t.Value(i, cols["data"]))
		if err != nil {
			p.logger.Warn("skipping row", "bank", p.Bank(), "row", i, "error", err)
			res.Dropped = append(res.Dropped, RowError{Row: i, Err: err})
			continue
		}
		amount, err := normalize.Amount(t.Value(i, cols["importo"]))
		if err != nil {
			p.logger.Warn("skipping row", "bank", p.Bank(), "row", i, "error", err)
			res.Dropped = append(res.Dropped, RowError{Row: i, Err: err})
			continue
		}

		description := p.extractDescription(operazione, dettagli, contoOCarta)
		txType := p.extractType(operazione, dettagli, contoOCarta)
		details := dettagli + " - " + contoOCarta

		var category *string
		if categoriaCol >= 0 {
			category = Ptr(strings.TrimSpace(t.Value(i, categoriaCol)))
		}

		res.Transactions = append(res.Transactions, Transaction{
			Bank:        p.Bank(),
			Date:        date,
			Amount:      amount,
			Description: Ptr(description),
			Details:     Ptr(details),
			Category:    category,
			Type:        Ptr(txType),
		})
		res.RawIndex = append(res.RawIndex, i)
	}

	return res, nil
}

// extractDescription derives a human-readable description from the operation
// and detail fields. The rule order mirrors how specific the operation text
// is; the first match wins.
func (p *Intesa) extractDescription(operazione, dettagli, contoOCarta string) string {
	if !strings.Contains(contoOCarta, "Conto") && contoOCarta != "" {
		// Card movement: the detail field already carries the merchant line.
		if !strings.Contains(strings.ToUpper(contoOCarta), "SUPERFLASH") {
			p.logger.Warn("no description rule for card movement, defaulting to details",
				"operazione", operazione, "conto_o_carta", contoOCarta)
		}
		return dettagli
	}

	lower := strings.ToLower(operazione)
	switch {
	case strings.EqualFold(operazione, "ACCREDITO BEU CON CONTABILE"):
		return dettagli
	case strings.Contains(operazione, "Addebito Diretto"):
		return operazione
	case strings.Contains(dettagli, "Carta N."):
		return "Pagam. POS - " + operazione
	case strings.Contains(operazione, "Bonifico Disposto A Favore Di"),
		strings.Contains(operazione, "Bonifico Istantaneo Da Voi Disposto A Favore Di"):
		if _, after, ok := strings.Cut(dettagli, "Bonifico Da Voi Disposto A Favore Di"); ok {
			return "Bonifico a " + strings.TrimSpace(after)
		}
		return "Bonifico a " + dettagli
	case strings.Contains(operazione, "Bonifico Disposto Da"),
		strings.Contains(operazione, "Bonifico Istantaneo Disposto Da"):
		// Details look like "COD. DISP. <16 digits> CASH <reason> Bonifico A
		// Vostro Favore"; the reason lives in the first 32 characters.
		if strings.Contains(dettagli, "Bonifico A Vostro Favore") {
			head := dettagli
			if len(head) > 32 {
				head = head[:32]
			}
			reason, _, _ := strings.Cut(head, "Bonifico A Vostro Favore")
			return operazione + " - " + strings.TrimSpace(reason)
		}
		return operazione + " - " + dettagli
	case strings.Contains(lower, "canone"):
		return capitalize(operazione) + " - " + dettagli
	case strings.Contains(lower, "imposta di bollo"):
		return capitalize(operazione) + " - " + dettagli
	case strings.Contains(lower, "investimento"):
		return "Investimento - " + dettagli
	case strings.Contains(strings.ToUpper(operazione), "BANCOMAT PAY"):
		return "BANCOMAT Pay - " + dettagli
	case strings.Contains(operazione, "Pagamento Delega F24"),
		strings.Contains(operazione, "Pagamento Mav"):
		return operazione + " - " + dettagli
	case strings.Contains(lower, "premio polizza"):
		return capitalize(operazione) + " - " + capitalize(dettagli)
	case strings.Contains(lower, "stipendio"):
		if _, after, ok := strings.Cut(dettagli, "STIPENDIO"); ok {
			info := strings.TrimSpace(after)
			info, _, _ = strings.Cut(info, "Bonifico A Vostro Favore")
			return "Stipendio - " + strings.TrimSpace(info)
		}
		return "Stipendio - " + dettagli
	case strings.Contains(lower, "assegn"):
		return operazione + " - " + dettagli
	}

	if dettagli != "" {
		return dettagli
	}
	return operazione
}

// extractType classifies the movement. Card movements short-circuit to the
// prepaid-card label; the "Carta N." marker is checked in the detail field,
// not the operation field.
func (p *Intesa) extractType(operazione, dettagli, contoOCarta string) string {
	if contoOCarta != "" && !strings.Contains(contoOCarta, "Conto") {
		return txtype.CartaPrepagata
	}
	if strings.Contains(dettagli, "Carta N.") {
		return txtype.PagamentoConCarta
	}
	return txtype.Resolve(txtype.IntesaMap, operazione, txtype.Altro)
}

// capitalize uppercases the first rune and lowercases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
