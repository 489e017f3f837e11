// Package txtype holds the closed vocabulary of canonical transaction-type
// labels and the per-bank lookup tables that map free-text operation tokens
// onto it. The resolution mechanism (exact match, then longest registered
// substring, then a bank default) is shared by every parser.
package txtype

import (
	"sort"
	"strings"
)

// Canonical transaction-type labels.
const (
	Altro                  = "Altro"
	AddebitoDiretto        = "Addebito diretto"
	Assegno                = "Assegno"
	BancomatPay            = "BANCOMAT Pay"
	BonificoEffettuato     = "Bonifico effettuato"
	BonificoRicevuto       = "Bonifico ricevuto"
	CanoneCC               = "Canone CC"
	CanoneInvestimento     = "Canone investimento"
	CartaDiCredito         = "Carta di credito"
	CartaPrepagata         = "Carta prepagata"
	CommissioneSuBonifico  = "Commissione su bonifico/addebito diretto"
	Giroconto              = "Giroconto"
	ImportoInizialeSuConto = "Importo iniziale su conto"
	ImpostaDiBollo         = "Imposta di bollo"
	TasseInvestimenti      = "Tasse investimenti"
	Investimento           = "Investimento"
	PagamentoConCarta      = "Pagamento con carta"
	PagamentoF24           = "Pagamento F24"
	PagamentoMav           = "Pagamento Mav"
	PrelievoContanti       = "Prelievo contanti"
	PremioPolizza          = "Premio polizza assicurativa"
	RicaricaCartaPrepagata = "Ricarica Carta Prepagata"
	Stipendio              = "Stipendio"
)

// IntesaMap keys on the lowercased operation field.
var IntesaMap = map[string]string{
	"pagamento adue":                                 AddebitoDiretto,
	"addebito diretto":                               AddebitoDiretto,
	"assegni":                                        Assegno,
	"assegni circolari emessi":                       Assegno,
	"bancomat pay":                                   BancomatPay,
	"fast pay":                                       BancomatPay,
	"beu tramite internet banking":                   BonificoEffettuato,
	"bonifico disposto a favore di":                  BonificoEffettuato,
	"bonifico istantaneo da voi disposto a favore di": BonificoEffettuato,
	"disposizione di bonifico":                       BonificoEffettuato,
	"accredito beu con contabile":                    BonificoRicevuto,
	"accredito bonifico istantaneo":                  BonificoRicevuto,
	"bonifico disposto da":                           BonificoRicevuto,
	"bonifico istantaneo disposto da":                BonificoRicevuto,
	"canone":                                         CanoneInvestimento,
	"ritenute su titoli esteri":                      TasseInvestimenti,
	"commiss":                                        CommissioneSuBonifico,
	"costo bonifico istantaneo":                      CommissioneSuBonifico,
	"maggiorazione bonifico istantaneo":              CommissioneSuBonifico,
	"giroconto":                                      Giroconto,
	"saldo contabile iniziale":                       ImportoInizialeSuConto,
	"imposta di bollo":                               ImpostaDiBollo,
	"investimento":                                   Investimento,
	"pagamento premio assicurativo":                  Investimento,
	"carta n.":                                       PagamentoConCarta,
	"deleghe fisco":                                  PagamentoF24,
	"pagamento":                                      PagamentoF24,
	"pagamento delega f24":                           PagamentoF24,
	"pagamento mav":                                  PagamentoMav,
	"premio polizza":                                 PremioPolizza,
	"ricarica carta prepagata":                       RicaricaCartaPrepagata,
	"stipendio":                                      Stipendio,
}

// AllianzMap keys on the lowercased token before the first dash of the
// composite description field.
var AllianzMap = map[string]string{
	"addeb. diretto":  AddebitoDiretto,
	"pagam. diversi":  AddebitoDiretto,
	"ass. circolare":  Assegno,
	"disposizione":    BonificoEffettuato,
	"bonif. v/fav.":   BonificoRicevuto,
	"st. add. generi": BonificoRicevuto,
	"addebito canone": CanoneCC,
	"addebito nexi":   CartaDiCredito,
	"cartasi":         CartaDiCredito,
	"imposta bollo":   ImpostaDiBollo,
	"imposte/tasse":   TasseInvestimenti,
	"pagam. pos":      PagamentoConCarta,
	"delega unica":    PagamentoF24,
	"bancomat":        PrelievoContanti,
	"emolumenti":      Stipendio,
}

// FinecoMap keys on the lowercased raw label column.
var FinecoMap = map[string]string{
	"pagamento visa debit": PagamentoConCarta,
	"bancomat":             PagamentoConCarta,
	"visa debit":           PagamentoConCarta,
	"pagamento bancomat":   PagamentoConCarta,
	"giroconto":            Giroconto,
	"sepa direct debit":    AddebitoDiretto,
	"stipendio":            Stipendio,
	"bonifico ricevuto":    BonificoRicevuto,
	"bonifico effettuato":  BonificoEffettuato,
}

// Resolve maps a raw token against a bank table. The token is lowercased
// and trimmed; an exact key wins, otherwise the longest registered key
// contained in the token, otherwise fallback.
func Resolve(table map[string]string, token, fallback string) string {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" {
		return fallback
	}
	if label, ok := table[t]; ok {
		return label
	}
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	// Longest key first so the most specific pattern wins.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.Contains(t, k) {
			return table[k]
		}
	}
	return fallback
}

// Lookup is the exact-only variant used by banks whose tables are keyed on
// an already-isolated token.
func Lookup(table map[string]string, token, fallback string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	if label, ok := table[t]; ok {
		return label, true
	}
	return fallback, false
}
