// Package parser defines the canonical transaction record, the bank parser
// capability interface and the registry of the closed set of supported banks.
package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avezzali/estratto/internal/domain/ingest/reader"
)

var (
	// ErrNoParserForBank is returned when no parser is registered for a bank id.
	ErrNoParserForBank = errors.New("no parser registered for bank")
	// ErrStructuralMismatch is returned when a file does not have the
	// columns the selected parser requires.
	ErrStructuralMismatch = errors.New("file structure does not match bank format")
)

// Transaction is the bank-agnostic record every parser emits. Amount sign
// encodes debit (negative) vs credit (positive). Never mutated after creation.
type Transaction struct {
	Bank        string
	Account     string
	Date        time.Time
	Amount      decimal.Decimal
	Description *string
	Details     *string
	Category    *string
	Type        *string
	IsSpecial   bool
}

// Key returns the identity of the transaction across every field except
// amount. Used for intra-file collapsing.
func (t Transaction) Key() string {
	return strings.Join([]string{
		t.Bank,
		t.Account,
		t.Date.Format("2006-01-02"),
		Deref(t.Description),
		Deref(t.Details),
		Deref(t.Category),
		Deref(t.Type),
		fmt.Sprintf("%t", t.IsSpecial),
	}, "\x1f")
}

// RowError is the per-row failure record collected while parsing; a bad row
// never aborts the batch.
type RowError struct {
	Row int
	Err error
}

// Result is the complete outcome of parsing one file: the canonical batch,
// an explicit snapshot of the raw table taken before any working-column
// mutation, the raw-row index of each transaction, and the rows dropped.
type Result struct {
	Transactions []Transaction
	Raw          *reader.Table
	RawIndex     []int // RawIndex[i] is the row in Raw that produced Transactions[i]
	Dropped      []RowError
}

// Parser converts one bank's export shape into canonical transactions.
type Parser interface {
	// Bank returns the stable lowercase bank identifier.
	Bank() string
	// HeaderSkip and FooterSkip declare the bank's row-skip conventions.
	HeaderSkip() int
	FooterSkip() int
	// CanParse is a cheap structural probe; it must never panic.
	CanParse(t *reader.Table, filename string) bool
	// Parse transforms the table. A missing required column fails the
	// whole file with ErrStructuralMismatch; a bad row is dropped.
	Parse(t *reader.Table) (*Result, error)
}

// Registry resolves parsers by bank id. Built once at startup and read-only
// afterwards; registration order drives Detect probing.
type Registry struct {
	parsers []Parser
}

// NewRegistry returns a registry with the given parsers registered in order.
func NewRegistry(parsers ...Parser) (*Registry, error) {
	r := &Registry{}
	for _, p := range parsers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a parser. Bank ids are unique case-insensitively.
func (r *Registry) Register(p Parser) error {
	id := strings.ToLower(p.Bank())
	for _, existing := range r.parsers {
		if strings.ToLower(existing.Bank()) == id {
			return fmt.Errorf("parser already registered for bank %q", p.Bank())
		}
	}
	r.parsers = append(r.parsers, p)
	return nil
}

// ByBank resolves a parser by bank id, case-insensitively.
func (r *Registry) ByBank(id string) (Parser, error) {
	for _, p := range r.parsers {
		if strings.EqualFold(p.Bank(), id) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoParserForBank, id)
}

// Detect probes CanParse in registration order; first match wins.
func (r *Registry) Detect(t *reader.Table, filename string) (Parser, bool) {
	for _, p := range r.parsers {
		if canParseSafe(p, t, filename) {
			return p, true
		}
	}
	return nil, false
}

// DetectFile probes each parser against the file read with that parser's
// own skip counts. A table read without skips would show banner text as
// headers, so every probe needs its candidate's framing. Returns the
// matching parser together with the table it matched on.
func (r *Registry) DetectFile(path string) (Parser, *reader.Table, bool) {
	name := filepath.Base(path)
	for _, p := range r.parsers {
		t, err := reader.Read(path, reader.Options{
			HeaderSkip: p.HeaderSkip(),
			FooterSkip: p.FooterSkip(),
		})
		if err != nil {
			continue
		}
		if canParseSafe(p, t, name) {
			return p, t, true
		}
	}
	return nil, nil, false
}

// canParseSafe treats a panicking probe as "cannot parse".
func canParseSafe(p Parser, t *reader.Table, filename string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return p.CanParse(t, filename)
}

// Banks returns the registered bank ids in registration order.
func (r *Registry) Banks() []string {
	ids := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		ids[i] = p.Bank()
	}
	return ids
}

// Ptr returns a pointer to s, or nil when s is blank after trimming.
func Ptr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// requireColumns resolves each named column, failing with
// ErrStructuralMismatch on the first one absent.
func requireColumns(t *reader.Table, names ...string) (map[string]int, error) {
	cols := make(map[string]int, len(names))
	for _, name := range names {
		idx := t.Col(name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: missing column %q", ErrStructuralMismatch, name)
		}
		cols[name] = idx
	}
	return cols, nil
}
