// Package service orchestrates one statement ingestion: read the file,
// resolve and run the bank parser, collapse intra-file duplicates and
// prepare the batch for harmonization and archival.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avezzali/estratto/internal/domain/ingest/parser"
	"github.com/avezzali/estratto/internal/domain/ingest/reader"
)

// Warning kinds surfaced to the caller alongside the parsed batch.
const (
	WarnFilteredRow  = "filtered_row"
	WarnDuplicate    = "duplicate"
	WarnParsingError = "parsing_error"
)

// Warning is a non-fatal finding produced while building a batch.
type Warning struct {
	Kind    string
	Message string
	Details map[string]any
}

// Batch is a fully parsed statement ready for harmonization. Transactions
// and RawIndex move in lockstep; RawIndex[i] names the row of Raw that
// produced Transactions[i], surviving intra-file collapsing.
type Batch struct {
	Bank         string
	Account      string
	SourcePath   string
	Transactions []parser.Transaction
	Raw          *reader.Table
	RawIndex     []int
	Warnings     []Warning
	FirstDate    time.Time
	LastDate     time.Time
}

// ArchiveName derives the canonical archive filename from the batch
// identity and its observed date range.
func (b *Batch) ArchiveName() string {
	const layout = "2006_01_02"
	ext := strings.ToLower(filepath.Ext(b.SourcePath))
	name := fmt.Sprintf("%s_%s_from_%s_to_%s%s",
		b.Bank, b.Account, b.FirstDate.Format(layout), b.LastDate.Format(layout), ext)
	name = strings.ToLower(name)
	return strings.ReplaceAll(name, " ", "_")
}

// Service wires the reader and the parser registry together.
type Service struct {
	registry *parser.Registry
	dataDir  string
	logger   *slog.Logger
}

// New creates the ingestion service. dataDir is where processed statements
// are archived.
func New(registry *parser.Registry, dataDir string, logger *slog.Logger) *Service {
	return &Service{registry: registry, dataDir: dataDir, logger: logger}
}

// ParseFile ingests one statement file for the given bank and account.
// With an empty bankID the registry reads the file once per candidate
// parser, each with its own skip counts, and keeps the first that
// recognizes the resulting table.
func (s *Service) ParseFile(path, bankID, account string) (*Batch, error) {
	var (
		p     parser.Parser
		table *reader.Table
	)

	if bankID != "" {
		resolved, err := s.registry.ByBank(bankID)
		if err != nil {
			return nil, err
		}
		p = resolved
		table, err = reader.Read(path, reader.Options{
			HeaderSkip: p.HeaderSkip(),
			FooterSkip: p.FooterSkip(),
		})
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	} else {
		detected, t, ok := s.registry.DetectFile(path)
		if !ok {
			return nil, fmt.Errorf("%w: no parser matched %s", parser.ErrNoParserForBank, filepath.Base(path))
		}
		p, table = detected, t
	}

	res, err := p.Parse(table)
	if err != nil {
		return nil, fmt.Errorf("parsing %s as %s: %w", filepath.Base(path), p.Bank(), err)
	}

	batch := &Batch{
		Bank:       p.Bank(),
		Account:    account,
		SourcePath: path,
		Raw:        res.Raw,
	}

	for i := range res.Transactions {
		res.Transactions[i].Account = account
	}

	for _, dropped := range res.Dropped {
		kind := WarnParsingError
		if errors.Is(dropped.Err, parser.ErrRowFiltered) {
			kind = WarnFilteredRow
		}
		batch.Warnings = append(batch.Warnings, Warning{
			Kind:    kind,
			Message: dropped.Err.Error(),
			Details: map[string]any{"row": dropped.Row},
		})
	}

	batch.Transactions, batch.RawIndex, batch.Warnings = collapse(
		res.Transactions, res.RawIndex, batch.Warnings)

	for _, tx := range batch.Transactions {
		if batch.FirstDate.IsZero() || tx.Date.Before(batch.FirstDate) {
			batch.FirstDate = tx.Date
		}
		if tx.Date.After(batch.LastDate) {
			batch.LastDate = tx.Date
		}
	}

	s.logger.Info("parsed statement",
		"bank", batch.Bank,
		"account", batch.Account,
		"transactions", len(batch.Transactions),
		"warnings", len(batch.Warnings))

	return batch, nil
}

// collapse merges rows that are identical on every field except amount by
// summing their amounts. First occurrence wins position and raw-row link;
// each merge is reported as a duplicate warning.
func collapse(txs []parser.Transaction, rawIndex []int, warnings []Warning) ([]parser.Transaction, []int, []Warning) {
	type group struct{ pos int }
	seen := make(map[string]group, len(txs))
	outTxs := make([]parser.Transaction, 0, len(txs))
	outRaw := make([]int, 0, len(rawIndex))

	for i, tx := range txs {
		key := tx.Key()
		if g, ok := seen[key]; ok {
			outTxs[g.pos].Amount = outTxs[g.pos].Amount.Add(tx.Amount)
			warnings = append(warnings, Warning{
				Kind:    WarnDuplicate,
				Message: "merged rows identical except for amount",
				Details: map[string]any{
					"date":        tx.Date.Format("2006-01-02"),
					"description": parser.Deref(tx.Description),
					"row":         rawIndex[i],
				},
			})
			continue
		}
		seen[key] = group{pos: len(outTxs)}
		outTxs = append(outTxs, tx)
		outRaw = append(outRaw, rawIndex[i])
	}
	return outTxs, outRaw, warnings
}

// Archive copies the source statement into the data directory under its
// canonical name. The source is left in place.
func (s *Service) Archive(batch *Batch) (string, error) {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating archive dir: %w", err)
	}

	dst := filepath.Join(s.dataDir, batch.ArchiveName())
	src, err := os.Open(batch.SourcePath)
	if err != nil {
		return "", fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("creating archive copy: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("archiving statement: %w", err)
	}

	s.logger.Info("archived statement", "path", dst)
	return dst, nil
}
