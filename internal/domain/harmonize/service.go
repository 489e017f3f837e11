package harmonize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avezzali/estratto/internal/domain/ingest/parser"
)

// ConfirmFunc is asked before committing when the batch contained
// duplicates; it receives the duplicates found and how many new records
// would be stored. Returning false aborts the commit without error; the
// batch can be re-run later.
type ConfirmFunc func(duplicates []parser.Transaction, newCount int) bool

// Outcome reports what harmonization did with a batch. CommittedIndex[i]
// is the position in the input batch of Committed[i], which keeps the
// raw-row linkage intact across skipped duplicates.
type Outcome struct {
	Inserted         int
	Skipped          int
	Confirmed        bool
	LastObservedDate *time.Time
	Duplicates       []parser.Transaction
	Committed        []Persisted
	CommittedIndex   []int
}

// Service decides, per record, between inserting and skipping.
type Service struct {
	store   Store
	confirm ConfirmFunc
	logger  *slog.Logger
}

// New creates the harmonization service. A nil confirm commits without
// asking.
func New(store Store, confirm ConfirmFunc, logger *slog.Logger) *Service {
	return &Service{store: store, confirm: confirm, logger: logger}
}

// Harmonize splits the batch into already-stored and new records and
// commits the new ones atomically. Running the same batch twice leaves
// the store unchanged the second time.
func (s *Service) Harmonize(ctx context.Context, txs []parser.Transaction) (*Outcome, error) {
	outcome := &Outcome{Confirmed: true}
	if len(txs) == 0 {
		return outcome, nil
	}

	last, err := s.store.MaxDate(ctx, txs[0].Bank, txs[0].Account)
	if err != nil {
		s.logger.Warn("could not read last observed date", "error", err)
	} else {
		outcome.LastObservedDate = last
	}

	var (
		candidates []parser.Transaction
		positions  []int
	)
	for i, tx := range txs {
		exists, err := s.store.FindExact(ctx, tx)
		if err != nil {
			// A failed lookup must not drop the record; treating it as
			// new errs toward a reviewable duplicate instead of silent loss.
			s.logger.Warn("duplicate lookup failed, treating record as new",
				"date", tx.Date.Format("2006-01-02"), "error", err)
			exists = false
		}
		if exists {
			outcome.Skipped++
			outcome.Duplicates = append(outcome.Duplicates, tx)
			continue
		}
		candidates = append(candidates, tx)
		positions = append(positions, i)
	}

	if len(candidates) == 0 {
		s.logger.Info("nothing new to store", "skipped", outcome.Skipped)
		return outcome, nil
	}

	// The gate only fires when duplicates were found; a clean batch
	// commits without asking.
	if s.confirm != nil && outcome.Skipped > 0 && !s.confirm(outcome.Duplicates, len(candidates)) {
		outcome.Confirmed = false
		s.logger.Info("commit declined", "candidates", len(candidates))
		return outcome, nil
	}

	persisted, err := s.store.InsertAll(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("harmonizing batch: %w", err)
	}

	outcome.Inserted = len(persisted)
	outcome.Committed = persisted
	outcome.CommittedIndex = positions

	s.logger.Info("batch harmonized",
		"inserted", outcome.Inserted, "skipped", outcome.Skipped)
	return outcome, nil
}
