package harmonize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avezzali/estratto/internal/domain/ingest/parser"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockStore implements Store in memory, answering Exists from what was
// previously inserted.
type mockStore struct {
	existing  map[string]bool
	maxDate   *time.Time
	existsErr error
	insertErr error
	inserts   int
}

func newMockStore() *mockStore {
	return &mockStore{existing: make(map[string]bool)}
}

func storeKey(tx parser.Transaction) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		tx.Bank, tx.Account, tx.Date.Format("2006-01-02"), tx.Amount.String(), parser.Deref(tx.Description))
}

func (m *mockStore) MaxDate(ctx context.Context, bank, account string) (*time.Time, error) {
	return m.maxDate, nil
}

func (m *mockStore) FindExact(ctx context.Context, tx parser.Transaction) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.existing[storeKey(tx)], nil
}

func (m *mockStore) InsertAll(ctx context.Context, txs []parser.Transaction) ([]Persisted, error) {
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	persisted := make([]Persisted, 0, len(txs))
	for _, tx := range txs {
		m.existing[storeKey(tx)] = true
		m.inserts++
		persisted = append(persisted, Persisted{
			Transaction: tx,
			ID:          uuid.New(),
			CreatedAt:   time.Now(),
		})
	}
	return persisted, nil
}

func tx(t *testing.T, day int, amount, desc string) parser.Transaction {
	t.Helper()
	d, err := decimal.NewFromString(amount)
	require.NoError(t, err)
	return parser.Transaction{
		Bank:        "intesa",
		Account:     "main",
		Date:        time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Amount:      d,
		Description: parser.Ptr(desc),
	}
}

func TestService_Harmonize(t *testing.T) {
	ctx := context.Background()

	t.Run("splits batch into inserted and skipped", func(t *testing.T) {
		store := newMockStore()
		dup := tx(t, 1, "-10.00", "Spesa")
		store.existing[storeKey(dup)] = true

		svc := New(store, nil, testLogger())
		outcome, err := svc.Harmonize(ctx, []parser.Transaction{dup, tx(t, 2, "-20.00", "Benzina")})
		require.NoError(t, err)

		assert.Equal(t, 1, outcome.Inserted)
		assert.Equal(t, 1, outcome.Skipped)
		assert.True(t, outcome.Confirmed)
		require.Len(t, outcome.Committed, 1)
		assert.Equal(t, "Benzina", parser.Deref(outcome.Committed[0].Description))
		assert.Equal(t, []int{1}, outcome.CommittedIndex)
		require.Len(t, outcome.Duplicates, 1)
		assert.Equal(t, "Spesa", parser.Deref(outcome.Duplicates[0].Description))
	})

	t.Run("replaying a batch inserts nothing", func(t *testing.T) {
		store := newMockStore()
		batch := []parser.Transaction{
			tx(t, 1, "-10.00", "Spesa"),
			tx(t, 2, "-20.00", "Benzina"),
		}

		svc := New(store, nil, testLogger())
		first, err := svc.Harmonize(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 2, first.Inserted)

		second, err := svc.Harmonize(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 0, second.Inserted)
		assert.Equal(t, 2, second.Skipped)
		assert.Equal(t, 2, store.inserts)
	})

	t.Run("lookup failure treats the record as new", func(t *testing.T) {
		store := newMockStore()
		store.existsErr = errors.New("connection reset")

		svc := New(store, nil, testLogger())
		outcome, err := svc.Harmonize(ctx, []parser.Transaction{tx(t, 3, "-5.00", "Caffè")})
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.Inserted)
		assert.Equal(t, 0, outcome.Skipped)
	})

	t.Run("declined confirmation commits nothing", func(t *testing.T) {
		store := newMockStore()
		dup := tx(t, 4, "-9.00", "Affitto")
		store.existing[storeKey(dup)] = true
		decline := func(duplicates []parser.Transaction, newCount int) bool { return false }

		svc := New(store, decline, testLogger())
		outcome, err := svc.Harmonize(ctx, []parser.Transaction{dup, tx(t, 4, "-1.00", "Giornale")})
		require.NoError(t, err)
		assert.False(t, outcome.Confirmed)
		assert.Equal(t, 0, outcome.Inserted)
		assert.Equal(t, 1, outcome.Skipped)
		assert.Equal(t, 0, store.inserts)
	})

	t.Run("batch without duplicates commits unprompted", func(t *testing.T) {
		store := newMockStore()
		asked := false
		svc := New(store, func([]parser.Transaction, int) bool { asked = true; return false }, testLogger())

		outcome, err := svc.Harmonize(ctx, []parser.Transaction{tx(t, 8, "-1.00", "Edicola")})
		require.NoError(t, err)
		assert.False(t, asked)
		assert.True(t, outcome.Confirmed)
		assert.Equal(t, 1, outcome.Inserted)
	})

	t.Run("all duplicates never asks for confirmation", func(t *testing.T) {
		store := newMockStore()
		dup := tx(t, 5, "-2.00", "Pane")
		store.existing[storeKey(dup)] = true

		asked := false
		svc := New(store, func([]parser.Transaction, int) bool { asked = true; return true }, testLogger())
		outcome, err := svc.Harmonize(ctx, []parser.Transaction{dup})
		require.NoError(t, err)
		assert.False(t, asked)
		assert.True(t, outcome.Confirmed)
		assert.Equal(t, 1, outcome.Skipped)
	})

	t.Run("last observed date is surfaced", func(t *testing.T) {
		store := newMockStore()
		last := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
		store.maxDate = &last

		svc := New(store, nil, testLogger())
		outcome, err := svc.Harmonize(ctx, []parser.Transaction{tx(t, 6, "-3.00", "Bar")})
		require.NoError(t, err)
		require.NotNil(t, outcome.LastObservedDate)
		assert.Equal(t, last, *outcome.LastObservedDate)
	})

	t.Run("insert failure surfaces", func(t *testing.T) {
		store := newMockStore()
		store.insertErr = ErrInsertFailure

		svc := New(store, nil, testLogger())
		_, err := svc.Harmonize(ctx, []parser.Transaction{tx(t, 7, "-4.00", "Cinema")})
		assert.ErrorIs(t, err, ErrInsertFailure)
	})

	t.Run("empty batch", func(t *testing.T) {
		svc := New(newMockStore(), nil, testLogger())
		outcome, err := svc.Harmonize(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, outcome.Inserted)
		assert.True(t, outcome.Confirmed)
	})
}
