// Package harmonize reconciles a parsed statement batch against the
// transactions already stored, inserting only the records not seen before.
package harmonize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avezzali/estratto/internal/domain/ingest/parser"
)

// ErrInsertFailure marks a batch insert that was rolled back.
var ErrInsertFailure = errors.New("transaction batch insert failed")

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it too, which is what the repository tests run against.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Persisted is a canonical transaction as stored, with its assigned id.
type Persisted struct {
	parser.Transaction
	ID        uuid.UUID
	CreatedAt time.Time
}

// Store is the persistence boundary the harmonization service works
// against.
type Store interface {
	// MaxDate returns the most recent stored transaction date for the
	// bank and account, or nil when none exist.
	MaxDate(ctx context.Context, bank, account string) (*time.Time, error)
	// FindExact reports whether an identical transaction is already
	// stored. Identity is (bank, account, date, amount, description).
	FindExact(ctx context.Context, tx parser.Transaction) (bool, error)
	// InsertAll stores the batch atomically; either every record is
	// inserted or none are.
	InsertAll(ctx context.Context, txs []parser.Transaction) ([]Persisted, error)
}

// Repository is the pgx-backed Store.
type Repository struct {
	db DB
}

// NewRepository creates a transaction repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) MaxDate(ctx context.Context, bank, account string) (*time.Time, error) {
	query := `SELECT MAX(date) FROM transactions WHERE bank = $1 AND account = $2`

	var max *time.Time
	if err := r.db.QueryRow(ctx, query, bank, account).Scan(&max); err != nil {
		return nil, fmt.Errorf("querying max date: %w", err)
	}
	return max, nil
}

func (r *Repository) FindExact(ctx context.Context, tx parser.Transaction) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE bank = $1
			  AND account = $2
			  AND date = $3
			  AND amount = $4
			  AND COALESCE(description, '') = $5
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query,
		tx.Bank, tx.Account, tx.Date, tx.Amount, parser.Deref(tx.Description),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking for duplicate: %w", err)
	}
	return exists, nil
}

func (r *Repository) InsertAll(ctx context.Context, txs []parser.Transaction) ([]Persisted, error) {
	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", ErrInsertFailure, err)
	}
	defer dbTx.Rollback(ctx)

	query := `
		INSERT INTO transactions (
			bank, account, date, amount, description, details, category, type, is_special
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	persisted := make([]Persisted, 0, len(txs))
	for _, tx := range txs {
		p := Persisted{Transaction: tx}
		err := dbTx.QueryRow(ctx, query,
			tx.Bank, tx.Account, tx.Date, tx.Amount,
			tx.Description, tx.Details, tx.Category, tx.Type, tx.IsSpecial,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInsertFailure, err)
		}
		persisted = append(persisted, p)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", ErrInsertFailure, err)
	}
	return persisted, nil
}
