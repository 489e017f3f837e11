package rawrecord

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository is the pgx-backed Store.
type Repository struct {
	db DB
}

// NewRepository creates a raw-record repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) InsertIntesa(ctx context.Context, raw IntesaRaw) error {
	query := `
		INSERT INTO intesa_raw_transactions (
			transaction_id, data, operazione, dettagli, conto_o_carta,
			contabilizzazione, categoria, valuta, importo
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		raw.TransactionID, raw.Data, raw.Operazione, raw.Dettagli, raw.ContoOCarta,
		raw.Contabilizzazione, raw.Categoria, raw.Valuta, raw.Importo,
	)
	if err != nil {
		return fmt.Errorf("inserting intesa raw row: %w", err)
	}
	return nil
}

func (r *Repository) InsertAllianz(ctx context.Context, raw AllianzRaw) error {
	query := `
		INSERT INTO allianz_raw_transactions (
			transaction_id, data_contabile, data_valuta, descrizione, importo
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		raw.TransactionID, raw.DataContabile, raw.DataValuta, raw.Descrizione, raw.Importo,
	)
	if err != nil {
		return fmt.Errorf("inserting allianz raw row: %w", err)
	}
	return nil
}
