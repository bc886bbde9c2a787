package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists cost-basis lots in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed batch store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const batchColumns = `id, user_id, grams_original, grams_remaining, lock_price_per_gram, usd_value_reserved, status, created_at`

// Create inserts a new lot.
func (s *PostgresStore) Create(ctx context.Context, b Batch) error {
	if b.GramsOriginal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("batch grams must be positive")
	}
	if b.LockPricePerGram.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("batch lock price must be positive")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO batches (`+batchColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.UserID, b.GramsOriginal, b.GramsRemaining, b.LockPricePerGram,
		b.USDValueReserved, b.Status, b.CreatedAt.UTC())
	return err
}

// Get fetches a lot by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Batch, error) {
	row := s.db.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, id)
	b, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	return b, err
}

// ListActiveFIFO returns non-depleted lots in consumption order.
func (s *PostgresStore) ListActiveFIFO(ctx context.Context, userID string) ([]Batch, error) {
	rows, err := s.db.Query(ctx, `SELECT `+batchColumns+` FROM batches
        WHERE user_id = $1 AND status <> $2 AND grams_remaining > 0
        ORDER BY created_at ASC, id ASC`, userID, StatusDepleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

// ListByUser returns all of a user's lots, oldest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Batch, error) {
	rows, err := s.db.Query(ctx, `SELECT `+batchColumns+` FROM batches
        WHERE user_id = $1 ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

// Consume withdraws grams from a lot under a row lock. The remaining-grams guard in the
// UPDATE keeps over-consumption impossible even under concurrent writers.
func (s *PostgresStore) Consume(ctx context.Context, id string, grams decimal.Decimal) (Batch, error) {
	if grams.LessThanOrEqual(decimal.Zero) {
		return Batch{}, fmt.Errorf("consume grams must be positive")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Batch{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	b, err := ConsumeTx(ctx, tx, id, grams)
	if err != nil {
		return Batch{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// ConsumeTx applies a consumption inside an existing transaction so the conversion
// engine can commit batch mutations and ledger appends as one unit.
func ConsumeTx(ctx context.Context, tx pgx.Tx, id string, grams decimal.Decimal) (Batch, error) {
	row := tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, id)
	b, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	if err != nil {
		return Batch{}, err
	}
	if b.Status == StatusDepleted {
		return Batch{}, ErrDepleted
	}
	if grams.GreaterThan(b.GramsRemaining) {
		return Batch{}, ErrOverConsumption
	}

	b.GramsRemaining = b.GramsRemaining.Sub(grams)
	b.Status = NextStatus(b.GramsRemaining)

	if _, err := tx.Exec(ctx, `UPDATE batches SET grams_remaining = $1, status = $2 WHERE id = $3`,
		b.GramsRemaining, b.Status, b.ID); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// CreateTx inserts a lot inside an existing transaction.
func CreateTx(ctx context.Context, tx pgx.Tx, b Batch) error {
	_, err := tx.Exec(ctx, `INSERT INTO batches (`+batchColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.UserID, b.GramsOriginal, b.GramsRemaining, b.LockPricePerGram,
		b.USDValueReserved, b.Status, b.CreatedAt.UTC())
	return err
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	if err := row.Scan(&b.ID, &b.UserID, &b.GramsOriginal, &b.GramsRemaining,
		&b.LockPricePerGram, &b.USDValueReserved, &b.Status, &b.CreatedAt); err != nil {
		return Batch{}, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

func collectBatches(rows pgx.Rows) ([]Batch, error) {
	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
