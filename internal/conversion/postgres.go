package conversion

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/certificate"
	"github.com/aurum-pay/aurum_pay/internal/ledger"
)

// PostgresStore applies plans in a single database transaction. Reads go through the
// regular package stores; Commit re-validates consumptions under FOR UPDATE, so even
// a writer that slipped past the engine's keyed mutex (a second API replica) cannot
// over-consume a lot.
type PostgresStore struct {
	db      *pgxpool.Pool
	batches *batch.PostgresStore
	ledger  *ledger.PostgresLedger
}

// NewPostgresStore builds a Postgres-backed conversion store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		db:      db,
		batches: batch.NewPostgresStore(db),
		ledger:  ledger.NewPostgresLedger(db),
	}
}

// ActiveBatchesFIFO lists the user's lots in consumption order.
func (s *PostgresStore) ActiveBatchesFIFO(ctx context.Context, userID string) ([]batch.Batch, error) {
	return s.batches.ListActiveFIFO(ctx, userID)
}

// BalanceGrams folds the user's ledger for one wallet kind.
func (s *PostgresStore) BalanceGrams(ctx context.Context, userID, walletKind string) (decimal.Decimal, error) {
	return s.ledger.BalanceGrams(ctx, userID, walletKind)
}

// Commit applies the plan in one transaction.
func (s *PostgresStore) Commit(ctx context.Context, plan Plan) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if plan.NewBatch != nil {
		if err := batch.CreateTx(ctx, tx, *plan.NewBatch); err != nil {
			return err
		}
	}
	for _, c := range plan.Consumptions {
		if _, err := batch.ConsumeTx(ctx, tx, c.BatchID, c.Grams); err != nil {
			return err
		}
	}
	if len(plan.Entries) > 0 {
		if err := ledger.AppendTx(ctx, tx, plan.Entries...); err != nil {
			return err
		}
	}
	if plan.Certificate != nil {
		if err := certificate.SaveTx(ctx, tx, *plan.Certificate); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
