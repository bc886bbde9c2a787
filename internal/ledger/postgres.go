package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger persists entries in an append-only PostgreSQL table.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const entryColumns = `id, user_id, action, wallet_kind, grams_delta, usd_value_at_event,
        price_per_gram_at_event, related_batches, balance_after_grams, created_at`

// Append writes all entries in one transaction.
func (l *PostgresLedger) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return ErrEmptyAppend
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := AppendTx(ctx, tx, entries...); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AppendTx inserts entries inside an existing transaction so callers can commit
// ledger appends together with batch mutations.
func AppendTx(ctx context.Context, tx pgx.Tx, entries ...Entry) error {
	for _, e := range entries {
		portions, err := json.Marshal(e.RelatedBatches)
		if err != nil {
			return fmt.Errorf("encode batch portions: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO ledger_entries (`+entryColumns+`)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			e.ID, e.UserID, e.Action, e.WalletKind, e.GramsDelta, e.USDValueAtEvent,
			e.PricePerGramAtEvent, portions, e.BalanceAfterGrams, e.CreatedAt.UTC()); err != nil {
			return err
		}
	}
	return nil
}

// ListByUser returns a user's entries ordered by creation time ascending.
func (l *PostgresLedger) ListByUser(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := l.db.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
        WHERE user_id = $1 ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var portions []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.WalletKind, &e.GramsDelta,
			&e.USDValueAtEvent, &e.PricePerGramAtEvent, &portions,
			&e.BalanceAfterGrams, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(portions) > 0 {
			if err := json.Unmarshal(portions, &e.RelatedBatches); err != nil {
				return nil, fmt.Errorf("decode batch portions: %w", err)
			}
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// BalanceGrams folds grams deltas for one wallet kind.
func (l *PostgresLedger) BalanceGrams(ctx context.Context, userID, walletKind string) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(grams_delta), 0) FROM ledger_entries
        WHERE user_id = $1 AND wallet_kind = $2`
	var balance decimal.Decimal
	if err := l.db.QueryRow(ctx, query, userID, walletKind).Scan(&balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}
