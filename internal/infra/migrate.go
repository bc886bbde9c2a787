package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS batches (
        id UUID PRIMARY KEY,
        user_id UUID NOT NULL,
        grams_original NUMERIC(20, 6) NOT NULL CHECK (grams_original > 0),
        grams_remaining NUMERIC(20, 6) NOT NULL CHECK (grams_remaining >= 0),
        lock_price_per_gram NUMERIC(20, 6) NOT NULL CHECK (lock_price_per_gram > 0),
        usd_value_reserved NUMERIC(20, 2) NOT NULL,
        status TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_batches_user_fifo
        ON batches (user_id, created_at, id)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
        id UUID PRIMARY KEY,
        user_id UUID NOT NULL,
        action TEXT NOT NULL,
        wallet_kind TEXT NOT NULL,
        grams_delta NUMERIC(20, 6) NOT NULL,
        usd_value_at_event NUMERIC(20, 2) NOT NULL,
        price_per_gram_at_event NUMERIC(20, 6),
        related_batches JSONB,
        balance_after_grams NUMERIC(20, 6) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_time
        ON ledger_entries (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS certificates (
        id UUID PRIMARY KEY,
        user_id UUID NOT NULL,
        kind TEXT NOT NULL,
        fingerprint TEXT NOT NULL,
        content JSONB NOT NULL,
        ledger_entry_ids TEXT[],
        batch_ids TEXT[],
        status TEXT NOT NULL,
        issued_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_certificates_user
        ON certificates (user_id, issued_at)`,
}

// Migrate applies the schema idempotently at startup.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
