package conversion

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/certificate"
	"github.com/aurum-pay/aurum_pay/internal/ledger"
)

// MemoryStore applies plans against in-memory backends. A single mutex around
// Commit gives the same all-or-nothing behavior the Postgres transaction provides:
// consumptions are validated against every lot before anything is applied.
type MemoryStore struct {
	mu      sync.Mutex
	batches batch.Store
	ledger  ledger.Ledger
	certs   certificate.Store
}

// NewMemoryStore builds a store over the given in-memory backends.
func NewMemoryStore(batches batch.Store, led ledger.Ledger, certs certificate.Store) *MemoryStore {
	return &MemoryStore{batches: batches, ledger: led, certs: certs}
}

// ActiveBatchesFIFO lists the user's lots in consumption order.
func (s *MemoryStore) ActiveBatchesFIFO(ctx context.Context, userID string) ([]batch.Batch, error) {
	return s.batches.ListActiveFIFO(ctx, userID)
}

// BalanceGrams folds the user's ledger for one wallet kind.
func (s *MemoryStore) BalanceGrams(ctx context.Context, userID, walletKind string) (decimal.Decimal, error) {
	return s.ledger.BalanceGrams(ctx, userID, walletKind)
}

// Commit applies the plan or nothing at all.
func (s *MemoryStore) Commit(ctx context.Context, plan Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every consumption before the first write.
	for _, c := range plan.Consumptions {
		lot, err := s.batches.Get(ctx, c.BatchID)
		if err != nil {
			return err
		}
		if lot.Status == batch.StatusDepleted {
			return batch.ErrDepleted
		}
		if c.Grams.GreaterThan(lot.GramsRemaining) {
			return batch.ErrOverConsumption
		}
	}

	if plan.NewBatch != nil {
		if err := s.batches.Create(ctx, *plan.NewBatch); err != nil {
			return err
		}
	}
	for _, c := range plan.Consumptions {
		if _, err := s.batches.Consume(ctx, c.BatchID, c.Grams); err != nil {
			return err
		}
	}
	if len(plan.Entries) > 0 {
		if err := s.ledger.Append(ctx, plan.Entries...); err != nil {
			return err
		}
	}
	if plan.Certificate != nil {
		if err := s.certs.Save(ctx, *plan.Certificate); err != nil {
			return err
		}
	}
	return nil
}
