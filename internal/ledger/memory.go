package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type memoryLedger struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemory creates a concurrency-safe in-memory ledger useful for unit tests and
// dev mode.
func NewMemory() Ledger {
	return &memoryLedger{}
}

func (l *memoryLedger) Append(_ context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return ErrEmptyAppend
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entries...)
	return nil
}

func (l *memoryLedger) ListByUser(_ context.Context, userID string) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for _, e := range l.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (l *memoryLedger) BalanceGrams(_ context.Context, userID, walletKind string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	balance := decimal.Zero
	for _, e := range l.entries {
		if e.UserID == userID && e.WalletKind == walletKind {
			balance = balance.Add(e.GramsDelta)
		}
	}
	return balance, nil
}
