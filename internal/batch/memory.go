package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type memoryStore struct {
	mu      sync.RWMutex
	batches map[string]Batch
}

// NewMemoryStore creates a concurrency-safe in-memory batch store for tests and dev mode.
func NewMemoryStore() Store {
	return &memoryStore{batches: make(map[string]Batch)}
}

func (s *memoryStore) Create(_ context.Context, b Batch) error {
	if b.GramsOriginal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("batch grams must be positive")
	}
	if b.LockPricePerGram.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("batch lock price must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[b.ID]; exists {
		return fmt.Errorf("batch %s exists", b.ID)
	}
	s.batches[b.ID] = b
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return Batch{}, ErrNotFound
	}
	return b, nil
}

func (s *memoryStore) ListActiveFIFO(_ context.Context, userID string) ([]Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Batch
	for _, b := range s.batches {
		if b.UserID == userID && b.Active() {
			out = append(out, b)
		}
	}
	sortFIFO(out)
	return out, nil
}

func (s *memoryStore) ListByUser(_ context.Context, userID string) ([]Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Batch
	for _, b := range s.batches {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sortFIFO(out)
	return out, nil
}

func (s *memoryStore) Consume(_ context.Context, id string, grams decimal.Decimal) (Batch, error) {
	if grams.LessThanOrEqual(decimal.Zero) {
		return Batch{}, fmt.Errorf("consume grams must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return Batch{}, ErrNotFound
	}
	if b.Status == StatusDepleted {
		return Batch{}, ErrDepleted
	}
	if grams.GreaterThan(b.GramsRemaining) {
		return Batch{}, ErrOverConsumption
	}

	b.GramsRemaining = b.GramsRemaining.Sub(grams)
	b.Status = NextStatus(b.GramsRemaining)
	s.batches[id] = b
	return b, nil
}

// sortFIFO orders lots oldest first, ties broken by id, matching the consumption order
// the conversion engine relies on.
func sortFIFO(batches []Batch) {
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].CreatedAt.Equal(batches[j].CreatedAt) {
			return batches[i].ID < batches[j].ID
		}
		return batches[i].CreatedAt.Before(batches[j].CreatedAt)
	})
}
