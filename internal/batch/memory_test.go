package batch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestBatch(userID string, grams, price int64, createdAt time.Time) Batch {
	g := decimal.NewFromInt(grams)
	p := decimal.NewFromInt(price)
	return Batch{
		ID:               uuid.NewString(),
		UserID:           userID,
		GramsOriginal:    g,
		GramsRemaining:   g,
		LockPricePerGram: p,
		USDValueReserved: g.Mul(p),
		Status:           StatusActive,
		CreatedAt:        createdAt,
	}
}

func TestListActiveFIFOOrdersByCreationThenID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.NewString()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newest := newTestBatch(userID, 10, 150, base.Add(2*time.Hour))
	oldest := newTestBatch(userID, 20, 140, base)
	tieA := newTestBatch(userID, 30, 145, base.Add(time.Hour))
	tieB := newTestBatch(userID, 40, 145, base.Add(time.Hour))
	if tieA.ID > tieB.ID {
		tieA, tieB = tieB, tieA
	}

	for _, b := range []Batch{newest, oldest, tieB, tieA} {
		if err := store.Create(ctx, b); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := store.ListActiveFIFO(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	want := []string{oldest.ID, tieA.ID, tieB.ID, newest.ID}
	if len(got) != len(want) {
		t.Fatalf("expected %d batches, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s got %s", i, id, got[i].ID)
		}
	}
}

func TestConsumeTransitionsStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	b := newTestBatch(uuid.NewString(), 100, 150, time.Now().UTC())
	if err := store.Create(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}

	partial, err := store.Consume(ctx, b.ID, decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("consume 40: %v", err)
	}
	if partial.Status != StatusPartiallyConsumed {
		t.Fatalf("expected partially_consumed, got %s", partial.Status)
	}
	if !partial.GramsRemaining.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected 60 remaining, got %s", partial.GramsRemaining)
	}

	depleted, err := store.Consume(ctx, b.ID, decimal.NewFromInt(60))
	if err != nil {
		t.Fatalf("consume 60: %v", err)
	}
	if depleted.Status != StatusDepleted {
		t.Fatalf("expected depleted, got %s", depleted.Status)
	}
	if !depleted.GramsRemaining.IsZero() {
		t.Fatalf("expected zero remaining, got %s", depleted.GramsRemaining)
	}
}

func TestConsumeRejectsOverConsumption(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	b := newTestBatch(uuid.NewString(), 10, 150, time.Now().UTC())
	if err := store.Create(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.Consume(ctx, b.ID, decimal.NewFromInt(11)); err != ErrOverConsumption {
		t.Fatalf("expected ErrOverConsumption, got %v", err)
	}

	// A failed consume must not change the lot.
	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.GramsRemaining.Equal(decimal.NewFromInt(10)) || got.Status != StatusActive {
		t.Fatalf("lot mutated by rejected consume: %+v", got)
	}
}

func TestDepletedLotIsTerminal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	b := newTestBatch(uuid.NewString(), 5, 150, time.Now().UTC())
	if err := store.Create(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Consume(ctx, b.ID, decimal.NewFromInt(5)); err != nil {
		t.Fatalf("deplete: %v", err)
	}

	if _, err := store.Consume(ctx, b.ID, decimal.NewFromInt(1)); err != ErrDepleted {
		t.Fatalf("expected ErrDepleted, got %v", err)
	}

	active, err := store.ListActiveFIFO(ctx, b.UserID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("depleted lot listed as active")
	}
}
