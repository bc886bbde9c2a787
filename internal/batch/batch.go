package batch

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// StatusActive marks an untouched lot.
	StatusActive = "active"
	// StatusPartiallyConsumed marks a lot with some grams withdrawn.
	StatusPartiallyConsumed = "partially_consumed"
	// StatusDepleted is terminal; a depleted lot is never mutated again.
	StatusDepleted = "depleted"
)

var (
	// ErrNotFound indicates the referenced batch does not exist.
	ErrNotFound = errors.New("batch not found")

	// ErrOverConsumption indicates an attempt to consume more grams than remain in a
	// lot. The conversion engine validates before consuming, so this firing means a
	// defect, not a user error.
	ErrOverConsumption = errors.New("batch over-consumption")

	// ErrDepleted indicates a mutation attempt on a terminal lot.
	ErrDepleted = errors.New("batch already depleted")
)

// Batch is a single cost-basis lot in a user's fixed wallet, created at lock time.
// The USD value reserved by the lot is fixed forever at grams * lock price. Only
// GramsRemaining and Status change after creation, and remaining only decreases.
type Batch struct {
	ID               string
	UserID           string
	GramsOriginal    decimal.Decimal
	GramsRemaining   decimal.Decimal
	LockPricePerGram decimal.Decimal
	USDValueReserved decimal.Decimal
	Status           string
	CreatedAt        time.Time
}

// Active reports whether the lot still holds grams.
func (b Batch) Active() bool {
	return b.Status != StatusDepleted && b.GramsRemaining.GreaterThan(decimal.Zero)
}

// Store persists cost-basis lots.
type Store interface {
	Create(ctx context.Context, b Batch) error
	Get(ctx context.Context, id string) (Batch, error)
	// ListActiveFIFO returns the user's non-depleted lots ordered by creation time
	// ascending, ties broken by id ascending, so consumption order is deterministic.
	ListActiveFIFO(ctx context.Context, userID string) ([]Batch, error)
	ListByUser(ctx context.Context, userID string) ([]Batch, error)
	// Consume withdraws grams from a lot, updating remaining grams and status.
	Consume(ctx context.Context, id string, grams decimal.Decimal) (Batch, error)
}

// NextStatus returns the status a lot holds after remaining drops to the given value.
func NextStatus(remaining decimal.Decimal) string {
	if remaining.LessThanOrEqual(decimal.Zero) {
		return StatusDepleted
	}
	return StatusPartiallyConsumed
}
