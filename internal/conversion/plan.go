package conversion

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/certificate"
	"github.com/aurum-pay/aurum_pay/internal/ledger"
)

// Consumption names the grams to withdraw from one lot.
type Consumption struct {
	BatchID string
	Grams   decimal.Decimal
}

// Plan is the full set of writes one operation produces. The engine validates and
// builds the plan first; Store.Commit then applies it atomically, so a failed
// operation leaves no partial state behind.
type Plan struct {
	UserID       string
	NewBatch     *batch.Batch
	Consumptions []Consumption
	Entries      []ledger.Entry
	Certificate  *certificate.Certificate
}

// Store gives the engine its reads and the atomic commit. The batch set and ledger
// for one user form a single logical resource; Commit applies the whole plan in one
// transaction or not at all.
type Store interface {
	ActiveBatchesFIFO(ctx context.Context, userID string) ([]batch.Batch, error)
	BalanceGrams(ctx context.Context, userID, walletKind string) (decimal.Decimal, error)
	Commit(ctx context.Context, plan Plan) error
}
