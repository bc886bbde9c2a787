package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientBalance occurs when an operation asks for more grams than the
	// wallet holds.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrEmptyAppend indicates an append was attempted with no entries.
	ErrEmptyAppend = errors.New("no entries to append")
)

const (
	// ActionLock moves grams from the market wallet into a new fixed-wallet lot.
	ActionLock = "lock"
	// ActionUnlock consumes fixed-wallet lots and credits the market wallet.
	ActionUnlock = "unlock"
	// ActionTransferIn credits the market wallet without price conversion.
	ActionTransferIn = "transfer_in"
	// ActionTransferOut debits the market wallet without price conversion.
	ActionTransferOut = "transfer_out"
)

const (
	// KindMarket is the wallet whose USD value floats with the live price.
	KindMarket = "market"
	// KindFixed is the wallet composed of price-locked lots.
	KindFixed = "fixed"
)

// BatchPortion records the grams an entry took from one lot and the price that lot
// was locked at.
type BatchPortion struct {
	BatchID          string          `json:"batch_id"`
	Grams            decimal.Decimal `json:"grams"`
	LockPricePerGram decimal.Decimal `json:"lock_price_per_gram"`
}

// Entry is one immutable, append-only ledger record. Entries are never updated or
// deleted; wallet balances are a projection over them.
type Entry struct {
	ID                  string
	UserID              string
	Action              string
	WalletKind          string
	GramsDelta          decimal.Decimal
	USDValueAtEvent     decimal.Decimal
	PricePerGramAtEvent decimal.Decimal
	RelatedBatches      []BatchPortion
	BalanceAfterGrams   decimal.Decimal
	CreatedAt           time.Time
}

// Ledger is the append-only source of truth for wallet balances.
type Ledger interface {
	// Append writes entries atomically; either all land or none do.
	Append(ctx context.Context, entries ...Entry) error
	// ListByUser returns a user's entries ordered by creation time ascending.
	ListByUser(ctx context.Context, userID string) ([]Entry, error)
	// BalanceGrams folds grams deltas for one wallet kind.
	BalanceGrams(ctx context.Context, userID, walletKind string) (decimal.Decimal, error)
}
