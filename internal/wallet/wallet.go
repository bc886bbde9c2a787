package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the derived view of one wallet. Nothing here is stored; grams come from
// folding the ledger and USD values are computed on read.
type Balance struct {
	Kind           string
	AvailableGrams decimal.Decimal
	ReservedGrams  decimal.Decimal
	USDValue       decimal.Decimal
	USDValueKnown  bool
	AsOf           time.Time
}
