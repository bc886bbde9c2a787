package ledger

import "github.com/shopspring/decimal"

const (
	// GramPrecision is the ledger precision for gold quantities.
	GramPrecision = 6
	// USDPrecision is the ledger precision for USD values.
	USDPrecision = 2
)

// RoundGrams truncates toward zero at gram precision. Truncation (never rounding up)
// is applied at every derivation step so repeated conversions cannot synthesize
// value; any remainder below the minimum unit stays with the platform.
func RoundGrams(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(GramPrecision)
}

// RoundUSD truncates toward zero at USD precision.
func RoundUSD(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(USDPrecision)
}
