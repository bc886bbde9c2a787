package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/ledger"
	"github.com/aurum-pay/aurum_pay/internal/pricing"
)

// Service projects wallet balances from the ledger and batch state. Balances are
// never stored; reading them is always a fold over the source of truth.
type Service struct {
	ledger  ledger.Ledger
	batches batch.Store
	oracle  pricing.Oracle
}

// NewService builds a wallet projection service.
func NewService(led ledger.Ledger, batches batch.Store, oracle pricing.Oracle) *Service {
	return &Service{ledger: led, batches: batches, oracle: oracle}
}

// Balances returns both wallets for a user. The market wallet is valued at the live
// price when one is available; a stale oracle degrades the valuation, not the grams.
// The fixed wallet is valued at each lot's own locked price.
func (s *Service) Balances(ctx context.Context, userID string) ([]Balance, error) {
	now := time.Now().UTC()

	marketGrams, err := s.ledger.BalanceGrams(ctx, userID, ledger.KindMarket)
	if err != nil {
		return nil, err
	}
	fixedGrams, err := s.ledger.BalanceGrams(ctx, userID, ledger.KindFixed)
	if err != nil {
		return nil, err
	}

	market := Balance{Kind: ledger.KindMarket, AvailableGrams: marketGrams, AsOf: now}
	if quote, err := s.oracle.Current(ctx); err == nil {
		market.USDValue = ledger.RoundUSD(marketGrams.Mul(quote.PricePerGram))
		market.USDValueKnown = true
	} else if !errors.Is(err, pricing.ErrPriceUnavailable) {
		return nil, err
	}

	active, err := s.batches.ListActiveFIFO(ctx, userID)
	if err != nil {
		return nil, err
	}
	fixedUSD := decimal.Zero
	for _, b := range active {
		fixedUSD = fixedUSD.Add(ledger.RoundUSD(b.GramsRemaining.Mul(b.LockPricePerGram)))
	}

	fixed := Balance{
		Kind:           ledger.KindFixed,
		AvailableGrams: fixedGrams,
		USDValue:       fixedUSD,
		USDValueKnown:  true,
		AsOf:           now,
	}

	return []Balance{market, fixed}, nil
}
