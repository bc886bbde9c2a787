package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/ledger"
	"github.com/aurum-pay/aurum_pay/internal/pricing"
)

func TestBalancesProjectLedgerAndBatches(t *testing.T) {
	led := ledger.NewMemory()
	batches := batch.NewMemoryStore()
	oracle := pricing.NewStaticOracle(decimal.NewFromInt(140))
	svc := NewService(led, batches, oracle)

	ctx := context.Background()
	userID := uuid.NewString()
	now := time.Now().UTC()

	err := led.Append(ctx,
		ledger.Entry{ID: uuid.NewString(), UserID: userID, Action: ledger.ActionTransferIn,
			WalletKind: ledger.KindMarket, GramsDelta: decimal.NewFromInt(10), CreatedAt: now},
		ledger.Entry{ID: uuid.NewString(), UserID: userID, Action: ledger.ActionLock,
			WalletKind: ledger.KindFixed, GramsDelta: decimal.NewFromInt(50), CreatedAt: now},
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	lot := batch.Batch{
		ID:               uuid.NewString(),
		UserID:           userID,
		GramsOriginal:    decimal.NewFromInt(50),
		GramsRemaining:   decimal.NewFromInt(50),
		LockPricePerGram: decimal.NewFromInt(150),
		USDValueReserved: decimal.NewFromInt(7500),
		Status:           batch.StatusActive,
		CreatedAt:        now,
	}
	if err := batches.Create(ctx, lot); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	balances, err := svc.Balances(ctx, userID)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("expected 2 wallets, got %d", len(balances))
	}

	market, fixed := balances[0], balances[1]
	if market.Kind != ledger.KindMarket || !market.AvailableGrams.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected market balance: %+v", market)
	}
	if !market.USDValueKnown || !market.USDValue.Equal(decimal.NewFromInt(1400)) {
		t.Fatalf("expected market USD 1400, got %+v", market)
	}
	if fixed.Kind != ledger.KindFixed || !fixed.AvailableGrams.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected fixed balance: %+v", fixed)
	}
	// Fixed wallet is valued at the locked price, not the live one.
	if !fixed.USDValue.Equal(decimal.NewFromInt(7500)) {
		t.Fatalf("expected fixed USD 7500, got %s", fixed.USDValue)
	}
}

func TestBalancesSurviveStaleOracle(t *testing.T) {
	led := ledger.NewMemory()
	batches := batch.NewMemoryStore()
	svc := NewService(led, batches, pricing.FixedOracle{Err: pricing.ErrPriceUnavailable})

	ctx := context.Background()
	userID := uuid.NewString()
	err := led.Append(ctx, ledger.Entry{
		ID: uuid.NewString(), UserID: userID, Action: ledger.ActionTransferIn,
		WalletKind: ledger.KindMarket, GramsDelta: decimal.NewFromInt(10),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	balances, err := svc.Balances(ctx, userID)
	if err != nil {
		t.Fatalf("balances should not fail on stale oracle: %v", err)
	}
	market := balances[0]
	if market.USDValueKnown {
		t.Fatalf("market USD value should be unknown without a price")
	}
	if !market.AvailableGrams.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("grams must not depend on the oracle: %+v", market)
	}
}
