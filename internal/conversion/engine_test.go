package conversion

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/certificate"
	"github.com/aurum-pay/aurum_pay/internal/ledger"
	"github.com/aurum-pay/aurum_pay/internal/logging"
	"github.com/aurum-pay/aurum_pay/internal/pricing"
)

type testEnv struct {
	engine  *Engine
	store   *MemoryStore
	oracle  *pricing.StaticOracle
	batches batch.Store
	ledger  ledger.Ledger
	certs   certificate.Store
}

func newTestEnv(price int64) *testEnv {
	batches := batch.NewMemoryStore()
	led := ledger.NewMemory()
	certs := certificate.NewMemoryStore()
	store := NewMemoryStore(batches, led, certs)
	oracle := pricing.NewStaticOracle(decimal.NewFromInt(price))
	engine := NewEngine(store, oracle, nil, logging.Discard())
	return &testEnv{engine: engine, store: store, oracle: oracle, batches: batches, ledger: led, certs: certs}
}

func (env *testEnv) fund(t *testing.T, userID string, grams int64) {
	t.Helper()
	if _, err := env.engine.Transfer(context.Background(), userID, decimal.NewFromInt(grams), DirectionIn); err != nil {
		t.Fatalf("fund market wallet: %v", err)
	}
}

func (env *testEnv) balance(t *testing.T, userID, kind string) decimal.Decimal {
	t.Helper()
	bal, err := env.ledger.BalanceGrams(context.Background(), userID, kind)
	if err != nil {
		t.Fatalf("balance %s: %v", kind, err)
	}
	return bal
}

func TestLockCreatesBatchAndLedgerEntries(t *testing.T) {
	env := newTestEnv(150)
	ctx := context.Background()
	userID := uuid.NewString()
	env.fund(t, userID, 100)

	res, err := env.engine.Lock(ctx, userID, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	lot, err := env.batches.Get(ctx, res.BatchID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if !lot.GramsOriginal.Equal(decimal.NewFromInt(100)) || !lot.LockPricePerGram.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("unexpected lot: %+v", lot)
	}
	if !lot.USDValueReserved.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("expected 15000 USD reserved, got %s", lot.USDValueReserved)
	}

	if got := env.balance(t, userID, ledger.KindMarket); !got.IsZero() {
		t.Fatalf("expected empty market wallet, got %s", got)
	}
	if got := env.balance(t, userID, ledger.KindFixed); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected fixed wallet 100, got %s", got)
	}
	if len(res.LedgerEntryIDs) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(res.LedgerEntryIDs))
	}
	if res.CertificateID == "" {
		t.Fatalf("expected a certificate")
	}
	if _, err := env.certs.Get(ctx, res.CertificateID); err != nil {
		t.Fatalf("certificate not stored: %v", err)
	}
}

func TestUnlockRoundTripPreservesUSDValue(t *testing.T) {
	env := newTestEnv(150)
	ctx := context.Background()
	userID := uuid.NewString()
	env.fund(t, userID, 100)

	lockRes, err := env.engine.Lock(ctx, userID, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	// Price drops before the unlock; the fixed USD value buys more grams.
	env.oracle.SetPrice(decimal.NewFromInt(140))

	res, err := env.engine.Unlock(ctx, userID, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}

	if !res.USDValueTotal.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("expected 15000 USD total, got %s", res.USDValueTotal)
	}
	// 15000/140 = 107.142857142..., truncated to 6 decimal places.
	if !res.GramsCredited.Equal(decimal.RequireFromString("107.142857")) {
		t.Fatalf("expected 107.142857 g credited, got %s", res.GramsCredited)
	}
	if len(res.LedgerEntryIDs) != 2 {
		t.Fatalf("expected exactly 2 ledger entries, got %d", len(res.LedgerEntryIDs))
	}

	// credited*Plive + residual == usdValueTotal, residual below one cent plus one
	// gram-unit of price.
	creditedUSD := ledger.RoundUSD(res.GramsCredited.Mul(decimal.NewFromInt(140)))
	if !creditedUSD.Add(res.ResidualUSD).Equal(res.USDValueTotal) {
		t.Fatalf("value not conserved: %s + %s != %s", creditedUSD, res.ResidualUSD, res.USDValueTotal)
	}
	if res.ResidualUSD.IsNegative() {
		t.Fatalf("negative residual %s", res.ResidualUSD)
	}

	lot, err := env.batches.Get(ctx, lockRes.BatchID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if lot.Status != batch.StatusDepleted || !lot.GramsRemaining.IsZero() {
		t.Fatalf("expected depleted lot, got %+v", lot)
	}

	if got := env.balance(t, userID, ledger.KindFixed); !got.IsZero() {
		t.Fatalf("expected empty fixed wallet, got %s", got)
	}
	if got := env.balance(t, userID, ledger.KindMarket); !got.Equal(res.GramsCredited) {
		t.Fatalf("market wallet %s != credited %s", got, res.GramsCredited)
	}
}

func TestUnlockConsumesBatchesFIFOAtTheirOwnPrices(t *testing.T) {
	env := newTestEnv(150)
	ctx := context.Background()
	userID := uuid.NewString()
	env.fund(t, userID, 120)

	first, err := env.engine.Lock(ctx, userID, decimal.NewFromInt(80))
	if err != nil {
		t.Fatalf("lock 80: %v", err)
	}
	env.oracle.SetPrice(decimal.NewFromInt(160))
	second, err := env.engine.Lock(ctx, userID, decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("lock 40: %v", err)
	}

	res, err := env.engine.Unlock(ctx, userID, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}

	// 80g @ $150 from the older lot plus 20g @ $160 from the newer one, each at
	// its own locked price.
	if !res.USDValueTotal.Equal(decimal.NewFromInt(15200)) {
		t.Fatalf("expected 15200 USD total, got %s", res.USDValueTotal)
	}
	if len(res.BatchesConsumed) != 2 {
		t.Fatalf("expected 2 portions, got %d", len(res.BatchesConsumed))
	}
	if res.BatchesConsumed[0].BatchID != first.BatchID || !res.BatchesConsumed[0].Grams.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("oldest lot not consumed first: %+v", res.BatchesConsumed[0])
	}
	if res.BatchesConsumed[1].BatchID != second.BatchID || !res.BatchesConsumed[1].Grams.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected second portion: %+v", res.BatchesConsumed[1])
	}

	oldLot, _ := env.batches.Get(ctx, first.BatchID)
	if oldLot.Status != batch.StatusDepleted {
		t.Fatalf("oldest lot should be depleted, got %s", oldLot.Status)
	}
	newLot, _ := env.batches.Get(ctx, second.BatchID)
	if newLot.Status != batch.StatusPartiallyConsumed || !newLot.GramsRemaining.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected newer lot state: %+v", newLot)
	}

	// 15200/160 = 95 exactly; no residual.
	if !res.GramsCredited.Equal(decimal.NewFromInt(95)) {
		t.Fatalf("expected 95 g credited, got %s", res.GramsCredited)
	}
	if !res.ResidualUSD.IsZero() {
		t.Fatalf("expected zero residual, got %s", res.ResidualUSD)
	}
}

func TestFixedBalanceMatchesBatchRemainders(t *testing.T) {
	env := newTestEnv(150)
	ctx := context.Background()
	userID := uuid.NewString()
	env.fund(t, userID, 200)

	if _, err := env.engine.Lock(ctx, userID, decimal.NewFromInt(120)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := env.engine.Lock(ctx, userID, decimal.NewFromInt(30)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := env.engine.Unlock(ctx, userID, decimal.NewFromInt(70)); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	active, err := env.batches.ListActiveFIFO(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sum := decimal.Zero
	for _, b := range active {
		sum = sum.Add(b.GramsRemaining)
	}
	if got := env.balance(t, userID, ledger.KindFixed); !got.Equal(sum) {
		t.Fatalf("fixed ledger balance %s != batch remainder sum %s", got, sum)
	}
}

func TestLockInsufficientBalanceWritesNothing(t *testing.T) {
	env := newTestEnv(150)
	ctx := context.Background()
	userID := uuid.NewString()
	env.fund(t, userID, 10)

	if _, err := env.engine.Lock(ctx, userID, decimal.NewFromInt(50)); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if lots, _ := env.batches.ListByUser(ctx, userID); len(lots) != 0 {
		t.Fatalf("failed lock created batches: %d", len(lots))
	}
	entries, _ := env.ledger.ListByUser(ctx, userID)
	if len(entries) != 1 { // only the funding transfer
		t.Fatalf("failed lock appended entries: %d", len(entries))
	}
}

func TestOperationsFailWithoutFreshPrice(t *testing.T) {
	batches := batch.NewMemoryStore()
	led := ledger.NewMemory()
	certs := certificate.NewMemoryStore()
	store := NewMemoryStore(batches, led, certs)
	engine := NewEngine(store, pricing.FixedOracle{Err: pricing.ErrPriceUnavailable}, nil, logging.Discard())

	ctx := context.Background()
	userID := uuid.NewString()

	if _, err := engine.Lock(ctx, userID, decimal.NewFromInt(10)); !errors.Is(err, pricing.ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
	if _, err := engine.Unlock(ctx, userID, decimal.NewFromInt(10)); !errors.Is(err, pricing.ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}

	// Transfers are not price-sensitive and must still work.
	if _, err := engine.Transfer(ctx, userID, decimal.NewFromInt(10), DirectionIn); err != nil {
		t.Fatalf("transfer should not need a price: %v", err)
	}
}

type failingStore struct {
	Store
	err error
}

func (s failingStore) Commit(context.Context, Plan) error { return s.err }

func TestFailedCommitLeavesNoTraces(t *testing.T) {
	env := newTestEnv(150)
	ctx := context.Background()
	userID := uuid.NewString()
	env.fund(t, userID, 100)
	if _, err := env.engine.Lock(ctx, userID, decimal.NewFromInt(60)); err != nil {
		t.Fatalf("lock: %v", err)
	}

	injected := errors.New("storage down")
	broken := NewEngine(failingStore{Store: env.store, err: injected}, env.oracle, nil, logging.Discard())

	if _, err := broken.Unlock(ctx, userID, decimal.NewFromInt(60)); !errors.Is(err, injected) {
		t.Fatalf("expected injected error, got %v", err)
	}

	// Validation passed but the commit failed after it: nothing may have changed.
	active, _ := env.batches.ListActiveFIFO(ctx, userID)
	if len(active) != 1 || !active[0].GramsRemaining.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("batch state mutated by failed commit: %+v", active)
	}
	entries, _ := env.ledger.ListByUser(ctx, userID)
	if len(entries) != 3 { // funding transfer + two lock entries
		t.Fatalf("ledger mutated by failed commit: %d entries", len(entries))
	}
}

func TestConcurrentUnlocksNeverOverConsume(t *testing.T) {
	env := newTestEnv(150)
	ctx := context.Background()
	userID := uuid.NewString()
	env.fund(t, userID, 100)
	if _, err := env.engine.Lock(ctx, userID, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("lock: %v", err)
	}

	// Two unlocks of 60g against 100g: exactly one can succeed.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.engine.Unlock(ctx, userID, decimal.NewFromInt(60))
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("expected one success and one rejection, got %d/%d", succeeded, insufficient)
	}

	if got := env.balance(t, userID, ledger.KindFixed); !got.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected 40 g left in fixed wallet, got %s", got)
	}
}

func TestTransferOutRequiresBalance(t *testing.T) {
	env := newTestEnv(150)
	ctx := context.Background()
	userID := uuid.NewString()
	env.fund(t, userID, 20)

	if _, err := env.engine.Transfer(ctx, userID, decimal.NewFromInt(30), DirectionOut); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	res, err := env.engine.Transfer(ctx, userID, decimal.NewFromInt(15), DirectionOut)
	if err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	if !res.BalanceAfterGrams.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected balance 5, got %s", res.BalanceAfterGrams)
	}

	if _, err := env.engine.Transfer(ctx, userID, decimal.NewFromInt(5), "sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
}

func TestInvalidAmountsRejected(t *testing.T) {
	env := newTestEnv(150)
	ctx := context.Background()
	userID := uuid.NewString()

	if _, err := env.engine.Lock(ctx, userID, decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := env.engine.Unlock(ctx, userID, decimal.NewFromInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	// Sub-precision dust truncates to zero and is rejected rather than minted.
	if _, err := env.engine.Lock(ctx, userID, decimal.RequireFromString("0.0000004")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for dust, got %v", err)
	}
}
