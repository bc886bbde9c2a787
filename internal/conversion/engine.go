package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/certificate"
	"github.com/aurum-pay/aurum_pay/internal/ledger"
	"github.com/aurum-pay/aurum_pay/internal/notification"
	"github.com/aurum-pay/aurum_pay/internal/pricing"
)

var (
	// ErrInvalidAmount indicates a non-positive gram amount.
	ErrInvalidAmount = errors.New("grams must be positive")

	// ErrInvalidDirection indicates an unknown transfer direction.
	ErrInvalidDirection = errors.New("transfer direction must be in or out")
)

const (
	// DirectionIn credits the market wallet.
	DirectionIn = "in"
	// DirectionOut debits the market wallet.
	DirectionOut = "out"
)

// Engine executes lock, unlock and transfer operations against the custody ledger.
// Operations for one user are serialized; validation strictly precedes any write.
type Engine struct {
	store     Store
	oracle    pricing.Oracle
	generator *certificate.Generator
	notifier  notification.Notifier
	logger    *slog.Logger
	locks     *keyedMutex
}

// NewEngine builds a conversion engine.
func NewEngine(store Store, oracle pricing.Oracle, notifier notification.Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		oracle:    oracle,
		generator: certificate.NewGenerator(),
		notifier:  notifier,
		logger:    logger,
		locks:     newKeyedMutex(),
	}
}

// LockResult describes a completed lock.
type LockResult struct {
	BatchID        string
	LedgerEntryIDs []string
	CertificateID  string
	PricePerGram   decimal.Decimal
	USDValueLocked decimal.Decimal
}

// UnlockResult describes a completed unlock.
type UnlockResult struct {
	GramsCredited   decimal.Decimal
	ResidualUSD     decimal.Decimal
	LedgerEntryIDs  []string
	BatchesConsumed []ledger.BatchPortion
	CertificateID   string
	PricePerGram    decimal.Decimal
	USDValueTotal   decimal.Decimal
}

// TransferResult describes a completed transfer.
type TransferResult struct {
	LedgerEntryIDs    []string
	BalanceAfterGrams decimal.Decimal
}

// Lock moves grams from the market wallet into a new fixed-wallet lot at the current
// price. The USD value reserved by the lot never changes afterwards.
func (e *Engine) Lock(ctx context.Context, userID string, grams decimal.Decimal) (LockResult, error) {
	grams = ledger.RoundGrams(grams)
	if grams.LessThanOrEqual(decimal.Zero) {
		return LockResult{}, ErrInvalidAmount
	}

	release := e.locks.Lock(userID)
	defer release()

	quote, err := e.oracle.Current(ctx)
	if err != nil {
		return LockResult{}, err
	}

	marketBal, err := e.store.BalanceGrams(ctx, userID, ledger.KindMarket)
	if err != nil {
		return LockResult{}, err
	}
	if marketBal.LessThan(grams) {
		return LockResult{}, ledger.ErrInsufficientBalance
	}
	fixedBal, err := e.store.BalanceGrams(ctx, userID, ledger.KindFixed)
	if err != nil {
		return LockResult{}, err
	}

	now := time.Now().UTC()
	usdValue := ledger.RoundUSD(grams.Mul(quote.PricePerGram))

	lot := batch.Batch{
		ID:               uuid.NewString(),
		UserID:           userID,
		GramsOriginal:    grams,
		GramsRemaining:   grams,
		LockPricePerGram: quote.PricePerGram,
		USDValueReserved: usdValue,
		Status:           batch.StatusActive,
		CreatedAt:        now,
	}
	portion := ledger.BatchPortion{BatchID: lot.ID, Grams: grams, LockPricePerGram: quote.PricePerGram}

	entries := []ledger.Entry{
		{
			ID:                  uuid.NewString(),
			UserID:              userID,
			Action:              ledger.ActionLock,
			WalletKind:          ledger.KindMarket,
			GramsDelta:          grams.Neg(),
			USDValueAtEvent:     usdValue,
			PricePerGramAtEvent: quote.PricePerGram,
			BalanceAfterGrams:   marketBal.Sub(grams),
			CreatedAt:           now,
		},
		{
			ID:                  uuid.NewString(),
			UserID:              userID,
			Action:              ledger.ActionLock,
			WalletKind:          ledger.KindFixed,
			GramsDelta:          grams,
			USDValueAtEvent:     usdValue,
			PricePerGramAtEvent: quote.PricePerGram,
			RelatedBatches:      []ledger.BatchPortion{portion},
			BalanceAfterGrams:   fixedBal.Add(grams),
			CreatedAt:           now,
		},
	}

	cert, err := e.generator.ConversionProof(certificate.ConversionInput{
		UserID:        userID,
		Action:        ledger.ActionLock,
		PricePerGram:  quote.PricePerGram,
		PriceAsOf:     quote.AsOf,
		Entries:       entries,
		Portions:      []ledger.BatchPortion{portion},
		USDValueTotal: usdValue,
	})
	if err != nil {
		return LockResult{}, err
	}

	plan := Plan{UserID: userID, NewBatch: &lot, Entries: entries, Certificate: &cert}
	if err := e.commit(ctx, plan); err != nil {
		return LockResult{}, err
	}

	e.notify(ctx, notification.KindLock, userID,
		fmt.Sprintf("Locked %s g at %s USD/g", grams, quote.PricePerGram))

	return LockResult{
		BatchID:        lot.ID,
		LedgerEntryIDs: entryIDs(entries),
		CertificateID:  cert.ID,
		PricePerGram:   quote.PricePerGram,
		USDValueLocked: usdValue,
	}, nil
}

// Unlock converts grams from the fixed wallet back to the market wallet. Lots are
// consumed oldest first and the USD value of the consumed grams, computed at each
// lot's own locked price, is re-expressed in grams at the live price.
func (e *Engine) Unlock(ctx context.Context, userID string, grams decimal.Decimal) (UnlockResult, error) {
	grams = ledger.RoundGrams(grams)
	if grams.LessThanOrEqual(decimal.Zero) {
		return UnlockResult{}, ErrInvalidAmount
	}

	release := e.locks.Lock(userID)
	defer release()

	quote, err := e.oracle.Current(ctx)
	if err != nil {
		return UnlockResult{}, err
	}

	active, err := e.store.ActiveBatchesFIFO(ctx, userID)
	if err != nil {
		return UnlockResult{}, err
	}

	fixedBal := decimal.Zero
	for _, b := range active {
		fixedBal = fixedBal.Add(b.GramsRemaining)
	}
	if fixedBal.LessThan(grams) {
		return UnlockResult{}, ledger.ErrInsufficientBalance
	}

	marketBal, err := e.store.BalanceGrams(ctx, userID, ledger.KindMarket)
	if err != nil {
		return UnlockResult{}, err
	}

	// Greedy FIFO walk. Each portion carries its own lock price so value
	// preservation is exact per lot, never a blended average.
	var (
		portions     []ledger.BatchPortion
		consumptions []Consumption
		usdTotal     = decimal.Zero
		needed       = grams
	)
	for _, b := range active {
		if needed.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := decimal.Min(b.GramsRemaining, needed)
		portions = append(portions, ledger.BatchPortion{
			BatchID:          b.ID,
			Grams:            take,
			LockPricePerGram: b.LockPricePerGram,
		})
		consumptions = append(consumptions, Consumption{BatchID: b.ID, Grams: take})
		usdTotal = usdTotal.Add(ledger.RoundUSD(take.Mul(b.LockPricePerGram)))
		needed = needed.Sub(take)
	}

	gramsCredited := ledger.RoundGrams(usdTotal.Div(quote.PricePerGram))
	creditedUSD := ledger.RoundUSD(gramsCredited.Mul(quote.PricePerGram))
	residualUSD := usdTotal.Sub(creditedUSD)

	now := time.Now().UTC()
	entries := []ledger.Entry{
		{
			ID:                  uuid.NewString(),
			UserID:              userID,
			Action:              ledger.ActionUnlock,
			WalletKind:          ledger.KindFixed,
			GramsDelta:          grams.Neg(),
			USDValueAtEvent:     usdTotal,
			PricePerGramAtEvent: quote.PricePerGram,
			RelatedBatches:      portions,
			BalanceAfterGrams:   fixedBal.Sub(grams),
			CreatedAt:           now,
		},
		{
			ID:                  uuid.NewString(),
			UserID:              userID,
			Action:              ledger.ActionUnlock,
			WalletKind:          ledger.KindMarket,
			GramsDelta:          gramsCredited,
			USDValueAtEvent:     creditedUSD,
			PricePerGramAtEvent: quote.PricePerGram,
			BalanceAfterGrams:   marketBal.Add(gramsCredited),
			CreatedAt:           now,
		},
	}

	cert, err := e.generator.ConversionProof(certificate.ConversionInput{
		UserID:        userID,
		Action:        ledger.ActionUnlock,
		PricePerGram:  quote.PricePerGram,
		PriceAsOf:     quote.AsOf,
		Entries:       entries,
		Portions:      portions,
		USDValueTotal: usdTotal,
		GramsCredited: gramsCredited,
		ResidualUSD:   residualUSD,
	})
	if err != nil {
		return UnlockResult{}, err
	}

	plan := Plan{UserID: userID, Consumptions: consumptions, Entries: entries, Certificate: &cert}
	if err := e.commit(ctx, plan); err != nil {
		return UnlockResult{}, err
	}

	e.notify(ctx, notification.KindUnlock, userID,
		fmt.Sprintf("Unlocked %s g, credited %s g at %s USD/g", grams, gramsCredited, quote.PricePerGram))

	return UnlockResult{
		GramsCredited:   gramsCredited,
		ResidualUSD:     residualUSD,
		LedgerEntryIDs:  entryIDs(entries),
		BatchesConsumed: portions,
		CertificateID:   cert.ID,
		PricePerGram:    quote.PricePerGram,
		USDValueTotal:   usdTotal,
	}, nil
}

// Transfer credits or debits the market wallet without price conversion. Moving
// value into the fixed wallet always goes through Lock so the lot invariant holds.
func (e *Engine) Transfer(ctx context.Context, userID string, grams decimal.Decimal, direction string) (TransferResult, error) {
	grams = ledger.RoundGrams(grams)
	if grams.LessThanOrEqual(decimal.Zero) {
		return TransferResult{}, ErrInvalidAmount
	}

	var action string
	switch direction {
	case DirectionIn:
		action = ledger.ActionTransferIn
	case DirectionOut:
		action = ledger.ActionTransferOut
	default:
		return TransferResult{}, ErrInvalidDirection
	}

	release := e.locks.Lock(userID)
	defer release()

	marketBal, err := e.store.BalanceGrams(ctx, userID, ledger.KindMarket)
	if err != nil {
		return TransferResult{}, err
	}

	delta := grams
	if action == ledger.ActionTransferOut {
		if marketBal.LessThan(grams) {
			return TransferResult{}, ledger.ErrInsufficientBalance
		}
		delta = grams.Neg()
	}

	entry := ledger.Entry{
		ID:                uuid.NewString(),
		UserID:            userID,
		Action:            action,
		WalletKind:        ledger.KindMarket,
		GramsDelta:        delta,
		BalanceAfterGrams: marketBal.Add(delta),
		CreatedAt:         time.Now().UTC(),
	}

	plan := Plan{UserID: userID, Entries: []ledger.Entry{entry}}
	if err := e.commit(ctx, plan); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		LedgerEntryIDs:    []string{entry.ID},
		BalanceAfterGrams: entry.BalanceAfterGrams,
	}, nil
}

func (e *Engine) commit(ctx context.Context, plan Plan) error {
	err := e.store.Commit(ctx, plan)
	if err == nil {
		return nil
	}
	if errors.Is(err, batch.ErrOverConsumption) || errors.Is(err, batch.ErrDepleted) {
		// The engine validated before committing, so this is an invariant
		// violation, not a user error.
		e.logger.Error("batch over-consumption during commit",
			slog.String("user_id", plan.UserID), slog.Any("error", err))
	}
	return err
}

func (e *Engine) notify(ctx context.Context, kind, userID, body string) {
	if e.notifier == nil {
		return
	}
	_ = e.notifier.Send(ctx, notification.Message{Kind: kind, Destination: userID, Body: body})
}

func entryIDs(entries []ledger.Entry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}
