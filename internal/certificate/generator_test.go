package certificate

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/ledger"
)

func conversionFixture() ConversionInput {
	userID := "user-1"
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	portion := ledger.BatchPortion{
		BatchID:          "batch-1",
		Grams:            decimal.NewFromInt(100),
		LockPricePerGram: decimal.NewFromInt(150),
	}
	return ConversionInput{
		UserID:       userID,
		Action:       ledger.ActionUnlock,
		PricePerGram: decimal.NewFromInt(140),
		PriceAsOf:    at,
		Entries: []ledger.Entry{
			{
				ID:                "entry-1",
				UserID:            userID,
				Action:            ledger.ActionUnlock,
				WalletKind:        ledger.KindFixed,
				GramsDelta:        decimal.NewFromInt(-100),
				USDValueAtEvent:   decimal.NewFromInt(15000),
				BalanceAfterGrams: decimal.Zero,
				CreatedAt:         at,
			},
		},
		Portions:      []ledger.BatchPortion{portion},
		USDValueTotal: decimal.NewFromInt(15000),
		GramsCredited: decimal.RequireFromString("107.142857"),
		ResidualUSD:   decimal.RequireFromString("0.02"),
	}
}

func TestConversionProofIsIdempotent(t *testing.T) {
	g := NewGenerator()
	in := conversionFixture()

	first, err := g.ConversionProof(in)
	if err != nil {
		t.Fatalf("first derivation: %v", err)
	}
	second, err := g.ConversionProof(in)
	if err != nil {
		t.Fatalf("second derivation: %v", err)
	}

	if first.Fingerprint != second.Fingerprint {
		t.Fatalf("fingerprints differ: %s vs %s", first.Fingerprint, second.Fingerprint)
	}
	if !bytes.Equal(first.Content, second.Content) {
		t.Fatalf("content differs between derivations")
	}
	if first.ID == second.ID {
		t.Fatalf("expected fresh certificate ids")
	}
}

func TestConversionProofReferencesEntriesAndBatches(t *testing.T) {
	g := NewGenerator()
	cert, err := g.ConversionProof(conversionFixture())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	if cert.Kind != KindConversion || cert.Status != StatusActive {
		t.Fatalf("unexpected kind/status: %s/%s", cert.Kind, cert.Status)
	}
	if len(cert.LedgerEntryIDs) != 1 || cert.LedgerEntryIDs[0] != "entry-1" {
		t.Fatalf("unexpected entry refs: %v", cert.LedgerEntryIDs)
	}
	if len(cert.BatchIDs) != 1 || cert.BatchIDs[0] != "batch-1" {
		t.Fatalf("unexpected batch refs: %v", cert.BatchIDs)
	}
}

func TestConversionProofContentIsInputSensitive(t *testing.T) {
	g := NewGenerator()
	base := conversionFixture()
	changed := conversionFixture()
	changed.USDValueTotal = decimal.NewFromInt(15200)

	a, err := g.ConversionProof(base)
	if err != nil {
		t.Fatalf("derive base: %v", err)
	}
	b, err := g.ConversionProof(changed)
	if err != nil {
		t.Fatalf("derive changed: %v", err)
	}
	if a.Fingerprint == b.Fingerprint {
		t.Fatalf("different inputs produced identical fingerprints")
	}
}

func TestStorageProofDigestsLotState(t *testing.T) {
	g := NewGenerator()
	lot := batch.Batch{
		ID:               uuid.NewString(),
		UserID:           "user-1",
		GramsOriginal:    decimal.NewFromInt(100),
		GramsRemaining:   decimal.NewFromInt(60),
		LockPricePerGram: decimal.NewFromInt(150),
		USDValueReserved: decimal.NewFromInt(15000),
		Status:           batch.StatusPartiallyConsumed,
		CreatedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	first, err := g.StorageProof(lot)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	second, err := g.StorageProof(lot)
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Fatalf("storage proof not idempotent")
	}
	if first.Kind != KindStorage {
		t.Fatalf("unexpected kind %s", first.Kind)
	}
}
