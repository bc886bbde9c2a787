package certificate

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/ledger"
)

const (
	// KindConversion proves a single lock or unlock against the lots it touched.
	KindConversion = "conversion"
	// KindStorage proves a cost-basis lot exists with its remaining grams.
	KindStorage = "storage"
	// KindOwnership attests a user's holdings across both wallets.
	KindOwnership = "ownership"

	// StatusActive is the only certificate status; certificates are historical
	// records, not live balances.
	StatusActive = "active"
)

// ErrNotFound indicates the referenced certificate does not exist.
var ErrNotFound = errors.New("certificate not found")

// Certificate is a derived, immutable audit artifact. The fingerprint is a SHA3-256
// digest over the canonical content, so re-deriving from the same inputs yields the
// same fingerprint even though the id and issue time are fresh.
type Certificate struct {
	ID             string
	UserID         string
	Kind           string
	Fingerprint    string
	Content        json.RawMessage
	LedgerEntryIDs []string
	BatchIDs       []string
	Status         string
	IssuedAt       time.Time
}

// Store persists issued certificates.
type Store interface {
	Save(ctx context.Context, cert Certificate) error
	Get(ctx context.Context, id string) (Certificate, error)
	ListByUser(ctx context.Context, userID string) ([]Certificate, error)
}

// Generator derives certificates from ledger and batch state. It is pure: no side
// effects on balances, and identical inputs produce identical content.
type Generator struct{}

// NewGenerator builds a certificate generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// ConversionInput carries everything a completed lock or unlock produced.
type ConversionInput struct {
	UserID        string
	Action        string
	PricePerGram  decimal.Decimal
	PriceAsOf     time.Time
	Entries       []ledger.Entry
	Portions      []ledger.BatchPortion
	USDValueTotal decimal.Decimal
	GramsCredited decimal.Decimal
	ResidualUSD   decimal.Decimal
}

type conversionContent struct {
	UserID        string                `json:"user_id"`
	Action        string                `json:"action"`
	PricePerGram  string                `json:"price_per_gram"`
	PriceAsOf     time.Time             `json:"price_as_of"`
	Entries       []entryContent        `json:"entries"`
	Portions      []ledger.BatchPortion `json:"portions,omitempty"`
	USDValueTotal string                `json:"usd_value_total"`
	GramsCredited string                `json:"grams_credited,omitempty"`
	ResidualUSD   string                `json:"residual_usd,omitempty"`
}

type entryContent struct {
	ID                string    `json:"id"`
	Action            string    `json:"action"`
	WalletKind        string    `json:"wallet_kind"`
	GramsDelta        string    `json:"grams_delta"`
	USDValueAtEvent   string    `json:"usd_value_at_event"`
	BalanceAfterGrams string    `json:"balance_after_grams"`
	CreatedAt         time.Time `json:"created_at"`
}

// ConversionProof derives the audit certificate for a completed lock or unlock.
func (g *Generator) ConversionProof(in ConversionInput) (Certificate, error) {
	content := conversionContent{
		UserID:        in.UserID,
		Action:        in.Action,
		PricePerGram:  in.PricePerGram.String(),
		PriceAsOf:     in.PriceAsOf.UTC(),
		Portions:      in.Portions,
		USDValueTotal: in.USDValueTotal.String(),
	}
	if !in.GramsCredited.IsZero() {
		content.GramsCredited = in.GramsCredited.String()
	}
	if !in.ResidualUSD.IsZero() {
		content.ResidualUSD = in.ResidualUSD.String()
	}

	entryIDs := make([]string, 0, len(in.Entries))
	for _, e := range in.Entries {
		entryIDs = append(entryIDs, e.ID)
		content.Entries = append(content.Entries, entryContent{
			ID:                e.ID,
			Action:            e.Action,
			WalletKind:        e.WalletKind,
			GramsDelta:        e.GramsDelta.String(),
			USDValueAtEvent:   e.USDValueAtEvent.String(),
			BalanceAfterGrams: e.BalanceAfterGrams.String(),
			CreatedAt:         e.CreatedAt.UTC(),
		})
	}

	batchIDs := make([]string, 0, len(in.Portions))
	for _, p := range in.Portions {
		batchIDs = append(batchIDs, p.BatchID)
	}

	return g.issue(in.UserID, KindConversion, content, entryIDs, batchIDs)
}

type storageContent struct {
	BatchID          string    `json:"batch_id"`
	UserID           string    `json:"user_id"`
	GramsOriginal    string    `json:"grams_original"`
	GramsRemaining   string    `json:"grams_remaining"`
	LockPricePerGram string    `json:"lock_price_per_gram"`
	USDValueReserved string    `json:"usd_value_reserved"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// StorageProof derives a proof that a cost-basis lot exists with its current grams.
func (g *Generator) StorageProof(b batch.Batch) (Certificate, error) {
	content := storageContent{
		BatchID:          b.ID,
		UserID:           b.UserID,
		GramsOriginal:    b.GramsOriginal.String(),
		GramsRemaining:   b.GramsRemaining.String(),
		LockPricePerGram: b.LockPricePerGram.String(),
		USDValueReserved: b.USDValueReserved.String(),
		Status:           b.Status,
		CreatedAt:        b.CreatedAt.UTC(),
	}
	return g.issue(b.UserID, KindStorage, content, nil, []string{b.ID})
}

type ownershipContent struct {
	UserID           string             `json:"user_id"`
	MarketGrams      string             `json:"market_grams"`
	FixedGrams       string             `json:"fixed_grams"`
	FixedUSDReserved string             `json:"fixed_usd_reserved"`
	ActiveBatches    []ownershipHolding `json:"active_batches"`
}

type ownershipHolding struct {
	BatchID          string `json:"batch_id"`
	GramsRemaining   string `json:"grams_remaining"`
	LockPricePerGram string `json:"lock_price_per_gram"`
}

// OwnershipProof attests a user's holdings from the balance projection and active lots.
func (g *Generator) OwnershipProof(userID string, marketGrams, fixedGrams decimal.Decimal, active []batch.Batch) (Certificate, error) {
	content := ownershipContent{
		UserID:      userID,
		MarketGrams: marketGrams.String(),
		FixedGrams:  fixedGrams.String(),
	}

	fixedUSD := decimal.Zero
	batchIDs := make([]string, 0, len(active))
	for _, b := range active {
		batchIDs = append(batchIDs, b.ID)
		fixedUSD = fixedUSD.Add(b.GramsRemaining.Mul(b.LockPricePerGram))
		content.ActiveBatches = append(content.ActiveBatches, ownershipHolding{
			BatchID:          b.ID,
			GramsRemaining:   b.GramsRemaining.String(),
			LockPricePerGram: b.LockPricePerGram.String(),
		})
	}
	content.FixedUSDReserved = fixedUSD.String()

	return g.issue(userID, KindOwnership, content, nil, batchIDs)
}

func (g *Generator) issue(userID, kind string, content any, entryIDs, batchIDs []string) (Certificate, error) {
	payload, err := json.Marshal(content)
	if err != nil {
		return Certificate{}, fmt.Errorf("encode certificate content: %w", err)
	}
	digest := sha3.Sum256(payload)

	return Certificate{
		ID:             uuid.NewString(),
		UserID:         userID,
		Kind:           kind,
		Fingerprint:    hex.EncodeToString(digest[:]),
		Content:        payload,
		LedgerEntryIDs: entryIDs,
		BatchIDs:       batchIDs,
		Status:         StatusActive,
		IssuedAt:       time.Now().UTC(),
	}, nil
}
