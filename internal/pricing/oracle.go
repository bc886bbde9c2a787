package pricing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable indicates no quote fresher than the staleness window could be
// obtained. Operations depending on a live price must abort before mutating state.
var ErrPriceUnavailable = errors.New("gold price unavailable")

// DefaultMaxAge is the staleness window applied when none is configured.
const DefaultMaxAge = 5 * time.Minute

// Quote is a point-in-time gold price per gram in USD.
type Quote struct {
	PricePerGram decimal.Decimal
	AsOf         time.Time
	Source       string
}

// Fresh reports whether the quote is within maxAge of now.
func (q Quote) Fresh(now time.Time, maxAge time.Duration) bool {
	if q.AsOf.IsZero() {
		return false
	}
	return now.Sub(q.AsOf) <= maxAge
}

// Oracle resolves the current gold price per gram.
type Oracle interface {
	Current(ctx context.Context) (Quote, error)
}

// StaticOracle serves a fixed quote. Used in dev mode and tests; the quote can be
// swapped between operations to simulate price movement.
type StaticOracle struct {
	mu    sync.RWMutex
	quote Quote
}

// NewStaticOracle builds an oracle that always returns the given price, stamped at
// call time so it never reads as stale.
func NewStaticOracle(pricePerGram decimal.Decimal) *StaticOracle {
	return &StaticOracle{quote: Quote{PricePerGram: pricePerGram, Source: "static"}}
}

// SetPrice replaces the served price.
func (o *StaticOracle) SetPrice(pricePerGram decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quote.PricePerGram = pricePerGram
}

// Current returns the configured quote stamped with the current time.
func (o *StaticOracle) Current(_ context.Context) (Quote, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.quote.PricePerGram.LessThanOrEqual(decimal.Zero) {
		return Quote{}, ErrPriceUnavailable
	}
	q := o.quote
	q.AsOf = time.Now().UTC()
	return q, nil
}

// FixedOracle serves one immutable quote with a fixed timestamp, letting tests
// exercise the staleness window deterministically.
type FixedOracle struct {
	Quote  Quote
	MaxAge time.Duration
	Err    error
}

// Current returns the configured quote, or ErrPriceUnavailable when it has gone stale.
func (o FixedOracle) Current(_ context.Context) (Quote, error) {
	if o.Err != nil {
		return Quote{}, o.Err
	}
	maxAge := o.MaxAge
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}
	if !o.Quote.Fresh(time.Now().UTC(), maxAge) {
		return Quote{}, ErrPriceUnavailable
	}
	return o.Quote, nil
}
