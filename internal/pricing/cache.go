package pricing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const cacheKey = "pricing:v1:xau:usd"

type cachedQuote struct {
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	AsOf         time.Time       `json:"as_of"`
	Source       string          `json:"source"`
}

// CachedOracle is a Redis read-through cache in front of another oracle. A cached
// quote is served while it remains within the staleness window, so a transient feed
// outage does not fail conversions that could still use a fresh-enough price.
type CachedOracle struct {
	next   Oracle
	cache  *redis.Client
	maxAge time.Duration
}

// NewCachedOracle wraps next with a Redis quote cache.
func NewCachedOracle(next Oracle, cache *redis.Client, maxAge time.Duration) *CachedOracle {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &CachedOracle{next: next, cache: cache, maxAge: maxAge}
}

// Current serves a cached quote when fresh, otherwise consults the wrapped oracle and
// stores the result with a TTL equal to the staleness window.
func (o *CachedOracle) Current(ctx context.Context) (Quote, error) {
	if raw, err := o.cache.Get(ctx, cacheKey).Result(); err == nil {
		var stored cachedQuote
		if err := json.Unmarshal([]byte(raw), &stored); err == nil {
			quote := Quote{PricePerGram: stored.PricePerGram, AsOf: stored.AsOf, Source: stored.Source}
			if quote.Fresh(time.Now().UTC(), o.maxAge) {
				return quote, nil
			}
		}
	}

	quote, err := o.next.Current(ctx)
	if err != nil {
		return Quote{}, err
	}

	payload, err := json.Marshal(cachedQuote{PricePerGram: quote.PricePerGram, AsOf: quote.AsOf, Source: quote.Source})
	if err == nil {
		// Best effort: a cache write failure must not fail the operation.
		_ = o.cache.Set(ctx, cacheKey, payload, o.maxAge).Err()
	}

	return quote, nil
}
