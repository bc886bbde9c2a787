package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPOracle fetches the current price from an external JSON feed. The feed is the
// single piece of external I/O in a conversion, so the request timeout is bounded and
// failures surface as ErrPriceUnavailable rather than blocking the caller.
type HTTPOracle struct {
	url    string
	client *http.Client
	maxAge time.Duration
}

// NewHTTPOracle builds an oracle reading from the given feed URL.
func NewHTTPOracle(url string, timeout, maxAge time.Duration) *HTTPOracle {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &HTTPOracle{
		url:    url,
		client: &http.Client{Timeout: timeout},
		maxAge: maxAge,
	}
}

type feedResponse struct {
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	AsOf         time.Time       `json:"as_of"`
	Source       string          `json:"source"`
}

// Current fetches a quote from the feed and validates its freshness.
func (o *HTTPOracle) Current(ctx context.Context) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("%w: feed returned status %d", ErrPriceUnavailable, resp.StatusCode)
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return Quote{}, fmt.Errorf("%w: decode feed: %v", ErrPriceUnavailable, err)
	}

	quote := Quote{PricePerGram: feed.PricePerGram, AsOf: feed.AsOf.UTC(), Source: feed.Source}
	if quote.Source == "" {
		quote.Source = o.url
	}
	if quote.PricePerGram.LessThanOrEqual(decimal.Zero) {
		return Quote{}, fmt.Errorf("%w: non-positive price", ErrPriceUnavailable)
	}
	if !quote.Fresh(time.Now().UTC(), o.maxAge) {
		return Quote{}, fmt.Errorf("%w: quote as of %s is stale", ErrPriceUnavailable, quote.AsOf.Format(time.RFC3339))
	}
	return quote, nil
}
