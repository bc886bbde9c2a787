package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStaticOracleStampsCurrentTime(t *testing.T) {
	oracle := NewStaticOracle(decimal.NewFromInt(150))

	quote, err := oracle.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if !quote.PricePerGram.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected price 150, got %s", quote.PricePerGram)
	}
	if !quote.Fresh(time.Now().UTC(), time.Minute) {
		t.Fatalf("static quote should always be fresh, as_of=%s", quote.AsOf)
	}
}

func TestFixedOracleStaleness(t *testing.T) {
	stale := FixedOracle{Quote: Quote{
		PricePerGram: decimal.NewFromInt(150),
		AsOf:         time.Now().UTC().Add(-10 * time.Minute),
	}}
	if _, err := stale.Current(context.Background()); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}

	fresh := FixedOracle{Quote: Quote{
		PricePerGram: decimal.NewFromInt(150),
		AsOf:         time.Now().UTC(),
	}}
	if _, err := fresh.Current(context.Background()); err != nil {
		t.Fatalf("expected fresh quote, got %v", err)
	}
}

func TestHTTPOracleFetchesFreshQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"price_per_gram":"147.35","as_of":%q,"source":"feed-test"}`,
			time.Now().UTC().Format(time.RFC3339Nano))
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL, time.Second, time.Minute)
	quote, err := oracle.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if !quote.PricePerGram.Equal(decimal.RequireFromString("147.35")) {
		t.Fatalf("unexpected price %s", quote.PricePerGram)
	}
	if quote.Source != "feed-test" {
		t.Fatalf("unexpected source %s", quote.Source)
	}
}

func TestHTTPOracleRejectsStaleQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"price_per_gram":"147.35","as_of":%q}`,
			time.Now().UTC().Add(-time.Hour).Format(time.RFC3339Nano))
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL, time.Second, time.Minute)
	if _, err := oracle.Current(context.Background()); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestHTTPOracleRejectsFeedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL, time.Second, time.Minute)
	if _, err := oracle.Current(context.Background()); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}
