package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	usdcEth = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	wethEth = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
)

func TestLlamaOraclePrices(t *testing.T) {
	var requestedPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"coins": {
				"ethereum:0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {"price": 0.9998, "symbol": "USDC", "confidence": 0.99},
				"ethereum:0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": {"price": 3150.42, "symbol": "WETH", "confidence": 0.99}
			}
		}`))
	}))
	defer ts.Close()

	o := NewLlamaOracle(ts.URL, zerolog.Nop())
	refs := []TokenRef{
		{ChainID: 1, Address: usdcEth},
		{ChainID: 1, Address: wethEth},
		{ChainID: 777777, Address: usdcEth}, // unknown chain, silently dropped
	}
	prices, err := o.Prices(context.Background(), refs)
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}

	if !strings.HasPrefix(requestedPath, "/prices/current/") {
		t.Fatalf("unexpected request path %q", requestedPath)
	}
	// Request keys are lowercased regardless of the input casing.
	if !strings.Contains(requestedPath, "ethereum:"+strings.ToLower(usdcEth)) {
		t.Fatalf("expected lowercased usdc key in %q", requestedPath)
	}

	if len(prices) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(prices))
	}
	usdc, ok := prices[TokenRef{ChainID: 1, Address: usdcEth}]
	if !ok {
		t.Fatal("missing usdc price")
	}
	if !usdc.Equal(decimal.NewFromFloat(0.9998)) {
		t.Fatalf("usdc price: expected 0.9998, got %s", usdc)
	}
	if _, ok := prices[TokenRef{ChainID: 777777, Address: usdcEth}]; ok {
		t.Fatal("unknown chain must not be priced")
	}
}

func TestLlamaOracleSkipsNegativePrices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"coins":{"ethereum:` + strings.ToLower(usdcEth) + `":{"price":-1}}}`))
	}))
	defer ts.Close()

	o := NewLlamaOracle(ts.URL, zerolog.Nop())
	prices, err := o.Prices(context.Background(), []TokenRef{{ChainID: 1, Address: usdcEth}})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(prices) != 0 {
		t.Fatalf("negative prices must be dropped, got %v", prices)
	}
}

func TestLlamaOracleUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer ts.Close()

	o := NewLlamaOracle(ts.URL, zerolog.Nop())
	prices, err := o.Prices(context.Background(), []TokenRef{{ChainID: 1, Address: usdcEth}})
	if err == nil {
		t.Fatal("expected an error from a failing upstream")
	}
	if len(prices) != 0 {
		t.Fatalf("failed call must price nothing, got %v", prices)
	}
}

func TestLlamaOracleEmptyBatch(t *testing.T) {
	o := NewLlamaOracle("http://unused", zerolog.Nop())
	prices, err := o.Prices(context.Background(), nil)
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(prices) != 0 {
		t.Fatalf("expected empty result, got %v", prices)
	}
}

func TestStaticPrices(t *testing.T) {
	s := Static{
		{ChainID: 1, Address: usdcEth}: decimal.NewFromInt(1),
	}
	prices, err := s.Prices(context.Background(), []TokenRef{
		{ChainID: 1, Address: usdcEth},
		{ChainID: 1, Address: wethEth},
	})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(prices) != 1 {
		t.Fatalf("expected only the configured pair, got %d entries", len(prices))
	}
}
