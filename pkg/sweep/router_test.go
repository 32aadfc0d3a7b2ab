package sweep

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/rs/zerolog"

	"dustsweep/pkg/types"
)

type scriptedSwap struct {
	name   string
	quote  *SwapQuote
	err    error
	called int
}

func (s *scriptedSwap) Name() string { return s.name }

func (s *scriptedSwap) Quote(_ context.Context, _ uint64, _, _ string, _ *big.Int, _ string) (*SwapQuote, error) {
	s.called++
	return s.quote, s.err
}

func TestSwapRouterPrefersPrimary(t *testing.T) {
	primary := &scriptedSwap{name: "primary", quote: &SwapQuote{AmountOut: big.NewInt(100)}}
	fallback := &scriptedSwap{name: "fallback", quote: &SwapQuote{AmountOut: big.NewInt(999)}}
	r := NewSwapRouter(primary, fallback, zerolog.Nop())

	q, err := r.Quote(context.Background(), 1, usdcEth, daiEth, big.NewInt(50), execDelegate)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	// The fallback is ordered, not raced: a healthy primary wins even with
	// a better fallback quote.
	if q.AmountOut.Int64() != 100 {
		t.Fatalf("expected primary quote, got %s", q.AmountOut)
	}
	if fallback.called != 0 {
		t.Fatal("fallback must not be consulted when the primary succeeds")
	}
}

func TestSwapRouterFallsBack(t *testing.T) {
	primary := &scriptedSwap{name: "primary", err: errors.New("down")}
	fallback := &scriptedSwap{name: "fallback", quote: &SwapQuote{AmountOut: big.NewInt(42)}}
	r := NewSwapRouter(primary, fallback, zerolog.Nop())

	q, err := r.Quote(context.Background(), 1, usdcEth, daiEth, big.NewInt(50), execDelegate)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.AmountOut.Int64() != 42 {
		t.Fatalf("expected fallback quote, got %s", q.AmountOut)
	}
	if primary.called != 1 || fallback.called != 1 {
		t.Fatalf("expected both providers consulted once, got %d/%d", primary.called, fallback.called)
	}
}

func TestSwapRouterBothFail(t *testing.T) {
	primary := &scriptedSwap{name: "primary", err: errors.New("down")}
	fallback := &scriptedSwap{name: "fallback", err: errors.New("also down")}
	r := NewSwapRouter(primary, fallback, zerolog.Nop())

	_, err := r.Quote(context.Background(), 1, usdcEth, daiEth, big.NewInt(50), execDelegate)
	var svcErr *types.ExternalServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
}

type scriptedBridge struct {
	name   string
	routes []Route
	err    error
	called int
}

func (b *scriptedBridge) Name() string { return b.name }

func (b *scriptedBridge) Routes(_ context.Context, _ RouteRequest) ([]Route, error) {
	b.called++
	return b.routes, b.err
}

func bridgeReq() RouteRequest {
	return RouteRequest{
		FromChain: 137,
		ToChain:   1,
		Token:     usdcPoly,
		Symbol:    "USDC",
		Amount:    big.NewInt(7_500_000),
		From:      execDelegate,
		To:        execVault,
	}
}

func TestBridgeRouterPicksHighestOutput(t *testing.T) {
	primary := &scriptedBridge{name: "primary", routes: []Route{
		{Provider: "a", AmountOut: big.NewInt(7_400_000)},
		{Provider: "b", AmountOut: big.NewInt(7_450_000)},
		{Provider: "c", AmountOut: big.NewInt(7_300_000)},
	}}
	r := NewBridgeRouter(primary, nil, zerolog.Nop())

	route, err := r.Best(context.Background(), bridgeReq())
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if route.Provider != "b" {
		t.Fatalf("expected the highest-output route, got %s (%s)", route.Provider, route.AmountOut)
	}
}

func TestBridgeRouterFallsBack(t *testing.T) {
	primary := &scriptedBridge{name: "primary", err: errors.New("down")}
	fallback := &scriptedBridge{name: "fallback", routes: []Route{
		{Provider: "fallback", AmountOut: big.NewInt(7_000_000)},
	}}
	r := NewBridgeRouter(primary, fallback, zerolog.Nop())

	route, err := r.Best(context.Background(), bridgeReq())
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if route.Provider != "fallback" {
		t.Fatalf("expected fallback route, got %s", route.Provider)
	}
}

func TestBridgeRouterEmptyRoutesTriggerFallback(t *testing.T) {
	primary := &scriptedBridge{name: "primary"} // no error, no routes
	fallback := &scriptedBridge{name: "fallback", routes: []Route{
		{Provider: "fallback", AmountOut: big.NewInt(1)},
	}}
	r := NewBridgeRouter(primary, fallback, zerolog.Nop())

	route, err := r.Best(context.Background(), bridgeReq())
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if route.Provider != "fallback" {
		t.Fatalf("expected fallback route, got %s", route.Provider)
	}
}

func TestBridgeRouterNoProvider(t *testing.T) {
	r := NewBridgeRouter(nil, nil, zerolog.Nop())
	_, err := r.Best(context.Background(), bridgeReq())
	var svcErr *types.ExternalServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
}

func TestParseSwapResponse(t *testing.T) {
	q, err := parseSwapResponse(httpSwapResponse{
		AmountOut: "12345",
		To:        "0x4400000000000000000000000000000000000044",
		Data:      "0xdeadbeef",
		Value:     "",
	})
	if err != nil {
		t.Fatalf("parseSwapResponse: %v", err)
	}
	if q.AmountOut.Int64() != 12345 {
		t.Fatalf("amountOut: expected 12345, got %s", q.AmountOut)
	}
	if len(q.CallData) != 4 {
		t.Fatalf("expected 4 calldata bytes, got %d", len(q.CallData))
	}
	if q.Value.Sign() != 0 {
		t.Fatalf("empty value must default to zero, got %s", q.Value)
	}

	if _, err := parseSwapResponse(httpSwapResponse{AmountOut: "nope", Data: "0x"}); err == nil {
		t.Fatal("expected error for bad amountOut")
	}
	if _, err := parseSwapResponse(httpSwapResponse{AmountOut: "1", Data: "zzz"}); err == nil {
		t.Fatal("expected error for bad calldata")
	}
}
