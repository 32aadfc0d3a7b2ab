// Package sweep drives the sweep → swap → bridge → settle execution state
// machine and the final fee/donation split.
package sweep

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"dustsweep/pkg/types"
)

// SwapQuote is an executable conversion returned by a swap aggregator.
type SwapQuote struct {
	AmountOut *big.Int
	Target    string // contract to call
	CallData  []byte
	Value     *big.Int
}

// SwapProvider quotes a single-chain token conversion.
type SwapProvider interface {
	Name() string
	Quote(ctx context.Context, chainID uint64, tokenIn, tokenOut string, amountIn *big.Int, from string) (*SwapQuote, error)
}

// SwapRouter tries the primary provider first and falls back to the single
// ordered fallback on failure. Providers are consulted in order, never raced.
type SwapRouter struct {
	primary  SwapProvider
	fallback SwapProvider
	log      zerolog.Logger
}

// NewSwapRouter builds a router; fallback may be nil.
func NewSwapRouter(primary, fallback SwapProvider, log zerolog.Logger) *SwapRouter {
	return &SwapRouter{primary: primary, fallback: fallback, log: log}
}

// Quote returns the first usable quote in provider order.
func (r *SwapRouter) Quote(ctx context.Context, chainID uint64, tokenIn, tokenOut string, amountIn *big.Int, from string) (*SwapQuote, error) {
	q, err := r.primary.Quote(ctx, chainID, tokenIn, tokenOut, amountIn, from)
	if err == nil && q != nil {
		return q, nil
	}
	if err != nil {
		r.log.Warn().Str("provider", r.primary.Name()).Err(err).Msg("primary swap provider failed")
	}

	if r.fallback == nil {
		return nil, &types.ExternalServiceError{Service: "swap aggregator", Err: err}
	}
	q, ferr := r.fallback.Quote(ctx, chainID, tokenIn, tokenOut, amountIn, from)
	if ferr != nil || q == nil {
		return nil, &types.ExternalServiceError{
			Service: "swap aggregator",
			Err:     fmt.Errorf("primary: %v; fallback: %v", err, ferr),
		}
	}
	return q, nil
}

// HTTPSwapProvider calls a JSON quote endpoint:
// GET {base}/quote?chainId=&tokenIn=&tokenOut=&amountIn=&from=
// responding {"amountOut":"...","to":"0x..","data":"0x..","value":"..."}.
type HTTPSwapProvider struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewHTTPSwapProvider builds a provider against a quote API base URL.
func NewHTTPSwapProvider(name, baseURL string) *HTTPSwapProvider {
	return &HTTPSwapProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Name identifies the provider in logs.
func (p *HTTPSwapProvider) Name() string { return p.name }

type httpSwapResponse struct {
	AmountOut string `json:"amountOut"`
	To        string `json:"to"`
	Data      string `json:"data"`
	Value     string `json:"value"`
}

// Quote fetches one executable swap quote.
func (p *HTTPSwapProvider) Quote(ctx context.Context, chainID uint64, tokenIn, tokenOut string, amountIn *big.Int, from string) (*SwapQuote, error) {
	params := url.Values{}
	params.Set("chainId", fmt.Sprintf("%d", chainID))
	params.Set("tokenIn", tokenIn)
	params.Set("tokenOut", tokenOut)
	params.Set("amountIn", amountIn.String())
	params.Set("from", from)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build swap request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap API returned status %d", resp.StatusCode)
	}

	var body httpSwapResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode swap response: %w", err)
	}
	return parseSwapResponse(body)
}

func parseSwapResponse(body httpSwapResponse) (*SwapQuote, error) {
	amountOut, ok := new(big.Int).SetString(body.AmountOut, 10)
	if !ok {
		return nil, fmt.Errorf("bad amountOut %q", body.AmountOut)
	}
	data, err := hexutil.Decode(body.Data)
	if err != nil {
		return nil, fmt.Errorf("bad calldata: %w", err)
	}
	value := big.NewInt(0)
	if body.Value != "" {
		if value, ok = new(big.Int).SetString(body.Value, 10); !ok {
			return nil, fmt.Errorf("bad value %q", body.Value)
		}
	}
	return &SwapQuote{AmountOut: amountOut, Target: body.To, CallData: data, Value: value}, nil
}
