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

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"dustsweep/pkg/types"
)

// RouteRequest describes one cross-chain transfer to quote.
type RouteRequest struct {
	FromChain uint64
	ToChain   uint64
	Token     string // token address on the source chain
	Symbol    string
	Amount    *big.Int
	From      string
	To        string
}

// Route is one executable bridge candidate.
type Route struct {
	Provider  string
	AmountOut *big.Int
	Target    string
	CallData  []byte
	Value     *big.Int
}

// BridgeProvider returns candidate routes for a cross-chain transfer.
type BridgeProvider interface {
	Name() string
	Routes(ctx context.Context, req RouteRequest) ([]Route, error)
}

// BridgeRouter consults the primary provider then the single ordered
// fallback, and among the returned candidates selects the route with the
// highest quoted output.
type BridgeRouter struct {
	primary  BridgeProvider
	fallback BridgeProvider
	log      zerolog.Logger
}

// NewBridgeRouter builds a router; fallback may be nil.
func NewBridgeRouter(primary, fallback BridgeProvider, log zerolog.Logger) *BridgeRouter {
	return &BridgeRouter{primary: primary, fallback: fallback, log: log}
}

// Best returns the highest-output route from the first provider that
// yields any candidates.
func (r *BridgeRouter) Best(ctx context.Context, req RouteRequest) (*Route, error) {
	if r.primary == nil {
		return nil, &types.ExternalServiceError{
			Service: "bridge aggregator",
			Err:     fmt.Errorf("no bridge provider configured"),
		}
	}
	routes, err := r.primary.Routes(ctx, req)
	if err != nil || len(routes) == 0 {
		if err != nil {
			r.log.Warn().Str("provider", r.primary.Name()).Err(err).Msg("primary bridge provider failed")
		}
		if r.fallback == nil {
			return nil, &types.ExternalServiceError{Service: "bridge aggregator", Err: err}
		}
		var ferr error
		routes, ferr = r.fallback.Routes(ctx, req)
		if ferr != nil || len(routes) == 0 {
			return nil, &types.ExternalServiceError{
				Service: "bridge aggregator",
				Err:     fmt.Errorf("primary: %v; fallback: %v", err, ferr),
			}
		}
	}

	best := routes[0]
	for _, route := range routes[1:] {
		if route.AmountOut.Cmp(best.AmountOut) > 0 {
			best = route
		}
	}
	return &best, nil
}

// oneClickSlugs maps EVM chain ids to 1Click blockchain identifiers.
var oneClickSlugs = map[uint64]string{
	1:     "eth",
	10:    "op",
	56:    "bsc",
	137:   "pol",
	8453:  "base",
	42161: "arb",
	43114: "avax",
}

// OneClickBridge quotes cross-chain transfers through the 1Click intents
// API. The returned route moves funds by ERC-20 transfer to the quote's
// deposit address; the intent network delivers on the destination chain.
type OneClickBridge struct {
	client *oneclick.APIClient
	ctx    context.Context
}

// NewOneClickBridge builds an authenticated 1Click client.
func NewOneClickBridge(jwtToken string) *OneClickBridge {
	cfg := oneclick.NewConfiguration()
	return &OneClickBridge{
		client: oneclick.NewAPIClient(cfg),
		ctx:    context.WithValue(context.Background(), oneclick.ContextAccessToken, jwtToken),
	}
}

// Name identifies the provider in logs.
func (b *OneClickBridge) Name() string { return "oneclick" }

// Routes asks 1Click for a transfer quote of the same token across chains.
func (b *OneClickBridge) Routes(ctx context.Context, req RouteRequest) ([]Route, error) {
	fromSlug, ok := oneClickSlugs[req.FromChain]
	if !ok {
		return nil, fmt.Errorf("chain %d not supported by 1click", req.FromChain)
	}
	toSlug, ok := oneClickSlugs[req.ToChain]
	if !ok {
		return nil, fmt.Errorf("chain %d not supported by 1click", req.ToChain)
	}

	tokens, httpResp, err := b.client.OneClickAPI.GetTokens(b.ctx).Execute()
	if err != nil {
		return nil, fmt.Errorf("get 1click tokens: %w", err)
	}
	defer httpResp.Body.Close()

	origin, err := findAsset(tokens, req.Symbol, fromSlug)
	if err != nil {
		return nil, err
	}
	destination, err := findAsset(tokens, req.Symbol, toSlug)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(30 * time.Minute)
	quoteReq := oneclick.NewQuoteRequest(
		false,                    // dry - false to obtain a deposit address
		"EXACT_INPUT",            // swapType
		100,                      // slippageTolerance (1%)
		origin.GetAssetId(),      // originAsset
		"ORIGIN_CHAIN",           // depositType
		destination.GetAssetId(), // destinationAsset
		req.Amount.String(),      // amount in smallest unit
		req.From,                 // refundTo
		"ORIGIN_CHAIN",           // refundType
		req.To,                   // recipient
		"DESTINATION_CHAIN",      // recipientType
		deadline,                 // deadline
	)

	resp, quoteHTTP, err := b.client.OneClickAPI.GetQuote(b.ctx).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return nil, fmt.Errorf("get 1click quote: %w", err)
	}
	defer quoteHTTP.Body.Close()
	if resp == nil {
		return nil, fmt.Errorf("empty 1click quote response")
	}

	details := resp.GetQuote()
	amountOut, ok := new(big.Int).SetString(details.GetAmountOut(), 10)
	if !ok {
		return nil, fmt.Errorf("bad 1click amountOut %q", details.GetAmountOut())
	}

	route, err := depositTransferRoute(b.Name(), req, details.GetDepositAddress(), amountOut)
	if err != nil {
		return nil, err
	}
	return []Route{*route}, nil
}

func findAsset(tokens []oneclick.TokenResponse, symbol, blockchain string) (*oneclick.TokenResponse, error) {
	for i := range tokens {
		if strings.EqualFold(tokens[i].GetSymbol(), symbol) &&
			strings.EqualFold(tokens[i].GetBlockchain(), blockchain) {
			return &tokens[i], nil
		}
	}
	return nil, fmt.Errorf("token %s not supported on %s by 1click", symbol, blockchain)
}

// HTTPBridgeProvider calls a JSON route endpoint:
// GET {base}/routes?fromChain=&toChain=&token=&amount=&from=&to=
// responding {"routes":[{"provider":"..","amountOut":"..","to":"0x..","data":"0x..","value":".."}]}.
type HTTPBridgeProvider struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewHTTPBridgeProvider builds a provider against a route API base URL.
func NewHTTPBridgeProvider(name, baseURL string) *HTTPBridgeProvider {
	return &HTTPBridgeProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Name identifies the provider in logs.
func (p *HTTPBridgeProvider) Name() string { return p.name }

type httpRouteResponse struct {
	Routes []struct {
		Provider  string `json:"provider"`
		AmountOut string `json:"amountOut"`
		To        string `json:"to"`
		Data      string `json:"data"`
		Value     string `json:"value"`
	} `json:"routes"`
}

// Routes fetches candidate routes.
func (p *HTTPBridgeProvider) Routes(ctx context.Context, rreq RouteRequest) ([]Route, error) {
	params := url.Values{}
	params.Set("fromChain", fmt.Sprintf("%d", rreq.FromChain))
	params.Set("toChain", fmt.Sprintf("%d", rreq.ToChain))
	params.Set("token", rreq.Token)
	params.Set("amount", rreq.Amount.String())
	params.Set("from", rreq.From)
	params.Set("to", rreq.To)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/routes?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build route request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("route request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge API returned status %d", resp.StatusCode)
	}

	var body httpRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode route response: %w", err)
	}

	routes := make([]Route, 0, len(body.Routes))
	for _, r := range body.Routes {
		amountOut, ok := new(big.Int).SetString(r.AmountOut, 10)
		if !ok {
			continue
		}
		data, err := hexutil.Decode(r.Data)
		if err != nil {
			continue
		}
		value := big.NewInt(0)
		if r.Value != "" {
			if value, ok = new(big.Int).SetString(r.Value, 10); !ok {
				continue
			}
		}
		name := r.Provider
		if name == "" {
			name = p.name
		}
		routes = append(routes, Route{
			Provider:  name,
			AmountOut: amountOut,
			Target:    r.To,
			CallData:  data,
			Value:     value,
		})
	}
	return routes, nil
}
