package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// chainSlugs maps EVM chain ids to the coins-API chain identifiers.
var chainSlugs = map[uint64]string{
	1:      "ethereum",
	10:     "optimism",
	56:     "bsc",
	100:    "xdai",
	137:    "polygon",
	250:    "fantom",
	8453:   "base",
	42161:  "arbitrum",
	43114:  "avax",
	59144:  "linea",
	534352: "scroll",
}

// LlamaOracle queries a DefiLlama-compatible coins API for current USD
// prices. One GET per batch; a failed call yields an empty map plus the
// error so callers can decide whether the absence matters.
type LlamaOracle struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewLlamaOracle builds an oracle against a coins API base URL.
func NewLlamaOracle(baseURL string, log zerolog.Logger) *LlamaOracle {
	return &LlamaOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type coinsResponse struct {
	Coins map[string]struct {
		Price      decimal.Decimal `json:"price"`
		Symbol     string          `json:"symbol"`
		Confidence float64         `json:"confidence"`
	} `json:"coins"`
}

// Prices fetches current USD prices for the given refs. Pairs on chains
// the API does not know, or pairs it cannot price, are omitted.
func (o *LlamaOracle) Prices(ctx context.Context, refs []TokenRef) (map[TokenRef]decimal.Decimal, error) {
	out := make(map[TokenRef]decimal.Decimal, len(refs))
	if len(refs) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(refs))
	byKey := make(map[string]TokenRef, len(refs))
	for _, ref := range refs {
		slug, ok := chainSlugs[ref.ChainID]
		if !ok {
			continue
		}
		key := fmt.Sprintf("%s:%s", slug, strings.ToLower(ref.Address))
		keys = append(keys, key)
		byKey[key] = ref
	}
	if len(keys) == 0 {
		return out, nil
	}

	url := fmt.Sprintf("%s/prices/current/%s", o.baseURL, strings.Join(keys, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return out, fmt.Errorf("build price request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	var body coinsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return out, fmt.Errorf("decode price response: %w", err)
	}

	for key, coin := range body.Coins {
		ref, ok := byKey[strings.ToLower(key)]
		if !ok {
			continue
		}
		if coin.Price.IsNegative() {
			o.log.Warn().Str("key", key).Msg("oracle returned negative price, skipping")
			continue
		}
		out[ref] = coin.Price
	}
	return out, nil
}
