package quote

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dustsweep/pkg/metrics"
	"dustsweep/pkg/pricing"
	"dustsweep/pkg/registry"
	"dustsweep/pkg/scanner"
	"dustsweep/pkg/types"
)

// tokenDecimals is the static precision table for destination tokens.
// Symbols not listed here fall back to 18.
var tokenDecimals = map[string]uint8{
	"USDC": 6,
	"USDT": 6,
	"EURC": 6,
	"WBTC": 8,
	"DAI":  18,
	"WETH": 18,
}

// Params are the operator-configured quoting knobs.
type Params struct {
	FeePercent         float64 // e.g. 10.0
	Treasury           string  // donation recipient; empty disables donation mode
	QuoteExpirySeconds int64
	SlippageFactor     float64 // < 1
	FlatGasEstimateUSD float64 // per collection chain
	MinDustValueUSD    float64
	MaxDustValueUSD    float64
}

// Request asks for a sweep quote into one destination token.
type Request struct {
	UserAddress        string   `json:"userAddress"`
	DestinationChainID uint64   `json:"destinationChainId"`
	DestinationToken   string   `json:"destinationToken"`
	DestinationSymbol  string   `json:"destinationSymbol"`
	DonateToDefillama  bool     `json:"donateToDefillama"`
	IncludeChains      []uint64 `json:"includeChains,omitempty"`
	ExcludeChains      []uint64 `json:"excludeChains,omitempty"`
}

// Engine generates quotes and serves stored ones.
type Engine struct {
	params   Params
	registry *registry.Registry
	scanner  *scanner.Aggregator
	builder  *Builder
	oracle   pricing.Oracle
	store    *Store
	log      zerolog.Logger
	now      func() time.Time
}

// NewEngine wires the quoting pipeline.
func NewEngine(params Params, reg *registry.Registry, sc *scanner.Aggregator, builder *Builder, oracle pricing.Oracle, store *Store, log zerolog.Logger) *Engine {
	return &Engine{
		params:   params,
		registry: reg,
		scanner:  sc,
		builder:  builder,
		oracle:   oracle,
		store:    store,
		log:      log,
		now:      time.Now,
	}
}

// GenerateQuote scans the user's dust, prices the consolidation, builds
// the authorization set, and persists an immutable quote.
func (e *Engine) GenerateQuote(ctx context.Context, req Request) (*types.SweepQuote, error) {
	if err := e.validate(req); err != nil {
		return nil, err
	}
	if _, err := e.registry.Get(req.DestinationChainID); err != nil {
		return nil, err
	}

	summary, err := e.scanner.Scan(ctx, req.UserAddress, scanner.Options{
		MinValueUSD:   e.params.MinDustValueUSD,
		MaxValueUSD:   e.params.MaxDustValueUSD,
		IncludeChains: req.IncludeChains,
		ExcludeChains: req.ExcludeChains,
	})
	if err != nil {
		return nil, fmt.Errorf("scan balances: %w", err)
	}
	if len(summary.Dust) == 0 {
		return nil, fmt.Errorf("address %s: %w", req.UserAddress, types.ErrNoDustFound)
	}

	isDonation := req.DonateToDefillama && e.params.Treasury != ""
	feePercent := e.params.FeePercent
	if isDonation {
		feePercent = 0
	}

	feeUSD := summary.TotalValueUSD * feePercent / 100
	netUSD := summary.TotalValueUSD - feeUSD
	afterGasUSD := netUSD - float64(summary.ChainCount)*e.params.FlatGasEstimateUSD
	if afterGasUSD < 0 {
		afterGasUSD = 0
	}
	outputUSD := afterGasUSD * e.params.SlippageFactor

	recipient := req.UserAddress
	if isDonation {
		recipient = e.params.Treasury
	}

	auth, err := e.builder.Build(ctx, req.UserAddress, summary.Dust, e.params.QuoteExpirySeconds)
	if err != nil {
		return nil, fmt.Errorf("build authorization: %w", err)
	}

	issued := e.now().UTC()
	q := &types.SweepQuote{
		ID:                   uuid.NewString(),
		UserAddress:          req.UserAddress,
		Dust:                 summary.Dust,
		DestinationChainID:   req.DestinationChainID,
		DestinationToken:     req.DestinationToken,
		DestinationSymbol:    strings.ToUpper(req.DestinationSymbol),
		EstimatedOutput:      e.outputUnits(ctx, req, outputUSD).String(),
		EstimatedOutputUSD:   outputUSD,
		TotalInputValueUSD:   summary.TotalValueUSD,
		UnauthorizedValueUSD: summary.UnauthorizedValueUSD,
		IsDonation:           isDonation,
		FeePercent:           feePercent,
		FeeUSD:               feeUSD,
		Recipient:            recipient,
		IssuedAt:             issued,
		ExpiresAt:            issued.Add(time.Duration(e.params.QuoteExpirySeconds) * time.Second),
		Authorization:        auth,
	}

	e.store.Put(q)
	metrics.QuotesIssued.WithLabelValues(fmt.Sprintf("%t", isDonation)).Inc()
	e.log.Info().Str("quote", q.ID).Str("user", q.UserAddress).
		Float64("totalUsd", q.TotalInputValueUSD).Bool("donation", isDonation).
		Msg("quote issued")
	return q, nil
}

// GetQuote returns a stored, unexpired quote.
func (e *Engine) GetQuote(id string) (*types.SweepQuote, error) {
	return e.store.Get(id)
}

// outputUnits converts the estimated USD output into raw destination-token
// units, truncating toward zero. Unknown destination prices fall back to
// 1.0 and unknown symbols to 18 decimals; both fallbacks are deliberate.
func (e *Engine) outputUnits(ctx context.Context, req Request, outputUSD float64) *big.Int {
	price := decimal.NewFromInt(1)
	ref := pricing.TokenRef{ChainID: req.DestinationChainID, Address: req.DestinationToken}
	if prices, err := e.oracle.Prices(ctx, []pricing.TokenRef{ref}); err == nil {
		if p, ok := prices[ref]; ok && p.IsPositive() {
			price = p
		}
	}

	dec, ok := tokenDecimals[strings.ToUpper(req.DestinationSymbol)]
	if !ok {
		dec = 18
	}

	return decimal.NewFromFloat(outputUSD).
		Div(price).
		Shift(int32(dec)).
		Truncate(0).
		BigInt()
}

func (e *Engine) validate(req Request) error {
	if !common.IsHexAddress(req.UserAddress) {
		return types.NewValidationError("userAddress", "not a hex address")
	}
	if req.DestinationChainID == 0 {
		return types.NewValidationError("destinationChainId", "required")
	}
	if !common.IsHexAddress(req.DestinationToken) {
		return types.NewValidationError("destinationToken", "not a hex address")
	}
	return nil
}
