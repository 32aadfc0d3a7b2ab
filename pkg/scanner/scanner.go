// Package scanner aggregates a wallet's balances across every registered
// chain and filters them to the dust range.
package scanner

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dustsweep/pkg/chainrpc"
	"dustsweep/pkg/metrics"
	"dustsweep/pkg/pricing"
	"dustsweep/pkg/registry"
	"dustsweep/pkg/types"
)

// Options tunes one scan.
type Options struct {
	MinValueUSD   float64
	MaxValueUSD   float64
	IncludeChains []uint64
	ExcludeChains []uint64
}

// Aggregator performs the concurrent cross-chain balance scan. One scan
// task runs per active chain; the fan-out is unbounded by chain count,
// which caps how many chains a deployment can reasonably register.
type Aggregator struct {
	registry *registry.Registry
	dialer   chainrpc.Dialer
	oracle   pricing.Oracle
	log      zerolog.Logger
}

// NewAggregator wires the scanner's collaborators.
func NewAggregator(reg *registry.Registry, dialer chainrpc.Dialer, oracle pricing.Oracle, log zerolog.Logger) *Aggregator {
	return &Aggregator{registry: reg, dialer: dialer, oracle: oracle, log: log}
}

// chainResult is the tagged outcome of one chain's scan task. A failed
// chain contributes zero balances and never fails the aggregate call.
type chainResult struct {
	chainID  uint64
	balances []types.TokenBalance
	err      error
}

// Scan queries every active chain for the address's native and known-token
// balances, values them in USD, and returns the balances inside the
// [MinValueUSD, MaxValueUSD] dust range sorted descending by value.
func (a *Aggregator) Scan(ctx context.Context, address string, opts Options) (*types.DustSummary, error) {
	metrics.ScansTotal.Inc()

	chains := a.registry.Active(opts.IncludeChains, opts.ExcludeChains)
	results := make(chan chainResult, len(chains))

	for _, cfg := range chains {
		go func(cfg types.ChainConfig) {
			balances, err := a.scanChain(ctx, cfg, address)
			results <- chainResult{chainID: cfg.ChainID, balances: balances, err: err}
		}(cfg)
	}

	// Merge only after every task has settled, success or failure.
	var dust []types.TokenBalance
	for range chains {
		res := <-results
		if res.err != nil {
			metrics.ChainScanFailures.WithLabelValues(strconv.FormatUint(res.chainID, 10)).Inc()
			a.log.Warn().Uint64("chain", res.chainID).Err(res.err).Msg("chain scan failed, skipping")
			continue
		}
		dust = append(dust, res.balances...)
	}

	dust = a.filterDust(dust, opts)
	sort.SliceStable(dust, func(i, j int) bool { return dust[i].ValueUSD > dust[j].ValueUSD })

	summary := &types.DustSummary{
		Address:     address,
		Dust:        dust,
		TokenCount:  len(dust),
		GeneratedAt: time.Now().UTC(),
	}
	seen := make(map[uint64]bool)
	for _, b := range dust {
		summary.TotalValueUSD += b.ValueUSD
		seen[b.ChainID] = true
		if cfg, err := a.registry.Get(b.ChainID); err == nil && !cfg.HasDelegate() {
			summary.UnauthorizedValueUSD += b.ValueUSD
		}
	}
	summary.ChainCount = len(seen)
	return summary, nil
}

// scanChain reads the native balance and every known-token balance on one
// chain (reads run concurrently), then prices the nonzero ones in a single
// batched oracle call.
func (a *Aggregator) scanChain(ctx context.Context, cfg types.ChainConfig, address string) ([]types.TokenBalance, error) {
	client, err := a.dialer.Dial(cfg)
	if err != nil {
		return nil, fmt.Errorf("dial chain %d: %w", cfg.ChainID, err)
	}

	type read struct {
		token types.TokenConfig
		raw   *big.Int
		err   error
	}

	reads := make([]read, len(cfg.Stablecoins)+1)
	reads[0].token = types.TokenConfig{
		Address:  types.ZeroAddress,
		Symbol:   cfg.NativeSymbol,
		Decimals: cfg.NativeDecimals,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reads[0].raw, reads[0].err = client.NativeBalance(ctx, address)
	}()
	for i, tok := range cfg.Stablecoins {
		wg.Add(1)
		go func(i int, tok types.TokenConfig) {
			defer wg.Done()
			reads[i+1].token = tok
			reads[i+1].raw, reads[i+1].err = client.TokenBalance(ctx, tok.Address, address)
		}(i, tok)
	}
	wg.Wait()

	var nonzero []read
	for _, r := range reads {
		if r.err != nil {
			return nil, fmt.Errorf("read %s balance: %w", r.token.Symbol, r.err)
		}
		if r.raw != nil && r.raw.Sign() > 0 {
			nonzero = append(nonzero, r)
		}
	}
	if len(nonzero) == 0 {
		return nil, nil
	}

	refs := make([]pricing.TokenRef, len(nonzero))
	for i, r := range nonzero {
		refs[i] = priceRef(cfg, r.token.Address)
	}
	prices, err := a.oracle.Prices(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("price chain %d balances: %w", cfg.ChainID, err)
	}

	balances := make([]types.TokenBalance, 0, len(nonzero))
	for i, r := range nonzero {
		price, ok := prices[refs[i]]
		if !ok {
			// Unknown price means the balance cannot be classified as
			// dust; absence is not zero.
			a.log.Debug().Uint64("chain", cfg.ChainID).Str("token", r.token.Symbol).
				Msg("no price for balance, skipping")
			continue
		}
		amount := decimal.NewFromBigInt(r.raw, -int32(r.token.Decimals))
		balances = append(balances, types.TokenBalance{
			ChainID:   cfg.ChainID,
			ChainName: cfg.Name,
			Token:     r.token.Address,
			Symbol:    r.token.Symbol,
			Decimals:  r.token.Decimals,
			Raw:       r.raw,
			Balance:   r.raw.String(),
			Formatted: amount.String(),
			PriceUSD:  price.InexactFloat64(),
			ValueUSD:  amount.Mul(price).InexactFloat64(),
		})
	}
	return balances, nil
}

// filterDust keeps balances inside the dust range. The lower bound is the
// larger of the request minimum and the chain's own dust threshold.
func (a *Aggregator) filterDust(balances []types.TokenBalance, opts Options) []types.TokenBalance {
	out := balances[:0]
	for _, b := range balances {
		min := opts.MinValueUSD
		if cfg, err := a.registry.Get(b.ChainID); err == nil && cfg.MinDustUSD > min {
			min = cfg.MinDustUSD
		}
		if b.ValueUSD < min || b.ValueUSD > opts.MaxValueUSD {
			continue
		}
		out = append(out, b)
	}
	return out
}

// priceRef maps a balance to its oracle lookup key. Native assets are
// priced through the chain's wrapped-native contract.
func priceRef(cfg types.ChainConfig, tokenAddress string) pricing.TokenRef {
	if tokenAddress == types.ZeroAddress && cfg.WrappedNative != "" {
		return pricing.TokenRef{ChainID: cfg.ChainID, Address: cfg.WrappedNative}
	}
	return pricing.TokenRef{ChainID: cfg.ChainID, Address: tokenAddress}
}
