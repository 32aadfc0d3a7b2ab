package sweep

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dustsweep/pkg/chainrpc"
	"dustsweep/pkg/metrics"
	"dustsweep/pkg/registry"
	"dustsweep/pkg/types"
)

// DefaultConfirmWait bounds how long the executor waits for any single
// transaction confirmation before reporting it unconfirmed.
const DefaultConfirmWait = 60 * time.Second

// Executor drives a signed quote through the sweep → swap → bridge →
// settle state machine. There is no mid-flight cancellation; the only
// temporal control is the quote deadline and the bounded confirmation wait.
type Executor struct {
	registry    *registry.Registry
	dialer      chainrpc.Dialer
	swaps       *SwapRouter
	bridges     *BridgeRouter
	settler     *Coordinator
	results     *ResultStore
	log         zerolog.Logger
	confirmWait time.Duration
	now         func() time.Time
}

// NewExecutor wires the execution pipeline.
func NewExecutor(reg *registry.Registry, dialer chainrpc.Dialer, swaps *SwapRouter, bridges *BridgeRouter, settler *Coordinator, results *ResultStore, log zerolog.Logger) *Executor {
	return &Executor{
		registry:    reg,
		dialer:      dialer,
		swaps:       swaps,
		bridges:     bridges,
		settler:     settler,
		results:     results,
		log:         log,
		confirmWait: DefaultConfirmWait,
		now:         time.Now,
	}
}

// SetConfirmWait overrides the per-transaction confirmation bound.
func (e *Executor) SetConfirmWait(d time.Duration) { e.confirmWait = d }

// Result returns the current state of a sweep run.
func (e *Executor) Result(sweepID string) (*types.SweepExecutionResult, error) {
	return e.results.Get(sweepID)
}

// Start validates the signature set and deadline, then launches the run in
// the background. The returned result is the initial (pending or already
// expired) snapshot; callers poll Result for progress.
func (e *Executor) Start(ctx context.Context, q *types.SweepQuote, signatures map[uint64]string) (*types.SweepExecutionResult, error) {
	sweepID := uuid.NewString()

	if q.Expired(e.now()) {
		e.results.Create(sweepID, q.ID, types.StatusExpired)
		metrics.SweepsByStatus.WithLabelValues(string(types.StatusExpired)).Inc()
		return e.results.Get(sweepID)
	}
	if len(signatures) == 0 {
		return nil, types.ErrSignatureMissing
	}
	for _, auth := range q.Authorization.Authorizations {
		if signatures[auth.ChainID] == "" {
			return nil, fmt.Errorf("chain %d: %w", auth.ChainID, types.ErrSignatureMissing)
		}
	}

	e.results.Create(sweepID, q.ID, types.StatusPending)
	go e.run(context.WithoutCancel(ctx), sweepID, q)
	return e.results.Get(sweepID)
}

// chainProceeds is what one collection chain holds after its swaps.
type chainProceeds struct {
	token  string
	symbol string
	amount *big.Int
}

func (e *Executor) run(ctx context.Context, sweepID string, q *types.SweepQuote) {
	log := e.log.With().Str("sweep", sweepID).Str("quote", q.ID).Logger()

	e.results.SetStatus(sweepID, types.StatusSweeping)
	succeeded, failed := e.sweepStage(ctx, sweepID, q)
	switch {
	case len(succeeded) == 0:
		e.terminalFail(sweepID, "every chain sweep failed", len(failed) > 0 && anySubmitted(e.results, sweepID))
		return
	case len(failed) > 0:
		// Partial progress is continuable, not a hard failure: the status
		// stays sweeping and the failed subset is left for the caller.
		perr := &types.PartialExecutionError{Stage: "sweeping", Failed: failed, Succeeded: succeeded}
		e.results.FlagReconciliation(sweepID, perr.Error())
		metrics.SweepsByStatus.WithLabelValues("partial").Inc()
		log.Warn().Uints64("failed", failed).Msg("partial sweep, awaiting reconciliation")
		return
	}

	if e.expire(sweepID, q, true) {
		return
	}
	e.results.SetStatus(sweepID, types.StatusSwapping)
	proceeds, err := e.swapStage(ctx, sweepID, q)
	if err != nil {
		e.terminalFail(sweepID, fmt.Sprintf("swap stage: %v", err), true)
		return
	}

	gross := big.NewInt(0)
	if home, ok := proceeds[q.DestinationChainID]; ok {
		gross.Add(gross, home.amount)
	}

	if crossChain(proceeds, q.DestinationChainID) {
		if e.expire(sweepID, q, true) {
			return
		}
		e.results.SetStatus(sweepID, types.StatusBridging)
		bridged, err := e.bridgeStage(ctx, sweepID, q, proceeds)
		if err != nil {
			e.terminalFail(sweepID, fmt.Sprintf("bridge stage: %v", err), true)
			return
		}
		gross.Add(gross, bridged)
	}

	if e.expire(sweepID, q, true) {
		return
	}
	e.results.SetStatus(sweepID, types.StatusSettling)
	if err := e.settleStage(ctx, sweepID, q, gross); err != nil {
		e.terminalFail(sweepID, fmt.Sprintf("settle stage: %v", err), true)
		return
	}

	e.results.SetStatus(sweepID, types.StatusCompleted)
	metrics.SweepsByStatus.WithLabelValues(string(types.StatusCompleted)).Inc()
	log.Info().Str("gross", gross.String()).Msg("sweep completed")
}

// sweepStage submits one sweep per authorized chain. Chains run
// concurrently and independently; within a chain the native and token
// sweeps are two sequential calls from the same signer.
func (e *Executor) sweepStage(ctx context.Context, sweepID string, q *types.SweepQuote) (succeeded, failed []uint64) {
	auths := q.Authorization.Authorizations
	type outcome struct {
		chainID uint64
		err     error
	}
	results := make(chan outcome, len(auths))

	for _, auth := range auths {
		go func(auth types.ChainAuthorization) {
			err := e.sweepChain(ctx, sweepID, q, auth)
			results <- outcome{chainID: auth.ChainID, err: err}
		}(auth)
	}

	for range auths {
		out := <-results
		if out.err != nil {
			e.log.Warn().Str("sweep", sweepID).Uint64("chain", out.chainID).Err(out.err).Msg("chain sweep failed")
			failed = append(failed, out.chainID)
			continue
		}
		succeeded = append(succeeded, out.chainID)
	}
	return succeeded, failed
}

func (e *Executor) sweepChain(ctx context.Context, sweepID string, q *types.SweepQuote, auth types.ChainAuthorization) error {
	cfg, err := e.registry.Get(auth.ChainID)
	if err != nil {
		return err
	}
	client, err := e.dialer.Dial(cfg)
	if err != nil {
		return fmt.Errorf("dial chain %d: %w", auth.ChainID, err)
	}

	var (
		nativeAmount *big.Int
		tokens       []string
		amounts      []*big.Int
	)
	for i, token := range auth.Tokens {
		amount, ok := new(big.Int).SetString(auth.Amounts[i], 10)
		if !ok {
			return fmt.Errorf("chain %d: bad amount %q", auth.ChainID, auth.Amounts[i])
		}
		if token == types.ZeroAddress {
			nativeAmount = amount
			continue
		}
		tokens = append(tokens, token)
		amounts = append(amounts, amount)
	}

	deadline := q.Authorization.Deadline
	if nativeAmount != nil {
		data, err := packSweepNative(nativeAmount, deadline)
		if err != nil {
			return err
		}
		if err := e.submit(ctx, sweepID, client, auth.ChainID, "sweep", cfg.Delegate, data, nil); err != nil {
			return err
		}
	}
	if len(tokens) > 0 {
		data, err := packSweep(tokens, amounts, deadline)
		if err != nil {
			return err
		}
		if err := e.submit(ctx, sweepID, client, auth.ChainID, "sweep", cfg.Delegate, data, nil); err != nil {
			return err
		}
	}
	return nil
}

// swapStage converts the swept dust on each chain into the destination
// token (on the destination chain) or the chain's bridgeable stablecoin.
func (e *Executor) swapStage(ctx context.Context, sweepID string, q *types.SweepQuote) (map[uint64]*chainProceeds, error) {
	byChain := make(map[uint64][]types.TokenBalance)
	for _, bal := range q.Dust {
		byChain[bal.ChainID] = append(byChain[bal.ChainID], bal)
	}

	proceeds := make(map[uint64]*chainProceeds, len(byChain))
	for _, auth := range q.Authorization.Authorizations {
		chainID := auth.ChainID
		cfg, err := e.registry.Get(chainID)
		if err != nil {
			return nil, err
		}
		client, err := e.dialer.Dial(cfg)
		if err != nil {
			return nil, fmt.Errorf("dial chain %d: %w", chainID, err)
		}

		tokenOut, symbolOut, err := e.conversionTarget(cfg, q)
		if err != nil {
			return nil, err
		}
		out := &chainProceeds{token: tokenOut, symbol: symbolOut, amount: big.NewInt(0)}

		for _, bal := range byChain[chainID] {
			if bal.Token == tokenOut {
				out.amount.Add(out.amount, bal.Raw)
				continue
			}
			sq, err := e.swaps.Quote(ctx, chainID, bal.Token, tokenOut, bal.Raw, cfg.Delegate)
			if err != nil {
				return nil, fmt.Errorf("chain %d %s: %w", chainID, bal.Symbol, err)
			}
			if err := e.submit(ctx, sweepID, client, chainID, "swap", sq.Target, sq.CallData, sq.Value); err != nil {
				return nil, err
			}
			out.amount.Add(out.amount, sq.AmountOut)
		}
		proceeds[chainID] = out
	}
	return proceeds, nil
}

// conversionTarget picks each chain's swap output: the destination token
// on the destination chain, else the chain's primary stablecoin to carry
// value across the bridge.
func (e *Executor) conversionTarget(cfg types.ChainConfig, q *types.SweepQuote) (token, symbol string, err error) {
	if cfg.ChainID == q.DestinationChainID {
		return q.DestinationToken, q.DestinationSymbol, nil
	}
	if len(cfg.Stablecoins) == 0 {
		return "", "", fmt.Errorf("chain %d has no bridgeable stablecoin configured", cfg.ChainID)
	}
	return cfg.Stablecoins[0].Address, cfg.Stablecoins[0].Symbol, nil
}

// bridgeStage moves each non-destination chain's proceeds to the
// destination chain, taking the highest-output candidate route.
func (e *Executor) bridgeStage(ctx context.Context, sweepID string, q *types.SweepQuote, proceeds map[uint64]*chainProceeds) (*big.Int, error) {
	bridged := big.NewInt(0)
	for chainID, p := range proceeds {
		if chainID == q.DestinationChainID || p.amount.Sign() == 0 {
			continue
		}
		cfg, err := e.registry.Get(chainID)
		if err != nil {
			return nil, err
		}
		client, err := e.dialer.Dial(cfg)
		if err != nil {
			return nil, fmt.Errorf("dial chain %d: %w", chainID, err)
		}

		route, err := e.bridges.Best(ctx, RouteRequest{
			FromChain: chainID,
			ToChain:   q.DestinationChainID,
			Token:     p.token,
			Symbol:    p.symbol,
			Amount:    p.amount,
			From:      cfg.Delegate,
			To:        e.settleTarget(q),
		})
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", chainID, err)
		}
		if err := e.submit(ctx, sweepID, client, chainID, "bridge", route.Target, route.CallData, route.Value); err != nil {
			return nil, err
		}
		bridged.Add(bridged, route.AmountOut)
	}
	return bridged, nil
}

// settleTarget is where bridged funds land before settlement: the
// destination chain's vault when one is configured, else the recipient.
func (e *Executor) settleTarget(q *types.SweepQuote) string {
	if cfg, err := e.registry.Get(q.DestinationChainID); err == nil && cfg.Vault != "" {
		return cfg.Vault
	}
	return q.Recipient
}

// settleStage computes the fee/donation split and, when the destination
// chain has a vault, submits the on-chain settlement call. The vault
// recomputes the identical bps split; ours is for quoting and reporting.
func (e *Executor) settleStage(ctx context.Context, sweepID string, q *types.SweepQuote, gross *big.Int) error {
	settlement, err := e.settler.Settle(q.Recipient, q.DestinationToken, gross, q.IsDonation)
	if err != nil {
		return err
	}

	cfg, err := e.registry.Get(q.DestinationChainID)
	if err != nil {
		return err
	}
	if cfg.Vault != "" {
		client, err := e.dialer.Dial(cfg)
		if err != nil {
			return fmt.Errorf("dial chain %d: %w", cfg.ChainID, err)
		}
		data, err := packSettle(settlement.Recipient, q.DestinationToken, gross, q.IsDonation)
		if err != nil {
			return err
		}
		if err := e.submit(ctx, sweepID, client, cfg.ChainID, "settle", cfg.Vault, data, nil); err != nil {
			return err
		}
	}

	if q.IsDonation {
		metrics.DonationsUSD.Add(q.EstimatedOutputUSD)
	} else {
		metrics.FeesAccruedUSD.Add(q.FeeUSD)
	}
	return nil
}

// submit sends one transaction and waits (bounded) for its receipt,
// recording the tagged outcome on the result.
func (e *Executor) submit(ctx context.Context, sweepID string, client chainrpc.Client, chainID uint64, stage, to string, data []byte, value *big.Int) error {
	txHash, err := client.SendTransaction(ctx, to, data, value)
	if err != nil {
		e.results.AppendTx(sweepID, types.ChainTxRecord{
			ChainID: chainID, Stage: stage, Outcome: types.TxFailed, Error: err.Error(),
		})
		return fmt.Errorf("submit %s tx: %w", stage, err)
	}

	receipt, err := client.WaitForReceipt(ctx, txHash, e.confirmWait)
	if err != nil {
		outcome := types.TxFailed
		if errors.Is(err, types.ErrTransactionTimeout) {
			outcome = types.TxUnconfirmed
		}
		e.results.AppendTx(sweepID, types.ChainTxRecord{
			ChainID: chainID, Stage: stage, TxHash: txHash, Outcome: outcome, Error: err.Error(),
		})
		return fmt.Errorf("confirm %s tx: %w", stage, err)
	}
	if receipt.Status != 1 {
		e.results.AppendTx(sweepID, types.ChainTxRecord{
			ChainID: chainID, Stage: stage, TxHash: txHash, Outcome: types.TxFailed, Error: "reverted",
		})
		return fmt.Errorf("%s tx %s reverted", stage, txHash)
	}

	e.results.AppendTx(sweepID, types.ChainTxRecord{
		ChainID: chainID, Stage: stage, TxHash: txHash, Outcome: types.TxConfirmed,
	})
	return nil
}

// expire transitions to the expired terminal state if the deadline passed
// mid-flight; reconcile flags funds already moved to intermediate custody.
func (e *Executor) expire(sweepID string, q *types.SweepQuote, reconcile bool) bool {
	if !q.Expired(e.now()) {
		return false
	}
	if reconcile {
		e.results.FlagReconciliation(sweepID, "deadline passed during execution")
	}
	e.results.SetStatus(sweepID, types.StatusExpired)
	metrics.SweepsByStatus.WithLabelValues(string(types.StatusExpired)).Inc()
	return true
}

func (e *Executor) terminalFail(sweepID, msg string, reconcile bool) {
	e.results.Fail(sweepID, msg, reconcile)
	metrics.SweepsByStatus.WithLabelValues(string(types.StatusFailed)).Inc()
	e.log.Error().Str("sweep", sweepID).Str("reason", msg).Msg("sweep failed")
}

func crossChain(proceeds map[uint64]*chainProceeds, destChain uint64) bool {
	for chainID := range proceeds {
		if chainID != destChain {
			return true
		}
	}
	return false
}

// anySubmitted reports whether any transaction made it on-chain, meaning
// funds may sit in intermediate custody.
func anySubmitted(results *ResultStore, sweepID string) bool {
	res, err := results.Get(sweepID)
	if err != nil {
		return false
	}
	for _, rec := range res.Chains {
		if rec.Outcome == types.TxConfirmed || rec.Outcome == types.TxUnconfirmed {
			return true
		}
	}
	return false
}
