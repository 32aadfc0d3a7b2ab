package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dustsweep/config"
	"dustsweep/pkg/chainrpc"
	"dustsweep/pkg/logging"
	"dustsweep/pkg/pricing"
	"dustsweep/pkg/quote"
	"dustsweep/pkg/registry"
	"dustsweep/pkg/scanner"
	"dustsweep/pkg/server"
	"dustsweep/pkg/sweep"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dust consolidation HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel)

	reg, err := registry.Load(cfg.ChainsFile)
	if err != nil {
		return err
	}

	dialer := chainrpc.NewEVMDialer(cfg.SolverPrivateKey)
	defer dialer.Close()

	oracle := pricing.NewLlamaOracle(cfg.OracleBaseURL, log)
	aggregator := scanner.NewAggregator(reg, dialer, oracle, log)

	store := quote.NewStore(log)
	store.StartJanitor(quote.DefaultJanitorInterval)
	defer store.StopJanitor()

	builder := quote.NewBuilder(reg, quote.NewRPCNonceSource(reg, dialer))
	engine := quote.NewEngine(quote.Params{
		FeePercent:         cfg.FeePercent,
		Treasury:           cfg.Treasury,
		QuoteExpirySeconds: cfg.QuoteExpirySeconds,
		SlippageFactor:     cfg.SlippageFactor,
		FlatGasEstimateUSD: cfg.FlatGasEstimateUSD,
		MinDustValueUSD:    cfg.MinDustValueUSD,
		MaxDustValueUSD:    cfg.MaxDustValueUSD,
	}, reg, aggregator, builder, oracle, store, log)

	var swapFallback sweep.SwapProvider
	if cfg.SwapFallbackURL != "" {
		swapFallback = sweep.NewHTTPSwapProvider("fallback", cfg.SwapFallbackURL)
	}
	swaps := sweep.NewSwapRouter(sweep.NewHTTPSwapProvider("primary", cfg.SwapPrimaryURL), swapFallback, log)

	var bridgePrimary, bridgeFallback sweep.BridgeProvider
	if cfg.OneClickJWT != "" {
		bridgePrimary = sweep.NewOneClickBridge(cfg.OneClickJWT)
	}
	if cfg.BridgeHTTPURL != "" {
		p := sweep.NewHTTPBridgeProvider("bridge-http", cfg.BridgeHTTPURL)
		if bridgePrimary == nil {
			bridgePrimary = p
		} else {
			bridgeFallback = p
		}
	}
	bridges := sweep.NewBridgeRouter(bridgePrimary, bridgeFallback, log)

	settler := sweep.NewCoordinator(cfg.FeeBps, cfg.Treasury)
	executor := sweep.NewExecutor(reg, dialer, swaps, bridges, settler, sweep.NewResultStore(), log)
	executor.SetConfirmWait(time.Duration(cfg.ConfirmWaitSeconds) * time.Second)

	srv := server.New(reg, aggregator, engine, executor, cfg.MinDustValueUSD, cfg.MaxDustValueUSD, log)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Int("chains", len(reg.All())).Msg("dustsweep API listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}
