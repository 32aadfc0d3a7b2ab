package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dustsweep/config"
	"dustsweep/pkg/chainrpc"
	"dustsweep/pkg/logging"
	"dustsweep/pkg/pricing"
	"dustsweep/pkg/registry"
	"dustsweep/pkg/scanner"
)

var (
	scanMinUSD float64
	scanMaxUSD float64
)

var scanCmd = &cobra.Command{
	Use:   "scan <address>",
	Short: "Scan a wallet's dust across every configured chain",
	Long: `Scan queries every registered chain for the wallet's native and known
token balances, values them in USD, and prints the ones inside the dust
range.

Examples:
  dustsweep scan 0x1111111111111111111111111111111111111111
  dustsweep scan 0x1111... --min 0.05 --max 5`,
	Args: cobra.ExactArgs(1),
	Run:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Float64Var(&scanMinUSD, "min", 0, "Minimum USD value (default from config)")
	scanCmd.Flags().Float64Var(&scanMaxUSD, "max", 0, "Maximum USD value (default from config)")
}

func runScan(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	reg, err := registry.Load(cfg.ChainsFile)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	dialer := chainrpc.NewEVMDialer("")
	defer dialer.Close()
	oracle := pricing.NewLlamaOracle(cfg.OracleBaseURL, log)
	aggregator := scanner.NewAggregator(reg, dialer, oracle, log)

	opts := scanner.Options{MinValueUSD: cfg.MinDustValueUSD, MaxValueUSD: cfg.MaxDustValueUSD}
	if scanMinUSD > 0 {
		opts.MinValueUSD = scanMinUSD
	}
	if scanMaxUSD > 0 {
		opts.MaxValueUSD = scanMaxUSD
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Scanning %d chains...", len(reg.All()))
	s.Start()
	summary, err := aggregator.Scan(cmd.Context(), args[0], opts)
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(out))
		return
	}

	color.Green("\nDust for %s", summary.Address)
	fmt.Printf("Total: $%.2f across %d tokens on %d chains\n\n", summary.TotalValueUSD, summary.TokenCount, summary.ChainCount)
	for _, b := range summary.Dust {
		fmt.Printf("  %-10s %-12s %14s  $%.4f\n",
			b.ChainName,
			color.YellowString(b.Symbol),
			b.Formatted,
			b.ValueUSD)
	}
	if summary.UnauthorizedValueUSD > 0 {
		color.HiBlack("\n$%.2f of this value sits on chains without a delegate contract and cannot be swept.", summary.UnauthorizedValueUSD)
	}
	fmt.Println()
}
