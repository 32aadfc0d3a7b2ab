package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dustsweep/config"
	"dustsweep/pkg/registry"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List the configured chains",
	Run:   runChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}

func runChains(cmd *cobra.Command, _ []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	reg, err := registry.Load(cfg.ChainsFile)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	chains := reg.All()
	if jsonOutput {
		out, _ := json.MarshalIndent(chains, "", "  ")
		fmt.Println(string(out))
		return
	}

	color.Green("\nConfigured chains (%d)\n", len(chains))
	for _, c := range chains {
		delegate := color.HiBlackString("no delegate")
		if c.HasDelegate() {
			delegate = c.Delegate
		}
		fmt.Printf("  %-6d %-12s %-6s tokens=%d  %s\n",
			c.ChainID, c.Name, c.NativeSymbol, len(c.Stablecoins), delegate)
	}
	fmt.Println()
}
