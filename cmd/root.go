package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dustsweep",
	Short: "Multi-chain dust consolidation engine",
	Long: `dustsweep consolidates the small token balances a wallet holds across
multiple chains into one chosen token on one destination network,
authorized by a single user signature.

Examples:
  dustsweep serve
  dustsweep scan 0xYourWallet
  dustsweep chains`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}
