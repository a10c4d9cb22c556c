// Package cmd holds the solver's command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "intents-solver",
	Short: "Cross-chain market-making solver for NEAR Intents",
	Long: `intents-solver quotes and settles cross-chain swaps for the NEAR
Intents protocol: it listens for quote requests on the solver bus, prices
them against its own inventory, signs NEP-413 quote commitments, and
settles accepted intents through the 1Click bridge aggregator.`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
