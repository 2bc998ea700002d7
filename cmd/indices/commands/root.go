package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "indices",
	Short: "PropPilot indices - rent adjustment index service",
	Long: `PropPilot Indices Service

Collects Argentine rent-adjustment indices (ICL, IPC, dollar exchange
rates) from their official sources, stores them as daily time series and
serves adjustment calculations over HTTP.

Usage:
  go run ./cmd/indices [command]

Examples:
  go run ./cmd/indices start
  go run ./cmd/indices api
  go run ./cmd/indices scheduler start
  go run ./cmd/indices refresh AR
  go run ./cmd/indices backfill`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
