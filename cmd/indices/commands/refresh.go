package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh [country]",
	Short: "Fetch and store the latest index values",
	Long: `Fetches the latest value from every index source and stores
anything not yet present. Without an argument every configured country
is refreshed.

Example:
  go run ./cmd/indices refresh
  go run ./cmd/indices refresh AR`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if len(args) == 1 {
		fmt.Printf("Refreshing indices for %s...\n", args[0])
		if err := a.service.Refresh(ctx, args[0]); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
	} else {
		fmt.Println("Refreshing indices for all countries...")
		if err := a.service.RefreshAll(ctx); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
	}

	fmt.Println("Refresh completed")
	return nil
}
