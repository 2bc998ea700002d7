package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// backfillCmd represents the backfill command
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Import all historical index values",
	Long: `Downloads the complete available history from every index
source and stores the values not yet present. Safe to re-run: existing
values are never modified, only gaps are filled.

The BCRA workbook and the inflation series go back years, so the first
run can take a while.

Example:
  go run ./cmd/indices backfill`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.db.Close()

	fmt.Println("Importing historical index data...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := a.service.Backfill(ctx); err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	fmt.Println("Historical import completed")
	return nil
}
