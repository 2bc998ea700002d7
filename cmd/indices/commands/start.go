package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/proppilot/indices/internal/api"
	"github.com/proppilot/indices/internal/api/handlers"
	"github.com/proppilot/indices/internal/scheduler/jobs"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the full service (API + scheduler)",
	Long: `Starts the complete indices service in one process.

This command:
- Starts the HTTP API server
- Starts the refresh scheduler
- Arms a one-shot historical backfill shortly after boot

The backfill is idempotent: values already stored are left untouched,
so restarting the service never duplicates data.

Example:
  go run ./cmd/indices start
  go run ./cmd/indices start --port 8090
  go run ./cmd/indices start --no-backfill`,
	RunE: runStart,
}

var (
	startPort       string
	startNoBackfill bool
)

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringVar(&startPort, "port", "", "API server port (overrides PORT)")
	startCmd.Flags().BoolVar(&startNoBackfill, "no-backfill", false, "skip the startup historical backfill")
}

func runStart(cmd *cobra.Command, args []string) error {
	fmt.Println("=== PropPilot Indices Service ===")

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.db.Close()

	if startPort != "" {
		a.cfg.Port = startPort
	}

	// Scheduler with all refresh jobs
	sched, err := buildScheduler(a)
	if err != nil {
		return err
	}

	if a.cfg.Scheduler.BackfillOnBoot && !startNoBackfill {
		sched.RunOnceAfter(a.cfg.Scheduler.BackfillDelay, jobs.NewBackfillJob(a.service, a.log))
	}

	sched.Start()

	// HTTP API
	indexHandler := handlers.NewIndexHandler(a.service, a.db, a.log)
	router := api.NewRouter(indexHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\nServer running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Scheduled jobs:")
	for _, jobName := range sched.JobNames() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Shutting down...")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Service stopped")
	return nil
}
