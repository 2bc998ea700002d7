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
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server only",
	Long: `Starts the REST API server without the scheduler.

Useful when the scheduler runs as a separate process, or when data is
refreshed manually through the API.

Endpoints:
  GET  /health
  GET  /api/indices/{country}/all/latest
  GET  /api/indices/{country}/{type}/latest
  GET  /api/indices/{country}/{type}/date/{date}
  GET  /api/indices/{country}/{type}/closest?date=
  GET  /api/indices/{country}/{type}/history?from=&to=
  GET  /api/indices/adjustment?country=&type=&from=&to=
  POST /api/indices/refresh
  POST /api/indices/backfill

Example:
  go run ./cmd/indices api
  go run ./cmd/indices api --port 8090`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== PropPilot Indices API Server ===")

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.db.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	indexHandler := handlers.NewIndexHandler(a.service, a.db, a.log)
	router := api.NewRouter(indexHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\nServer running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
