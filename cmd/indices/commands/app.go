package commands

import (
	"fmt"
	"time"

	"github.com/proppilot/indices/internal/external/argentinadatos"
	"github.com/proppilot/indices/internal/external/bcra"
	"github.com/proppilot/indices/internal/external/dolarapi"
	"github.com/proppilot/indices/internal/indices"
	"github.com/proppilot/indices/internal/indices/store"
	"github.com/proppilot/indices/internal/scheduler"
	"github.com/proppilot/indices/internal/scheduler/jobs"
	"github.com/proppilot/indices/pkg/config"
	"github.com/proppilot/indices/pkg/database"
	"github.com/proppilot/indices/pkg/httputil"
	"github.com/proppilot/indices/pkg/logger"
)

// app bundles the wired dependencies shared by every command.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	service *indices.Service
}

// initApp wires config, logger, database, fetchers and the index service.
// The caller owns the database handle and must Close() it.
func initApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	log.Info("Connected to database")

	// 4. Create per-source HTTP clients; all share one outbound rate limit
	dolarHTTP := httputil.New(log, cfg.Sources.DolarAPITimeout).WithRateLimit(cfg.Sources.RequestsPerSec)
	bcraHTTP := httputil.New(log, cfg.Sources.BCRAIclTimeout).WithRateLimit(cfg.Sources.RequestsPerSec)
	argDatosHTTP := httputil.New(log, cfg.Sources.ArgDatosTimeout).WithRateLimit(cfg.Sources.RequestsPerSec)

	// 5. Create fetchers
	fetchers := []indices.Fetcher{
		dolarapi.New(dolarHTTP, log, cfg.Sources.DolarAPIURL),
		bcra.New(bcraHTTP, log, cfg.Sources.BCRAIclURL),
		argentinadatos.New(argDatosHTTP, log, cfg.Sources.ArgDatosIpcURL),
	}

	// 6. Create value store
	valueStore := store.NewPostgresStore(db.Pool)

	// 7. Create service
	service := indices.NewService(valueStore, fetchers, log)

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		service: service,
	}, nil
}

// buildScheduler creates the scheduler with all refresh jobs registered.
// The startup backfill is armed separately by commands that want it.
func buildScheduler(a *app) (*scheduler.Scheduler, error) {
	loc, err := time.LoadLocation(a.cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", a.cfg.Scheduler.Timezone, err)
	}

	sched := scheduler.New(a.log, loc)

	refreshJobs := []scheduler.Job{
		jobs.NewDollarRatesJob(a.service, a.cfg, a.log),
		jobs.NewIclJob(a.service, a.cfg, a.log),
		jobs.NewIpcJob(a.service, a.cfg, a.log),
	}
	for _, job := range refreshJobs {
		if err := sched.AddJob(job); err != nil {
			return nil, fmt.Errorf("add job: %w", err)
		}
	}

	return sched, nil
}
