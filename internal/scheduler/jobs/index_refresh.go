// Package jobs defines the recurring index refresh jobs and the one-shot
// startup backfill. Schedules follow the publication habits of each
// source: exchange rates move intraday, the ICL appears each business
// morning, and the IPC lands once a month on an irregular day.
package jobs

import (
	"context"
	"fmt"

	"github.com/proppilot/indices/internal/indices"
	"github.com/proppilot/indices/pkg/config"
	"github.com/proppilot/indices/pkg/logger"
)

// indexCountry is the only country with live index feeds today. New
// countries register their own fetchers and jobs.
const indexCountry = "AR"

// DollarRatesJob refreshes exchange rates hourly during business hours.
type DollarRatesJob struct {
	service *indices.Service
	config  *config.Config
	logger  *logger.Logger
}

// NewDollarRatesJob creates the hourly exchange-rate refresh job.
func NewDollarRatesJob(service *indices.Service, cfg *config.Config, log *logger.Logger) *DollarRatesJob {
	return &DollarRatesJob{service: service, config: cfg, logger: log}
}

// Name returns the job name.
func (j *DollarRatesJob) Name() string {
	return "dollar_rates_refresh"
}

// Schedule returns the cron schedule: hourly within the configured local
// hour window, business days only.
func (j *DollarRatesJob) Schedule() string {
	return fmt.Sprintf("0 0 %d-%d * * MON-FRI",
		j.config.Scheduler.RatesStartHour, j.config.Scheduler.RatesEndHour)
}

// Run refreshes the latest index values.
func (j *DollarRatesJob) Run(ctx context.Context) error {
	j.logger.Info("Scheduled dollar rates refresh")
	return j.service.Refresh(ctx, indexCountry)
}

// IclJob refreshes the ICL once per business day; the central bank
// publishes in the morning.
type IclJob struct {
	service *indices.Service
	config  *config.Config
	logger  *logger.Logger
}

// NewIclJob creates the daily ICL refresh job.
func NewIclJob(service *indices.Service, cfg *config.Config, log *logger.Logger) *IclJob {
	return &IclJob{service: service, config: cfg, logger: log}
}

// Name returns the job name.
func (j *IclJob) Name() string {
	return "icl_refresh"
}

// Schedule returns the cron schedule: daily at the configured local hour,
// business days only.
func (j *IclJob) Schedule() string {
	return fmt.Sprintf("0 0 %d * * MON-FRI", j.config.Scheduler.IclHour)
}

// Run refreshes the latest index values.
func (j *IclJob) Run(ctx context.Context) error {
	j.logger.Info("Scheduled ICL refresh")
	return j.service.Refresh(ctx, indexCountry)
}

// IpcJob refreshes the IPC daily, every day of the week: the statistics
// bureau publishes monthly on an irregular mid-month date, so a daily
// check is the only way not to miss it.
type IpcJob struct {
	service *indices.Service
	config  *config.Config
	logger  *logger.Logger
}

// NewIpcJob creates the daily IPC refresh job.
func NewIpcJob(service *indices.Service, cfg *config.Config, log *logger.Logger) *IpcJob {
	return &IpcJob{service: service, config: cfg, logger: log}
}

// Name returns the job name.
func (j *IpcJob) Name() string {
	return "ipc_refresh"
}

// Schedule returns the cron schedule: daily at the configured local hour.
func (j *IpcJob) Schedule() string {
	return fmt.Sprintf("0 0 %d * * *", j.config.Scheduler.IpcHour)
}

// Run refreshes the latest index values.
func (j *IpcJob) Run(ctx context.Context) error {
	j.logger.Info("Scheduled IPC refresh")
	return j.service.Refresh(ctx, indexCountry)
}

// BackfillJob imports the full available history from every source. Fired
// once shortly after process start; idempotent, so re-running only fills
// gaps.
type BackfillJob struct {
	service *indices.Service
	logger  *logger.Logger
}

// NewBackfillJob creates the one-shot historical backfill job.
func NewBackfillJob(service *indices.Service, log *logger.Logger) *BackfillJob {
	return &BackfillJob{service: service, logger: log}
}

// Name returns the job name.
func (j *BackfillJob) Name() string {
	return "index_backfill"
}

// Schedule is unused: the job is registered via RunOnceAfter, not cron.
func (j *BackfillJob) Schedule() string {
	return "@once"
}

// Run imports all historical index values.
func (j *BackfillJob) Run(ctx context.Context) error {
	j.logger.Info("One-shot historical index backfill")
	return j.service.Backfill(ctx)
}
