package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proppilot/indices/internal/indices"
	"github.com/proppilot/indices/internal/indices/store"
	"github.com/proppilot/indices/pkg/config"
	"github.com/proppilot/indices/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{
			Timezone:       "America/Argentina/Buenos_Aires",
			RatesStartHour: 10,
			RatesEndHour:   18,
			IclHour:        10,
			IpcHour:        17,
		},
	}
}

func testService() *indices.Service {
	return indices.NewService(store.NewMemoryStore(), nil, logger.NewNop())
}

func TestJobSchedules(t *testing.T) {
	cfg := testConfig()
	log := logger.NewNop()
	svc := testService()

	tests := []struct {
		name     string
		jobName  string
		schedule string
	}{
		{name: "dollar rates", jobName: "dollar_rates_refresh", schedule: "0 0 10-18 * * MON-FRI"},
		{name: "icl", jobName: "icl_refresh", schedule: "0 0 10 * * MON-FRI"},
		{name: "ipc", jobName: "ipc_refresh", schedule: "0 0 17 * * *"},
	}

	jobsByName := map[string]interface {
		Name() string
		Schedule() string
	}{
		"dollar_rates_refresh": NewDollarRatesJob(svc, cfg, log),
		"icl_refresh":          NewIclJob(svc, cfg, log),
		"ipc_refresh":          NewIpcJob(svc, cfg, log),
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, ok := jobsByName[tt.jobName]
			require.True(t, ok)
			assert.Equal(t, tt.jobName, job.Name())
			assert.Equal(t, tt.schedule, job.Schedule())
		})
	}
}

func TestJobSchedules_FollowConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.RatesStartHour = 9
	cfg.Scheduler.RatesEndHour = 16
	cfg.Scheduler.IpcHour = 20

	log := logger.NewNop()
	svc := testService()

	assert.Equal(t, "0 0 9-16 * * MON-FRI", NewDollarRatesJob(svc, cfg, log).Schedule())
	assert.Equal(t, "0 0 20 * * *", NewIpcJob(svc, cfg, log).Schedule())
}

func TestBackfillJob_Run(t *testing.T) {
	job := NewBackfillJob(testService(), logger.NewNop())

	assert.Equal(t, "index_backfill", job.Name())
	// No fetchers registered: the run is a no-op and must not fail.
	require.NoError(t, job.Run(context.Background()))
}

func TestRefreshJobs_RunWithoutFetchers(t *testing.T) {
	cfg := testConfig()
	log := logger.NewNop()
	svc := testService()

	require.NoError(t, NewDollarRatesJob(svc, cfg, log).Run(context.Background()))
	require.NoError(t, NewIclJob(svc, cfg, log).Run(context.Background()))
	require.NoError(t, NewIpcJob(svc, cfg, log).Run(context.Background()))
}
