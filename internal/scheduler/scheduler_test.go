package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proppilot/indices/pkg/logger"
)

// fakeJob is a scripted Job for scheduler tests.
type fakeJob struct {
	name     string
	schedule string
	err      error
	runs     atomic.Int64
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(_ context.Context) error {
	j.runs.Add(1)
	return j.err
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	return New(logger.NewNop(), time.UTC)
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler(t)

	job := &fakeJob{name: "refresh", schedule: "0 0 10 * * MON-FRI"}
	require.NoError(t, s.AddJob(job))

	assert.Contains(t, s.JobNames(), "refresh")
}

func TestAddJob_Duplicate(t *testing.T) {
	s := newTestScheduler(t)

	job := &fakeJob{name: "refresh", schedule: "0 0 10 * * *"}
	require.NoError(t, s.AddJob(job))

	err := s.AddJob(&fakeJob{name: "refresh", schedule: "0 0 11 * * *"})
	assert.Error(t, err)
}

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := newTestScheduler(t)

	err := s.AddJob(&fakeJob{name: "broken", schedule: "not a cron expression"})
	assert.Error(t, err)
	assert.NotContains(t, s.JobNames(), "broken")
}

func TestRunJob_RecordsHistory(t *testing.T) {
	s := newTestScheduler(t)

	job := &fakeJob{name: "refresh", schedule: "0 0 10 * * *"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("refresh"))
	assert.Equal(t, int64(1), job.runs.Load())

	stats := s.Stats()
	require.Contains(t, stats, "refresh")
	assert.Equal(t, 1, stats["refresh"].TotalRuns)
	assert.Equal(t, 1, stats["refresh"].SuccessCount)
	assert.Equal(t, 1.0, stats["refresh"].SuccessRate)
	assert.NotNil(t, stats["refresh"].LastRun)
}

func TestRunJob_FailureIsRecordedNotReturned(t *testing.T) {
	s := newTestScheduler(t)

	job := &fakeJob{name: "refresh", schedule: "0 0 10 * * *", err: errors.New("source down")}
	require.NoError(t, s.AddJob(job))

	// The run outcome lands in history; RunJob itself succeeds.
	require.NoError(t, s.RunJob("refresh"))

	stats := s.Stats()
	assert.Equal(t, 1, stats["refresh"].FailureCount)
	assert.Equal(t, 0, stats["refresh"].SuccessCount)
}

func TestRunJob_Unknown(t *testing.T) {
	s := newTestScheduler(t)
	assert.Error(t, s.RunJob("nope"))
}

func TestRunOnceAfter(t *testing.T) {
	s := newTestScheduler(t)

	job := &fakeJob{name: "backfill", schedule: "@once"}
	s.RunOnceAfter(10*time.Millisecond, job)

	assert.Eventually(t, func() bool {
		return job.runs.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// One-shot: never fires again.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), job.runs.Load())
}

func TestStop_CancelsPendingOneShots(t *testing.T) {
	s := newTestScheduler(t)

	job := &fakeJob{name: "backfill", schedule: "@once"}
	s.RunOnceAfter(time.Hour, job)
	s.Start()
	s.Stop()

	assert.Equal(t, int64(0), job.runs.Load())
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistoryResults+20; i++ {
		h.AddResult(JobResult{JobName: "refresh", Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistoryResults)
	require.NotNil(t, h.Latest())
}

func TestJobHistory_SuccessRate(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0.0, h.SuccessRate())

	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: false})

	assert.InDelta(t, 2.0/3.0, h.SuccessRate(), 1e-9)
	assert.Equal(t, 1, h.FailureCount())
}
