package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/diamond/internal/backfill"
)

type flakyEnqueuer struct {
	failures int
	dates    []time.Time
}

func (f *flakyEnqueuer) EnqueueDate(_ context.Context, date time.Time) (*backfill.Job, error) {
	f.dates = append(f.dates, date)
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("database unavailable")
	}
	return &backfill.Job{JobID: "daily"}, nil
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestRunDailyEnqueuesYesterday(t *testing.T) {
	jobs := &flakyEnqueuer{}
	o, err := NewOrchestrator(jobs, testConfig())
	require.NoError(t, err)
	o.now = func() time.Time { return time.Date(2024, 7, 1, 3, 0, 0, 0, time.UTC) }

	require.NoError(t, o.RunDaily(context.Background()))
	require.Len(t, jobs.dates, 1)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), jobs.dates[0])
	assert.Equal(t, "daily", o.GetStatus()["last_job_id"])
}

func TestRunDailyRetries(t *testing.T) {
	jobs := &flakyEnqueuer{failures: 2}
	o, err := NewOrchestrator(jobs, testConfig())
	require.NoError(t, err)

	require.NoError(t, o.RunDaily(context.Background()))
	assert.Len(t, jobs.dates, 3)

	jobs.failures = 10
	err = o.RunDaily(context.Background())
	require.Error(t, err)
	assert.Contains(t, o.GetStatus()["last_error"], "database unavailable")
}

func TestNextRun(t *testing.T) {
	o, err := NewOrchestrator(&flakyEnqueuer{}, testConfig())
	require.NoError(t, err)
	o.now = func() time.Time { return time.Date(2024, 7, 1, 4, 0, 0, 0, time.UTC) }

	assert.Equal(t, time.Date(2024, 7, 2, 3, 0, 0, 0, time.UTC), o.NextRun())
}

func TestInvalidCron(t *testing.T) {
	cfg := testConfig()
	cfg.DailyCron = "every morning"
	_, err := NewOrchestrator(&flakyEnqueuer{}, cfg)
	assert.Error(t, err)
}
