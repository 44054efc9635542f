package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testJob counts its executions and can fail or panic on demand.
type testJob struct {
	name   string
	runs   atomic.Int64
	err    error
	panics bool
}

func (j *testJob) Name() string        { return j.name }
func (j *testJob) Description() string { return "test job" }

func (j *testJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.panics {
		panic("boom")
	}
	return j.err
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	err := s.Register(&testJob{name: "job1"}, NewIntervalSchedule(time.Minute))
	require.NoError(t, err)

	// Duplicate names are rejected
	err = s.Register(&testJob{name: "job1"}, NewIntervalSchedule(time.Minute))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)

	err = s.Register(nil, NewIntervalSchedule(time.Minute))
	assert.ErrorIs(t, err, ErrNilJob)

	err = s.Register(&testJob{name: "job2"}, nil)
	assert.ErrorIs(t, err, ErrNilSchedule)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "job1", infos[0].Name)
	assert.Equal(t, "@every 1m0s", infos[0].Schedule)
}

func TestScheduler_Unregister(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	require.NoError(t, s.Register(&testJob{name: "job1"}, NewIntervalSchedule(time.Minute)))
	require.NoError(t, s.Unregister("job1"))
	assert.Empty(t, s.ListJobs())

	assert.ErrorIs(t, s.Unregister("job1"), ErrJobNotFound)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &testJob{name: "due"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	// Force the job due and trigger a scheduler pass directly
	s.mu.Lock()
	s.jobs["due"].nextRun = time.Now().Add(-time.Second)
	s.mu.Unlock()

	s.checkAndRunJobs()

	assert.Eventually(t, func() bool {
		return job.runs.Load() == 1
	}, time.Second, 10*time.Millisecond)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Eventually(t, func() bool {
		return s.ListJobs()[0].RunCount == 1
	}, time.Second, 10*time.Millisecond)

	// Next run was pushed out, so another pass does nothing
	s.checkAndRunJobs()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), job.runs.Load())
}

func TestScheduler_RecordsFailures(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &testJob{name: "failing", err: errors.New("db down")}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	s.mu.Lock()
	s.jobs["failing"].nextRun = time.Now().Add(-time.Second)
	s.mu.Unlock()
	s.checkAndRunJobs()

	assert.Eventually(t, func() bool {
		info := s.ListJobs()[0]
		return info.FailCount == 1 && info.LastResult != nil && !info.LastResult.Success
	}, time.Second, 10*time.Millisecond)

	metrics := s.GetMetrics()
	metrics.mu.RLock()
	defer metrics.mu.RUnlock()
	assert.Equal(t, int64(1), metrics.TotalFailures)
	assert.Equal(t, int64(1), metrics.FailuresByJob["failing"])
}

func TestScheduler_RecoversFromPanic(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &testJob{name: "panicky", panics: true}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Start(context.Background()))

	s.mu.Lock()
	s.jobs["panicky"].nextRun = time.Now().Add(-time.Second)
	s.mu.Unlock()
	s.checkAndRunJobs()

	assert.Eventually(t, func() bool {
		info := s.ListJobs()[0]
		return info.FailCount == 1
	}, time.Second, 10*time.Millisecond)

	// Scheduler survives and stops cleanly
	require.NoError(t, s.Stop())
}

func TestSchedulerMetrics_RecordExecution(t *testing.T) {
	m := NewSchedulerMetrics()

	m.RecordExecution("a", 100*time.Millisecond, true)
	m.RecordExecution("a", 200*time.Millisecond, false)
	m.RecordExecution("b", 50*time.Millisecond, true)

	m.mu.RLock()
	defer m.mu.RUnlock()
	assert.Equal(t, int64(3), m.TotalExecutions)
	assert.Equal(t, int64(2), m.TotalSuccesses)
	assert.Equal(t, int64(1), m.TotalFailures)
	assert.Equal(t, 350*time.Millisecond, m.TotalDuration)
	assert.Equal(t, int64(2), m.ExecutionsByJob["a"])
	assert.Equal(t, int64(1), m.FailuresByJob["a"])
}
