package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/knockwise/knockwise/internal/app/assignments"
	"github.com/knockwise/knockwise/internal/app/system/metrics"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLock struct {
	held     bool
	err      error
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (j *testJob) Name() string { return j.name }

func (j *testJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func newTestScheduler(t *testing.T) (*Scheduler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewScheduler(zap.NewNop(), metrics.NewJobMetrics(reg), time.Second), reg
}

func TestRunOnceRecordsSuccess(t *testing.T) {
	s, reg := newTestScheduler(t)
	job := &testJob{name: "sweep"}
	lock := &fakeLock{}

	require.NoError(t, s.RunOnce(context.Background(), job, lock))
	assert.Equal(t, 1, job.runs)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)

	count, err := promtest.GatherAndCount(reg, "knockwise_job_success_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunOnceRecordsFailure(t *testing.T) {
	s, _ := newTestScheduler(t)
	job := &testJob{name: "sweep", err: errors.New("boom")}
	lock := &fakeLock{}

	err := s.RunOnce(context.Background(), job, lock)
	require.EqualError(t, err, "boom")
	assert.Equal(t, 1, job.runs)
	assert.False(t, lock.held, "lock must be released after a failed run")
}

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	s, reg := newTestScheduler(t)
	job := &testJob{name: "sweep"}
	lock := &fakeLock{held: true}

	require.NoError(t, s.RunOnce(context.Background(), job, lock))
	assert.Equal(t, 0, job.runs)
	assert.Equal(t, 0, lock.releases)

	count, err := promtest.GatherAndCount(reg, "knockwise_job_skipped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunOnceLockError(t *testing.T) {
	s, _ := newTestScheduler(t)
	job := &testJob{name: "sweep"}

	err := s.RunOnce(context.Background(), job, &fakeLock{err: errors.New("redis down")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	assert.Equal(t, 0, job.runs)
}

func TestAddRejectsBadSpec(t *testing.T) {
	s, _ := newTestScheduler(t)
	err := s.Add("not a cron spec", &testJob{name: "sweep"}, &fakeLock{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep")
}

func TestStartStop(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.Add("@every 1h", &testJob{name: "sweep"}, &fakeLock{}))
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

type fakeActivator struct {
	report assignments.ActivationReport
	err    error
	calls  int
}

func (f *fakeActivator) ActivatePending(_ context.Context, now time.Time) (assignments.ActivationReport, error) {
	f.calls++
	if !now.IsZero() {
		return assignments.ActivationReport{}, errors.New("job should let the service pick the time")
	}
	return f.report, f.err
}

type fakeReconciler struct {
	err   error
	calls int
}

func (f *fakeReconciler) Reconcile(context.Context) (assignments.ReconcileReport, error) {
	f.calls++
	return assignments.ReconcileReport{}, f.err
}

func TestActivatorJob(t *testing.T) {
	svc := &fakeActivator{report: assignments.ActivationReport{Due: 2, Activated: 1, Failed: 1}}
	job := NewActivatorJob(svc, zap.NewNop())

	assert.Equal(t, "scheduled_assignment_activator", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, svc.calls)

	svc.err = errors.New("list failed")
	assert.Error(t, job.Run(context.Background()))
}

func TestReconcileJob(t *testing.T) {
	svc := &fakeReconciler{}
	job := NewReconcileJob(svc)

	require.NoError(t, job.Run(context.Background()))
	svc.err = errors.New("boom")
	assert.Error(t, job.Run(context.Background()))
	assert.Equal(t, 2, svc.calls)
}
