// Package workers runs the background jobs: the scheduled-assignment
// activator and the derived-state reconcile pass.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/knockwise/knockwise/internal/app/system/locks"
	"github.com/knockwise/knockwise/internal/app/system/metrics"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultRunTimeout = 5 * time.Minute

// Scheduler runs registered jobs on cron specs. Every run first takes the
// job's lock, so with a shared Redis lock only one instance runs a job at a
// time. Runs that lose the lock are counted as skipped.
type Scheduler struct {
	cron    *cron.Cron
	log     *zap.Logger
	metrics *metrics.JobMetrics
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler builds a Scheduler. runTimeout bounds each job run; zero
// means five minutes.
func NewScheduler(log *zap.Logger, m *metrics.JobMetrics, runTimeout time.Duration) *Scheduler {
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log:     log,
		metrics: m,
		timeout: runTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under spec (standard five-field cron or a descriptor
// such as "@every 1m").
func (s *Scheduler) Add(spec string, job Job, lock locks.Lock) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		if err := s.RunOnce(ctx, job, lock); err != nil {
			s.log.Error("scheduled job failed", zap.String("job", job.Name()), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name(), spec, err)
	}
	s.log.Info("job scheduled", zap.String("job", job.Name()), zap.String("spec", spec))
	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop prevents new runs, cancels the ones in flight, and waits for them
// until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs job now under lock and records its metrics. It returns nil
// without running when another holder has the lock.
func (s *Scheduler) RunOnce(ctx context.Context, job Job, lock locks.Lock) error {
	name := job.Name()

	locked, err := lock.Acquire(ctx)
	if err != nil {
		s.metrics.IncFailure(name)
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.IncSkipped(name)
		s.log.Info("job already running elsewhere; skipping", zap.String("job", name))
		return nil
	}
	defer func() {
		// The run context may be done; release on a fresh one.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(relCtx); err != nil {
			s.log.Warn("failed to release job lock", zap.String("job", name), zap.Error(err))
		}
	}()

	start := time.Now()
	err = job.Run(ctx)
	d := time.Since(start)
	s.metrics.ObserveDuration(name, d)

	if err != nil {
		s.metrics.IncFailure(name)
		return err
	}
	s.metrics.IncSuccess(name)
	s.log.Debug("job completed", zap.String("job", name), zap.Duration("duration", d))
	return nil
}
