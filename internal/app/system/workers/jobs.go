package workers

import (
	"context"
	"time"

	"github.com/knockwise/knockwise/internal/app/assignments"
	"go.uber.org/zap"
)

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type activator interface {
	ActivatePending(ctx context.Context, now time.Time) (assignments.ActivationReport, error)
}

type reconciler interface {
	Reconcile(ctx context.Context) (assignments.ReconcileReport, error)
}

// ActivatorJob promotes due scheduled assignments.
type ActivatorJob struct {
	svc activator
	log *zap.Logger
}

func NewActivatorJob(svc activator, log *zap.Logger) *ActivatorJob {
	return &ActivatorJob{svc: svc, log: log}
}

func (j *ActivatorJob) Name() string { return "scheduled_assignment_activator" }

func (j *ActivatorJob) Run(ctx context.Context) error {
	report, err := j.svc.ActivatePending(ctx, time.Time{})
	if err != nil {
		return err
	}
	if report.Due > 0 {
		j.log.Info("activation sweep",
			zap.Int("due", report.Due),
			zap.Int("activated", report.Activated),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
			zap.Int("cancelled", report.Cancelled))
	}
	return nil
}

// ReconcileJob repairs derived agent and team state.
type ReconcileJob struct {
	svc reconciler
}

func NewReconcileJob(svc reconciler) *ReconcileJob {
	return &ReconcileJob{svc: svc}
}

func (j *ReconcileJob) Name() string { return "derived_state_reconcile" }

func (j *ReconcileJob) Run(ctx context.Context) error {
	_, err := j.svc.Reconcile(ctx)
	return err
}
