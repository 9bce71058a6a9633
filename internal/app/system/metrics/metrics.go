// Package metrics registers the Prometheus collectors for background jobs
// and the assignment protocol.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "knockwise"

// JobMetrics records scheduled job runs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
}

// NewJobMetrics registers job collectors on reg. A nil reg yields a no-op.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	m := &JobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled jobs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		success: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_success_total",
			Help:      "Successful scheduled job runs.",
		}, []string{"job"}),
		failure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_failure_total",
			Help:      "Failed scheduled job runs.",
		}, []string{"job"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_skipped_total",
			Help:      "Job runs skipped because another instance held the lock.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.duration, m.success, m.failure, m.skipped)
	return m
}

func (m *JobMetrics) ObserveDuration(job string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(label(job)).Observe(d.Seconds())
}

func (m *JobMetrics) IncSuccess(job string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(label(job)).Inc()
}

func (m *JobMetrics) IncFailure(job string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(label(job)).Inc()
}

func (m *JobMetrics) IncSkipped(job string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.WithLabelValues(label(job)).Inc()
}

// AssignmentMetrics counts assignment protocol outcomes.
type AssignmentMetrics struct {
	created   *prometheus.CounterVec
	activated *prometheus.CounterVec
}

func NewAssignmentMetrics(reg prometheus.Registerer) *AssignmentMetrics {
	if reg == nil {
		return &AssignmentMetrics{}
	}
	m := &AssignmentMetrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_created_total",
			Help:      "Assignments created, by kind (immediate or scheduled) and target (agent or team).",
		}, []string{"kind", "target"}),
		activated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_activations_total",
			Help:      "Scheduled assignment activation attempts, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.created, m.activated)
	return m
}

// IncCreated records a Create call; scheduled distinguishes deferred records.
func (m *AssignmentMetrics) IncCreated(scheduled bool, target string) {
	if m == nil || m.created == nil {
		return
	}
	kind := "immediate"
	if scheduled {
		kind = "scheduled"
	}
	m.created.WithLabelValues(kind, label(target)).Inc()
}

// AddActivations records the outcome counts of one sweep.
func (m *AssignmentMetrics) AddActivations(activated, failed, skipped, cancelled int) {
	if m == nil || m.activated == nil {
		return
	}
	m.activated.WithLabelValues("activated").Add(float64(activated))
	m.activated.WithLabelValues("failed").Add(float64(failed))
	m.activated.WithLabelValues("skipped").Add(float64(skipped))
	m.activated.WithLabelValues("cancelled").Add(float64(cancelled))
}

func label(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
