package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)

	m.IncSuccess("activate_scheduled")
	m.IncSuccess("activate_scheduled")
	m.IncFailure("")
	m.IncSkipped("reconcile")
	m.ObserveDuration("activate_scheduled", 50*time.Millisecond)

	if got := testutil.ToFloat64(m.success.WithLabelValues("activate_scheduled")); got != 2 {
		t.Errorf("success: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("unknown")); got != 1 {
		t.Errorf("failure: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.skipped.WithLabelValues("reconcile")); got != 1 {
		t.Errorf("skipped: got %v, want 1", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	var jm *JobMetrics
	jm.IncSuccess("x")
	NewJobMetrics(nil).IncFailure("x")

	am := NewAssignmentMetrics(nil)
	am.IncCreated(true, "agent")
	am.AddActivations(1, 2, 3, 4)
}

func TestAssignmentMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAssignmentMetrics(reg)

	m.IncCreated(false, "agent")
	m.IncCreated(true, "team")
	m.AddActivations(3, 1, 0, 2)

	if got := testutil.ToFloat64(m.created.WithLabelValues("immediate", "agent")); got != 1 {
		t.Errorf("immediate/agent: got %v", got)
	}
	if got := testutil.ToFloat64(m.created.WithLabelValues("scheduled", "team")); got != 1 {
		t.Errorf("scheduled/team: got %v", got)
	}
	if got := testutil.ToFloat64(m.activated.WithLabelValues("activated")); got != 3 {
		t.Errorf("activated: got %v", got)
	}
	if got := testutil.ToFloat64(m.activated.WithLabelValues("cancelled")); got != 2 {
		t.Errorf("cancelled: got %v", got)
	}
}
