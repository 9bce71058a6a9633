// Package auditlog records assignment lifecycle events to the audit_events
// collection and to the structured log.
package auditlog

import (
	"context"
	"strconv"

	"github.com/knockwise/knockwise/internal/app/store/audit"
	"github.com/knockwise/knockwise/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config selects where each category goes.
// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off".
type Config struct {
	Admin  string
	System string
}

type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	for _, id := range []struct {
		key string
		v   *primitive.ObjectID
	}{
		{"actor_id", event.ActorID},
		{"agent_id", event.AgentID},
		{"team_id", event.TeamID},
		{"zone_id", event.ZoneID},
		{"record_id", event.RecordID},
	} {
		if id.v != nil {
			fields = append(fields, zap.String(id.key, id.v.Hex()))
		}
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to the category's setting. A nil Logger is a
// no-op so services can run without auditing in tests.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := "all"
	switch event.Category {
	case audit.CategoryAdmin:
		setting = l.config.Admin
	case audit.CategorySystem:
		setting = l.config.System
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

func actorCategory(actorID *primitive.ObjectID) string {
	if actorID == nil {
		return audit.CategorySystem
	}
	return audit.CategoryAdmin
}

// AssignmentCreated records an immediate binding.
func (l *Logger) AssignmentCreated(ctx context.Context, a *models.AgentZoneAssignment, deactivated int64) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAssignmentCreated,
		ActorID:   &a.AssignedBy,
		AgentID:   a.AgentID,
		TeamID:    a.TeamID,
		ZoneID:    &a.ZoneID,
		RecordID:  &a.ID,
		Success:   true,
		Details: map[string]string{
			"effective_from":      a.EffectiveFrom.UTC().Format(timeLayout),
			"previous_superseded": strconv.FormatInt(deactivated, 10),
		},
	})
}

// AssignmentScheduled records a deferred binding.
func (l *Logger) AssignmentScheduled(ctx context.Context, sa *models.ScheduledAssignment) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAssignmentScheduled,
		ActorID:   &sa.AssignedBy,
		AgentID:   sa.AgentID,
		TeamID:    sa.TeamID,
		ZoneID:    &sa.ZoneID,
		RecordID:  &sa.ID,
		Success:   true,
		Details:   map[string]string{"scheduled_date": sa.ScheduledDate.UTC().Format(timeLayout)},
	})
}

func (l *Logger) AssignmentRemoved(ctx context.Context, actorID *primitive.ObjectID, a *models.AgentZoneAssignment) {
	l.Log(ctx, audit.Event{
		Category:  actorCategory(actorID),
		EventType: audit.EventAssignmentRemoved,
		ActorID:   actorID,
		AgentID:   a.AgentID,
		TeamID:    a.TeamID,
		ZoneID:    &a.ZoneID,
		RecordID:  &a.ID,
		Success:   true,
		Details:   map[string]string{"status": a.Status},
	})
}

func (l *Logger) ScheduledCancelled(ctx context.Context, actorID *primitive.ObjectID, sa *models.ScheduledAssignment) {
	l.Log(ctx, audit.Event{
		Category:  actorCategory(actorID),
		EventType: audit.EventScheduledCancelled,
		ActorID:   actorID,
		AgentID:   sa.AgentID,
		TeamID:    sa.TeamID,
		ZoneID:    &sa.ZoneID,
		RecordID:  &sa.ID,
		Success:   true,
	})
}

// ScheduledActivated records a promotion by the activator.
func (l *Logger) ScheduledActivated(ctx context.Context, sa *models.ScheduledAssignment, assignmentID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategorySystem,
		EventType: audit.EventScheduledActivated,
		AgentID:   sa.AgentID,
		TeamID:    sa.TeamID,
		ZoneID:    &sa.ZoneID,
		RecordID:  &sa.ID,
		Success:   true,
		Details:   map[string]string{"assignment_id": assignmentID.Hex()},
	})
}

func (l *Logger) ActivationFailed(ctx context.Context, sa *models.ScheduledAssignment, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategorySystem,
		EventType:     audit.EventActivationFailed,
		AgentID:       sa.AgentID,
		TeamID:        sa.TeamID,
		ZoneID:        &sa.ZoneID,
		RecordID:      &sa.ID,
		Success:       false,
		FailureReason: reason,
	})
}

// Reconciled summarizes a repair pass over derived state.
func (l *Logger) Reconciled(ctx context.Context, agents, teams, failed int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategorySystem,
		EventType: audit.EventReconciled,
		Success:   failed == 0,
		Details: map[string]string{
			"agents": strconv.Itoa(agents),
			"teams":  strconv.Itoa(teams),
			"failed": strconv.Itoa(failed),
		},
	})
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
