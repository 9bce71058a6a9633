package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/app/system/sanitize"
	"github.com/knockwise/knockwise/internal/app/system/txn"
	"github.com/knockwise/knockwise/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ActivationReport summarizes one sweep.
type ActivationReport struct {
	Due       int `json:"due"`
	Activated int `json:"activated"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"` // cancelled or activated elsewhere mid-sweep
	Cancelled int `json:"cancelled"` // zone, agent or team deleted before the record came due
}

var errNotPending = errors.New("scheduled assignment is no longer pending")

// orphanedError reports a record the sweep cancelled because a target it
// names no longer exists.
type orphanedError struct {
	cause error
}

func (e *orphanedError) Error() string { return "scheduled assignment orphaned: " + e.cause.Error() }

func (e *orphanedError) Unwrap() error { return e.cause }

// ActivatePending promotes every PENDING scheduled record due at or before
// now. Each record is promoted on its own: a failure is logged and audited
// and the sweep moves on. The returned error is set only when the due list
// cannot be read or ctx ends mid-sweep. A record whose zone, agent or team
// has been deleted is cancelled rather than retried on every sweep.
//
// A promotion is safe to repeat. The binding it writes carries the scheduled
// record's id under a unique index, so a sweep that died between writing the
// binding and marking the record finishes the mark without a second binding.
func (s *Service) ActivatePending(ctx context.Context, now time.Time) (ActivationReport, error) {
	if now.IsZero() {
		now = s.now()
	}

	due, err := s.scheduled.ListDue(ctx, now, 0)
	if err != nil {
		return ActivationReport{}, fmt.Errorf("list due scheduled assignments: %w", err)
	}

	report := ActivationReport{Due: len(due)}
	defer func() {
		s.metrics.AddActivations(report.Activated, report.Failed, report.Skipped, report.Cancelled)
	}()

	for i := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sa := &due[i]

		agents, assignmentID, err := s.activateOne(ctx, sa)
		var orphaned *orphanedError
		switch {
		case errors.As(err, &orphaned):
			report.Cancelled++
			s.log.Warn("scheduled assignment target gone; cancelled",
				zap.String("scheduled_assignment_id", sa.ID.Hex()),
				zap.String("zone_id", sa.ZoneID.Hex()),
				zap.Error(orphaned.cause))
			sa.Status = models.ScheduledCancelled
			s.audit.ScheduledCancelled(ctx, nil, sa)
		case errors.Is(err, errNotPending):
			report.Skipped++
			s.log.Info("scheduled assignment changed during sweep; skipped",
				zap.String("scheduled_assignment_id", sa.ID.Hex()))
		case err != nil:
			report.Failed++
			s.log.Error("scheduled assignment activation failed",
				zap.String("scheduled_assignment_id", sa.ID.Hex()),
				zap.String("zone_id", sa.ZoneID.Hex()),
				zap.Error(err))
			s.audit.ActivationFailed(ctx, sa, err.Error())
		default:
			report.Activated++
			s.audit.ScheduledActivated(ctx, sa, assignmentID)
			s.notify(ctx, sa, agents)
		}
	}
	return report, nil
}

// activateOne promotes sa and marks it ACTIVATED. It returns the agents now
// bound and the id of the promoted binding.
func (s *Service) activateOne(ctx context.Context, sa *models.ScheduledAssignment) ([]primitive.ObjectID, primitive.ObjectID, error) {
	var (
		agents       []primitive.ObjectID
		assignmentID primitive.ObjectID
		gone         error
	)
	err := txn.Run(ctx, s.client, s.log, func(ctx context.Context, mode txn.Mode) error {
		now := s.now()
		gone = nil

		existing, err := s.assigns.GetByScheduledID(ctx, sa.ID)
		switch {
		case err == nil:
			s.log.Info("scheduled assignment already promoted; finishing",
				zap.String("scheduled_assignment_id", sa.ID.Hex()),
				zap.String("assignment_id", existing.ID.Hex()))
			assignmentID = existing.ID
			if agents, err = s.affectedAgents(ctx, existing.AgentID, existing.TeamID); err != nil {
				return err
			}
			// The interrupted sweep may have stopped before the caches.
			if err := s.refreshAgents(ctx, mode, agents); err != nil {
				return err
			}
			if existing.TeamID != nil {
				_, err := s.RefreshTeamStatus(ctx, *existing.TeamID)
				if err := s.settle(mode, "team status recompute", err, zap.String("team_id", existing.TeamID.Hex())); err != nil {
					return err
				}
			}
		case errors.Is(err, mongo.ErrNoDocuments):
			if _, err := s.checkTargets(ctx, sa.AgentID, sa.TeamID, sa.ZoneID); err != nil {
				if !apperr.Is(err, apperr.CodeNotFound) {
					return err
				}
				gone = err
				return s.dropOrphan(ctx, mode, sa, now)
			}
			if _, err := s.displace(ctx, mode, sa.ZoneID, now); err != nil {
				return err
			}
			a, bound, err := s.bind(ctx, mode, binding{
				agentID:     sa.AgentID,
				teamID:      sa.TeamID,
				zoneID:      sa.ZoneID,
				assignedBy:  sa.AssignedBy,
				scheduledID: &sa.ID,
			}, now)
			if err != nil {
				return err
			}
			assignmentID = a.ID
			agents = bound
		default:
			return err
		}

		ok, err := s.scheduled.MarkActivated(ctx, sa.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			if mode == txn.BestEffort {
				s.log.Warn("scheduled assignment left pending state before it was marked; binding kept",
					zap.String("scheduled_assignment_id", sa.ID.Hex()),
					zap.String("assignment_id", assignmentID.Hex()))
			}
			return errNotPending
		}
		return nil
	})
	if err == nil && gone != nil {
		return nil, primitive.NilObjectID, &orphanedError{cause: gone}
	}
	return agents, assignmentID, err
}

// dropOrphan cancels sa and releases the zone it was holding for. The
// statuses of whichever targets remain are recomputed.
func (s *Service) dropOrphan(ctx context.Context, mode txn.Mode, sa *models.ScheduledAssignment, now time.Time) error {
	ok, err := s.scheduled.Cancel(ctx, sa.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return errNotPending
	}
	if err := s.refreshTarget(ctx, mode, sa.AgentID, sa.TeamID); err != nil {
		return err
	}
	return s.freeZone(ctx, mode, sa.ZoneID)
}

// notify writes a zone_assigned notification for each agent. Failures are
// logged; the promotion stands.
func (s *Service) notify(ctx context.Context, sa *models.ScheduledAssignment, agents []primitive.ObjectID) {
	if len(agents) == 0 {
		return
	}
	zoneName := "a new zone"
	if z, err := s.zones.GetByID(ctx, sa.ZoneID); err == nil {
		if name := sanitize.Text(z.Name); name != "" {
			zoneName = name
		}
	}

	ns := make([]models.Notification, 0, len(agents))
	zoneID := sa.ZoneID
	for _, id := range agents {
		ns = append(ns, models.Notification{
			UserID:  id,
			Type:    models.NotificationZoneAssigned,
			Title:   "Zone assignment active",
			Message: fmt.Sprintf("You are now assigned to %s.", zoneName),
			ZoneID:  &zoneID,
		})
	}
	if err := s.notes.CreateMany(ctx, ns); err != nil {
		s.log.Warn("failed to write activation notifications",
			zap.String("scheduled_assignment_id", sa.ID.Hex()),
			zap.Int("recipients", len(ns)),
			zap.Error(err))
	}
}
