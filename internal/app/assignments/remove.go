package assignments

import (
	"context"

	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/app/system/txn"
	"github.com/knockwise/knockwise/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Remove deletes a binding and repairs the caches that depended on it. When
// nothing binds the zone afterwards it returns to inactive. actorID is nil
// for system callers.
func (s *Service) Remove(ctx context.Context, actorID *primitive.ObjectID, assignmentID primitive.ObjectID) (*models.AgentZoneAssignment, error) {
	var removed *models.AgentZoneAssignment
	err := txn.Run(ctx, s.client, s.log, func(ctx context.Context, mode txn.Mode) error {
		a, err := s.assigns.GetByID(ctx, assignmentID)
		if err != nil {
			return apperr.FromMongo(err, "assignment")
		}
		n, err := s.assigns.Delete(ctx, assignmentID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("assignment")
		}

		if err := s.release(ctx, mode, []models.AgentZoneAssignment{*a}); err != nil {
			return err
		}
		if err := s.freeZone(ctx, mode, a.ZoneID); err != nil {
			return err
		}
		removed = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.AssignmentRemoved(ctx, actorID, removed)
	return removed, nil
}

// CancelScheduled moves a PENDING scheduled record to CANCELLED. The record
// no longer counts toward its agents' status, so that is recomputed.
func (s *Service) CancelScheduled(ctx context.Context, actorID *primitive.ObjectID, id primitive.ObjectID) (*models.ScheduledAssignment, error) {
	var cancelled *models.ScheduledAssignment
	err := txn.Run(ctx, s.client, s.log, func(ctx context.Context, mode txn.Mode) error {
		sa, err := s.scheduled.GetByID(ctx, id)
		if err != nil {
			return apperr.FromMongo(err, "scheduled assignment")
		}
		ok, err := s.scheduled.Cancel(ctx, id, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("scheduled assignment is " + sa.Status + ", not pending")
		}
		sa.Status = models.ScheduledCancelled

		if err := s.refreshTarget(ctx, mode, sa.AgentID, sa.TeamID); err != nil {
			return err
		}
		if err := s.freeZone(ctx, mode, sa.ZoneID); err != nil {
			return err
		}
		cancelled = sa
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.ScheduledCancelled(ctx, actorID, cancelled)
	return cancelled, nil
}

// freeZone marks zoneID inactive when no open binding is left on it.
func (s *Service) freeZone(ctx context.Context, mode txn.Mode, zoneID primitive.ObjectID) error {
	zf := zap.String("zone_id", zoneID.Hex())
	bound, err := s.assigns.ExistsOpenForZone(ctx, zoneID)
	if err != nil {
		return s.settle(mode, "zone binding lookup", err, zf)
	}
	if bound {
		return nil
	}
	_, err = s.zones.MarkUnassigned(ctx, zoneID)
	return s.settle(mode, "zone status update", err, zf)
}
