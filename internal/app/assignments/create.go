package assignments

import (
	"context"
	"time"

	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/app/system/txn"
	"github.com/knockwise/knockwise/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CreateInput names one binding to create. Exactly one of AgentID and
// TeamID must be set. A zero EffectiveFrom means now.
type CreateInput struct {
	AgentID       *primitive.ObjectID
	TeamID        *primitive.ObjectID
	ZoneID        primitive.ObjectID
	EffectiveFrom time.Time
	AssignedBy    primitive.ObjectID
}

// CreateResult carries the record Create wrote. Scheduled tells which one.
type CreateResult struct {
	Scheduled           bool                        `json:"scheduled"`
	Assignment          *models.AgentZoneAssignment `json:"assignment,omitempty"`
	ScheduledAssignment *models.ScheduledAssignment `json:"scheduled_assignment,omitempty"`
}

// Create binds an agent or team to a zone.
//
// Any open ACTIVE binding on the zone is closed first, so the zone ends with
// at most one. An EffectiveFrom in the future produces a PENDING scheduled
// record for the activator to promote later; otherwise an ACTIVE binding is
// written at once and the bound agents take the zone as their primary zone.
//
// Errors: VALIDATION_ERROR for a bad target, NOT_FOUND for a missing zone,
// agent or team, CONFLICT when a concurrent Create won the zone.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	if err := (models.AgentZoneAssignment{AgentID: in.AgentID, TeamID: in.TeamID}).Validate(); err != nil {
		return CreateResult{}, apperr.Wrap(apperr.CodeValidation, err, err.Error())
	}
	if in.ZoneID.IsZero() {
		return CreateResult{}, apperr.Validation("zone_id is required")
	}

	var (
		res       CreateResult
		displaced []models.AgentZoneAssignment
	)
	err := txn.Run(ctx, s.client, s.log, func(ctx context.Context, mode txn.Mode) error {
		res = CreateResult{}
		now := s.now()

		if _, err := s.checkTargets(ctx, in.AgentID, in.TeamID, in.ZoneID); err != nil {
			return err
		}

		var err error
		if displaced, err = s.displace(ctx, mode, in.ZoneID, now); err != nil {
			return err
		}

		if in.EffectiveFrom.After(now) {
			sa, err := s.schedule(ctx, mode, in)
			if err != nil {
				return err
			}
			res.Scheduled = true
			res.ScheduledAssignment = sa
			return nil
		}

		a, _, err := s.bind(ctx, mode, binding{
			agentID:    in.AgentID,
			teamID:     in.TeamID,
			zoneID:     in.ZoneID,
			assignedBy: in.AssignedBy,
		}, now)
		if err != nil {
			return err
		}
		res.Assignment = a
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	s.metrics.IncCreated(res.Scheduled, targetKind(in.AgentID, in.TeamID))
	if res.Scheduled {
		s.audit.AssignmentScheduled(ctx, res.ScheduledAssignment)
	} else {
		s.audit.AssignmentCreated(ctx, res.Assignment, int64(len(displaced)))
	}
	return res, nil
}

// schedule writes a PENDING record. A pending record already counts as an
// ACTIVE signal for its agents, so their status is recomputed now.
func (s *Service) schedule(ctx context.Context, mode txn.Mode, in CreateInput) (*models.ScheduledAssignment, error) {
	sa, err := s.scheduled.Create(ctx, models.ScheduledAssignment{
		AgentID:       in.AgentID,
		TeamID:        in.TeamID,
		ZoneID:        in.ZoneID,
		ScheduledDate: in.EffectiveFrom,
		EffectiveFrom: in.EffectiveFrom,
		Status:        models.ScheduledPending,
		AssignedBy:    in.AssignedBy,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.zones.MarkScheduled(ctx, in.ZoneID); err != nil {
		if err := s.settle(mode, "zone status update", err, zap.String("zone_id", in.ZoneID.Hex())); err != nil {
			return nil, err
		}
	}
	if err := s.refreshTarget(ctx, mode, in.AgentID, in.TeamID); err != nil {
		return nil, err
	}
	return &sa, nil
}
