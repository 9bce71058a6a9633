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

// binding is what an immediate assignment (or a promoted scheduled one)
// writes. Exactly one of agentID and teamID is set.
type binding struct {
	agentID     *primitive.ObjectID
	teamID      *primitive.ObjectID
	zoneID      primitive.ObjectID
	assignedBy  primitive.ObjectID
	scheduledID *primitive.ObjectID
}

func targetKind(agentID, teamID *primitive.ObjectID) string {
	if teamID != nil {
		return "team"
	}
	if agentID != nil {
		return "agent"
	}
	return ""
}

// checkTargets confirms the zone exists, and the agent (with role agent) or
// the team exists.
func (s *Service) checkTargets(ctx context.Context, agentID, teamID *primitive.ObjectID, zoneID primitive.ObjectID) (*models.Zone, error) {
	zone, err := s.zones.GetByID(ctx, zoneID)
	if err != nil {
		return nil, apperr.FromMongo(err, "zone")
	}
	if agentID != nil {
		if _, err := s.users.GetAgentByID(ctx, *agentID); err != nil {
			return nil, apperr.FromMongo(err, "agent")
		}
	}
	if teamID != nil {
		if _, err := s.teams.GetByID(ctx, *teamID); err != nil {
			return nil, apperr.FromMongo(err, "team")
		}
	}
	return zone, nil
}

// affectedAgents lists the agents whose caches depend on a binding to the
// given target.
func (s *Service) affectedAgents(ctx context.Context, agentID, teamID *primitive.ObjectID) ([]primitive.ObjectID, error) {
	if agentID != nil {
		return []primitive.ObjectID{*agentID}, nil
	}
	if teamID != nil {
		return s.teamMembers(ctx, *teamID)
	}
	return nil, nil
}

// bind writes an ACTIVE binding and brings every cache it touches up to date:
// zone status and stamp, primary_zone_id and zone_ids of each bound agent,
// agent and team status. The newest binding always becomes the primary zone.
func (s *Service) bind(ctx context.Context, mode txn.Mode, b binding, now time.Time) (*models.AgentZoneAssignment, []primitive.ObjectID, error) {
	a, err := s.assigns.Create(ctx, models.AgentZoneAssignment{
		AgentID:               b.agentID,
		TeamID:                b.teamID,
		ZoneID:                b.zoneID,
		EffectiveFrom:         now,
		Status:                models.AssignmentActive,
		AssignedBy:            b.assignedBy,
		ScheduledAssignmentID: b.scheduledID,
		CreatedAt:             now,
	})
	if err != nil {
		if err == models.ErrAssignmentTarget {
			return nil, nil, apperr.Wrap(apperr.CodeValidation, err, err.Error())
		}
		return nil, nil, apperr.FromMongo(err, "an active assignment for this zone")
	}

	zf := zap.String("zone_id", b.zoneID.Hex())
	if _, err := s.zones.MarkAssigned(ctx, b.zoneID, b.agentID, b.teamID); err != nil {
		if err := s.settle(mode, "zone status update", err, zf); err != nil {
			return nil, nil, err
		}
	}

	agents, err := s.affectedAgents(ctx, b.agentID, b.teamID)
	if err := s.settle(mode, "team member lookup", err, zf); err != nil {
		return nil, nil, err
	}
	if err := s.settle(mode, "primary zone update", s.users.SetPrimaryZone(ctx, agents, b.zoneID), zf); err != nil {
		return nil, nil, err
	}
	if err := s.refreshAgents(ctx, mode, agents); err != nil {
		return nil, nil, err
	}
	if b.teamID != nil {
		_, err := s.RefreshTeamStatus(ctx, *b.teamID)
		if err := s.settle(mode, "team status recompute", err, zap.String("team_id", b.teamID.Hex())); err != nil {
			return nil, nil, err
		}
	}
	return &a, agents, nil
}

// refreshAgents re-syncs zone_ids and recomputes status for each agent.
func (s *Service) refreshAgents(ctx context.Context, mode txn.Mode, agents []primitive.ObjectID) error {
	for _, id := range agents {
		af := zap.String("agent_id", id.Hex())
		_, err := s.SyncAgentZoneIDs(ctx, id)
		if err := s.settle(mode, "zone id sync", err, af); err != nil {
			return err
		}
		_, err = s.RefreshAgentStatus(ctx, id)
		if err := s.settle(mode, "agent status recompute", err, af); err != nil {
			return err
		}
	}
	return nil
}

// refreshTarget recomputes status for an agent, or for a team and its
// members.
func (s *Service) refreshTarget(ctx context.Context, mode txn.Mode, agentID, teamID *primitive.ObjectID) error {
	agents, err := s.affectedAgents(ctx, agentID, teamID)
	if err := s.settle(mode, "team member lookup", err); err != nil {
		return err
	}
	for _, id := range agents {
		_, err := s.RefreshAgentStatus(ctx, id)
		if err := s.settle(mode, "agent status recompute", err, zap.String("agent_id", id.Hex())); err != nil {
			return err
		}
	}
	if teamID != nil {
		_, err := s.RefreshTeamStatus(ctx, *teamID)
		if err := s.settle(mode, "team status recompute", err, zap.String("team_id", teamID.Hex())); err != nil {
			return err
		}
	}
	return nil
}

// release repairs the caches of everyone bound by records that just stopped
// being open. An agent whose primary zone pointed at the released zone falls
// back to its most recent remaining zone, or to none.
func (s *Service) release(ctx context.Context, mode txn.Mode, records []models.AgentZoneAssignment) error {
	for _, a := range records {
		agents, err := s.affectedAgents(ctx, a.AgentID, a.TeamID)
		if err := s.settle(mode, "team member lookup", err, zap.String("zone_id", a.ZoneID.Hex())); err != nil {
			return err
		}
		for _, id := range agents {
			if err := s.detachAgent(ctx, mode, id, a.ZoneID); err != nil {
				return err
			}
		}
		if a.TeamID != nil {
			_, err := s.RefreshTeamStatus(ctx, *a.TeamID)
			if err := s.settle(mode, "team status recompute", err, zap.String("team_id", a.TeamID.Hex())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) detachAgent(ctx context.Context, mode txn.Mode, agentID, zoneID primitive.ObjectID) error {
	fields := []zap.Field{zap.String("agent_id", agentID.Hex()), zap.String("zone_id", zoneID.Hex())}

	zoneIDs, err := s.SyncAgentZoneIDs(ctx, agentID)
	if err != nil {
		return s.settle(mode, "zone id sync", err, fields...)
	}

	var fallback *primitive.ObjectID
	for i := len(zoneIDs) - 1; i >= 0; i-- {
		if zoneIDs[i] != zoneID {
			fallback = &zoneIDs[i]
			break
		}
	}
	if err := s.users.ReplacePrimaryZone(ctx, agentID, zoneID, fallback); err != nil {
		if err := s.settle(mode, "primary zone fallback", err, fields...); err != nil {
			return err
		}
	}

	_, err = s.RefreshAgentStatus(ctx, agentID)
	return s.settle(mode, "agent status recompute", err, fields...)
}

// displace closes every open ACTIVE binding on zoneID and releases the
// agents and teams it bound. It returns the closed records.
func (s *Service) displace(ctx context.Context, mode txn.Mode, zoneID primitive.ObjectID, now time.Time) ([]models.AgentZoneAssignment, error) {
	active, err := s.assigns.ListActiveForZone(ctx, zoneID)
	if err != nil || len(active) == 0 {
		return nil, err
	}
	if _, err := s.assigns.DeactivateOpenForZone(ctx, zoneID, now); err != nil {
		return nil, err
	}
	if err := s.release(ctx, mode, active); err != nil {
		return nil, err
	}
	return active, nil
}
