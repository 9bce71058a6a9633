package assignments

import (
	"context"

	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SyncAgentZoneIDs overwrites users.zone_ids with the zones the agent is
// bound to right now, directly or through any of its teams. The list is
// ordered by effective_from with repeats removed, so a second call with no
// intervening change writes the same value.
func (s *Service) SyncAgentZoneIDs(ctx context.Context, agentID primitive.ObjectID) ([]primitive.ObjectID, error) {
	u, err := s.users.GetAgentByID(ctx, agentID)
	if err != nil {
		return nil, apperr.FromMongo(err, "agent")
	}
	teamIDs, err := s.agentTeams(ctx, agentID, u.TeamIDs)
	if err != nil {
		return nil, err
	}
	open, err := s.assigns.ListOpenForTargets(ctx, &agentID, teamIDs)
	if err != nil {
		return nil, err
	}

	zoneIDs := make([]primitive.ObjectID, 0, len(open))
	for _, a := range open {
		zoneIDs = append(zoneIDs, a.ZoneID)
	}
	zoneIDs = union(zoneIDs)

	if err := s.users.SetZoneIDs(ctx, agentID, zoneIDs); err != nil {
		return nil, err
	}
	return zoneIDs, nil
}
