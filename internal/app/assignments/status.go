package assignments

import (
	"context"

	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// agentSignals are the independent facts that make an agent ACTIVE. Any one
// of them is enough.
type agentSignals struct {
	hasZoneIDs     bool // users.zone_ids non-empty
	hasPrimaryZone bool // users.primary_zone_id set
	openDirect     bool // open binding with agent_id == agent
	openViaTeam    bool // open binding with team_id in the agent's teams
	pending        bool // PENDING scheduled record for the agent or its teams
}

func (s agentSignals) active() bool {
	return s.hasZoneIDs || s.hasPrimaryZone || s.openDirect || s.openViaTeam || s.pending
}

func statusOf(active bool) string {
	if active {
		return models.StatusActive
	}
	return models.StatusInactive
}

// collectAgentSignals evaluates the signals for u in order of cost and stops
// at the first one that holds.
func (s *Service) collectAgentSignals(ctx context.Context, u *models.User) (agentSignals, error) {
	sig := agentSignals{
		hasZoneIDs:     len(u.ZoneIDs) > 0,
		hasPrimaryZone: u.PrimaryZoneID != nil && !u.PrimaryZoneID.IsZero(),
	}
	if sig.active() {
		return sig, nil
	}

	var err error
	if sig.openDirect, err = s.assigns.ExistsOpenForTargets(ctx, &u.ID, nil); err != nil || sig.openDirect {
		return sig, err
	}

	teamIDs, err := s.agentTeams(ctx, u.ID, u.TeamIDs)
	if err != nil {
		return sig, err
	}
	if sig.openViaTeam, err = s.assigns.ExistsOpenForTargets(ctx, nil, teamIDs); err != nil || sig.openViaTeam {
		return sig, err
	}

	sig.pending, err = s.scheduled.ExistsPendingForTargets(ctx, &u.ID, teamIDs)
	return sig, err
}

// DeriveAgentStatus computes ACTIVE or INACTIVE for an agent. It reads only.
func (s *Service) DeriveAgentStatus(ctx context.Context, agentID primitive.ObjectID) (string, error) {
	u, err := s.users.GetAgentByID(ctx, agentID)
	if err != nil {
		return "", apperr.FromMongo(err, "agent")
	}
	sig, err := s.collectAgentSignals(ctx, u)
	if err != nil {
		return "", err
	}
	return statusOf(sig.active()), nil
}

// DeriveTeamStatus is ACTIVE iff an open binding targets the team.
func (s *Service) DeriveTeamStatus(ctx context.Context, teamID primitive.ObjectID) (string, error) {
	if _, err := s.teams.GetByID(ctx, teamID); err != nil {
		return "", apperr.FromMongo(err, "team")
	}
	open, err := s.assigns.ExistsOpenForTargets(ctx, nil, []primitive.ObjectID{teamID})
	if err != nil {
		return "", err
	}
	return statusOf(open), nil
}

// RefreshAgentStatus derives and stores users.status.
func (s *Service) RefreshAgentStatus(ctx context.Context, agentID primitive.ObjectID) (string, error) {
	status, err := s.DeriveAgentStatus(ctx, agentID)
	if err != nil {
		return "", err
	}
	return status, s.users.SetStatus(ctx, agentID, status)
}

// RefreshTeamStatus derives and stores teams.status.
func (s *Service) RefreshTeamStatus(ctx context.Context, teamID primitive.ObjectID) (string, error) {
	status, err := s.DeriveTeamStatus(ctx, teamID)
	if err != nil {
		return "", err
	}
	return status, s.teams.SetStatus(ctx, teamID, status)
}

// StatusView compares a stored status with a fresh derivation.
type StatusView struct {
	ID      primitive.ObjectID `json:"id"`
	Cached  string             `json:"cached_status"`
	Derived string             `json:"derived_status"`
	Drift   bool               `json:"drift"`

	ZoneIDs       []primitive.ObjectID `json:"zone_ids,omitempty"`
	PrimaryZoneID *primitive.ObjectID  `json:"primary_zone_id,omitempty"`
}

// AgentStatus reports an agent's cached and derived status without writing.
func (s *Service) AgentStatus(ctx context.Context, agentID primitive.ObjectID) (StatusView, error) {
	u, err := s.users.GetAgentByID(ctx, agentID)
	if err != nil {
		return StatusView{}, apperr.FromMongo(err, "agent")
	}
	sig, err := s.collectAgentSignals(ctx, u)
	if err != nil {
		return StatusView{}, err
	}
	derived := statusOf(sig.active())
	zoneIDs := u.ZoneIDs
	if zoneIDs == nil {
		zoneIDs = []primitive.ObjectID{}
	}
	return StatusView{
		ID:            u.ID,
		Cached:        u.Status,
		Derived:       derived,
		Drift:         u.Status != derived,
		ZoneIDs:       zoneIDs,
		PrimaryZoneID: u.PrimaryZoneID,
	}, nil
}

// TeamStatus reports a team's cached and derived status without writing.
func (s *Service) TeamStatus(ctx context.Context, teamID primitive.ObjectID) (StatusView, error) {
	t, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return StatusView{}, apperr.FromMongo(err, "team")
	}
	open, err := s.assigns.ExistsOpenForTargets(ctx, nil, []primitive.ObjectID{teamID})
	if err != nil {
		return StatusView{}, err
	}
	derived := statusOf(open)
	return StatusView{ID: t.ID, Cached: t.Status, Derived: derived, Drift: t.Status != derived}, nil
}
