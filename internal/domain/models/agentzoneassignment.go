// internal/domain/models/agentzoneassignment.go
package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AgentZoneAssignment statuses.
const (
	AssignmentActive    = "active"
	AssignmentInactive  = "inactive"
	AssignmentCompleted = "completed"
	AssignmentCancelled = "cancelled"
)

// ErrAssignmentTarget is returned when an assignment names both or neither
// of agent and team.
var ErrAssignmentTarget = errors.New("exactly one of agent_id or team_id is required")

// AgentZoneAssignment binds one agent or one team to a zone for an
// effective window [EffectiveFrom, EffectiveTo). A nil EffectiveTo means the
// binding is still open.
//
// It models a document in the `agent_zone_assignments` collection.
type AgentZoneAssignment struct {
	ID      primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	AgentID *primitive.ObjectID `bson:"agent_id,omitempty" json:"agent_id,omitempty"`
	TeamID  *primitive.ObjectID `bson:"team_id,omitempty" json:"team_id,omitempty"`
	ZoneID  primitive.ObjectID  `bson:"zone_id" json:"zone_id"`

	EffectiveFrom time.Time  `bson:"effective_from" json:"effective_from"`
	EffectiveTo   *time.Time `bson:"effective_to" json:"effective_to"`
	Status        string     `bson:"status" json:"status"` // active | inactive | completed | cancelled

	AssignedBy primitive.ObjectID `bson:"assigned_by" json:"assigned_by"`

	// Set when the record was promoted from a scheduled assignment. Unique,
	// so a repeated promotion of the same scheduled record is detected.
	ScheduledAssignmentID *primitive.ObjectID `bson:"scheduled_assignment_id,omitempty" json:"scheduled_assignment_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Validate checks the agent/team exclusivity rule.
func (a AgentZoneAssignment) Validate() error {
	return validateTarget(a.AgentID, a.TeamID)
}

// IsOpen reports whether the assignment is a currently operative binding.
func (a AgentZoneAssignment) IsOpen() bool {
	return a.EffectiveTo == nil && a.Status != AssignmentCompleted && a.Status != AssignmentCancelled
}

func validateTarget(agentID, teamID *primitive.ObjectID) error {
	hasAgent := agentID != nil && !agentID.IsZero()
	hasTeam := teamID != nil && !teamID.IsZero()
	if hasAgent == hasTeam {
		return ErrAssignmentTarget
	}
	return nil
}
