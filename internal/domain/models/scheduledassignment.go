// internal/domain/models/scheduledassignment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScheduledAssignment statuses.
const (
	ScheduledPending   = "pending"
	ScheduledActivated = "activated"
	ScheduledCancelled = "cancelled"
)

// ScheduledAssignment is a future-dated binding. It is not operative until
// the activator promotes it into an AgentZoneAssignment.
type ScheduledAssignment struct {
	ID      primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	AgentID *primitive.ObjectID `bson:"agent_id,omitempty" json:"agent_id,omitempty"`
	TeamID  *primitive.ObjectID `bson:"team_id,omitempty" json:"team_id,omitempty"`
	ZoneID  primitive.ObjectID  `bson:"zone_id" json:"zone_id"`

	ScheduledDate time.Time `bson:"scheduled_date" json:"scheduled_date"`
	EffectiveFrom time.Time `bson:"effective_from" json:"effective_from"`
	Status        string    `bson:"status" json:"status"` // pending | activated | cancelled

	AssignedBy       primitive.ObjectID `bson:"assigned_by" json:"assigned_by"`
	NotificationSent bool               `bson:"notification_sent" json:"notification_sent"`
	ActivatedAt      *time.Time         `bson:"activated_at,omitempty" json:"activated_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Validate checks the agent/team exclusivity rule.
func (s ScheduledAssignment) Validate() error {
	return validateTarget(s.AgentID, s.TeamID)
}
