// internal/domain/models/team.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Team groups agents that canvass a zone together.
//
// AgentIDs mirrors User.TeamIDs; both sides are written when membership
// changes. Status is a cache derived from open team assignments.
type Team struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	NameCI      string               `bson:"name_ci" json:"-"`
	Description string               `bson:"description,omitempty" json:"description,omitempty"`
	Status      string               `bson:"status" json:"status"`
	CreatedBy   primitive.ObjectID   `bson:"created_by" json:"created_by"`
	LeaderID    *primitive.ObjectID  `bson:"leader_id,omitempty" json:"leader_id,omitempty"`
	AgentIDs    []primitive.ObjectID `bson:"agent_ids" json:"agent_ids"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
