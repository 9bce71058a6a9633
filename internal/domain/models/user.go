// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles.
const (
	RoleSuperAdmin = "superadmin"
	RoleSubAdmin   = "subadmin"
	RoleAgent      = "agent"
)

// Derived status values shared by users and teams.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// User represents super admins, sub admins, and field agents.
//
// NOTE:
//   - Status, ZoneIDs and PrimaryZoneID are caches maintained by the
//     assignments service. The authoritative state is the set of open
//     agent_zone_assignments records.
type User struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Email  string             `bson:"email" json:"email"`
	Role   string             `bson:"role" json:"role"`     // superadmin | subadmin | agent
	Status string             `bson:"status" json:"status"` // active | inactive

	PrimaryTeamID *primitive.ObjectID  `bson:"primary_team_id,omitempty" json:"primary_team_id,omitempty"`
	PrimaryZoneID *primitive.ObjectID  `bson:"primary_zone_id,omitempty" json:"primary_zone_id,omitempty"`
	TeamIDs       []primitive.ObjectID `bson:"team_ids" json:"team_ids"`
	ZoneIDs       []primitive.ObjectID `bson:"zone_ids" json:"zone_ids"`

	CreatedBy *primitive.ObjectID `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time           `bson:"updated_at" json:"updated_at"`
}

// IsAgent reports whether the user can be bound to zones.
func (u User) IsAgent() bool { return u.Role == RoleAgent }
