// internal/domain/models/zone.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Zone lifecycle states.
const (
	ZoneDraft     = "draft"
	ZoneActive    = "active"
	ZoneInactive  = "inactive"
	ZoneScheduled = "scheduled"
	ZoneCompleted = "completed"
)

// Polygon is a GeoJSON polygon: one outer ring followed by optional holes.
// Each position is [longitude, latitude]. Stored as-is so the 2dsphere
// index on zones.boundary can serve $near / $geoIntersects queries.
type Polygon struct {
	Type        string        `bson:"type" json:"type"` // always "Polygon"
	Coordinates [][][]float64 `bson:"coordinates" json:"coordinates"`
}

// NewPolygon builds a closed GeoJSON polygon from an outer ring.
// The ring is closed automatically when the last position differs from the first.
func NewPolygon(ring [][]float64) Polygon {
	if n := len(ring); n > 0 {
		first, last := ring[0], ring[n-1]
		if len(first) == 2 && len(last) == 2 && (first[0] != last[0] || first[1] != last[1]) {
			ring = append(ring, []float64{first[0], first[1]})
		}
	}
	return Polygon{Type: "Polygon", Coordinates: [][][]float64{ring}}
}

// Zone is a geographic territory that agents canvass.
type Zone struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Boundary    Polygon            `bson:"boundary" json:"boundary"`
	Status      string             `bson:"status" json:"status"` // draft | active | inactive | scheduled | completed

	// Stamped when the zone first leaves draft.
	AssignedAgentID *primitive.ObjectID `bson:"assigned_agent_id,omitempty" json:"assigned_agent_id,omitempty"`
	TeamID          *primitive.ObjectID `bson:"team_id,omitempty" json:"team_id,omitempty"`

	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
