package zonestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/knockwise/knockwise/internal/app/system/sanitize"
	"github.com/knockwise/knockwise/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("zones")}
}

var errBadBoundary = errors.New("boundary must be a polygon with at least 4 positions")

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Zone, error) {
	var z models.Zone
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&z); err != nil {
		return nil, err
	}
	return &z, nil
}

// Create inserts a draft zone.
func (s *Store) Create(ctx context.Context, z models.Zone) (models.Zone, error) {
	if len(z.Boundary.Coordinates) == 0 || len(z.Boundary.Coordinates[0]) < 4 {
		return models.Zone{}, errBadBoundary
	}
	z.ID = primitive.NewObjectID()
	z.Name = sanitize.Text(z.Name)
	z.NameCI = text.Fold(z.Name)
	z.Description = sanitize.HTML(strings.TrimSpace(z.Description))
	z.Boundary.Type = "Polygon"
	if z.Status == "" {
		z.Status = models.ZoneDraft
	}
	now := time.Now().UTC()
	z.CreatedAt = now
	z.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, z); err != nil {
		return models.Zone{}, err
	}
	return z, nil
}

// MarkAssigned moves a zone into active use and stamps the bound target. An
// already active zone is restamped with the new holder; completed zones are
// left alone. Reports whether the zone matched.
func (s *Store) MarkAssigned(ctx context.Context, id primitive.ObjectID, agentID, teamID *primitive.ObjectID) (bool, error) {
	set := bson.M{"status": models.ZoneActive, "updated_at": time.Now().UTC()}
	unset := bson.M{}
	if agentID != nil {
		set["assigned_agent_id"] = *agentID
		unset["team_id"] = ""
	}
	if teamID != nil {
		set["team_id"] = *teamID
		unset["assigned_agent_id"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := s.c.UpdateOne(ctx, bson.M{
		"_id":    id,
		"status": bson.M{"$in": []string{models.ZoneDraft, models.ZoneInactive, models.ZoneScheduled, models.ZoneActive}},
	}, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// MarkScheduled flags a zone as awaiting a scheduled binding and clears any
// holder stamped on it. Callers close the zone's open bindings first;
// completed and already scheduled zones are left alone.
func (s *Store) MarkScheduled(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":    id,
			"status": bson.M{"$in": []string{models.ZoneDraft, models.ZoneInactive, models.ZoneActive}},
		},
		bson.M{
			"$set":   bson.M{"status": models.ZoneScheduled, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"assigned_agent_id": "", "team_id": ""},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// MarkUnassigned returns an active zone to inactive once nothing binds it.
func (s *Store) MarkUnassigned(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": []string{models.ZoneActive, models.ZoneScheduled}}},
		bson.M{
			"$set":   bson.M{"status": models.ZoneInactive, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"assigned_agent_id": "", "team_id": ""},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// Near returns zones ordered by distance from (lng, lat). maxMeters <= 0
// means unbounded.
func (s *Store) Near(ctx context.Context, lng, lat, maxMeters float64, limit int64) ([]models.Zone, error) {
	near := bson.M{
		"$geometry": bson.M{"type": "Point", "coordinates": []float64{lng, lat}},
	}
	if maxMeters > 0 {
		near["$maxDistance"] = maxMeters
	}
	if limit <= 0 {
		limit = 20
	}
	cur, err := s.c.Find(ctx, bson.M{"boundary": bson.M{"$near": near}}, options.Find().SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Zone{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
