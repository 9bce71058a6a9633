// Package zoneassignstore persists AgentZoneAssignment records, the source
// of truth for which agent or team is bound to which zone.
package zoneassignstore

import (
	"context"
	"time"

	"github.com/knockwise/knockwise/internal/app/system/paging"
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
	return &Store{c: db.Collection("agent_zone_assignments")}
}

// openClause matches bindings that are still operative. A missing
// effective_to also matches {effective_to: nil}.
func openClause() bson.M {
	return bson.M{
		"effective_to": nil,
		"status":       bson.M{"$nin": []string{models.AssignmentCompleted, models.AssignmentCancelled}},
	}
}

// targetsClause matches records bound to agentID directly or to any team in
// teamIDs. ok is false when there is nothing to match.
func targetsClause(agentID *primitive.ObjectID, teamIDs []primitive.ObjectID) (bson.M, bool) {
	var or bson.A
	if agentID != nil {
		or = append(or, bson.M{"agent_id": *agentID})
	}
	if len(teamIDs) > 0 {
		or = append(or, bson.M{"team_id": bson.M{"$in": teamIDs}})
	}
	if len(or) == 0 {
		return nil, false
	}
	return bson.M{"$or": or}, true
}

// Create validates and inserts a. ID and timestamps are filled in.
func (s *Store) Create(ctx context.Context, a models.AgentZoneAssignment) (models.AgentZoneAssignment, error) {
	if err := a.Validate(); err != nil {
		return a, err
	}
	now := time.Now().UTC()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return a, err
	}
	return a, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AgentZoneAssignment, error) {
	var a models.AgentZoneAssignment
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByScheduledID finds the record promoted from a scheduled assignment.
func (s *Store) GetByScheduledID(ctx context.Context, scheduledID primitive.ObjectID) (*models.AgentZoneAssignment, error) {
	var a models.AgentZoneAssignment
	if err := s.c.FindOne(ctx, bson.M{"scheduled_assignment_id": scheduledID}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Delete removes the record and reports how many were deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Filter narrows List. Zero values are ignored.
type Filter struct {
	AgentID *primitive.ObjectID
	TeamID  *primitive.ObjectID
	ZoneID  *primitive.ObjectID
	Status  string
}

func (f Filter) query() bson.M {
	q := bson.M{}
	if f.AgentID != nil {
		q["agent_id"] = *f.AgentID
	}
	if f.TeamID != nil {
		q["team_id"] = *f.TeamID
	}
	if f.ZoneID != nil {
		q["zone_id"] = *f.ZoneID
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	return q
}

// List returns one page ordered by (status, _id).
func (s *Store) List(ctx context.Context, f Filter, ks paging.Keyset) (paging.Page[models.AgentZoneAssignment], error) {
	q := f.query()
	if w := ks.Window("status"); w != nil {
		q = bson.M{"$and": bson.A{q, w}}
	}
	cur, err := s.c.Find(ctx, q, ks.ApplyToFind(options.Find(), "status"))
	if err != nil {
		return paging.Page[models.AgentZoneAssignment]{}, err
	}
	defer cur.Close(ctx)

	var rows []models.AgentZoneAssignment
	if err := cur.All(ctx, &rows); err != nil {
		return paging.Page[models.AgentZoneAssignment]{}, err
	}
	return paging.Build(rows, ks.Limit,
		func(a models.AgentZoneAssignment) string { return a.Status },
		func(a models.AgentZoneAssignment) primitive.ObjectID { return a.ID },
	), nil
}

// ListActiveForZone returns the open ACTIVE bindings on zoneID, the records
// DeactivateOpenForZone would close.
func (s *Store) ListActiveForZone(ctx context.Context, zoneID primitive.ObjectID) ([]models.AgentZoneAssignment, error) {
	cur, err := s.c.Find(ctx, bson.M{"zone_id": zoneID, "status": models.AssignmentActive, "effective_to": nil})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.AgentZoneAssignment{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeactivateOpenForZone closes every open ACTIVE binding on zoneID
// (status=inactive, effective_to=now). Returns the number closed.
func (s *Store) DeactivateOpenForZone(ctx context.Context, zoneID primitive.ObjectID, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"zone_id": zoneID, "status": models.AssignmentActive, "effective_to": nil},
		bson.M{"$set": bson.M{
			"status":       models.AssignmentInactive,
			"effective_to": now,
			"updated_at":   now,
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ListOpenForTargets returns open bindings for the agent or its teams,
// oldest effective_from first.
func (s *Store) ListOpenForTargets(ctx context.Context, agentID *primitive.ObjectID, teamIDs []primitive.ObjectID) ([]models.AgentZoneAssignment, error) {
	targets, ok := targetsClause(agentID, teamIDs)
	if !ok {
		return []models.AgentZoneAssignment{}, nil
	}
	q := bson.M{"$and": bson.A{openClause(), targets}}
	opts := options.Find().SetSort(bson.D{{Key: "effective_from", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.AgentZoneAssignment{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExistsOpenForTargets reports whether any open binding matches.
func (s *Store) ExistsOpenForTargets(ctx context.Context, agentID *primitive.ObjectID, teamIDs []primitive.ObjectID) (bool, error) {
	targets, ok := targetsClause(agentID, teamIDs)
	if !ok {
		return false, nil
	}
	return s.exists(ctx, bson.M{"$and": bson.A{openClause(), targets}})
}

// ExistsOpenForZone reports whether anything still binds zoneID.
func (s *Store) ExistsOpenForZone(ctx context.Context, zoneID primitive.ObjectID) (bool, error) {
	q := openClause()
	q["zone_id"] = zoneID
	return s.exists(ctx, q)
}

func (s *Store) exists(ctx context.Context, q bson.M) (bool, error) {
	err := s.c.FindOne(ctx, q, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return true, nil
	}
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return false, err
}
