// Package scheduledassignstore persists future-dated assignments until the
// activator promotes them.
package scheduledassignstore

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
	return &Store{c: db.Collection("scheduled_assignments")}
}

// Create validates and inserts a PENDING record.
func (s *Store) Create(ctx context.Context, sa models.ScheduledAssignment) (models.ScheduledAssignment, error) {
	if err := sa.Validate(); err != nil {
		return sa, err
	}
	now := time.Now().UTC()
	if sa.ID.IsZero() {
		sa.ID = primitive.NewObjectID()
	}
	if sa.Status == "" {
		sa.Status = models.ScheduledPending
	}
	if sa.ScheduledDate.IsZero() {
		sa.ScheduledDate = sa.EffectiveFrom
	}
	sa.CreatedAt = now
	sa.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, sa); err != nil {
		return sa, err
	}
	return sa, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ScheduledAssignment, error) {
	var sa models.ScheduledAssignment
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sa); err != nil {
		return nil, err
	}
	return &sa, nil
}

type Filter struct {
	AgentID *primitive.ObjectID
	TeamID  *primitive.ObjectID
	ZoneID  *primitive.ObjectID
	Status  string
}

// List returns one page ordered by (status, _id).
func (s *Store) List(ctx context.Context, f Filter, ks paging.Keyset) (paging.Page[models.ScheduledAssignment], error) {
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
	if w := ks.Window("status"); w != nil {
		q = bson.M{"$and": bson.A{q, w}}
	}

	cur, err := s.c.Find(ctx, q, ks.ApplyToFind(options.Find(), "status"))
	if err != nil {
		return paging.Page[models.ScheduledAssignment]{}, err
	}
	defer cur.Close(ctx)

	var rows []models.ScheduledAssignment
	if err := cur.All(ctx, &rows); err != nil {
		return paging.Page[models.ScheduledAssignment]{}, err
	}
	return paging.Build(rows, ks.Limit,
		func(sa models.ScheduledAssignment) string { return sa.Status },
		func(sa models.ScheduledAssignment) primitive.ObjectID { return sa.ID },
	), nil
}

// ListDue returns PENDING records with scheduled_date <= now, earliest
// first. limit <= 0 means no limit.
func (s *Store) ListDue(ctx context.Context, now time.Time, limit int64) ([]models.ScheduledAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_date", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{
		"status":         models.ScheduledPending,
		"scheduled_date": bson.M{"$lte": now},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.ScheduledAssignment{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkActivated moves a PENDING record to ACTIVATED. It reports false when
// the record was no longer pending (already activated or cancelled).
func (s *Store) MarkActivated(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.ScheduledPending},
		bson.M{"$set": bson.M{
			"status":            models.ScheduledActivated,
			"notification_sent": true,
			"activated_at":      now,
			"updated_at":        now,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// Cancel moves a PENDING record to CANCELLED. It reports false when the
// record was not pending.
func (s *Store) Cancel(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.ScheduledPending},
		bson.M{"$set": bson.M{"status": models.ScheduledCancelled, "updated_at": now}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// ExistsPendingForTargets reports whether a PENDING record targets agentID
// directly or any team in teamIDs.
func (s *Store) ExistsPendingForTargets(ctx context.Context, agentID *primitive.ObjectID, teamIDs []primitive.ObjectID) (bool, error) {
	var or bson.A
	if agentID != nil {
		or = append(or, bson.M{"agent_id": *agentID})
	}
	if len(teamIDs) > 0 {
		or = append(or, bson.M{"team_id": bson.M{"$in": teamIDs}})
	}
	if len(or) == 0 {
		return false, nil
	}
	err := s.c.FindOne(ctx,
		bson.M{"status": models.ScheduledPending, "$or": or},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if err == nil {
		return true, nil
	}
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return false, err
}
