package userstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
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
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when the email is already taken.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errBadRole        = errors.New(`role must be "superadmin"|"subadmin"|"agent"`)
)

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetAgentByID loads a user by ObjectID, returning mongo.ErrNoDocuments if
// the user does not exist or is not an agent.
func (s *Store) GetAgentByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "role": models.RoleAgent}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user. Array fields are written as empty arrays, never
// null, so later $addToSet/$pull updates apply cleanly.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	switch u.Role {
	case models.RoleSuperAdmin, models.RoleSubAdmin, models.RoleAgent:
	default:
		return models.User{}, errBadRole
	}

	u.ID = primitive.NewObjectID()
	u.Name = strings.TrimSpace(u.Name)
	u.NameCI = text.Fold(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Status == "" {
		u.Status = models.StatusInactive
	}
	if u.TeamIDs == nil {
		u.TeamIDs = []primitive.ObjectID{}
	}
	if u.ZoneIDs == nil {
		u.ZoneIDs = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// ListAgentIDs returns every agent id in _id order.
func (s *Store) ListAgentIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"role": models.RoleAgent}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// ListAgentIDsByTeam returns agents whose team_ids contain teamID.
func (s *Store) ListAgentIDsByTeam(ctx context.Context, teamID primitive.ObjectID) ([]primitive.ObjectID, error) {
	ids, err := s.c.Distinct(ctx, "_id", bson.M{"role": models.RoleAgent, "team_ids": teamID})
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, v := range ids {
		if oid, ok := v.(primitive.ObjectID); ok {
			out = append(out, oid)
		}
	}
	return out, nil
}

// SetPrimaryZone points every listed user's primary_zone_id at zoneID.
func (s *Store) SetPrimaryZone(ctx context.Context, ids []primitive.ObjectID, zoneID primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"primary_zone_id": zoneID, "updated_at": time.Now().UTC()}},
	)
	return err
}

// SetZoneIDs overwrites the zone_ids cache.
func (s *Store) SetZoneIDs(ctx context.Context, id primitive.ObjectID, zoneIDs []primitive.ObjectID) error {
	if zoneIDs == nil {
		zoneIDs = []primitive.ObjectID{}
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"zone_ids": zoneIDs, "updated_at": time.Now().UTC()}},
	)
	return err
}

// ReplacePrimaryZone moves primary_zone_id off oldZone. A nil replacement
// unsets the field. Users whose primary zone is something else are untouched.
func (s *Store) ReplacePrimaryZone(ctx context.Context, id, oldZone primitive.ObjectID, replacement *primitive.ObjectID) error {
	update := bson.M{"$unset": bson.M{"primary_zone_id": ""}, "$set": bson.M{"updated_at": time.Now().UTC()}}
	if replacement != nil {
		update = bson.M{"$set": bson.M{"primary_zone_id": *replacement, "updated_at": time.Now().UTC()}}
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "primary_zone_id": oldZone}, update)
	return err
}

// SetStatus writes the derived status cache.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	return err
}
