package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/knockwise/knockwise/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with the given role and inactive status.
func (f *Fixtures) CreateUser(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Email:     email,
		Role:      role,
		Status:    models.StatusInactive,
		TeamIDs:   []primitive.ObjectID{},
		ZoneIDs:   []primitive.ObjectID{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateAgent creates a test agent.
func (f *Fixtures) CreateAgent(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RoleAgent)
}

// CreateAdmin creates a test super admin.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RoleSuperAdmin)
}

// CreateTeam creates a team and writes the membership on both sides
// (teams.agent_ids and users.team_ids).
func (f *Fixtures) CreateTeam(ctx context.Context, name string, createdBy primitive.ObjectID, members ...primitive.ObjectID) models.Team {
	f.t.Helper()

	if members == nil {
		members = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	team := models.Team{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Status:    models.StatusInactive,
		CreatedBy: createdBy,
		AgentIDs:  members,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("teams").InsertOne(ctx, team); err != nil {
		f.t.Fatalf("failed to create test team: %v", err)
	}

	if len(members) > 0 {
		_, err := f.db.Collection("users").UpdateMany(ctx,
			bson.M{"_id": bson.M{"$in": members}},
			bson.M{"$addToSet": bson.M{"team_ids": team.ID}, "$set": bson.M{"primary_team_id": team.ID}},
		)
		if err != nil {
			f.t.Fatalf("failed to link team members: %v", err)
		}
	}
	return team
}

// CreateZone creates a draft zone around (lng, lat) as a small square.
func (f *Fixtures) CreateZone(ctx context.Context, name string, createdBy primitive.ObjectID, lng, lat float64) models.Zone {
	f.t.Helper()

	const d = 0.005
	now := time.Now().UTC()
	zone := models.Zone{
		ID:     primitive.NewObjectID(),
		Name:   name,
		NameCI: text.Fold(name),
		Boundary: models.NewPolygon([][]float64{
			{lng - d, lat - d},
			{lng + d, lat - d},
			{lng + d, lat + d},
			{lng - d, lat + d},
		}),
		Status:    models.ZoneDraft,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("zones").InsertOne(ctx, zone); err != nil {
		f.t.Fatalf("failed to create test zone: %v", err)
	}
	return zone
}

// GetUser reloads a user by id.
func (f *Fixtures) GetUser(ctx context.Context, id primitive.ObjectID) models.User {
	f.t.Helper()
	var u models.User
	if err := f.db.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		f.t.Fatalf("failed to load user %s: %v", id.Hex(), err)
	}
	return u
}

// GetTeam reloads a team by id.
func (f *Fixtures) GetTeam(ctx context.Context, id primitive.ObjectID) models.Team {
	f.t.Helper()
	var team models.Team
	if err := f.db.Collection("teams").FindOne(ctx, bson.M{"_id": id}).Decode(&team); err != nil {
		f.t.Fatalf("failed to load team %s: %v", id.Hex(), err)
	}
	return team
}

// GetZone reloads a zone by id.
func (f *Fixtures) GetZone(ctx context.Context, id primitive.ObjectID) models.Zone {
	f.t.Helper()
	var z models.Zone
	if err := f.db.Collection("zones").FindOne(ctx, bson.M{"_id": id}).Decode(&z); err != nil {
		f.t.Fatalf("failed to load zone %s: %v", id.Hex(), err)
	}
	return z
}
