package userstore_test

import (
	"testing"

	userstore "github.com/knockwise/knockwise/internal/app/store/users"
	"github.com/knockwise/knockwise/internal/domain/models"
	"github.com/knockwise/knockwise/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestCreate_NormalizesAndDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{Name: "  Zoë Field ", Email: " ZOE@Example.com ", Role: models.RoleAgent})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if u.Email != "zoe@example.com" {
		t.Errorf("Email: got %q", u.Email)
	}
	if u.NameCI != "zoe field" {
		t.Errorf("NameCI: got %q", u.NameCI)
	}
	if u.Status != models.StatusInactive {
		t.Errorf("Status: got %q, want inactive", u.Status)
	}

	// Arrays must be stored as [] so $addToSet works later.
	var raw bson.M
	if err := db.Collection("users").FindOne(ctx, bson.M{"_id": u.ID}).Decode(&raw); err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if _, ok := raw["team_ids"].(bson.A); !ok {
		t.Errorf("team_ids: expected array, got %T", raw["team_ids"])
	}
	if _, ok := raw["zone_ids"].(bson.A); !ok {
		t.Errorf("zone_ids: expected array, got %T", raw["zone_ids"])
	}
}

func TestCreate_RejectsBadRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.User{Name: "X", Email: "x@example.com", Role: "member"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		t.Fatalf("create index: %v", err)
	}

	if _, err := store.Create(ctx, models.User{Name: "A", Email: "dup@example.com", Role: models.RoleAgent}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err = store.Create(ctx, models.User{Name: "B", Email: "DUP@example.com", Role: models.RoleAgent})
	if err != userstore.ErrDuplicateEmail {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestGetAgentByID_RejectsNonAgent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAdmin(ctx, "Admin", "admin@example.com")
	agent := fixtures.CreateAgent(ctx, "Agent", "agent@example.com")

	if _, err := store.GetAgentByID(ctx, admin.ID); err != mongo.ErrNoDocuments {
		t.Errorf("admin: expected ErrNoDocuments, got %v", err)
	}
	got, err := store.GetAgentByID(ctx, agent.ID)
	if err != nil {
		t.Fatalf("GetAgentByID failed: %v", err)
	}
	if got.ID != agent.ID {
		t.Errorf("got %s, want %s", got.ID.Hex(), agent.ID.Hex())
	}
}

func TestListAgentIDsByTeam(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAdmin(ctx, "Admin", "admin@example.com")
	a1 := fixtures.CreateAgent(ctx, "A1", "a1@example.com")
	a2 := fixtures.CreateAgent(ctx, "A2", "a2@example.com")
	fixtures.CreateAgent(ctx, "Loner", "loner@example.com")
	team := fixtures.CreateTeam(ctx, "Team", admin.ID, a1.ID, a2.ID)

	ids, err := store.ListAgentIDsByTeam(ctx, team.ID)
	if err != nil {
		t.Fatalf("ListAgentIDsByTeam failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 members, got %d", len(ids))
	}

	all, err := store.ListAgentIDs(ctx)
	if err != nil {
		t.Fatalf("ListAgentIDs failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 agents, got %d", len(all))
	}
}

func TestReplacePrimaryZone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	agent := fixtures.CreateAgent(ctx, "Agent", "agent@example.com")
	z1, z2 := primitive.NewObjectID(), primitive.NewObjectID()

	if err := store.SetPrimaryZone(ctx, []primitive.ObjectID{agent.ID}, z1); err != nil {
		t.Fatalf("SetPrimaryZone failed: %v", err)
	}

	// Not the current primary: no change.
	if err := store.ReplacePrimaryZone(ctx, agent.ID, z2, nil); err != nil {
		t.Fatalf("ReplacePrimaryZone failed: %v", err)
	}
	if got := fixtures.GetUser(ctx, agent.ID); got.PrimaryZoneID == nil || *got.PrimaryZoneID != z1 {
		t.Fatalf("primary zone should be unchanged, got %v", got.PrimaryZoneID)
	}

	if err := store.ReplacePrimaryZone(ctx, agent.ID, z1, &z2); err != nil {
		t.Fatalf("ReplacePrimaryZone failed: %v", err)
	}
	if got := fixtures.GetUser(ctx, agent.ID); got.PrimaryZoneID == nil || *got.PrimaryZoneID != z2 {
		t.Fatalf("expected fallback zone, got %v", got.PrimaryZoneID)
	}

	if err := store.ReplacePrimaryZone(ctx, agent.ID, z2, nil); err != nil {
		t.Fatalf("ReplacePrimaryZone failed: %v", err)
	}
	if got := fixtures.GetUser(ctx, agent.ID); got.PrimaryZoneID != nil {
		t.Fatalf("expected primary zone cleared, got %v", got.PrimaryZoneID)
	}
}
