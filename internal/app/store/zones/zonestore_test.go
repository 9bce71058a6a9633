package zonestore_test

import (
	"testing"

	zonestore "github.com/knockwise/knockwise/internal/app/store/zones"
	"github.com/knockwise/knockwise/internal/app/system/indexes"
	"github.com/knockwise/knockwise/internal/domain/models"
	"github.com/knockwise/knockwise/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreate_ValidatesBoundary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := zonestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Zone{Name: "Empty"}); err == nil {
		t.Fatal("expected error for empty boundary")
	}

	z, err := store.Create(ctx, models.Zone{
		Name:     "Elm <i>Street</i>",
		Boundary: models.NewPolygon([][]float64{{0, 0}, {1, 0}, {1, 1}}),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if z.Status != models.ZoneDraft {
		t.Errorf("Status: got %q, want draft", z.Status)
	}
	if z.Name != "Elm Street" || z.NameCI != "elm street" {
		t.Errorf("Name: got %q / %q", z.Name, z.NameCI)
	}
}

func TestMarkAssigned_Lifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := zonestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	zone := fixtures.CreateZone(ctx, "Z", primitive.NewObjectID(), -97.74, 30.27)
	agentID := primitive.NewObjectID()

	changed, err := store.MarkAssigned(ctx, zone.ID, &agentID, nil)
	if err != nil || !changed {
		t.Fatalf("MarkAssigned: changed=%v err=%v", changed, err)
	}
	got := fixtures.GetZone(ctx, zone.ID)
	if got.Status != models.ZoneActive || got.AssignedAgentID == nil || *got.AssignedAgentID != agentID {
		t.Fatalf("unexpected zone after assign: %+v", got)
	}

	// Already active: restamped with the new holder.
	nextAgent := primitive.NewObjectID()
	changed, err = store.MarkAssigned(ctx, zone.ID, &nextAgent, nil)
	if err != nil || !changed {
		t.Fatalf("second MarkAssigned: changed=%v err=%v", changed, err)
	}
	got = fixtures.GetZone(ctx, zone.ID)
	if got.AssignedAgentID == nil || *got.AssignedAgentID != nextAgent {
		t.Fatalf("expected the zone restamped to the new agent, got %+v", got.AssignedAgentID)
	}

	changed, err = store.MarkUnassigned(ctx, zone.ID)
	if err != nil || !changed {
		t.Fatalf("MarkUnassigned: changed=%v err=%v", changed, err)
	}
	got = fixtures.GetZone(ctx, zone.ID)
	if got.Status != models.ZoneInactive || got.AssignedAgentID != nil {
		t.Fatalf("unexpected zone after unassign: %+v", got)
	}

	// Inactive zones can be reassigned, this time to a team.
	teamID := primitive.NewObjectID()
	changed, err = store.MarkAssigned(ctx, zone.ID, nil, &teamID)
	if err != nil || !changed {
		t.Fatalf("reassign: changed=%v err=%v", changed, err)
	}
	got = fixtures.GetZone(ctx, zone.ID)
	if got.TeamID == nil || *got.TeamID != teamID || got.AssignedAgentID != nil {
		t.Fatalf("unexpected zone after team assign: %+v", got)
	}
}

func TestMarkScheduled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := zonestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	zone := fixtures.CreateZone(ctx, "Z", primitive.NewObjectID(), 0, 0)
	if changed, err := store.MarkScheduled(ctx, zone.ID); err != nil || !changed {
		t.Fatalf("MarkScheduled: changed=%v err=%v", changed, err)
	}
	if changed, err := store.MarkScheduled(ctx, zone.ID); err != nil || changed {
		t.Fatalf("second MarkScheduled: changed=%v err=%v", changed, err)
	}

	// An active zone loses its holder when it goes back to waiting.
	other := fixtures.CreateZone(ctx, "Active", primitive.NewObjectID(), 1, 1)
	agentID := primitive.NewObjectID()
	if _, err := store.MarkAssigned(ctx, other.ID, &agentID, nil); err != nil {
		t.Fatalf("MarkAssigned failed: %v", err)
	}
	if changed, err := store.MarkScheduled(ctx, other.ID); err != nil || !changed {
		t.Fatalf("MarkScheduled on active zone: changed=%v err=%v", changed, err)
	}
	got := fixtures.GetZone(ctx, other.ID)
	if got.Status != models.ZoneScheduled || got.AssignedAgentID != nil || got.TeamID != nil {
		t.Fatalf("unexpected zone after MarkScheduled: %+v", got)
	}
}

func TestNear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := zonestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	admin := primitive.NewObjectID()
	near := fixtures.CreateZone(ctx, "Near", admin, -97.740, 30.270)
	far := fixtures.CreateZone(ctx, "Far", admin, -97.600, 30.400)

	zones, err := store.Near(ctx, -97.741, 30.271, 0, 10)
	if err != nil {
		t.Fatalf("Near failed: %v", err)
	}
	if len(zones) != 2 {
		t.Fatalf("expected 2 zones, got %d", len(zones))
	}
	if zones[0].ID != near.ID || zones[1].ID != far.ID {
		t.Errorf("expected nearest first, got %s then %s", zones[0].Name, zones[1].Name)
	}

	zones, err = store.Near(ctx, -97.741, 30.271, 2000, 10)
	if err != nil {
		t.Fatalf("Near (bounded) failed: %v", err)
	}
	if len(zones) != 1 || zones[0].ID != near.ID {
		t.Errorf("expected only the near zone within 2km, got %d zones", len(zones))
	}
}
