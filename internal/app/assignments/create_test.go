package assignments_test

import (
	"sync"
	"testing"
	"time"

	"github.com/knockwise/knockwise/internal/app/assignments"
	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDeriveAgentStatus_NoAssignments(t *testing.T) {
	e := setup(t)
	agent := e.fx.CreateAgent(e.ctx, "Ana", "ana@example.com")

	status, err := e.svc.DeriveAgentStatus(e.ctx, agent.ID)
	if err != nil {
		t.Fatalf("DeriveAgentStatus failed: %v", err)
	}
	if status != models.StatusInactive {
		t.Errorf("status: got %q, want inactive", status)
	}

	// Repeated calls over unchanged data agree.
	again, _ := e.svc.DeriveAgentStatus(e.ctx, agent.ID)
	if again != status {
		t.Errorf("second call: got %q, want %q", again, status)
	}
}

func TestDeriveAgentStatus_UnknownAgent(t *testing.T) {
	e := setup(t)
	if _, err := e.svc.DeriveAgentStatus(e.ctx, primitive.NewObjectID()); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	// Admins are not agents.
	if _, err := e.svc.DeriveAgentStatus(e.ctx, e.admin); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("admin: expected NOT_FOUND, got %v", err)
	}
}

func TestCreate_ImmediateAgent(t *testing.T) {
	e := setup(t)
	agent := e.fx.CreateAgent(e.ctx, "Ana", "ana@example.com")
	zone := e.fx.CreateZone(e.ctx, "North", e.admin, -73.99, 40.73)

	res, err := e.svc.Create(e.ctx, assignments.CreateInput{
		AgentID:       &agent.ID,
		ZoneID:        zone.ID,
		EffectiveFrom: e.clock.Now(),
		AssignedBy:    e.admin,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if res.Scheduled || res.Assignment == nil || res.ScheduledAssignment != nil {
		t.Fatalf("expected an immediate assignment, got %+v", res)
	}
	if res.Assignment.Status != models.AssignmentActive || !res.Assignment.IsOpen() {
		t.Errorf("assignment should be open and active, got %+v", res.Assignment)
	}

	status, err := e.svc.DeriveAgentStatus(e.ctx, agent.ID)
	if err != nil {
		t.Fatalf("DeriveAgentStatus failed: %v", err)
	}
	if status != models.StatusActive {
		t.Errorf("derived status: got %q, want active", status)
	}

	u := e.fx.GetUser(e.ctx, agent.ID)
	if !sameIDs(u.ZoneIDs, []primitive.ObjectID{zone.ID}) {
		t.Errorf("zone_ids: got %v, want [%s]", u.ZoneIDs, zone.ID.Hex())
	}
	if u.PrimaryZoneID == nil || *u.PrimaryZoneID != zone.ID {
		t.Errorf("primary_zone_id: got %v, want %s", u.PrimaryZoneID, zone.ID.Hex())
	}
	if u.Status != models.StatusActive {
		t.Errorf("cached status: got %q, want active", u.Status)
	}

	z := e.fx.GetZone(e.ctx, zone.ID)
	if z.Status != models.ZoneActive {
		t.Errorf("zone status: got %q, want active", z.Status)
	}
	if z.AssignedAgentID == nil || *z.AssignedAgentID != agent.ID || z.TeamID != nil {
		t.Errorf("zone stamp: agent=%v team=%v", z.AssignedAgentID, z.TeamID)
	}
}

func TestCreate_Team(t *testing.T) {
	e := setup(t)
	a1 := e.fx.CreateAgent(e.ctx, "Ana", "ana@example.com")
	a2 := e.fx.CreateAgent(e.ctx, "Ben", "ben@example.com")
	team := e.fx.CreateTeam(e.ctx, "Blue", e.admin, a1.ID, a2.ID)
	zone := e.fx.CreateZone(e.ctx, "North", e.admin, -73.99, 40.73)

	res, err := e.svc.Create(e.ctx, assignments.CreateInput{
		TeamID:     &team.ID,
		ZoneID:     zone.ID,
		AssignedBy: e.admin,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if res.Scheduled {
		t.Fatal("zero effective_from should be immediate")
	}

	for _, id := range []primitive.ObjectID{a1.ID, a2.ID} {
		u := e.fx.GetUser(e.ctx, id)
		if u.PrimaryZoneID == nil || *u.PrimaryZoneID != zone.ID {
			t.Errorf("%s: primary_zone_id got %v", u.Name, u.PrimaryZoneID)
		}
		if !sameIDs(u.ZoneIDs, []primitive.ObjectID{zone.ID}) {
			t.Errorf("%s: zone_ids got %v", u.Name, u.ZoneIDs)
		}
		if u.Status != models.StatusActive {
			t.Errorf("%s: status got %q", u.Name, u.Status)
		}
	}

	status, err := e.svc.DeriveTeamStatus(e.ctx, team.ID)
	if err != nil {
		t.Fatalf("DeriveTeamStatus failed: %v", err)
	}
	if status != models.StatusActive {
		t.Errorf("team status: got %q, want active", status)
	}
	if got := e.fx.GetTeam(e.ctx, team.ID).Status; got != models.StatusActive {
		t.Errorf("cached team status: got %q", got)
	}
	if z := e.fx.GetZone(e.ctx, zone.ID); z.TeamID == nil || *z.TeamID != team.ID || z.AssignedAgentID != nil {
		t.Errorf("zone stamp: agent=%v team=%v", z.AssignedAgentID, z.TeamID)
	}
}

func TestCreate_FutureIsScheduled(t *testing.T) {
	e := setup(t)
	agent := e.fx.CreateAgent(e.ctx, "Ana", "ana@example.com")
	zone := e.fx.CreateZone(e.ctx, "North", e.admin, -73.99, 40.73)

	res, err := e.svc.Create(e.ctx, assignments.CreateInput{
		AgentID:       &agent.ID,
		ZoneID:        zone.ID,
		EffectiveFrom: e.clock.Now().Add(7 * 24 * time.Hour),
		AssignedBy:    e.admin,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !res.Scheduled || res.ScheduledAssignment == nil || res.Assignment != nil {
		t.Fatalf("expected a scheduled assignment, got %+v", res)
	}
	if res.ScheduledAssignment.Status != models.ScheduledPending {
		t.Errorf("scheduled status: got %q", res.ScheduledAssignment.Status)
	}
	if n := e.count(t, "agent_zone_assignments", bson.M{"zone_id": zone.ID}); n != 0 {
		t.Errorf("expected no bindings for the zone yet, got %d", n)
	}

	// A pending record alone keeps the agent active.
	status, err := e.svc.DeriveAgentStatus(e.ctx, agent.ID)
	if err != nil {
		t.Fatalf("DeriveAgentStatus failed: %v", err)
	}
	if status != models.StatusActive {
		t.Errorf("derived status: got %q, want active", status)
	}
	u := e.fx.GetUser(e.ctx, agent.ID)
	if u.Status != models.StatusActive {
		t.Errorf("cached status: got %q, want active", u.Status)
	}
	if len(u.ZoneIDs) != 0 || u.PrimaryZoneID != nil {
		t.Errorf("caches must not point at a zone before activation: %+v", u)
	}
	if z := e.fx.GetZone(e.ctx, zone.ID); z.Status != models.ZoneScheduled {
		t.Errorf("zone status: got %q, want scheduled", z.Status)
	}
}

func TestCreate_SecondDeactivatesFirst(t *testing.T) {
	e := setup(t)
	first := e.fx.CreateAgent(e.ctx, "Ana", "ana@example.com")
	second := e.fx.CreateAgent(e.ctx, "Ben", "ben@example.com")
	zone := e.fx.CreateZone(e.ctx, "North", e.admin, -73.99, 40.73)

	r1, err := e.svc.Create(e.ctx, assignments.CreateInput{AgentID: &first.ID, ZoneID: zone.ID, AssignedBy: e.admin})
	if err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	e.clock.Advance(time.Minute)
	r2, err := e.svc.Create(e.ctx, assignments.CreateInput{AgentID: &second.ID, ZoneID: zone.ID, AssignedBy: e.admin})
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}

	if n := e.openActiveOnZone(t, zone.ID); n != 1 {
		t.Fatalf("expected exactly one open active binding, got %d", n)
	}

	var old models.AgentZoneAssignment
	if err := e.db.Collection("agent_zone_assignments").FindOne(e.ctx, bson.M{"_id": r1.Assignment.ID}).Decode(&old); err != nil {
		t.Fatalf("load first binding: %v", err)
	}
	if old.Status != models.AssignmentInactive || old.EffectiveTo == nil {
		t.Errorf("first binding: status=%q effective_to=%v", old.Status, old.EffectiveTo)
	}
	if !old.EffectiveTo.Equal(r2.Assignment.EffectiveFrom) {
		t.Errorf("first binding should close when the second opens: %v vs %v", old.EffectiveTo, r2.Assignment.EffectiveFrom)
	}

	// The displaced agent's caches follow.
	u := e.fx.GetUser(e.ctx, first.ID)
	if len(u.ZoneIDs) != 0 || u.PrimaryZoneID != nil || u.Status != models.StatusInactive {
		t.Errorf("displaced agent: zone_ids=%v primary=%v status=%q", u.ZoneIDs, u.PrimaryZoneID, u.Status)
	}
	if z := e.fx.GetZone(e.ctx, zone.ID); z.AssignedAgentID == nil || *z.AssignedAgentID != second.ID {
		t.Errorf("zone should be stamped with the second agent, got %v", z.AssignedAgentID)
	}
}

func TestCreate_ScheduledDisplacesActiveHolder(t *testing.T) {
	e := setup(t)
	first := e.fx.CreateAgent(e.ctx, "Ana", "ana@example.com")
	second := e.fx.CreateAgent(e.ctx, "Ben", "ben@example.com")
	zone := e.fx.CreateZone(e.ctx, "North", e.admin, -73.99, 40.73)

	if _, err := e.svc.Create(e.ctx, assignments.CreateInput{AgentID: &first.ID, ZoneID: zone.ID, AssignedBy: e.admin}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	res, err := e.svc.Create(e.ctx, assignments.CreateInput{
		AgentID:       &second.ID,
		ZoneID:        zone.ID,
		EffectiveFrom: e.clock.Now().Add(24 * time.Hour),
		AssignedBy:    e.admin,
	})
	if err != nil {
		t.Fatalf("scheduled Create failed: %v", err)
	}
	if !res.Scheduled {
		t.Fatalf("expected a scheduled result, got %+v", res)
	}

	if n := e.openActiveOnZone(t, zone.ID); n != 0 {
		t.Errorf("expected the first binding closed, got %d open", n)
	}
	z := e.fx.GetZone(e.ctx, zone.ID)
	if z.Status != models.ZoneScheduled {
		t.Errorf("zone status: got %q, want scheduled", z.Status)
	}
	if z.AssignedAgentID != nil || z.TeamID != nil {
		t.Errorf("zone still names a holder: agent=%v team=%v", z.AssignedAgentID, z.TeamID)
	}
	if u := e.fx.GetUser(e.ctx, first.ID); u.Status != models.StatusInactive || u.PrimaryZoneID != nil {
		t.Errorf("displaced agent: status=%q primary=%v", u.Status, u.PrimaryZoneID)
	}
}

func TestCreate_NewestBecomesPrimary(t *testing.T) {
	e := setup(t)
	agent := e.fx.CreateAgent(e.ctx, "Ana", "ana@example.com")
	z1 := e.fx.CreateZone(e.ctx, "North", e.admin, -73.99, 40.73)
	z2 := e.fx.CreateZone(e.ctx, "South", e.admin, -73.99, 40.70)

	if _, err := e.svc.Create(e.ctx, assignments.CreateInput{AgentID: &agent.ID, ZoneID: z1.ID, AssignedBy: e.admin}); err != nil {
		t.Fatalf("Create z1 failed: %v", err)
	}
	e.clock.Advance(time.Minute)
	if _, err := e.svc.Create(e.ctx, assignments.CreateInput{AgentID: &agent.ID, ZoneID: z2.ID, AssignedBy: e.admin}); err != nil {
		t.Fatalf("Create z2 failed: %v", err)
	}

	u := e.fx.GetUser(e.ctx, agent.ID)
	if u.PrimaryZoneID == nil || *u.PrimaryZoneID != z2.ID {
		t.Errorf("primary_zone_id: got %v, want %s", u.PrimaryZoneID, z2.ID.Hex())
	}
	if !sameIDs(u.ZoneIDs, []primitive.ObjectID{z1.ID, z2.ID}) {
		t.Errorf("zone_ids: got %v", u.ZoneIDs)
	}
}

func TestCreate_Errors(t *testing.T) {
	e := setup(t)
	agent := e.fx.CreateAgent(e.ctx, "Ana", "ana@example.com")
	team := e.fx.CreateTeam(e.ctx, "Blue", e.admin)
	zone := e.fx.CreateZone(e.ctx, "North", e.admin, -73.99, 40.73)
	missing := primitive.NewObjectID()

	tests := []struct {
		name string
		in   assignments.CreateInput
		code apperr.Code
	}{
		{"neither target", assignments.CreateInput{ZoneID: zone.ID}, apperr.CodeValidation},
		{"both targets", assignments.CreateInput{AgentID: &agent.ID, TeamID: &team.ID, ZoneID: zone.ID}, apperr.CodeValidation},
		{"no zone", assignments.CreateInput{AgentID: &agent.ID}, apperr.CodeValidation},
		{"missing zone", assignments.CreateInput{AgentID: &agent.ID, ZoneID: missing}, apperr.CodeNotFound},
		{"missing agent", assignments.CreateInput{AgentID: &missing, ZoneID: zone.ID}, apperr.CodeNotFound},
		{"admin is not an agent", assignments.CreateInput{AgentID: ptr(e.admin), ZoneID: zone.ID}, apperr.CodeNotFound},
		{"missing team", assignments.CreateInput{TeamID: &missing, ZoneID: zone.ID}, apperr.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.AssignedBy = e.admin
			_, err := e.svc.Create(e.ctx, tt.in)
			if got := apperr.CodeOf(err); got != tt.code {
				t.Errorf("code: got %s (%v), want %s", got, err, tt.code)
			}
		})
	}

	if n := e.count(t, "agent_zone_assignments", bson.M{}); n != 0 {
		t.Errorf("failed creates must not write bindings, got %d", n)
	}
}

func TestCreate_ConcurrentSameZone(t *testing.T) {
	e := setup(t)
	zone := e.fx.CreateZone(e.ctx, "North", e.admin, -73.99, 40.73)

	const n = 6
	agents := make([]primitive.ObjectID, n)
	for i := range agents {
		agents[i] = e.fx.CreateAgent(e.ctx, "Agent", primitive.NewObjectID().Hex()+"@example.com").ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(agentID primitive.ObjectID) {
			defer wg.Done()
			_, err := e.svc.Create(e.ctx, assignments.CreateInput{AgentID: &agentID, ZoneID: zone.ID, AssignedBy: e.admin})
			if err != nil {
				t.Logf("concurrent create: %v", err)
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}(agents[i])
	}
	wg.Wait()

	if succeeded == 0 {
		t.Fatal("expected at least one create to succeed")
	}
	if got := e.openActiveOnZone(t, zone.ID); got != 1 {
		t.Errorf("expected exactly one open active binding after racing creates, got %d", got)
	}
}
