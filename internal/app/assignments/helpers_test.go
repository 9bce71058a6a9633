package assignments_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/knockwise/knockwise/internal/app/assignments"
	"github.com/knockwise/knockwise/internal/app/system/indexes"
	"github.com/knockwise/knockwise/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// clock is a settable time source shared with the service under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type env struct {
	db    *mongo.Database
	svc   *assignments.Service
	fx    *testutil.Fixtures
	clock *clock
	ctx   context.Context
	admin primitive.ObjectID
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	c := &clock{t: time.Now().UTC().Truncate(time.Millisecond)}
	fx := testutil.NewFixtures(t, db)
	admin := fx.CreateAdmin(ctx, "Admin", "admin@example.com")
	return &env{
		db:    db,
		svc:   assignments.New(db, nil, assignments.WithClock(c.Now)),
		fx:    fx,
		clock: c,
		ctx:   ctx,
		admin: admin.ID,
	}
}

func (e *env) count(t *testing.T, coll string, filter bson.M) int64 {
	t.Helper()
	n, err := e.db.Collection(coll).CountDocuments(e.ctx, filter)
	if err != nil {
		t.Fatalf("count %s failed: %v", coll, err)
	}
	return n
}

// openActiveOnZone counts bindings that are both ACTIVE and open on zoneID.
func (e *env) openActiveOnZone(t *testing.T, zoneID primitive.ObjectID) int64 {
	t.Helper()
	return e.count(t, "agent_zone_assignments", bson.M{"zone_id": zoneID, "status": "active", "effective_to": nil})
}

func ptr(id primitive.ObjectID) *primitive.ObjectID { return &id }

func sameIDs(got, want []primitive.ObjectID) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
