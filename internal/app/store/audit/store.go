// Package audit persists assignment audit events.
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAdmin  = "admin"  // caused by an authenticated admin request
	CategorySystem = "system" // caused by a background job
)

const (
	EventAssignmentCreated   = "assignment_created"
	EventAssignmentScheduled = "assignment_scheduled"
	EventAssignmentRemoved   = "assignment_removed"
	EventScheduledCancelled  = "scheduled_assignment_cancelled"
	EventScheduledActivated  = "scheduled_assignment_activated"
	EventActivationFailed    = "scheduled_assignment_activation_failed"
	EventReconciled          = "derived_state_reconciled"
)

type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	ActorID *primitive.ObjectID `bson:"actor_id,omitempty"` // nil for system events
	AgentID *primitive.ObjectID `bson:"agent_id,omitempty"`
	TeamID  *primitive.ObjectID `bson:"team_id,omitempty"`
	ZoneID  *primitive.ObjectID `bson:"zone_id,omitempty"`

	// The AgentZoneAssignment or ScheduledAssignment the event is about.
	RecordID *primitive.ObjectID `bson:"record_id,omitempty"`

	Success       bool              `bson:"success"`
	FailureReason string            `bson:"failure_reason,omitempty"`
	Details       map[string]string `bson:"details,omitempty"`
}

type QueryFilter struct {
	ZoneID    *primitive.ObjectID
	AgentID   *primitive.ObjectID
	Category  string
	EventType string
	Since     *time.Time
	Limit     int64
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	query := bson.M{}
	if filter.ZoneID != nil {
		query["zone_id"] = *filter.ZoneID
	}
	if filter.AgentID != nil {
		query["agent_id"] = *filter.AgentID
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}
	if filter.Since != nil {
		query["timestamp"] = bson.M{"$gte": *filter.Since}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	events := []Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
