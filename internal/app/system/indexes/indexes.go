// Package indexes reconciles the MongoDB indexes the assignment service
// depends on. EnsureAll is idempotent and runs at startup and from
// `knockwise ensure-indexes`.
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Index names the service relies on for error translation and tests.
const (
	OneActivePerZone      = "uniq_aza_zone_active"
	OnePromotionPerRecord = "uniq_aza_scheduled_assignment"
)

// EnsureAll reconciles every collection's index set. Problems are aggregated
// so one bad collection does not hide the others.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	sets := []struct {
		coll   string
		models []mongo.IndexModel
	}{
		{"users", usersIndexes()},
		{"teams", teamsIndexes()},
		{"zones", zonesIndexes()},
		{"agent_zone_assignments", agentZoneAssignmentIndexes()},
		{"scheduled_assignments", scheduledAssignmentIndexes()},
		{"notifications", notificationIndexes()},
		{"audit_events", auditIndexes()},
	}
	for _, s := range sets {
		if err := ensureIndexSet(ctx, db.Collection(s.coll), s.models); err != nil {
			problems = append(problems, s.coll+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type existingIndex struct {
	Name                    string `bson:"name"`
	Key                     bson.D `bson:"key"`
	Unique                  *bool  `bson:"unique,omitempty"`
	Sparse                  *bool  `bson:"sparse,omitempty"`
	PartialFilterExpression bson.D `bson:"partialFilterExpression,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolOf(b *bool) bool { return b != nil && *b }

func partialSig(v any) string {
	if v == nil {
		return ""
	}
	if d, ok := v.(bson.D); ok {
		if len(d) == 0 {
			return ""
		}
		return keySig(d)
	}
	return fmt.Sprintf("%v", v)
}

// sameOptions compares the options the service sets. Anything else is left
// to the server.
func sameOptions(m mongo.IndexModel, ex existingIndex) bool {
	var unique, sparse *bool
	var partial any
	if m.Options != nil {
		unique, sparse, partial = m.Options.Unique, m.Options.Sparse, m.Options.PartialFilterExpression
	}
	return boolOf(unique) == boolOf(ex.Unique) &&
		boolOf(sparse) == boolOf(ex.Sparse) &&
		partialSig(partial) == partialSig(ex.PartialFilterExpression)
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	return strings.Contains(err.Error(), "E11000")
}

// listIndexes maps key signature to the existing index.
func listIndexes(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	existing, err := listIndexes(ctx, coll)
	if err != nil {
		// NamespaceNotFound on a fresh database is fine; CreateOne creates it.
		existing = map[string]existingIndex{}
	}

	for _, m := range models {
		name := ""
		if m.Options != nil && m.Options.Name != nil {
			name = *m.Options.Name
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[sig]; ok {
			if ex.Name == name && sameOptions(m, ex) {
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", sig))
				continue
			}
			// Name or options drifted: drop and recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), ex.Name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", name),
				zap.String("keys", sig),
				zap.Error(err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func usersIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_users_email").SetUnique(true),
		},
		{
			// Reconcile scans agents; team fan-out looks agents up by team.
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_role_id"),
		},
		{
			Keys:    bson.D{{Key: "team_ids", Value: 1}},
			Options: options.Index().SetName("idx_users_team_ids"),
		},
	}
}

func teamsIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "agent_ids", Value: 1}},
			Options: options.Index().SetName("idx_teams_agent_ids"),
		},
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_teams_nameci_id"),
		},
	}
}

func zonesIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "boundary", Value: "2dsphere"}},
			Options: options.Index().SetName("geo_zones_boundary"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_zones_status_nameci"),
		},
	}
}

func agentZoneAssignmentIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			// At most one ACTIVE record per zone; a concurrent second create
			// fails with a duplicate key instead of leaving two open bindings.
			Keys: bson.D{{Key: "zone_id", Value: 1}},
			Options: options.Index().
				SetName(OneActivePerZone).
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "status", Value: "active"}}),
		},
		{
			// A scheduled record is promoted at most once.
			Keys: bson.D{{Key: "scheduled_assignment_id", Value: 1}},
			Options: options.Index().
				SetName(OnePromotionPerRecord).
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "scheduled_assignment_id", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
		{
			Keys:    bson.D{{Key: "agent_id", Value: 1}, {Key: "status", Value: 1}, {Key: "effective_to", Value: 1}},
			Options: options.Index().SetName("idx_aza_agent_status_to"),
		},
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "status", Value: 1}, {Key: "effective_to", Value: 1}},
			Options: options.Index().SetName("idx_aza_team_status_to"),
		},
		{
			Keys:    bson.D{{Key: "zone_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_aza_zone_status"),
		},
	}
}

func scheduledAssignmentIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			// Activator sweep: pending, due first.
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "scheduled_date", Value: 1}},
			Options: options.Index().SetName("idx_sa_status_date"),
		},
		{
			Keys:    bson.D{{Key: "agent_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_sa_agent_status"),
		},
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_sa_team_status"),
		},
	}
}

func notificationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_notifications_user_created"),
		},
	}
}

func auditIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_ts"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_type_ts"),
		},
		{
			Keys:    bson.D{{Key: "zone_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_zone_ts"),
		},
	}
}
