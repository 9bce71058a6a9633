// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/knockwise/knockwise/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Core collections this app uses
	ensure("users", usersSchema())
	ensure("teams", teamsSchema())
	ensure("zones", zonesSchema())

	// Assignment collections. Both enforce the agent/team exclusivity rule
	// server-side as well as in the models' Validate().
	ensure("agent_zone_assignments", agentZoneAssignmentsSchema())
	ensure("scheduled_assignments", scheduledAssignmentsSchema())

	// These don't strictly need validators; we still ensure the collections exist.
	ensure("notifications", nil)
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func enum(values ...string) bson.A {
	out := bson.A{}
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

// exactlyOneTarget requires agent_id xor team_id.
func exactlyOneTarget() bson.A {
	return bson.A{
		bson.M{"required": bson.A{"agent_id"}, "not": bson.M{"required": bson.A{"team_id"}}},
		bson.M{"required": bson.A{"team_id"}, "not": bson.M{"required": bson.A{"agent_id"}}},
	}
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "email", "role", "status"},
			"properties": bson.M{
				"name":            bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci":         bson.M{"bsonType": "string"},
				"email":           bson.M{"bsonType": "string", "minLength": 3},
				"role":            bson.M{"enum": enum(models.RoleSuperAdmin, models.RoleSubAdmin, models.RoleAgent)},
				"status":          bson.M{"enum": enum(models.StatusActive, models.StatusInactive)},
				"primary_team_id": bson.M{"bsonType": bson.A{"objectId", "null"}},
				"primary_zone_id": bson.M{"bsonType": bson.A{"objectId", "null"}},
				"team_ids":        bson.M{"bsonType": bson.A{"array", "null"}, "items": bson.M{"bsonType": "objectId"}},
				"zone_ids":        bson.M{"bsonType": bson.A{"array", "null"}, "items": bson.M{"bsonType": "objectId"}},
			},
		},
	}
}

func teamsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "status", "created_by"},
			"properties": bson.M{
				"name":       bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci":    bson.M{"bsonType": "string", "minLength": 1},
				"status":     bson.M{"enum": enum(models.StatusActive, models.StatusInactive)},
				"created_by": bson.M{"bsonType": "objectId"},
				"leader_id":  bson.M{"bsonType": bson.A{"objectId", "null"}},
				"agent_ids":  bson.M{"bsonType": bson.A{"array", "null"}, "items": bson.M{"bsonType": "objectId"}},
			},
		},
	}
}

func zonesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "boundary", "status", "created_by"},
			"properties": bson.M{
				"name":    bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci": bson.M{"bsonType": "string", "minLength": 1},
				"boundary": bson.M{
					"bsonType": "object",
					"required": bson.A{"type", "coordinates"},
					"properties": bson.M{
						"type":        bson.M{"enum": bson.A{"Polygon"}},
						"coordinates": bson.M{"bsonType": "array", "minItems": 1},
					},
				},
				"status": bson.M{"enum": enum(models.ZoneDraft, models.ZoneActive, models.ZoneInactive,
					models.ZoneScheduled, models.ZoneCompleted)},
				"assigned_agent_id": bson.M{"bsonType": bson.A{"objectId", "null"}},
				"team_id":           bson.M{"bsonType": bson.A{"objectId", "null"}},
				"created_by":        bson.M{"bsonType": "objectId"},
			},
		},
	}
}

func agentZoneAssignmentsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"zone_id", "effective_from", "status", "assigned_by"},
			"oneOf":    exactlyOneTarget(),
			"properties": bson.M{
				"agent_id":                bson.M{"bsonType": "objectId"},
				"team_id":                 bson.M{"bsonType": "objectId"},
				"zone_id":                 bson.M{"bsonType": "objectId"},
				"effective_from":          bson.M{"bsonType": "date"},
				"effective_to":            bson.M{"bsonType": bson.A{"date", "null"}},
				"status":                  bson.M{"enum": enum(models.AssignmentActive, models.AssignmentInactive, models.AssignmentCompleted, models.AssignmentCancelled)},
				"assigned_by":             bson.M{"bsonType": "objectId"},
				"scheduled_assignment_id": bson.M{"bsonType": "objectId"},
			},
		},
	}
}

func scheduledAssignmentsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"zone_id", "scheduled_date", "effective_from", "status", "assigned_by"},
			"oneOf":    exactlyOneTarget(),
			"properties": bson.M{
				"agent_id":          bson.M{"bsonType": "objectId"},
				"team_id":           bson.M{"bsonType": "objectId"},
				"zone_id":           bson.M{"bsonType": "objectId"},
				"scheduled_date":    bson.M{"bsonType": "date"},
				"effective_from":    bson.M{"bsonType": "date"},
				"status":            bson.M{"enum": enum(models.ScheduledPending, models.ScheduledActivated, models.ScheduledCancelled)},
				"assigned_by":       bson.M{"bsonType": "objectId"},
				"notification_sent": bson.M{"bsonType": "bool"},
			},
		},
	}
}
