// Package assignments owns every write that binds agents and teams to zones,
// and keeps the derived caches on users, teams and zones in step with those
// bindings.
//
// Assignment records (agent_zone_assignments, scheduled_assignments) are the
// source of truth. users.status, users.zone_ids, users.primary_zone_id and
// teams.status are caches recomputed after every mutation. When the server
// supports transactions the mutation and its recompute commit together;
// otherwise cache failures are logged and repaired later by Reconcile.
package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	notificationstore "github.com/knockwise/knockwise/internal/app/store/notifications"
	scheduledassignstore "github.com/knockwise/knockwise/internal/app/store/scheduledassign"
	teamstore "github.com/knockwise/knockwise/internal/app/store/teams"
	userstore "github.com/knockwise/knockwise/internal/app/store/users"
	zoneassignstore "github.com/knockwise/knockwise/internal/app/store/zoneassign"
	zonestore "github.com/knockwise/knockwise/internal/app/store/zones"
	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/app/system/auditlog"
	"github.com/knockwise/knockwise/internal/app/system/metrics"
	"github.com/knockwise/knockwise/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Service runs the assignment protocols against one database.
type Service struct {
	client *mongo.Client
	log    *zap.Logger

	users     *userstore.Store
	teams     *teamstore.Store
	zones     *zonestore.Store
	assigns   *zoneassignstore.Store
	scheduled *scheduledassignstore.Store
	notes     *notificationstore.Store

	audit   *auditlog.Logger
	metrics *metrics.AssignmentMetrics

	now func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithAudit records assignment events through a.
func WithAudit(a *auditlog.Logger) Option {
	return func(s *Service) { s.audit = a }
}

// WithMetrics counts creations and activations on m.
func WithMetrics(m *metrics.AssignmentMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds a Service over db. Transactions are started on db.Client().
func New(db *mongo.Database, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		client:    db.Client(),
		log:       log,
		users:     userstore.New(db),
		teams:     teamstore.New(db),
		zones:     zonestore.New(db),
		assigns:   zoneassignstore.New(db),
		scheduled: scheduledassignstore.New(db),
		notes:     notificationstore.New(db),
		metrics:   metrics.NewAssignmentMetrics(nil),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// settle applies the cache failure policy to err. Inside a transaction a
// failed recompute aborts the whole mutation. Without one the binding is
// already written, so the failure is logged and left for Reconcile. A
// document that no longer exists has no cache to repair and is skipped.
func (s *Service) settle(mode txn.Mode, what string, err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) || apperr.Is(err, apperr.CodeNotFound) {
		s.log.Debug(what+" skipped; document gone", append(fields, zap.Error(err))...)
		return nil
	}
	if mode == txn.Transactional {
		return fmt.Errorf("%s: %w", what, err)
	}
	s.log.Warn(what+" failed; derived state left stale",
		append(fields, zap.String("mode", mode.String()), zap.Error(err))...)
	return nil
}

// teamMembers returns the agents of a team, whether the membership is
// recorded on the team (agent_ids) or on the user (team_ids).
func (s *Service) teamMembers(ctx context.Context, teamID primitive.ObjectID) ([]primitive.ObjectID, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	byUser, err := s.users.ListAgentIDsByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return union(team.AgentIDs, byUser), nil
}

// agentTeams returns every team the agent belongs to, from either side of
// the membership.
func (s *Service) agentTeams(ctx context.Context, agentID primitive.ObjectID, userTeamIDs []primitive.ObjectID) ([]primitive.ObjectID, error) {
	byTeam, err := s.teams.ListIDsByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return union(userTeamIDs, byTeam), nil
}

// union concatenates lists, dropping repeats and keeping first-seen order.
func union(lists ...[]primitive.ObjectID) []primitive.ObjectID {
	seen := map[primitive.ObjectID]bool{}
	out := []primitive.ObjectID{}
	for _, l := range lists {
		for _, id := range l {
			if id.IsZero() || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
