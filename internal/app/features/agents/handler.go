// internal/app/features/agents/handler.go
package agents

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	assignsvc "github.com/knockwise/knockwise/internal/app/assignments"
	notificationstore "github.com/knockwise/knockwise/internal/app/store/notifications"
	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/app/system/auth"
	"github.com/knockwise/knockwise/internal/app/system/inputval"
	"github.com/knockwise/knockwise/internal/app/system/paging"
	"github.com/knockwise/knockwise/internal/app/system/respond"
	"github.com/knockwise/knockwise/internal/app/system/timeouts"
	"github.com/knockwise/knockwise/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the per-agent read endpoints.
type Handler struct {
	Svc *assignsvc.Service
	Log *zap.Logger

	notes *notificationstore.Store
}

func NewHandler(db *mongo.Database, svc *assignsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger, notes: notificationstore.New(db)}
}

// agentParam parses {id} and checks the caller may see that agent: admins
// see everyone, agents only themselves.
func agentParam(r *http.Request) (primitive.ObjectID, error) {
	id, err := inputval.ObjectID(chi.URLParam(r, "id"), "id")
	if err != nil {
		return primitive.NilObjectID, err
	}
	u, ok := auth.CurrentUser(r)
	if !ok {
		return primitive.NilObjectID, apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	if u.Role == models.RoleAgent && u.ID != id.Hex() {
		return primitive.NilObjectID, apperr.New(apperr.CodeForbidden, "agents may only view themselves")
	}
	return id, nil
}

// ServeStatus serves GET /agents/{id}/status: the stored status next to a
// fresh derivation, plus the cached zone ids.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := agentParam(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "agents.status")
	defer cancel()

	view, err := h.Svc.AgentStatus(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, view)
}

// HandleSync serves POST /agents/{id}/sync, rebuilding the agent's zone ids
// and status. Admin only.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	id, err := inputval.ObjectID(chi.URLParam(r, "id"), "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "agents.sync")
	defer cancel()

	if _, err := h.Svc.SyncAgentZoneIDs(ctx, id); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if _, err := h.Svc.RefreshAgentStatus(ctx, id); err != nil {
		respond.Error(w, h.Log, apperr.FromMongo(err, "agent"))
		return
	}
	view, err := h.Svc.AgentStatus(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, view)
}

// ServeNotifications serves GET /agents/{id}/notifications?limit=, newest first.
func (h *Handler) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := agentParam(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "agents.notifications")
	defer cancel()

	notes, err := h.notes.ListByUser(ctx, id, int64(paging.ParseLimit(r.URL.Query().Get("limit"))))
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, notes)
}
