// internal/app/features/teams/handler.go
package teams

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	assignsvc "github.com/knockwise/knockwise/internal/app/assignments"
	"github.com/knockwise/knockwise/internal/app/system/inputval"
	"github.com/knockwise/knockwise/internal/app/system/respond"
	"github.com/knockwise/knockwise/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Svc *assignsvc.Service
	Log *zap.Logger
}

func NewHandler(svc *assignsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

// ServeStatus serves GET /teams/{id}/status.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := inputval.ObjectID(chi.URLParam(r, "id"), "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "teams.status")
	defer cancel()

	view, err := h.Svc.TeamStatus(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, view)
}
