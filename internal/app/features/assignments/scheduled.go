package assignments

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	scheduledassignstore "github.com/knockwise/knockwise/internal/app/store/scheduledassign"
	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/app/system/inputval"
	"github.com/knockwise/knockwise/internal/app/system/paging"
	"github.com/knockwise/knockwise/internal/app/system/respond"
	"github.com/knockwise/knockwise/internal/app/system/timeouts"
)

type scheduledListQuery struct {
	targetFilters
	Status string `json:"status" validate:"omitempty,oneof=pending activated cancelled"`
}

// ServeScheduledList serves GET /assignments/scheduled with the same filters
// as the main list.
func (h *Handler) ServeScheduledList(w http.ResponseWriter, r *http.Request) {
	query := scheduledListQuery{targetFilters: parseTargetFilters(r), Status: r.URL.Query().Get("status")}
	if err := inputval.Struct(query); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	f := scheduledassignstore.Filter{Status: query.Status}
	f.AgentID, f.TeamID, f.ZoneID = query.ids()

	ks := paging.ConfigureKeyset(r.URL.Query().Get("after"), paging.ParseLimit(r.URL.Query().Get("limit")))

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "assignments.scheduled.list")
	defer cancel()

	page, err := h.scheduled.List(ctx, f, ks)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, page)
}

// ServeScheduled serves GET /assignments/scheduled/{id}.
func (h *Handler) ServeScheduled(w http.ResponseWriter, r *http.Request) {
	id, err := inputval.ObjectID(chi.URLParam(r, "id"), "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "assignments.scheduled.get")
	defer cancel()

	sa, err := h.scheduled.GetByID(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, apperr.FromMongo(err, "scheduled assignment"))
		return
	}
	respond.OK(w, sa)
}

// HandleCancelScheduled serves DELETE /assignments/scheduled/{id}. Only
// pending records can be cancelled; anything else is a 409.
func (h *Handler) HandleCancelScheduled(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	id, err := inputval.ObjectID(chi.URLParam(r, "id"), "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "assignments.scheduled.cancel")
	defer cancel()

	sa, err := h.Svc.CancelScheduled(ctx, &actor, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, sa)
}
