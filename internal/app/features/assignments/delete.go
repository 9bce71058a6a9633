package assignments

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/knockwise/knockwise/internal/app/system/inputval"
	"github.com/knockwise/knockwise/internal/app/system/respond"
	"github.com/knockwise/knockwise/internal/app/system/timeouts"
)

// HandleDelete serves DELETE /assignments/{id} and returns the removed record.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "assignments.delete")
	defer cancel()

	removed, err := h.Svc.Remove(ctx, &actor, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, removed)
}
