package assignments

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/app/system/inputval"
	"github.com/knockwise/knockwise/internal/app/system/respond"
	"github.com/knockwise/knockwise/internal/app/system/timeouts"
)

// ServeAssignment serves GET /assignments/{id}.
func (h *Handler) ServeAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := inputval.ObjectID(chi.URLParam(r, "id"), "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "assignments.get")
	defer cancel()

	a, err := h.assigns.GetByID(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, apperr.FromMongo(err, "assignment"))
		return
	}
	respond.OK(w, a)
}
