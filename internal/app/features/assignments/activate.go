package assignments

import (
	"net/http"
	"time"

	"github.com/knockwise/knockwise/internal/app/system/respond"
	"github.com/knockwise/knockwise/internal/app/system/timeouts"
)

// HandleActivate serves POST /assignments/activate: run one activation
// sweep now and return its report. Safe to call while the scheduled sweep
// runs; a record is never promoted twice.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "assignments.activate")
	defer cancel()

	report, err := h.Svc.ActivatePending(ctx, time.Time{})
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, report)
}
