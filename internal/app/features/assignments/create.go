package assignments

import (
	"net/http"
	"time"

	assignsvc "github.com/knockwise/knockwise/internal/app/assignments"
	"github.com/knockwise/knockwise/internal/app/system/inputval"
	"github.com/knockwise/knockwise/internal/app/system/respond"
	"github.com/knockwise/knockwise/internal/app/system/timeouts"
)

type createRequest struct {
	AgentID       string     `json:"agent_id" validate:"required_without=TeamID,excluded_with=TeamID,objectid"`
	TeamID        string     `json:"team_id" validate:"required_without=AgentID,objectid"`
	ZoneID        string     `json:"zone_id" validate:"required,objectid"`
	EffectiveFrom *time.Time `json:"effective_from"`
}

// HandleCreate serves POST /assignments.
//
// A missing or past effective_from binds at once (201, scheduled=false); a
// future one creates a pending scheduled assignment (201, scheduled=true).
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	var req createRequest
	if err := inputval.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	in := assignsvc.CreateInput{AssignedBy: actor}
	if in.AgentID, err = inputval.OptionalObjectID(req.AgentID, "agent_id"); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if in.TeamID, err = inputval.OptionalObjectID(req.TeamID, "team_id"); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if in.ZoneID, err = inputval.ObjectID(req.ZoneID, "zone_id"); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if req.EffectiveFrom != nil {
		in.EffectiveFrom = req.EffectiveFrom.UTC()
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "assignments.create")
	defer cancel()

	res, err := h.Svc.Create(ctx, in)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.Created(w, res)
}
