package assignments

import (
	"net/http"

	zoneassignstore "github.com/knockwise/knockwise/internal/app/store/zoneassign"
	"github.com/knockwise/knockwise/internal/app/system/inputval"
	"github.com/knockwise/knockwise/internal/app/system/paging"
	"github.com/knockwise/knockwise/internal/app/system/respond"
	"github.com/knockwise/knockwise/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// targetFilters are the query filters shared by both list endpoints.
type targetFilters struct {
	AgentID string `json:"agent_id" validate:"objectid"`
	TeamID  string `json:"team_id" validate:"objectid"`
	ZoneID  string `json:"zone_id" validate:"objectid"`
}

func parseTargetFilters(r *http.Request) targetFilters {
	q := r.URL.Query()
	return targetFilters{
		AgentID: q.Get("agent_id"),
		TeamID:  q.Get("team_id"),
		ZoneID:  q.Get("zone_id"),
	}
}

// ids converts validated filters; empty ones stay nil.
func (f targetFilters) ids() (agentID, teamID, zoneID *primitive.ObjectID) {
	agentID, _ = inputval.OptionalObjectID(f.AgentID, "agent_id")
	teamID, _ = inputval.OptionalObjectID(f.TeamID, "team_id")
	zoneID, _ = inputval.OptionalObjectID(f.ZoneID, "zone_id")
	return agentID, teamID, zoneID
}

type assignmentListQuery struct {
	targetFilters
	Status string `json:"status" validate:"omitempty,oneof=active inactive completed cancelled"`
}

// ServeList serves GET /assignments?agent_id=&team_id=&zone_id=&status=&after=&limit=
// as a keyset page ordered by status.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	query := assignmentListQuery{targetFilters: parseTargetFilters(r), Status: r.URL.Query().Get("status")}
	if err := inputval.Struct(query); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	f := zoneassignstore.Filter{Status: query.Status}
	f.AgentID, f.TeamID, f.ZoneID = query.ids()

	ks := paging.ConfigureKeyset(r.URL.Query().Get("after"), paging.ParseLimit(r.URL.Query().Get("limit")))

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "assignments.list")
	defer cancel()

	page, err := h.assigns.List(ctx, f, ks)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, page)
}
