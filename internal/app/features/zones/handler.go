// internal/app/features/zones/handler.go
package zones

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	zonestore "github.com/knockwise/knockwise/internal/app/store/zones"
	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/app/system/inputval"
	"github.com/knockwise/knockwise/internal/app/system/paging"
	"github.com/knockwise/knockwise/internal/app/system/respond"
	"github.com/knockwise/knockwise/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves zone lookups. Zone CRUD lives outside this service.
type Handler struct {
	Log *zap.Logger

	zones *zonestore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{Log: logger, zones: zonestore.New(db)}
}

type nearQuery struct {
	Lng   float64 `json:"lng" validate:"gte=-180,lte=180"`
	Lat   float64 `json:"lat" validate:"gte=-90,lte=90"`
	Max   float64 `json:"max" validate:"gte=0"`
	Limit int     `json:"limit"`
}

// parseNear reads lng/lat (required) and max (meters, optional).
func parseNear(r *http.Request) (nearQuery, error) {
	q := r.URL.Query()
	details := map[string]string{}
	num := func(key string, required bool) float64 {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			if required {
				details[key] = "is required"
			}
			return 0
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			details[key] = "must be a number"
		}
		return f
	}

	nq := nearQuery{
		Lng:   num("lng", true),
		Lat:   num("lat", true),
		Max:   num("max", false),
		Limit: paging.ParseLimit(q.Get("limit")),
	}
	if len(details) > 0 {
		return nq, apperr.Validation("invalid query").WithDetails(details)
	}
	return nq, inputval.Struct(nq)
}

// ServeNear serves GET /zones/near?lng=&lat=&max=&limit=, nearest first.
func (h *Handler) ServeNear(w http.ResponseWriter, r *http.Request) {
	nq, err := parseNear(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "zones.near")
	defer cancel()

	zones, err := h.zones.Near(ctx, nq.Lng, nq.Lat, nq.Max, int64(nq.Limit))
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, zones)
}

// ServeZone serves GET /zones/{id}.
func (h *Handler) ServeZone(w http.ResponseWriter, r *http.Request) {
	id, err := inputval.ObjectID(chi.URLParam(r, "id"), "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "zones.get")
	defer cancel()

	z, err := h.zones.GetByID(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, apperr.FromMongo(err, "zone"))
		return
	}
	respond.OK(w, z)
}
