// internal/app/features/assignments/handler.go
package assignments

import (
	"net/http"

	assignsvc "github.com/knockwise/knockwise/internal/app/assignments"
	scheduledassignstore "github.com/knockwise/knockwise/internal/app/store/scheduledassign"
	zoneassignstore "github.com/knockwise/knockwise/internal/app/store/zoneassign"
	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the assignment API. Writes go through the assignments
// service; reads go straight to the stores.
type Handler struct {
	DB  *mongo.Database
	Svc *assignsvc.Service
	Log *zap.Logger

	assigns   *zoneassignstore.Store
	scheduled *scheduledassignstore.Store
}

func NewHandler(db *mongo.Database, svc *assignsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{
		DB:        db,
		Svc:       svc,
		Log:       logger,
		assigns:   zoneassignstore.New(db),
		scheduled: scheduledassignstore.New(db),
	}
}

// actorID returns the caller's id as an ObjectID.
func actorID(r *http.Request) (primitive.ObjectID, error) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return primitive.NilObjectID, apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.CodeUnauthorized, "token subject is not a user id")
	}
	return oid, nil
}
