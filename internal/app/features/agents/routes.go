// internal/app/features/agents/routes.go
package agents

import (
	"github.com/go-chi/chi/v5"
	"github.com/knockwise/knockwise/internal/app/system/auth"
	"github.com/knockwise/knockwise/internal/domain/models"
)

// Routes mounts the agent endpoints. Status and notifications are open to
// the agent itself; sync is admin only.
func Routes(h *Handler, v *auth.Verifier) chi.Router {
	r := chi.NewRouter()
	r.Use(v.Middleware)

	r.Get("/{id}/status", h.ServeStatus)
	r.Get("/{id}/notifications", h.ServeNotifications)
	r.With(auth.RequireRole(h.Log, models.RoleSuperAdmin, models.RoleSubAdmin)).
		Post("/{id}/sync", h.HandleSync)

	return r
}
