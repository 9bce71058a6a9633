// internal/app/features/assignments/routes.go
package assignments

import (
	"github.com/go-chi/chi/v5"
	"github.com/knockwise/knockwise/internal/app/system/auth"
	"github.com/knockwise/knockwise/internal/domain/models"
)

// Routes returns the router mounted at /assignments. Every endpoint needs a
// bearer token with an admin role.
func Routes(h *Handler, v *auth.Verifier) chi.Router {
	r := chi.NewRouter()
	r.Use(v.Middleware)
	r.Use(auth.RequireRole(h.Log, models.RoleSuperAdmin, models.RoleSubAdmin))

	r.Post("/", h.HandleCreate)
	r.Get("/", h.ServeList)

	r.Post("/activate", h.HandleActivate)

	r.Get("/scheduled", h.ServeScheduledList)
	r.Get("/scheduled/{id}", h.ServeScheduled)
	r.Delete("/scheduled/{id}", h.HandleCancelScheduled)

	r.Get("/{id}", h.ServeAssignment)
	r.Delete("/{id}", h.HandleDelete)
	return r
}
