// internal/app/features/teams/routes.go
package teams

import (
	"github.com/go-chi/chi/v5"
	"github.com/knockwise/knockwise/internal/app/system/auth"
	"github.com/knockwise/knockwise/internal/domain/models"
)

func Routes(h *Handler, v *auth.Verifier) chi.Router {
	r := chi.NewRouter()
	r.Use(v.Middleware)
	r.Use(auth.RequireRole(h.Log, models.RoleSuperAdmin, models.RoleSubAdmin))

	r.Get("/{id}/status", h.ServeStatus)
	return r
}
