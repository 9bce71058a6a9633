// internal/app/features/zones/routes.go
package zones

import (
	"github.com/go-chi/chi/v5"
	"github.com/knockwise/knockwise/internal/app/system/auth"
)

// Routes mounts zone lookups for any authenticated caller.
func Routes(h *Handler, v *auth.Verifier) chi.Router {
	r := chi.NewRouter()
	r.Use(v.Middleware)

	r.Get("/near", h.ServeNear)
	r.Get("/{id}", h.ServeZone)
	return r
}
