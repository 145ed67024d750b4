package scheduling

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tutorly/tutorly-backend/internal/middleware"
	"github.com/tutorly/tutorly-backend/internal/policy"
)

// SetupRoutes mounts the session endpoints. Everything here requires a
// verified identity; mutating routes additionally gate on role.
func SetupRoutes(h *Handler, verifier middleware.TokenVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.AuthMiddleware(verifier))

	r.Get("/", h.ListSessions)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(policy.RoleStudent))
		r.Post("/requests", h.RequestSession)
		r.Delete("/requests/{session_id}", h.DeleteRequest)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(policy.RoleTutor))
		r.Patch("/requests/status", h.UpdateStatus)
		r.Post("/requests/{session_id}/start", h.Start)
		r.Post("/requests/{session_id}/end", h.End)
	})

	return r
}
