package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tutorly/tutorly-backend/internal/middleware"
	"github.com/tutorly/tutorly-backend/internal/policy"
)

// SetupRoutes mounts the catalog endpoints. Reads are open to any verified
// caller; replace-all writes are tutor-only.
func SetupRoutes(h *Handler, verifier middleware.TokenVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.AuthMiddleware(verifier))

	r.Get("/{tutor_id}/subjects", h.GetSubjects)
	r.Get("/{tutor_id}/availability", h.GetAvailability)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(policy.RoleTutor))
		r.Put("/subjects", h.SetSubjects)
		r.Put("/topics", h.SetTopics)
		r.Put("/expertise", h.SetExpertise)
		r.Put("/affiliations", h.SetAffiliations)
		r.Put("/socials", h.SetSocials)
		r.Put("/availability", h.SetAvailability)
	})

	return r
}
