package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tutorly/tutorly-backend/internal/middleware"
	"github.com/tutorly/tutorly-backend/internal/policy"
)

// SetupRoutes mounts the account endpoints. Signup/login/refresh and email
// verification are public; profiles require a verified identity; tutor
// review is admin-only.
func SetupRoutes(h *Handler, verifier middleware.TokenVerifier) http.Handler {
	r := chi.NewRouter()

	r.Post("/signup/student", h.SignupStudent)
	r.Post("/signup/tutor", h.SignupTutor)
	r.Post("/login/student", h.loginFor(policy.RoleStudent))
	r.Post("/login/tutor", h.loginFor(policy.RoleTutor))
	r.Post("/login/admin", h.loginFor(policy.RoleAdmin))
	r.Post("/login/refresh", h.Refresh)
	r.Post("/verify-email", h.VerifyEmail)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(verifier))
		r.Get("/me", h.Me)
		r.Get("/users/{user_id}", h.GetProfile)
		r.Get("/tutors", h.ListTutors)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(policy.RoleAdmin))
			r.Get("/admin/tutors/pending", h.ListPendingTutors)
			r.Patch("/admin/tutors/{tutor_id}/status", h.SetTutorStatus)
		})
	})

	return r
}
