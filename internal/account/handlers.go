package account

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tutorly/tutorly-backend/internal/httpx"
	"github.com/tutorly/tutorly-backend/internal/policy"
	"github.com/tutorly/tutorly-backend/internal/utils"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) SignupStudent(w http.ResponseWriter, r *http.Request) {
	var input StudentSignup
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}

	msg, err := h.service.SignupStudent(r.Context(), input)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *Handler) SignupTutor(w http.ResponseWriter, r *http.Request) {
	var input TutorSignup
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}

	msg, err := h.service.SignupTutor(r.Context(), input)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// loginFor builds the login handler for one role; student, tutor and admin
// logins differ only in the role they require.
func (h *Handler) loginFor(role policy.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
			return
		}

		resp, err := h.service.Login(r.Context(), role, input.Email, input.Password)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}

	resp, err := h.service.Refresh(r.Context(), input.RefreshToken)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}

	msg, err := h.service.VerifyEmail(r.Context(), input.Email)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": msg, "email": input.Email})
}

// Me returns the caller's own aggregated profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}

	profile, err := h.service.GetProfile(r.Context(), caller.UserID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, profile)
}

// GetProfile returns any user's aggregated profile by id.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, profile)
}

// ListTutors returns approved tutors for browsing.
func (h *Handler) ListTutors(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.ListTutors(r.Context(), ApprovalApproved)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"tutors": profiles})
}

// ListPendingTutors returns the admin review queue.
func (h *Handler) ListPendingTutors(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.ListTutors(r.Context(), ApprovalPending)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"tutors": profiles})
}

// SetTutorStatus approves or rejects a tutor profile.
func (h *Handler) SetTutorStatus(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Status ApprovalStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}

	tutorID := chi.URLParam(r, "tutor_id")
	if err := h.service.SetTutorStatus(r.Context(), tutorID, input.Status); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Status updated"})
}
