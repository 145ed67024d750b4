package scheduling

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tutorly/tutorly-backend/internal/httpx"
	"github.com/tutorly/tutorly-backend/internal/utils"
)

// Handler translates HTTP payloads into lifecycle-manager calls.
type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

func (h *Handler) RequestSession(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}

	var input RequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}

	session, err := h.manager.RequestSession(r.Context(), caller, input)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, session)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}

	var input struct {
		SessionID string `json:"session_id"`
		StatusID  Status `json:"status_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}
	if input.SessionID == "" {
		httpx.WriteError(w, httpx.InvalidInput("session_id is required"))
		return
	}

	if err := h.manager.UpdateSessionStatus(r.Context(), caller, input.SessionID, input.StatusID); err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Status updated"})
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}

	views, err := h.manager.ListSessionsForUser(r.Context(), caller)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}

	sessionID := chi.URLParam(r, "session_id")
	if err := h.manager.DeleteSessionRequest(r.Context(), caller, sessionID); err != nil {
		httpx.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}

	var input struct {
		TimeStarted string `json:"time_started"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}

	sessionID := chi.URLParam(r, "session_id")
	if err := h.manager.StartSession(r.Context(), caller, sessionID, input.TimeStarted); err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Session started"})
}

func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}

	var input struct {
		TimeEnded string `json:"time_ended"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}

	sessionID := chi.URLParam(r, "session_id")
	if err := h.manager.EndSession(r.Context(), caller, sessionID, input.TimeEnded); err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Session completed"})
}
