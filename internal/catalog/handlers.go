package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tutorly/tutorly-backend/internal/httpx"
	"github.com/tutorly/tutorly-backend/internal/utils"
)

type Handler struct {
	reconciler *Reconciler
	store      Store
}

func NewHandler(reconciler *Reconciler, store Store) *Handler {
	return &Handler{reconciler: reconciler, store: store}
}

func (h *Handler) SetSubjects(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}

	var input struct {
		Subjects []string `json:"subjects"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}

	report, err := h.reconciler.SetSubjects(r.Context(), caller, input.Subjects)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) SetTopics(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}

	var input struct {
		SubjectName string   `json:"subject_name"`
		Topics      []string `json:"topics"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}

	report, err := h.reconciler.SetTopics(r.Context(), caller, input.SubjectName, input.Topics)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, report)
}

// setList handles the three flat string collections, which differ only in
// which reconciler method they call.
func (h *Handler) setList(w http.ResponseWriter, r *http.Request, apply func([]string) error) {
	var input struct {
		Items []string `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}

	if err := apply(input.Items); err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Updated"})
}

func (h *Handler) SetExpertise(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}
	h.setList(w, r, func(items []string) error {
		return h.reconciler.SetExpertise(r.Context(), caller, items)
	})
}

func (h *Handler) SetAffiliations(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}
	h.setList(w, r, func(items []string) error {
		return h.reconciler.SetAffiliations(r.Context(), caller, items)
	})
}

func (h *Handler) SetSocials(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}
	h.setList(w, r, func(items []string) error {
		return h.reconciler.SetSocials(r.Context(), caller, items)
	})
}

func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.Unauthorized("Missing identity"))
		return
	}

	var input AvailabilityInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.WriteError(w, httpx.InvalidInput("Invalid request body"))
		return
	}

	if err := h.reconciler.SetAvailability(r.Context(), caller, input); err != nil {
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Updated"})
}

// GetSubjects lists a tutor's subjects with topics. Tutor id comes from the
// path so students can browse any tutor's catalog.
func (h *Handler) GetSubjects(w http.ResponseWriter, r *http.Request) {
	tutorID := chi.URLParam(r, "tutor_id")
	subjects, err := h.reconciler.GetSubjects(r.Context(), tutorID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	tutorID := chi.URLParam(r, "tutor_id")
	rows, err := h.store.ListAvailability(r.Context(), tutorID)
	if err != nil {
		httpx.WriteError(w, httpx.StorageUnavailable(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"availability": rows})
}
