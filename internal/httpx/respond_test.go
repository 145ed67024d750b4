package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"unauthorized", Unauthorized("Missing bearer token"), http.StatusUnauthorized, "Missing bearer token"},
		{"forbidden", PermissionDenied(), http.StatusForbidden, "Forbidden"},
		{"not found", NotFound("Session not found"), http.StatusNotFound, "Session not found"},
		{"conflict", Conflict("Transition not allowed"), http.StatusConflict, "Transition not allowed"},
		{"invalid input", InvalidInput("date must be YYYY-MM-DD"), http.StatusBadRequest, "date must be YYYY-MM-DD"},
		{"storage", StorageUnavailable(errors.New("connection refused")), http.StatusServiceUnavailable, "Storage unavailable"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, c.err)

			if rec.Code != c.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, c.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response body is not JSON: %v", err)
			}
			if body["error"] != c.wantBody {
				t.Errorf("error message = %q, want %q", body["error"], c.wantBody)
			}
		})
	}
}

func TestWriteErrorDoesNotLeakWrappedCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, StorageUnavailable(errors.New("pq: password authentication failed")))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not JSON: %v", err)
	}
	if body["error"] != "Storage unavailable" {
		t.Errorf("wrapped cause leaked into response: %q", body["error"])
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"message": "Created"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestAsErrorFindsWrapped(t *testing.T) {
	inner := NotFound("Topic not found")
	wrapped := fmt.Errorf("reconcile: %w", inner)

	e, ok := AsError(wrapped)
	if !ok {
		t.Fatal("expected to find a kinded error in the chain")
	}
	if e.Kind != KindNotFound {
		t.Errorf("kind = %v, want KindNotFound", e.Kind)
	}

	if _, ok := AsError(errors.New("plain")); ok {
		t.Error("plain error should not classify")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := StorageUnavailable(cause)

	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
}
