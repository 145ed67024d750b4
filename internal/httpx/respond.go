package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError maps a kinded error onto an HTTP status and writes the
// message as a JSON body. Errors without a kind become a 500 with a
// generic body so internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	if e, ok := AsError(err); ok {
		message = e.Message
		switch e.Kind {
		case KindUnauthorized:
			status = http.StatusUnauthorized
		case KindPermissionDenied:
			status = http.StatusForbidden
		case KindNotFound:
			status = http.StatusNotFound
		case KindConflict:
			status = http.StatusConflict
		case KindInvalidInput:
			status = http.StatusBadRequest
		case KindStorageUnavailable:
			status = http.StatusServiceUnavailable
		}
	}

	WriteJSON(w, status, map[string]string{"error": message})
}
