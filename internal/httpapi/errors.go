package httpapi

import (
	"encoding/json"
	"net/http"

	"llamad/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// busyError signals admission timeout/overflow for 429 mapping.
type busyError struct{}

func (busyError) Error() string   { return "too busy: generation slot not available" }
func (busyError) StatusCode() int { return http.StatusTooManyRequests }

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
