package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-enocean/internal/bridges/enocean"
)

// Error is the body of every non-2xx response. Codes share the vocabulary
// of MQTT request responses where one exists.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

const (
	ErrCodeInvalidRequest   = enocean.ErrCodeInvalidRequest
	ErrCodeNotFound         = enocean.ErrCodeNotFound
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeUnavailable      = "UNAVAILABLE"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(v)
}

// writeError replies with an Error tagged with the request's X-Request-ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, Error{
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(r.Context()),
	})
}
