// Package httputil centralizes JSON response and error rendering so every
// handler emits the same envelope.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	dErrors "coursegate/pkg/domain-errors"
)

// WriteJSON renders v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope.
// Internal errors omit the description so nothing unexpected leaks; every
// other code includes the caller-safe message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)

	body := map[string]string{"error": string(code)}
	if msg := dErrors.MessageOf(err); msg != "" {
		body["error_description"] = msg
	}

	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// WriteRateLimited renders a 429 with a Retry-After hint in seconds.
func WriteRateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, slow down"))
}
