// Package api exposes the HTTP surface: the public Twilio webhook and the
// authenticated per-site admin operations.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/booking"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/tenant"
)

// Error codes returned in structured error payloads.
const (
	CodeBadInput     = "bad_input"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeServerError  = "server_error"
)

type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorPayload{Error: msg, Code: code})
}

// writeDomainError maps a domain error to its HTTP status class.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "booking not found")
	case errors.Is(err, tenant.ErrSiteNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "site not found")
	default:
		writeError(w, http.StatusInternalServerError, CodeServerError, "internal error")
	}
}
