package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/emerald-hws/internal/emerald"
	"github.com/nerrad567/emerald-hws/internal/heatpump"
	"github.com/nerrad567/emerald-hws/internal/hws"
	"github.com/nerrad567/emerald-hws/internal/session"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnavailable = "unavailable"
	ErrCodeUpstream    = "upstream_error"
	ErrCodeTimeout     = "timeout"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeFacadeError maps an error from the Controller onto a response.
func writeFacadeError(w http.ResponseWriter, err error) {
	var decodeErr *heatpump.DecodeError
	switch {
	case errors.Is(err, heatpump.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.As(err, &decodeErr):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "consumption data is malformed")
	case errors.Is(err, hws.ErrNotConnected):
		writeError(w, http.StatusConflict, ErrCodeConflict, "client is not connected")
	case errors.Is(err, hws.ErrClosed), errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "client is shutting down")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "request timed out")
	case errors.Is(err, emerald.ErrAuthentication),
		errors.Is(err, emerald.ErrInventory),
		errors.Is(err, emerald.ErrEmptyInventory),
		errors.Is(err, session.ErrPublishFailed),
		errors.Is(err, session.ErrSubscriptionFailed),
		errors.Is(err, session.ErrNotConnected):
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		writeInternalError(w, "internal server error")
	}
}
