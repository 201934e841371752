package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tmarsden/edgeflow-core/internal/action"
	"github.com/tmarsden/edgeflow-core/internal/catalog"
	"github.com/tmarsden/edgeflow-core/internal/watch"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeQueueFull    = "queue_full"
	ErrCodeTimeout      = "timeout"
	ErrCodeDisabled     = "disabled"
	ErrCodeInternal     = "internal_error"
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

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps engine and watch errors to HTTP responses so
// handlers stay thin.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, action.ErrTemplateNotFound),
		errors.Is(err, action.ErrHostNotFound),
		errors.Is(err, action.ErrCommandNotFound),
		errors.Is(err, catalog.ErrHostNotFound),
		errors.Is(err, catalog.ErrCommandNotFound),
		errors.Is(err, watch.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, action.ErrTemplateExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, action.ErrQueueFull),
		errors.Is(err, action.ErrTemplateLimit):
		writeError(w, http.StatusTooManyRequests, ErrCodeQueueFull, err.Error())
	case errors.Is(err, action.ErrExecutionTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
	case errors.Is(err, action.ErrTemplateDisabled),
		errors.Is(err, action.ErrCommandDisabled):
		writeError(w, http.StatusConflict, ErrCodeDisabled, err.Error())
	case errors.Is(err, action.ErrInvalidAction),
		errors.Is(err, action.ErrInvalidTemplate),
		errors.Is(err, action.ErrMissingHost),
		errors.Is(err, catalog.ErrInvalidHost),
		errors.Is(err, watch.ErrInvalidConfig):
		writeBadRequest(w, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
