package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	app_errors "fireflies/backend/internal/errors"
)

// Shared DTOs for API responses and helpers for writing them.

// ErrorResponse defines the standard JSON structure for error messages.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is returned by operations that have no resource to return.
type StatusResponse struct {
	Status string `json:"status"`
}

// UpdateTitleRequest is the DTO for the manual chat title update endpoint.
type UpdateTitleRequest struct {
	Title string `json:"title" validate:"required,min=1,max=100" example:"Resep nasi goreng"`
}

// StopResponse reports whether a generation was running when stop was requested.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// SubscriptionResponse is the caller's plan as known to the auth backend.
type SubscriptionResponse struct {
	Plan   string `json:"subscription_plan" example:"free"`
	Status string `json:"subscription_status" example:"active"`
	IsPro  bool   `json:"is_pro"`
}

// respondWithError maps business-layer errors to HTTP status codes and writes
// a standard JSON error body. Details of unexpected errors are only logged.
func respondWithError(w http.ResponseWriter, err error) {
	var statusCode int
	var message string

	switch {
	case errors.Is(err, app_errors.ErrAuthRequired):
		statusCode = http.StatusUnauthorized
		message = "Authentication is required."
	case errors.Is(err, app_errors.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "The requested resource was not found."
	case errors.Is(err, app_errors.ErrValidation):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, app_errors.ErrConflict):
		statusCode = http.StatusConflict
		message = "A generation is already running for this chat."
	case errors.Is(err, app_errors.ErrPermission):
		statusCode = http.StatusForbidden
		message = "You do not have permission to perform this action."
	case errors.Is(err, app_errors.ErrTransport):
		statusCode = http.StatusBadGateway
		message = "The inference server could not be reached."
	default:
		statusCode = http.StatusInternalServerError
		message = "An unexpected internal server error occurred."
	}

	slog.Warn("Responding with error", "status_code", statusCode, "client_message", message, "internal_error", err)

	respondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondWithJSON marshals payload and writes it with the given status code.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}
