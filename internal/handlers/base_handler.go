package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/studymaterials/backend/internal/services"
	"go.uber.org/zap"
)

// BaseHandler provides common handler functionality
type BaseHandler struct {
	Logger *zap.Logger
}

// RespondJSON sends a JSON response
func (h *BaseHandler) RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// RespondError sends an error JSON response
func (h *BaseHandler) RespondError(w http.ResponseWriter, status int, message string) {
	h.RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondServiceError maps a service error onto an HTTP status.
// Unexpected errors are logged and hidden behind fallbackMessage.
func (h *BaseHandler) RespondServiceError(w http.ResponseWriter, err error, fallbackMessage string) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.RespondJSON(w, http.StatusBadRequest, ErrorResponse{Error: validationErr.Message, Field: validationErr.Field})
	case errors.Is(err, services.ErrAuthRequired):
		h.RespondError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, services.ErrInvalidCredentials):
		h.RespondError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, services.ErrNotFound):
		h.RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrAlreadyExists):
		h.RespondError(w, http.StatusConflict, "already exists")
	case errors.Is(err, services.ErrUnavailable):
		h.Logger.Warn(fallbackMessage, zap.Error(err))
		h.RespondError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		h.Logger.Error(fallbackMessage, zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, fallbackMessage)
	}
}

// MessageResponse is the body of responses that only confirm an action
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
