package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeValidationError unwraps an *ErrValidation into the field-level
// response shape; returns false when err is not a validation error.
func writeValidationError(w http.ResponseWriter, err error) bool {
	ve, ok := services.AsValidation(err)
	if !ok {
		return false
	}
	writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(ve.Fields))
	return true
}

func contextWithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
