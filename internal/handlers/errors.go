package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marcfranquesa/nyc-collisions/internal/aggregate"
	"github.com/marcfranquesa/nyc-collisions/internal/chart"
	"github.com/marcfranquesa/nyc-collisions/internal/dashboard"
	"github.com/marcfranquesa/nyc-collisions/internal/repository"
)

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrUnknownLayout), errors.Is(err, chart.ErrUnknownChart):
		return http.StatusNotFound
	case errors.Is(err, aggregate.ErrUnknownDimension),
		errors.Is(err, aggregate.ErrUnknownField),
		errors.Is(err, aggregate.ErrUnknownReduction),
		errors.Is(err, aggregate.ErrNoMeasures),
		errors.Is(err, aggregate.ErrDuplicate),
		errors.Is(err, aggregate.ErrNotGrouped):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{
		Error: message,
		Details: map[string]interface{}{
			"internal": err.Error(),
		},
	})
}
