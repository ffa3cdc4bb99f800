package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marcfranquesa/nyc-collisions/internal/metrics"
	"github.com/marcfranquesa/nyc-collisions/internal/models"
)

// HealthHandler reports dataset status and render latency
type HealthHandler struct {
	store   DatasetStore
	latency *metrics.LatencyRecorder
}

// NewHealthHandler creates a new handler with the given store
func NewHealthHandler(store DatasetStore, latency *metrics.LatencyRecorder) *HealthHandler {
	return &HealthHandler{store: store, latency: latency}
}

// GetHealth handles GET /health
// Returns 503 when no dataset is loaded.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	now := time.Now().UTC()
	response := models.HealthResponse{
		Latency:   []metrics.Latency{},
		Timestamp: now,
	}
	if h.latency != nil {
		response.Latency = h.latency.Snapshot()
	}

	d, err := h.store.Current(ctx)
	if err != nil {
		response.Status = models.StatusNoData
		response.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	response.Dataset = &models.DatasetStatus{
		LoadID:         d.LoadID,
		Source:         d.Source,
		LoadedAt:       d.LoadedAt,
		AgeSeconds:     int(now.Sub(d.LoadedAt).Seconds()),
		Collisions:     d.Stats.Kept,
		Dropped:        d.Stats.Dropped,
		Unknown:        d.Stats.Unknown,
		Boroughs:       len(d.Boroughs),
		Districts:      len(d.Districts),
		WeatherSamples: len(d.Weather),
	}
	response.Status = models.CalculateHealthStatus(response.Dataset)

	writeJSON(w, http.StatusOK, response)
}
