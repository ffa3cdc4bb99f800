package models

import (
	"time"

	"github.com/marcfranquesa/nyc-collisions/internal/metrics"
)

// HealthStatus constants
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded" // dataset loaded with dropped rows
	StatusNoData   = "no_data"
)

// DatasetStatus describes the loaded dataset
type DatasetStatus struct {
	LoadID     string    `json:"loadId"`
	Source     string    `json:"source"`
	LoadedAt   time.Time `json:"loadedAt"`
	AgeSeconds int       `json:"ageSeconds"`

	Collisions     int `json:"collisions"`
	Dropped        int `json:"dropped"`
	Unknown        int `json:"unknown"`
	Boroughs       int `json:"boroughs"`
	Districts      int `json:"districts"`
	WeatherSamples int `json:"weatherSamples"`
}

// HealthResponse is the JSON response for GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Dataset   *DatasetStatus    `json:"dataset,omitempty"`
	Latency   []metrics.Latency `json:"latency"`
	Timestamp time.Time         `json:"timestamp"`
	Error     string            `json:"error,omitempty"`
}

// CalculateHealthStatus returns the status for a dataset, StatusNoData when
// none is loaded.
func CalculateHealthStatus(d *DatasetStatus) string {
	if d == nil || d.Collisions == 0 {
		return StatusNoData
	}
	if d.Dropped > 0 {
		return StatusDegraded
	}
	return StatusOK
}
