package models

import "github.com/marcfranquesa/nyc-collisions/internal/chart"

// DashboardSummary is one entry of GET /api/dashboards
type DashboardSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ChartCount  int    `json:"chartCount"`
	URL         string `json:"url"`
}

// DashboardDetail is the JSON response for GET /api/dashboards/{id}
type DashboardDetail struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Rows        [][]string `json:"rows"`

	Charts []*chart.Chart `json:"charts"`

	// Selects lists the dimensions a click can select.
	Selects []string `json:"selects"`

	// Selection is the selection read from the request query, or the
	// dashboard default when the query names no dimension.
	Selection map[string][]string `json:"selection"`
}

// AggregateResponse is the JSON response for GET /api/aggregate
type AggregateResponse struct {
	Dims      []string            `json:"dims"`
	Measures  []string            `json:"measures"`
	Selection map[string][]string `json:"selection"`
	Rows      []map[string]any    `json:"rows"`
	Count     int                 `json:"count"`
}
