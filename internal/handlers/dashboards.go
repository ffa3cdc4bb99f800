package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marcfranquesa/nyc-collisions/internal/config"
	"github.com/marcfranquesa/nyc-collisions/internal/dashboard"
	"github.com/marcfranquesa/nyc-collisions/internal/metrics"
	"github.com/marcfranquesa/nyc-collisions/internal/models"
	"github.com/marcfranquesa/nyc-collisions/internal/repository"
)

// DatasetStore provides the current dataset
type DatasetStore interface {
	Current(ctx context.Context) (*repository.Dataset, error)
}

// DashboardHandler serves dashboard layouts, chart specs and pages
type DashboardHandler struct {
	store   DatasetStore
	theme   *config.Theme
	layouts []*dashboard.Layout
	latency *metrics.LatencyRecorder
	now     func() time.Time
}

// NewDashboardHandler creates a new handler over the given layouts
func NewDashboardHandler(store DatasetStore, theme *config.Theme, layouts []*dashboard.Layout, latency *metrics.LatencyRecorder) *DashboardHandler {
	return &DashboardHandler{
		store:   store,
		theme:   theme,
		layouts: layouts,
		latency: latency,
		now:     time.Now,
	}
}

// ListDashboards handles GET /api/dashboards
func (h *DashboardHandler) ListDashboards(w http.ResponseWriter, r *http.Request) {
	out := make([]models.DashboardSummary, 0, len(h.layouts))
	for _, l := range h.layouts {
		out = append(out, models.DashboardSummary{
			ID:          l.ID,
			Title:       l.Title,
			Description: l.Description,
			ChartCount:  len(l.Charts()),
			URL:         "/dashboards/" + l.ID,
		})
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, out)
}

// GetDashboard handles GET /api/dashboards/{id}
// Returns the layout, its charts' linking metadata and the selection the
// query resolves to.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	l, err := dashboard.Find(h.layouts, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "Dashboard not found", err)
		return
	}

	selects := []string{}
	for _, d := range l.Selects() {
		selects = append(selects, string(d))
	}

	writeJSON(w, http.StatusOK, models.DashboardDetail{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Rows:        l.Rows,
		Charts:      l.Charts(),
		Selects:     selects,
		Selection:   l.Selection(r.URL.Query()).Map(),
	})
}

// GetChart handles GET /api/dashboards/{id}/charts/{chartId}
// Returns the Vega-Lite spec of one chart for the selection in the query.
func (h *DashboardHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	l, err := dashboard.Find(h.layouts, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "Dashboard not found", err)
		return
	}
	chartID := chi.URLParam(r, "chartId")
	if _, err := l.Chart(chartID); err != nil {
		writeError(w, "Chart not found", err)
		return
	}

	d, err := h.store.Current(ctx)
	if err != nil {
		writeError(w, "No dataset loaded", err)
		return
	}

	sel := l.Selection(r.URL.Query())
	start := time.Now()
	spec, err := l.RenderChart(d.Input(h.theme).WithSelection(sel), chartID)
	if err != nil {
		writeError(w, "Failed to render chart", err)
		return
	}
	h.observe(l.ID+"/"+chartID, time.Since(start))

	writeJSON(w, http.StatusOK, spec)
}

// ExportDashboard handles GET /api/dashboards/{id}/export
// Returns a self-contained HTML document for the selection in the query.
func (h *DashboardHandler) ExportDashboard(w http.ResponseWriter, r *http.Request) {
	l, rendered, ok := h.render(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := dashboard.WriteStatic(&buf, rendered, h.now()); err != nil {
		writeError(w, "Failed to export dashboard", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="nyc-collisions-%s.html"`, l.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ServePage handles GET /dashboards/{id}, and GET / for the interactive dashboard
func (h *DashboardHandler) ServePage(w http.ResponseWriter, r *http.Request) {
	l, rendered, ok := h.render(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := dashboard.WritePage(&buf, rendered, "/api/dashboards/"+l.ID); err != nil {
		writeError(w, "Failed to render page", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// render builds every chart of the requested layout, writing the error
// response itself when it fails.
func (h *DashboardHandler) render(w http.ResponseWriter, r *http.Request) (*dashboard.Layout, *dashboard.Rendered, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if id == "" {
		id = dashboard.InteractiveID
	}
	l, err := dashboard.Find(h.layouts, id)
	if err != nil {
		writeError(w, "Dashboard not found", err)
		return nil, nil, false
	}

	d, err := h.store.Current(ctx)
	if err != nil {
		writeError(w, "No dataset loaded", err)
		return nil, nil, false
	}

	start := time.Now()
	rendered, err := l.Render(d.Input(h.theme).WithSelection(l.Selection(r.URL.Query())))
	if err != nil {
		writeError(w, "Failed to render dashboard", err)
		return nil, nil, false
	}
	h.observe(l.ID, time.Since(start))

	return l, rendered, true
}

func (h *DashboardHandler) observe(key string, d time.Duration) {
	if h.latency == nil {
		return
	}
	if h.latency.Observe(key, d) {
		log.Printf("Warning: slow render of %s took %v", key, d)
	}
}
