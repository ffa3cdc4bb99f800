package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/marcfranquesa/nyc-collisions/internal/aggregate"
	"github.com/marcfranquesa/nyc-collisions/internal/models"
)

// AggregateHandler runs ad-hoc aggregations over the current dataset
type AggregateHandler struct {
	store DatasetStore
}

// NewAggregateHandler creates a new handler with the given store
func NewAggregateHandler(store DatasetStore) *AggregateHandler {
	return &AggregateHandler{store: store}
}

// GetAggregate handles GET /api/aggregate
// Query: dims=month,vehicle (may be empty for a grand total),
// measures=sum:valid,max:killed:worst (defaults to sum:valid),
// fill=<dim> to zero-fill a grouped dimension over its domain. Every other
// key naming a dimension filters the records.
func (h *AggregateHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()

	var dims []aggregate.Dimension
	for _, s := range splitList(q.Get("dims")) {
		d, err := aggregate.ParseDimension(s)
		if err != nil {
			writeError(w, "Invalid dimension", err)
			return
		}
		dims = append(dims, d)
	}

	specs := splitList(q.Get("measures"))
	if len(specs) == 0 {
		specs = []string{"sum:valid"}
	}
	var measures []aggregate.Measure
	for _, s := range specs {
		m, err := aggregate.ParseMeasure(s)
		if err != nil {
			writeError(w, "Invalid measure", err)
			return
		}
		measures = append(measures, m)
	}

	p, err := aggregate.New(dims, measures...)
	if err != nil {
		writeError(w, "Invalid aggregation", err)
		return
	}

	// dims and measures are not dimension names, so they never reach the selection
	sel := aggregate.ParseSelection(q)

	d, err := h.store.Current(ctx)
	if err != nil {
		writeError(w, "No dataset loaded", err)
		return
	}

	buckets := p.Run(d.Records, sel)
	if fill := q.Get("fill"); fill != "" {
		dim, err := aggregate.ParseDimension(fill)
		if err != nil {
			writeError(w, "Invalid fill dimension", err)
			return
		}
		domain := dim.Order()
		if domain == nil {
			domain = aggregate.Domain(d.Records, dim, aggregate.Selection{})
		}
		if buckets, err = p.ZeroFill(buckets, dim, domain); err != nil {
			writeError(w, "Invalid fill dimension", err)
			return
		}
	}

	response := models.AggregateResponse{
		Dims:      make([]string, 0, len(dims)),
		Measures:  make([]string, 0, len(measures)),
		Selection: sel.Map(),
		Rows:      aggregate.Rows(buckets),
		Count:     len(buckets),
	}
	for _, dim := range p.Dims() {
		response.Dims = append(response.Dims, string(dim))
	}
	for _, m := range p.Measures() {
		response.Measures = append(response.Measures, m.Name())
	}

	writeJSON(w, http.StatusOK, response)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
