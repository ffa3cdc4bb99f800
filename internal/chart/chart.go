// Package chart binds aggregated tables to Vega-Lite specifications.
//
// Every chart aggregates on the server for the current selection and ships
// its table inline. Cross-filtering happens here, by running the chart's
// pipeline with the selection restricted to the dimensions the chart is
// filtered by; the browser only highlights and reports clicks.
package chart

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/marcfranquesa/nyc-collisions/internal/aggregate"
	"github.com/marcfranquesa/nyc-collisions/internal/collisions"
	"github.com/marcfranquesa/nyc-collisions/internal/config"
	"github.com/marcfranquesa/nyc-collisions/internal/derive"
)

// ErrUnknownChart is returned when a chart ID is not registered.
var ErrUnknownChart = errors.New("unknown chart")

// Input is everything a chart reads. It is never modified by a chart.
type Input struct {
	Records   []derive.Record
	Boroughs  []collisions.Area
	Districts []collisions.Area
	Weather   []collisions.WeatherSample
	Theme     *config.Theme

	// Selection is the dashboard-wide selection state for this render.
	Selection aggregate.Selection
}

// WithSelection returns a copy of in using sel.
func (in Input) WithSelection(sel aggregate.Selection) Input {
	in.Selection = sel
	return in
}

// Chart is one view of a dashboard.
type Chart struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	// Selects is the dimension a click on this chart selects, empty when the
	// chart is not a selection source.
	Selects aggregate.Dimension `json:"selects,omitempty"`

	// FilterBy lists the selection dimensions applied before aggregating.
	FilterBy []aggregate.Dimension `json:"filterBy"`

	// Highlight lists dimensions that change how the chart is drawn
	// without filtering it.
	Highlight []aggregate.Dimension `json:"highlight,omitempty"`

	build func(in Input, sel aggregate.Selection) (*Spec, error)
}

// Build renders the chart for in.Selection.
func (c *Chart) Build(in Input) (*Spec, error) {
	if in.Theme == nil {
		t, err := config.DefaultTheme()
		if err != nil {
			return nil, err
		}
		in.Theme = t
	}

	spec, err := c.build(in, in.Selection.Only(c.FilterBy...))
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", c.ID, err)
	}
	spec.Schema = SchemaURL
	spec.Name = c.ID
	spec.Usermeta = map[string]interface{}{
		"chart":     c.ID,
		"selects":   c.Selects,
		"filterBy":  c.FilterBy,
		"highlight": c.Highlight,
		"selection": in.Selection.Only(append(append([]aggregate.Dimension{c.Selects}, c.FilterBy...), c.Highlight...)...).Map(),
	}
	return spec, nil
}

// DependsOn reports whether a change to dim must re-render the chart.
func (c *Chart) DependsOn(dim aggregate.Dimension) bool {
	for _, d := range c.FilterBy {
		if d == dim {
			return true
		}
	}
	for _, d := range c.Highlight {
		if d == dim {
			return true
		}
	}
	return false
}

// Find returns the chart with the given ID.
func Find(charts []*Chart, id string) (*Chart, error) {
	for _, c := range charts {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownChart, id)
}

// selectParam declares a point selection over dim seeded with the values of
// dim in sel.
func selectParam(dim aggregate.Dimension, sel aggregate.Selection) Param {
	p := Param{
		Name:   paramName(dim),
		Select: &Select{Type: "point", Fields: []string{string(dim)}},
	}
	if values := sel.Values(dim); len(values) > 0 {
		seed := make([]map[string]interface{}, 0, len(values))
		for _, v := range values {
			seed = append(seed, map[string]interface{}{string(dim): fieldValue(dim, v)})
		}
		p.Value = seed
	}
	return p
}

// paramName is the Vega signal name the page listens to for dim.
func paramName(dim aggregate.Dimension) string {
	return string(dim) + "_select"
}

func fieldValue(dim aggregate.Dimension, v string) interface{} {
	if dim.Numeric() {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return v
}

// highlighted reports whether value passes the selection on dim; an
// unconstrained dimension highlights everything.
func highlighted(sel aggregate.Selection, dim aggregate.Dimension, value string) bool {
	values := sel.Values(dim)
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// rows renders buckets and applies extra per-row attributes.
func rows(buckets []aggregate.Bucket, extra func(b aggregate.Bucket, row map[string]interface{})) []map[string]interface{} {
	out := make([]map[string]interface{}, len(buckets))
	for i, b := range buckets {
		row := b.Row()
		if extra != nil {
			extra(b, row)
		}
		out[i] = row
	}
	return out
}

func sumValid(as string) aggregate.Measure { return aggregate.SumOf(aggregate.Valid, as) }

// hiddenAxis keeps the title but drops labels, ticks and grid; the glyph
// layer labels the bars instead.
func hiddenAxis(title string) *Axis {
	return &Axis{Title: title, Labels: ptr(false), Domain: ptr(false), Ticks: ptr(false), Grid: ptr(false)}
}

func flatAxis(title string) *Axis {
	return &Axis{Title: title, LabelAngle: ptr(0.0)}
}

func orderOr(domain []string, fallback []string) []string {
	if len(domain) > 0 {
		return domain
	}
	return fallback
}
