// Package dashboard composes charts into the interactive and static
// dashboards and renders them as HTML documents.
package dashboard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/marcfranquesa/nyc-collisions/internal/aggregate"
	"github.com/marcfranquesa/nyc-collisions/internal/chart"
	"github.com/marcfranquesa/nyc-collisions/internal/derive"
)

// Layout IDs
const (
	InteractiveID = "interactive"
	StaticID      = "static"
)

// ErrUnknownLayout is returned when a layout ID is not registered.
var ErrUnknownLayout = errors.New("unknown dashboard")

// Layout is an ordered arrangement of charts in rows.
type Layout struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Rows        [][]string `json:"rows"`

	// Scope restricts the records every chart of the layout sees.
	Scope aggregate.Selection `json:"-"`

	// Default is the selection the layout opens with.
	Default aggregate.Selection `json:"-"`

	charts []*chart.Chart
}

// Layouts returns the registered dashboards. A non-empty period restricts
// the interactive dashboard to that period.
func Layouts(period string) []*Layout {
	interactive := &Layout{
		ID:          InteractiveID,
		Title:       "NYC Collisions",
		Description: "Click a bar, a borough or a weekday to filter the linked charts.",
		Rows: [][]string{
			{chart.MonthsID, chart.VehiclesID, chart.WeatherID},
			{chart.MapID, chart.HeatmapID},
			{chart.HoursID},
			{chart.FactorsID},
		},
		Default: chart.DefaultSelection(),
		charts:  chart.Interactive(),
	}
	if period != "" {
		interactive.Scope = aggregate.Select(aggregate.Period, period)
		interactive.Description = fmt.Sprintf("%s Showing %s only.", interactive.Description, period)
	}

	static := &Layout{
		ID:          StaticID,
		Title:       "NYC Collisions: Summer 2018 vs Summer 2020",
		Description: "Collisions before and after Covid.",
		Rows: [][]string{
			{chart.DistrictsID, chart.DangerID},
			{chart.ConditionsID, chart.WeekID},
			{chart.HourlyID, chart.FactorShareID},
		},
		charts: chart.Static(),
	}

	return []*Layout{interactive, static}
}

// Find returns the layout with the given ID.
func Find(layouts []*Layout, id string) (*Layout, error) {
	for _, l := range layouts {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, id)
}

// Charts returns the layout's charts in row order.
func (l *Layout) Charts() []*chart.Chart {
	var out []*chart.Chart
	for _, row := range l.Rows {
		for _, id := range row {
			if c, err := chart.Find(l.charts, id); err == nil {
				out = append(out, c)
			}
		}
	}
	return out
}

// Chart returns one chart of the layout.
func (l *Layout) Chart(id string) (*chart.Chart, error) {
	for _, row := range l.Rows {
		for _, rid := range row {
			if rid == id {
				return chart.Find(l.charts, id)
			}
		}
	}
	return nil, fmt.Errorf("%w: %q in %s", chart.ErrUnknownChart, id, l.ID)
}

// Selects lists the dimensions the layout's charts can select.
func (l *Layout) Selects() []aggregate.Dimension {
	var dims []aggregate.Dimension
	for _, c := range l.Charts() {
		if c.Selects != "" {
			dims = append(dims, c.Selects)
		}
	}
	return dims
}

// Selection reads the selection from query parameters. A query naming no
// dimension at all opens the default selection; an empty value clears a
// dimension, so the page always sends every selectable one.
func (l *Layout) Selection(q url.Values) aggregate.Selection {
	for key := range q {
		if aggregate.Dimension(strings.ToLower(key)).Valid() {
			return aggregate.ParseSelection(q)
		}
	}
	return l.Default
}

// Scoped returns in restricted to the layout's scope.
func (l *Layout) Scoped(in chart.Input) chart.Input {
	if l.Scope.Empty() {
		return in
	}
	records := make([]derive.Record, 0, len(in.Records))
	for i := range in.Records {
		if l.Scope.Matches(&in.Records[i]) {
			records = append(records, in.Records[i])
		}
	}
	in.Records = records
	return in
}

// Panel is one rendered chart.
type Panel struct {
	Chart *chart.Chart `json:"chart"`
	Spec  *chart.Spec  `json:"spec"`
}

// Rendered is a layout rendered for one selection.
type Rendered struct {
	Layout    *Layout             `json:"layout"`
	Selection map[string][]string `json:"selection"`
	Rows      [][]Panel           `json:"rows"`
}

// Panels flattens the rows.
func (r *Rendered) Panels() []Panel {
	var out []Panel
	for _, row := range r.Rows {
		out = append(out, row...)
	}
	return out
}

// Render builds every chart of the layout for in.Selection.
func (l *Layout) Render(in chart.Input) (*Rendered, error) {
	in = l.Scoped(in)
	out := &Rendered{Layout: l, Selection: in.Selection.Map()}
	for _, row := range l.Rows {
		panels := make([]Panel, 0, len(row))
		for _, id := range row {
			c, err := chart.Find(l.charts, id)
			if err != nil {
				return nil, fmt.Errorf("dashboard %s: %w", l.ID, err)
			}
			spec, err := c.Build(in)
			if err != nil {
				return nil, fmt.Errorf("dashboard %s: %w", l.ID, err)
			}
			panels = append(panels, Panel{Chart: c, Spec: spec})
		}
		out.Rows = append(out.Rows, panels)
	}
	return out, nil
}

// RenderChart builds one chart of the layout for in.Selection.
func (l *Layout) RenderChart(in chart.Input, id string) (*chart.Spec, error) {
	c, err := l.Chart(id)
	if err != nil {
		return nil, err
	}
	return c.Build(l.Scoped(in))
}
