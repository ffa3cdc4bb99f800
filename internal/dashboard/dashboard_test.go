package dashboard

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/marcfranquesa/nyc-collisions/internal/aggregate"
	"github.com/marcfranquesa/nyc-collisions/internal/chart"
	"github.com/marcfranquesa/nyc-collisions/internal/collisions"
	"github.com/marcfranquesa/nyc-collisions/internal/derive"
)

const squares = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"BOROUGH": "Manhattan", "boro_cd": 105},
     "geometry": {"type": "Polygon", "coordinates": [[[-74.0,40.7],[-73.9,40.7],[-73.9,40.8],[-74.0,40.8],[-74.0,40.7]]]}},
    {"type": "Feature", "properties": {"BOROUGH": "Brooklyn", "boro_cd": 301},
     "geometry": {"type": "Polygon", "coordinates": [[[-73.9,40.6],[-73.8,40.6],[-73.8,40.7],[-73.9,40.7],[-73.9,40.6]]]}}
  ]
}`

func input(t *testing.T) chart.Input {
	t.Helper()

	boroughs, err := collisions.ReadAreas([]byte(squares), collisions.PropBorough)
	if err != nil {
		t.Fatal(err)
	}
	districts, err := collisions.ReadAreas([]byte(squares), collisions.PropDistrict)
	if err != nil {
		t.Fatal(err)
	}
	lat, lon := 40.75, -73.95
	wind := 5.0

	raw := []collisions.Record{
		{Time: time.Date(2018, time.June, 4, 8, 0, 0, 0, time.UTC), Borough: "Manhattan", Vehicle: "Taxi", Weather: "Clear",
			Factor: "Unsafe Speed", Injured: 1, Valid: 1, Latitude: &lat, Longitude: &lon, WindKnots: &wind},
		{Time: time.Date(2018, time.July, 3, 17, 0, 0, 0, time.UTC), Borough: "Brooklyn", Vehicle: "Ambulance", Weather: "Rain",
			Factor: "Unspecified", Valid: 1},
		{Time: time.Date(2020, time.June, 1, 12, 0, 0, 0, time.UTC), Borough: "Brooklyn", Vehicle: "Horse", Weather: "Cloudy",
			Factor: "Backing Unsafely", Valid: 1},
	}
	d := &derive.Deriver{Districts: districts}
	records, _ := d.DeriveAll(raw)

	weather := []collisions.WeatherSample{
		{Time: time.Date(2018, time.June, 4, 8, 0, 0, 0, time.UTC), WindKnots: &wind},
	}
	return chart.Input{Records: records, Boroughs: boroughs, Districts: districts, Weather: weather}
}

func TestLayoutsResolveEveryChart(t *testing.T) {
	for _, l := range Layouts("") {
		t.Run(l.ID, func(t *testing.T) {
			n := 0
			for _, row := range l.Rows {
				n += len(row)
			}
			if got := len(l.Charts()); got != n || n == 0 {
				t.Errorf("%d of %d chart IDs resolve", got, n)
			}
		})
	}
}

func TestFindLayout(t *testing.T) {
	layouts := Layouts("")
	if l, err := Find(layouts, StaticID); err != nil || l.ID != StaticID {
		t.Errorf("Find(static) = %v, %v", l, err)
	}
	if _, err := Find(layouts, "pie"); !errors.Is(err, ErrUnknownLayout) {
		t.Errorf("err = %v, want ErrUnknownLayout", err)
	}

	l, _ := Find(layouts, InteractiveID)
	if _, err := l.Chart(chart.DistrictsID); !errors.Is(err, chart.ErrUnknownChart) {
		t.Errorf("static chart resolved on the interactive layout: %v", err)
	}
}

func TestLayoutSelection(t *testing.T) {
	l, _ := Find(Layouts(""), InteractiveID)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"no query opens the default", "", "weekday=Mon"},
		{"unrelated keys keep the default", "debug=1", "weekday=Mon"},
		{"cleared dimension", "weekday=&month=", "all"},
		{"explicit selection", "vehicle=Taxi&weekday=", "vehicle=Taxi"},
		{"multiple values", "month=June,July", "month=June|July"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			if err != nil {
				t.Fatal(err)
			}
			if got := l.Selection(q).String(); got != tc.want {
				t.Errorf("Selection(%q) = %q, want %q", tc.query, got, tc.want)
			}
		})
	}
}

func monthTotal(t *testing.T, r *Rendered) float64 {
	t.Helper()
	for _, p := range r.Panels() {
		if p.Chart.ID != chart.MonthsID {
			continue
		}
		total := 0.0
		for _, row := range p.Spec.Data.Values.([]map[string]interface{}) {
			total += row["collisions"].(float64)
		}
		return total
	}
	t.Fatal("months chart not rendered")
	return 0
}

func TestRenderInteractive(t *testing.T) {
	l, _ := Find(Layouts(""), InteractiveID)
	r, err := l.Render(input(t))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(r.Rows) != len(l.Rows) || len(r.Panels()) != len(l.Charts()) {
		t.Errorf("rendered %d rows and %d panels", len(r.Rows), len(r.Panels()))
	}
	if got := monthTotal(t, r); got != 3 {
		t.Errorf("months total = %v, want 3", got)
	}
}

func TestRenderScopedToPeriod(t *testing.T) {
	l, _ := Find(Layouts(derive.PeriodAfter), InteractiveID)
	r, err := l.Render(input(t))
	if err != nil {
		t.Fatal(err)
	}
	if got := monthTotal(t, r); got != 1 {
		t.Errorf("months total = %v, want only the 2020 collision", got)
	}

	spec, err := l.RenderChart(input(t).WithSelection(aggregate.Select(aggregate.Vehicle, derive.VehicleTaxi)), chart.MonthsID)
	if err != nil {
		t.Fatal(err)
	}
	if rows := spec.Data.Values.([]map[string]interface{}); len(rows) != 1 || rows[0]["collisions"].(float64) != 0 {
		t.Errorf("scoped taxi months = %v, want a single zero-filled June", rows)
	}
}

func TestRenderStatic(t *testing.T) {
	l, _ := Find(Layouts(""), StaticID)
	if _, err := l.Render(input(t)); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
}

func TestWritePage(t *testing.T) {
	l, _ := Find(Layouts(""), InteractiveID)
	r, err := l.Render(input(t).WithSelection(l.Default))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WritePage(&buf, r, "/api/dashboards/interactive"); err != nil {
		t.Fatal(err)
	}
	page := buf.String()
	for _, want := range []string{`id="chart-months"`, `id="chart-hours"`, "vegaEmbed", "weekday_select", "dependsOn"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}

	// re-embedding a chart releases its previous view, and a refresh only
	// renders when its query is still the latest one for that chart
	for _, want := range []string{"views[c.id].finalize()", "res.view.finalize()", "latest[c.id] = q", "latest[c.id] !== q"} {
		if !strings.Contains(page, want) {
			t.Errorf("page script missing %q", want)
		}
	}
	if n := strings.Count(page, "latest[c.id] !== q"); n < 3 {
		t.Errorf("stale check appears %d times, want after fetch, after decode and after embed", n)
	}
}

func TestWriteStatic(t *testing.T) {
	l, _ := Find(Layouts(""), StaticID)
	r, err := l.Render(input(t))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteStatic(&buf, r, time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	page := buf.String()
	if !strings.Contains(page, "Exported 2021-03-01T00:00:00Z for selection all.") {
		t.Error("export footer missing")
	}
	if !strings.Contains(page, `id="chart-districts"`) || !strings.Contains(page, "$schema") {
		t.Error("export does not inline the district chart")
	}
}
