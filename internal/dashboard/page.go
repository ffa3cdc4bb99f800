package dashboard

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/marcfranquesa/nyc-collisions/internal/aggregate"
	"github.com/marcfranquesa/nyc-collisions/internal/chart"
)

//go:embed page.html
var pageHTML string

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

// chartMeta is what the page script needs to link one chart.
type chartMeta struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Selects   string   `json:"selects,omitempty"`
	DependsOn []string `json:"dependsOn"`
}

type cell struct {
	ID    string
	Title string
}

type pageData struct {
	Title       string
	Description string
	Footer      string
	API         string
	Rows        [][]cell
	Charts      []chartMeta
	Specs       map[string]*chart.Spec
	Selects     []string
	Selection   map[string][]string
}

func newPageData(r *Rendered, api string) pageData {
	l := r.Layout
	data := pageData{
		Title:       l.Title,
		Description: l.Description,
		API:         api,
		Specs:       map[string]*chart.Spec{},
		Charts:      []chartMeta{},
		Selects:     []string{},
		Selection:   r.Selection,
	}
	if data.Selection == nil {
		data.Selection = map[string][]string{}
	}

	for _, row := range r.Rows {
		cells := make([]cell, 0, len(row))
		for _, p := range row {
			cells = append(cells, cell{ID: p.Chart.ID, Title: p.Chart.Title})
			data.Specs[p.Chart.ID] = p.Spec

			meta := chartMeta{ID: p.Chart.ID, Title: p.Chart.Title, Selects: string(p.Chart.Selects), DependsOn: []string{}}
			for _, d := range aggregate.Dimensions() {
				if p.Chart.DependsOn(d) {
					meta.DependsOn = append(meta.DependsOn, string(d))
				}
			}
			data.Charts = append(data.Charts, meta)
			if p.Chart.Selects != "" {
				data.Selects = append(data.Selects, string(p.Chart.Selects))
			}
		}
		data.Rows = append(data.Rows, cells)
	}
	return data
}

// WritePage writes the live dashboard page. Linked charts are re-fetched
// from api (e.g. /api/dashboards/interactive) when a selection changes.
func WritePage(w io.Writer, r *Rendered, api string) error {
	data := newPageData(r, api)
	data.Footer = "Data: NYC Open Data motor vehicle collisions."
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render %s page: %w", r.Layout.ID, err)
	}
	return nil
}

// WriteStatic writes a self-contained document with every spec inlined. It
// needs no server; selections highlight but do not re-filter other charts.
func WriteStatic(w io.Writer, r *Rendered, generated time.Time) error {
	data := newPageData(r, "")
	data.Footer = fmt.Sprintf("Exported %s for selection %s.", generated.UTC().Format(time.RFC3339), selectionLabel(r.Selection))
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to export %s: %w", r.Layout.ID, err)
	}
	return nil
}

func selectionLabel(m map[string][]string) string {
	sel := aggregate.Selection{}
	for d, v := range m {
		sel = sel.With(aggregate.Dimension(d), v...)
	}
	return sel.String()
}
