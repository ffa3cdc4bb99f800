// Package preview renders a dashboard selection as terminal text.
package preview

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/marcfranquesa/nyc-collisions/internal/aggregate"
	"github.com/marcfranquesa/nyc-collisions/internal/derive"
)

var (
	Primary = lipgloss.Color("#7D56F4")
	Subtle  = lipgloss.Color("240")

	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginBottom(1)
	SubTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	HelpStyle     = lipgloss.NewStyle().Foreground(Subtle)
	BarStyle      = lipgloss.NewStyle().Foreground(Primary)
)

// seriesColors follow derive.BoroughOrder; legendColors are the same ANSI
// colours for lipgloss.
var (
	seriesColors = []asciigraph.AnsiColor{
		asciigraph.Red,
		asciigraph.Blue,
		asciigraph.Green,
		asciigraph.Yellow,
		asciigraph.Magenta,
		asciigraph.Cyan,
	}
	legendColors = []lipgloss.Color{"1", "4", "2", "3", "5", "6"}
)

var (
	byMonth   = aggregate.MustNew([]aggregate.Dimension{aggregate.Month}, aggregate.SumOf(aggregate.Valid, "collisions"))
	byVehicle = aggregate.MustNew([]aggregate.Dimension{aggregate.Vehicle}, aggregate.SumOf(aggregate.Valid, "collisions"))
	byWeather = aggregate.MustNew([]aggregate.Dimension{aggregate.Weather}, aggregate.SumOf(aggregate.Valid, "collisions"))
	byFactor  = aggregate.MustNew([]aggregate.Dimension{aggregate.Factor}, aggregate.SumOf(aggregate.Valid, "collisions"))
	byHour    = aggregate.MustNew([]aggregate.Dimension{aggregate.Borough, aggregate.Hour}, aggregate.SumOf(aggregate.Valid, "collisions"))
)

// Render summarizes records under sel. Unlike the dashboards every section is
// filtered by the whole selection.
func Render(records []derive.Record, sel aggregate.Selection, width int) (string, error) {
	if width < 40 {
		width = 40
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("NYC Collisions"))
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("Selection: " + sel.String()))
	b.WriteString("\n\n")

	sections := []struct {
		title string
		p     *aggregate.Pipeline
		dim   aggregate.Dimension
	}{
		{"Collisions per month", byMonth, aggregate.Month},
		{"Collisions per vehicle", byVehicle, aggregate.Vehicle},
		{"Collisions per weather", byWeather, aggregate.Weather},
		{"Collisions per factor", byFactor, aggregate.Factor},
	}
	for _, s := range sections {
		buckets := s.p.Run(records, sel)
		labels := make([]string, len(buckets))
		for i, bk := range buckets {
			labels[i] = bk.Key(s.dim)
		}
		b.WriteString(SubTitleStyle.Render(s.title))
		b.WriteString("\n")
		b.WriteString(RenderBars(aggregate.Column(buckets, "collisions"), labels, width))
		b.WriteString("\n\n")
	}

	hours, err := RenderHours(records, sel, width)
	if err != nil {
		return "", err
	}
	b.WriteString(SubTitleStyle.Render("Collisions per hour and borough"))
	b.WriteString("\n")
	b.WriteString(hours)
	b.WriteString("\n")

	return b.String(), nil
}

// RenderBars draws a horizontal bar per value, scaled to the largest.
func RenderBars(values []float64, labels []string, width int) string {
	if len(values) == 0 {
		return HelpStyle.Render("No data available")
	}

	maxVal := 0.0
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		if len(l) > maxLabelLen {
			maxLabelLen = len(l)
		}
	}

	barWidth := width - maxLabelLen - 10 // room for the label and value
	if barWidth < 10 {
		barWidth = 10
	}

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		n := int(v / maxVal * float64(barWidth))
		lines = append(lines, fmt.Sprintf("%*s %s %g", maxLabelLen, label, BarStyle.Render(strings.Repeat("█", n)), v))
	}
	return strings.Join(lines, "\n")
}

// RenderHours plots one line per borough over the 24 hours of the day.
func RenderHours(records []derive.Record, sel aggregate.Selection, width int) (string, error) {
	series, err := hourSeries(records, sel)
	if err != nil {
		return "", err
	}
	if len(series) == 0 {
		return HelpStyle.Render("No data available"), nil
	}

	var data [][]float64
	var colors []asciigraph.AnsiColor
	var legend []string
	for i, borough := range derive.BoroughOrder {
		s, ok := series[borough]
		if !ok {
			continue
		}
		data = append(data, s)
		colors = append(colors, seriesColors[i%len(seriesColors)])
		legend = append(legend, lipgloss.NewStyle().Foreground(legendColors[i%len(legendColors)]).Render("■")+" "+borough)
	}

	graph := asciigraph.PlotMany(data,
		asciigraph.Height(10),
		asciigraph.Width(width-10),
		asciigraph.Caption("hour of day"),
		asciigraph.SeriesColors(colors...),
	)
	return graph + "\n" + strings.Join(legend, "  "), nil
}

// hourSeries returns collisions per hour of day for each borough under sel.
func hourSeries(records []derive.Record, sel aggregate.Selection) (map[string][]float64, error) {
	hours := derive.HourDomain()
	buckets, err := byHour.ZeroFill(byHour.Run(records, sel), aggregate.Hour, hours)
	if err != nil {
		return nil, err
	}

	series := map[string][]float64{}
	for _, bk := range buckets {
		borough := bk.Key(aggregate.Borough)
		if series[borough] == nil {
			series[borough] = make([]float64, len(hours))
		}
		if h, err := strconv.Atoi(bk.Key(aggregate.Hour)); err == nil && h >= 0 && h < len(hours) {
			series[borough][h] = bk.Value("collisions")
		}
	}
	return series, nil
}
