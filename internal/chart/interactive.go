package chart

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/marcfranquesa/nyc-collisions/internal/aggregate"
	"github.com/marcfranquesa/nyc-collisions/internal/collisions"
	"github.com/marcfranquesa/nyc-collisions/internal/derive"
)

// Chart IDs of the interactive dashboard
const (
	MonthsID   = "months"
	VehiclesID = "vehicles"
	WeatherID  = "weather"
	MapID      = "boroughs"
	HeatmapID  = "weekdays"
	HoursID    = "hours"
	FactorsID  = "factors"
)

const collisionsField = "collisions"

var (
	byMonth    = aggregate.MustNew([]aggregate.Dimension{aggregate.Month}, sumValid(collisionsField))
	byVehicle  = aggregate.MustNew([]aggregate.Dimension{aggregate.Vehicle}, sumValid(collisionsField))
	byWeather  = aggregate.MustNew([]aggregate.Dimension{aggregate.Weather}, sumValid(collisionsField))
	byBorough  = aggregate.MustNew([]aggregate.Dimension{aggregate.Borough}, sumValid(collisionsField))
	byCalendar = aggregate.MustNew([]aggregate.Dimension{aggregate.Day, aggregate.Week, aggregate.Weekday}, sumValid(collisionsField))
	byHour     = aggregate.MustNew([]aggregate.Dimension{aggregate.Borough, aggregate.Hour}, sumValid(collisionsField))
	byFactor   = aggregate.MustNew([]aggregate.Dimension{aggregate.OriginalFactor, aggregate.Borough},
		sumValid(collisionsField), aggregate.SumOf(aggregate.Injured, "injured"))
)

// Interactive returns the linked charts of the interactive dashboard.
func Interactive() []*Chart {
	return []*Chart{
		{
			ID: MonthsID, Title: "Collisions per Month",
			Selects:  aggregate.Month,
			FilterBy: []aggregate.Dimension{aggregate.Vehicle, aggregate.Weather},
			build:    buildMonths,
		},
		{
			ID: WeatherID, Title: "Collisions per Weather",
			Selects:  aggregate.Weather,
			FilterBy: []aggregate.Dimension{aggregate.Month, aggregate.Vehicle},
			build:    buildWeather,
		},
		{
			ID: VehiclesID, Title: "Collisions per Vehicle",
			Selects:  aggregate.Vehicle,
			FilterBy: []aggregate.Dimension{aggregate.Month, aggregate.Weather},
			build:    buildVehicles,
		},
		{
			ID: MapID, Title: "NYC Boroughs",
			Selects:  aggregate.Borough,
			FilterBy: []aggregate.Dimension{aggregate.Month, aggregate.Weather, aggregate.Vehicle},
			build:    buildBoroughMap,
		},
		{
			ID: FactorsID, Title: "Driving infractions and their danger",
			Selects:   aggregate.OriginalFactor,
			FilterBy:  []aggregate.Dimension{aggregate.Month, aggregate.Weather, aggregate.Vehicle},
			Highlight: []aggregate.Dimension{aggregate.Borough},
			build:     buildFactors,
		},
		{
			ID: HeatmapID, Title: "Collisions per Week and Weekday",
			Selects:  aggregate.Weekday,
			FilterBy: []aggregate.Dimension{aggregate.Month, aggregate.Weather, aggregate.Vehicle, aggregate.Borough},
			build:    buildHeatmap,
		},
		{
			ID: HoursID, Title: "Collisions per Hour and Location",
			FilterBy:  []aggregate.Dimension{aggregate.Month, aggregate.Weather, aggregate.Vehicle, aggregate.Weekday},
			Highlight: []aggregate.Dimension{aggregate.Borough},
			build:     buildHours,
		},
	}
}

// DefaultSelection is the selection the interactive dashboard opens with:
// Monday is preselected on the heatmap so the hour chart starts narrowed.
func DefaultSelection() aggregate.Selection {
	return aggregate.Select(aggregate.Weekday, "Mon")
}

// categoryBars is the shared shape of the month, vehicle and weather bars.
func categoryBars(in Input, sel aggregate.Selection, p *aggregate.Pipeline, dim aggregate.Dimension, axisTitle string, glyph func(string) string) (*Spec, error) {
	domain := orderOr(aggregate.Domain(in.Records, dim, aggregate.Selection{}), dim.Order())
	table, err := p.ZeroFill(p.Run(in.Records, sel), dim, domain)
	if err != nil {
		return nil, err
	}

	data := rows(table, func(b aggregate.Bucket, row map[string]interface{}) {
		if glyph != nil {
			row["emoji"] = glyph(b.Key(dim))
		}
	})
	param := paramName(dim)
	x := &Channel{
		Field: string(dim), Type: "nominal",
		Sort:  domain,
		Scale: &Scale{Domain: domain},
		Axis:  flatAxis(axisTitle),
	}
	if glyph != nil {
		x.Axis = hiddenAxis(axisTitle)
	}
	tooltip := []Channel{Tip(string(dim), "nominal", axisTitle), Tip(collisionsField, "quantitative", "Collisions")}

	bars := &Spec{
		Mark: &Mark{Type: "bar", Color: in.Theme.Primary},
		Encoding: &Encoding{
			X:       x,
			Y:       &Channel{Field: collisionsField, Type: "quantitative", Axis: &Axis{Title: "Collisions"}},
			Opacity: Selected(param, in.Theme.Opacity.Selected, in.Theme.Opacity.Unselected),
			Tooltip: tooltip,
		},
		Params: []Param{selectParam(dim, in.Selection)},
	}

	spec := &Spec{
		Data:   Inline(data),
		Width:  250,
		Height: 175,
		Layer:  []*Spec{bars},
	}
	if glyph != nil {
		spec.Width = 200
		spec.Layer = append(spec.Layer, &Spec{
			Mark: &Mark{Type: "text", Size: 18, Align: "center", Dy: -8},
			Encoding: &Encoding{
				X:       &Channel{Field: string(dim), Type: "nominal", Sort: domain, Scale: &Scale{Domain: domain}},
				Y:       Quantitative(collisionsField),
				Text:    Nominal("emoji"),
				Opacity: Selected(param, in.Theme.Opacity.Selected, in.Theme.Opacity.Unselected),
				Tooltip: tooltip,
			},
		})
	}
	return spec, nil
}

func filterNote(dims ...string) string {
	switch len(dims) {
	case 0:
		return ""
	case 1:
		return "(filtered by " + dims[0] + ")"
	}
	note := "(filtered by "
	for i, d := range dims {
		switch {
		case i == 0:
		case i == len(dims)-1:
			note += " and "
		default:
			note += ", "
		}
		note += d
	}
	return note + ")"
}

func buildMonths(in Input, sel aggregate.Selection) (*Spec, error) {
	spec, err := categoryBars(in, sel, byMonth, aggregate.Month, "Month", nil)
	if err != nil {
		return nil, err
	}
	spec.Title = Titled("Collisions per Month", filterNote("vehicle", "weather"))
	return spec, nil
}

func buildVehicles(in Input, sel aggregate.Selection) (*Spec, error) {
	spec, err := categoryBars(in, sel, byVehicle, aggregate.Vehicle, "Vehicle", derive.VehicleEmoji)
	if err != nil {
		return nil, err
	}
	spec.Title = Titled("Collisions per Vehicle", filterNote("month", "weather"))
	return spec, nil
}

func buildWeather(in Input, sel aggregate.Selection) (*Spec, error) {
	spec, err := categoryBars(in, sel, byWeather, aggregate.Weather, "Weather", derive.WeatherEmoji)
	if err != nil {
		return nil, err
	}
	spec.Title = Titled("Collisions per Weather", filterNote("month", "vehicle"))
	return spec, nil
}

// feature renders an area as an inline GeoJSON feature carrying extra fields
// at the top level, where Vega-Lite encodings can reach them.
func feature(a collisions.Area, fields map[string]interface{}) map[string]interface{} {
	row := map[string]interface{}{
		"type":     "Feature",
		"geometry": geojson.NewGeometry(a.Geometry),
		"area_km2": a.AreaKm2,
	}
	for k, v := range fields {
		row[k] = v
	}
	return row
}

const densityField = "density"

// boroughDensity aggregates collisions per borough and divides by area.
// Boroughs without a polygon (Unknown) get an undefined density.
func boroughDensity(records []derive.Record, sel aggregate.Selection, areas []collisions.Area) []aggregate.Bucket {
	byName := collisions.AreaByName(areas)
	return aggregate.WithRatioFunc(byBorough.Run(records, sel), densityField, func(b aggregate.Bucket) aggregate.Ratio {
		a, ok := byName[b.Key(aggregate.Borough)]
		if !ok {
			return aggregate.Ratio{}
		}
		return aggregate.Divide(b.Value(collisionsField), a.AreaKm2)
	})
}

func buildBoroughMap(in Input, sel aggregate.Selection) (*Spec, error) {
	if len(in.Boroughs) == 0 {
		return nil, fmt.Errorf("no borough boundaries loaded")
	}
	param := paramName(aggregate.Borough)
	table := boroughDensity(in.Records, sel, in.Boroughs)

	// A log scale cannot place zero, so boroughs without collisions are
	// drawn by the base layer only.
	densities := map[string]aggregate.Bucket{}
	for _, b := range aggregate.DefinedOnly(table, densityField) {
		if v, _ := b.Ratio(densityField).Float(); v > 0 {
			densities[b.Key(aggregate.Borough)] = b
		}
	}

	var base, shaded []map[string]interface{}
	for _, a := range in.Boroughs {
		base = append(base, feature(a, map[string]interface{}{"borough": a.Name, collisionsField: 0}))
		if b, ok := densities[a.Name]; ok {
			d, _ := b.Ratio(densityField).Float()
			shaded = append(shaded, feature(a, map[string]interface{}{
				"borough":       a.Name,
				collisionsField: b.Value(collisionsField),
				densityField:    d,
			}))
		}
	}

	tooltip := []Channel{
		Tip("borough", "nominal", "Borough"),
		{Field: densityField, Type: "quantitative", Title: "Collisions per km2", Format: ".2f"},
		Tip(collisionsField, "quantitative", "Collisions"),
	}

	return &Spec{
		Title:      Titled("NYC Boroughs", "(filtered by barplots)"),
		Width:      400,
		Height:     350,
		Projection: &Projection{Type: "albersUsa"},
		Layer: []*Spec{
			{
				Data: Inline(base),
				Mark: &Mark{Type: "geoshape", Stroke: "gray"},
				Encoding: &Encoding{
					Color: &Channel{
						Condition: &Condition{Param: param, Value: in.Theme.Background},
						Value:     in.Theme.Muted,
					},
					Tooltip: []Channel{Tip("borough", "nominal", "Borough"), Tip(collisionsField, "quantitative", "Collisions")},
				},
				Params: []Param{selectParam(aggregate.Borough, in.Selection)},
			},
			{
				Data: Inline(shaded),
				Mark: &Mark{Type: "geoshape", Stroke: "gray"},
				Encoding: &Encoding{
					Color: &Channel{
						Condition: &Condition{
							Param:  param,
							Field:  densityField,
							Type:   "quantitative",
							Scale:  &Scale{Scheme: in.Theme.Scheme, Type: "log"},
							Legend: &Legend{Title: []string{"Collisions per km2", "(log scale)"}},
						},
						Value: in.Theme.Muted,
					},
					Tooltip: tooltip,
				},
			},
		},
	}, nil
}

func buildHeatmap(in Input, sel aggregate.Selection) (*Spec, error) {
	// The grid spans every calendar day of the selected months, whatever
	// the other filters leave.
	frame := byCalendar.Run(in.Records, in.Selection.Only(aggregate.Month))
	grid := byCalendar.Complete(byCalendar.Run(in.Records, sel), frame)
	cells := aggregate.Filter(grid, func(b aggregate.Bucket) bool { return b.Value(collisionsField) > 0 })
	peak := aggregate.Top(cells, collisionsField, 1)

	x := func() *Channel {
		return &Channel{
			Field: string(aggregate.Weekday), Type: "ordinal",
			Sort:  derive.WeekdayOrder,
			Scale: &Scale{Domain: derive.WeekdayOrder},
			Axis:  flatAxis("Day of week"),
		}
	}
	y := func() *Channel {
		return &Channel{Field: string(aggregate.Week), Type: "ordinal", Title: "Week of year"}
	}
	param := paramName(aggregate.Weekday)

	return &Spec{
		Title:  Titled("Collisions per Week and Weekday", "(filtered by barplots and map)"),
		Width:  300,
		Height: 300,
		Layer: []*Spec{
			{
				Data: Inline(aggregate.Rows(grid)),
				Mark: &Mark{Type: "rect", Color: in.Theme.Background, Stroke: "grey", StrokeWidth: 0.5},
				Encoding: &Encoding{
					X: x(), Y: y(),
					Tooltip: []Channel{Tip(string(aggregate.Day), "ordinal", "Day"), Tip(collisionsField, "quantitative", "Collisions")},
				},
			},
			{
				Data: Inline(aggregate.Rows(cells)),
				Mark: &Mark{Type: "rect"},
				Encoding: &Encoding{
					X: x(), Y: y(),
					Color:   &Channel{Field: collisionsField, Type: "quantitative", Scale: &Scale{Scheme: in.Theme.Scheme}, Title: "Collisions"},
					Opacity: Selected(param, in.Theme.Opacity.Selected, in.Theme.Opacity.Unselected),
					Tooltip: []Channel{Tip(string(aggregate.Day), "ordinal", "Crash day"), Tip(collisionsField, "quantitative", "Collisions")},
				},
				Params: []Param{selectParam(aggregate.Weekday, in.Selection)},
			},
			{
				Data: Inline(rows(peak, func(_ aggregate.Bucket, row map[string]interface{}) { row["label"] = "Max value" })),
				Mark: &Mark{Type: "text", Text: "*", Color: "white", Dy: 3, Size: 15, Align: "center"},
				Encoding: &Encoding{
					X: x(), Y: y(),
					Tooltip: []Channel{Tip("label", "nominal", " ")},
				},
			},
		},
	}, nil
}

// hourTable is the zero-filled collisions per borough and hour.
func hourTable(records []derive.Record, sel aggregate.Selection) ([]aggregate.Bucket, error) {
	return byHour.ZeroFill(byHour.Run(records, sel), aggregate.Hour, derive.HourDomain())
}

func buildHours(in Input, sel aggregate.Selection) (*Spec, error) {
	table, err := hourTable(in.Records, sel)
	if err != nil {
		return nil, err
	}

	annotate := func(b aggregate.Bucket, row map[string]interface{}) {
		borough := b.Key(aggregate.Borough)
		h, _ := strconv.Atoi(b.Key(aggregate.Hour))
		hour := fmt.Sprintf("%02d:00", h)
		row["crash_hour"] = hour
		row["location_at_hour"] = borough + " at " + hour
		row["highlight"] = highlighted(in.Selection, aggregate.Borough, borough)
	}
	data := rows(table, annotate)
	peak := rows(aggregate.Top(table, collisionsField, 1), func(b aggregate.Bucket, row map[string]interface{}) {
		annotate(b, row)
		row["label"] = "Max value: " + row["location_at_hour"].(string)
	})
	perHour := rows(aggregate.TopPerGroup(table, []aggregate.Dimension{aggregate.Hour}, collisionsField), annotate)

	hourDomain := []int{0, 23}
	x := func() *Channel {
		return &Channel{Field: string(aggregate.Hour), Type: "quantitative", Scale: &Scale{Domain: hourDomain}, Axis: flatAxis("Hour")}
	}
	color := func() *Channel {
		return &Channel{Field: "borough", Type: "nominal", Legend: Null, Scale: boroughScale(in)}
	}
	dimmed := func() *Channel {
		return &Channel{Condition: &Condition{Test: "datum.highlight", Value: in.Theme.Opacity.Selected}, Value: in.Theme.Opacity.Unselected}
	}
	hourParam := "hour_point"

	var hours []map[string]interface{}
	for h := 0; h < 24; h++ {
		hours = append(hours, map[string]interface{}{"hour": h})
	}

	return &Spec{
		Title:  Titled("Collisions per Hour and Location (filtered by barplots and heatmap)"),
		Width:  700,
		Height: 300,
		Data:   Inline(data),
		Layer: []*Spec{
			{
				Mark: &Mark{Type: "line"},
				Encoding: &Encoding{
					X: x(), Y: &Channel{Field: collisionsField, Type: "quantitative", Axis: &Axis{Title: "Collisions"}},
					Color: color(), Opacity: dimmed(), Tooltip: Null,
				},
			},
			{
				// Invisible points carry the tooltip and the hour selection.
				Mark: &Mark{Type: "circle", Size: 50, Opacity: ptr(0.0)},
				Encoding: &Encoding{
					X: x(), Y: Quantitative(collisionsField),
					Tooltip: []Channel{
						Tip("borough", "nominal", "Borough"),
						Tip("crash_hour", "nominal", "Hour"),
						Tip(collisionsField, "quantitative", "Collisions"),
					},
				},
				Params: []Param{{
					Name:   hourParam,
					Select: &Select{Type: "point", Fields: []string{"hour"}, Nearest: true},
					Value:  []map[string]interface{}{{"hour": 12}},
				}},
			},
			{
				Data:      Inline(hours),
				Mark:      &Mark{Type: "rule", Color: "gray", StrokeDash: []float64{10, 10}},
				Transform: []Transform{{"filter": map[string]interface{}{"param": hourParam}}},
				Encoding:  &Encoding{X: x()},
			},
			{
				Data:      Inline(perHour),
				Mark:      &Mark{Type: "circle", Size: 50},
				Transform: []Transform{{"filter": map[string]interface{}{"param": hourParam}}},
				Encoding: &Encoding{
					X: x(), Y: Quantitative(collisionsField), Color: color(), Opacity: dimmed(),
					Tooltip: []Channel{Tip("location_at_hour", "nominal", "Most collisions"), Tip(collisionsField, "quantitative", "Collisions")},
				},
			},
			{
				Data: Inline(peak),
				Mark: &Mark{Type: "text", FontSize: 20, Clip: ptr(false), Angle: 135, Text: "→", Dy: 5, Dx: -15},
				Encoding: &Encoding{
					X: x(), Y: Quantitative(collisionsField), Color: color(), Opacity: dimmed(),
					Tooltip: []Channel{Tip("label", "nominal", " ")},
				},
			},
		},
	}, nil
}

func boroughScale(in Input) *Scale {
	domain := make([]string, 0, len(in.Theme.Boroughs))
	colors := make([]string, 0, len(in.Theme.Boroughs))
	for _, b := range in.Theme.Boroughs {
		domain = append(domain, b.Name)
		colors = append(colors, b.Color)
	}
	return &Scale{Domain: domain, Range: colors}
}

const perCollisionField = "injured_per_collision"

func buildFactors(in Input, sel aggregate.Selection) (*Spec, error) {
	table := aggregate.WithRatio(byFactor.Run(in.Records, sel), perCollisionField, "injured", collisionsField)
	table = aggregate.DefinedOnly(table, perCollisionField)

	data := rows(table, func(b aggregate.Bucket, row map[string]interface{}) {
		row["highlight"] = highlighted(in.Selection, aggregate.Borough, b.Key(aggregate.Borough))
	})

	return &Spec{
		Title:  Titled("Driving infractions and their danger", "(filtered by barplots)"),
		Width:  550,
		Height: 300,
		Data:   Inline(data),
		Mark:   &Mark{Type: "circle", Size: 125, Opacity: ptr(1.0)},
		Encoding: &Encoding{
			X: &Channel{Field: perCollisionField, Type: "quantitative", Axis: &Axis{Title: "Average injuries per collision", TickCount: 10}},
			Y: &Channel{Field: collisionsField, Type: "quantitative", Axis: &Axis{Title: "Collisions"}},
			Color: &Channel{
				Condition: &Condition{
					Param:  paramName(aggregate.OriginalFactor),
					Field:  "borough",
					Type:   "nominal",
					Scale:  boroughScale(in),
					Legend: &Legend{Title: "Borough"},
				},
				Value: in.Theme.Muted,
			},
			Opacity: &Channel{Condition: &Condition{Test: "datum.highlight", Value: in.Theme.Opacity.Selected}, Value: in.Theme.Opacity.Unselected},
			Tooltip: []Channel{
				Tip(string(aggregate.OriginalFactor), "nominal", "Factor"),
				Tip("borough", "nominal", "Borough"),
				Tip(collisionsField, "quantitative", "Collisions"),
				{Field: perCollisionField, Type: "quantitative", Title: "Average injuries per collision", Format: ".2f"},
			},
		},
		Params: []Param{selectParam(aggregate.OriginalFactor, in.Selection)},
	}, nil
}
