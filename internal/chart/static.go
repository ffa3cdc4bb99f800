package chart

import (
	"fmt"
	"math"
	"sort"

	"github.com/marcfranquesa/nyc-collisions/internal/aggregate"
	"github.com/marcfranquesa/nyc-collisions/internal/config"
	"github.com/marcfranquesa/nyc-collisions/internal/derive"
)

// Chart IDs of the static dashboard
const (
	WeekID          = "week"
	DangerID        = "vehicle-danger"
	HourlyID        = "hourly"
	DistrictsID     = "districts"
	ConditionsID    = "weather-conditions"
	FactorShareID   = "factor-share"
	momentField     = "moment"
	percentageField = "percentage"
)

var (
	byPeriodWeekday = aggregate.MustNew([]aggregate.Dimension{aggregate.Period, aggregate.Weekday}, sumValid(collisionsField))
	byPeriodHour    = aggregate.MustNew([]aggregate.Dimension{aggregate.Period, aggregate.Hour}, sumValid(collisionsField))
	byHourOnly      = aggregate.MustNew([]aggregate.Dimension{aggregate.Hour}, sumValid(collisionsField))
	byDistrict      = aggregate.MustNew([]aggregate.Dimension{aggregate.District}, sumValid(collisionsField))
	byVehicleDanger = aggregate.MustNew([]aggregate.Dimension{aggregate.Vehicle},
		sumValid(collisionsField),
		aggregate.SumOf(aggregate.Injured, "injured"),
		aggregate.SumOf(aggregate.Killed, "killed"),
	)
	byVehicleFactor   = aggregate.MustNew([]aggregate.Dimension{aggregate.Vehicle, aggregate.Factor}, sumValid(collisionsField))
	byVehicleOriginal = aggregate.MustNew([]aggregate.Dimension{aggregate.Vehicle, aggregate.OriginalFactor}, sumValid(collisionsField))
)

// Static returns the charts of the before/after comparison dashboard. None of
// them is linked; they render once per dataset.
func Static() []*Chart {
	return []*Chart{
		{ID: DistrictsID, Title: "NYC Community Districts", build: buildDistricts},
		{ID: DangerID, Title: "Vehicle Danger", build: buildDanger},
		{ID: ConditionsID, Title: "Different Weather Conditions", build: buildConditions},
		{ID: WeekID, Title: "Weekdays and Weekends", build: buildWeek},
		{ID: HourlyID, Title: "Collisions by Hour", build: buildHourly},
		{ID: FactorShareID, Title: "Factors Contributing to Collisions", build: buildFactorShare},
	}
}

// periodScale colours the before and after series with their labels.
func periodScale(t *config.Theme) *Scale {
	return &Scale{
		Domain: []string{t.PeriodLabel(derive.PeriodBefore), t.PeriodLabel(derive.PeriodAfter)},
		Range:  []string{t.PeriodColor(derive.PeriodBefore), t.PeriodColor(derive.PeriodAfter)},
	}
}

func withMoment(t *config.Theme) func(aggregate.Bucket, map[string]interface{}) {
	return func(b aggregate.Bucket, row map[string]interface{}) {
		row[momentField] = t.PeriodLabel(b.Key(aggregate.Period))
	}
}

// periodMeans averages a measure per period over buckets.
func periodMeans(t *config.Theme, buckets []aggregate.Bucket) []map[string]interface{} {
	var out []map[string]interface{}
	for _, period := range derive.PeriodOrder {
		part := aggregate.Filter(buckets, func(b aggregate.Bucket) bool { return b.Key(aggregate.Period) == period })
		if len(part) == 0 {
			continue
		}
		out = append(out, map[string]interface{}{
			momentField: t.PeriodLabel(period),
			"mean":      aggregate.MeanOf(part, collisionsField),
		})
	}
	return out
}

func buildWeek(in Input, sel aggregate.Selection) (*Spec, error) {
	table, err := byPeriodWeekday.ZeroFill(byPeriodWeekday.Run(in.Records, sel), aggregate.Weekday, derive.WeekdayOrder)
	if err != nil {
		return nil, err
	}
	_, hi := aggregate.BoundsOf(table, collisionsField)
	yDomain := []float64{0, math.Ceil(hi * 1.05)}

	panel := func(title string, days []string, width int, showAxis bool) *Spec {
		part := aggregate.Filter(table, func(b aggregate.Bucket) bool {
			for _, d := range days {
				if b.Key(aggregate.Weekday) == d {
					return true
				}
			}
			return false
		})
		y := &Axis{Title: "Collisions / Means", Grid: ptr(true)}
		if !showAxis {
			y = &Axis{Labels: ptr(false), Domain: ptr(false), Ticks: ptr(false), Grid: ptr(true)}
		}
		return &Spec{
			Title:  &Title{Text: title, FontSize: 10, FontWeight: 600},
			Width:  width,
			Height: 300,
			Layer: []*Spec{
				{
					Data: Inline(rows(part, withMoment(in.Theme))),
					Mark: &Mark{Type: "bar", Opacity: ptr(in.Theme.Opacity.Secondary)},
					Encoding: &Encoding{
						X:       &Channel{Field: string(aggregate.Weekday), Type: "ordinal", Sort: days, Axis: &Axis{LabelAngle: ptr(0.0)}},
						XOffset: Ordinal(momentField),
						Y:       &Channel{Field: collisionsField, Type: "quantitative", Axis: y, Scale: &Scale{Domain: yDomain}},
						Color:   &Channel{Field: momentField, Type: "ordinal", Scale: periodScale(in.Theme), Legend: &Legend{}},
						Tooltip: []Channel{Tip(momentField, "ordinal", "Period"), Tip(string(aggregate.Weekday), "ordinal", "Day"), Tip(collisionsField, "quantitative", "Collisions")},
					},
				},
				{
					Data: Inline(periodMeans(in.Theme, part)),
					Mark: &Mark{Type: "rule", Opacity: ptr(in.Theme.Opacity.Main)},
					Encoding: &Encoding{
						Y:       &Channel{Field: "mean", Type: "quantitative", Scale: &Scale{Domain: yDomain}},
						Size:    &Channel{Value: 2},
						Color:   &Channel{Field: momentField, Type: "ordinal", Scale: periodScale(in.Theme)},
						Tooltip: []Channel{Tip(momentField, "ordinal", "Period"), {Field: "mean", Type: "quantitative", Title: "Mean", Format: ".0f"}},
					},
				},
			},
		}
	}

	return &Spec{
		HConcat: []*Spec{
			panel("Weekdays", derive.Weekdays, 318, true),
			panel("Weekends", derive.Weekends, 136, false),
		},
	}, nil
}

func buildDanger(in Input, sel aggregate.Selection) (*Spec, error) {
	table := byVehicleDanger.Run(in.Records, sel)
	table = aggregate.WithRatio(table, "injured_per_collision", "injured", collisionsField)
	table = aggregate.WithRatio(table, "killed_per_collision", "killed", collisionsField)
	table = aggregate.Share(table, collisionsField, nil, "pct_collisions")
	table = aggregate.Share(table, "injured", nil, "pct_injured")
	table = aggregate.Share(table, "killed", nil, "pct_killed")
	table = aggregate.DefinedOnly(table, "injured_per_collision")

	lo, hi := aggregate.BoundsOf(table, collisionsField)
	mean := math.Round(aggregate.MeanOf(table, collisionsField))
	legendValues := []float64{lo, mean, hi}
	labelExpr := fmt.Sprintf(
		"datum.value == %v ? datum.label + ' (max)' : datum.value == %v ? datum.label + ' (min)' : datum.label + ' (mean)'",
		hi, lo)

	tooltip := []Channel{
		Tip(string(aggregate.Vehicle), "nominal", "Vehicle"),
		Tip(collisionsField, "quantitative", "Collisions"),
		{Field: "pct_collisions", Type: "quantitative", Title: "% of collisions", Format: ".1f"},
		{Field: "pct_injured", Type: "quantitative", Title: "% of injured", Format: ".1f"},
		{Field: "pct_killed", Type: "quantitative", Title: "% of killed", Format: ".1f"},
		{Field: "injured_per_collision", Type: "quantitative", Title: "Injuries per collision", Format: ".3f"},
		{Field: "killed_per_collision", Type: "quantitative", Title: "Deaths per collision", Format: ".4f"},
	}
	x := func() *Channel {
		return &Channel{Field: "injured_per_collision", Type: "quantitative", Axis: &Axis{Title: "Injuries per collision", TickCount: 10}}
	}
	y := func() *Channel {
		return &Channel{Field: "killed_per_collision", Type: "quantitative", Axis: &Axis{Title: "Deaths per collision"}}
	}

	return &Spec{
		Title:  Titled("Vehicle Danger"),
		Width:  590,
		Height: 300,
		Data:   Inline(aggregate.Rows(table)),
		Layer: []*Spec{
			{
				Mark: &Mark{Type: "circle", Color: in.Theme.PeriodColor(config.PeriodAll)},
				Encoding: &Encoding{
					X: x(), Y: y(),
					Size: &Channel{
						Field: collisionsField, Type: "quantitative",
						Scale:  &Scale{Range: []float64{10, 700}},
						Legend: &Legend{Title: "Total collisions", Values: legendValues, LabelExpr: labelExpr},
					},
					Tooltip: tooltip,
				},
			},
			{
				Mark: &Mark{Type: "text", Align: "right", Dx: -15},
				Encoding: &Encoding{
					X: x(), Y: y(),
					Text: Nominal(string(aggregate.Vehicle)),
					Size: &Channel{Value: 10},
				},
			},
		},
	}, nil
}

func buildHourly(in Input, sel aggregate.Selection) (*Spec, error) {
	table, err := byPeriodHour.ZeroFill(byPeriodHour.Run(in.Records, sel), aggregate.Hour, derive.HourDomain())
	if err != nil {
		return nil, err
	}
	totals, err := byHourOnly.ZeroFill(byHourOnly.Run(in.Records, sel), aggregate.Hour, derive.HourDomain())
	if err != nil {
		return nil, err
	}
	mean := aggregate.MeanOf(totals, collisionsField)

	return &Spec{
		Title:  Titled("Collisions by Hour"),
		Width:  454,
		Height: 250,
		Layer: []*Spec{
			{
				Data: Inline(rows(table, withMoment(in.Theme))),
				Mark: &Mark{Type: "bar", Opacity: ptr(in.Theme.Opacity.Secondary)},
				Encoding: &Encoding{
					X:       &Channel{Field: string(aggregate.Hour), Type: "ordinal", Title: "Hour", Axis: &Axis{LabelAngle: ptr(0.0), TickOffset: -10}},
					Y:       &Channel{Field: collisionsField, Type: "quantitative", Title: "Collisions / Mean"},
					Color:   &Channel{Field: momentField, Type: "ordinal", Scale: periodScale(in.Theme), Legend: &Legend{}},
					Order:   &Channel{Field: momentField, Type: "ordinal", Sort: "ascending"},
					Tooltip: []Channel{Tip(momentField, "ordinal", "Period"), Tip(string(aggregate.Hour), "ordinal", "Hour"), Tip(collisionsField, "quantitative", "Collisions")},
				},
			},
			{
				Data: Inline([]map[string]interface{}{{"mean": mean}}),
				Mark: &Mark{Type: "rule", Opacity: ptr(in.Theme.Opacity.Main), Color: in.Theme.PeriodColor(config.PeriodAll)},
				Encoding: &Encoding{
					Y:       Quantitative("mean"),
					Size:    &Channel{Value: 2},
					Tooltip: []Channel{{Field: "mean", Type: "quantitative", Title: "Mean per hour", Format: ".0f"}},
				},
			},
		},
	}, nil
}

// districtLabel is a text marker placed on the district map.
type districtLabel struct {
	code, label string
	lat, lon    float64
}

func buildDistricts(in Input, sel aggregate.Selection) (*Spec, error) {
	if len(in.Districts) == 0 {
		return nil, fmt.Errorf("no community district boundaries loaded")
	}

	areas := map[string]float64{}
	for _, d := range in.Districts {
		areas[d.Name] = d.AreaKm2
	}
	table := aggregate.WithRatioFunc(byDistrict.Run(in.Records, sel), densityField, func(b aggregate.Bucket) aggregate.Ratio {
		area, ok := areas[b.Key(aggregate.District)]
		if !ok {
			return aggregate.Ratio{}
		}
		return aggregate.Divide(b.Value(collisionsField), area)
	})
	byCode := map[string]aggregate.Bucket{}
	for _, b := range aggregate.DefinedOnly(table, densityField) {
		byCode[b.Key(aggregate.District)] = b
	}

	var shapes []map[string]interface{}
	for _, d := range in.Districts {
		fields := map[string]interface{}{"district": d.Name, collisionsField: 0, densityField: 0.0}
		if b, ok := byCode[d.Name]; ok {
			v, _ := b.Ratio(densityField).Float()
			fields[collisionsField] = b.Value(collisionsField)
			fields[densityField] = v
		}
		shapes = append(shapes, feature(d, fields))
	}

	var labels []map[string]interface{}
	for _, l := range topDistrictLabels(in, table) {
		labels = append(labels, map[string]interface{}{"label": l.label, "district": l.code, "latitude": l.lat, "longitude": l.lon})
	}

	markers := func(vehicle string) []map[string]interface{} {
		var out []map[string]interface{}
		for i := range in.Records {
			r := &in.Records[i]
			if r.VehicleBucket != vehicle || !r.HasLocation() || !sel.Matches(r) {
				continue
			}
			out = append(out, map[string]interface{}{"latitude": *r.Latitude, "longitude": *r.Longitude, "vehicle": vehicle})
		}
		return out
	}
	geo := func() *Encoding {
		return &Encoding{Latitude: Quantitative("latitude"), Longitude: Quantitative("longitude")}
	}

	horse := geo()
	horse.Tooltip = []Channel{Tip("vehicle", "nominal", "Vehicle")}
	gokart := geo()
	gokart.Tooltip = []Channel{Tip("vehicle", "nominal", "Vehicle")}
	text := geo()
	text.Text = Nominal("label")

	return &Spec{
		Title:      Titled("NYC Community Districts"),
		Width:      600,
		Height:     600,
		Projection: &Projection{Type: "albersUsa"},
		Layer: []*Spec{
			{
				Data: Inline(shapes),
				Mark: &Mark{Type: "geoshape"},
				Encoding: &Encoding{
					Color: &Channel{Field: densityField, Type: "quantitative", Scale: &Scale{Scheme: in.Theme.Scheme}, Legend: &Legend{Title: "Collisions per km2"}},
					Tooltip: []Channel{
						Tip("district", "nominal", "District"),
						Tip(collisionsField, "quantitative", "Collisions"),
						{Field: densityField, Type: "quantitative", Title: "Collisions per km2", Format: ".1f"},
					},
				},
			},
			{Data: Inline(markers(derive.VehicleHorse)), Mark: &Mark{Type: "text", Text: derive.VehicleEmoji(derive.VehicleHorse), Size: 18}, Encoding: horse},
			{Data: Inline(markers(derive.VehicleGoKart)), Mark: &Mark{Type: "text", Text: derive.VehicleEmoji(derive.VehicleGoKart), Size: 18}, Encoding: gokart},
			{Data: Inline(labels), Mark: &Mark{Type: "text", Fill: "white", Size: 9}, Encoding: text},
		},
	}, nil
}

// topDistrictLabels returns the labelled districts among the densest ones.
// Positions default to the district centroid.
func topDistrictLabels(in Input, table []aggregate.Bucket) []districtLabel {
	n := in.Theme.TopDistricts
	if n <= 0 {
		n = 4
	}
	names := in.Theme.DistrictLabels()
	centroids := map[string]districtLabel{}
	for _, d := range in.Districts {
		centroids[d.Name] = districtLabel{code: d.Name, lat: d.Centroid.Lat(), lon: d.Centroid.Lon()}
	}

	var out []districtLabel
	for _, b := range aggregate.TopByRatio(table, densityField, n) {
		code := b.Key(aggregate.District)
		name, ok := names[code]
		if !ok {
			continue
		}
		l := centroids[code]
		l.label = name.Label
		if name.Latitude != nil && name.Longitude != nil {
			l.lat, l.lon = *name.Latitude, *name.Longitude
		}
		out = append(out, l)
	}
	return out
}

func buildConditions(in Input, sel aggregate.Selection) (*Spec, error) {
	records := in.Records
	if !sel.Empty() {
		records = nil
		for i := range in.Records {
			if sel.Matches(&in.Records[i]) {
				records = append(records, in.Records[i])
			}
		}
	}

	var data []map[string]interface{}
	for _, spec := range aggregate.DefaultBins {
		for _, r := range aggregate.ConditionRates(records, in.Weather, spec) {
			rate, ok := r.Rate.Float()
			if !ok {
				continue
			}
			data = append(data, map[string]interface{}{
				"weather":    r.Label,
				"condition":  r.Condition,
				"low":        r.Low,
				"high":       r.High,
				"collisions": r.Collisions,
				"hours":      r.Hours,
				"rate":       rate,
			})
		}
	}

	labels := make([]string, len(aggregate.DefaultBins))
	for i, b := range aggregate.DefaultBins {
		labels[i] = b.Label
	}

	return &Spec{
		Title:  Titled("Different Weather Conditions"),
		Width:  481,
		Height: 300,
		Data:   Inline(data),
		Mark:   &Mark{Type: "rect"},
		Encoding: &Encoding{
			X: &Channel{
				Field: "condition", Type: "ordinal", Sort: aggregate.Conditions,
				Axis: &Axis{Title: "Condition", LabelAngle: ptr(0.0), Grid: ptr(false)},
			},
			Y:     &Channel{Field: "weather", Type: "ordinal", Sort: labels, Axis: &Axis{Title: "Weather"}},
			Color: &Channel{Field: "rate", Type: "quantitative", Scale: &Scale{Scheme: in.Theme.Scheme}, Legend: &Legend{Title: "Collisions per Hour"}},
			Tooltip: []Channel{
				Tip("weather", "nominal", "Reading"),
				Tip("condition", "ordinal", "Condition"),
				{Field: "low", Type: "quantitative", Title: "From", Format: ".2f"},
				{Field: "high", Type: "quantitative", Title: "To", Format: ".2f"},
				{Field: "rate", Type: "quantitative", Title: "Collisions per hour", Format: ".2f"},
			},
		},
	}, nil
}

func buildFactorShare(in Input, sel aggregate.Selection) (*Spec, error) {
	coarse := aggregate.Share(byVehicleFactor.Run(in.Records, sel), collisionsField, []aggregate.Dimension{aggregate.Vehicle}, percentageField)
	infractions := sel.With(aggregate.Factor, derive.FactorDrivingInfraction)
	fine := aggregate.Share(byVehicleOriginal.Run(in.Records, infractions), collisionsField, []aggregate.Dimension{aggregate.Vehicle}, percentageField)

	heatmap := func(table []aggregate.Bucket, dim aggregate.Dimension, title string, legend interface{}, yTitle interface{}) *Spec {
		table = aggregate.DefinedOnly(table, percentageField)
		seen := map[string]bool{}
		var xs []string
		for _, b := range table {
			if v := b.Key(dim); !seen[v] {
				seen[v] = true
				xs = append(xs, v)
			}
		}
		if order := dim.Order(); order != nil {
			xs = xs[:0]
			for _, v := range order {
				if seen[v] {
					xs = append(xs, v)
				}
			}
		} else {
			sort.Strings(xs)
		}
		return &Spec{
			Title:  Titled(title),
			Width:  522,
			Height: 300,
			Data:   Inline(aggregate.Rows(table)),
			Mark:   &Mark{Type: "rect"},
			Encoding: &Encoding{
				X:     &Channel{Field: string(dim), Type: "ordinal", Sort: xs, Axis: &Axis{Title: "Factor", LabelAngle: ptr(30.0)}},
				Y:     &Channel{Field: string(aggregate.Vehicle), Type: "ordinal", Sort: derive.VehicleOrder, Axis: &Axis{Title: yTitle}},
				Color: &Channel{Field: percentageField, Type: "quantitative", Scale: &Scale{Scheme: in.Theme.FactorScheme}, Legend: &Legend{Title: legend}},
				Tooltip: []Channel{
					Tip(string(aggregate.Vehicle), "nominal", "Vehicle"),
					Tip(string(dim), "nominal", "Factor"),
					Tip(collisionsField, "quantitative", "Collisions"),
					{Field: percentageField, Type: "quantitative", Title: "% of the vehicle's collisions", Format: ".1f"},
				},
			},
		}
	}

	return &Spec{
		HConcat: []*Spec{
			heatmap(coarse, aggregate.Factor, "Factors Contributing to Collisions", "Percentage of Collisions", "Vehicle"),
			heatmap(fine, aggregate.OriginalFactor, "Driving Infractions contributing to Collisions",
				[]string{"Percentage of Collisions due", "to Driving Infractions"}, Null),
		},
		Resolve: &Resolve{Legend: map[string]string{"color": "independent"}, Scale: map[string]string{"color": "independent"}},
	}, nil
}
