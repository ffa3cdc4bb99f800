package aggregate

import (
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"testing"

	"github.com/marcfranquesa/nyc-collisions/internal/collisions"
	"github.com/marcfranquesa/nyc-collisions/internal/derive"
)

func rec(month, vehicle, weather string, valid int) derive.Record {
	r := derive.Record{
		Month:         month,
		VehicleBucket: vehicle,
		WeatherBucket: weather,
		BoroughName:   derive.Unknown,
		Weekday:       "Mon",
	}
	r.Valid = valid
	return r
}

func toySet() []derive.Record {
	return []derive.Record{
		rec("June", derive.VehicleTaxi, derive.WeatherClear, 1),
		rec("June", derive.VehicleTaxi, derive.WeatherClear, 1),
		rec("July", derive.VehicleAmbulance, derive.WeatherRainy, 0),
	}
}

func byKey(buckets []Bucket, d Dimension, measure string) map[string]float64 {
	out := map[string]float64{}
	for _, b := range buckets {
		out[b.Key(d)] = b.Value(measure)
	}
	return out
}

func TestRunToySet(t *testing.T) {
	p := MustNew([]Dimension{Month}, SumOf(Valid, "collisions"))

	got := byKey(p.Run(toySet(), Selection{}), Month, "collisions")
	if len(got) != 2 || got["June"] != 2 || got["July"] != 0 {
		t.Errorf("unfiltered = %v, want {June: 2, July: 0}", got)
	}

	got = byKey(p.Run(toySet(), Select(Vehicle, derive.VehicleTaxi)), Month, "collisions")
	if len(got) != 1 || got["June"] != 2 {
		t.Errorf("vehicle=Taxi = %v, want {June: 2}", got)
	}
}

func TestRunOrder(t *testing.T) {
	records := []derive.Record{
		rec("July", derive.VehicleTaxi, derive.WeatherClear, 1),
		rec("June", derive.Unknown, derive.WeatherClear, 1),
		rec("June", derive.VehicleHorse, derive.WeatherClear, 1),
		rec("August", derive.VehicleTaxi, derive.WeatherClear, 1),
	}
	p := MustNew([]Dimension{Month, Vehicle}, SumOf(Valid, ""))
	out := p.Run(records, Selection{})

	want := [][2]string{
		{"June", derive.VehicleHorse},
		{"June", derive.Unknown},
		{"July", derive.VehicleTaxi},
		{"August", derive.VehicleTaxi},
	}
	if len(out) != len(want) {
		t.Fatalf("got %d buckets, want %d", len(out), len(want))
	}
	for i, w := range want {
		if out[i].Key(Month) != w[0] || out[i].Key(Vehicle) != w[1] {
			t.Errorf("bucket %d = (%s, %s), want %v", i, out[i].Key(Month), out[i].Key(Vehicle), w)
		}
	}
}

func TestRunEmpty(t *testing.T) {
	p := MustNew([]Dimension{Month}, SumOf(Valid, ""))
	if out := p.Run(nil, Selection{}); len(out) != 0 {
		t.Errorf("empty input gave %d buckets", len(out))
	}
}

func TestReductions(t *testing.T) {
	records := toySet()
	records[0].Injured = 3
	records[1].Injured = 1

	p := MustNew([]Dimension{Month},
		SumOf(Injured, "injured"),
		CountOf(Valid, "rows"),
		MaxOf(Injured, "worst"),
	)
	out := p.Run(records, Selection{})
	june := out[0]
	if june.Key(Month) != "June" {
		t.Fatalf("first bucket is %s", june.Key(Month))
	}
	if june.Value("injured") != 4 || june.Value("rows") != 2 || june.Value("worst") != 3 {
		t.Errorf("June row = %v", june.Row())
	}
}

func TestSumConservation(t *testing.T) {
	records := toySet()
	records = append(records,
		rec("June", derive.VehicleHorse, derive.WeatherRainy, 1),
		rec("August", derive.Unknown, derive.Unknown, 1),
		rec("July", derive.VehicleTaxi, derive.WeatherCloudy, 0),
	)

	dimSets := [][]Dimension{
		nil,
		{Month},
		{Vehicle},
		{Month, Vehicle, Weather},
	}
	selections := []Selection{
		{},
		Select(Vehicle, derive.VehicleTaxi),
		Select(Month, "June", "July"),
		Select(Weather, derive.WeatherRainy).With(Vehicle, derive.VehicleHorse),
		Select(Month, "December"),
	}

	for _, dims := range dimSets {
		p := MustNew(dims, SumOf(Valid, "collisions"))
		for _, sel := range selections {
			want := 0.0
			for i := range records {
				if sel.Matches(&records[i]) && records[i].Valid == 1 {
					want++
				}
			}
			if got := Total(p.Run(records, sel), "collisions"); got != want {
				t.Errorf("dims=%v sel=%s: total %v, want %v", dims, sel, got, want)
			}
		}
	}
}

func TestNewFailsFast(t *testing.T) {
	tests := []struct {
		name     string
		dims     []Dimension
		measures []Measure
		want     error
	}{
		{"unknown dimension", []Dimension{"colour"}, []Measure{SumOf(Valid, "")}, ErrUnknownDimension},
		{"unknown field", []Dimension{Month}, []Measure{SumOf("speed", "")}, ErrUnknownField},
		{"unknown reduction", []Dimension{Month}, []Measure{{Field: Valid, Reduction: "median"}}, ErrUnknownReduction},
		{"no measures", []Dimension{Month}, nil, ErrNoMeasures},
		{"duplicate dimension", []Dimension{Month, Month}, []Measure{SumOf(Valid, "")}, ErrDuplicate},
		{"measure shadows dimension", []Dimension{Month}, []Measure{SumOf(Valid, "month")}, ErrDuplicate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.dims, tc.measures...)
			if !errors.Is(err, tc.want) {
				t.Errorf("New() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseMeasure(t *testing.T) {
	m, err := ParseMeasure("sum:valid")
	if err != nil {
		t.Fatal(err)
	}
	if m.Name() != "sum_valid" {
		t.Errorf("name = %q", m.Name())
	}
	m, err = ParseMeasure("max:killed:deaths")
	if err != nil || m.Name() != "deaths" || m.Reduction != Max {
		t.Errorf("ParseMeasure with alias = %+v, %v", m, err)
	}
	if _, err := ParseMeasure("avg:valid"); !errors.Is(err, ErrUnknownReduction) {
		t.Errorf("expected ErrUnknownReduction, got %v", err)
	}
	if _, err := ParseMeasure("valid"); err == nil {
		t.Error("expected an error for a measure without reduction")
	}
}

func TestSelectionImmutable(t *testing.T) {
	base := Select(Month, "June")
	derived := base.With(Vehicle, derive.VehicleTaxi)
	_ = derived.Without(Month)

	if got := base.Values(Vehicle); got != nil {
		t.Errorf("With mutated the receiver: vehicle = %v", got)
	}
	if got := derived.Values(Month); len(got) != 1 || got[0] != "June" {
		t.Errorf("Without mutated the receiver: month = %v", got)
	}
	if only := derived.Only(Vehicle); only.Values(Month) != nil {
		t.Errorf("Only kept month: %v", only)
	}
}

func TestParseSelection(t *testing.T) {
	q := url.Values{
		"month":    {"June,July"},
		"vehicle":  {"Taxi", "Horse"},
		"measures": {"sum:valid"},
		"weather":  {""},
	}
	sel := ParseSelection(q)

	if got := sel.Values(Month); len(got) != 2 || got[0] != "June" || got[1] != "July" {
		t.Errorf("month = %v", got)
	}
	if got := sel.Values(Vehicle); len(got) != 2 {
		t.Errorf("vehicle = %v", got)
	}
	if dims := sel.Dimensions(); len(dims) != 2 {
		t.Errorf("constrained dimensions = %v, want month and vehicle", dims)
	}

	back := ParseSelection(sel.Query())
	if back.String() != sel.String() {
		t.Errorf("round trip %q != %q", back, sel)
	}
}

func TestZeroFillHours(t *testing.T) {
	records := []derive.Record{rec("June", derive.VehicleTaxi, derive.WeatherClear, 1)}
	records[0].Hour = 17
	p := MustNew([]Dimension{Hour}, SumOf(Valid, "collisions"))

	for _, sel := range []Selection{{}, Select(Month, "December")} {
		out, err := p.ZeroFill(p.Run(records, sel), Hour, derive.HourDomain())
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != 24 {
			t.Fatalf("sel=%s: %d rows, want 24", sel, len(out))
		}
		for h, b := range out {
			if b.Row()["hour"] != h {
				t.Errorf("row %d has hour %v", h, b.Row()["hour"])
			}
		}
	}
}

func TestZeroFillWeekdaysPerGroup(t *testing.T) {
	records := []derive.Record{
		rec("June", derive.VehicleTaxi, derive.WeatherClear, 1),
		rec("June", derive.VehicleTaxi, derive.WeatherClear, 1),
	}
	records[0].Period, records[0].Weekday = derive.PeriodBefore, "Tue"
	records[1].Period, records[1].Weekday = derive.PeriodAfter, "Sun"

	p := MustNew([]Dimension{Period, Weekday}, SumOf(Valid, "collisions"))
	out, err := p.ZeroFill(p.Run(records, Selection{}), Weekday, derive.WeekdayOrder)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 14 {
		t.Fatalf("%d rows, want 7 weekdays for each of 2 periods", len(out))
	}
	if Total(out, "collisions") != 2 {
		t.Errorf("zero fill changed the total: %v", Total(out, "collisions"))
	}
	if out[0].Key(Period) != derive.PeriodBefore || out[0].Key(Weekday) != "Mon" {
		t.Errorf("first row = %v", out[0].Row())
	}
}

func TestZeroFillNotGrouped(t *testing.T) {
	p := MustNew([]Dimension{Month}, SumOf(Valid, ""))
	if _, err := p.ZeroFill(nil, Hour, derive.HourDomain()); !errors.Is(err, ErrNotGrouped) {
		t.Errorf("expected ErrNotGrouped, got %v", err)
	}
}

func TestComplete(t *testing.T) {
	records := toySet()
	p := MustNew([]Dimension{Month}, SumOf(Valid, "collisions"))

	frame := p.Run(records, Selection{})
	filtered := p.Run(records, Select(Vehicle, derive.VehicleAmbulance))
	out := p.Complete(filtered, frame)

	got := byKey(out, Month, "collisions")
	if len(got) != 2 || got["June"] != 0 || got["July"] != 0 {
		t.Errorf("Complete = %v, want June and July at zero", got)
	}
}

func TestRankDeterministic(t *testing.T) {
	records := []derive.Record{
		rec("June", derive.VehicleTaxi, derive.WeatherClear, 1),
		rec("June", derive.VehicleHorse, derive.WeatherClear, 1),
		rec("July", derive.VehicleTaxi, derive.WeatherClear, 0),
	}
	p := MustNew([]Dimension{Month, Vehicle}, SumOf(Valid, "collisions"))
	table := p.Run(records, Selection{})

	first := TopPerGroup(table, []Dimension{Month}, "collisions")
	for i := 0; i < 10; i++ {
		again := TopPerGroup(table, []Dimension{Month}, "collisions")
		if len(again) != len(first) || again[0].Key(Vehicle) != first[0].Key(Vehicle) {
			t.Fatalf("TopPerGroup changed between calls: %v vs %v", Rows(again), Rows(first))
		}
	}

	// June is a tie broken by table order (Taxi sorts before Horse); July is all zero.
	if len(first) != 1 || first[0].Key(Month) != "June" || first[0].Key(Vehicle) != derive.VehicleTaxi {
		t.Errorf("TopPerGroup = %v", Rows(first))
	}

	ranked := Rank(table, []Dimension{Month}, "collisions")
	if len(ranked) != 2 || ranked[0].Rank != 1 || ranked[1].Rank != 2 {
		t.Errorf("ranks = %+v", ranked)
	}
}

func TestTop(t *testing.T) {
	records := toySet()
	records = append(records, rec("August", derive.VehicleTaxi, derive.WeatherClear, 1))
	p := MustNew([]Dimension{Month}, SumOf(Valid, "collisions"))

	top := Top(p.Run(records, Selection{}), "collisions", 1)
	if len(top) != 1 || top[0].Key(Month) != "June" {
		t.Errorf("Top = %v", Rows(top))
	}
}

func TestRatioUndefined(t *testing.T) {
	p := MustNew([]Dimension{Month}, SumOf(Injured, "injured"), SumOf(Valid, "collisions"))
	records := toySet()
	records[0].Injured = 2

	out := WithRatio(p.Run(records, Selection{}), "per_collision", "injured", "collisions")
	for _, b := range out {
		v, ok := b.Ratio("per_collision").Float()
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s ratio is %v", b.Key(Month), v)
		}
		switch b.Key(Month) {
		case "June":
			if !ok || v != 1 {
				t.Errorf("June ratio = %v, %v; want 1", v, ok)
			}
		case "July":
			if ok {
				t.Errorf("July has zero collisions but ratio %v is defined", v)
			}
		}
	}

	data, err := json.Marshal(Rows(out))
	if err != nil {
		t.Fatalf("rows with undefined ratios must encode: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, row := range decoded {
		if row["month"] == "July" && row["per_collision"] != nil {
			t.Errorf("July ratio encoded as %v, want null", row["per_collision"])
		}
	}

	if len(DefinedOnly(out, "per_collision")) != 1 {
		t.Error("DefinedOnly should keep only June")
	}
}

func TestRatioJSON(t *testing.T) {
	data, _ := json.Marshal(struct {
		A Ratio `json:"a"`
		B Ratio `json:"b"`
	}{Divide(1, 4), Divide(1, 0)})
	if string(data) != `{"a":0.25,"b":null}` {
		t.Errorf("encoded %s", data)
	}
}

func TestDensityPerArea(t *testing.T) {
	var records []derive.Record
	for i := 0; i < 20; i++ {
		r := rec("June", derive.VehicleTaxi, derive.WeatherClear, 1)
		r.BoroughName = "A"
		records = append(records, r)
	}
	for i := 0; i < 5; i++ {
		r := rec("June", derive.VehicleTaxi, derive.WeatherClear, 1)
		r.BoroughName = "B"
		records = append(records, r)
	}
	areas := map[string]float64{"A": 10, "B": 5}

	p := MustNew([]Dimension{Borough}, SumOf(Valid, "collisions"))
	out := WithRatioFunc(p.Run(records, Selection{}), "density", func(b Bucket) Ratio {
		return Divide(b.Value("collisions"), areas[b.Key(Borough)])
	})

	want := map[string]float64{"A": 2.0, "B": 1.0}
	for _, b := range out {
		v, ok := b.Ratio("density").Float()
		if !ok || v != want[b.Key(Borough)] {
			t.Errorf("%s density = %v, want %v", b.Key(Borough), v, want[b.Key(Borough)])
		}
	}
}

func TestShare(t *testing.T) {
	records := []derive.Record{
		rec("June", derive.VehicleTaxi, derive.WeatherClear, 1),
		rec("June", derive.VehicleTaxi, derive.WeatherRainy, 1),
		rec("June", derive.VehicleTaxi, derive.WeatherRainy, 1),
		rec("June", derive.VehicleHorse, derive.WeatherRainy, 1),
	}
	p := MustNew([]Dimension{Vehicle, Weather}, SumOf(Valid, "collisions"))
	out := Share(p.Run(records, Selection{}), "collisions", []Dimension{Vehicle}, "pct")

	for _, b := range out {
		v, _ := b.Ratio("pct").Float()
		if b.Key(Vehicle) == derive.VehicleHorse && v != 100 {
			t.Errorf("horse share = %v", v)
		}
		if b.Key(Vehicle) == derive.VehicleTaxi && b.Key(Weather) == derive.WeatherRainy && math.Abs(v-200.0/3) > 1e-9 {
			t.Errorf("taxi rainy share = %v", v)
		}
	}
}

func TestMeanAndBounds(t *testing.T) {
	p := MustNew([]Dimension{Month}, SumOf(Valid, "collisions"))
	table := p.Run(toySet(), Selection{})
	if m := MeanOf(table, "collisions"); m != 1 {
		t.Errorf("mean = %v, want 1", m)
	}
	if lo, hi := BoundsOf(table, "collisions"); lo != 0 || hi != 2 {
		t.Errorf("bounds = %v, %v", lo, hi)
	}
	if MeanOf(nil, "collisions") != 0 {
		t.Error("mean of an empty table should be 0")
	}
}

func TestDomain(t *testing.T) {
	got := Domain(toySet(), Month, Selection{})
	if len(got) != 2 || got[0] != "June" || got[1] != "July" {
		t.Errorf("Domain = %v", got)
	}
}

func f(v float64) *float64 { return &v }

func TestConditionRates(t *testing.T) {
	samples := []collisions.WeatherSample{
		{WindKnots: f(0)}, {WindKnots: f(0)},
		{WindKnots: f(3)}, {WindKnots: f(6)}, {WindKnots: f(9)}, {WindKnots: f(12)},
		{WindKnots: nil},
	}
	withWind := func(v *float64, valid int) derive.Record {
		r := rec("June", derive.VehicleTaxi, derive.WeatherClear, valid)
		r.WindKnots = v
		return r
	}
	records := []derive.Record{
		withWind(f(0), 1), withWind(f(0), 1), withWind(f(0), 1), withWind(f(0), 1),
		withWind(f(4), 1),
		withWind(f(20), 1), // above the weather range, lands in the top bin
		withWind(f(4), 0),
		withWind(nil, 1),
	}

	rates := ConditionRates(records, samples, DefaultBins[0])
	if len(rates) != 4 {
		t.Fatalf("%d bins, want 4", len(rates))
	}

	want := []struct {
		condition  string
		low, high  float64
		collisions float64
		hours      int
		rate       float64
	}{
		{"Perfect", 0, 0, 4, 2, 2},
		{"Moderate", 3, 6, 1, 2, 0.5},
		{"Bad", 6, 9, 0, 1, 0},
		{"Terrible", 9, 12, 1, 1, 1},
	}
	for i, w := range want {
		r := rates[i]
		v, ok := r.Rate.Float()
		if r.Condition != w.condition || r.Low != w.low || r.High != w.high ||
			r.Collisions != w.collisions || r.Hours != w.hours || !ok || v != w.rate {
			t.Errorf("bin %d = %+v (rate %v), want %+v", i, r, v, w)
		}
	}
}

func TestConditionRatesDescendingAndEmpty(t *testing.T) {
	vis := DefaultBins[2]
	bins := vis.Bins([]float64{16.09344, 1, 4, 7, 10})
	if bins[0].Condition != "Perfect" || bins[1].Low != 7 || bins[3].High != 4 {
		t.Errorf("visibility bins = %+v", bins)
	}

	rates := ConditionRates([]derive.Record{rec("June", "", "", 1)}, nil, vis)
	if len(rates) != 1 || rates[0].Rate.Defined() {
		t.Errorf("no weather hours should give one undefined bin, got %+v", rates)
	}
}
