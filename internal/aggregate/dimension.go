package aggregate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/marcfranquesa/nyc-collisions/internal/derive"
)

// Configuration errors. They are programmer errors and surface when a
// pipeline is constructed, never while it runs.
var (
	ErrUnknownDimension = errors.New("unknown dimension")
	ErrUnknownField     = errors.New("unknown field")
	ErrUnknownReduction = errors.New("unknown reduction")
	ErrNoMeasures       = errors.New("pipeline needs at least one measure")
	ErrDuplicate        = errors.New("duplicate name")
	ErrNotGrouped       = errors.New("dimension is not grouped by this pipeline")
)

// Dimension names a categorical field of a derived record.
type Dimension string

const (
	Month          Dimension = "month"
	Vehicle        Dimension = "vehicle"
	Weather        Dimension = "weather"
	Borough        Dimension = "borough"
	District       Dimension = "district"
	Weekday        Dimension = "weekday"
	Week           Dimension = "week"
	Day            Dimension = "day"
	Hour           Dimension = "hour"
	Factor         Dimension = "factor"
	OriginalFactor Dimension = "original_factor"
	Period         Dimension = "period"
)

type dimensionInfo struct {
	value   func(r *derive.Record) string
	order   []string // canonical domain order, nil when lexical
	numeric bool     // sort and emit as integers
}

var dimensions = map[Dimension]dimensionInfo{
	Month:          {value: func(r *derive.Record) string { return r.Month }, order: derive.MonthOrder},
	Vehicle:        {value: func(r *derive.Record) string { return r.VehicleBucket }, order: derive.VehicleOrder},
	Weather:        {value: func(r *derive.Record) string { return r.WeatherBucket }, order: derive.WeatherOrder},
	Borough:        {value: func(r *derive.Record) string { return r.BoroughName }, order: derive.BoroughOrder},
	District:       {value: func(r *derive.Record) string { return r.District }},
	Weekday:        {value: func(r *derive.Record) string { return r.Weekday }, order: derive.WeekdayOrder},
	Week:           {value: func(r *derive.Record) string { return strconv.Itoa(r.Week) }, numeric: true},
	Day:            {value: func(r *derive.Record) string { return r.Day }},
	Hour:           {value: func(r *derive.Record) string { return strconv.Itoa(r.Hour) }, numeric: true},
	Factor:         {value: func(r *derive.Record) string { return r.FactorBucket }, order: derive.FactorOrder},
	OriginalFactor: {value: func(r *derive.Record) string { return originalFactor(r) }},
	Period:         {value: func(r *derive.Record) string { return r.Period }, order: derive.PeriodOrder},
}

func originalFactor(r *derive.Record) string {
	if r.Factor == "" {
		return derive.FactorUnspecified
	}
	return r.Factor
}

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.TrimSpace(strings.ToLower(s)))
	if _, ok := dimensions[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
	}
	return d, nil
}

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	_, ok := dimensions[d]
	return ok
}

// Value extracts the dimension value of a record.
func (d Dimension) Value(r *derive.Record) string {
	return dimensions[d].value(r)
}

// Order returns the canonical domain order of d, or nil when d sorts lexically.
func (d Dimension) Order() []string {
	return dimensions[d].order
}

// Numeric reports whether d holds integers (hour, week).
func (d Dimension) Numeric() bool {
	return dimensions[d].numeric
}

// Dimensions lists every known dimension name.
func Dimensions() []Dimension {
	return []Dimension{Month, Vehicle, Weather, Borough, District, Weekday, Week, Day, Hour, Factor, OriginalFactor, Period}
}

// less orders two values of d: canonical order first, unlisted values after
// in lexical order, integers numerically.
func (d Dimension) less(a, b string) bool {
	info := dimensions[d]
	if info.numeric {
		x, errX := strconv.Atoi(a)
		y, errY := strconv.Atoi(b)
		if errX == nil && errY == nil {
			return x < y
		}
	}
	if info.order != nil {
		ia, ib := indexOf(info.order, a), indexOf(info.order, b)
		if ia != ib {
			return ia < ib
		}
	}
	return a < b
}

func indexOf(order []string, v string) int {
	for i, o := range order {
		if o == v {
			return i
		}
	}
	return len(order)
}

// Field names a numeric field of a derived record.
type Field string

const (
	Valid   Field = "valid"
	Injured Field = "injured"
	Killed  Field = "killed"
)

var fields = map[Field]func(r *derive.Record) float64{
	Valid:   func(r *derive.Record) float64 { return float64(r.Valid) },
	Injured: func(r *derive.Record) float64 { return float64(r.Injured) },
	Killed:  func(r *derive.Record) float64 { return float64(r.Killed) },
}

// Reduction is how a measure reduces a field over a bucket.
type Reduction string

const (
	Sum   Reduction = "sum"
	Count Reduction = "count"
	Max   Reduction = "max"
)

// Measure is a (field, reduction) pair with an output name.
type Measure struct {
	Field     Field
	Reduction Reduction
	As        string // defaults to "<reduction>_<field>"
}

// Name returns the output column of the measure.
func (m Measure) Name() string {
	if m.As != "" {
		return m.As
	}
	return string(m.Reduction) + "_" + string(m.Field)
}

// SumOf, CountOf and MaxOf build measures.
func SumOf(f Field, as string) Measure   { return Measure{Field: f, Reduction: Sum, As: as} }
func CountOf(f Field, as string) Measure { return Measure{Field: f, Reduction: Count, As: as} }
func MaxOf(f Field, as string) Measure   { return Measure{Field: f, Reduction: Max, As: as} }

// ParseMeasure parses "reduction:field" or "reduction:field:as".
func ParseMeasure(s string) (Measure, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Measure{}, fmt.Errorf("measure %q: want reduction:field[:as]", s)
	}
	m := Measure{Reduction: Reduction(strings.ToLower(parts[0])), Field: Field(strings.ToLower(parts[1]))}
	if len(parts) == 3 {
		m.As = parts[2]
	}
	if err := m.validate(); err != nil {
		return Measure{}, err
	}
	return m, nil
}

func (m Measure) validate() error {
	if _, ok := fields[m.Field]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, m.Field)
	}
	switch m.Reduction {
	case Sum, Count, Max:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownReduction, m.Reduction)
	}
}
