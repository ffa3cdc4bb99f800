package aggregate

import (
	"github.com/aclements/go-moremath/stats"

	"github.com/marcfranquesa/nyc-collisions/internal/collisions"
	"github.com/marcfranquesa/nyc-collisions/internal/derive"
)

// Conditions labels the base bin followed by the equal-width bins, from best
// to worst driving conditions.
var Conditions = []string{"Perfect", "Moderate", "Bad", "Terrible"}

// BinSpec describes how one weather reading is binned. Values equal to Base
// form the "Perfect" bin; the rest is split into equal-width bins. Descending
// orders the remaining bins from high to low values, for readings where larger
// is better (visibility).
type BinSpec struct {
	Reading    collisions.Reading
	Label      string
	Base       float64
	Descending bool
}

// DefaultBins are the three readings of the weather-condition chart. 16.09344
// km (10 miles) is the visibility ceiling reported by ASOS stations.
var DefaultBins = []BinSpec{
	{Reading: collisions.ReadingWind, Label: "Wind", Base: 0},
	{Reading: collisions.ReadingPrecip, Label: "Precipitation", Base: 0},
	{Reading: collisions.ReadingVisibility, Label: "Visibility", Base: 16.09344, Descending: true},
}

// Bin is a closed value range [Low, High] assigned to a condition.
type Bin struct {
	Condition string  `json:"condition"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	base      bool
}

// Bins computes the base bin plus len(Conditions)-1 equal-width bins from the
// non-base values of xs. With no non-base values only the base bin is returned.
func (s BinSpec) Bins(xs []float64) []Bin {
	bins := []Bin{{Condition: Conditions[0], Low: s.Base, High: s.Base, base: true}}

	var rest []float64
	for _, x := range xs {
		if x != s.Base {
			rest = append(rest, x)
		}
	}
	if len(rest) == 0 {
		return bins
	}

	n := len(Conditions) - 1
	lo, hi := stats.Bounds(rest)
	width := (hi - lo) / float64(n)

	edges := make([]Bin, n)
	for i := range edges {
		edges[i] = Bin{Low: lo + float64(i)*width, High: lo + float64(i+1)*width}
	}
	edges[n-1].High = hi
	if s.Descending {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			edges[i], edges[j] = edges[j], edges[i]
		}
	}
	for i := range edges {
		edges[i].Condition = Conditions[i+1]
	}
	return append(bins, edges...)
}

// Assign returns the index of the bin holding x. Values outside the outer
// edges go to the nearest bin, and shared edges go to the lower-value bin.
// It returns -1 when no bin can hold x.
func Assign(bins []Bin, x float64) int {
	if len(bins) == 0 {
		return -1
	}
	if bins[0].base && x == bins[0].Low {
		return 0
	}
	if len(bins) == 1 {
		return -1
	}

	best, bestLow := -1, 0.0
	lowest, highest := -1, -1
	for i := 1; i < len(bins); i++ {
		b := bins[i]
		if lowest < 0 || b.Low < bins[lowest].Low {
			lowest = i
		}
		if highest < 0 || b.High > bins[highest].High {
			highest = i
		}
		if x >= b.Low && x <= b.High && (best < 0 || b.Low < bestLow) {
			best, bestLow = i, b.Low
		}
	}
	switch {
	case best >= 0:
		return best
	case x < bins[lowest].Low:
		return lowest
	default:
		return highest
	}
}

// ConditionRate is the collision rate of one bin of one reading.
type ConditionRate struct {
	Reading    string  `json:"reading"`
	Label      string  `json:"label"`
	Condition  string  `json:"condition"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Collisions float64 `json:"collisions"`
	Hours      int     `json:"hours"`
	Rate       Ratio   `json:"rate"` // collisions per weather hour
}

// ConditionRates counts valid collisions and weather samples per bin and
// divides them. Bin edges come from the weather samples and are applied to
// both series. Records or samples missing the reading are skipped. A bin with
// no weather hours has an undefined rate.
func ConditionRates(records []derive.Record, samples []collisions.WeatherSample, spec BinSpec) []ConditionRate {
	var xs []float64
	for i := range samples {
		if v := samples[i].Value(spec.Reading); v != nil {
			xs = append(xs, *v)
		}
	}

	bins := spec.Bins(xs)
	hours := make([]int, len(bins))
	for _, x := range xs {
		if i := Assign(bins, x); i >= 0 {
			hours[i]++
		}
	}

	counts := make([]float64, len(bins))
	for i := range records {
		r := &records[i]
		v := r.Value(spec.Reading)
		if v == nil {
			continue
		}
		if j := Assign(bins, *v); j >= 0 {
			counts[j] += float64(r.Valid)
		}
	}

	out := make([]ConditionRate, len(bins))
	for i, b := range bins {
		out[i] = ConditionRate{
			Reading:    string(spec.Reading),
			Label:      spec.Label,
			Condition:  b.Condition,
			Low:        b.Low,
			High:       b.High,
			Collisions: counts[i],
			Hours:      hours[i],
			Rate:       Divide(counts[i], float64(hours[i])),
		}
	}
	return out
}
