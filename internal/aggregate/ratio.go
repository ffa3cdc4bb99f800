package aggregate

import (
	"encoding/json"
	"math"
	"strings"
)

// Ratio is a derived quotient. A ratio whose denominator is zero is undefined
// and encodes as JSON null, never NaN or Inf.
type Ratio struct {
	value   float64
	defined bool
}

// Divide returns num/den, undefined when den is zero or the result is not finite.
func Divide(num, den float64) Ratio {
	if den == 0 {
		return Ratio{}
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Ratio{}
	}
	return Ratio{value: v, defined: true}
}

// Defined reports whether the ratio has a value.
func (r Ratio) Defined() bool { return r.defined }

// Float returns the value and whether it is defined.
func (r Ratio) Float() (float64, bool) { return r.value, r.defined }

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.value)
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*r = Ratio{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Ratio{value: v, defined: true}
	return nil
}

// WithRatio returns copies of buckets carrying name = num/den, computed from
// the already aggregated measures.
func WithRatio(buckets []Bucket, name, num, den string) []Bucket {
	return WithRatioFunc(buckets, name, func(b Bucket) Ratio {
		return Divide(b.values[num], b.values[den])
	})
}

// WithRatioFunc is WithRatio with an arbitrary quotient, for denominators that
// live outside the table such as area.
func WithRatioFunc(buckets []Bucket, name string, fn func(Bucket) Ratio) []Bucket {
	out := make([]Bucket, len(buckets))
	for i, b := range buckets {
		c := b.clone()
		c.ratios[name] = fn(b)
		out[i] = c
	}
	return out
}

// DefinedOnly drops buckets whose ratio name is undefined.
func DefinedOnly(buckets []Bucket, name string) []Bucket {
	return Filter(buckets, func(b Bucket) bool { return b.ratios[name].defined })
}

// Share adds name = 100 * measure / (measure total within partition). An empty
// partition shares over the whole table.
func Share(buckets []Bucket, measure string, partition []Dimension, name string) []Bucket {
	totals := map[string]float64{}
	for _, b := range buckets {
		totals[partitionID(b, partition)] += b.values[measure]
	}
	return WithRatioFunc(buckets, name, func(b Bucket) Ratio {
		return Divide(100*b.values[measure], totals[partitionID(b, partition)])
	})
}

func partitionID(b Bucket, partition []Dimension) string {
	parts := make([]string, len(partition))
	for i, d := range partition {
		parts[i] = b.keys[d]
	}
	return strings.Join(parts, "\x1f")
}
