// Package aggregate groups derived collision records by categorical
// dimensions and reduces numeric fields into tables that charts bind to.
//
// A Pipeline is built once per chart and run on every selection change. It is
// a pure function of its inputs: it never mutates records or buckets and never
// reads global state.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/marcfranquesa/nyc-collisions/internal/derive"
)

// Pipeline aggregates records by a fixed list of dimensions.
type Pipeline struct {
	dims     []Dimension
	measures []Measure
}

// New validates the configuration and builds a pipeline. Dimension and measure
// names must be known and unique.
func New(dims []Dimension, measures ...Measure) (*Pipeline, error) {
	if len(measures) == 0 {
		return nil, ErrNoMeasures
	}

	seen := map[string]bool{}
	for _, d := range dims {
		if !d.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, d)
		}
		if seen[string(d)] {
			return nil, fmt.Errorf("%w: dimension %q", ErrDuplicate, d)
		}
		seen[string(d)] = true
	}
	for _, m := range measures {
		if err := m.validate(); err != nil {
			return nil, err
		}
		if seen[m.Name()] {
			return nil, fmt.Errorf("%w: measure %q", ErrDuplicate, m.Name())
		}
		seen[m.Name()] = true
	}

	return &Pipeline{
		dims:     append([]Dimension(nil), dims...),
		measures: append([]Measure(nil), measures...),
	}, nil
}

// MustNew is New for pipelines declared at package level.
func MustNew(dims []Dimension, measures ...Measure) *Pipeline {
	p, err := New(dims, measures...)
	if err != nil {
		panic(err)
	}
	return p
}

// Dims returns the grouping dimensions.
func (p *Pipeline) Dims() []Dimension { return append([]Dimension(nil), p.dims...) }

// Measures returns the measures.
func (p *Pipeline) Measures() []Measure { return append([]Measure(nil), p.measures...) }

// Run filters records by sel, groups them and reduces every measure. Buckets
// come out in canonical domain order of each dimension, left to right.
func (p *Pipeline) Run(records []derive.Record, sel Selection) []Bucket {
	type acc struct {
		keys []string
		vals []float64
	}

	groups := map[string]*acc{}
	var order []*acc

	for i := range records {
		r := &records[i]
		if !sel.Matches(r) {
			continue
		}

		keys := make([]string, len(p.dims))
		for j, d := range p.dims {
			keys[j] = d.Value(r)
		}
		id := strings.Join(keys, "\x1f")

		a, ok := groups[id]
		if !ok {
			a = &acc{keys: keys, vals: make([]float64, len(p.measures))}
			for j, m := range p.measures {
				if m.Reduction == Max {
					a.vals[j] = math.Inf(-1)
				}
			}
			groups[id] = a
			order = append(order, a)
		}

		for j, m := range p.measures {
			switch m.Reduction {
			case Sum:
				a.vals[j] += fields[m.Field](r)
			case Count:
				a.vals[j]++
			case Max:
				a.vals[j] = math.Max(a.vals[j], fields[m.Field](r))
			}
		}
	}

	out := make([]Bucket, 0, len(order))
	for _, a := range order {
		b := newBucket(len(p.dims), len(p.measures))
		for j, d := range p.dims {
			b.keys[d] = a.keys[j]
		}
		for j, m := range p.measures {
			b.values[m.Name()] = a.vals[j]
		}
		out = append(out, b)
	}
	p.sort(out)
	return out
}

func (p *Pipeline) sort(buckets []Bucket) {
	sortBuckets(buckets, p.dims)
}

func sortBuckets(buckets []Bucket, dims []Dimension) {
	sort.SliceStable(buckets, func(i, j int) bool {
		for _, d := range dims {
			a, b := buckets[i].keys[d], buckets[j].keys[d]
			if a == b {
				continue
			}
			return d.less(a, b)
		}
		return false
	})
}

// Bucket is one row of an aggregated table: the dimension values identifying
// the group plus its measures and post-aggregation ratios.
type Bucket struct {
	keys   map[Dimension]string
	values map[string]float64
	ratios map[string]Ratio
}

func newBucket(nd, nm int) Bucket {
	return Bucket{
		keys:   make(map[Dimension]string, nd),
		values: make(map[string]float64, nm),
	}
}

// Key returns the value of dimension d.
func (b Bucket) Key(d Dimension) string { return b.keys[d] }

// Value returns measure name, zero when absent.
func (b Bucket) Value(name string) float64 { return b.values[name] }

// Ratio returns a post-aggregation ratio by name.
func (b Bucket) Ratio(name string) Ratio { return b.ratios[name] }

// Row renders the bucket as a flat record for chart data. Hour and week keys
// are emitted as integers and undefined ratios as nil.
func (b Bucket) Row() map[string]any {
	row := make(map[string]any, len(b.keys)+len(b.values)+len(b.ratios))
	for d, v := range b.keys {
		if d.Numeric() {
			if n, err := strconv.Atoi(v); err == nil {
				row[string(d)] = n
				continue
			}
		}
		row[string(d)] = v
	}
	for name, v := range b.values {
		row[name] = v
	}
	for name, r := range b.ratios {
		if f, ok := r.Float(); ok {
			row[name] = f
		} else {
			row[name] = nil
		}
	}
	return row
}

func (b Bucket) clone() Bucket {
	out := Bucket{
		keys:   make(map[Dimension]string, len(b.keys)),
		values: make(map[string]float64, len(b.values)),
		ratios: make(map[string]Ratio, len(b.ratios)+1),
	}
	for k, v := range b.keys {
		out.keys[k] = v
	}
	for k, v := range b.values {
		out.values[k] = v
	}
	for k, v := range b.ratios {
		out.ratios[k] = v
	}
	return out
}

// Rows renders a table with Bucket.Row.
func Rows(buckets []Bucket) []map[string]any {
	out := make([]map[string]any, len(buckets))
	for i, b := range buckets {
		out[i] = b.Row()
	}
	return out
}

// Total sums a measure over buckets.
func Total(buckets []Bucket, measure string) float64 {
	var t float64
	for _, b := range buckets {
		t += b.values[measure]
	}
	return t
}

// Column returns a measure of every bucket, in bucket order.
func Column(buckets []Bucket, measure string) []float64 {
	out := make([]float64, len(buckets))
	for i, b := range buckets {
		out[i] = b.values[measure]
	}
	return out
}

// Filter keeps the buckets for which keep returns true.
func Filter(buckets []Bucket, keep func(Bucket) bool) []Bucket {
	var out []Bucket
	for _, b := range buckets {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

// Domain returns the distinct values of dim present in records after
// filtering by sel, in canonical order.
func Domain(records []derive.Record, dim Dimension, sel Selection) []string {
	seen := map[string]bool{}
	var out []string
	for i := range records {
		r := &records[i]
		if !sel.Matches(r) {
			continue
		}
		v := dim.Value(r)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return dim.less(out[i], out[j]) })
	return out
}
