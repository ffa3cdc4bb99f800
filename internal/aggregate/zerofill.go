package aggregate

import (
	"fmt"
	"strings"
)

// ZeroFill left-joins buckets onto domain for the key dimension. Every
// combination of the remaining dimensions present in buckets gets one row per
// domain value; missing rows carry zero measures. With key as the only
// dimension the result has exactly one row per domain value, even when buckets
// is empty. Values of key outside domain are kept.
func (p *Pipeline) ZeroFill(buckets []Bucket, key Dimension, domain []string) ([]Bucket, error) {
	idx := -1
	for i, d := range p.dims {
		if d == key {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotGrouped, key)
	}

	rest := make([]Dimension, 0, len(p.dims)-1)
	for _, d := range p.dims {
		if d != key {
			rest = append(rest, d)
		}
	}

	type group struct {
		keys    map[Dimension]string
		present map[string]bool
	}
	groups := map[string]*group{}
	var order []*group

	groupOf := func(b Bucket) *group {
		parts := make([]string, len(rest))
		for i, d := range rest {
			parts[i] = b.keys[d]
		}
		id := strings.Join(parts, "\x1f")
		g, ok := groups[id]
		if !ok {
			g = &group{keys: map[Dimension]string{}, present: map[string]bool{}}
			for _, d := range rest {
				g.keys[d] = b.keys[d]
			}
			groups[id] = g
			order = append(order, g)
		}
		return g
	}

	out := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		groupOf(b).present[b.keys[key]] = true
		out = append(out, b)
	}
	if len(rest) == 0 && len(order) == 0 {
		order = append(order, &group{keys: map[Dimension]string{}, present: map[string]bool{}})
	}

	for _, g := range order {
		for _, v := range domain {
			if g.present[v] {
				continue
			}
			out = append(out, p.zero(g.keys, key, v))
		}
	}

	p.sort(out)
	return out, nil
}

// Complete left-joins buckets onto the rows of frame, matching on every
// dimension of the pipeline. Frame rows missing from buckets come back with
// zero measures; buckets missing from frame are dropped. It fills grids whose
// cells are not a cross product, such as calendar days.
func (p *Pipeline) Complete(buckets, frame []Bucket) []Bucket {
	byID := make(map[string]Bucket, len(buckets))
	for _, b := range buckets {
		byID[p.id(b)] = b
	}

	out := make([]Bucket, 0, len(frame))
	for _, f := range frame {
		if b, ok := byID[p.id(f)]; ok {
			out = append(out, b)
			continue
		}
		z := newBucket(len(p.dims), len(p.measures))
		for _, d := range p.dims {
			z.keys[d] = f.keys[d]
		}
		for _, m := range p.measures {
			z.values[m.Name()] = 0
		}
		out = append(out, z)
	}
	p.sort(out)
	return out
}

func (p *Pipeline) id(b Bucket) string {
	parts := make([]string, len(p.dims))
	for i, d := range p.dims {
		parts[i] = b.keys[d]
	}
	return strings.Join(parts, "\x1f")
}

func (p *Pipeline) zero(keys map[Dimension]string, key Dimension, value string) Bucket {
	b := newBucket(len(p.dims), len(p.measures))
	for d, v := range keys {
		b.keys[d] = v
	}
	b.keys[key] = value
	for _, m := range p.measures {
		b.values[m.Name()] = 0
	}
	return b
}
