package aggregate

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/marcfranquesa/nyc-collisions/internal/derive"
)

// Selection is a conjunction of per-dimension membership constraints. A
// dimension without a constraint matches every value, so the zero Selection
// matches all records. Selections are never modified in place; every method
// returns a new value.
type Selection struct {
	constraints map[Dimension][]string
}

// Select returns a selection constraining dim to values. An empty value list
// leaves dim unconstrained.
func Select(dim Dimension, values ...string) Selection {
	return Selection{}.With(dim, values...)
}

// ParseSelection reads constraints from query parameters. Keys that are not
// dimension names are ignored; values may be repeated or comma separated.
func ParseSelection(q url.Values) Selection {
	sel := Selection{}
	for key, raw := range q {
		dim := Dimension(strings.ToLower(key))
		if !dim.Valid() {
			continue
		}
		var values []string
		for _, r := range raw {
			for _, v := range strings.Split(r, ",") {
				if v = strings.TrimSpace(v); v != "" {
					values = append(values, v)
				}
			}
		}
		sel = sel.With(dim, values...)
	}
	return sel
}

// With returns a copy of s where dim is constrained to values, replacing any
// previous constraint on dim. No values removes the constraint.
func (s Selection) With(dim Dimension, values ...string) Selection {
	out := s.clone()
	if len(values) == 0 {
		delete(out.constraints, dim)
		return out
	}
	out.constraints[dim] = append([]string(nil), values...)
	return out
}

// Only keeps the constraints on dims and drops the rest.
func (s Selection) Only(dims ...Dimension) Selection {
	out := Selection{constraints: map[Dimension][]string{}}
	for _, d := range dims {
		if v, ok := s.constraints[d]; ok {
			out.constraints[d] = v
		}
	}
	return out
}

// Without drops the constraints on dims.
func (s Selection) Without(dims ...Dimension) Selection {
	out := s.clone()
	for _, d := range dims {
		delete(out.constraints, d)
	}
	return out
}

// Values returns the accepted values of dim, or nil when unconstrained.
func (s Selection) Values(dim Dimension) []string {
	v := s.constraints[dim]
	if v == nil {
		return nil
	}
	return append([]string(nil), v...)
}

// Empty reports whether s matches every record.
func (s Selection) Empty() bool { return len(s.constraints) == 0 }

// Dimensions lists the constrained dimensions in name order.
func (s Selection) Dimensions() []Dimension {
	dims := make([]Dimension, 0, len(s.constraints))
	for d := range s.constraints {
		dims = append(dims, d)
	}
	sort.Slice(dims, func(i, j int) bool { return dims[i] < dims[j] })
	return dims
}

// Matches reports whether r satisfies every constraint.
func (s Selection) Matches(r *derive.Record) bool {
	for dim, values := range s.constraints {
		v := dim.Value(r)
		found := false
		for _, want := range values {
			if v == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Query encodes s as URL query values, the inverse of ParseSelection.
func (s Selection) Query() url.Values {
	q := url.Values{}
	for dim, values := range s.constraints {
		q.Set(string(dim), strings.Join(values, ","))
	}
	return q
}

func (s Selection) String() string {
	if s.Empty() {
		return "all"
	}
	parts := make([]string, 0, len(s.constraints))
	for _, d := range s.Dimensions() {
		parts = append(parts, fmt.Sprintf("%s=%s", d, strings.Join(s.constraints[d], "|")))
	}
	return strings.Join(parts, " ")
}

// Map renders s as a dimension to values map.
func (s Selection) Map() map[string][]string {
	m := make(map[string][]string, len(s.constraints))
	for d, v := range s.constraints {
		m[string(d)] = append([]string(nil), v...)
	}
	return m
}

func (s Selection) clone() Selection {
	out := Selection{constraints: make(map[Dimension][]string, len(s.constraints))}
	for d, v := range s.constraints {
		out.constraints[d] = v
	}
	return out
}
