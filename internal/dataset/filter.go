package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FilterSpec is the serializable form of a row predicate: either a value list
// or a closed numeric range with optional bounds.
type FilterSpec struct {
	Column string   `json:"column" yaml:"column"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
	Min    *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Predicate converts f to a Predicate usable with Filter.
func (f FilterSpec) Predicate() Predicate {
	if len(f.Values) > 0 {
		return In(f.Column, f.Values...)
	}
	lo, hi := math.Inf(-1), math.Inf(1)
	if f.Min != nil {
		lo = *f.Min
	}
	if f.Max != nil {
		hi = *f.Max
	}
	return Range(f.Column, lo, hi)
}

func (f FilterSpec) String() string { return f.Predicate().String() }

// Apply filters d by every f in order.
func Apply(d *Dataset, filters ...FilterSpec) (*Dataset, error) {
	preds := make([]Predicate, len(filters))
	for i, f := range filters {
		preds[i] = f.Predicate()
	}
	return Filter(d, preds...)
}

// ParseWhere parses "col=v1,v2" into a value-list filter.
func ParseWhere(s string) (FilterSpec, error) {
	col, rest, ok := strings.Cut(s, "=")
	col = strings.TrimSpace(col)
	if !ok || col == "" {
		return FilterSpec{}, fmt.Errorf("invalid filter %q (want column=value[,value...])", s)
	}
	var vals []string
	for _, v := range strings.Split(rest, ",") {
		if v = strings.TrimSpace(v); v != "" {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return FilterSpec{}, fmt.Errorf("invalid filter %q: no values", s)
	}
	return FilterSpec{Column: col, Values: vals}, nil
}

// ParseRange parses "col=lo:hi"; either bound may be omitted.
func ParseRange(s string) (FilterSpec, error) {
	col, rest, ok := strings.Cut(s, "=")
	col = strings.TrimSpace(col)
	if !ok || col == "" {
		return FilterSpec{}, fmt.Errorf("invalid range %q (want column=lo:hi)", s)
	}
	loS, hiS, ok := strings.Cut(rest, ":")
	if !ok {
		return FilterSpec{}, fmt.Errorf("invalid range %q (want column=lo:hi)", s)
	}
	f := FilterSpec{Column: col}
	var err error
	if f.Min, err = parseBound(loS); err != nil {
		return FilterSpec{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	if f.Max, err = parseBound(hiS); err != nil {
		return FilterSpec{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	if f.Min == nil && f.Max == nil {
		return FilterSpec{}, fmt.Errorf("invalid range %q: no bounds", s)
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return FilterSpec{}, fmt.Errorf("invalid range %q: lower bound exceeds upper", s)
	}
	return f, nil
}

func parseBound(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return nil, fmt.Errorf("bound %q is not a number", s)
	}
	return &v, nil
}

// ParseSortKey parses "col", "col:asc", "col:desc" or "-col".
func ParseSortKey(s string) (SortKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return SortKey{Column: strings.TrimSpace(s[1:]), Descending: true}, nil
	}
	col, dir, _ := strings.Cut(s, ":")
	k := SortKey{Column: strings.TrimSpace(col)}
	if k.Column == "" {
		return SortKey{}, fmt.Errorf("invalid sort key %q", s)
	}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
	case "desc":
		k.Descending = true
	default:
		return SortKey{}, fmt.Errorf("invalid sort direction in %q (use asc|desc)", s)
	}
	return k, nil
}
