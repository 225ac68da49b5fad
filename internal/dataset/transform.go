package dataset

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Predicate selects rows of a dataset.
type Predicate interface {
	// bind resolves column references once, before rows are scanned.
	bind(d *Dataset) (func(row int) bool, error)
	String() string
}

type inPred struct {
	column string
	values []string
}

// In keeps rows whose cell in column equals one of values. Matching compares
// trimmed raw text; for numeric columns values are compared numerically.
func In(column string, values ...string) Predicate {
	return inPred{column: column, values: values}
}

func (p inPred) String() string {
	return fmt.Sprintf("%s in [%s]", p.column, strings.Join(p.values, ", "))
}

func (p inPred) bind(d *Dataset) (func(int) bool, error) {
	c, _, ok := d.Column(p.column)
	if !ok {
		return nil, fmt.Errorf("filter: unknown column %q", p.column)
	}
	if c.Type == Numeric {
		want := make(map[float64]struct{}, len(p.values))
		for _, v := range p.values {
			f, ok := ParseNumber(v, ParseOptions{})
			if !ok {
				return nil, fmt.Errorf("filter: %q is not a number for numeric column %q", v, p.column)
			}
			want[f] = struct{}{}
		}
		return func(i int) bool {
			if c.Missing[i] {
				return false
			}
			_, hit := want[c.Num[i]]
			return hit
		}, nil
	}
	want := make(map[string]struct{}, len(p.values))
	for _, v := range p.values {
		want[strings.TrimSpace(v)] = struct{}{}
	}
	return func(i int) bool {
		if c.Missing[i] {
			return false
		}
		_, hit := want[strings.TrimSpace(c.Raw[i])]
		return hit
	}, nil
}

type rangePred struct {
	column string
	lo, hi float64
}

// Range keeps rows whose numeric cell lies in [lo, hi].
func Range(column string, lo, hi float64) Predicate {
	return rangePred{column: column, lo: lo, hi: hi}
}

func (p rangePred) String() string {
	return fmt.Sprintf("%s in [%g, %g]", p.column, p.lo, p.hi)
}

func (p rangePred) bind(d *Dataset) (func(int) bool, error) {
	c, _, ok := d.Column(p.column)
	if !ok {
		return nil, fmt.Errorf("filter: unknown column %q", p.column)
	}
	if c.Type != Numeric {
		return nil, fmt.Errorf("filter: range on %s column %q (want numeric)", c.Type, p.column)
	}
	return func(i int) bool {
		return !c.Missing[i] && c.Num[i] >= p.lo && c.Num[i] <= p.hi
	}, nil
}

// Filter returns a new dataset holding the rows that satisfy every predicate.
// Column types are kept from the source dataset.
func Filter(d *Dataset, preds ...Predicate) (*Dataset, error) {
	tests := make([]func(int) bool, 0, len(preds))
	for _, p := range preds {
		f, err := p.bind(d)
		if err != nil {
			return nil, err
		}
		tests = append(tests, f)
	}
	var keep []int
	for i := 0; i < d.Rows(); i++ {
		ok := true
		for _, f := range tests {
			if !f(i) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return d.take(keep), nil
}

// SortKey orders rows by one column.
type SortKey struct {
	Column     string
	Descending bool
}

// Sort returns a new dataset with rows stably ordered by keys. Missing cells
// sort last regardless of direction.
func Sort(d *Dataset, keys ...SortKey) (*Dataset, error) {
	cols := make([]*Column, len(keys))
	for k, key := range keys {
		c, _, ok := d.Column(key.Column)
		if !ok {
			return nil, fmt.Errorf("sort: unknown column %q", key.Column)
		}
		cols[k] = c
	}
	idx := make([]int, d.Rows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := idx[a], idx[b]
		for k, c := range cols {
			ma, mb := c.Missing[ra], c.Missing[rb]
			if ma || mb {
				if ma == mb {
					continue
				}
				return mb
			}
			cmp := compareCells(c, ra, rb)
			if cmp == 0 {
				continue
			}
			if keys[k].Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return d.take(idx), nil
}

func compareCells(c *Column, a, b int) int {
	switch c.Type {
	case Numeric:
		switch {
		case c.Num[a] < c.Num[b]:
			return -1
		case c.Num[a] > c.Num[b]:
			return 1
		}
		return 0
	case Temporal:
		return c.Time[a].Compare(c.Time[b])
	case Boolean:
		switch {
		case c.Bool[a] == c.Bool[b]:
			return 0
		case !c.Bool[a]:
			return -1
		}
		return 1
	}
	return strings.Compare(c.Raw[a], c.Raw[b])
}

// Select returns a dataset with only the named columns, in the given order.
func Select(d *Dataset, names ...string) (*Dataset, error) {
	out := &Dataset{Name: d.Name, Warnings: append([]string(nil), d.Warnings...)}
	seen := map[string]struct{}{}
	for _, n := range names {
		c, _, ok := d.Column(n)
		if !ok {
			return nil, fmt.Errorf("select: unknown column %q", n)
		}
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("select: column %q listed twice", n)
		}
		seen[n] = struct{}{}
		out.Columns = append(out.Columns, c)
	}
	return out, nil
}

// take copies the given rows into a new dataset.
func (d *Dataset) take(rows []int) *Dataset {
	out := &Dataset{Name: d.Name, Warnings: append([]string(nil), d.Warnings...)}
	for _, c := range d.Columns {
		nc := &Column{
			Name:    c.Name,
			Type:    c.Type,
			Raw:     make([]string, len(rows)),
			Missing: make([]bool, len(rows)),
		}
		switch c.Type {
		case Numeric:
			nc.Num = make([]float64, len(rows))
		case Temporal:
			nc.Time = make([]time.Time, len(rows))
		case Boolean:
			nc.Bool = make([]bool, len(rows))
		}
		for k, i := range rows {
			nc.Raw[k] = c.Raw[i]
			nc.Missing[k] = c.Missing[i]
			switch c.Type {
			case Numeric:
				nc.Num[k] = c.Num[i]
			case Temporal:
				nc.Time[k] = c.Time[i]
			case Boolean:
				nc.Bool[k] = c.Bool[i]
			}
		}
		out.Columns = append(out.Columns, nc)
	}
	return out
}
