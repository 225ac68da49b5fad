package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Type is the inferred type tag of a column.
type Type string

const (
	Numeric  Type = "numeric"
	Textual  Type = "textual"
	Temporal Type = "temporal"
	Boolean  Type = "boolean"
)

// Types lists every type tag in a stable order.
func Types() []Type { return []Type{Numeric, Textual, Temporal, Boolean} }

// Column is one named, homogeneously typed column. Raw holds the original cell
// text; exactly one of Num, Time or Bool is populated, matching Type, and is
// parallel to Raw. Missing[i] marks a sentinel or absent cell.
type Column struct {
	Name    string
	Type    Type
	Raw     []string
	Missing []bool
	Num     []float64
	Time    []time.Time
	Bool    []bool
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Raw) }

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

// Integral reports whether c is numeric and every non-missing value is a
// whole number.
func (c *Column) Integral() bool {
	if c.Type != Numeric {
		return false
	}
	for i, v := range c.Num {
		if !c.Missing[i] && v != math.Trunc(v) {
			return false
		}
	}
	return true
}

// Value returns a display string for row i; missing cells render empty.
func (c *Column) Value(i int) string {
	if c.Missing[i] {
		return ""
	}
	return c.Raw[i]
}

// Dataset is an ordered set of equal-length, uniquely named columns.
type Dataset struct {
	Name     string
	Columns  []*Column
	Warnings []string
}

// Rows returns the row count.
func (d *Dataset) Rows() int {
	if d == nil || len(d.Columns) == 0 {
		return 0
	}
	return d.Columns[0].Len()
}

// Column looks a column up by exact name.
func (d *Dataset) Column(name string) (*Column, int, bool) {
	for i, c := range d.Columns {
		if c.Name == name {
			return c, i, true
		}
	}
	return nil, -1, false
}

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the structural invariants.
func (d *Dataset) Validate() error {
	seen := make(map[string]struct{}, len(d.Columns))
	rows := d.Rows()
	for _, c := range d.Columns {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if len(c.Raw) != rows || len(c.Missing) != rows {
			return fmt.Errorf("column %q has %d cells, want %d", c.Name, len(c.Raw), rows)
		}
		switch c.Type {
		case Numeric:
			if len(c.Num) != rows {
				return fmt.Errorf("column %q: numeric values not parallel", c.Name)
			}
		case Temporal:
			if len(c.Time) != rows {
				return fmt.Errorf("column %q: temporal values not parallel", c.Name)
			}
		case Boolean:
			if len(c.Bool) != rows {
				return fmt.Errorf("column %q: boolean values not parallel", c.Name)
			}
		}
	}
	return nil
}

// Build assembles a Dataset from a header and string rows. Rows shorter than
// the header are padded with missing cells; callers reject wider rows before
// calling. Column types are classified over every row.
func Build(name string, header []string, rows [][]string, opt ParseOptions) *Dataset {
	if opt.sentinelSet == nil {
		opt = opt.WithSentinels(opt.Sentinels)
	}
	names, warns := uniqueNames(header)
	ds := &Dataset{Name: name, Warnings: warns}
	for j, n := range names {
		raw := make([]string, len(rows))
		miss := make([]bool, len(rows))
		for i, r := range rows {
			if j < len(r) {
				raw[i] = r[j]
			}
			miss[i] = opt.IsMissing(raw[i])
		}
		ds.Columns = append(ds.Columns, NewColumn(n, raw, miss, opt))
	}
	return ds
}

// NewColumn classifies raw cells and fills the typed slice.
func NewColumn(name string, raw []string, missing []bool, opt ParseOptions) *Column {
	c := &Column{Name: name, Raw: raw, Missing: missing}
	var numOpt ParseOptions
	c.Type, numOpt = classify(raw, missing, opt)
	switch c.Type {
	case Numeric:
		c.Num = make([]float64, len(raw))
		for i, v := range raw {
			if !missing[i] {
				c.Num[i], _ = ParseNumber(v, numOpt)
			}
		}
	case Temporal:
		c.Time = make([]time.Time, len(raw))
		for i, v := range raw {
			if !missing[i] {
				c.Time[i], _ = ParseTime(v)
			}
		}
	case Boolean:
		c.Bool = make([]bool, len(raw))
		for i, v := range raw {
			if !missing[i] {
				c.Bool[i], _ = ParseBool(v)
			}
		}
	}
	return c
}

func uniqueNames(header []string) ([]string, []string) {
	var warns []string
	out := make([]string, len(header))
	seen := map[string]int{}
	taken := map[string]struct{}{}
	for _, h := range header {
		taken[strings.TrimSpace(h)] = struct{}{}
	}
	for i, h := range header {
		n := strings.TrimSpace(h)
		if n == "" {
			n = fmt.Sprintf("Unnamed: %d", i)
			warns = append(warns, fmt.Sprintf("column %d has no name; using %q", i+1, n))
		}
		if cnt, dup := seen[n]; dup {
			base := n
			for {
				cnt++
				n = fmt.Sprintf("%s.%d", base, cnt)
				if _, clash := taken[n]; !clash {
					break
				}
			}
			seen[base] = cnt
			warns = append(warns, fmt.Sprintf("duplicate column %q renamed to %q", base, n))
		}
		seen[n] = 0
		taken[n] = struct{}{}
		out[i] = n
	}
	return out, warns
}
