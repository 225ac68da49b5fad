package chart

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// DefaultBins is the histogram bin count used when a spec leaves Bins at 0.
const DefaultBins = 20

// Spec is an unvalidated chart selection as entered by a user.
type Spec struct {
	Kind        Kind        `json:"kind" yaml:"kind"`
	Columns     []string    `json:"columns" yaml:"columns"`
	Color       string      `json:"color,omitempty" yaml:"color,omitempty"`
	Size        string      `json:"size,omitempty" yaml:"size,omitempty"`
	Aggregation Aggregation `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	Bins        int         `json:"bins,omitempty" yaml:"bins,omitempty"`
}

// Field is a resolved column reference.
type Field struct {
	Role  Role
	Name  string
	Index int
	Type  dataset.Type
}

// Request is a validated chart request. It is immutable: accessors return copies.
type Request struct {
	kind   Kind
	fields []Field
	color  *Field
	size   *Field
	agg    Aggregation
	bins   int
}

func (r *Request) Kind() Kind               { return r.kind }
func (r *Request) Aggregation() Aggregation { return r.agg }
func (r *Request) Bins() int                { return r.bins }

// Fields returns the positional column references in role order.
func (r *Request) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

// Color returns the color encoding field, if any.
func (r *Request) Color() (Field, bool) { return deref(r.color) }

// Size returns the size encoding field, if any.
func (r *Request) Size() (Field, bool) { return deref(r.size) }

func deref(f *Field) (Field, bool) {
	if f == nil {
		return Field{}, false
	}
	return *f, true
}

// Spec returns the normalized spec that reproduces this request.
func (r *Request) Spec() Spec {
	s := Spec{Kind: r.kind, Aggregation: r.agg, Bins: r.bins}
	for _, f := range r.fields {
		s.Columns = append(s.Columns, f.Name)
	}
	if r.color != nil {
		s.Color = r.color.Name
	}
	if r.size != nil {
		s.Size = r.size.Name
	}
	return s
}

// String renders a one-line description, e.g. "bar(category=region, value=units; agg=mean)".
func (r *Request) String() string {
	var parts []string
	for _, f := range r.fields {
		parts = append(parts, fmt.Sprintf("%s=%s", f.Role, f.Name))
	}
	if r.color != nil {
		parts = append(parts, "color="+r.color.Name)
	}
	if r.size != nil {
		parts = append(parts, "size="+r.size.Name)
	}
	var opts []string
	if r.agg != "" {
		opts = append(opts, "agg="+string(r.agg))
	}
	if r.bins > 0 {
		opts = append(opts, "bins="+strconv.Itoa(r.bins))
	}
	s := fmt.Sprintf("%s(%s", r.kind, strings.Join(parts, ", "))
	if len(opts) > 0 {
		s += "; " + strings.Join(opts, ", ")
	}
	return s + ")"
}

// Resolve validates spec against the column types of ds. Column types are
// never coerced: a textual column is rejected wherever numeric is required.
func Resolve(ds *dataset.Dataset, spec Spec) (*Request, error) {
	req, ok := requirement(spec.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
	cols := spec.Columns
	if req.Variadic {
		cols = dedupe(cols)
		if len(cols) < req.MinColumns {
			return nil, &ArityError{Kind: spec.Kind, Want: fmt.Sprintf("at least %d", req.MinColumns), Got: len(cols)}
		}
	} else if len(cols) != len(req.Slots) {
		return nil, &ArityError{Kind: spec.Kind, Want: strconv.Itoa(len(req.Slots)), Got: len(cols)}
	}

	out := &Request{kind: spec.Kind}
	for i, name := range cols {
		slot := req.Slots[min(i, len(req.Slots)-1)]
		f, err := resolveField(ds, spec.Kind, slot, name)
		if err != nil {
			return nil, err
		}
		out.fields = append(out.fields, f)
	}

	if spec.Color != "" || spec.Size != "" {
		if !req.Encodings {
			opt := "color"
			if spec.Color == "" {
				opt = "size"
			}
			return nil, &OptionError{Kind: spec.Kind, Option: opt, Reason: "is only supported by scatter charts"}
		}
		for _, enc := range []struct {
			role Role
			name string
			dst  **Field
		}{{RoleColor, spec.Color, &out.color}, {RoleSize, spec.Size, &out.size}} {
			if enc.name == "" {
				continue
			}
			f, err := resolveField(ds, spec.Kind, Slot{Role: enc.role, Accepts: numeric}, enc.name)
			if err != nil {
				return nil, err
			}
			*enc.dst = &f
		}
	}

	switch {
	case len(req.Aggregations) == 0:
		if spec.Aggregation != "" {
			return nil, &OptionError{Kind: spec.Kind, Option: "aggregation", Reason: "is not supported"}
		}
	case spec.Aggregation == "":
		out.agg = req.DefaultAgg
	default:
		agg, err := ParseAggregation(string(spec.Aggregation))
		if err != nil {
			return nil, err
		}
		if !containsAgg(req.Aggregations, agg) {
			return nil, &OptionError{Kind: spec.Kind, Option: "aggregation", Reason: fmt.Sprintf("%q is not allowed", agg)}
		}
		out.agg = agg
	}

	switch {
	case !req.Binned:
		if spec.Bins != 0 {
			return nil, &OptionError{Kind: spec.Kind, Option: "bins", Reason: "is only supported by histograms"}
		}
	case spec.Bins < 0:
		return nil, &OptionError{Kind: spec.Kind, Option: "bins", Reason: "must be positive"}
	case spec.Bins == 0:
		out.bins = DefaultBins
	default:
		out.bins = spec.Bins
	}
	return out, nil
}

func resolveField(ds *dataset.Dataset, kind Kind, slot Slot, name string) (Field, error) {
	c, idx, ok := ds.Column(name)
	if !ok {
		return Field{}, &UnknownColumnError{Kind: kind, Column: name}
	}
	if !slot.accepts(c) {
		return Field{}, &IncompatibleColumnError{Kind: kind, Role: slot.Role, Column: name, Expected: slot.Accepts, Actual: c.Type, Integral: slot.Integral}
	}
	return Field{Role: slot.Role, Name: name, Index: idx, Type: c.Type}, nil
}

func dedupe(names []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func containsAgg(list []Aggregation, a Aggregation) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
