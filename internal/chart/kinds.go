package chart

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// Kind identifies a chart type.
type Kind string

const (
	Bar        Kind = "bar"
	Scatter    Kind = "scatter"
	Histogram  Kind = "histogram"
	Box        Kind = "box"
	Heatmap    Kind = "heatmap"
	TimeSeries Kind = "timeseries"
	WordCloud  Kind = "wordcloud"
)

// ParseKind maps a user-supplied name, including common aliases, to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bar":
		return Bar, nil
	case "scatter":
		return Scatter, nil
	case "histogram", "hist":
		return Histogram, nil
	case "box", "boxplot":
		return Box, nil
	case "heatmap", "corr", "correlation":
		return Heatmap, nil
	case "timeseries", "time-series", "line":
		return TimeSeries, nil
	case "wordcloud", "word-cloud", "words":
		return WordCloud, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Role names the part a column plays in a chart.
type Role string

const (
	RoleCategory Role = "category"
	RoleValue    Role = "value"
	RoleX        Role = "x"
	RoleY        Role = "y"
	RoleTime     Role = "time"
	RoleText     Role = "text"
	RoleColumn   Role = "column"
	RoleColor    Role = "color"
	RoleSize     Role = "size"
)

// Slot is one positional column requirement.
type Slot struct {
	Role    Role
	Accepts []dataset.Type
	// Integral limits an accepted numeric type to whole-number columns.
	Integral bool
}

func (s Slot) accepts(c *dataset.Column) bool {
	for _, a := range s.Accepts {
		if a == c.Type {
			return a != dataset.Numeric || !s.Integral || c.Integral()
		}
	}
	return false
}

// typeNames lists the accepted types; an integral numeric type reads "integer".
func (s Slot) typeNames() []string {
	out := make([]string, len(s.Accepts))
	for i, t := range s.Accepts {
		out[i] = string(t)
		if t == dataset.Numeric && s.Integral {
			out[i] = "integer"
		}
	}
	return out
}

// Requirement describes the columns and options a chart kind takes.
type Requirement struct {
	Kind  Kind
	Slots []Slot
	// Variadic repeats the last slot; MinColumns then bounds the count.
	Variadic     bool
	MinColumns   int
	Encodings    bool
	Aggregations []Aggregation
	DefaultAgg   Aggregation
	Binned       bool
	Summary      string
}

var (
	numeric  = []dataset.Type{dataset.Numeric}
	discrete = []dataset.Type{dataset.Textual, dataset.Boolean, dataset.Numeric}
	grouping = []Aggregation{AggSum, AggMean, AggCount, AggMin, AggMax, AggMedian}
)

var requirements = []Requirement{
	{Kind: Bar, Slots: []Slot{{Role: RoleCategory, Accepts: discrete, Integral: true}, {Role: RoleValue, Accepts: numeric}},
		Aggregations: grouping, DefaultAgg: AggMean,
		Summary: "aggregated value per category"},
	{Kind: Scatter, Slots: []Slot{{Role: RoleX, Accepts: numeric}, {Role: RoleY, Accepts: numeric}}, Encodings: true,
		Summary: "two numeric columns, optional numeric color and size"},
	{Kind: Histogram, Slots: []Slot{{Role: RoleValue, Accepts: numeric}}, Binned: true,
		Summary: "distribution of one numeric column"},
	{Kind: Box, Slots: []Slot{{Role: RoleValue, Accepts: numeric}},
		Summary: "quartiles and outliers of one numeric column"},
	{Kind: Heatmap, Slots: []Slot{{Role: RoleColumn, Accepts: numeric}}, Variadic: true, MinColumns: 2,
		Summary: "Pearson correlation of two or more numeric columns"},
	{Kind: TimeSeries, Slots: []Slot{{Role: RoleTime, Accepts: []dataset.Type{dataset.Temporal}}, {Role: RoleValue, Accepts: numeric}},
		Aggregations: append([]Aggregation{AggNone}, grouping...), DefaultAgg: AggNone,
		Summary: "numeric value over time, optionally aggregated per timestamp"},
	{Kind: WordCloud, Slots: []Slot{{Role: RoleText, Accepts: []dataset.Type{dataset.Textual}}},
		Summary: "word frequencies of one textual column"},
}

// Kinds lists every supported kind with its requirements, in a stable order.
func Kinds() []Requirement {
	out := make([]Requirement, len(requirements))
	copy(out, requirements)
	return out
}

func requirement(k Kind) (Requirement, bool) {
	for _, r := range requirements {
		if r.Kind == k {
			return r, true
		}
	}
	return Requirement{}, false
}

// Usage renders the column signature, e.g. "category(textual|boolean|integer) value(numeric)".
func (r Requirement) Usage() string {
	var parts []string
	for _, s := range r.Slots {
		parts = append(parts, fmt.Sprintf("%s(%s)", s.Role, strings.Join(s.typeNames(), "|")))
	}
	u := strings.Join(parts, " ")
	if r.Variadic {
		u = fmt.Sprintf("%s... (at least %d)", u, r.MinColumns)
	}
	return u
}

// Aggregation reduces the values sharing a category or timestamp.
type Aggregation string

const (
	AggNone   Aggregation = "none"
	AggSum    Aggregation = "sum"
	AggMean   Aggregation = "mean"
	AggCount  Aggregation = "count"
	AggMin    Aggregation = "min"
	AggMax    Aggregation = "max"
	AggMedian Aggregation = "median"
)

// ParseAggregation maps a name to an Aggregation; empty means the kind's default.
func ParseAggregation(s string) (Aggregation, error) {
	switch a := Aggregation(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return "", nil
	case AggNone, AggSum, AggMean, AggCount, AggMin, AggMax, AggMedian:
		return a, nil
	case "avg", "average":
		return AggMean, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAggregation, s)
}
