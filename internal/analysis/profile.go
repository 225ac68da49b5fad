package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

// Options controls profiling.
type Options struct {
	// SampleRows determines how many head rows to include in the report.
	SampleRows int
	// TopValues and TopTokens cap the frequency tables of textual columns.
	TopValues int
	TopTokens int
	// Stopwords drops common English words from token frequencies.
	Stopwords bool
	// GroupBy computes per-group summaries for the given column names.
	GroupBy []string
	// MaxGroups caps the number of groups reported, largest first.
	MaxGroups int
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// CorrPerGroup computes correlation pairs per group key.
	CorrPerGroup bool
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		TopValues:        8,
		TopTokens:        50,
		Stopwords:        true,
		MaxGroups:        20,
		Outliers:         true,
		OutlierThreshold: 3.5,
	}
}

// minOutlierSample is the smallest column for which outliers are counted.
const minOutlierSample = 8

// Report is the profile of a dataset.
type Report struct {
	Name     string          `json:"name" yaml:"name"`
	Rows     int             `json:"rows" yaml:"rows"`
	Columns  []ColumnProfile `json:"columns" yaml:"columns"`
	Groups   []GroupResult   `json:"groups,omitempty" yaml:"groups,omitempty"`
	Corr     *CorrMatrix     `json:"correlations,omitempty" yaml:"correlations,omitempty"`
	Samples  [][]string      `json:"samples,omitempty" yaml:"samples,omitempty"`
	Warnings []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// ColumnProfile captures the type tag and statistics of one column. Exactly
// one summary matching Type is set, except for columns without any
// non-missing value, which carry counts only.
type ColumnProfile struct {
	Name       string           `json:"name" yaml:"name"`
	Type       dataset.Type     `json:"type" yaml:"type"`
	Unit       string           `json:"unit,omitempty" yaml:"unit,omitempty"`
	Count      int              `json:"count" yaml:"count"`
	Missing    int              `json:"missing" yaml:"missing"`
	NonMissing int              `json:"non_missing" yaml:"non_missing"`
	Unique     int              `json:"unique" yaml:"unique"`
	Numeric    *NumericSummary  `json:"numeric,omitempty" yaml:"numeric,omitempty"`
	Text       *TextSummary     `json:"text,omitempty" yaml:"text,omitempty"`
	Temporal   *TemporalSummary `json:"temporal,omitempty" yaml:"temporal,omitempty"`
	Boolean    *BooleanSummary  `json:"boolean,omitempty" yaml:"boolean,omitempty"`
}

// MissingPct is the share of missing cells in percent.
func (c ColumnProfile) MissingPct() float64 {
	if c.Count == 0 {
		return 0
	}
	return float64(c.Missing) * 100 / float64(c.Count)
}

// NumericSummary describes a numeric column. Std is the sample standard
// deviation and is nil below two observations. Quartiles interpolate linearly
// at position q·(n−1).
type NumericSummary struct {
	Min    float64  `json:"min" yaml:"min"`
	Max    float64  `json:"max" yaml:"max"`
	Mean   float64  `json:"mean" yaml:"mean"`
	Std    *float64 `json:"std" yaml:"std"`
	Q1     float64  `json:"q1" yaml:"q1"`
	Median float64  `json:"median" yaml:"median"`
	Q3     float64  `json:"q3" yaml:"q3"`
	IQR    float64  `json:"iqr" yaml:"iqr"`
	// Outliers (robust Z via MAD); zero threshold means not computed.
	Outliers         int     `json:"outliers" yaml:"outliers"`
	OutliersMaxAbsZ  float64 `json:"outliers_max_abs_z" yaml:"outliers_max_abs_z"`
	OutlierThreshold float64 `json:"outlier_threshold,omitempty" yaml:"outlier_threshold,omitempty"`
}

// TextSummary holds value and word-token frequencies.
type TextSummary struct {
	TopValues      []CategoryCount `json:"top_values" yaml:"top_values"`
	Tokens         []CategoryCount `json:"tokens" yaml:"tokens"`
	TotalTokens    int             `json:"total_tokens" yaml:"total_tokens"`
	DistinctTokens int             `json:"distinct_tokens" yaml:"distinct_tokens"`
}

// TemporalSummary holds the covered time range.
type TemporalSummary struct {
	Min  time.Time     `json:"min" yaml:"min"`
	Max  time.Time     `json:"max" yaml:"max"`
	Span time.Duration `json:"span" yaml:"span"`
}

// BooleanSummary counts true and false cells.
type BooleanSummary struct {
	True  int `json:"true" yaml:"true"`
	False int `json:"false" yaml:"false"`
}

type CategoryCount struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// Profile computes a Report for ds. It does not modify ds, and equal inputs
// yield deep-equal reports.
func Profile(ds *dataset.Dataset, opt Options) *Report {
	rep := &Report{Name: ds.Name, Rows: ds.Rows()}
	rep.Warnings = append(rep.Warnings, ds.Warnings...)

	rep.Columns = make([]ColumnProfile, 0, len(ds.Columns))
	var numCols []*dataset.Column
	for _, c := range ds.Columns {
		rep.Columns = append(rep.Columns, profileColumn(c, opt))
		if c.Type == dataset.Numeric {
			numCols = append(numCols, c)
		}
	}

	sampleRows := opt.SampleRows
	if sampleRows > rep.Rows {
		sampleRows = rep.Rows
	}
	for i := 0; i < sampleRows; i++ {
		row := make([]string, len(ds.Columns))
		for j, c := range ds.Columns {
			row[j] = c.Raw[i]
		}
		rep.Samples = append(rep.Samples, row)
	}

	if len(opt.GroupBy) > 0 {
		groups, warns := groupBy(ds, numCols, opt)
		rep.Groups = groups
		rep.Warnings = append(rep.Warnings, warns...)
	}
	if opt.Correlations && len(numCols) >= 2 {
		rep.Corr = Correlate(numCols, nil)
	}
	return rep
}

func profileColumn(c *dataset.Column, opt Options) ColumnProfile {
	p := ColumnProfile{Name: c.Name, Type: c.Type, Count: c.Len()}
	distinct := map[string]struct{}{}
	for i, v := range c.Raw {
		if c.Missing[i] {
			p.Missing++
			continue
		}
		distinct[strings.TrimSpace(v)] = struct{}{}
	}
	p.NonMissing = p.Count - p.Missing
	p.Unique = len(distinct)
	if p.NonMissing == 0 {
		return p
	}

	switch c.Type {
	case dataset.Numeric:
		p.Numeric = numericSummary(c, opt)
		p.Unit = columnUnit(c)
	case dataset.Textual:
		p.Text = textSummary(c, opt)
	case dataset.Temporal:
		s := &TemporalSummary{}
		first := true
		for i, t := range c.Time {
			if c.Missing[i] {
				continue
			}
			if first || t.Before(s.Min) {
				s.Min = t
			}
			if first || t.After(s.Max) {
				s.Max = t
			}
			first = false
		}
		s.Span = s.Max.Sub(s.Min)
		p.Temporal = s
	case dataset.Boolean:
		s := &BooleanSummary{}
		for i, b := range c.Bool {
			switch {
			case c.Missing[i]:
			case b:
				s.True++
			default:
				s.False++
			}
		}
		p.Boolean = s
	}
	return p
}

func numericSummary(c *dataset.Column, opt Options) *NumericSummary {
	w := newWelford()
	vals := make([]float64, 0, c.Len())
	for i, x := range c.Num {
		if c.Missing[i] {
			continue
		}
		w.add(x)
		vals = append(vals, x)
	}
	q := quantiles(vals, 0.25, 0.5, 0.75)
	s := &NumericSummary{
		Min: w.min, Max: w.max, Mean: w.mean, Std: w.std(),
		Q1: q[0], Median: q[1], Q3: q[2], IQR: q[2] - q[0],
	}
	if opt.Outliers && len(vals) >= minOutlierSample {
		thr := opt.OutlierThreshold
		if thr <= 0 {
			thr = 3.5
		}
		s.Outliers, s.OutliersMaxAbsZ = robustOutliers(vals, thr)
		s.OutlierThreshold = thr
	}
	return s
}

func textSummary(c *dataset.Column, opt Options) *TextSummary {
	values := map[string]int{}
	tokens := map[string]int{}
	s := &TextSummary{}
	for i, v := range c.Raw {
		if c.Missing[i] {
			continue
		}
		values[strings.TrimSpace(v)]++
		s.TotalTokens += utils.CountTokens(tokens, v, opt.Stopwords)
	}
	s.DistinctTokens = len(tokens)
	s.TopValues = topCounts(values, opt.TopValues)
	s.Tokens = topCounts(tokens, opt.TopTokens)
	return s
}

// topCounts orders by count descending, then value ascending, and keeps limit
// entries when limit > 0.
func topCounts(m map[string]int, limit int) []CategoryCount {
	out := make([]CategoryCount, 0, len(m))
	for k, v := range m {
		out = append(out, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Value < out[j].Value
		}
		return out[i].Count > out[j].Count
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TokenCounts returns the full word-token frequency table of a textual column.
func TokenCounts(c *dataset.Column, dropStopwords bool, limit int) []CategoryCount {
	tokens := map[string]int{}
	for i, v := range c.Raw {
		if !c.Missing[i] {
			utils.CountTokens(tokens, v, dropStopwords)
		}
	}
	return topCounts(tokens, limit)
}

// columnUnit derives a unit from the header name or from percent-suffixed cells.
func columnUnit(c *dataset.Column) string {
	if _, u := splitUnits(c.Name); u != "" {
		return u
	}
	for i, v := range c.Raw {
		if !c.Missing[i] && strings.Contains(v, "%") {
			return "%"
		}
	}
	return ""
}

// Column looks up a column profile by name.
func (r *Report) Column(name string) (ColumnProfile, error) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, nil
		}
	}
	return ColumnProfile{}, fmt.Errorf("no column %q in profile of %s", name, r.Name)
}
