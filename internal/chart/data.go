package chart

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// MaxWords caps the word-cloud vocabulary handed to renderers.
const MaxWords = 150

// Point is one plotted observation. T is set for time series only; Color and
// Size are meaningful only when the request carries those encodings.
type Point struct {
	X, Y        float64
	T           time.Time
	Color, Size float64
}

// Data is the column data a renderer needs for one request.
type Data struct {
	Kind   Kind
	Title  string
	XLabel string
	YLabel string

	// Bar: aggregated values in first-appearance order of categories.
	Categories []string
	Values     []float64

	// Scatter and time series.
	Points   []Point
	HasColor bool
	HasSize  bool

	// Histogram and box.
	Series []float64
	Bins   int

	Corr  *analysis.CorrMatrix
	Words []analysis.CategoryCount
}

// Prepare extracts the data referenced by req from ds. Rows missing any
// referenced cell are skipped. ds must be the dataset req was resolved against.
func Prepare(ds *dataset.Dataset, req *Request) (*Data, error) {
	cols := make([]*dataset.Column, len(req.fields))
	for i, f := range req.fields {
		c, err := fieldColumn(ds, f)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	d := &Data{Kind: req.kind}

	switch req.kind {
	case Bar:
		cat, val := cols[0], cols[1]
		d.Title = fmt.Sprintf("%s of %s by %s", req.agg, val.Name, cat.Name)
		d.XLabel, d.YLabel = cat.Name, val.Name
		groups := map[string][]float64{}
		for i := 0; i < ds.Rows(); i++ {
			if cat.Missing[i] || val.Missing[i] {
				continue
			}
			k := strings.TrimSpace(cat.Raw[i])
			if cat.Type == dataset.Numeric {
				k = strconv.FormatFloat(cat.Num[i], 'f', -1, 64)
			}
			if _, seen := groups[k]; !seen {
				d.Categories = append(d.Categories, k)
			}
			groups[k] = append(groups[k], val.Num[i])
		}
		d.Values = make([]float64, len(d.Categories))
		for i, k := range d.Categories {
			d.Values[i] = Aggregate(req.agg, groups[k])
		}

	case Scatter:
		x, y := cols[0], cols[1]
		d.Title = fmt.Sprintf("%s vs %s", y.Name, x.Name)
		d.XLabel, d.YLabel = x.Name, y.Name
		var color, size *dataset.Column
		if req.color != nil {
			c, err := fieldColumn(ds, *req.color)
			if err != nil {
				return nil, err
			}
			color, d.HasColor = c, true
		}
		if req.size != nil {
			c, err := fieldColumn(ds, *req.size)
			if err != nil {
				return nil, err
			}
			size, d.HasSize = c, true
		}
		for i := 0; i < ds.Rows(); i++ {
			if x.Missing[i] || y.Missing[i] || (color != nil && color.Missing[i]) || (size != nil && size.Missing[i]) {
				continue
			}
			p := Point{X: x.Num[i], Y: y.Num[i]}
			if color != nil {
				p.Color = color.Num[i]
			}
			if size != nil {
				p.Size = size.Num[i]
			}
			d.Points = append(d.Points, p)
		}

	case Histogram, Box:
		c := cols[0]
		d.Title = fmt.Sprintf("Distribution of %s", c.Name)
		d.XLabel = c.Name
		d.Bins = req.bins
		for i, v := range c.Num {
			if !c.Missing[i] {
				d.Series = append(d.Series, v)
			}
		}

	case Heatmap:
		d.Title = "Correlation matrix"
		d.Corr = analysis.Correlate(cols, nil)

	case TimeSeries:
		tc, val := cols[0], cols[1]
		d.Title = fmt.Sprintf("%s over %s", val.Name, tc.Name)
		d.XLabel, d.YLabel = tc.Name, val.Name
		d.Points = timePoints(tc, val, req.agg)

	case WordCloud:
		c := cols[0]
		d.Title = fmt.Sprintf("Word frequencies in %s", c.Name)
		d.Words = analysis.TokenCounts(c, true, MaxWords)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.kind)
	}
	return d, nil
}

func fieldColumn(ds *dataset.Dataset, f Field) (*dataset.Column, error) {
	if f.Index < 0 || f.Index >= len(ds.Columns) {
		return nil, fmt.Errorf("%w: column %q", ErrStaleRequest, f.Name)
	}
	c := ds.Columns[f.Index]
	if c.Name != f.Name || c.Type != f.Type {
		return nil, fmt.Errorf("%w: column %q", ErrStaleRequest, f.Name)
	}
	return c, nil
}

func timePoints(tc, val *dataset.Column, agg Aggregation) []Point {
	var pts []Point
	for i := range tc.Raw {
		if tc.Missing[i] || val.Missing[i] {
			continue
		}
		pts = append(pts, Point{T: tc.Time[i], X: float64(tc.Time[i].Unix()), Y: val.Num[i]})
	}
	sort.SliceStable(pts, func(a, b int) bool { return pts[a].T.Before(pts[b].T) })
	if agg == "" || agg == AggNone || len(pts) == 0 {
		return pts
	}
	var out []Point
	start := 0
	for i := 1; i <= len(pts); i++ {
		if i < len(pts) && pts[i].T.Equal(pts[start].T) {
			continue
		}
		vals := make([]float64, 0, i-start)
		for _, p := range pts[start:i] {
			vals = append(vals, p.Y)
		}
		p := pts[start]
		p.Y = Aggregate(agg, vals)
		out = append(out, p)
		start = i
	}
	return out
}

// Aggregate reduces vals with agg. AggNone and unknown aggregations yield the
// first value; an empty input yields 0.
func Aggregate(agg Aggregation, vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	switch agg {
	case AggCount:
		return float64(len(vals))
	case AggSum, AggMean:
		var sum float64
		for _, v := range vals {
			sum += v
		}
		if agg == AggMean {
			return sum / float64(len(vals))
		}
		return sum
	case AggMin, AggMax:
		m := vals[0]
		for _, v := range vals[1:] {
			if (agg == AggMin && v < m) || (agg == AggMax && v > m) {
				m = v
			}
		}
		return m
	case AggMedian:
		return analysis.Quantiles(vals, 0.5)[0]
	}
	return vals[0]
}
