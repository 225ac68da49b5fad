package render

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KaramelBytes/datalens-cli/internal/chart"
)

// PlotRenderer renders charts with gonum/plot.
type PlotRenderer struct{}

var _ Renderer = PlotRenderer{}

func (PlotRenderer) Render(w io.Writer, data *chart.Data, opt Options) error {
	opt, err := opt.validate()
	if err != nil {
		return err
	}
	p, err := Build(data)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(vg.Points(opt.Width), vg.Points(opt.Height), opt.Format)
	if err != nil {
		return fmt.Errorf("encode %s: %w", opt.Format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", opt.Format, err)
	}
	return nil
}

// Build assembles the gonum plot for data without encoding it.
func Build(data *chart.Data) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = data.Title
	p.X.Label.Text = data.XLabel
	p.Y.Label.Text = data.YLabel

	var err error
	switch data.Kind {
	case chart.Bar:
		err = addBars(p, data)
	case chart.Scatter:
		err = addScatter(p, data)
	case chart.Histogram:
		err = addHistogram(p, data)
	case chart.Box:
		err = addBox(p, data)
	case chart.Heatmap:
		err = addHeatmap(p, data)
	case chart.TimeSeries:
		err = addTimeSeries(p, data)
	case chart.WordCloud:
		err = addWordCloud(p, data)
	default:
		err = fmt.Errorf("%w: %q", chart.ErrUnknownKind, data.Kind)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func addBars(p *plot.Plot, data *chart.Data) error {
	if len(data.Values) == 0 {
		return ErrNoData
	}
	bars, err := plotter.NewBarChart(plotter.Values(data.Values), vg.Points(20))
	if err != nil {
		return fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars, plotter.NewGrid())
	p.NominalX(data.Categories...)
	return nil
}

func addScatter(p *plot.Plot, data *chart.Data) error {
	if len(data.Points) == 0 {
		return ErrNoData
	}
	xys := make(plotter.XYs, len(data.Points))
	for i, pt := range data.Points {
		xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("scatter: %w", err)
	}
	colors := palette.Heat(64, 1).Colors()
	cLo, cHi := encodingRange(data.Points, func(pt chart.Point) float64 { return pt.Color })
	sLo, sHi := encodingRange(data.Points, func(pt chart.Point) float64 { return pt.Size })
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		g := draw.GlyphStyle{Color: plotutil.Color(0), Radius: vg.Points(3), Shape: draw.CircleGlyph{}}
		pt := data.Points[i]
		if data.HasColor {
			g.Color = colors[int(scale(pt.Color, cLo, cHi)*float64(len(colors)-1))]
		}
		if data.HasSize {
			g.Radius = vg.Points(2 + 8*scale(pt.Size, sLo, sHi))
		}
		return g
	}
	p.Add(s, plotter.NewGrid())
	return nil
}

func encodingRange(pts []chart.Point, f func(chart.Point) float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, pt := range pts {
		v := f(pt)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// scale maps v into [0,1] over [lo,hi]; a degenerate range maps to 0.5.
func scale(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0.5
	}
	return (v - lo) / (hi - lo)
}

func addHistogram(p *plot.Plot, data *chart.Data) error {
	if len(data.Series) == 0 {
		return ErrNoData
	}
	bins := data.Bins
	if bins <= 0 {
		bins = chart.DefaultBins
	}
	h, err := plotter.NewHist(plotter.Values(data.Series), bins)
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	h.FillColor = plotutil.Color(1)
	p.Add(h, plotter.NewGrid())
	p.Y.Label.Text = "count"
	return nil
}

func addBox(p *plot.Plot, data *chart.Data) error {
	if len(data.Series) == 0 {
		return ErrNoData
	}
	b, err := plotter.NewBoxPlot(vg.Points(40), 0, plotter.Values(data.Series))
	if err != nil {
		return fmt.Errorf("box plot: %w", err)
	}
	b.FillColor = plotutil.Color(2)
	p.Add(b, plotter.NewGrid())
	p.NominalX(data.XLabel)
	p.X.Label.Text = ""
	p.Y.Label.Text = data.XLabel
	return nil
}

// corrGrid adapts a correlation matrix to plotter.GridXYZ; row 0 is drawn on top.
type corrGrid struct {
	values [][]float64
}

func (g corrGrid) Dims() (c, r int)   { return len(g.values), len(g.values) }
func (g corrGrid) Z(c, r int) float64 { return g.values[len(g.values)-1-r][c] }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

func addHeatmap(p *plot.Plot, data *chart.Data) error {
	if data.Corr == nil || len(data.Corr.Columns) < 2 {
		return ErrNoData
	}
	h := plotter.NewHeatMap(corrGrid{values: data.Corr.Values}, palette.Heat(32, 1))
	h.Min, h.Max = -1, 1
	p.Add(h)

	n := len(data.Corr.Columns)
	var xys plotter.XYs
	var labels []string
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			xys = append(xys, plotter.XY{X: float64(c), Y: float64(n - 1 - r)})
			labels = append(labels, fmt.Sprintf("%.2f", data.Corr.Values[r][c]))
		}
	}
	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return fmt.Errorf("heatmap labels: %w", err)
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = draw.XCenter
		l.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(l)

	p.NominalX(data.Corr.Columns...)
	rev := make([]string, n)
	for i, name := range data.Corr.Columns {
		rev[n-1-i] = name
	}
	p.NominalY(rev...)
	return nil
}

func addTimeSeries(p *plot.Plot, data *chart.Data) error {
	if len(data.Points) == 0 {
		return ErrNoData
	}
	xys := make(plotter.XYs, len(data.Points))
	for i, pt := range data.Points {
		xys[i] = plotter.XY{X: float64(pt.T.Unix()), Y: pt.Y}
	}
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return fmt.Errorf("time series: %w", err)
	}
	line.LineStyle.Color = plotutil.Color(0)
	line.LineStyle.Width = vg.Points(1.5)
	points.GlyphStyle.Color = plotutil.Color(0)
	p.Add(line, points, plotter.NewGrid())
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	return nil
}

// addWordCloud lays the most frequent words out on a square grid with font
// size proportional to frequency.
func addWordCloud(p *plot.Plot, data *chart.Data) error {
	if len(data.Words) == 0 {
		return ErrNoData
	}
	side := int(math.Ceil(math.Sqrt(float64(len(data.Words)))))
	maxCount := float64(data.Words[0].Count)
	xys := make(plotter.XYs, len(data.Words))
	labels := make([]string, len(data.Words))
	for i, w := range data.Words {
		xys[i] = plotter.XY{X: float64(i % side), Y: float64(side - 1 - i/side)}
		labels[i] = w.Value
	}
	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return fmt.Errorf("word cloud: %w", err)
	}
	for i, w := range data.Words {
		l.TextStyle[i].Font.Size = vg.Points(8 + 28*float64(w.Count)/maxCount)
		l.TextStyle[i].Color = plotutil.Color(i)
		l.TextStyle[i].XAlign = draw.XCenter
		l.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(l)
	p.X.Min, p.X.Max = -0.5, float64(side)-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(side)-0.5
	p.HideAxes()
	return nil
}
