package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/chart"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/render"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// chartFlags describe one chart request and its rendering.
type chartFlags struct {
	columns []string
	color   string
	size    string
	agg     string
	bins    int
	output  string
	width   float64
	height  float64
	format  string
}

func (f *chartFlags) register(c *cobra.Command) {
	fs := c.Flags()
	fs.StringSliceVar(&f.columns, "columns", nil, "chart columns in role order (see 'datalens kinds')")
	fs.StringVar(&f.color, "color", "", "scatter: column encoded as point color")
	fs.StringVar(&f.size, "size", "", "scatter: numeric column encoded as point size")
	fs.StringVar(&f.agg, "agg", "", "aggregation: none|sum|mean|count|min|max|median")
	fs.IntVar(&f.bins, "bins", 0, "histogram bins (default from config)")
	fs.StringVarP(&f.output, "output", "o", "", "image file to write (format from extension)")
	fs.Float64Var(&f.width, "width", 0, "image width in points (default from config)")
	fs.Float64Var(&f.height, "height", 0, "image height in points (default from config)")
	fs.StringVar(&f.format, "image-format", "", "image format: png|svg|pdf|jpg|eps|tiff (default from extension or config)")
}

// spec builds the unvalidated request for kind.
func (f *chartFlags) spec(kind string) (chart.Spec, error) {
	k, err := chart.ParseKind(kind)
	if err != nil {
		return chart.Spec{}, err
	}
	s := chart.Spec{Kind: k, Columns: f.columns, Color: f.color, Size: f.size, Bins: f.bins}
	if f.agg != "" {
		if s.Aggregation, err = chart.ParseAggregation(f.agg); err != nil {
			return chart.Spec{}, err
		}
	}
	if k == chart.Histogram && s.Bins == 0 && settings().HistogramBins > 0 {
		s.Bins = settings().HistogramBins
	}
	return s, nil
}

func (f *chartFlags) renderOptions() render.Options {
	conf := settings()
	opt := render.DefaultOptions()
	if conf.ChartWidth > 0 {
		opt.Width = conf.ChartWidth
	}
	if conf.ChartHeight > 0 {
		opt.Height = conf.ChartHeight
	}
	if f.width > 0 {
		opt.Width = f.width
	}
	if f.height > 0 {
		opt.Height = f.height
	}
	fallback := opt.Format
	if conf.ChartFormat != "" {
		fallback = conf.ChartFormat
	}
	opt.Format = render.FormatFromPath(f.output, fallback)
	if f.format != "" {
		opt.Format = f.format
	}
	return opt
}

// resolveChart validates spec against ds and records the outcome.
func resolveChart(ds *dataset.Dataset, spec chart.Spec) (*chart.Request, error) {
	req, err := chart.Resolve(ds, spec)
	mets.ChartRequested(spec.Kind, err)
	if err != nil {
		logger().WithFields(logrus.Fields{"kind": spec.Kind, "columns": spec.Columns}).Debug("chart rejected")
		return nil, err
	}
	return req, nil
}

// renderChart prepares the column data for req and writes the image to the output path.
func renderChart(ds *dataset.Dataset, req *chart.Request, f *chartFlags) error {
	if f.output == "" {
		return fmt.Errorf("--output is required")
	}
	data, err := chart.Prepare(ds, req)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := (render.PlotRenderer{}).Render(&buf, data, f.renderOptions()); err != nil {
		return err
	}
	if err := utils.SafeWriteFile(f.output, buf.Bytes()); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	logger().WithFields(logrus.Fields{"request": req.String(), "bytes": buf.Len()}).Debug("chart rendered")
	return nil
}

var (
	chIngest ingestFlags
	chTable  tableFlags
	chFlags  chartFlags
	chCheck  bool
)

var chartCmd = &cobra.Command{
	Use:   "chart <kind> <file>",
	Short: "Validate a chart request against column types and render it",
	Long: `Resolve a chart request and render it with gonum/plot.

Kinds: ` + strings.Join(kindNames(), ", ") + `
Run 'datalens kinds' for the columns each kind expects.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := chFlags.spec(args[0])
		if err != nil {
			return err
		}
		in, err := chIngest.options(cmd)
		if err != nil {
			return err
		}
		ds, err := loadDataset(args[1], in)
		if err != nil {
			return err
		}
		if ds, err = chTable.apply(ds); err != nil {
			return err
		}
		req, err := resolveChart(ds, spec)
		if err != nil {
			return err
		}
		if chCheck {
			fmt.Printf("✓ %s\n", req)
			return nil
		}
		if err := renderChart(ds, req, &chFlags); err != nil {
			return err
		}
		fmt.Printf("✓ Rendered %s to %s\n", req, chFlags.output)
		return nil
	},
}

func kindNames() []string {
	var out []string
	for _, r := range chart.Kinds() {
		out = append(out, string(r.Kind))
	}
	return out
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chIngest.register(chartCmd)
	chTable.register(chartCmd, false)
	chFlags.register(chartCmd)
	chartCmd.Flags().BoolVar(&chCheck, "check", false, "only validate the request; do not render")
}
