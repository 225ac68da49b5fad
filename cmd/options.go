package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/ingest"
	"github.com/KaramelBytes/datalens-cli/internal/metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ingestFlags are the input-format flags shared by every command that reads a file.
type ingestFlags struct {
	format     string
	delimiter  string
	decimal    string
	thousands  string
	encoding   string
	sentinels  []string
	sheetName  string
	sheetIndex int
	maxRows    int
}

func (f *ingestFlags) register(c *cobra.Command) {
	fs := c.Flags()
	fs.StringVar(&f.format, "format", "auto", "input format: auto|csv|text|xlsx")
	fs.StringVar(&f.delimiter, "delimiter", "", "field delimiter: ',' | ';' | '|' | 'tab' (default: ',' for CSV, sniffed for text)")
	fs.StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	fs.StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	fs.StringVar(&f.encoding, "encoding", "", "text encoding when not UTF-8: latin1|windows-1252|iso-8859-15")
	fs.StringSliceVar(&f.sentinels, "na", nil, "tokens treated as missing (replaces the built-in list; repeatable)")
	fs.StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to read")
	fs.IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	fs.IntVar(&f.maxRows, "max-rows", -1, "maximum rows to read (0 = unlimited; default from config)")
}

// options merges the flags over the configuration.
func (f *ingestFlags) options(c *cobra.Command) (ingest.Options, error) {
	conf := settings()
	opt := ingest.DefaultOptions()
	var err error
	if opt.Format, err = ingest.ParseFormat(f.format); err != nil {
		return opt, err
	}
	pick := func(flag, fromFlag, fromConf string) string {
		if c.Flags().Changed(flag) {
			return fromFlag
		}
		return fromConf
	}
	if opt.Delimiter, err = ingest.ParseDelimiter(pick("delimiter", f.delimiter, conf.Delimiter)); err != nil {
		return opt, fmt.Errorf("--delimiter: %w", err)
	}
	if opt.Parse.DecimalSeparator, err = ingest.ParseDecimal(pick("decimal", f.decimal, conf.DecimalSeparator)); err != nil {
		return opt, fmt.Errorf("--decimal: %w", err)
	}
	if opt.Parse.ThousandsSeparator, err = ingest.ParseThousands(pick("thousands", f.thousands, conf.ThousandsSeparator)); err != nil {
		return opt, fmt.Errorf("--thousands: %w", err)
	}
	opt.Encoding = pick("encoding", f.encoding, conf.Encoding)
	tokens := conf.SentinelTokens()
	if c.Flags().Changed("na") {
		tokens = f.sentinels
	}
	opt.Parse = opt.Parse.WithSentinels(tokens)
	opt.SheetName = f.sheetName
	if f.sheetIndex > 0 {
		opt.SheetIndex = f.sheetIndex
	}
	opt.MaxRows = conf.MaxRows
	if f.maxRows >= 0 {
		opt.MaxRows = f.maxRows
	}
	return opt, nil
}

// profileFlags control the column profile.
type profileFlags struct {
	sampleRows   int
	groupBy      []string
	maxGroups    int
	corr         bool
	corrGroups   bool
	outliers     bool
	outlierThr   float64
	topValues    int
	topTokens    int
	keepStopword bool
}

func (f *profileFlags) register(c *cobra.Command) {
	fs := c.Flags()
	fs.IntVar(&f.sampleRows, "sample-rows", -1, "number of sample rows to include (default from config)")
	fs.StringSliceVar(&f.groupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	fs.IntVar(&f.maxGroups, "max-groups", 20, "maximum groups reported, largest first")
	fs.BoolVar(&f.corr, "correlations", false, "compute Pearson correlations among numeric columns")
	fs.BoolVar(&f.corrGroups, "corr-per-group", false, "compute correlation pairs within each group (may be slower)")
	fs.BoolVar(&f.outliers, "outliers", true, "compute robust outlier counts (MAD)")
	fs.Float64Var(&f.outlierThr, "outlier-threshold", 0, "robust |z| threshold for outliers (default from config)")
	fs.IntVar(&f.topValues, "top-values", 0, "most frequent values listed per textual column (default from config)")
	fs.IntVar(&f.topTokens, "top-tokens", 0, "most frequent tokens listed per textual column (default from config)")
	fs.BoolVar(&f.keepStopword, "keep-stopwords", false, "count English stopwords in token frequencies")
}

func (f *profileFlags) options(c *cobra.Command) analysis.Options {
	opt := profileDefaults()
	if f.sampleRows >= 0 {
		opt.SampleRows = f.sampleRows
	}
	opt.GroupBy = f.groupBy
	if f.maxGroups > 0 {
		opt.MaxGroups = f.maxGroups
	}
	opt.Correlations = f.corr
	opt.CorrPerGroup = f.corrGroups
	if c.Flags().Changed("outliers") {
		opt.Outliers = f.outliers
	}
	if f.outlierThr > 0 {
		opt.OutlierThreshold = f.outlierThr
	}
	if f.topValues > 0 {
		opt.TopValues = f.topValues
	}
	if f.topTokens > 0 {
		opt.TopTokens = f.topTokens
	}
	if f.keepStopword {
		opt.Stopwords = false
	}
	return opt
}

// profileDefaults applies the configured profile settings over the package defaults.
func profileDefaults() analysis.Options {
	conf := settings()
	opt := analysis.DefaultOptions()
	if conf.SampleRows > 0 {
		opt.SampleRows = conf.SampleRows
	}
	if conf.TopValues > 0 {
		opt.TopValues = conf.TopValues
	}
	if conf.TopTokens > 0 {
		opt.TopTokens = conf.TopTokens
	}
	if conf.OutlierThreshold > 0 {
		opt.OutlierThreshold = conf.OutlierThreshold
	}
	opt.Stopwords = conf.Stopwords
	return opt
}

// tableFlags filter, sort and select rows after ingestion.
type tableFlags struct {
	where   []string
	ranges  []string
	sortBy  []string
	columns []string
}

// register adds --where and --range; full also adds --sort and --columns.
func (f *tableFlags) register(c *cobra.Command, full bool) {
	fs := c.Flags()
	fs.StringArrayVar(&f.where, "where", nil, "keep rows where column is one of the values: col=v1,v2 (repeatable)")
	fs.StringArrayVar(&f.ranges, "range", nil, "keep rows with numeric column in [lo, hi]: col=lo:hi, either bound optional (repeatable)")
	if full {
		fs.StringSliceVar(&f.sortBy, "sort", nil, "sort keys: col, col:desc or -col (repeatable)")
		fs.StringSliceVar(&f.columns, "columns", nil, "keep only these columns, in this order")
	}
}

func (f *tableFlags) filters() ([]dataset.FilterSpec, error) {
	var out []dataset.FilterSpec
	for _, w := range f.where {
		flt, err := dataset.ParseWhere(w)
		if err != nil {
			return nil, err
		}
		out = append(out, flt)
	}
	for _, r := range f.ranges {
		flt, err := dataset.ParseRange(r)
		if err != nil {
			return nil, err
		}
		out = append(out, flt)
	}
	return out, nil
}

// apply filters, then sorts, then selects.
func (f *tableFlags) apply(ds *dataset.Dataset) (*dataset.Dataset, error) {
	filters, err := f.filters()
	if err != nil {
		return nil, err
	}
	if len(filters) > 0 {
		if ds, err = dataset.Apply(ds, filters...); err != nil {
			return nil, err
		}
	}
	if len(f.sortBy) > 0 {
		keys := make([]dataset.SortKey, 0, len(f.sortBy))
		for _, s := range f.sortBy {
			k, err := dataset.ParseSortKey(s)
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
		}
		if ds, err = dataset.Sort(ds, keys...); err != nil {
			return nil, err
		}
	}
	if len(f.columns) > 0 {
		if ds, err = dataset.Select(ds, f.columns...); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// loadDataset reads and parses path, recording metrics and diagnostics.
func loadDataset(path string, opt ingest.Options) (*dataset.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parseDataset(path, data, opt)
}

func parseDataset(path string, data []byte, opt ingest.Options) (*dataset.Dataset, error) {
	entry := logger().WithFields(logrus.Fields{"file": filepath.Base(path), "bytes": len(data)})
	ds, err := ingest.Parse(data, path, opt)
	if err != nil {
		mets.IngestFailed(err)
		entry.WithField("kind", metrics.ErrorKind(err)).Debug("ingest failed")
		return nil, err
	}
	f, _ := ingest.DetectFormat(path, data, opt.Format)
	mets.Ingested(f)
	entry.WithFields(logrus.Fields{
		"format":  f,
		"rows":    ds.Rows(),
		"columns": len(ds.Columns),
	}).Debug("dataset ingested")
	for _, w := range ds.Warnings {
		entry.Info(w)
	}
	return ds, nil
}

// profileDataset runs the profiler and records its duration.
func profileDataset(ds *dataset.Dataset, opt analysis.Options) *analysis.Report {
	start := time.Now()
	rep := analysis.Profile(ds, opt)
	mets.ObserveProfile(start)
	logger().WithFields(logrus.Fields{
		"dataset": ds.Name,
		"elapsed": time.Since(start).String(),
	}).Debug("profile computed")
	return rep
}
