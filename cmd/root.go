package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/datalens-cli/internal/config"
	"github.com/KaramelBytes/datalens-cli/internal/logging"
	"github.com/KaramelBytes/datalens-cli/internal/metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg  *cfgpkg.Global
	log  *logrus.Logger
	mets = metrics.New()
)

var rootCmd = &cobra.Command{
	Use:   "datalens",
	Short: "DataLens CLI: profile tabular data and resolve charts",
	Long: `DataLens ingests CSV, XLSX and delimited text files, profiles every column
(types, missing values, summary statistics, token frequencies), validates chart
requests against column types and renders them, and exports the processed table.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flushMetrics()
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.datalens/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to built-in defaults.
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Defaults()
	}
	cfg = c
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	log = logging.New(level, os.Stderr)
	log.WithField("config", cfgFile).Debug("configuration loaded")
}

// logger returns the command logger, creating a default one when config
// loading has not run (as in tests that call helpers directly).
func logger() *logrus.Logger {
	if log == nil {
		log = logging.New("warn", os.Stderr)
	}
	return log
}

func settings() *cfgpkg.Global {
	if cfg == nil {
		cfg = cfgpkg.Defaults()
	}
	return cfg
}

func flushMetrics() {
	if cfg == nil || cfg.MetricsFile == "" {
		return
	}
	if err := mets.WriteTextfile(cfg.MetricsFile); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: write metrics: %v\n", err)
	}
}
