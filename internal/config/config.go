package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Ingestion
	Sentinels          []string `mapstructure:"sentinels" yaml:"sentinels"`
	Delimiter          string   `mapstructure:"delimiter" yaml:"delimiter"`
	DecimalSeparator   string   `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	ThousandsSeparator string   `mapstructure:"thousands_separator" yaml:"thousands_separator"`
	Encoding           string   `mapstructure:"encoding" yaml:"encoding"`
	MaxRows            int      `mapstructure:"max_rows" yaml:"max_rows"`

	// Profiling
	SampleRows       int     `mapstructure:"sample_rows" yaml:"sample_rows"`
	TopValues        int     `mapstructure:"top_values" yaml:"top_values"`
	TopTokens        int     `mapstructure:"top_tokens" yaml:"top_tokens"`
	Stopwords        bool    `mapstructure:"stopwords" yaml:"stopwords"`
	OutlierThreshold float64 `mapstructure:"outlier_threshold" yaml:"outlier_threshold"`

	// Charts
	HistogramBins int     `mapstructure:"histogram_bins" yaml:"histogram_bins"`
	ChartWidth    float64 `mapstructure:"chart_width" yaml:"chart_width"`
	ChartHeight   float64 `mapstructure:"chart_height" yaml:"chart_height"`
	ChartFormat   string  `mapstructure:"chart_format" yaml:"chart_format"`

	// Sessions
	SessionsDir   string `mapstructure:"sessions_dir" yaml:"sessions_dir"`
	SessionTTLMin int    `mapstructure:"session_ttl_min" yaml:"session_ttl_min"`

	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// SentinelTokens returns the configured missing-value tokens, nil for the built-in list.
func (c *Global) SentinelTokens() []string {
	if len(c.Sentinels) == 0 {
		return nil
	}
	return c.Sentinels
}

// Set assigns one key from its string form. List values are comma-separated.
func (c *Global) Set(key, val string) error {
	switch key {
	case "sentinels":
		c.Sentinels = nil
		for _, s := range strings.Split(val, ",") {
			c.Sentinels = append(c.Sentinels, strings.TrimSpace(s))
		}
	case "delimiter":
		c.Delimiter = val
	case "decimal_separator":
		c.DecimalSeparator = val
	case "thousands_separator":
		c.ThousandsSeparator = val
	case "encoding":
		c.Encoding = val
	case "max_rows":
		return setInt(&c.MaxRows, key, val, 0)
	case "sample_rows":
		return setInt(&c.SampleRows, key, val, 0)
	case "top_values":
		return setInt(&c.TopValues, key, val, 1)
	case "top_tokens":
		return setInt(&c.TopTokens, key, val, 1)
	case "stopwords":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for %s: %v", key, val)
		}
		c.Stopwords = b
	case "outlier_threshold":
		return setFloat(&c.OutlierThreshold, key, val)
	case "histogram_bins":
		return setInt(&c.HistogramBins, key, val, 1)
	case "chart_width":
		return setFloat(&c.ChartWidth, key, val)
	case "chart_height":
		return setFloat(&c.ChartHeight, key, val)
	case "chart_format":
		c.ChartFormat = strings.ToLower(val)
	case "sessions_dir":
		c.SessionsDir = val
	case "session_ttl_min":
		return setInt(&c.SessionTTLMin, key, val, 1)
	case "log_level":
		switch strings.ToLower(val) {
		case "trace", "debug", "info", "warn", "warning", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug|info|warn|error)", val)
		}
	case "metrics_file":
		c.MetricsFile = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, val string, min int) error {
	i, err := strconv.Atoi(val)
	if err != nil || i < min {
		return fmt.Errorf("invalid int for %s: %v", key, val)
	}
	*dst = i
	return nil
}

func setFloat(dst *float64, key, val string) error {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f <= 0 {
		return fmt.Errorf("invalid float for %s: %v", key, val)
	}
	*dst = f
	return nil
}

// YAML renders the configuration as it would be saved.
func (c *Global) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".datalens"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.datalens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := homeDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := c.YAML()
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sentinels", []string{})
	v.SetDefault("delimiter", "")
	v.SetDefault("decimal_separator", "")
	v.SetDefault("thousands_separator", "")
	v.SetDefault("encoding", "")
	v.SetDefault("max_rows", 100000)
	v.SetDefault("sample_rows", 5)
	v.SetDefault("top_values", 8)
	v.SetDefault("top_tokens", 50)
	v.SetDefault("stopwords", true)
	v.SetDefault("outlier_threshold", 3.5)
	v.SetDefault("histogram_bins", 20)
	v.SetDefault("chart_width", 640)
	v.SetDefault("chart_height", 480)
	v.SetDefault("chart_format", "png")
	v.SetDefault("sessions_dir", "")
	v.SetDefault("session_ttl_min", 30)
	v.SetDefault("log_level", "warn")
	v.SetDefault("metrics_file", "")
}

// Defaults returns the built-in configuration without reading files or env.
func Defaults() *Global {
	v := viper.New()
	setDefaults(v)
	var c Global
	_ = v.Unmarshal(&c)
	if dir, err := homeDir(); err == nil {
		c.SessionsDir = filepath.Join(dir, "sessions")
	}
	return &c
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DATALENS")
	v.AutomaticEnv()
	setDefaults(v)

	dir, err := homeDir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// Absent files fall back to defaults; unreadable ones are errors.
		path := cfgFile
		if path == "" {
			path = filepath.Join(dir, "config.yaml")
		}
		if fileExists(path) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.SessionsDir == "" {
		c.SessionsDir = filepath.Join(dir, "sessions")
	}
	return &c, nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
