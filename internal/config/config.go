package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete taxaflow configuration
type Config struct {
	Toolkit     ToolkitConfig     `mapstructure:"toolkit"`
	Filter      FilterConfig      `mapstructure:"filter"`
	Composition CompositionConfig `mapstructure:"composition"`
	Regression  RegressionConfig  `mapstructure:"regression"`
	Taxonomy    TaxonomyConfig    `mapstructure:"taxonomy"`
	Cleanup     CleanupConfig     `mapstructure:"cleanup"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Paths       PathsConfig       `mapstructure:"paths"`
	UI          UIConfig          `mapstructure:"ui"`
}

// ToolkitConfig controls how the external bioinformatics toolkit is invoked
type ToolkitConfig struct {
	// Binary is the toolkit executable name or path (default: "qiime").
	// Resolved via PATH lookup when not absolute.
	Binary string `mapstructure:"binary"`
	// TimeoutMinutes is the maximum runtime per toolkit invocation in minutes.
	// 0 (the default) means no timeout: stages run until the toolkit exits.
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
}

// FilterConfig controls the feature filtering stage
type FilterConfig struct {
	// MinFrequency is the minimum total frequency a feature must have across
	// all samples to be retained (default: 10)
	MinFrequency int `mapstructure:"min_frequency"`
}

// CompositionConfig controls the compositional preprocessing stage
type CompositionConfig struct {
	// Pseudocount is the value added to every count before log-ratio
	// transforms, so zeros do not break the logarithm (default: 1)
	Pseudocount int `mapstructure:"pseudocount"`
}

// RegressionConfig controls the OLS regression stage
type RegressionConfig struct {
	// Formula is the patsy-style model formula passed to the toolkit
	// (e.g., "ph + depth"). Column names must exist in the sample metadata.
	Formula string `mapstructure:"formula"`
}

// TaxonomyConfig controls taxonomy-aware visualization stages
type TaxonomyConfig struct {
	// Level is the taxonomic level used when collapsing feature labels
	// for balance visualization (default: 6, genus)
	Level int `mapstructure:"level"`
	// Balance is the balance name to visualize taxonomically (default: "y0",
	// the root balance of the hierarchy)
	Balance string `mapstructure:"balance"`
}

// CleanupConfig controls the cleanup command's behavior
type CleanupConfig struct {
	// MaxAgeDays removes runs older than this many days when the cleanup
	// command runs without an explicit --age flag (default: 30, 0 = no age limit)
	MaxAgeDays int `mapstructure:"max_age_days"`
	// MaxRuns keeps at most this many of the most recent runs; older runs
	// beyond the limit are removed (default: 0 = no count limit)
	MaxRuns int `mapstructure:"max_runs"`
	// Keep is a list of glob patterns; runs whose ID or artifacts match a
	// pattern are never removed (e.g., "a3f*", "*.qzv")
	Keep []string `mapstructure:"keep"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether per-run debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// PathsConfig controls where taxaflow stores data
type PathsConfig struct {
	// RunsDir is the directory where run directories are created.
	// If empty, defaults to "~/.taxaflow/runs".
	// Supports ~ for home directory expansion.
	RunsDir string `mapstructure:"runs_dir"`
}

// UIConfig controls the terminal UI behavior
type UIConfig struct {
	// Progress enables the interactive progress display during runs when
	// stdout is a terminal (default: true). When false, or when output is
	// not a terminal, plain line-oriented progress is printed instead.
	Progress bool `mapstructure:"progress"`
	// RefreshMs is how often the progress display refreshes elapsed timers
	// (in milliseconds, default: 250)
	RefreshMs int `mapstructure:"refresh_ms"`
}

// ResolveRunsDir returns the resolved runs directory path.
// If RunsDir is empty, it returns ~/.taxaflow/runs.
// If RunsDir starts with ~, it expands to the user's home directory.
func (p *PathsConfig) ResolveRunsDir() string {
	path := p.RunsDir
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".taxaflow", "runs")
		}
		return filepath.Join(home, ".taxaflow", "runs")
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Toolkit: ToolkitConfig{
			Binary:         "qiime",
			TimeoutMinutes: 0, // No per-invocation timeout unless configured
		},
		Filter: FilterConfig{
			MinFrequency: 10,
		},
		Composition: CompositionConfig{
			Pseudocount: 1,
		},
		Regression: RegressionConfig{
			Formula: "",
		},
		Taxonomy: TaxonomyConfig{
			Level:   6, // Genus
			Balance: "y0",
		},
		Cleanup: CleanupConfig{
			MaxAgeDays: 30,
			MaxRuns:    0,
			Keep:       []string{},
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Paths: PathsConfig{
			RunsDir: "", // Empty means use default: ~/.taxaflow/runs
		},
		UI: UIConfig{
			Progress:  true,
			RefreshMs: 250,
		},
	}
}

// Timeout returns the per-invocation toolkit timeout as a time.Duration
// (0 means disabled)
func (c *ToolkitConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// MaxAge returns the cleanup age cutoff as a time.Duration (0 means disabled)
func (c *CleanupConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

// RefreshInterval returns the UI refresh interval as a time.Duration
func (c *UIConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Toolkit defaults
	viper.SetDefault("toolkit.binary", defaults.Toolkit.Binary)
	viper.SetDefault("toolkit.timeout_minutes", defaults.Toolkit.TimeoutMinutes)

	// Filter defaults
	viper.SetDefault("filter.min_frequency", defaults.Filter.MinFrequency)

	// Composition defaults
	viper.SetDefault("composition.pseudocount", defaults.Composition.Pseudocount)

	// Regression defaults
	viper.SetDefault("regression.formula", defaults.Regression.Formula)

	// Taxonomy defaults
	viper.SetDefault("taxonomy.level", defaults.Taxonomy.Level)
	viper.SetDefault("taxonomy.balance", defaults.Taxonomy.Balance)

	// Cleanup defaults
	viper.SetDefault("cleanup.max_age_days", defaults.Cleanup.MaxAgeDays)
	viper.SetDefault("cleanup.max_runs", defaults.Cleanup.MaxRuns)
	viper.SetDefault("cleanup.keep", defaults.Cleanup.Keep)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Paths defaults
	viper.SetDefault("paths.runs_dir", defaults.Paths.RunsDir)

	// UI defaults
	viper.SetDefault("ui.progress", defaults.UI.Progress)
	viper.SetDefault("ui.refresh_ms", defaults.UI.RefreshMs)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "taxaflow")
	}
	// Fall back to ~/.config/taxaflow
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taxaflow"
	}
	return filepath.Join(home, ".config", "taxaflow")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
