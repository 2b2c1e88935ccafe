package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "toolkit.timeout_minutes")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Toolkit config
	errors = append(errors, c.validateToolkit()...)

	// Validate Filter config
	errors = append(errors, c.validateFilter()...)

	// Validate Composition config
	errors = append(errors, c.validateComposition()...)

	// Validate Taxonomy config
	errors = append(errors, c.validateTaxonomy()...)

	// Validate Cleanup config
	errors = append(errors, c.validateCleanup()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	// Validate Paths config
	errors = append(errors, c.validatePaths()...)

	// Validate UI config
	errors = append(errors, c.validateUI()...)

	return errors
}

// validateToolkit validates the ToolkitConfig
func (c *Config) validateToolkit() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Toolkit.Binary) == "" {
		errors = append(errors, ValidationError{
			Field:   "toolkit.binary",
			Value:   c.Toolkit.Binary,
			Message: "cannot be empty",
		})
	}

	// Timeout validation (0 means disabled, which is valid; negative is invalid)
	if c.Toolkit.TimeoutMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "toolkit.timeout_minutes",
			Value:   c.Toolkit.TimeoutMinutes,
			Message: "must be non-negative (0 disables timeout)",
		})
	}

	return errors
}

// validateFilter validates the FilterConfig
func (c *Config) validateFilter() []ValidationError {
	var errors []ValidationError

	if c.Filter.MinFrequency < 0 {
		errors = append(errors, ValidationError{
			Field:   "filter.min_frequency",
			Value:   c.Filter.MinFrequency,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateComposition validates the CompositionConfig
func (c *Config) validateComposition() []ValidationError {
	var errors []ValidationError

	// A pseudocount of zero would leave zero counts in place and break the
	// downstream log-ratio transform.
	if c.Composition.Pseudocount < 1 {
		errors = append(errors, ValidationError{
			Field:   "composition.pseudocount",
			Value:   c.Composition.Pseudocount,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateTaxonomy validates the TaxonomyConfig
func (c *Config) validateTaxonomy() []ValidationError {
	var errors []ValidationError

	// Standard taxonomy strings carry seven ranks (kingdom through species)
	const minLevel = 1
	const maxLevel = 7

	if c.Taxonomy.Level < minLevel || c.Taxonomy.Level > maxLevel {
		errors = append(errors, ValidationError{
			Field:   "taxonomy.level",
			Value:   c.Taxonomy.Level,
			Message: fmt.Sprintf("must be between %d and %d", minLevel, maxLevel),
		})
	}

	if strings.TrimSpace(c.Taxonomy.Balance) == "" {
		errors = append(errors, ValidationError{
			Field:   "taxonomy.balance",
			Value:   c.Taxonomy.Balance,
			Message: "cannot be empty",
		})
	}

	return errors
}

// validateCleanup validates the CleanupConfig
func (c *Config) validateCleanup() []ValidationError {
	var errors []ValidationError

	if c.Cleanup.MaxAgeDays < 0 {
		errors = append(errors, ValidationError{
			Field:   "cleanup.max_age_days",
			Value:   c.Cleanup.MaxAgeDays,
			Message: "must be non-negative (0 disables age limit)",
		})
	}

	if c.Cleanup.MaxRuns < 0 {
		errors = append(errors, ValidationError{
			Field:   "cleanup.max_runs",
			Value:   c.Cleanup.MaxRuns,
			Message: "must be non-negative (0 disables count limit)",
		})
	}

	// Each keep entry must be a compilable glob pattern
	for i, pattern := range c.Cleanup.Keep {
		if strings.TrimSpace(pattern) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("cleanup.keep[%d]", i),
				Value:   pattern,
				Message: "pattern cannot be empty",
			})
			continue
		}
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("cleanup.keep[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validatePaths validates the PathsConfig
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	// RunsDir validation - if set, check for invalid characters
	if c.Paths.RunsDir != "" {
		path := c.Paths.RunsDir

		// Check for null bytes which are invalid in paths
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "paths.runs_dir",
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		// Reasonable path length limit (most filesystems have limits around 4096)
		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "paths.runs_dir",
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}

// validateUI validates the UIConfig
func (c *Config) validateUI() []ValidationError {
	var errors []ValidationError

	const minRefreshMs = 50
	const maxRefreshMs = 5000

	if c.UI.RefreshMs < minRefreshMs {
		errors = append(errors, ValidationError{
			Field:   "ui.refresh_ms",
			Value:   c.UI.RefreshMs,
			Message: fmt.Sprintf("must be at least %dms", minRefreshMs),
		})
	}
	if c.UI.RefreshMs > maxRefreshMs {
		errors = append(errors, ValidationError{
			Field:   "ui.refresh_ms",
			Value:   c.UI.RefreshMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxRefreshMs),
		})
	}

	return errors
}
