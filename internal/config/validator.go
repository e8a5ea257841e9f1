package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/gitcohort/internal/cohort"
	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/output"
)

// ValidationContext specifies which part of the configuration a command relies on
type ValidationContext string

const (
	// ValidationContextIngest - ingest needs log and ingest settings
	ValidationContextIngest ValidationContext = "ingest"
	// ValidationContextPlot - plot needs log, plot and cache settings
	ValidationContextPlot ValidationContext = "plot"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}
	return sb.String()
}

// Err converts the result into a Configuration Error, or nil when valid
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigError(strings.TrimSpace(vr.Error()))
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	c.validateLog(result)
	switch ctx {
	case ValidationContextIngest:
		c.validateIngest(result)
	case ValidationContextPlot:
		c.validatePlot(result)
		c.validateCache(result)
	case ValidationContextAll:
		c.validateIngest(result)
		c.validatePlot(result)
		c.validateCache(result)
	}

	return result
}

func (c *Config) validateLog(result *ValidationResult) {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		result.AddError("log.level %q is not a log level", c.Log.Level)
	}
}

func (c *Config) validateIngest(result *ValidationResult) {
	if c.Ingest.Workers < 1 {
		result.AddError("ingest.workers must be at least 1, got %d", c.Ingest.Workers)
	} else if c.Ingest.Workers > 64 {
		result.AddWarning("ingest.workers is %d; scans are bound by disk and git, not cores", c.Ingest.Workers)
	}
	if c.Ingest.MinYear < 1970 {
		result.AddError("ingest.min_year must be 1970 or later, got %d", c.Ingest.MinYear)
	}
}

func (c *Config) validatePlot(result *ValidationResult) {
	if _, err := cohort.ParseStrategy(c.Plot.Cohort); err != nil {
		result.AddError("plot.cohort: %v", err)
	}
	if _, err := cohort.ParseInterval(c.Plot.Interval); err != nil {
		result.AddError("plot.interval: %v", err)
	}
	if _, err := cohort.ParseUnit(c.Plot.Unit); err != nil {
		result.AddError("plot.unit: %v", err)
	}
	if _, err := output.NewSink(c.Plot.Format); err != nil {
		result.AddError("plot.format: %v", err)
	}
	if c.Plot.MaxCohorts < 0 {
		result.AddError("plot.max_cohorts must not be negative, got %d", c.Plot.MaxCohorts)
	}
	if c.Plot.BriefDays < 0 {
		result.AddError("plot.brief_days must not be negative, got %d", c.Plot.BriefDays)
	}
}

func (c *Config) validateCache(result *ValidationResult) {
	if !c.Cache.Enabled && c.Cache.Path != "" {
		result.AddWarning("cache.path is set but cache.enabled is false")
	}
}
