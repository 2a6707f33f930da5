package config

import (
	"fmt"
	"time"
)

// ObservabilityConfig groups all configuration related to telemetry and
// runtime visibility: logging, New Relic APM and dependency health checks.
//
// It is optional at the root level; LoadConfig injects defaults when the
// environment leaves it out.
type ObservabilityConfig struct {
	// ServiceName identifies this service in logs/traces/APM dashboards.
	// It is always overwritten by LoadConfig.
	ServiceName string `koanf:"service_name" validate:"required"`

	// Environment splits telemetry by environment (production, staging, ...).
	Environment string `koanf:"environment" validate:"required"`

	Logging      LoggingConfig      `koanf:"logging" validate:"required"`
	NewRelic     NewRelicConfig     `koanf:"new_relic"`
	HealthChecks HealthChecksConfig `koanf:"health_checks" validate:"required"`
}

// LoggingConfig holds application logging configuration.
type LoggingConfig struct {
	// Level is the verbosity threshold (debug/info/warn/error).
	Level string `koanf:"level" validate:"required"`

	// Format is "json" or "console".
	Format string `koanf:"format" validate:"required"`

	// SlowQueryThreshold marks queries slower than this as slow.
	// Supply parseable durations such as "100ms".
	SlowQueryThreshold time.Duration `koanf:"slow_query_threshold"`
}

// NewRelicConfig holds configuration for New Relic APM and tracing.
// An empty LicenseKey disables the agent entirely.
type NewRelicConfig struct {
	LicenseKey                string `koanf:"license_key"`
	AppLogForwardingEnabled   bool   `koanf:"app_log_forwarding_enabled"`
	DistributedTracingEnabled bool   `koanf:"distributed_tracing_enabled"`
	DebugLogging              bool   `koanf:"debug_logging"`
}

// HealthChecksConfig controls periodic checks for dependencies.
type HealthChecksConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval" validate:"min=1s"`
	Timeout  time.Duration `koanf:"timeout" validate:"min=1s"`
	// Checks names the dependencies to check (database, redis).
	Checks []string `koanf:"checks"`
}

// DefaultObservabilityConfig provides a safe set of defaults for local
// development that does not break production.
func DefaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{
		ServiceName: "partners",
		Environment: "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "json",
			SlowQueryThreshold: 100 * time.Millisecond,
		},
		NewRelic: NewRelicConfig{
			AppLogForwardingEnabled:   true,
			DistributedTracingEnabled: true,
			DebugLogging:              false, // mixed log formats otherwise
		},
		HealthChecks: HealthChecksConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
			Timeout:  5 * time.Second,
			Checks:   []string{"database", "redis"},
		},
	}
}

// Validate applies custom validation rules that go beyond struct tags.
func (c *ObservabilityConfig) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be one of: debug, info, warn, error)", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid logging format: %s (must be json or console)", c.Logging.Format)
	}

	if c.Logging.SlowQueryThreshold < 0 {
		return fmt.Errorf("logging slow_query_threshold must be non-negative")
	}

	return nil
}

// GetLogLevel returns the effective log level to use at runtime.
//
// Production defaults to "info" and development to "debug" when no level
// was set explicitly.
func (c *ObservabilityConfig) GetLogLevel() string {
	switch c.Environment {
	case "production":
		if c.Logging.Level == "" {
			return "info"
		}
	case "development":
		if c.Logging.Level == "" {
			return "debug"
		}
	}
	return c.Logging.Level
}

// IsProduction reports whether the application is running in production mode.
func (c *ObservabilityConfig) IsProduction() bool {
	return c.Environment == "production"
}
