// Package config manages environment variables.
//
// It reads variables from the process environment (and a `.env` file when
// present), loads them into structured Go types, and validates that
// required values are present so they can be reused across the
// application runtime.
//
// Responsibilities:
//   - Load environment variables (optionally from a `.env` file).
//   - Map env vars into a structured Go config (structs).
//   - Validate required values so the app fails fast on bad/missing config.
//   - Provide sane defaults for optional config blocks (observability, payouts, webhooks).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Side-effect import: if a `.env` file exists it gets loaded into the
	// process env before any variable is read.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

// EnvPrefix is stripped from every environment variable before it is mapped
// into the config tree. PARTNERS_SERVER.PORT -> server.port.
const EnvPrefix = "PARTNERS_"

// Config is the root configuration object for the application.
//
// Optional blocks are pointers; nil means "not provided" and defaults are
// injected by LoadConfig.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis" validate:"required"`
	Auth          AuthConfig           `koanf:"auth" validate:"required"`
	Integration   IntegrationConfig    `koanf:"integration" validate:"required"`
	Payouts       *PayoutsConfig       `koanf:"payouts"`
	Webhooks      *WebhooksConfig      `koanf:"webhooks"`
	RateLimit     *RateLimitConfig     `koanf:"rate_limit"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig groups settings for the HTTP server runtime.
// Timeouts are expressed in seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password" validate:"required"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int    `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"required"`
}

// RedisConfig contains Redis connection details. Address is "host:port".
type RedisConfig struct {
	Address string `koanf:"address" validate:"required"`
}

// AuthConfig stores authentication-related secrets (Clerk secret key).
type AuthConfig struct {
	SecretKey string `koanf:"secret_key" validate:"required"`
}

// IntegrationConfig holds credentials for outbound SaaS integrations.
type IntegrationConfig struct {
	ResendAPIKey string `koanf:"resend_api_key" validate:"required"`
	// EmailFrom is the verified sender, e.g. "Partners <partners@example.com>".
	EmailFrom string `koanf:"email_from"`
	// AppURL is used to build links inside emails.
	AppURL string `koanf:"app_url"`
}

// PayoutsConfig controls commission aggregation and invoicing.
type PayoutsConfig struct {
	// AggregationCron is a standard 5-field cron spec for the periodic
	// "aggregate due commissions" task.
	AggregationCron string `koanf:"aggregation_cron" validate:"required"`
	// DefaultHoldingPeriodDays applies to programs created without one.
	DefaultHoldingPeriodDays int `koanf:"default_holding_period_days" validate:"min=0,max=90"`
	// DefaultMinPayoutAmount is in cents.
	DefaultMinPayoutAmount int64 `koanf:"default_min_payout_amount" validate:"min=0"`
	// FeeBasisPoints is charged on top of the payout total (500 = 5%).
	FeeBasisPoints int64 `koanf:"fee_basis_points" validate:"min=0,max=10000"`
}

// WebhooksConfig controls outbound webhook delivery.
type WebhooksConfig struct {
	Timeout                time.Duration `koanf:"timeout" validate:"min=1s"`
	MaxRetry               int           `koanf:"max_retry" validate:"min=0"`
	MaxConsecutiveFailures int           `koanf:"max_consecutive_failures" validate:"min=1"`
}

// RateLimitConfig is a fixed-window limit applied per workspace on the
// tracking endpoints.
type RateLimitConfig struct {
	TrackRequestsPerMinute int `koanf:"track_requests_per_minute" validate:"min=1"`
}

// DefaultPayoutsConfig is used when no payouts block is configured.
func DefaultPayoutsConfig() *PayoutsConfig {
	return &PayoutsConfig{
		AggregationCron:          "0 * * * *",
		DefaultHoldingPeriodDays: 30,
		DefaultMinPayoutAmount:   10000,
		FeeBasisPoints:           500,
	}
}

// DefaultWebhooksConfig is used when no webhooks block is configured.
func DefaultWebhooksConfig() *WebhooksConfig {
	return &WebhooksConfig{
		Timeout:                10 * time.Second,
		MaxRetry:               5,
		MaxConsecutiveFailures: 20,
	}
}

// DefaultRateLimitConfig is used when no rate_limit block is configured.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{TrackRequestsPerMinute: 600}
}

// LoadConfig loads configuration from environment variables, unmarshals it
// into Config, validates it, applies defaults and returns the result.
//
// Keys are lowercased with the PARTNERS_ prefix removed, and nesting uses
// the "." delimiter: PARTNERS_DATABASE.HOST -> database.host.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	mainConfig := &Config{}
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	mainConfig.applyDefaults()

	if err := mainConfig.Validate(); err != nil {
		return nil, err
	}

	return mainConfig, nil
}

// applyDefaults fills every optional block left nil by the environment.
func (c *Config) applyDefaults() {
	if c.Observability == nil {
		c.Observability = DefaultObservabilityConfig()
	}
	if c.Payouts == nil {
		c.Payouts = DefaultPayoutsConfig()
	}
	if c.Webhooks == nil {
		c.Webhooks = DefaultWebhooksConfig()
	}
	if c.RateLimit == nil {
		c.RateLimit = DefaultRateLimitConfig()
	}
	if c.Integration.EmailFrom == "" {
		c.Integration.EmailFrom = "Partners <partners@notifications.dub.co>"
	}

	// Service name is fixed, environment always follows primary.env so
	// logs and traces agree on both.
	c.Observability.ServiceName = "partners"
	c.Observability.Environment = c.Primary.Env
}

// Validate runs struct-tag validation plus the checks tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := cron.ParseStandard(c.Payouts.AggregationCron); err != nil {
		return fmt.Errorf("invalid payouts aggregation_cron %q: %w", c.Payouts.AggregationCron, err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

// IsLocal reports whether the app runs on a developer machine.
func (c *Config) IsLocal() bool {
	return c.Primary.Env == "local"
}
