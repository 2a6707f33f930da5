package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	vars := map[string]string{
		"PARTNERS_PRIMARY.ENV":                  "local",
		"PARTNERS_SERVER.PORT":                  "8080",
		"PARTNERS_SERVER.READ_TIMEOUT":          "30",
		"PARTNERS_SERVER.WRITE_TIMEOUT":         "30",
		"PARTNERS_SERVER.IDLE_TIMEOUT":          "60",
		"PARTNERS_SERVER.CORS_ALLOWED_ORIGINS":  "http://localhost:3000",
		"PARTNERS_DATABASE.HOST":                "localhost",
		"PARTNERS_DATABASE.PORT":                "5432",
		"PARTNERS_DATABASE.USER":                "postgres",
		"PARTNERS_DATABASE.PASSWORD":            "postgres",
		"PARTNERS_DATABASE.NAME":                "partners",
		"PARTNERS_DATABASE.SSL_MODE":            "disable",
		"PARTNERS_DATABASE.MAX_OPEN_CONNS":      "25",
		"PARTNERS_DATABASE.MAX_IDLE_CONNS":      "25",
		"PARTNERS_DATABASE.CONN_MAX_LIFETIME":   "300",
		"PARTNERS_DATABASE.CONN_MAX_IDLE_TIME":  "300",
		"PARTNERS_REDIS.ADDRESS":                "localhost:6379",
		"PARTNERS_AUTH.SECRET_KEY":              "sk_test",
		"PARTNERS_INTEGRATION.RESEND_API_KEY":   "re_test",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "partners", cfg.Observability.ServiceName)
	assert.Equal(t, "local", cfg.Observability.Environment)
	assert.Equal(t, DefaultPayoutsConfig(), cfg.Payouts)
	assert.Equal(t, 10*time.Second, cfg.Webhooks.Timeout)
	assert.Equal(t, 600, cfg.RateLimit.TrackRequestsPerMinute)
	assert.NotEmpty(t, cfg.Integration.EmailFrom)
	assert.True(t, cfg.IsLocal())
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PARTNERS_AUTH.SECRET_KEY", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_InvalidCron(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PARTNERS_PAYOUTS.AGGREGATION_CRON", "every hour")
	t.Setenv("PARTNERS_PAYOUTS.FEE_BASIS_POINTS", "500")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aggregation_cron")
}

func TestObservabilityConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ObservabilityConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *ObservabilityConfig) {}},
		{name: "bad level", mutate: func(c *ObservabilityConfig) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "bad format", mutate: func(c *ObservabilityConfig) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "negative threshold", mutate: func(c *ObservabilityConfig) { c.Logging.SlowQueryThreshold = -time.Second }, wantErr: true},
		{name: "missing service", mutate: func(c *ObservabilityConfig) { c.ServiceName = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultObservabilityConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestObservabilityConfig_GetLogLevel(t *testing.T) {
	c := DefaultObservabilityConfig()
	c.Logging.Level = ""

	c.Environment = "production"
	assert.Equal(t, "info", c.GetLogLevel())

	c.Environment = "development"
	assert.Equal(t, "debug", c.GetLogLevel())

	c.Logging.Level = "warn"
	assert.Equal(t, "warn", c.GetLogLevel())
}
