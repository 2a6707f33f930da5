// Package logger configures the application's logging, monitoring and
// observability.
//
// It uses zerolog for logging and integrates with New Relic to forward
// logs, metrics and traces when a license key is configured.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/newrelic/go-agent/v3/integrations/logcontext-v2/zerologWriter"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/deppfellow/partners/internal/config"
)

// LoggerService owns the optional New Relic application.
type LoggerService struct {
	nrApp *newrelic.Application
}

// NewLoggerService starts the New Relic agent when a license key is set.
// Without one it returns a service whose GetApplication is nil, and every
// caller treats that as "APM disabled".
func NewLoggerService(cfg *config.ObservabilityConfig) *LoggerService {
	service := &LoggerService{}

	if cfg.NewRelic.LicenseKey == "" {
		fmt.Println("New Relic license key not provided, skipping initialization")
		return service
	}

	var configOptions []newrelic.ConfigOption
	configOptions = append(configOptions,
		newrelic.ConfigAppName(cfg.ServiceName),
		newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(cfg.NewRelic.AppLogForwardingEnabled),
		newrelic.ConfigDistributedTracerEnabled(cfg.NewRelic.DistributedTracingEnabled),
	)
	if cfg.NewRelic.DebugLogging {
		configOptions = append(configOptions, newrelic.ConfigDebugLogger(os.Stdout))
	}

	app, err := newrelic.NewApplication(configOptions...)
	if err != nil {
		fmt.Printf("Failed to initialize New Relic: %v\n", err)
		return service
	}

	service.nrApp = app
	fmt.Printf("New Relic initialized for app: %s\n", cfg.ServiceName)
	return service
}

// Shutdown flushes pending New Relic data.
func (ls *LoggerService) Shutdown() {
	if ls.nrApp != nil {
		ls.nrApp.Shutdown(10 * time.Second)
	}
}

// GetApplication returns the New Relic application, nil when disabled.
func (ls *LoggerService) GetApplication() *newrelic.Application {
	return ls.nrApp
}

// NewLoggerWithService builds the root application logger.
//
// Production writes JSON (optionally through the New Relic zerolog writer
// so logs are forwarded); other environments get a console writer.
func NewLoggerWithService(cfg *config.ObservabilityConfig, loggerService *LoggerService) zerolog.Logger {
	var logLevel zerolog.Level
	switch cfg.GetLogLevel() {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = "2006-01-02 15:04:05"
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	var writer io.Writer = os.Stdout
	if cfg.IsProduction() && cfg.Logging.Format == "json" {
		if loggerService != nil && loggerService.nrApp != nil {
			writer = zerologWriter.New(os.Stdout, loggerService.nrApp)
		}
	} else {
		writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	}

	logger := zerolog.New(writer).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Logger()

	if !cfg.IsProduction() {
		logger = logger.With().Stack().Logger()
	}

	return logger
}

// WithTraceContext adds New Relic trace.id and span.id to a logger so log
// lines can be correlated with distributed traces.
func WithTraceContext(logger zerolog.Logger, txn *newrelic.Transaction) zerolog.Logger {
	if txn == nil {
		return logger
	}

	metadata := txn.GetTraceMetadata()
	return logger.With().
		Str("trace.id", metadata.TraceID).
		Str("span.id", metadata.SpanID).
		Logger()
}

// NewPgxLogger returns a console logger dedicated to SQL tracing in local env.
func NewPgxLogger(level zerolog.Level) zerolog.Logger {
	writer := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
		FormatFieldValue: func(i any) string {
			switch v := i.(type) {
			case string:
				if len(v) > 200 {
					return v[:200] + "..."
				}
				return v
			case []byte:
				return string(v)
			default:
				return fmt.Sprintf("%v", v)
			}
		},
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Str("component", "database").
		Logger()
}

// GetPgxTraceLogLevel maps a zerolog level onto pgx tracelog levels
// (6 trace, 5 debug, 4 info, 3 warn, 2 error, 1 none).
func GetPgxTraceLogLevel(level zerolog.Level) int {
	switch level {
	case zerolog.TraceLevel:
		return 6
	case zerolog.DebugLevel:
		return 5
	case zerolog.InfoLevel:
		return 4
	case zerolog.WarnLevel:
		return 3
	case zerolog.ErrorLevel:
		return 2
	default:
		return 1
	}
}

type ctxKey struct{}

// WithContext stores a logger inside ctx for code that only sees a
// context.Context (services, repositories, job handlers).
func WithContext(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored by WithContext or fallback when
// none was stored. A nil fallback yields a no-op logger.
func FromContext(ctx context.Context, fallback *zerolog.Logger) *zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok && l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	nop := zerolog.Nop()
	return &nop
}

