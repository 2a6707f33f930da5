// Package database owns the PostgreSQL pool, the embedded tern migrations
// and the transaction helper services use for multi-row changes.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	pgxzero "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/config"
	loggerConfig "github.com/deppfellow/partners/internal/logger"
)

const pingTimeout = 10 * time.Second

type Database struct {
	Pool *pgxpool.Pool
	log  *zerolog.Logger
}

// queryTracers chains pgx query tracers, since a connection only takes one.
type queryTracers []pgx.QueryTracer

func (qt queryTracers) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	for _, t := range qt {
		ctx = t.TraceQueryStart(ctx, conn, data)
	}
	return ctx
}

func (qt queryTracers) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	for _, t := range qt {
		t.TraceQueryEnd(ctx, conn, data)
	}
}

// DSN renders the connection URL. The password is query-escaped.
func DSN(cfg *config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

func poolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx pool config: %w", err)
	}

	pc.MaxConns = int32(cfg.MaxOpenConns)
	pc.MinConns = int32(min(cfg.MaxIdleConns, cfg.MaxOpenConns))
	pc.MaxConnLifetime = time.Duration(cfg.ConnMaxLifetime) * time.Second
	pc.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleTime) * time.Second
	return pc, nil
}

// queryTracer picks the tracers for this environment: New Relic segments
// when the agent is running, SQL logging only when running locally.
func queryTracer(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) pgx.QueryTracer {
	var tracers queryTracers
	if loggerService != nil && loggerService.GetApplication() != nil {
		tracers = append(tracers, nrpgx5.NewTracer())
	}
	if cfg.IsLocal() {
		level := logger.GetLevel()
		tracers = append(tracers, &tracelog.TraceLog{
			Logger:   pgxzero.NewLogger(loggerConfig.NewPgxLogger(level)),
			LogLevel: tracelog.LogLevel(loggerConfig.GetPgxTraceLogLevel(level)),
		})
	}

	switch len(tracers) {
	case 0:
		return nil
	case 1:
		return tracers[0]
	default:
		return tracers
	}
}

// New opens the pool and waits for the first ping.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) (*Database, error) {
	pc, err := poolConfig(&cfg.Database)
	if err != nil {
		return nil, err
	}
	pc.ConnConfig.Tracer = queryTracer(cfg, logger, loggerService)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.Name).
		Int32("max_conns", pc.MaxConns).
		Msg("connected to the database")

	return &Database{Pool: pool, log: logger}, nil
}

func (db *Database) Close() error {
	db.log.Info().Msg("closing database connection pool")
	db.Pool.Close()
	return nil
}
