// Package server holds the application container: configuration, loggers,
// the Postgres pool, Redis, the asynq client and the HTTP server lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/config"
	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/lib/job"
	loggerPkg "github.com/deppfellow/partners/internal/logger"
)

// Server holds shared resources. It is not the HTTP server itself.
type Server struct {
	Config        *config.Config
	Logger        *zerolog.Logger
	LoggerService *loggerPkg.LoggerService
	DB            *database.Database
	Redis         *redis.Client
	Job           *job.JobService

	httpServer *http.Server
}

// New connects to Postgres and Redis and builds the job service. Workers
// are not started here; the caller wires task handlers first and then
// calls Job.Start.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*Server, error) {
	db, err := database.New(cfg, logger, loggerService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Address,
	})
	if loggerService != nil && loggerService.GetApplication() != nil {
		redisClient.AddHook(nrredis.NewHook(redisClient.Options()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Program lookups, rate limits and jobs all need Redis.
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Server{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		DB:            db,
		Redis:         redisClient,
		Job:           job.NewJobService(logger, cfg),
	}, nil
}

func (s *Server) SetupHTTPServer(handler http.Handler) {
	s.httpServer = &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(s.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.Config.Server.IdleTimeout) * time.Second,
	}
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return errors.New("HTTP server not initialized")
	}

	s.Logger.Info().
		Str("port", s.Config.Server.Port).
		Str("env", s.Config.Primary.Env).
		Msg("starting server")

	return s.httpServer.ListenAndServe()
}

// Shutdown drains HTTP requests, stops the job service and closes the
// database pool and Redis client.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	return s.Close()
}

// Close releases the non-HTTP resources. Commands that never serve HTTP,
// such as the standalone worker, call it directly.
func (s *Server) Close() error {
	if s.Job != nil {
		s.Job.Stop()
	}

	if err := s.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	if err := s.Redis.Close(); err != nil {
		return fmt.Errorf("failed to close redis: %w", err)
	}

	return nil
}
