package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/config"
	"github.com/deppfellow/partners/internal/lib/email"
	"github.com/deppfellow/partners/internal/logger"
	"github.com/deppfellow/partners/internal/repository"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

const shutdownTimeoutSeconds = 30

// app is everything a long-running command needs.
type app struct {
	cfg           *config.Config
	log           zerolog.Logger
	loggerService *logger.LoggerService
	srv           *server.Server
	services      *service.Services
}

func bootstrap() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	srv, err := server.New(cfg, &log, loggerService)
	if err != nil {
		loggerService.Shutdown()
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	services, err := service.NewServices(srv, repository.NewRepositories(srv))
	if err != nil {
		_ = srv.Close()
		loggerService.Shutdown()
		return nil, fmt.Errorf("could not create services: %w", err)
	}

	return &app{
		cfg:           cfg,
		log:           log,
		loggerService: loggerService,
		srv:           srv,
		services:      services,
	}, nil
}

// startWorker wires task handlers and starts the asynq server and scheduler.
func (a *app) startWorker() error {
	a.srv.Job.InitHandlers(a.services.JobHandlers(email.NewClient(a.cfg, &a.log)))
	if err := a.srv.Job.Start(); err != nil {
		return fmt.Errorf("failed to start job service: %w", err)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
