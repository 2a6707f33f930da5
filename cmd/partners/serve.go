package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/handler"
	"github.com/deppfellow/partners/internal/router"
)

func serveCmd() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Outside the local environment pending migrations are applied first.
With --with-worker the background job server runs in the same process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(withWorker)
		},
	}

	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run background jobs in this process")
	return cmd
}

func runServe(withWorker bool) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.loggerService.Shutdown()

	if !a.cfg.IsLocal() {
		if err := database.Migrate(context.Background(), &a.log, a.cfg); err != nil {
			_ = a.srv.Close()
			return err
		}
	}

	if withWorker {
		if err := a.startWorker(); err != nil {
			_ = a.srv.Close()
			return err
		}
	}

	handlers := handler.NewHandlers(a.srv, a.services)
	a.srv.SetupHTTPServer(router.NewRouter(a.srv, handlers, a.services))

	ctx, stop := signalContext()
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			a.log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer cancel()

	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	a.log.Info().Msg("server exited properly")
	return nil
}
