package main

import (
	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run background jobs and periodic tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.loggerService.Shutdown()

			if err := a.startWorker(); err != nil {
				_ = a.srv.Close()
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			<-ctx.Done()

			if err := a.srv.Close(); err != nil {
				a.log.Error().Err(err).Msg("worker forced to shutdown")
				return err
			}

			a.log.Info().Msg("worker exited properly")
			return nil
		},
	}
}
