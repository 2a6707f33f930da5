package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deppfellow/partners/internal/config"
	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/logger"
)

func migrateCmd() *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if statusOnly {
				status, err := database.Status(ctx, cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d of %d, %d pending\n", status.Current, status.Latest, status.Pending())
				return nil
			}

			loggerService := logger.NewLoggerService(cfg.Observability)
			defer loggerService.Shutdown()
			log := logger.NewLoggerWithService(cfg.Observability, loggerService)

			return database.Migrate(ctx, &log, cfg)
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "print the schema version and exit")
	return cmd
}
