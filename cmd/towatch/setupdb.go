package main

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/towatch/internal/config"
	"github.com/amaumene/towatch/internal/utils"
	"github.com/spf13/cobra"
)

func newSetupDBCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "setup-db",
		Short: "Create the DynamoDB to-watch table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

			if cfg.StoreBackend != config.BackendDynamoDB {
				logger.WithField("backend", cfg.StoreBackend).Info("Nothing to set up for this store backend")
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			repo, err := openDynamoRepository(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			if err := repo.EnsureTable(ctx); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}

			logger.WithField("table", cfg.ToWatchTable).Info("Table is ready")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the table to become active")
	return cmd
}
