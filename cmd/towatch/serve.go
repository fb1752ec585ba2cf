package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amaumene/towatch/internal/api"
	"github.com/amaumene/towatch/internal/auth"
	"github.com/amaumene/towatch/internal/config"
	"github.com/amaumene/towatch/internal/controllers"
	"github.com/amaumene/towatch/internal/scheduler"
	"github.com/amaumene/towatch/internal/services/tmdb"
	"github.com/amaumene/towatch/internal/store"
	"github.com/amaumene/towatch/internal/telemetry"
	"github.com/amaumene/towatch/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the catalog refresh scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger and tracing
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting towatch")
	logger.WithFields(logrus.Fields{
		"store_backend": cfg.StoreBackend,
		"environment":   cfg.Environment,
	}).Info("Configuration loaded")

	shutdownTracing := telemetry.Setup(cfg.TracingEnabled, logger)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to shut down tracing")
		}
	}()

	// 3. Initialize storage
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeRepo()
	logger.WithField("backend", cfg.StoreBackend).Info("Storage initialized")

	// 4. Initialize services
	tmdbClient := tmdb.NewClient(cfg, logger)
	sessions := auth.NewManager(cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction(), logger)

	// 5. Initialize controllers
	toWatchCtrl := controllers.NewToWatchController(store.NewInstrumented(repo, cfg.StoreBackend), logger)
	catalogCtrl := controllers.NewCatalogController(tmdbClient, cfg.CatalogCacheTTL, logger)
	logger.Info("Controllers initialized")

	// 6. Initialize scheduler
	if tmdbClient.Enabled() {
		sched := scheduler.NewScheduler(catalogCtrl, cfg.CatalogRefreshSchedule, logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// 7. Initialize HTTP server
	server := api.NewServer(cfg.ServerPort, toWatchCtrl, catalogCtrl, tmdbClient, sessions, cfg.StoreBackend, logger)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 8. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("towatch is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("towatch stopped")
	return nil
}

// openRepository opens the configured store backend
func openRepository(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (store.Repository, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendBolt:
		repo, err := store.NewBoltRepository(cfg.DatabaseFile)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	default:
		repo, err := openDynamoRepository(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() error { return nil }, nil
	}
}

func openDynamoRepository(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*store.DynamoRepository, error) {
	client, err := store.NewDynamoClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store.NewDynamoRepository(client, cfg.ToWatchTable, logger)
}
