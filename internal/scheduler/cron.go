package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CatalogRefresher reloads the cached catalog lists
type CatalogRefresher interface {
	Refresh(ctx context.Context)
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron           *cron.Cron
	catalog        CatalogRefresher
	refreshSpec    string
	refreshTimeout time.Duration
	logger         *logrus.Logger
}

// NewScheduler creates a new scheduler. refreshSpec is a cron spec or descriptor such as "@every 1h".
func NewScheduler(catalog CatalogRefresher, refreshSpec string, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:           cron.New(),
		catalog:        catalog,
		refreshSpec:    refreshSpec,
		refreshTimeout: 2 * time.Minute,
		logger:         logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	_, err := s.cron.AddFunc(s.refreshSpec, func() {
		s.runCatalogRefresh()
	})
	if err != nil {
		return fmt.Errorf("failed to add catalog refresh job: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", s.refreshSpec).Info("Scheduler started")

	// Warm the cache immediately
	go s.runCatalogRefresh()

	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// runCatalogRefresh executes the catalog refresh job
func (s *Scheduler) runCatalogRefresh() {
	s.logger.Debug("Running scheduled catalog refresh")
	ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
	defer cancel()

	s.catalog.Refresh(ctx)
}
