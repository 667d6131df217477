package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsLedger/internal/ports"
)

// Scheduler wires the interval driver with the reconciliation run.
type Scheduler struct {
	driver     ports.Scheduler
	reconciler *Reconciler
	logger     *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, reconciler *Reconciler, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, reconciler: reconciler, logger: logger}
}

// Start registers the reconciler with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.reconciler == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if _, err := s.reconciler.Run(ctx, trigger); err != nil && s.logger != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
