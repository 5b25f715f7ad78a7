package usecase

import (
	"context"
	"time"

	"ForecastPoster/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline}
}

// Start registers the pipeline with the provided scheduler.
// Cycle failures are logged by the pipeline and never stop the schedule.
// Cancelling ctx stops new cycles; a cycle already running is not interrupted.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	cycleCtx := context.WithoutCancel(ctx)
	job := func(trigger time.Time) {
		s.pipeline.logger.Debug("cycle triggered", "at", trigger.UTC().Format(time.RFC3339))
		_, _ = s.pipeline.RunCycle(cycleCtx)
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
