package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"paperagent/internal/ports"
)

// Scheduler binds the periodic trigger to the pipeline.
type Scheduler struct {
	trigger  ports.Trigger
	pipeline *Pipeline
	logger   *zap.Logger
}

func NewScheduler(trigger ports.Trigger, pipeline *Pipeline, logger *zap.Logger) *Scheduler {
	return &Scheduler{trigger: trigger, pipeline: pipeline, logger: logger}
}

// Start begins scheduled pipeline runs.
func (s *Scheduler) Start(ctx context.Context) error {
	return s.trigger.Start(ctx, func(at time.Time) {
		s.logger.Info("scheduled pipeline run starting", zap.Time("fired_at", at))
		s.pipeline.RunDaily(ctx)
	})
}

// Stop halts scheduled runs.
func (s *Scheduler) Stop(ctx context.Context) error {
	return s.trigger.Stop(ctx)
}
