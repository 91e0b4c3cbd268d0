package sched

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"jobradar/pkg/aggregate"
)

// Scheduler drives periodic aggregation: one run on startup when configured,
// then a run on every interval tick until the context is cancelled.
type Scheduler struct {
	pipeline  *aggregate.Pipeline
	interval  time.Duration
	onStartup bool
	logger    *logrus.Logger
}

func New(pipeline *aggregate.Pipeline, interval time.Duration, onStartup bool, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		pipeline:  pipeline,
		interval:  interval,
		onStartup: onStartup,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled, returning nil on graceful shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Infof("Scheduler started: aggregating every %s", s.interval)

	if s.onStartup {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler shutting down")
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report, err := s.pipeline.Run(ctx)
	if errors.Is(err, aggregate.ErrRunInProgress) {
		s.logger.Warn("Skipping scheduled aggregation: previous run still active")
		return
	}
	if err != nil {
		s.logger.Errorf("Scheduled aggregation failed: %v", err)
		return
	}
	s.logger.Infof("Scheduled aggregation %s: %d fetched, %d inserted, %d updated",
		report.ID, report.Fetched, report.Inserted, report.Updated)
}
