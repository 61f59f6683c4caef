package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// horizonRefresher extends the generation horizon of rules that are due.
type horizonRefresher interface {
	RefreshDue(ctx context.Context, lead time.Duration) (int, error)
}

// horizonScheduler runs the horizon refresh on a cron schedule.
type horizonScheduler struct {
	cron    *cron.Cron
	horizon horizonRefresher
	lead    time.Duration
	logger  *slog.Logger
}

// newHorizonScheduler registers the refresh job on schedule. It returns nil
// when schedule is empty, which disables the background refresh.
func newHorizonScheduler(
	schedule string,
	leadDays int,
	horizon horizonRefresher,
	logger *slog.Logger,
) (*horizonScheduler, error) {
	if schedule == "" {
		return nil, nil
	}

	s := &horizonScheduler{
		cron:    cron.New(),
		horizon: horizon,
		lead:    time.Duration(leadDays) * 24 * time.Hour,
		logger:  logger.With("component", "horizon_cron"),
	}
	if _, err := s.cron.AddFunc(schedule, s.refresh); err != nil {
		return nil, fmt.Errorf("invalid horizon refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// refresh runs one refresh pass. Failures are logged and retried on the next tick.
func (s *horizonScheduler) refresh() {
	start := time.Now()
	extended, err := s.horizon.RefreshDue(context.Background(), s.lead)
	if err != nil {
		s.logger.Error("horizon refresh failed", "error", err, "extended_rules", extended)
		return
	}
	s.logger.Info("horizon refresh completed",
		"extended_rules", extended,
		"duration_ms", time.Since(start).Milliseconds())
}

// Start begins running the schedule in the background.
func (s *horizonScheduler) Start() {
	s.cron.Start()
	s.logger.Info("horizon refresh scheduled", "lead", s.lead.String())
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *horizonScheduler) Stop() {
	<-s.cron.Stop().Done()
}
