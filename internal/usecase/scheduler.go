package usecase

import (
	"context"
	"time"

	"CurriculumSpider/internal/logging"
	"CurriculumSpider/internal/ports"
)

// SessionSweeper periodically evicts idle intent-agent sessions.
type SessionSweeper struct {
	driver ports.Scheduler
	store  ports.SessionStore
	log    *logging.Logger
}

// NewSessionSweeper returns a helper to start/stop the eviction job.
func NewSessionSweeper(driver ports.Scheduler, store ports.SessionStore, log *logging.Logger) *SessionSweeper {
	return &SessionSweeper{driver: driver, store: store, log: logging.OrNop(log).With("component", "sweeper")}
}

// Start registers the eviction job with the scheduler.
func (s *SessionSweeper) Start(ctx context.Context) error {
	if s.driver == nil || s.store == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) {
		s.Sweep(ctx, trigger)
	})
}

// Sweep evicts sessions idle at now.
func (s *SessionSweeper) Sweep(ctx context.Context, now time.Time) {
	removed, err := s.store.Evict(ctx, now)
	if err != nil {
		s.log.Warn("session eviction failed", "error", err)
		return
	}
	if removed > 0 {
		s.log.Debug("idle sessions evicted", "count", removed)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *SessionSweeper) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
