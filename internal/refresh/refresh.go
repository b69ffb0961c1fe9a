// Package refresh periodically re-fetches the live dashboard location.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Target is refreshed on every run.
type Target interface {
	Refresh(ctx context.Context) error
}

// Config holds configuration for the refresh scheduler.
type Config struct {
	// Interval between runs. Zero or negative disables the scheduler.
	Interval time.Duration

	// Timeout bounds a single run. Default: 30 seconds
	Timeout time.Duration

	Target Target
	Logger zerolog.Logger
}

// Metrics tracks refresh run statistics.
type Metrics struct {
	TotalRuns     int64
	FailedRuns    int64
	LastRunAt     time.Time
	LastRunError  string
	LastRunLength time.Duration
}

// Scheduler runs Target.Refresh on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	config    Config
	logger    zerolog.Logger

	mu      sync.RWMutex
	metrics Metrics
}

// New creates a scheduler. Call Start to begin running.
func New(cfg Config) *Scheduler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		config:    cfg,
		logger:    cfg.Logger.With().Str("component", "refresh").Logger(),
	}
}

// Enabled reports whether a positive interval is configured.
func (s *Scheduler) Enabled() bool {
	return s.config.Interval > 0
}

// Start schedules the job and starts the scheduler in the background.
// The first run happens one interval after Start.
func (s *Scheduler) Start() error {
	if !s.Enabled() {
		s.logger.Info().Msg("periodic refresh disabled")
		return nil
	}

	s.scheduler.SingletonModeAll()
	if _, err := s.scheduler.Every(s.config.Interval).WaitForSchedule().Do(s.RunOnce); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", s.config.Interval).Msg("periodic refresh started")
	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	if s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}

// RunOnce performs a single refresh and records its outcome.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	start := time.Now()
	err := s.config.Target.Refresh(ctx)
	duration := time.Since(start)

	s.mu.Lock()
	s.metrics.TotalRuns++
	s.metrics.LastRunAt = start
	s.metrics.LastRunLength = duration
	s.metrics.LastRunError = ""
	if err != nil {
		s.metrics.FailedRuns++
		s.metrics.LastRunError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Msg("refresh failed")
		return
	}
	s.logger.Debug().Dur("duration", duration).Msg("refresh issued")
}

// Metrics returns a copy of the current metrics.
func (s *Scheduler) Metrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}
