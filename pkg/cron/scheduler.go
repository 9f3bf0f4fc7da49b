// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the staging sweep at the top of every hour.
const DefaultSweepSchedule = "0 * * * *"

// Sweeper removes staged uploads older than a TTL.
type Sweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	ttl      time.Duration
	logger   *slog.Logger
	running  sync.Mutex
}

// NewScheduler creates a new job scheduler.
func NewScheduler(sweeper Sweeper, schedule string, ttl time.Duration, logger *slog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		schedule: schedule,
		ttl:      ttl,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweepStaged); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("sweep_schedule", s.schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the staging sweep.
func (s *Scheduler) RunNow() {
	go s.sweepStaged()
}

// sweepStaged deletes expired staged previews. Overlapping runs are skipped.
func (s *Scheduler) sweepStaged() {
	if !s.running.TryLock() {
		s.logger.Debug("staging sweep already running")
		return
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := s.sweeper.Sweep(ctx, s.ttl)
	if err != nil {
		s.logger.Error("staging sweep failed", slog.Any("error", err))
		return
	}

	s.logger.Info("staging sweep completed",
		slog.Int("removed", removed),
		slog.Duration("ttl", s.ttl),
	)
}
