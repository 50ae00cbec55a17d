package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/sguter90/weatherlog/pkg/archive"
	"github.com/sguter90/weatherlog/pkg/clock"
	"github.com/sguter90/weatherlog/pkg/models"
)

// Archiver is the job the scheduler runs
type Archiver interface {
	Archive(ctx context.Context, start, end int64) models.ArchiveResult
	Policy() archive.Policy
}

// Scheduler periodically archives the most recent window of readings.
type Scheduler struct {
	scheduler *gocron.Scheduler
	archiver  Archiver
	clock     clock.Clock
	interval  time.Duration
	lookback  time.Duration
	timeout   time.Duration
	logger    kitlog.Logger
}

// New creates a new Scheduler.
func New(archiver Archiver, clk clock.Clock, interval, lookback, timeout time.Duration, logger kitlog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		archiver:  archiver,
		clock:     clk,
		interval:  interval,
		lookback:  lookback,
		timeout:   timeout,
		logger:    kitlog.With(logger, "module", "scheduler"),
	}
}

// Start schedules the archive job and starts the underlying scheduler. Runs
// never overlap; a run still in progress makes the next tick skip.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().SingletonMode().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	level.Info(s.logger).Log("msg", "archive job scheduled", "every_minutes", minutes, "policy", string(s.archiver.Policy()))
	s.scheduler.StartAsync()
	return nil
}

// RunOnce archives the window due now and returns the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) models.ArchiveResult {
	return Run(ctx, s.archiver, s.clock.Now(), s.lookback, s.timeout)
}

// Run archives the window that is due at now. It is used by the schedule and
// by manual triggers. A zero timeout leaves ctx unbounded.
func Run(ctx context.Context, archiver Archiver, now time.Time, lookback, timeout time.Duration) models.ArchiveResult {
	start, end := archive.Window(archiver.Policy(), now, lookback)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return archiver.Archive(ctx, start.UnixMilli(), end.UnixMilli())
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
