// Package scheduler runs the daily health sweep on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sweep every day at 03:00 UTC.
const DefaultSchedule = "0 3 * * *"

// ErrScheduleRequired is returned when no cron expression is given.
var ErrScheduleRequired = errors.New("sweep schedule cron expression is required")

// Sweeper performs one sweep over all active workflows.
type Sweeper interface {
	DailySweep(ctx context.Context) *models.SweepDigest
}

// SweepScheduler triggers a Sweeper from a cron expression. Overlapping runs are skipped and a panicking
// run is recovered.
type SweepScheduler struct {
	schedule string
	sweeper  Sweeper
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

func NewSweepScheduler(schedule string, sweeper Sweeper, logger *slog.Logger) (*SweepScheduler, error) {
	if schedule == "" {
		return nil, ErrScheduleRequired
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}

	return &SweepScheduler{
		schedule: schedule,
		sweeper:  sweeper,
		logger:   logger.With("module", "sweep_scheduler", "schedule", schedule),
	}, nil
}

// Start registers the sweep job and starts the cron loop. Runs use ctx, so cancelling it aborts an
// in-flight sweep. Starting twice is a no-op.
func (s *SweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	logger := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(
			cron.SkipIfStillRunning(logger),
			cron.Recover(logger),
		),
	)

	id, err := c.AddFunc(s.schedule, func() { s.RunOnce(ctx) })
	if err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	c.Start()

	s.cron = c
	s.entryID = id

	s.logger.InfoContext(ctx, "Sweep scheduler started", "next_run", c.Entry(id).Next)

	return nil
}

// RunOnce performs a sweep immediately and returns its digest.
func (s *SweepScheduler) RunOnce(ctx context.Context) *models.SweepDigest {
	s.logger.InfoContext(ctx, "Sweep triggered")

	return s.sweeper.DailySweep(ctx)
}

// Next reports when the sweep runs next. The zero time means the scheduler is not running.
func (s *SweepScheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return time.Time{}
	}

	return s.cron.Entry(s.entryID).Next
}

// Stop stops scheduling new runs and waits for a running sweep to finish or for ctx to expire.
func (s *SweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	s.logger.InfoContext(ctx, "Stopping sweep scheduler")

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sweep still running at shutdown: %w", ctx.Err())
	}
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
