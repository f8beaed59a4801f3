// Package scheduler runs background jobs on a daily schedule with gocron.
// A job never overlaps with itself.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// RunFunc is one job execution. The context carries the job timeout.
type RunFunc func(ctx context.Context) error

type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    zerolog.Logger
}

func New(loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Daily registers fn to run every day at at ("HH:MM"). A run still in
// progress when the next one is due makes that one a no-op.
func (s *Scheduler) Daily(name, at string, timeout time.Duration, fn RunFunc) error {
	if _, err := time.Parse("15:04", at); err != nil {
		return fmt.Errorf("invalid time %q for job %s: %w", at, name, err)
	}
	_, err := s.scheduler.Every(1).Day().At(at).Tag(name).Do(s.wrap(name, timeout, fn))
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info().Str("job", name).Str("at", at).Msg("job scheduled")
	return nil
}

func (s *Scheduler) wrap(name string, timeout time.Duration, fn RunFunc) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			s.logger.Info().Str("job", name).Msg("previous run still in progress, skipping")
			return
		}
		defer running.Store(false)

		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.logger.Error().Err(err).Str("job", name).Dur("took", time.Since(start)).Msg("job failed")
			return
		}
		s.logger.Info().Str("job", name).Dur("took", time.Since(start)).Msg("job finished")
	}
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	var names []string
	for _, j := range s.scheduler.Jobs() {
		names = append(names, j.Tags()...)
	}
	return names
}

func (s *Scheduler) Start() { s.scheduler.StartAsync() }

func (s *Scheduler) Stop() { s.scheduler.Stop() }
