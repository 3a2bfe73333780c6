// Package scheduler runs a function at the activations of a cron
// expression. Runs never overlap: the wait for the next activation starts
// after the previous run returns, and activations missed while running are
// skipped.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/robfig/cron/v3"

	dserrors "github.com/systmms/approtate/internal/errors"
	"github.com/systmms/approtate/internal/logging"
)

// RunFunc is one scheduled run. Its error is logged, it does not stop the
// schedule.
type RunFunc func(ctx context.Context) error

// Scheduler waits for cron activations and calls a RunFunc.
type Scheduler struct {
	expr       string
	schedule   cron.Schedule
	run        RunFunc
	clock      clock.Clock
	logger     *logging.Logger
	runOnStart bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for waiting.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithRunOnStart runs once immediately before waiting for the first
// activation.
func WithRunOnStart(enabled bool) Option {
	return func(s *Scheduler) { s.runOnStart = enabled }
}

// Parse validates a standard five-field cron expression. Descriptors such
// as @daily are accepted too.
func Parse(expr string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, dserrors.ConfigError{
			Field:      "schedule",
			Value:      expr,
			Message:    fmt.Sprintf("invalid cron expression: %v", err),
			Suggestion: "Use five fields: minute hour day-of-month month day-of-week, e.g. '0 0 */175 * *'",
		}
	}
	return schedule, nil
}

// New creates a Scheduler for expr.
func New(expr string, run RunFunc, opts ...Option) (*Scheduler, error) {
	schedule, err := Parse(expr)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		expr:     expr,
		schedule: schedule,
		run:      run,
		clock:    clock.WallClock,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next returns the first activation strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run blocks until ctx is cancelled, calling the RunFunc at every
// activation. It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started with schedule %q", s.expr)

	if s.runOnStart {
		s.runOnce(ctx)
	}

	for {
		now := s.clock.Now()
		next := s.schedule.Next(now)
		if next.IsZero() {
			return fmt.Errorf("schedule %q has no future activations", s.expr)
		}

		s.logger.WithField("next_run", next.Format(time.RFC3339)).Info("Waiting for next activation")

		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case <-s.clock.After(next.Sub(now)):
		}

		s.runOnce(ctx)
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.run(ctx); err != nil {
		s.logger.WithError(err).Error("Scheduled run failed")
	}
}
