// Package scheduler drives a job once per day at a fixed wall-clock time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Job is the unit of work run on each tick.
type Job func(ctx context.Context)

// Daily runs a Job every day at hour:minute in loc.
type Daily struct {
	hour, minute int
	loc          *time.Location
	clock        clockwork.Clock
	job          Job
	logger       *slog.Logger
	runOnStart   bool
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NewDaily builds a scheduler for the "HH:MM" time of day at.
func NewDaily(at string, loc *time.Location, clock clockwork.Clock, job Job, logger *slog.Logger) (*Daily, error) {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Daily{hour: hour, minute: minute, loc: loc, clock: clock, job: job, logger: logger}, nil
}

// RunOnStart makes Run execute the job once before waiting for the first tick.
func (d *Daily) RunOnStart(v bool) { d.runOnStart = v }

// Next returns the first scheduled time strictly after now.
func (d *Daily) Next(now time.Time) time.Time {
	local := now.In(d.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return next
}

// Run blocks, executing the job at each scheduled time, until ctx is cancelled.
// Runs never overlap: the next wait starts after the job returns.
func (d *Daily) Run(ctx context.Context) error {
	d.logger.Info("scheduler started", "at", fmt.Sprintf("%02d:%02d", d.hour, d.minute), "timezone", d.loc.String())

	if d.runOnStart {
		d.job(ctx)
	}

	for {
		next := d.Next(d.clock.Now())
		wait := next.Sub(d.clock.Now())
		d.logger.Info("next refresh scheduled", "at", next, "in", wait.Round(time.Second))

		if !sleepWithContext(ctx, d.clock, wait) {
			d.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		}
		d.job(ctx)
	}
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, dur time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if dur <= 0 {
		return true
	}

	timer := clock.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
