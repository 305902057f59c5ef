// Package orchestrator implements the Clock & Scheduler (C1) and the
// Orchestrator / Worker Pool (C13): the two components that turn a
// configured fire time into bounded, concurrent runs of the Per-Account
// Pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/config"
	intrand "github.com/ohmynofan/rewards-orchestrator/internal/rand"
)

// Clock fires Trigger at each configured local HH:MM time plus a jitter
// draw, rolling a vacation die first. It never crashes the process: a
// malformed entry is logged and skipped rather than returned as an error.
type Clock struct {
	Entries  []config.ScheduleEntry
	Location *time.Location
	Trigger  func(ctx context.Context)
	Logf     func(format string, args ...any)

	// sleepUntil is test-overridable; when nil, Run uses waitUntil (a
	// time.Timer wait that ends early on cancellation).
	sleepUntil func(ctx context.Context, t time.Time) bool
}

// Run blocks, firing Trigger at each entry's next occurrence until ctx is
// cancelled. One goroutine per entry, matching the "state: next-fire
// timestamp per entry" independence the spec describes.
func (c *Clock) Run(ctx context.Context) {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	sleepUntil := c.sleepUntil
	if sleepUntil == nil {
		sleepUntil = waitUntil
	}

	done := make(chan struct{})
	for _, entry := range c.Entries {
		go c.runEntry(ctx, entry, loc, sleepUntil, done)
	}
	<-ctx.Done()
}

func (c *Clock) runEntry(ctx context.Context, entry config.ScheduleEntry, loc *time.Location, sleepUntil func(context.Context, time.Time) bool, done chan struct{}) {
	hour, minute, err := parseHHMM(entry.Time)
	if err != nil {
		c.logf("scheduler: entry %q: %v, skipping", entry.Time, err)
		return
	}

	for {
		next := nextOccurrence(time.Now().In(loc), hour, minute)
		jitter := time.Duration(intrand.IntIn(0, entry.JitterMinutes)) * time.Minute
		if !sleepUntil(ctx, next.Add(jitter)) {
			return
		}

		if intrand.Bool(entry.VacationProbability) {
			c.logf("scheduler: %s rolled a vacation day, skipping run", entry.Time)
			continue
		}
		c.Trigger(ctx)
	}
}

func (c *Clock) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

// waitUntil sleeps until t or ctx is cancelled, returning false on
// cancellation.
func waitUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextOccurrence(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func parseHHMM(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid HH:MM %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
