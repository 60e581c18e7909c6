// Package jobs contains the daily sweeps over the activity store: recurrence regeneration and
// expiration alerts.
package jobs

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/juju/clock"

	"example.com/shareactivities/internal/logging"
	"example.com/shareactivities/internal/notify"
)

// Job names used by the scheduler, the CLI and metric labels.
const (
	JobRecurrence = "recurrence"
	JobExpiration = "expiration"
)

// SweepReport summarises one pass of a job over the store.
type SweepReport struct {
	Job         string
	StartedAt   time.Time
	Duration    time.Duration
	Scanned     int
	Matched     int
	Regenerated int
	Failed      int

	Notifications notify.Report
}

func (r SweepReport) String() string {
	return fmt.Sprintf("%s: scanned=%d matched=%d regenerated=%d failed=%d notifications[%s] in %s",
		r.Job, r.Scanned, r.Matched, r.Regenerated, r.Failed, r.Notifications, r.Duration)
}

// Option configures a Regenerator or Watcher.
type Option func(*options)

type options struct {
	logger *log.Logger
	clock  clock.Clock
	newID  func() string
}

func defaultOptions() options {
	return options{
		logger: logging.Discard(),
		clock:  clock.WallClock,
		newID:  func() string { return uuid.NewString() },
	}
}

// WithLogger sets the logger used for per-activity diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clock = clk
		}
	}
}

// WithIDGenerator overrides how regenerated activities are identified.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}
