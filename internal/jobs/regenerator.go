package jobs

import (
	"context"
	"time"

	"github.com/juju/errors"

	"example.com/shareactivities/internal/domain"
)

// Trigger decides when an activity's recurrence date counts as arrived.
type Trigger string

const (
	// TriggerSameDay fires only when RecurOn falls on today's date.
	TriggerSameDay Trigger = "same_day"
	// TriggerOnOrBefore also picks up recurrence dates a missed sweep left behind.
	TriggerOnOrBefore Trigger = "on_or_before"
)

// StatusPolicy decides the status of a regenerated occurrence.
type StatusPolicy string

const (
	StatusCarryOver StatusPolicy = "carry_over"
	StatusReset     StatusPolicy = "reset"
)

// RegeneratorConfig holds the recurrence policies.
type RegeneratorConfig struct {
	Location     *time.Location
	Trigger      Trigger
	StatusPolicy StatusPolicy
	// ExpiryAdjustDays is added to the carried expiration offset. Legacy data expects -1.
	ExpiryAdjustDays int
}

// Validate checks the policy values.
func (c RegeneratorConfig) Validate() error {
	switch c.Trigger {
	case TriggerSameDay, TriggerOnOrBefore:
	default:
		return errors.NotValidf("recurrence trigger %q", c.Trigger)
	}
	switch c.StatusPolicy {
	case StatusCarryOver, StatusReset:
	default:
		return errors.NotValidf("status policy %q", c.StatusPolicy)
	}
	return nil
}

// Regenerator turns activities whose recurrence date has arrived into a fresh occurrence.
type Regenerator struct {
	activities domain.ActivityRepository
	cfg        RegeneratorConfig
	opts       options
}

// NewRegenerator constructs a Regenerator.
func NewRegenerator(activities domain.ActivityRepository, cfg RegeneratorConfig, opts ...Option) (*Regenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Regenerator{activities: activities, cfg: cfg, opts: o}, nil
}

// Run performs one sweep. Only a failure to list activities aborts it; per-activity
// failures are logged and counted.
func (r *Regenerator) Run(ctx context.Context) (SweepReport, error) {
	now := r.opts.clock.Now().In(r.cfg.Location)
	report := SweepReport{Job: JobRecurrence, StartedAt: now}

	all, err := r.activities.FindAll(ctx)
	if err != nil {
		err = errors.Annotate(err, "list activities")
		report.Duration = r.opts.clock.Now().Sub(now)
		recordSweep(report, err)
		return report, err
	}

	for _, activity := range all {
		if err := ctx.Err(); err != nil {
			report.Duration = r.opts.clock.Now().Sub(now)
			recordSweep(report, err)
			return report, errors.Trace(err)
		}
		report.Scanned++
		if !r.due(activity, now) {
			continue
		}
		report.Matched++

		clone, err := r.regenerate(ctx, activity, now)
		if err != nil {
			report.Failed++
			recordActivity(JobRecurrence, "failed")
			r.opts.logger.Error("regenerate activity", "activity_id", activity.ID, "err", err)
			continue
		}
		report.Regenerated++
		recordActivity(JobRecurrence, "regenerated")
		r.opts.logger.Info("activity regenerated", "activity_id", activity.ID, "clone_id", clone.ID,
			"recur_on", clone.RecurOn.Format(time.DateOnly))
	}

	report.Duration = r.opts.clock.Now().Sub(now)
	recordSweep(report, nil)
	r.opts.logger.Info("recurrence sweep finished", "scanned", report.Scanned, "matched", report.Matched,
		"regenerated", report.Regenerated, "failed", report.Failed)
	return report, nil
}

func (r *Regenerator) due(activity domain.Activity, now time.Time) bool {
	if activity.RecurOn == nil {
		return false
	}
	if r.cfg.Trigger == TriggerOnOrBefore {
		return domain.DaysBetween(now, *activity.RecurOn, r.cfg.Location) <= 0
	}
	return domain.SameDate(now, *activity.RecurOn, r.cfg.Location)
}

func (r *Regenerator) regenerate(ctx context.Context, source domain.Activity, now time.Time) (domain.Activity, error) {
	if err := source.Validate(r.cfg.Location); err != nil {
		return domain.Activity{}, errors.NewNotValid(err, "recurrence")
	}
	clone := r.Clone(source, now)

	if err := r.activities.Save(ctx, clone); err != nil {
		return domain.Activity{}, errors.Annotatef(err, "save clone of %s", source.ID)
	}

	source.RecurOn = nil
	source.UpdatedAt = now
	if err := r.activities.Save(ctx, source); err != nil {
		// The clone is already stored; the next matching sweep would regenerate again.
		return domain.Activity{}, errors.Annotatef(err, "clear recurrence on %s (clone %s kept)", source.ID, clone.ID)
	}
	return clone, nil
}

// Clone builds the next occurrence of source as of now. Display fields are copied verbatim;
// the recurrence and expiration offsets of source are carried forward from today.
func (r *Regenerator) Clone(source domain.Activity, now time.Time) domain.Activity {
	loc := r.cfg.Location
	now = now.In(loc)
	today := domain.DateOf(now, loc)

	clone := source
	clone.ID = r.opts.newID()
	clone.CreatedAt = now
	clone.UpdatedAt = now
	if source.Attachments != nil {
		clone.Attachments = append([]string(nil), source.Attachments...)
	}
	if r.cfg.StatusPolicy == StatusReset {
		clone.Status = domain.StatusPending
	}

	clone.RecurOn = nil
	if source.RecurOn != nil {
		// A clone recurring on its own creation date would be due again in the same sweep period.
		offset := max(domain.DaysBetween(source.CreatedAt, *source.RecurOn, loc), 1)
		next := domain.AtDate(today.AddDate(0, 0, offset), now, loc)
		clone.RecurOn = &next
	}

	clone.ExpiresAt = nil
	if source.ExpiresAt != nil {
		offset := domain.DaysBetween(source.CreatedAt, *source.ExpiresAt, loc) + r.cfg.ExpiryAdjustDays
		expires := domain.AtDate(today.AddDate(0, 0, offset), *source.ExpiresAt, loc)
		clone.ExpiresAt = &expires
	}
	return clone
}
