package jobs

import (
	"context"
	"time"

	"github.com/juju/errors"

	"example.com/shareactivities/internal/domain"
	"example.com/shareactivities/internal/notify"
)

// Classification is the expiration state of an activity relative to now.
type Classification int

const (
	Skip Classification = iota
	NearDue
	Expired
)

func (c Classification) String() string {
	switch c {
	case NearDue:
		return "near_due"
	case Expired:
		return "expired"
	}
	return "skip"
}

// Classify compares a deadline against now. The window bound is inclusive.
func Classify(now, expiresAt time.Time, window time.Duration) Classification {
	switch {
	case expiresAt.Before(now):
		return Expired
	case !expiresAt.After(now.Add(window)):
		return NearDue
	}
	return Skip
}

// Notifier is the delivery side of the watcher.
type Notifier interface {
	FanOut(ctx context.Context, recipients []notify.Recipient, title, body string) notify.Report
}

// AudienceResolver is the recipient side of the watcher.
type AudienceResolver interface {
	Resolve(ctx context.Context, activity domain.Activity) ([]notify.Recipient, error)
}

// WatcherConfig holds the expiration alert settings.
type WatcherConfig struct {
	Location *time.Location
	Window   time.Duration
	Locale   Locale
}

// Watcher alerts the audience of every expired or soon-expiring activity. It never writes
// to the activity store.
type Watcher struct {
	activities domain.ActivityRepository
	families   domain.FamilyRepository
	resolver   AudienceResolver
	notifier   Notifier
	cfg        WatcherConfig
	opts       options
}

// NewWatcher constructs a Watcher.
func NewWatcher(activities domain.ActivityRepository, families domain.FamilyRepository, resolver AudienceResolver, notifier Notifier, cfg WatcherConfig, opts ...Option) *Watcher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Window <= 0 {
		cfg.Window = 48 * time.Hour
	}
	if cfg.Locale.Tag == "" {
		cfg.Locale = PortugueseBR
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Watcher{
		activities: activities,
		families:   families,
		resolver:   resolver,
		notifier:   notifier,
		cfg:        cfg,
		opts:       o,
	}
}

// Run performs one sweep. Re-running it notifies again; there is no sent flag.
func (w *Watcher) Run(ctx context.Context) (SweepReport, error) {
	now := w.opts.clock.Now().In(w.cfg.Location)
	report := SweepReport{Job: JobExpiration, StartedAt: now}

	all, err := w.activities.FindAll(ctx)
	if err != nil {
		err = errors.Annotate(err, "list activities")
		report.Duration = w.opts.clock.Now().Sub(now)
		recordSweep(report, err)
		return report, err
	}

	for _, activity := range all {
		if err := ctx.Err(); err != nil {
			report.Duration = w.opts.clock.Now().Sub(now)
			recordSweep(report, err)
			return report, errors.Trace(err)
		}
		report.Scanned++
		if activity.ExpiresAt == nil {
			continue
		}
		class := Classify(now, *activity.ExpiresAt, w.cfg.Window)
		if class == Skip {
			continue
		}
		report.Matched++

		title, body, err := w.message(ctx, activity, class, now)
		if err != nil {
			report.Failed++
			recordActivity(JobExpiration, "failed")
			w.opts.logger.Error("build expiration message", "activity_id", activity.ID, "err", err)
			continue
		}
		recipients, err := w.resolver.Resolve(ctx, activity)
		if err != nil {
			report.Failed++
			recordActivity(JobExpiration, "failed")
			w.opts.logger.Error("resolve recipients", "activity_id", activity.ID, "err", err)
			continue
		}
		if len(recipients) == 0 {
			w.opts.logger.Debug("no recipients", "activity_id", activity.ID)
		}
		sent := w.notifier.FanOut(ctx, recipients, title, body)
		report.Notifications.Merge(sent)
		recordActivity(JobExpiration, class.String())
		w.opts.logger.Debug("expiration alert", "activity_id", activity.ID, "class", class.String(), "outcomes", sent.String())
	}

	report.Duration = w.opts.clock.Now().Sub(now)
	recordSweep(report, nil)
	w.opts.logger.Info("expiration sweep finished", "scanned", report.Scanned, "matched", report.Matched,
		"failed", report.Failed, "notifications", report.Notifications.String())
	return report, nil
}

func (w *Watcher) message(ctx context.Context, activity domain.Activity, class Classification, now time.Time) (string, string, error) {
	var familyName string
	if activity.HasFamily() {
		family, err := w.families.FindByID(ctx, activity.FamilyID)
		if err != nil {
			return "", "", errors.Annotatef(err, "load family %s", activity.FamilyID)
		}
		if family == nil {
			return "", "", errors.Annotatef(domain.ErrFamilyNotFound, "load family %s", activity.FamilyID)
		}
		familyName = family.Name
	}

	at := activity.ExpiresAt.In(w.cfg.Location)
	if class == Expired {
		title, body := w.cfg.Locale.Expired(activity.Name, familyName, at)
		return title, body, nil
	}
	days := domain.DaysBetween(now, at, w.cfg.Location)
	title, body := w.cfg.Locale.NearDue(activity.Name, familyName, days, at)
	return title, body, nil
}
