package main

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/juju/errors"

	"example.com/shareactivities/internal/config"
	"example.com/shareactivities/internal/jobs"
	"example.com/shareactivities/internal/notify"
	"example.com/shareactivities/internal/persistence"
	"example.com/shareactivities/internal/push"
	"example.com/shareactivities/internal/scheduler"
)

// Context is shared by every command.
type Context struct {
	Config config.Config
	Logger *log.Logger
}

// sweeps holds the wired jobs and the stores they run against.
type sweeps struct {
	stores      *persistence.Stores
	regenerator *jobs.Regenerator
	watcher     *jobs.Watcher
}

func (c *Context) openSweeps(ctx context.Context) (*sweeps, error) {
	cfg := c.Config
	loc, err := cfg.Location()
	if err != nil {
		return nil, errors.Trace(err)
	}
	locale, err := jobs.LocaleFor(cfg.Locale)
	if err != nil {
		return nil, errors.Trace(err)
	}

	stores, err := persistence.Open(ctx, cfg.StoreBackend, cfg.PostgresURL)
	if err != nil {
		return nil, errors.Trace(err)
	}

	regenerator, err := jobs.NewRegenerator(stores.Activities, jobs.RegeneratorConfig{
		Location:         loc,
		Trigger:          jobs.Trigger(cfg.RecurrenceTrigger),
		StatusPolicy:     jobs.StatusPolicy(cfg.RegenStatusPolicy),
		ExpiryAdjustDays: cfg.RegenExpiryAdjustDays,
	}, jobs.WithLogger(c.Logger.WithPrefix(jobs.JobRecurrence)))
	if err != nil {
		stores.Close()
		return nil, errors.Trace(err)
	}

	transport := push.NewExpoClient(cfg.PushEndpoint, cfg.PushTimeout, push.WithLogger(c.Logger.WithPrefix("push")))
	sink := notify.NewSink(stores.Users, transport,
		notify.WithLogger(c.Logger.WithPrefix("notify")),
		notify.WithTimeout(cfg.PushTimeout),
		notify.WithParallelism(cfg.NotifyParallelism),
	)
	watcher := jobs.NewWatcher(stores.Activities, stores.Families, notify.NewResolver(stores.Families, stores.Users), sink,
		jobs.WatcherConfig{Location: loc, Window: cfg.ExpiryWindow, Locale: locale},
		jobs.WithLogger(c.Logger.WithPrefix(jobs.JobExpiration)),
	)

	return &sweeps{stores: stores, regenerator: regenerator, watcher: watcher}, nil
}

func (s *sweeps) close() {
	s.stores.Close()
}

// register adds both sweeps to sched, logging each report.
func (s *sweeps) register(sched *scheduler.Scheduler, logger *log.Logger) error {
	tasks := map[string]func(context.Context) (jobs.SweepReport, error){
		jobs.JobRecurrence: s.regenerator.Run,
		jobs.JobExpiration: s.watcher.Run,
	}
	for _, name := range []string{jobs.JobRecurrence, jobs.JobExpiration} {
		run := tasks[name]
		err := sched.Register(name, func(ctx context.Context) error {
			report, err := run(ctx)
			logger.Info("sweep finished", "report", report.String())
			return err
		})
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
