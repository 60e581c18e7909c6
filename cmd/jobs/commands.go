package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	jujuerrors "github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/shareactivities/internal/jobs"
	"example.com/shareactivities/internal/outbox"
	"example.com/shareactivities/internal/persistence"
	"example.com/shareactivities/internal/scheduler"
)

// ServeCmd runs both sweeps every day at SCHEDULE_AT.
type ServeCmd struct {
	RunOnStart bool `help:"Run both sweeps once before waiting for the first trigger."`
}

func (cmd *ServeCmd) Run(c *Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := c.openSweeps(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	loc, _ := c.Config.Location()
	hour, minute, _ := c.Config.ScheduleClock()
	sched, err := scheduler.New(scheduler.Config{Location: loc, Hour: hour, Minute: minute},
		scheduler.WithLogger(c.Logger.WithPrefix("scheduler")),
		scheduler.WithClock(clock.WallClock),
	)
	if err != nil {
		return err
	}
	if err := s.register(sched, c.Logger); err != nil {
		return err
	}

	metricsSrv := &http.Server{Addr: c.Config.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		c.Logger.Info("jobs metrics listening", "addr", c.Config.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.Logger.Error("metrics server error", "err", err)
		}
	}()

	if cmd.RunOnStart {
		for _, name := range []string{jobs.JobRecurrence, jobs.JobExpiration} {
			if err := sched.RunNow(ctx, name); err != nil {
				c.Logger.Error("startup sweep failed", "job", name, "err", err)
			}
		}
	}

	sched.Start(ctx)
	c.Logger.Info("scheduler started", "next_run", sched.NextRun(time.Now()), "tasks", sched.Tasks())
	<-ctx.Done()
	c.Logger.Info("scheduler shutdown requested")
	sched.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return metricsSrv.Shutdown(shutdownCtx)
}

// RunCmd runs one sweep immediately.
type RunCmd struct {
	Job string `arg:"" enum:"recurrence,expiration" help:"Sweep to run (recurrence or expiration)."`
}

func (cmd *RunCmd) Run(c *Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := c.openSweeps(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	var report jobs.SweepReport
	switch cmd.Job {
	case jobs.JobRecurrence:
		report, err = s.regenerator.Run(ctx)
	case jobs.JobExpiration:
		report, err = s.watcher.Run(ctx)
	default:
		return jujuerrors.NotValidf("job %q", cmd.Job)
	}
	fmt.Fprintln(os.Stdout, report.String())
	return err
}

// DLQReplayCmd moves dead-lettered outbox events back into the outbox.
type DLQReplayCmd struct {
	Watch    bool          `help:"Keep replaying every interval until interrupted."`
	Interval time.Duration `help:"Polling interval in watch mode." default:"30s"`
}

func (cmd *DLQReplayCmd) Run(c *Context) error {
	if c.Config.StoreBackend != persistence.BackendPostgres {
		return jujuerrors.NotSupportedf("dlq replay on store backend %q", c.Config.StoreBackend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := persistence.Open(ctx, persistence.BackendPostgres, c.Config.PostgresURL)
	if err != nil {
		return err
	}
	defer stores.Close()

	manager := outbox.NewDLQManager(stores.Pool, c.Config.DLQMaxRetries, c.Config.DLQBaseDelay)
	replay := func() error {
		result, err := manager.RunOnce(ctx, c.Config.DLQBatchSize)
		c.Logger.Info("dlq replay", "requeued", result.Requeued, "rescheduled", result.Rescheduled, "quarantined", result.Quarantined)
		return err
	}

	if !cmd.Watch {
		return replay()
	}

	ticker := time.NewTicker(cmd.Interval)
	defer ticker.Stop()
	for {
		if err := replay(); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.Error("dlq replay error", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
