// Package scheduler runs named tasks once a day at a fixed wall-clock time.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"example.com/shareactivities/internal/logging"
)

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

// Config fixes the daily trigger.
type Config struct {
	Location *time.Location
	Hour     int
	Minute   int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(s *Scheduler) {
		if clk != nil {
			s.clock = clk
		}
	}
}

type entry struct {
	name string
	fn   Task
	// running serialises runs of the same task.
	running sync.Mutex
}

// Scheduler triggers registered tasks daily. Each task has its own goroutine and timer.
type Scheduler struct {
	cfg    Config
	clock  clock.Clock
	logger *log.Logger

	mu      sync.Mutex
	tasks   map[string]*entry
	started bool
	wg      sync.WaitGroup
}

// New constructs a Scheduler.
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	if cfg.Hour < 0 || cfg.Hour > 23 || cfg.Minute < 0 || cfg.Minute > 59 {
		return nil, errors.NotValidf("time of day %02d:%02d", cfg.Hour, cfg.Minute)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &Scheduler{
		cfg:    cfg,
		clock:  clock.WallClock,
		logger: logging.Discard(),
		tasks:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register adds a named task. Tasks must be registered before Start.
func (s *Scheduler) Register(name string, fn Task) error {
	if name == "" || fn == nil {
		return errors.NotValidf("task %q", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.Errorf("register %q: scheduler already started", name)
	}
	if _, ok := s.tasks[name]; ok {
		return errors.AlreadyExistsf("task %q", name)
	}
	s.tasks[name] = &entry{name: name, fn: fn}
	return nil
}

// Tasks lists the registered task names in order.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NextRun returns the first trigger instant strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	local := now.In(s.cfg.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.Hour, s.cfg.Minute, 0, 0, s.cfg.Location)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.cfg.Hour, s.cfg.Minute, 0, 0, s.cfg.Location)
	}
	return next
}

// Start launches one loop per task. Loops stop when ctx is cancelled; call Wait to join them.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	entries := make([]*entry, 0, len(s.tasks))
	for _, e := range s.tasks {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for _, e := range entries {
		s.wg.Add(1)
		go func(e *entry) {
			defer s.wg.Done()
			s.loop(ctx, e)
		}(e)
	}
}

// Wait blocks until every task loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunNow executes a task immediately, waiting for any in-flight run of it to finish first.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return errors.NotFoundf("task %q", name)
	}
	return s.run(ctx, e)
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	for {
		now := s.clock.Now()
		next := s.NextRun(now)
		s.logger.Debug("task scheduled", "task", e.name, "next_run", next.Format(time.RFC3339))
		timer := s.clock.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}

		if err := s.run(ctx, e); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduled task failed", "task", e.name, "err", err)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, e *entry) (err error) {
	e.running.Lock()
	defer e.running.Unlock()

	started := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", e.name, r)
		}
		recordRun(e.name, err, s.clock.Now().Sub(started))
	}()

	s.logger.Info("task started", "task", e.name)
	if err := e.fn(ctx); err != nil {
		return errors.Annotatef(err, "task %s", e.name)
	}
	s.logger.Info("task finished", "task", e.name, "took", s.clock.Now().Sub(started))
	return nil
}
