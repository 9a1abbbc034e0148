// Package scheduler owns the periodic tasks of a component. Every timer is a
// cancellable goroutine with an explicit overlap policy.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"autotrader/internal/application/health"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrStarted is returned when a task is registered after Run.
var ErrStarted = errors.New("scheduler already started")

// Policy decides what happens when a tick fires while the previous run of
// the same task is still in progress.
type Policy int

const (
	// SkipIfRunning runs the task inline on its own goroutine; ticks that fire
	// during a slow run are coalesced.
	SkipIfRunning Policy = iota
	// AllowOverlap starts every run on a fresh goroutine. The task must
	// guard its own critical sections.
	AllowOverlap
)

func (p Policy) String() string {
	if p == AllowOverlap {
		return "allow-overlap"
	}
	return "skip-if-running"
}

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	policy   Policy
	fn       Task
}

// Scheduler runs registered tasks until its context is cancelled.
type Scheduler struct {
	logger   *logrus.Entry
	reporter health.Reporter

	mu      sync.Mutex
	tasks   []task
	started bool
}

// New creates a scheduler. A nil reporter discards health reports.
func New(logger *logrus.Logger, reporter health.Reporter) *Scheduler {
	if reporter == nil {
		reporter = health.Nop{}
	}
	return &Scheduler{
		logger:   logger.WithField("component", "scheduler"),
		reporter: reporter,
	}
}

// Every registers fn to run once immediately and then every interval.
func (s *Scheduler) Every(name string, interval time.Duration, policy Policy, fn Task) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", name)
	}
	if fn == nil {
		return fmt.Errorf("task %s: nil func", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.tasks = append(s.tasks, task{name: name, interval: interval, policy: policy, fn: fn})
	return nil
}

// Run blocks until ctx is cancelled and every in-flight run has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrStarted
	}
	s.started = true
	tasks := make([]task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			s.loop(gctx, t)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t task) {
	var inflight sync.WaitGroup
	defer inflight.Wait()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	fire := func() {
		if t.policy == AllowOverlap {
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				s.invoke(ctx, t)
			}()
			return
		}
		s.invoke(ctx, t)
	}

	fire()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			fire()
		}
	}
}

func (s *Scheduler) invoke(ctx context.Context, t task) {
	log := s.logger.WithField("task", t.name)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			log.WithError(err).Error("task panicked")
			s.reporter.Report(t.name, err)
		}
	}()

	err := t.fn(ctx)
	switch {
	case err == nil:
		s.reporter.Report(t.name, nil)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		log.WithError(err).Debug("task cancelled")
	default:
		log.WithError(err).Warn("task failed")
		s.reporter.Report(t.name, err)
	}
}
