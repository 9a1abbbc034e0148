package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type recordingReporter struct {
	mu      sync.Mutex
	reports map[string][]error
}

func (r *recordingReporter) Report(component string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reports == nil {
		r.reports = make(map[string][]error)
	}
	r.reports[component] = append(r.reports[component], err)
}

func (r *recordingReporter) errorsFor(component string) []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.reports[component]...)
}

func TestScheduler_RunsImmediatelyAndPeriodically(t *testing.T) {
	s := New(newTestLogger(), nil)
	var runs atomic.Int32
	require.NoError(t, s.Every("tick", 10*time.Millisecond, SkipIfRunning, func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestScheduler_FailureDoesNotStopSchedule(t *testing.T) {
	reporter := &recordingReporter{}
	s := New(newTestLogger(), reporter)
	var runs atomic.Int32
	require.NoError(t, s.Every("flaky", 5*time.Millisecond, SkipIfRunning, func(context.Context) error {
		if runs.Add(1)%2 == 1 {
			return errors.New("upstream down")
		}
		panic("boom")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return runs.Load() >= 4 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	errs := reporter.errorsFor("flaky")
	require.NotEmpty(t, errs)
	for _, err := range errs {
		assert.Error(t, err)
	}
}

func TestScheduler_SkipIfRunningNeverOverlaps(t *testing.T) {
	s := New(newTestLogger(), nil)
	var active, maxActive atomic.Int32
	require.NoError(t, s.Every("slow", time.Millisecond, SkipIfRunning, func(context.Context) error {
		n := active.Add(1)
		for {
			cur := maxActive.Load()
			if n <= cur || maxActive.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestScheduler_AllowOverlapWaitsForInflightRuns(t *testing.T) {
	s := New(newTestLogger(), nil)
	var active atomic.Int32
	var finished atomic.Int32
	require.NoError(t, s.Every("overlap", time.Millisecond, AllowOverlap, func(context.Context) error {
		active.Add(1)
		time.Sleep(10 * time.Millisecond)
		finished.Add(1)
		active.Add(-1)
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Zero(t, active.Load(), "Run must not return with runs in flight")
	assert.Greater(t, finished.Load(), int32(1))
}

func TestScheduler_RegisterAfterStart(t *testing.T) {
	s := New(newTestLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))

	err := s.Every("late", time.Second, SkipIfRunning, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStarted)
	assert.ErrorIs(t, s.Run(context.Background()), ErrStarted)
}

func TestScheduler_InvalidRegistration(t *testing.T) {
	s := New(newTestLogger(), nil)
	assert.Error(t, s.Every("zero", 0, SkipIfRunning, func(context.Context) error { return nil }))
	assert.Error(t, s.Every("nil", time.Second, SkipIfRunning, nil))
}

func TestScheduler_CancelledErrorsAreNotReported(t *testing.T) {
	reporter := &recordingReporter{}
	s := New(newTestLogger(), reporter)
	require.NoError(t, s.Every("cancel", time.Hour, SkipIfRunning, func(context.Context) error {
		return context.Canceled
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Empty(t, reporter.errorsFor("cancel"))
}
