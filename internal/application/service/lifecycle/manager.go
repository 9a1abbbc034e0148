// Package lifecycle starts and stops the per-instrument worker pairs as
// instruments enter and leave the tradable set.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"autotrader/internal/application/health"
	"autotrader/internal/application/scheduler"
	trading "autotrader/internal/domain/entity/trading"
	interfaces "autotrader/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is the reconciliation period.
const DefaultInterval = 5 * time.Second

var (
	ErrMissingDependency = errors.New("lifecycle: missing dependency")
	ErrNoWorker          = errors.New("lifecycle: no running worker for symbol")
)

// Runner is a worker that runs until its context is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Pair is the recommender and executor of one symbol. Inbox, when set,
// receives externally routed recommendations. Dispose, when set, is called
// once after both have returned.
type Pair struct {
	Recommender Runner
	Executor    Runner
	Inbox       interfaces.RecommendationSink
	Dispose     func()
}

// Factory builds the pair of a symbol.
type Factory func(symbol string) (*Pair, error)

// MarketSource lists symbols with live market data.
type MarketSource interface {
	Symbols() []string
}

// WorkerStatus describes a running pair.
type WorkerStatus struct {
	Symbol    string    `json:"symbol"`
	StartedAt time.Time `json:"started_at"`
}

type worker struct {
	symbol    string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	stopOnce  sync.Once
	pair      *Pair
}

// Manager owns the worker pairs.
type Manager struct {
	registry interfaces.InstrumentRegistry
	market   MarketSource
	factory  Factory
	logger   *logrus.Entry
	health   health.Reporter
	interval time.Duration

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool

	teardown sync.WaitGroup
}

// NewManager creates a manager. interval <= 0 uses DefaultInterval.
func NewManager(registry interfaces.InstrumentRegistry, market MarketSource, factory Factory, logger *logrus.Logger, reporter health.Reporter, interval time.Duration) (*Manager, error) {
	if registry == nil || market == nil || factory == nil || logger == nil {
		return nil, ErrMissingDependency
	}
	if reporter == nil {
		reporter = health.Nop{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Manager{
		registry: registry,
		market:   market,
		factory:  factory,
		logger:   logger.WithField("component", "lifecycle"),
		health:   reporter,
		interval: interval,
		workers:  make(map[string]*worker),
	}, nil
}

// Run reconciles workers every interval. When ctx is cancelled every pair is
// stopped before Run returns.
func (m *Manager) Run(ctx context.Context) error {
	s := scheduler.New(m.logger.Logger, m.health)
	if err := s.Every("lifecycle", m.interval, scheduler.SkipIfRunning, m.Tick); err != nil {
		return err
	}
	err := s.Run(ctx)
	m.Close()
	return err
}

// Tick stops pairs of symbols that are no longer tradable and starts pairs for
// tradable symbols with market data.
func (m *Manager) Tick(ctx context.Context) error {
	active, err := m.registry.ActiveSymbols(ctx)
	if err != nil {
		return fmt.Errorf("load active symbols: %w", err)
	}
	tradable := make(map[string]struct{}, len(active))
	for _, symbol := range active {
		tradable[symbol] = struct{}{}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	var retired []*worker
	for symbol, w := range m.workers {
		if _, ok := tradable[symbol]; !ok {
			delete(m.workers, symbol)
			retired = append(retired, w)
			m.teardown.Add(1)
		}
	}
	m.mu.Unlock()

	for _, w := range retired {
		w := w
		m.logger.WithField("symbol", w.symbol).Info("stopping worker pair")
		go func() {
			defer m.teardown.Done()
			w.stop()
		}()
	}

	var errs []error
	for _, symbol := range m.market.Symbols() {
		if _, ok := tradable[symbol]; !ok {
			continue
		}
		if err := m.start(ctx, symbol); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) start(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	if _, ok := m.workers[symbol]; ok {
		return nil
	}

	pair, err := m.factory(symbol)
	if err != nil {
		return fmt.Errorf("build worker pair %s: %w", symbol, err)
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &worker{
		symbol:    symbol,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		pair:      pair,
	}
	m.workers[symbol] = w

	log := m.logger.WithField("symbol", symbol)
	go func() {
		defer close(w.done)
		g, gctx := errgroup.WithContext(wctx)
		g.Go(func() error { return pair.Recommender.Run(gctx) })
		g.Go(func() error { return pair.Executor.Run(gctx) })
		if err := g.Wait(); err != nil && wctx.Err() == nil {
			log.WithError(err).Error("worker pair failed")
		}
	}()
	log.Info("worker pair started")
	return nil
}

// stop cancels the pair, waits for it and disposes it. Safe to call repeatedly.
func (w *worker) stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		<-w.done
		if w.pair.Dispose != nil {
			w.pair.Dispose()
		}
	})
}

// Workers lists the running pairs sorted by symbol.
func (m *Manager) Workers() []WorkerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WorkerStatus, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, WorkerStatus{Symbol: w.symbol, StartedAt: w.startedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Publish routes rec to the inbox of the running pair of its symbol.
func (m *Manager) Publish(ctx context.Context, rec trading.Recommendation) error {
	m.mu.Lock()
	w, ok := m.workers[rec.Symbol]
	m.mu.Unlock()
	if !ok || w.pair.Inbox == nil {
		return fmt.Errorf("%w: %s", ErrNoWorker, rec.Symbol)
	}
	return w.pair.Inbox.Publish(ctx, rec)
}

// Close stops every pair and waits for all teardown to finish. Later ticks
// start nothing.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	workers := m.workers
	m.workers = make(map[string]*worker)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.stop()
		}()
	}
	wg.Wait()
	m.teardown.Wait()
	if len(workers) > 0 {
		m.logger.WithField("stopped", len(workers)).Info("worker pairs stopped")
	}
}
