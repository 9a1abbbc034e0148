// Package recommender turns averaged prices and the account position of one
// instrument into trading recommendations.
package recommender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"autotrader/internal/application/health"
	"autotrader/internal/application/scheduler"
	trading "autotrader/internal/domain/entity/trading"
	interfaces "autotrader/internal/domain/interfaces"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultTickInterval is how often a recommendation is evaluated.
const DefaultTickInterval = 100 * time.Millisecond

var (
	ErrMissingSymbol     = errors.New("recommender: symbol and base asset are required")
	ErrMissingDependency = errors.New("recommender: missing dependency")
)

// PriceSource serves averaged best prices. Negative means not ready.
type PriceSource interface {
	BidPrice(symbol string) decimal.Decimal
	AskPrice(symbol string) decimal.Decimal
}

// BalanceSource serves account balances.
type BalanceSource interface {
	Total(asset string) decimal.Decimal
}

// State is the position state of the instrument.
type State int32

const (
	Flat State = iota
	Holding
)

func (s State) String() string {
	if s == Holding {
		return "HOLDING"
	}
	return "FLAT"
}

type Config struct {
	Symbol    string
	BaseAsset string
	// DropPercent is the fall from the peak ask that closes a position.
	DropPercent  decimal.Decimal
	TickInterval time.Duration
}

// Recommender evaluates one instrument. Tick must not run concurrently with
// itself; Run guarantees that.
type Recommender struct {
	cfg      Config
	prices   PriceSource
	balances BalanceSource
	sinks    []interfaces.RecommendationSink
	logger   *logrus.Entry
	health   health.Reporter
	now      func() time.Time

	state atomic.Int32

	mu         sync.Mutex
	thresholds Thresholds
}

// New creates a recommender publishing to every sink.
func New(cfg Config, prices PriceSource, balances BalanceSource, sinks []interfaces.RecommendationSink, logger *logrus.Logger, reporter health.Reporter) (*Recommender, error) {
	if cfg.Symbol == "" || cfg.BaseAsset == "" {
		return nil, ErrMissingSymbol
	}
	if prices == nil || balances == nil || logger == nil {
		return nil, ErrMissingDependency
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if reporter == nil {
		reporter = health.Nop{}
	}
	return &Recommender{
		cfg:        cfg,
		prices:     prices,
		balances:   balances,
		sinks:      sinks,
		logger:     logger.WithFields(logrus.Fields{"component": "recommender", "symbol": cfg.Symbol}),
		health:     reporter,
		now:        time.Now,
		thresholds: NewThresholds(cfg.DropPercent),
	}, nil
}

// State is the state observed by the last tick.
func (r *Recommender) State() State {
	return State(r.state.Load())
}

// Thresholds returns a copy of the peak tracker.
func (r *Recommender) Thresholds() Thresholds {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.thresholds
}

// Tick evaluates the instrument once and publishes at most one recommendation.
// Missing inputs end the tick early without error.
func (r *Recommender) Tick(ctx context.Context) error {
	if r.balances.Total(r.cfg.BaseAsset).IsPositive() {
		return r.tickHolding(ctx)
	}
	return r.tickFlat(ctx)
}

func (r *Recommender) tickFlat(ctx context.Context) error {
	if r.State() == Holding {
		r.logger.Info("position closed")
	}
	r.state.Store(int32(Flat))
	r.mu.Lock()
	r.thresholds.Reset()
	r.mu.Unlock()

	bid, ask, ok := r.currentPrices()
	if !ok {
		r.logger.Debug("prices not ready")
		return nil
	}
	return r.emit(ctx, trading.Buy, bid, ask)
}

func (r *Recommender) tickHolding(ctx context.Context) error {
	if r.State() == Flat {
		r.logger.Info("position opened")
	}
	r.state.Store(int32(Holding))

	bid, ask, ok := r.currentPrices()
	if !ok {
		r.logger.Debug("prices not ready")
		return nil
	}

	r.mu.Lock()
	if r.thresholds.Observe(ask) {
		r.logger.WithFields(logrus.Fields{
			"peak":      r.thresholds.Peak().String(),
			"threshold": r.thresholds.Threshold().String(),
		}).Debug("new peak")
	}
	breached := r.thresholds.Breached(bid)
	r.mu.Unlock()

	if !breached {
		return nil
	}
	return r.emit(ctx, trading.Sell, bid, ask)
}

func (r *Recommender) currentPrices() (bid, ask decimal.Decimal, ok bool) {
	bid = r.prices.BidPrice(r.cfg.Symbol)
	ask = r.prices.AskPrice(r.cfg.Symbol)
	return bid, ask, bid.IsPositive() && ask.IsPositive()
}

func (r *Recommender) emit(ctx context.Context, action trading.Action, bid, ask decimal.Decimal) error {
	rec := trading.Recommendation{
		Symbol:    r.cfg.Symbol,
		Action:    action,
		BidPrice:  bid,
		AskPrice:  ask,
		CreatedAt: r.now(),
	}
	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("publish %s: %w", action, err)
	}
	return nil
}

// Run ticks until ctx is cancelled.
func (r *Recommender) Run(ctx context.Context) error {
	s := scheduler.New(r.logger.Logger, r.health)
	if err := s.Every("recommender."+r.cfg.Symbol, r.cfg.TickInterval, scheduler.SkipIfRunning, r.Tick); err != nil {
		return err
	}
	return s.Run(ctx)
}
