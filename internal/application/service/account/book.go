// Package account keeps the latest exchange balances of the trading account.
package account

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
	"golang.org/x/sync/errgroup"
)

// DefaultRefreshInterval is the periodic balance poll.
const DefaultRefreshInterval = time.Second

var ErrNilAccountAPI = errors.New("account api is nil")

type snapshot struct {
	balances  map[string]trading.Balance
	fetchedAt time.Time
}

// Book holds a whole-account balance snapshot. Reads never lock; a failed
// refresh keeps the previous snapshot.
type Book struct {
	api      interfaces.AccountAPI
	logger   *logrus.Entry
	health   health.Reporter
	interval time.Duration
	now      func() time.Time

	refreshMu sync.Mutex
	current   atomic.Pointer[snapshot]
	requests  chan struct{}
}

// NewBook creates a book that is empty until the first refresh.
func NewBook(api interfaces.AccountAPI, logger *logrus.Logger, reporter health.Reporter, interval time.Duration) (*Book, error) {
	if api == nil {
		return nil, ErrNilAccountAPI
	}
	if reporter == nil {
		reporter = health.Nop{}
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	b := &Book{
		api:      api,
		logger:   logger.WithField("component", "account"),
		health:   reporter,
		interval: interval,
		now:      time.Now,
		requests: make(chan struct{}, 1),
	}
	b.current.Store(&snapshot{balances: map[string]trading.Balance{}})
	return b, nil
}

// Refresh fetches balances and swaps the snapshot.
func (b *Book) Refresh(ctx context.Context) error {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()

	balances, err := b.api.Balances(ctx)
	if err != nil {
		return fmt.Errorf("fetch balances: %w", err)
	}
	next := &snapshot{
		balances:  make(map[string]trading.Balance, len(balances)),
		fetchedAt: b.now(),
	}
	for _, balance := range balances {
		next.balances[balance.Asset] = balance
	}
	b.current.Store(next)
	return nil
}

// RequestRefresh asks Run for an out-of-band refresh. Requests made while one
// is pending are merged.
func (b *Book) RequestRefresh() {
	select {
	case b.requests <- struct{}{}:
	default:
	}
}

// Balance returns the balance of asset. Unknown assets are zero.
func (b *Book) Balance(asset string) trading.Balance {
	balance, ok := b.current.Load().balances[asset]
	if !ok {
		return trading.Balance{Asset: asset, Free: decimal.Zero, Locked: decimal.Zero}
	}
	return balance
}

// Free is the free amount of asset.
func (b *Book) Free(asset string) decimal.Decimal {
	return b.Balance(asset).Free
}

// Total is free plus locked amount of asset.
func (b *Book) Total(asset string) decimal.Decimal {
	return b.Balance(asset).Total()
}

// FetchedAt is the time of the last successful refresh, zero before the first.
func (b *Book) FetchedAt() time.Time {
	return b.current.Load().fetchedAt
}

// Run polls balances every interval and serves refresh requests until ctx is
// cancelled.
func (b *Book) Run(ctx context.Context) error {
	s := scheduler.New(b.logger.Logger, b.health)
	if err := s.Every("account.balances", b.interval, scheduler.SkipIfRunning, b.Refresh); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Run(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-b.requests:
				if err := b.Refresh(gctx); err != nil && gctx.Err() == nil {
					b.logger.WithError(err).Warn("requested balance refresh failed")
					b.health.Report("account.balances", err)
				}
			}
		}
	})
	return g.Wait()
}
