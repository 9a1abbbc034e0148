package marketcache

import (
	"context"
	"errors"
	"fmt"

	"autotrader/internal/application/scheduler"
	instruments "autotrader/internal/domain/entity/instruments"
	marketdata "autotrader/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
)

// Run drives every refresh timer until ctx is cancelled. All timers are
// non-overlapping: a slow trend query delays its own family only.
func (c *Cache) Run(ctx context.Context) error {
	s := scheduler.New(c.logger.Logger, c.health)

	errs := []error{
		s.Every("marketcache.subscriptions", c.intervals.Subscriptions, scheduler.SkipIfRunning, c.ReconcileSubscriptions),
		s.Every("marketcache.crossings", c.intervals.Crossings, scheduler.SkipIfRunning, c.RefreshCrossings),
		s.Every("marketcache.filters", c.intervals.Filters, scheduler.SkipIfRunning, c.RefreshFilters),
	}
	for _, family := range marketdata.TrendFamilies {
		family := family
		errs = append(errs, s.Every("marketcache.trends."+family.String(), family.RefreshInterval(), scheduler.SkipIfRunning,
			func(ctx context.Context) error { return c.RefreshTrends(ctx, family) }))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("register marketcache timers: %w", err)
	}

	c.logger.Info("market cache started")
	err := s.Run(ctx)
	c.logger.Info("market cache stopped")
	return err
}

// ReconcileSubscriptions aligns the quote-stream subscriptions with the set of
// trading-active instruments. Unsubscribe failures are ignored; a failed
// subscribe is logged and the batch continues.
func (c *Cache) ReconcileSubscriptions(ctx context.Context) error {
	active, err := c.registry.ActiveSymbols(ctx)
	if err != nil {
		return fmt.Errorf("load active symbols: %w", err)
	}

	wanted := make(map[string]struct{}, len(active))
	for _, symbol := range active {
		wanted[symbol] = struct{}{}
	}

	for _, symbol := range c.Symbols() {
		if _, ok := wanted[symbol]; ok {
			continue
		}
		if err := c.quotes.Unsubscribe(ctx, symbol); err != nil {
			c.logger.WithError(err).WithField("symbol", symbol).Debug("unsubscribe failed")
		}
		c.untrack(symbol)
		c.logger.WithField("symbol", symbol).Info("unsubscribed")
	}

	var failed []string
	for _, symbol := range active {
		if c.Subscribed(symbol) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.quotes.Subscribe(ctx, symbol, c.OnQuote); err != nil {
			c.logger.WithError(err).WithField("symbol", symbol).Warn("subscribe failed")
			failed = append(failed, symbol)
			continue
		}
		c.track(symbol)
		c.logger.WithField("symbol", symbol).Info("subscribed")
	}

	if len(failed) > 0 {
		return fmt.Errorf("subscribe %d of %d symbols failed: %v", len(failed), len(active), failed)
	}
	return nil
}

// RefreshTrends replaces the cached table of family. On failure the table is
// replaced with an empty one so readers see "not ready" instead of stale rows.
func (c *Cache) RefreshTrends(ctx context.Context, family marketdata.TrendFamily) error {
	if int(family) < 0 || int(family) >= len(c.trendTables) {
		return fmt.Errorf("unknown trend family %d", int(family))
	}
	rows, err := c.trends.TrendRows(ctx, family)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		empty := marketdata.TrendTable{}
		c.trendTables[family].Store(&empty)
		return fmt.Errorf("refresh %s trends: %w", family, err)
	}
	table := marketdata.NewTrendTable(rows)
	c.trendTables[family].Store(&table)
	return nil
}

// RefreshCrossings replaces each crossing table independently, with the same
// empty-on-failure rule as trends.
func (c *Cache) RefreshCrossings(ctx context.Context) error {
	var errs []error
	for _, pair := range marketdata.CrossingPairs {
		rows, err := c.trends.Crossings(ctx, pair)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			empty := marketdata.CrossingTable{}
			c.crossingTables[pair].Store(&empty)
			errs = append(errs, fmt.Errorf("refresh %s crossings: %w", pair, err))
			continue
		}
		table := marketdata.NewCrossingTable(rows)
		c.crossingTables[pair].Store(&table)
	}
	return errors.Join(errs...)
}

// RefreshFilters replaces the exchange trading rules. On failure the previous
// snapshot is kept.
func (c *Cache) RefreshFilters(ctx context.Context) error {
	infos, err := c.exchangeInfo.SymbolInfos(ctx)
	if err != nil {
		return fmt.Errorf("refresh exchange filters: %w", err)
	}
	table := make(symbolInfoTable, len(infos))
	for _, info := range infos {
		table[info.Symbol] = info
	}
	c.symbolInfos.Store(&table)
	c.logger.WithFields(logrus.Fields{"symbols": len(table)}).Debug("exchange filters refreshed")
	return nil
}

// SymbolInfos returns the current snapshot of trading rules, unordered.
func (c *Cache) SymbolInfos() []instruments.SymbolInfo {
	table := *c.symbolInfos.Load()
	out := make([]instruments.SymbolInfo, 0, len(table))
	for _, info := range table {
		out = append(out, info)
	}
	return out
}
