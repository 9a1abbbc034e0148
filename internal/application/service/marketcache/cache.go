// Package marketcache is the shared, read-mostly market state of the engine:
// averaged best prices, trend and crossing tables, exchange filters and the
// set of quote-stream subscriptions.
//
// Every table is an immutable snapshot behind an atomic pointer. Writers build
// a new table and swap it in whole, so readers never lock and never observe a
// partially updated table. Different tables may be at different generations.
package marketcache

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"autotrader/internal/application/health"
	"autotrader/internal/application/service/pricing"
	instruments "autotrader/internal/domain/entity/instruments"
	marketdata "autotrader/internal/domain/entity/marketdata"
	interfaces "autotrader/internal/domain/interfaces"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// NotReady is the price returned while no fresh average exists.
var NotReady = decimal.NewFromInt(-1)

var errMissingDependency = errors.New("marketcache: missing dependency")

// Intervals configures the refresh timers. Zero values fall back to defaults.
type Intervals struct {
	Subscriptions time.Duration
	Crossings     time.Duration
	Filters       time.Duration
}

func (i Intervals) withDefaults() Intervals {
	if i.Subscriptions <= 0 {
		i.Subscriptions = 10 * time.Second
	}
	if i.Crossings <= 0 {
		i.Crossings = 2 * time.Second
	}
	if i.Filters <= 0 {
		i.Filters = time.Minute
	}
	return i
}

// Deps are the collaborators of the cache.
type Deps struct {
	Quotes       interfaces.QuoteStream
	Trends       interfaces.TrendStore
	Registry     interfaces.InstrumentRegistry
	ExchangeInfo interfaces.ExchangeInfoAPI
	Logger       *logrus.Logger
	Health       health.Reporter
	Intervals    Intervals
	// Clock is used by the price averagers; defaults to time.Now.
	Clock func() time.Time
}

type series struct {
	bid *pricing.Averager
	ask *pricing.Averager
}

type seriesTable map[string]*series

type symbolInfoTable map[string]instruments.SymbolInfo

// Cache is safe for concurrent use.
type Cache struct {
	quotes       interfaces.QuoteStream
	trends       interfaces.TrendStore
	registry     interfaces.InstrumentRegistry
	exchangeInfo interfaces.ExchangeInfoAPI
	logger       *logrus.Entry
	health       health.Reporter
	intervals    Intervals
	clock        func() time.Time

	// seriesMu serialises writers of series; readers only Load.
	seriesMu sync.Mutex
	series   atomic.Pointer[seriesTable]

	trendTables    [marketdata.TrendFamilyCount]atomic.Pointer[marketdata.TrendTable]
	crossingTables [marketdata.CrossingPairCount]atomic.Pointer[marketdata.CrossingTable]
	symbolInfos    atomic.Pointer[symbolInfoTable]
}

// New builds a cache. Every collaborator is required.
func New(deps Deps) (*Cache, error) {
	if deps.Quotes == nil || deps.Trends == nil || deps.Registry == nil || deps.ExchangeInfo == nil || deps.Logger == nil {
		return nil, errMissingDependency
	}
	if deps.Health == nil {
		deps.Health = health.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	c := &Cache{
		quotes:       deps.Quotes,
		trends:       deps.Trends,
		registry:     deps.Registry,
		exchangeInfo: deps.ExchangeInfo,
		logger:       deps.Logger.WithField("component", "marketcache"),
		health:       deps.Health,
		intervals:    deps.Intervals.withDefaults(),
		clock:        deps.Clock,
	}

	emptySeries := seriesTable{}
	c.series.Store(&emptySeries)
	for i := range c.trendTables {
		empty := marketdata.TrendTable{}
		c.trendTables[i].Store(&empty)
	}
	for i := range c.crossingTables {
		empty := marketdata.CrossingTable{}
		c.crossingTables[i].Store(&empty)
	}
	emptyInfos := symbolInfoTable{}
	c.symbolInfos.Store(&emptyInfos)
	return c, nil
}

// OnQuote routes a best bid/ask update to the averagers of its symbol. A quote
// for a symbol that is not tracked yet registers it, since the first message
// may arrive before the subscription call returns.
func (c *Cache) OnQuote(q marketdata.Quote) {
	s := c.lookup(q.Symbol)
	if s == nil {
		s = c.track(q.Symbol)
	}
	if q.BidPrice.IsPositive() {
		s.bid.Add(q.BidPrice.InexactFloat64())
	}
	if q.AskPrice.IsPositive() {
		s.ask.Add(q.AskPrice.InexactFloat64())
	}
}

// BidPrice is the averaged best bid, or NotReady.
func (c *Cache) BidPrice(symbol string) decimal.Decimal {
	s := c.lookup(symbol)
	if s == nil {
		return NotReady
	}
	return toPrice(s.bid.Average())
}

// AskPrice is the averaged best ask, or NotReady.
func (c *Cache) AskPrice(symbol string) decimal.Decimal {
	s := c.lookup(symbol)
	if s == nil {
		return NotReady
	}
	return toPrice(s.ask.Average())
}

// StatsFor returns the trend row of symbol in family.
func (c *Cache) StatsFor(family marketdata.TrendFamily, symbol string) (marketdata.TrendRow, bool) {
	table := c.TrendTable(family)
	row, ok := table[symbol]
	return row, ok
}

// TrendTable returns the current snapshot of family. Callers must not mutate it.
func (c *Cache) TrendTable(family marketdata.TrendFamily) marketdata.TrendTable {
	if int(family) < 0 || int(family) >= len(c.trendTables) {
		return nil
	}
	return *c.trendTables[family].Load()
}

// LatestCrossing returns the last crossing of pair for symbol.
func (c *Cache) LatestCrossing(pair marketdata.CrossingPair, symbol string) (marketdata.Crossing, bool) {
	if int(pair) < 0 || int(pair) >= len(c.crossingTables) {
		return marketdata.Crossing{}, false
	}
	row, ok := (*c.crossingTables[pair].Load())[symbol]
	return row, ok
}

// SymbolInfoFor returns the cached trading rules of symbol, nil when unknown.
func (c *Cache) SymbolInfoFor(symbol string) *instruments.SymbolInfo {
	info, ok := (*c.symbolInfos.Load())[symbol]
	if !ok {
		return nil
	}
	return &info
}

// Symbols lists the symbols that currently have price series, sorted.
func (c *Cache) Symbols() []string {
	table := *c.series.Load()
	out := make([]string, 0, len(table))
	for symbol := range table {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Subscribed reports whether symbol has price series.
func (c *Cache) Subscribed(symbol string) bool {
	return c.lookup(symbol) != nil
}

func (c *Cache) lookup(symbol string) *series {
	return (*c.series.Load())[symbol]
}

func (c *Cache) track(symbol string) *series {
	c.seriesMu.Lock()
	defer c.seriesMu.Unlock()

	current := *c.series.Load()
	if s, ok := current[symbol]; ok {
		return s
	}
	s := &series{
		bid: pricing.NewAveragerWithClock(c.clock),
		ask: pricing.NewAveragerWithClock(c.clock),
	}
	next := make(seriesTable, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[symbol] = s
	c.series.Store(&next)
	return s
}

func (c *Cache) untrack(symbol string) {
	c.seriesMu.Lock()
	defer c.seriesMu.Unlock()

	current := *c.series.Load()
	if _, ok := current[symbol]; !ok {
		return
	}
	next := make(seriesTable, len(current))
	for k, v := range current {
		if k != symbol {
			next[k] = v
		}
	}
	c.series.Store(&next)
}

func toPrice(avg float64) decimal.Decimal {
	if avg == pricing.Unavailable {
		return NotReady
	}
	return decimal.NewFromFloat(avg)
}
