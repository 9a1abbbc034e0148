package main

import (
	"errors"
	"fmt"

	"autotrader/internal/application/health"
	"autotrader/internal/application/service/executor"
	"autotrader/internal/application/service/lifecycle"
	"autotrader/internal/application/service/recommender"
	"autotrader/internal/config"
	instruments "autotrader/internal/domain/entity/instruments"
	trading "autotrader/internal/domain/entity/trading"
	interfaces "autotrader/internal/domain/interfaces"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var errNoFilters = errors.New("exchange filters not loaded yet")

// marketSource is what a worker pair reads from the market cache.
type marketSource interface {
	BidPrice(symbol string) decimal.Decimal
	AskPrice(symbol string) decimal.Decimal
	SymbolInfoFor(symbol string) *instruments.SymbolInfo
}

// balanceSource is what a worker pair reads from the account book.
type balanceSource interface {
	Free(asset string) decimal.Decimal
	Total(asset string) decimal.Decimal
	RequestRefresh()
}

type pairDeps struct {
	Tunables   config.Tunables
	Market     marketSource
	Balances   balanceSource
	Orders     interfaces.OrderAPI
	OpenOrders interfaces.OpenOrderStore
	Journal    interfaces.OrderJournal
	Ledger     *executor.Ledger
	// Publisher is optional.
	Publisher interfaces.RecommendationSink
	Logger    *logrus.Logger
	Health    health.Reporter
}

// newPairFactory builds the recommender and executor of a symbol. A symbol
// whose filters are not cached yet fails and is retried on the next tick.
func newPairFactory(deps pairDeps) lifecycle.Factory {
	params := executorParams(deps.Tunables)
	return func(symbol string) (*lifecycle.Pair, error) {
		info := deps.Market.SymbolInfoFor(symbol)
		if info == nil {
			return nil, fmt.Errorf("%s: %w", symbol, errNoFilters)
		}

		exec, err := executor.New(executor.Config{
			Symbol:     symbol,
			BaseAsset:  info.BaseAsset,
			QuoteAsset: info.QuoteAsset,
			Params:     params,
		}, executor.Deps{
			Orders:      deps.Orders,
			OpenOrders:  deps.OpenOrders,
			Balances:    deps.Balances,
			SymbolInfos: deps.Market,
			Journal:     deps.Journal,
			Ledger:      deps.Ledger,
			Logger:      deps.Logger,
			Health:      deps.Health,
		})
		if err != nil {
			return nil, fmt.Errorf("create executor: %w", err)
		}

		sinks := []interfaces.RecommendationSink{exec}
		if deps.Publisher != nil {
			sinks = append(sinks, deps.Publisher)
		}
		rec, err := recommender.New(recommender.Config{
			Symbol:       symbol,
			BaseAsset:    info.BaseAsset,
			DropPercent:  deps.Tunables.DropPercent,
			TickInterval: deps.Tunables.RecommendInterval,
		}, deps.Market, deps.Balances, sinks, deps.Logger, deps.Health)
		if err != nil {
			return nil, fmt.Errorf("create recommender: %w", err)
		}

		return &lifecycle.Pair{
			Recommender: rec,
			Executor:    exec,
			Inbox:       exec,
		}, nil
	}
}

// executorParams maps the tunables onto executor parameters. Action names
// were validated when the tunables were loaded.
func executorParams(t config.Tunables) executor.Params {
	params := executor.DefaultParams()
	for name, fraction := range t.Fractions {
		var action trading.Action
		if err := action.UnmarshalText([]byte(name)); err != nil {
			continue
		}
		params.Fractions[action.Index()] = fraction
	}
	for name, cooldown := range t.Cooldowns {
		var action trading.Action
		if err := action.UnmarshalText([]byte(name)); err != nil {
			continue
		}
		params.Cooldowns[action.Index()] = cooldown
	}
	if !t.MinPriceMovePercent.IsZero() {
		params.MinPriceMovePercent = t.MinPriceMovePercent
	}
	if t.MinSameSideInterval > 0 {
		params.MinSameSideInterval = t.MinSameSideInterval
	}
	if !t.MarketOrderThreshold.IsZero() {
		params.MarketOrderThreshold = t.MarketOrderThreshold
	}
	if t.TradeInterval > 0 {
		params.TradeInterval = t.TradeInterval
	}
	return params
}
