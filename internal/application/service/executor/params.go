package executor

import (
	"time"

	trading "autotrader/internal/domain/entity/trading"

	"github.com/shopspring/decimal"
)

// Params are the trading tunables of an executor.
type Params struct {
	// Fractions is the share of the free balance committed per action: quote
	// balance for buys, base balance for sells.
	Fractions [trading.ActionCount]decimal.Decimal
	// Cooldowns is the minimum time between two orders of the same strong action.
	Cooldowns [trading.ActionCount]time.Duration
	// MinPriceMovePercent is the favourable move since the last same-side order
	// that permits a new one.
	MinPriceMovePercent decimal.Decimal
	// MinSameSideInterval permits a same-side order once elapsed.
	MinSameSideInterval time.Duration
	// MarketOrderThreshold: prices below it are traded with market orders.
	MarketOrderThreshold decimal.Decimal
	TradeInterval        time.Duration
}

// DefaultParams returns the production tunables.
func DefaultParams() Params {
	var p Params
	p.Fractions[trading.Buy] = decimal.RequireFromString("0.2")
	p.Fractions[trading.StrongBuy] = decimal.RequireFromString("0.3")
	p.Fractions[trading.JumpBuy] = decimal.RequireFromString("0.4")
	p.Fractions[trading.Sell] = decimal.RequireFromString("0.5")
	p.Fractions[trading.StrongSell] = decimal.RequireFromString("0.75")
	p.Fractions[trading.TakeProfitsSell] = decimal.RequireFromString("0.9")
	p.Fractions[trading.PanicSell] = decimal.NewFromInt(1)

	p.Cooldowns[trading.StrongBuy] = 30 * time.Second
	p.Cooldowns[trading.JumpBuy] = 15 * time.Second
	p.Cooldowns[trading.StrongSell] = 30 * time.Second
	p.Cooldowns[trading.TakeProfitsSell] = 15 * time.Second
	p.Cooldowns[trading.PanicSell] = 5 * time.Second

	p.MinPriceMovePercent = decimal.RequireFromString("0.5")
	p.MinSameSideInterval = 5 * time.Minute
	p.MarketOrderThreshold = decimal.RequireFromString("0.0001")
	p.TradeInterval = 100 * time.Millisecond
	return p
}

// Fraction returns the balance share of action, zero for Hold.
func (p Params) Fraction(action trading.Action) decimal.Decimal {
	if !action.Valid() {
		return decimal.Zero
	}
	return p.Fractions[action.Index()]
}

// Cooldown returns the cooldown of action.
func (p Params) Cooldown(action trading.Action) time.Duration {
	if !action.Valid() {
		return 0
	}
	return p.Cooldowns[action.Index()]
}
