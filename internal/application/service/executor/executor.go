// Package executor places orders for one instrument from the latest
// recommendation, subject to admission control, anti-chatter rules and the
// exchange filters.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"autotrader/internal/application/health"
	"autotrader/internal/application/scheduler"
	instruments "autotrader/internal/domain/entity/instruments"
	trading "autotrader/internal/domain/entity/trading"
	interfaces "autotrader/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	// ErrGateHeld is returned by Trade when another evaluation is in progress.
	ErrGateHeld = errors.New("executor busy")

	ErrMissingSymbol     = errors.New("executor: symbol and assets are required")
	ErrMissingDependency = errors.New("executor: missing dependency")
)

// BalanceBook serves free balances and accepts refresh requests.
type BalanceBook interface {
	Free(asset string) decimal.Decimal
	RequestRefresh()
}

// SymbolInfoSource serves cached exchange filters.
type SymbolInfoSource interface {
	SymbolInfoFor(symbol string) *instruments.SymbolInfo
}

type Config struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	Params     Params
}

type Deps struct {
	Orders      interfaces.OrderAPI
	OpenOrders  interfaces.OpenOrderStore
	Balances    BalanceBook
	SymbolInfos SymbolInfoSource
	// Journal is optional.
	Journal interfaces.OrderJournal
	Ledger  *Ledger
	Logger  *logrus.Logger
	Health  health.Reporter
	Clock   func() time.Time
}

type placed struct {
	price decimal.Decimal
	at    time.Time
}

// Executor trades one instrument. Offer and Trade are safe for concurrent use.
type Executor struct {
	cfg    Config
	deps   Deps
	logger *logrus.Entry

	latest atomic.Pointer[trading.Recommendation]
	busy   atomic.Bool

	// Guarded by busy.
	lastSide  trading.Side
	lastBuy   *placed
	lastSell  *placed
	lastFired [trading.ActionCount]time.Time
}

// New creates an executor.
func New(cfg Config, deps Deps) (*Executor, error) {
	if cfg.Symbol == "" || cfg.BaseAsset == "" || cfg.QuoteAsset == "" {
		return nil, ErrMissingSymbol
	}
	if deps.Orders == nil || deps.OpenOrders == nil || deps.Balances == nil || deps.SymbolInfos == nil || deps.Logger == nil {
		return nil, ErrMissingDependency
	}
	if deps.Ledger == nil {
		deps.Ledger = NewLedger()
	}
	if deps.Health == nil {
		deps.Health = health.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if cfg.Params.TradeInterval <= 0 {
		cfg.Params.TradeInterval = DefaultParams().TradeInterval
	}
	return &Executor{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.WithFields(logrus.Fields{"component": "executor", "symbol": cfg.Symbol}),
	}, nil
}

// Offer replaces the pending recommendation. Older ones are dropped.
func (e *Executor) Offer(rec trading.Recommendation) {
	e.latest.Store(&rec)
}

// Publish implements interfaces.RecommendationSink.
func (e *Executor) Publish(_ context.Context, rec trading.Recommendation) error {
	if rec.Symbol != e.cfg.Symbol {
		return fmt.Errorf("recommendation for %s offered to %s executor", rec.Symbol, e.cfg.Symbol)
	}
	e.Offer(rec)
	return nil
}

// Run seeds the fill ledger and runs the trading tick until ctx is cancelled.
// Ticks may overlap; the admission gate keeps evaluations single-flight.
func (e *Executor) Run(ctx context.Context) error {
	e.seedLedger(ctx)

	s := scheduler.New(e.logger.Logger, e.deps.Health)
	if err := s.Every("executor."+e.cfg.Symbol, e.cfg.Params.TradeInterval, scheduler.AllowOverlap, e.tick); err != nil {
		return err
	}
	return s.Run(ctx)
}

func (e *Executor) seedLedger(ctx context.Context) {
	if e.deps.Journal == nil {
		return
	}
	qty, err := e.deps.Journal.OpenQuantity(ctx, e.cfg.Symbol)
	if err != nil {
		e.logger.WithError(err).Warn("load open quantity failed")
		return
	}
	if e.deps.Ledger.Seed(e.cfg.Symbol, qty, decimal.Zero) {
		e.logger.WithField("quantity", qty.String()).Info("fill ledger seeded")
	}
}

func (e *Executor) tick(ctx context.Context) error {
	rec := e.latest.Swap(nil)
	if rec == nil {
		return nil
	}
	err := e.Trade(ctx, *rec)
	if errors.Is(err, ErrGateHeld) {
		return nil
	}
	return err
}

// Trade evaluates rec and places at most one order. It returns ErrGateHeld
// without side effects when another evaluation is running. Orders blocked by
// anti-chatter rules or filters end the evaluation with a nil error.
func (e *Executor) Trade(ctx context.Context, rec trading.Recommendation) error {
	side, ok := rec.Action.Side()
	if !ok {
		return nil
	}
	if !e.busy.CompareAndSwap(false, true) {
		return ErrGateHeld
	}
	defer e.busy.Store(false)

	if err := ctx.Err(); err != nil {
		return err
	}

	log := e.logger.WithField("action", rec.Action.String())

	info := e.deps.SymbolInfos.SymbolInfoFor(e.cfg.Symbol)
	if info == nil {
		log.Debug("exchange filters not ready")
		return nil
	}

	now := e.deps.Clock()
	open, err := e.deps.OpenOrders.HasOpen(ctx, e.cfg.Symbol, now)
	if err != nil {
		return fmt.Errorf("check open orders: %w", err)
	}
	if open {
		log.Debug("open order pending")
		return nil
	}

	price := rec.AskPrice
	if side == trading.SideSell {
		price = rec.BidPrice
	}
	price = info.Filters.RoundPrice(price)
	if !price.IsPositive() {
		log.Debug("reference price not ready")
		return nil
	}

	freeBase := e.deps.Balances.Free(e.cfg.BaseAsset)
	qty := e.size(rec.Action, side, price, info.Filters, freeBase)

	if !e.permitted(rec.Action, side, price, now) {
		log.Debug("order not permitted yet")
		return nil
	}
	if err := Validate(info.Filters, side, price, qty, freeBase); err != nil {
		log.WithError(err).Debug("order rejected by filters")
		return nil
	}

	req := e.buildRequest(rec.Action, side, price, qty)
	result, err := e.deps.Orders.PlaceOrder(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		log.WithError(err).WithField("client_order_id", req.ClientOrderID).Error("order rejected by exchange")
		return fmt.Errorf("place order: %w", err)
	}

	e.afterPlaced(ctx, log, rec.Action, req, result, now)
	return nil
}

// size computes the order quantity truncated to the exchange precision.
func (e *Executor) size(action trading.Action, side trading.Side, price decimal.Decimal, f instruments.Filters, freeBase decimal.Decimal) decimal.Decimal {
	fraction := e.cfg.Params.Fraction(action)
	var qty decimal.Decimal
	if side == trading.SideBuy {
		quote := e.deps.Balances.Free(e.cfg.QuoteAsset).Mul(fraction)
		qty, _ = quote.QuoRem(price, f.BasePrecision)
	} else {
		qty = freeBase.Mul(fraction)
		if available, ok := e.deps.Ledger.Available(e.cfg.Symbol); ok && available.LessThan(qty) {
			qty = available
		}
	}
	return f.RoundQuantity(qty)
}

func (e *Executor) permitted(action trading.Action, side trading.Side, price decimal.Decimal, now time.Time) bool {
	if e.lastBuy == nil && e.lastSell == nil {
		return true
	}
	if e.lastSide != side {
		return true
	}

	last := e.lastBuy
	if side == trading.SideSell {
		last = e.lastSell
	}
	if last == nil {
		return true
	}

	move := e.cfg.Params.MinPriceMovePercent.Div(hundred)
	if side == trading.SideBuy && price.LessThanOrEqual(last.price.Mul(one.Sub(move))) {
		return true
	}
	if side == trading.SideSell && price.GreaterThanOrEqual(last.price.Mul(one.Add(move))) {
		return true
	}
	if now.Sub(last.at) >= e.cfg.Params.MinSameSideInterval {
		return true
	}
	if action.IsStrong() {
		fired := e.lastFired[action.Index()]
		return fired.IsZero() || now.Sub(fired) >= e.cfg.Params.Cooldown(action)
	}
	return false
}

func (e *Executor) buildRequest(action trading.Action, side trading.Side, price, qty decimal.Decimal) trading.OrderRequest {
	req := trading.OrderRequest{
		ClientOrderID: uuid.NewString(),
		Symbol:        e.cfg.Symbol,
		Side:          side,
		Quantity:      qty,
		ResponseType:  trading.ResponseFull,
	}
	if action.IsImmediate() || price.LessThan(e.cfg.Params.MarketOrderThreshold) {
		req.Type = trading.OrderTypeMarket
		return req
	}
	req.Type = trading.OrderTypeLimit
	req.Price = price
	req.TimeInForce = trading.TimeInForceIOC
	return req
}

func (e *Executor) afterPlaced(ctx context.Context, log *logrus.Entry, action trading.Action, req trading.OrderRequest, result *trading.OrderResult, now time.Time) {
	if result == nil {
		result = &trading.OrderResult{ClientOrderID: req.ClientOrderID, Symbol: req.Symbol}
	}
	fillPrice := result.AveragePrice(req.Price)

	log.WithFields(logrus.Fields{
		"client_order_id": req.ClientOrderID,
		"order_id":        result.OrderID,
		"type":            string(req.Type),
		"quantity":        req.Quantity.String(),
		"executed":        result.ExecutedQty.String(),
		"status":          result.Status,
	}).Info("order placed")

	order := trading.OpenOrder{
		ID:        req.ClientOrderID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		CreatedAt: now,
	}
	if err := e.deps.OpenOrders.Add(ctx, order); err != nil {
		log.WithError(err).Warn("record open order failed")
	}
	if terminalWithoutFill(result) {
		if err := e.deps.OpenOrders.Remove(ctx, order.Symbol, order.ID); err != nil {
			log.WithError(err).Warn("remove open order failed")
		}
	}

	p := &placed{price: fillPrice, at: now}
	if req.Side == trading.SideBuy {
		e.lastBuy = p
		e.deps.Ledger.RecordBuy(req.Symbol, result.ExecutedQty, fillPrice)
	} else {
		e.lastSell = p
		e.deps.Ledger.Consume(req.Symbol, result.ExecutedQty)
	}
	e.lastSide = req.Side
	e.lastFired[action.Index()] = now

	if e.deps.Journal != nil {
		entry := trading.JournalEntry{
			ID:            uuid.New(),
			ClientOrderID: req.ClientOrderID,
			ExchangeID:    result.OrderID,
			Symbol:        req.Symbol,
			Action:        action,
			Side:          req.Side,
			Type:          req.Type,
			Status:        result.Status,
			Price:         fillPrice,
			RequestedQty:  req.Quantity,
			ExecutedQty:   result.ExecutedQty,
			QuoteQty:      result.QuoteQty,
			CreatedAt:     now,
		}
		if err := e.deps.Journal.Append(entry); err != nil {
			log.WithError(err).Warn("journal append failed")
		}
	}

	e.deps.Balances.RequestRefresh()
}

func terminalWithoutFill(result *trading.OrderResult) bool {
	if result.ExecutedQty.IsPositive() {
		return false
	}
	switch result.Status {
	case "EXPIRED", "REJECTED", "CANCELED":
		return true
	default:
		return false
	}
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)
