package instruments

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a symbol is not in the registry.
var ErrNotFound = errors.New("instrument not found")

// Instrument corresponds to a row of the `instruments` registry table.
// TradingActive marks symbols the engine is allowed to trade.
type Instrument struct {
	Symbol        string    `json:"symbol"`
	BaseAsset     string    `json:"base_asset"`
	QuoteAsset    string    `json:"quote_asset"`
	TradingActive bool      `json:"trading_active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Filters holds the exchange trading rules for a symbol.
// A zero MaxPrice or MaxQty means the exchange does not bound that side.
type Filters struct {
	MinNotional   decimal.Decimal `json:"min_notional"`
	MinPrice      decimal.Decimal `json:"min_price"`
	MaxPrice      decimal.Decimal `json:"max_price"`
	TickSize      decimal.Decimal `json:"tick_size"`
	MinQty        decimal.Decimal `json:"min_qty"`
	MaxQty        decimal.Decimal `json:"max_qty"`
	StepSize      decimal.Decimal `json:"step_size"`
	BasePrecision int32           `json:"base_precision"`
}

// SymbolInfo joins the exchange view of a symbol with its filters.
type SymbolInfo struct {
	Symbol     string  `json:"symbol"`
	BaseAsset  string  `json:"base_asset"`
	QuoteAsset string  `json:"quote_asset"`
	Status     string  `json:"status"`
	Filters    Filters `json:"filters"`
}

// PriceInRange reports whether price satisfies the PRICE filter, bounds inclusive.
func (f Filters) PriceInRange(price decimal.Decimal) bool {
	if price.LessThan(f.MinPrice) {
		return false
	}
	if f.MaxPrice.IsPositive() && price.GreaterThan(f.MaxPrice) {
		return false
	}
	return true
}

// QuantityInRange reports whether qty satisfies the LOT filter, bounds inclusive.
func (f Filters) QuantityInRange(qty decimal.Decimal) bool {
	if !qty.IsPositive() {
		return false
	}
	if qty.LessThan(f.MinQty) {
		return false
	}
	if f.MaxQty.IsPositive() && qty.GreaterThan(f.MaxQty) {
		return false
	}
	return true
}

// NotionalAllowed reports whether price*qty reaches the minimum notional.
func (f Filters) NotionalAllowed(price, qty decimal.Decimal) bool {
	return price.Mul(qty).GreaterThanOrEqual(f.MinNotional)
}

// RoundQuantity truncates qty toward zero to the base precision and then
// down to a multiple of StepSize.
func (f Filters) RoundQuantity(qty decimal.Decimal) decimal.Decimal {
	rounded := qty.Truncate(f.BasePrecision)
	if f.StepSize.IsPositive() {
		steps, _ := rounded.QuoRem(f.StepSize, 0)
		rounded = steps.Mul(f.StepSize).Truncate(f.BasePrecision)
	}
	return rounded
}

// RoundPrice floors price to a multiple of TickSize.
func (f Filters) RoundPrice(price decimal.Decimal) decimal.Decimal {
	if !f.TickSize.IsPositive() {
		return price
	}
	return price.Div(f.TickSize).Floor().Mul(f.TickSize)
}
