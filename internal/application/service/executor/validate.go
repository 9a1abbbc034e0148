package executor

import (
	"errors"
	"fmt"

	instruments "autotrader/internal/domain/entity/instruments"
	trading "autotrader/internal/domain/entity/trading"

	"github.com/shopspring/decimal"
)

var (
	ErrBelowMinNotional    = errors.New("notional below minimum")
	ErrPriceOutOfRange     = errors.New("price outside allowed range")
	ErrQuantityOutOfRange  = errors.New("quantity outside allowed range")
	ErrInsufficientBalance = errors.New("insufficient free balance")
)

// Validate checks an order against the exchange filters. Boundary values are
// accepted. freeBase is only consulted for sells.
func Validate(f instruments.Filters, side trading.Side, price, qty, freeBase decimal.Decimal) error {
	if !f.QuantityInRange(qty) {
		return fmt.Errorf("%w: %s", ErrQuantityOutOfRange, qty)
	}
	if !f.PriceInRange(price) || !price.IsPositive() {
		return fmt.Errorf("%w: %s", ErrPriceOutOfRange, price)
	}
	if !f.NotionalAllowed(price, qty) {
		return fmt.Errorf("%w: %s < %s", ErrBelowMinNotional, price.Mul(qty), f.MinNotional)
	}
	if side == trading.SideSell && qty.GreaterThan(freeBase) {
		return fmt.Errorf("%w: %s > %s", ErrInsufficientBalance, qty, freeBase)
	}
	return nil
}
