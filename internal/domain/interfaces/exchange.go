package interfaces

import (
	"context"

	instruments "autotrader/internal/domain/entity/instruments"
	trading "autotrader/internal/domain/entity/trading"
)

// OrderAPI submits orders to the exchange.
type OrderAPI interface {
	PlaceOrder(ctx context.Context, req trading.OrderRequest) (*trading.OrderResult, error)
}

// AccountAPI reads account balances from the exchange.
type AccountAPI interface {
	Balances(ctx context.Context) ([]trading.Balance, error)
}

// ExchangeInfoAPI reads exchange trading rules.
type ExchangeInfoAPI interface {
	SymbolInfos(ctx context.Context) ([]instruments.SymbolInfo, error)
}
