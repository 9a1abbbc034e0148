package interfaces

import (
	"context"

	marketdata "autotrader/internal/domain/entity/marketdata"
)

// QuoteHandler receives best bid/ask updates. It must not block.
type QuoteHandler func(marketdata.Quote)

// QuoteStream pushes best bid/ask updates for subscribed symbols.
type QuoteStream interface {
	Subscribe(ctx context.Context, symbol string, handler QuoteHandler) error
	Unsubscribe(ctx context.Context, symbol string) error
}

// TrendStore serves precomputed trend statistics.
type TrendStore interface {
	TrendRows(ctx context.Context, family marketdata.TrendFamily) ([]marketdata.TrendRow, error)
	Crossings(ctx context.Context, pair marketdata.CrossingPair) ([]marketdata.Crossing, error)
}
