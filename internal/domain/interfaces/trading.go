package interfaces

import (
	"context"
	"time"

	trading "autotrader/internal/domain/entity/trading"

	"github.com/shopspring/decimal"
)

// RecommendationSink receives every emitted recommendation.
type RecommendationSink interface {
	Publish(ctx context.Context, rec trading.Recommendation) error
}

// OpenOrderStore tracks submitted orders until acknowledged or expired.
type OpenOrderStore interface {
	Add(ctx context.Context, order trading.OpenOrder) error
	Remove(ctx context.Context, symbol, id string) error
	HasOpen(ctx context.Context, symbol string, now time.Time) (bool, error)
	List(ctx context.Context, symbol string, now time.Time) ([]trading.OpenOrder, error)
}

// OrderJournal is the append-only history of submitted orders.
type OrderJournal interface {
	Append(entry trading.JournalEntry) error
	OpenQuantity(ctx context.Context, symbol string) (decimal.Decimal, error)
}
