package trading

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderType is the exchange order type.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// TimeInForce is the exchange time-in-force policy.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
)

// ResponseType is the level of detail requested from the order endpoint.
type ResponseType string

const (
	ResponseAck    ResponseType = "ACK"
	ResponseResult ResponseType = "RESULT"
	ResponseFull   ResponseType = "FULL"
)

// OrderRequest is a new order to submit. Price and TimeInForce are ignored
// for market orders.
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	TimeInForce   TimeInForce
	ResponseType  ResponseType
}

// Fill is one execution reported for an order.
type Fill struct {
	Price           decimal.Decimal `json:"price"`
	Quantity        decimal.Decimal `json:"qty"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commission_asset"`
}

// OrderResult is the exchange answer to a placed order.
type OrderResult struct {
	OrderID       int64           `json:"order_id"`
	ClientOrderID string          `json:"client_order_id"`
	Symbol        string          `json:"symbol"`
	Status        string          `json:"status"`
	ExecutedQty   decimal.Decimal `json:"executed_qty"`
	QuoteQty      decimal.Decimal `json:"quote_qty"`
	Fills         []Fill          `json:"fills"`
	TransactTime  time.Time       `json:"transact_time"`
}

// AveragePrice returns the quantity-weighted fill price, or fallback when
// nothing filled.
func (r OrderResult) AveragePrice(fallback decimal.Decimal) decimal.Decimal {
	qty := decimal.Zero
	quote := decimal.Zero
	for _, fill := range r.Fills {
		qty = qty.Add(fill.Quantity)
		quote = quote.Add(fill.Price.Mul(fill.Quantity))
	}
	if !qty.IsPositive() {
		return fallback
	}
	return quote.Div(qty)
}

// OpenOrder is a locally tracked submitted order used for admission control.
// It is not the source of truth for exchange state.
type OpenOrder struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}

// OpenOrderTTL is the absolute expiry of an OpenOrder record.
const OpenOrderTTL = 10 * time.Second

// ExpiresAt is when the record stops blocking new orders.
func (o OpenOrder) ExpiresAt() time.Time {
	return o.CreatedAt.Add(OpenOrderTTL)
}

// JournalEntry is an append-only record of a submitted order.
type JournalEntry struct {
	ID            uuid.UUID       `json:"id"`
	ClientOrderID string          `json:"client_order_id"`
	ExchangeID    int64           `json:"exchange_id"`
	Symbol        string          `json:"symbol"`
	Action        Action          `json:"action"`
	Side          Side            `json:"side"`
	Type          OrderType       `json:"type"`
	Status        string          `json:"status"`
	Price         decimal.Decimal `json:"price"`
	RequestedQty  decimal.Decimal `json:"requested_qty"`
	ExecutedQty   decimal.Decimal `json:"executed_qty"`
	QuoteQty      decimal.Decimal `json:"quote_qty"`
	CreatedAt     time.Time       `json:"created_at"`
}
