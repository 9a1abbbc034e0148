package marketdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a best bid/ask update delivered by the quote stream.
type Quote struct {
	Symbol     string          `json:"symbol"`
	BidPrice   decimal.Decimal `json:"bid_price"`
	BidQty     decimal.Decimal `json:"bid_qty"`
	AskPrice   decimal.Decimal `json:"ask_price"`
	AskQty     decimal.Decimal `json:"ask_qty"`
	ReceivedAt time.Time       `json:"received_at"`
}
