package trading

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recommendation is the latest advice for one symbol. A newer one supersedes it.
type Recommendation struct {
	Symbol    string          `json:"symbol"`
	Action    Action          `json:"action"`
	BidPrice  decimal.Decimal `json:"bid_price"`
	AskPrice  decimal.Decimal `json:"ask_price"`
	CreatedAt time.Time       `json:"created_at"`
}
