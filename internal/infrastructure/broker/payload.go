package broker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	trading "autotrader/internal/domain/entity/trading"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var ErrInvalidMessage = errors.New("invalid recommendation message")

// RecommendationMessage is the wire form of a recommendation on both the
// published and the override exchange. Prices are decimal strings.
type RecommendationMessage struct {
	Symbol    string    `json:"symbol" validate:"required,alphanum"`
	Action    string    `json:"action" validate:"required,oneof=BUY STRONG_BUY JUMP_BUY SELL STRONG_SELL PANIC_SELL TAKE_PROFITS_SELL"`
	BidPrice  string    `json:"bid_price,omitempty" validate:"omitempty,numeric"`
	AskPrice  string    `json:"ask_price,omitempty" validate:"omitempty,numeric"`
	CreatedAt time.Time `json:"created_at"`
}

func newRecommendationMessage(rec trading.Recommendation) RecommendationMessage {
	return RecommendationMessage{
		Symbol:    rec.Symbol,
		Action:    rec.Action.String(),
		BidPrice:  rec.BidPrice.String(),
		AskPrice:  rec.AskPrice.String(),
		CreatedAt: rec.CreatedAt.UTC(),
	}
}

// toRecommendation validates m and converts it. Missing prices stay zero.
func (m RecommendationMessage) toRecommendation(validate *validator.Validate) (trading.Recommendation, error) {
	m.Symbol = strings.ToUpper(strings.TrimSpace(m.Symbol))
	if err := validate.Struct(&m); err != nil {
		return trading.Recommendation{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	var action trading.Action
	if err := action.UnmarshalText([]byte(m.Action)); err != nil {
		return trading.Recommendation{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	bid, err := parsePrice(m.BidPrice)
	if err != nil {
		return trading.Recommendation{}, err
	}
	ask, err := parsePrice(m.AskPrice)
	if err != nil {
		return trading.Recommendation{}, err
	}
	return trading.Recommendation{
		Symbol:    m.Symbol,
		Action:    action,
		BidPrice:  bid,
		AskPrice:  ask,
		CreatedAt: m.CreatedAt,
	}, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: price %q: %v", ErrInvalidMessage, raw, err)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative price %q", ErrInvalidMessage, raw)
	}
	return price, nil
}
