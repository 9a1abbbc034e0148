package executor

import (
	"testing"

	instruments "autotrader/internal/domain/entity/instruments"
	trading "autotrader/internal/domain/entity/trading"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	f := instruments.Filters{
		MinNotional: d("10"),
		MinPrice:    d("1"),
		MaxPrice:    d("100"),
		MinQty:      d("0.1"),
		MaxQty:      d("50"),
	}
	tests := []struct {
		name     string
		side     trading.Side
		price    string
		qty      string
		freeBase string
		want     error
	}{
		{name: "notional at minimum", side: trading.SideBuy, price: "10", qty: "1", want: nil},
		{name: "notional below minimum", side: trading.SideBuy, price: "10", qty: "0.99", want: ErrBelowMinNotional},
		{name: "price at min", side: trading.SideBuy, price: "1", qty: "10", want: nil},
		{name: "price at max", side: trading.SideBuy, price: "100", qty: "0.1", want: nil},
		{name: "price below min", side: trading.SideBuy, price: "0.99", qty: "20", want: ErrPriceOutOfRange},
		{name: "price above max", side: trading.SideBuy, price: "100.01", qty: "1", want: ErrPriceOutOfRange},
		{name: "qty at min", side: trading.SideBuy, price: "100", qty: "0.1", want: nil},
		{name: "qty at max", side: trading.SideBuy, price: "1", qty: "50", want: nil},
		{name: "qty below min", side: trading.SideBuy, price: "100", qty: "0.09", want: ErrQuantityOutOfRange},
		{name: "qty above max", side: trading.SideBuy, price: "1", qty: "50.01", want: ErrQuantityOutOfRange},
		{name: "zero qty", side: trading.SideBuy, price: "50", qty: "0", want: ErrQuantityOutOfRange},
		{name: "sell within balance", side: trading.SideSell, price: "50", qty: "1", freeBase: "1", want: nil},
		{name: "sell above balance", side: trading.SideSell, price: "50", qty: "1", freeBase: "0.5", want: ErrInsufficientBalance},
		{name: "buy ignores base balance", side: trading.SideBuy, price: "50", qty: "1", freeBase: "0", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			free := "0"
			if tt.freeBase != "" {
				free = tt.freeBase
			}
			err := Validate(f, tt.side, d(tt.price), d(tt.qty), d(free))
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_ZeroMaximaAreUnbounded(t *testing.T) {
	f := instruments.Filters{MinNotional: d("10")}
	assert.NoError(t, Validate(f, trading.SideBuy, d("1000000000"), d("1000000"), d("0")))
}

func TestLedger_FIFO(t *testing.T) {
	l := NewLedger()
	_, ok := l.Available("BTCUSDT")
	assert.False(t, ok)

	assert.True(t, l.Seed("BTCUSDT", d("1"), d("100")))
	assert.False(t, l.Seed("BTCUSDT", d("5"), d("100")), "seed only applies to unknown symbols")
	l.RecordBuy("BTCUSDT", d("2"), d("130"))
	assert.True(t, l.CostBasis("BTCUSDT").Equal(d("120")))

	covered := l.Consume("BTCUSDT", d("1.5"))
	assert.True(t, covered.Equal(d("1.5")))
	available, ok := l.Available("BTCUSDT")
	assert.True(t, ok)
	assert.True(t, available.Equal(d("1.5")))
	assert.True(t, l.CostBasis("BTCUSDT").Equal(d("130")))

	covered = l.Consume("BTCUSDT", d("4"))
	assert.True(t, covered.Equal(d("1.5")))
	available, ok = l.Available("BTCUSDT")
	assert.True(t, ok, "drained symbol stays known")
	assert.True(t, available.IsZero())
	assert.False(t, l.Seed("BTCUSDT", d("3"), d("100")))

	assert.True(t, l.Consume("ETHUSDT", d("1")).IsZero())
	_, ok = l.Available("ETHUSDT")
	assert.False(t, ok)
	assert.False(t, l.Seed("ETHUSDT", d("0"), d("1")))
}
