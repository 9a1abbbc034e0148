package broker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	trading "autotrader/internal/domain/entity/trading"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	sent []amqp.Publishing
	err  error
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func (c *fakeChannel) types() []string {
	out := make([]string, 0, len(c.sent))
	for _, msg := range c.sent {
		out = append(out, msg.Type)
	}
	return out
}

func newTestPublisher(ch *fakeChannel, clock *time.Time) *Publisher {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	p := newPublisher(ch, "trading.recommendations", logger)
	p.now = func() time.Time { return *clock }
	return p
}

func testRec(symbol string, action trading.Action) trading.Recommendation {
	return trading.Recommendation{Symbol: symbol, Action: action, BidPrice: decimal.NewFromInt(100), AskPrice: decimal.NewFromInt(101)}
}

func TestPublisher_SendsOnlyActionChanges(t *testing.T) {
	ch := &fakeChannel{}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := newTestPublisher(ch, &now)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Publish(ctx, testRec("BTCUSDT", trading.Buy)))
		now = now.Add(100 * time.Millisecond)
	}
	require.NoError(t, p.Publish(ctx, testRec("ETHUSDT", trading.Buy)))
	require.NoError(t, p.Publish(ctx, testRec("BTCUSDT", trading.Sell)))
	require.NoError(t, p.Publish(ctx, testRec("BTCUSDT", trading.Sell)))

	assert.Equal(t, []string{"BUY", "BUY", "SELL"}, ch.types())
	assert.Equal(t, "application/json", ch.sent[0].ContentType)
	assert.Equal(t, amqp.Transient, ch.sent[0].DeliveryMode)
}

func TestPublisher_RepeatsUnchangedActionAfterInterval(t *testing.T) {
	ch := &fakeChannel{}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := newTestPublisher(ch, &now)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, testRec("BTCUSDT", trading.Buy)))
	now = now.Add(repeatInterval - time.Millisecond)
	require.NoError(t, p.Publish(ctx, testRec("BTCUSDT", trading.Buy)))
	now = now.Add(time.Millisecond)
	require.NoError(t, p.Publish(ctx, testRec("BTCUSDT", trading.Buy)))

	assert.Len(t, ch.sent, 2)
}

func TestPublisher_FailedSendIsNotRemembered(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := newTestPublisher(ch, &now)
	ctx := context.Background()

	assert.Error(t, p.Publish(ctx, testRec("BTCUSDT", trading.Buy)))

	ch.err = nil
	require.NoError(t, p.Publish(ctx, testRec("BTCUSDT", trading.Buy)))
	assert.Len(t, ch.sent, 1)
}
