package recommender

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"

	trading "autotrader/internal/domain/entity/trading"
	interfaces "autotrader/internal/domain/interfaces"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct {
	bid, ask decimal.Decimal
	base     decimal.Decimal
}

func (m *fakeMarket) BidPrice(string) decimal.Decimal { return m.bid }
func (m *fakeMarket) AskPrice(string) decimal.Decimal { return m.ask }
func (m *fakeMarket) Total(string) decimal.Decimal    { return m.base }

type recordingSink struct {
	recs []trading.Recommendation
	err  error
}

func (s *recordingSink) Publish(_ context.Context, rec trading.Recommendation) error {
	s.recs = append(s.recs, rec)
	return s.err
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newTestRecommender(t *testing.T, market *fakeMarket, sinks ...interfaces.RecommendationSink) *Recommender {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r, err := New(Config{Symbol: "BTCUSDT", BaseAsset: "BTC", DropPercent: d("1")}, market, market, sinks, logger, nil)
	require.NoError(t, err)
	return r
}

func TestNew_Validation(t *testing.T) {
	logger := logrus.New()
	_, err := New(Config{}, &fakeMarket{}, &fakeMarket{}, nil, logger, nil)
	assert.ErrorIs(t, err, ErrMissingSymbol)
	_, err = New(Config{Symbol: "BTCUSDT", BaseAsset: "BTC"}, nil, &fakeMarket{}, nil, logger, nil)
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestThresholds_TracksPeak(t *testing.T) {
	th := NewThresholds(d("2"))
	assert.False(t, th.Breached(d("1")), "unarmed tracker never breaches")

	assert.True(t, th.Observe(d("100")))
	assert.True(t, th.Threshold().Equal(d("98")))
	assert.False(t, th.Observe(d("99")))
	assert.True(t, th.Observe(d("200")))
	assert.True(t, th.Threshold().Equal(d("196")))

	assert.False(t, th.Breached(d("196.01")))
	assert.True(t, th.Breached(d("196")))

	th.Reset()
	assert.False(t, th.Armed())
	assert.True(t, th.Observe(d("50")))
}

func TestRecommender_FlatEmitsBuyWhenPricesReady(t *testing.T) {
	market := &fakeMarket{bid: d("-1"), ask: d("-1")}
	sink := &recordingSink{}
	r := newTestRecommender(t, market, sink)

	require.NoError(t, r.Tick(context.Background()))
	assert.Empty(t, sink.recs)

	market.bid, market.ask = d("100"), d("101")
	require.NoError(t, r.Tick(context.Background()))
	require.Len(t, sink.recs, 1)
	assert.Equal(t, trading.Buy, sink.recs[0].Action)
	assert.True(t, sink.recs[0].AskPrice.Equal(d("101")))
	assert.Equal(t, Flat, r.State())
}

func TestRecommender_HoldingSellsAfterDrop(t *testing.T) {
	market := &fakeMarket{bid: d("100"), ask: d("100"), base: d("0.5")}
	sink := &recordingSink{}
	r := newTestRecommender(t, market, sink)
	ctx := context.Background()

	require.NoError(t, r.Tick(ctx))
	assert.Equal(t, Holding, r.State())
	assert.Empty(t, sink.recs)

	market.bid, market.ask = d("110"), d("110")
	require.NoError(t, r.Tick(ctx))
	thresholds := r.Thresholds()
	assert.True(t, thresholds.Threshold().Equal(d("108.9")))

	market.bid, market.ask = d("109"), d("109.5")
	require.NoError(t, r.Tick(ctx))
	assert.Empty(t, sink.recs)

	market.bid = d("108.9")
	require.NoError(t, r.Tick(ctx))
	require.Len(t, sink.recs, 1)
	assert.Equal(t, trading.Sell, sink.recs[0].Action)
}

func TestRecommender_ReturnToFlatResetsPeak(t *testing.T) {
	market := &fakeMarket{bid: d("100"), ask: d("100"), base: d("1")}
	r := newTestRecommender(t, market)
	require.NoError(t, r.Tick(context.Background()))
	thresholds := r.Thresholds()
	assert.True(t, thresholds.Armed())

	market.base = decimal.Zero
	require.NoError(t, r.Tick(context.Background()))
	thresholds = r.Thresholds()
	assert.False(t, thresholds.Armed())
}

func TestRecommender_SinkErrorsAreReturned(t *testing.T) {
	market := &fakeMarket{bid: d("1"), ask: d("1")}
	failing := &recordingSink{err: errors.New("broker down")}
	ok := &recordingSink{}
	r := newTestRecommender(t, market, failing, ok)

	require.Error(t, r.Tick(context.Background()))
	assert.Len(t, ok.recs, 1, "one failing sink does not starve the others")
}

// Never Buy while holding, never Sell while flat, for random inputs.
func TestRecommender_StateMachineInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	market := &fakeMarket{}
	sink := &recordingSink{}
	r := newTestRecommender(t, market, sink)

	for i := 0; i < 5000; i++ {
		switch rng.Intn(4) {
		case 0:
			market.base = decimal.Zero
		case 1:
			market.base = decimal.NewFromFloat(rng.Float64())
		}
		market.bid = decimal.NewFromFloat(rng.Float64()*200 - 20)
		market.ask = market.bid.Add(decimal.NewFromFloat(rng.Float64()))

		before := len(sink.recs)
		require.NoError(t, r.Tick(context.Background()))
		if len(sink.recs) == before {
			continue
		}
		rec := sink.recs[len(sink.recs)-1]
		holding := market.base.IsPositive()
		if holding {
			assert.NotEqual(t, trading.Buy, rec.Action, "buy while holding at step %d", i)
		} else {
			assert.NotEqual(t, trading.Sell, rec.Action, "sell while flat at step %d", i)
		}
	}
}
