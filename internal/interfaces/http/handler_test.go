package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"autotrader/internal/application/health"
	"autotrader/internal/application/service/lifecycle"
	domaininstruments "autotrader/internal/domain/entity/instruments"
	domainmarketdata "autotrader/internal/domain/entity/marketdata"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMarket struct {
	bid, ask  map[string]decimal.Decimal
	trends    map[domainmarketdata.TrendFamily]domainmarketdata.TrendTable
	crossings map[domainmarketdata.CrossingPair]domainmarketdata.CrossingTable
	infos     map[string]*domaininstruments.SymbolInfo
}

func (f *fakeMarket) BidPrice(symbol string) decimal.Decimal { return priceOr(f.bid, symbol) }
func (f *fakeMarket) AskPrice(symbol string) decimal.Decimal { return priceOr(f.ask, symbol) }

func priceOr(prices map[string]decimal.Decimal, symbol string) decimal.Decimal {
	if p, ok := prices[symbol]; ok {
		return p
	}
	return decimal.NewFromInt(-1)
}

func (f *fakeMarket) StatsFor(family domainmarketdata.TrendFamily, symbol string) (domainmarketdata.TrendRow, bool) {
	row, ok := f.trends[family][symbol]
	return row, ok
}

func (f *fakeMarket) LatestCrossing(pair domainmarketdata.CrossingPair, symbol string) (domainmarketdata.Crossing, bool) {
	row, ok := f.crossings[pair][symbol]
	return row, ok
}

func (f *fakeMarket) SymbolInfoFor(symbol string) *domaininstruments.SymbolInfo { return f.infos[symbol] }

func (f *fakeMarket) Symbols() []string { return []string{"BTCUSDT"} }

type fakeWorkers struct{}

func (fakeWorkers) Workers() []lifecycle.WorkerStatus {
	return []lifecycle.WorkerStatus{{Symbol: "BTCUSDT", StartedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}}
}

type fakeInstruments struct {
	rows map[string]domaininstruments.Instrument
	err  error
}

func (f *fakeInstruments) ListInstruments(context.Context) ([]domaininstruments.Instrument, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domaininstruments.Instrument, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeInstruments) GetInstrument(_ context.Context, symbol string) (*domaininstruments.Instrument, error) {
	row, ok := f.rows[strings.ToUpper(symbol)]
	if !ok {
		return nil, domaininstruments.ErrNotFound
	}
	return &row, nil
}

func (f *fakeInstruments) SetTradingActive(_ context.Context, symbol string, active bool) (*domaininstruments.Instrument, error) {
	symbol = strings.ToUpper(symbol)
	row, ok := f.rows[symbol]
	if !ok {
		return nil, domaininstruments.ErrNotFound
	}
	row.TradingActive = active
	f.rows[symbol] = row
	return &row, nil
}

type fixture struct {
	handler     *Handler
	health      *health.Registry
	instruments *fakeInstruments
}

func newFixture(t *testing.T, cache *redis.Client) *fixture {
	t.Helper()
	market := &fakeMarket{
		bid: map[string]decimal.Decimal{"BTCUSDT": decimal.RequireFromString("50000.1")},
		ask: map[string]decimal.Decimal{"BTCUSDT": decimal.RequireFromString("50000.2")},
		trends: map[domainmarketdata.TrendFamily]domainmarketdata.TrendTable{
			domainmarketdata.Trend2h: domainmarketdata.NewTrendTable([]domainmarketdata.TrendRow{{Symbol: "BTCUSDT", DataBasis: 7200}}),
		},
		crossings: map[domainmarketdata.CrossingPair]domainmarketdata.CrossingTable{
			domainmarketdata.Cross1m5m: domainmarketdata.NewCrossingTable([]domainmarketdata.Crossing{{Symbol: "BTCUSDT", Pair: domainmarketdata.Cross1m5m}}),
		},
		infos: map[string]*domaininstruments.SymbolInfo{
			"BTCUSDT": {Symbol: "BTCUSDT", Filters: domaininstruments.Filters{MinNotional: decimal.NewFromInt(5)}},
		},
	}
	registry := health.NewRegistry(1)
	inst := &fakeInstruments{rows: map[string]domaininstruments.Instrument{
		"BTCUSDT": {Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"},
	}}
	h := NewHandler(Deps{
		Market:      market,
		Workers:     fakeWorkers{},
		Health:      registry,
		Instruments: inst,
		Cache:       cache,
		CacheTTL:    time.Second,
	})
	return &fixture{handler: h, health: registry, instruments: inst}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	f.health.Report("marketcache.filters", nil)

	rec := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.health.Report("marketcache.filters", errors.New("exchange down"))
	rec = f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Healthy    bool            `json:"healthy"`
		Components []health.Status `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Healthy)
	require.Len(t, body.Components, 1)
	assert.Equal(t, "exchange down", body.Components[0].LastError)
}

func TestGetMarket(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/v1/market/btcusdt", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Symbol    string                     `json:"symbol"`
		BidPrice  *string                    `json:"bid_price"`
		AskPrice  *string                    `json:"ask_price"`
		Trends    map[string]json.RawMessage `json:"trends"`
		Crossings map[string]json.RawMessage `json:"crossings"`
		Filters   map[string]any             `json:"filters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "BTCUSDT", body.Symbol)
	require.NotNil(t, body.BidPrice)
	assert.Equal(t, "50000.1", *body.BidPrice)
	assert.Contains(t, body.Trends, domainmarketdata.Trend2h.String())
	assert.Len(t, body.Trends, 1)
	assert.Contains(t, body.Crossings, domainmarketdata.Cross1m5m.String())
	assert.Equal(t, "5", body.Filters["min_notional"])
}

func TestGetMarketUnknownSymbol(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/api/v1/market/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMarketSymbolsAndWorkers(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/v1/market", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"symbols":["BTCUSDT"]}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/v1/workers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"symbol":"BTCUSDT","started_at":"2024-05-01T00:00:00Z"}]`, rec.Body.String())
}

func TestInstrumentEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
	}{
		{name: "list", method: http.MethodGet, path: "/api/v1/instruments", wantCode: http.StatusOK},
		{name: "get", method: http.MethodGet, path: "/api/v1/instruments/btcusdt", wantCode: http.StatusOK},
		{name: "get unknown", method: http.MethodGet, path: "/api/v1/instruments/ETHUSDT", wantCode: http.StatusNotFound},
		{name: "enable", method: http.MethodPut, path: "/api/v1/instruments/BTCUSDT/trading", body: `{"active":true}`, wantCode: http.StatusOK},
		{name: "missing active", method: http.MethodPut, path: "/api/v1/instruments/BTCUSDT/trading", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "malformed", method: http.MethodPut, path: "/api/v1/instruments/BTCUSDT/trading", body: `{"active":`, wantCode: http.StatusBadRequest},
		{name: "enable unknown", method: http.MethodPut, path: "/api/v1/instruments/ETHUSDT/trading", body: `{"active":true}`, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestSetTradingUpdatesRegistry(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPut, "/api/v1/instruments/BTCUSDT/trading", `{"active":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.instruments.rows["BTCUSDT"].TradingActive)

	rec = f.do(http.MethodPut, "/api/v1/instruments/BTCUSDT/trading", `{"active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.instruments.rows["BTCUSDT"].TradingActive)
}

func TestListInstrumentsFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.instruments.err = errors.New("db down")
	rec := f.do(http.MethodGet, "/api/v1/instruments", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCacheUnavailableFallsThrough(t *testing.T) {
	cache := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer cache.Close()
	f := newFixture(t, cache)

	rec := f.do(http.MethodGet, "/api/v1/market/BTCUSDT", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}
