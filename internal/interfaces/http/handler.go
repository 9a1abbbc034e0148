// Package http serves the read-only status API and the instrument trading
// switch.
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"autotrader/internal/application/health"
	appinstruments "autotrader/internal/application/service/instruments"
	"autotrader/internal/application/service/lifecycle"
	domaininstruments "autotrader/internal/domain/entity/instruments"
	domainmarketdata "autotrader/internal/domain/entity/marketdata"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	healthPath          = "/healthz"
	marketBasePath      = "/api/v1/market"
	workersPath         = "/api/v1/workers"
	instrumentsBasePath = "/api/v1/instruments"
)

var errMissingActive = errors.New("active field required")

// MarketView is the read side of the market cache.
type MarketView interface {
	BidPrice(symbol string) decimal.Decimal
	AskPrice(symbol string) decimal.Decimal
	StatsFor(family domainmarketdata.TrendFamily, symbol string) (domainmarketdata.TrendRow, bool)
	LatestCrossing(pair domainmarketdata.CrossingPair, symbol string) (domainmarketdata.Crossing, bool)
	SymbolInfoFor(symbol string) *domaininstruments.SymbolInfo
	Symbols() []string
}

// WorkerLister lists the running worker pairs.
type WorkerLister interface {
	Workers() []lifecycle.WorkerStatus
}

// HealthView is the read side of the health registry.
type HealthView interface {
	Snapshot() []health.Status
	Healthy() bool
}

// InstrumentService manages the instrument registry.
type InstrumentService interface {
	ListInstruments(ctx context.Context) ([]domaininstruments.Instrument, error)
	GetInstrument(ctx context.Context, symbol string) (*domaininstruments.Instrument, error)
	SetTradingActive(ctx context.Context, symbol string, active bool) (*domaininstruments.Instrument, error)
}

// Deps are the collaborators of the handler. Cache may be nil.
type Deps struct {
	Market      MarketView
	Workers     WorkerLister
	Health      HealthView
	Instruments InstrumentService
	Cache       *redis.Client
	CacheTTL    time.Duration
}

type Handler struct {
	router      *gin.Engine
	market      MarketView
	workers     WorkerLister
	health      HealthView
	instruments InstrumentService
	cache       *redis.Client
	cacheTTL    time.Duration
}

var _ http.Handler = (*Handler)(nil)

func NewHandler(deps Deps) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:      router,
		market:      deps.Market,
		workers:     deps.Workers,
		health:      deps.Health,
		instruments: deps.Instruments,
		cache:       deps.Cache,
		cacheTTL:    deps.CacheTTL,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET(healthPath, h.getHealth)
	h.router.GET(workersPath, h.getWorkers)

	md := h.router.Group(marketBasePath)
	if h.cache != nil {
		md.Use(h.cacheMiddleware())
	}
	{
		md.GET("", h.getMarketSymbols)
		md.GET("/:symbol", h.getMarket)
	}

	inst := h.router.Group(instrumentsBasePath)
	{
		inst.GET("", h.listInstruments)
		inst.GET("/:symbol", h.getInstrument)
		inst.PUT("/:symbol/trading", h.setTrading)
	}
}

func (h *Handler) getHealth(c *gin.Context) {
	status := http.StatusOK
	if !h.health.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"healthy":    status == http.StatusOK,
		"components": h.health.Snapshot(),
	})
}

func (h *Handler) getWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, h.workers.Workers())
}

func (h *Handler) getMarketSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": h.market.Symbols()})
}

type marketResponse struct {
	Symbol    string                               `json:"symbol"`
	BidPrice  *decimal.Decimal                     `json:"bid_price"`
	AskPrice  *decimal.Decimal                     `json:"ask_price"`
	Trends    map[string]domainmarketdata.TrendRow `json:"trends"`
	Crossings map[string]domainmarketdata.Crossing `json:"crossings"`
	Filters   *domaininstruments.Filters           `json:"filters,omitempty"`
}

// getMarket returns the cached view of one symbol. Prices are null while the
// averagers warm up.
func (h *Handler) getMarket(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	resp := marketResponse{
		Symbol:    symbol,
		BidPrice:  readyPrice(h.market.BidPrice(symbol)),
		AskPrice:  readyPrice(h.market.AskPrice(symbol)),
		Trends:    make(map[string]domainmarketdata.TrendRow),
		Crossings: make(map[string]domainmarketdata.Crossing),
	}
	for _, family := range domainmarketdata.TrendFamilies {
		if row, ok := h.market.StatsFor(family, symbol); ok {
			resp.Trends[family.String()] = row
		}
	}
	for _, pair := range domainmarketdata.CrossingPairs {
		if row, ok := h.market.LatestCrossing(pair, symbol); ok {
			resp.Crossings[pair.String()] = row
		}
	}
	info := h.market.SymbolInfoFor(symbol)
	if info != nil {
		resp.Filters = &info.Filters
	}

	if resp.BidPrice == nil && resp.AskPrice == nil && info == nil && len(resp.Trends) == 0 {
		writeError(c, http.StatusNotFound, domaininstruments.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listInstruments(c *gin.Context) {
	list, err := h.instruments.ListInstruments(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) getInstrument(c *gin.Context) {
	inst, err := h.instruments.GetInstrument(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

type tradingPayload struct {
	Active *bool `json:"active"`
}

func (h *Handler) setTrading(c *gin.Context) {
	var payload tradingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if payload.Active == nil {
		writeError(c, http.StatusBadRequest, errMissingActive)
		return
	}
	inst, err := h.instruments.SetTradingActive(c.Request.Context(), c.Param("symbol"), *payload.Active)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func readyPrice(price decimal.Decimal) *decimal.Decimal {
	if price.IsNegative() {
		return nil
	}
	return &price
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domaininstruments.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, appinstruments.ErrEmptySymbol):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
