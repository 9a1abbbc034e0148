package binance

import (
	"context"
	"net/url"

	instruments "autotrader/internal/domain/entity/instruments"
	interfaces "autotrader/internal/domain/interfaces"

	"github.com/shopspring/decimal"
)

var _ interfaces.ExchangeInfoAPI = (*Client)(nil)

const statusTrading = "TRADING"

type exchangeInfoResponse struct {
	Symbols []symbolResponse `json:"symbols"`
}

type symbolResponse struct {
	Symbol             string           `json:"symbol"`
	Status             string           `json:"status"`
	BaseAsset          string           `json:"baseAsset"`
	BaseAssetPrecision int32            `json:"baseAssetPrecision"`
	QuoteAsset         string           `json:"quoteAsset"`
	Filters            []filterResponse `json:"filters"`
}

type filterResponse struct {
	FilterType  string          `json:"filterType"`
	MinPrice    decimal.Decimal `json:"minPrice"`
	MaxPrice    decimal.Decimal `json:"maxPrice"`
	TickSize    decimal.Decimal `json:"tickSize"`
	MinQty      decimal.Decimal `json:"minQty"`
	MaxQty      decimal.Decimal `json:"maxQty"`
	StepSize    decimal.Decimal `json:"stepSize"`
	MinNotional decimal.Decimal `json:"minNotional"`
}

// SymbolInfos returns the trading rules of every symbol currently trading.
func (c *Client) SymbolInfos(ctx context.Context) ([]instruments.SymbolInfo, error) {
	params := url.Values{}
	params.Set("permissions", "SPOT")
	var resp exchangeInfoResponse
	if err := c.get(ctx, "/api/v3/exchangeInfo", params, false, &resp); err != nil {
		return nil, err
	}
	out := make([]instruments.SymbolInfo, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		if s.Status != statusTrading {
			continue
		}
		out = append(out, s.toSymbolInfo())
	}
	return out, nil
}

func (s symbolResponse) toSymbolInfo() instruments.SymbolInfo {
	info := instruments.SymbolInfo{
		Symbol:     s.Symbol,
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
		Status:     s.Status,
	}
	info.Filters.BasePrecision = s.BaseAssetPrecision
	for _, f := range s.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			info.Filters.MinPrice = f.MinPrice
			info.Filters.MaxPrice = f.MaxPrice
			info.Filters.TickSize = f.TickSize
		case "LOT_SIZE":
			info.Filters.MinQty = f.MinQty
			info.Filters.MaxQty = f.MaxQty
			info.Filters.StepSize = f.StepSize
		case "NOTIONAL", "MIN_NOTIONAL":
			if f.MinNotional.GreaterThan(info.Filters.MinNotional) {
				info.Filters.MinNotional = f.MinNotional
			}
		}
	}
	return info
}
