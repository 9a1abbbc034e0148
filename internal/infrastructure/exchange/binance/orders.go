package binance

import (
	"context"
	"fmt"
	"net/url"
	"time"

	trading "autotrader/internal/domain/entity/trading"
	interfaces "autotrader/internal/domain/interfaces"

	"github.com/shopspring/decimal"
)

var _ interfaces.OrderAPI = (*Client)(nil)

type orderResponse struct {
	Symbol              string          `json:"symbol"`
	OrderID             int64           `json:"orderId"`
	ClientOrderID       string          `json:"clientOrderId"`
	TransactTime        int64           `json:"transactTime"`
	Status              string          `json:"status"`
	ExecutedQty         decimal.Decimal `json:"executedQty"`
	CummulativeQuoteQty decimal.Decimal `json:"cummulativeQuoteQty"`
	Fills               []struct {
		Price           decimal.Decimal `json:"price"`
		Qty             decimal.Decimal `json:"qty"`
		Commission      decimal.Decimal `json:"commission"`
		CommissionAsset string          `json:"commissionAsset"`
	} `json:"fills"`
}

// PlaceOrder submits a new order. Exchange rejections return *APIError.
func (c *Client) PlaceOrder(ctx context.Context, req trading.OrderRequest) (*trading.OrderResult, error) {
	params, err := orderParams(req)
	if err != nil {
		return nil, err
	}
	var resp orderResponse
	if err := c.post(ctx, "/api/v3/order", params, &resp); err != nil {
		return nil, err
	}

	result := &trading.OrderResult{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Status:        resp.Status,
		ExecutedQty:   resp.ExecutedQty,
		QuoteQty:      resp.CummulativeQuoteQty,
		TransactTime:  time.UnixMilli(resp.TransactTime).UTC(),
		Fills:         make([]trading.Fill, 0, len(resp.Fills)),
	}
	for _, fill := range resp.Fills {
		result.Fills = append(result.Fills, trading.Fill{
			Price:           fill.Price,
			Quantity:        fill.Qty,
			Commission:      fill.Commission,
			CommissionAsset: fill.CommissionAsset,
		})
	}
	return result, nil
}

func orderParams(req trading.OrderRequest) (url.Values, error) {
	if req.Symbol == "" || !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("invalid order: symbol %q quantity %s", req.Symbol, req.Quantity)
	}
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", req.Quantity.String())
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}
	if req.ResponseType != "" {
		params.Set("newOrderRespType", string(req.ResponseType))
	}
	if req.Type == trading.OrderTypeLimit {
		if !req.Price.IsPositive() {
			return nil, fmt.Errorf("invalid limit order: price %s", req.Price)
		}
		tif := req.TimeInForce
		if tif == "" {
			tif = trading.TimeInForceGTC
		}
		params.Set("price", req.Price.String())
		params.Set("timeInForce", string(tif))
	}
	return params, nil
}
