package binance

import (
	"context"
	"net/url"

	trading "autotrader/internal/domain/entity/trading"
	interfaces "autotrader/internal/domain/interfaces"

	"github.com/shopspring/decimal"
)

var _ interfaces.AccountAPI = (*Client)(nil)

type accountResponse struct {
	Balances []struct {
		Asset  string          `json:"asset"`
		Free   decimal.Decimal `json:"free"`
		Locked decimal.Decimal `json:"locked"`
	} `json:"balances"`
}

// Balances returns the non-zero spot balances.
func (c *Client) Balances(ctx context.Context) ([]trading.Balance, error) {
	params := url.Values{}
	params.Set("omitZeroBalances", "true")
	var resp accountResponse
	if err := c.get(ctx, "/api/v3/account", params, true, &resp); err != nil {
		return nil, err
	}
	out := make([]trading.Balance, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		if b.Free.IsZero() && b.Locked.IsZero() {
			continue
		}
		out = append(out, trading.Balance{Asset: b.Asset, Free: b.Free, Locked: b.Locked})
	}
	return out, nil
}
