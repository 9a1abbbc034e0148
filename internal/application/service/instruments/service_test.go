package instruments

import (
	"context"
	"testing"

	domain "autotrader/internal/domain/entity/instruments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCatalogue struct {
	rows map[string]domain.Instrument
}

func (m *memoryCatalogue) ListInstruments(context.Context) ([]domain.Instrument, error) {
	out := make([]domain.Instrument, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, row)
	}
	return out, nil
}

func (m *memoryCatalogue) ActiveSymbols(context.Context) ([]string, error) {
	var out []string
	for symbol, row := range m.rows {
		if row.TradingActive {
			out = append(out, symbol)
		}
	}
	return out, nil
}

func (m *memoryCatalogue) GetInstrument(_ context.Context, symbol string) (*domain.Instrument, error) {
	row, ok := m.rows[symbol]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

func (m *memoryCatalogue) SetTradingActive(_ context.Context, symbol string, active bool) error {
	row, ok := m.rows[symbol]
	if !ok {
		return domain.ErrNotFound
	}
	row.TradingActive = active
	m.rows[symbol] = row
	return nil
}

func TestService_SetTradingActive(t *testing.T) {
	repo := &memoryCatalogue{rows: map[string]domain.Instrument{
		"BTCUSDT": {Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	updated, err := svc.SetTradingActive(ctx, " btcusdt ", true)
	require.NoError(t, err)
	assert.True(t, updated.TradingActive)

	active, err := repo.ActiveSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, active)

	_, err = svc.SetTradingActive(ctx, "ETHUSDT", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_RejectsEmptySymbol(t *testing.T) {
	svc := NewService(&memoryCatalogue{rows: map[string]domain.Instrument{}})
	_, err := svc.GetInstrument(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptySymbol)
	_, err = svc.SetTradingActive(context.Background(), "", false)
	assert.ErrorIs(t, err, ErrEmptySymbol)
}
