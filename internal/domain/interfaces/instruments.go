package interfaces

import (
	"context"

	domain "autotrader/internal/domain/entity/instruments"
)

// InstrumentRegistry is the read-only list of known instruments.
type InstrumentRegistry interface {
	ListInstruments(ctx context.Context) ([]domain.Instrument, error)
	ActiveSymbols(ctx context.Context) ([]string, error)
}

// InstrumentCatalogue adds lookups and the trading switch to the registry.
type InstrumentCatalogue interface {
	InstrumentRegistry
	GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error)
	SetTradingActive(ctx context.Context, symbol string, active bool) error
}
