// Package instruments exposes the instrument registry to operators.
package instruments

import (
	"context"
	"errors"
	"strings"

	domain "autotrader/internal/domain/entity/instruments"
	interfaces "autotrader/internal/domain/interfaces"
)

var ErrEmptySymbol = errors.New("symbol is empty")

type Service struct {
	repo interfaces.InstrumentCatalogue
}

func NewService(repo interfaces.InstrumentCatalogue) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	return s.repo.ListInstruments(ctx)
}

func (s *Service) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	symbol, err := normalize(symbol)
	if err != nil {
		return nil, err
	}
	return s.repo.GetInstrument(ctx, symbol)
}

// SetTradingActive switches trading for symbol and returns the updated row.
// The lifecycle manager picks the change up on its next tick.
func (s *Service) SetTradingActive(ctx context.Context, symbol string, active bool) (*domain.Instrument, error) {
	symbol, err := normalize(symbol)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetTradingActive(ctx, symbol, active); err != nil {
		return nil, err
	}
	return s.repo.GetInstrument(ctx, symbol)
}

func normalize(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", ErrEmptySymbol
	}
	return symbol, nil
}
