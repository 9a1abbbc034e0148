// Package openorders tracks locally submitted orders until they are
// acknowledged or their absolute expiry passes.
package openorders

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "autotrader/internal/domain/entity/trading"
	interfaces "autotrader/internal/domain/interfaces"
)

// MemoryStore keeps open orders in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]map[string]domain.OpenOrder
}

var _ interfaces.OpenOrderStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]map[string]domain.OpenOrder)}
}

func (s *MemoryStore) Add(_ context.Context, order domain.OpenOrder) error {
	if err := validate(order); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bySymbol, ok := s.orders[order.Symbol]
	if !ok {
		bySymbol = make(map[string]domain.OpenOrder)
		s.orders[order.Symbol] = bySymbol
	}
	bySymbol[order.ID] = order
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, symbol, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySymbol, ok := s.orders[symbol]
	if !ok {
		return nil
	}
	delete(bySymbol, id)
	if len(bySymbol) == 0 {
		delete(s.orders, symbol)
	}
	return nil
}

func (s *MemoryStore) HasOpen(ctx context.Context, symbol string, now time.Time) (bool, error) {
	open, err := s.List(ctx, symbol, now)
	return len(open) > 0, err
}

// List returns the unexpired orders of symbol, oldest first. Expired orders
// are dropped.
func (s *MemoryStore) List(_ context.Context, symbol string, now time.Time) ([]domain.OpenOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySymbol := s.orders[symbol]
	out := make([]domain.OpenOrder, 0, len(bySymbol))
	for id, order := range bySymbol {
		if !now.Before(order.ExpiresAt()) {
			delete(bySymbol, id)
			continue
		}
		out = append(out, order)
	}
	if len(bySymbol) == 0 {
		delete(s.orders, symbol)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
