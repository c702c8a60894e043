// Package memory provides map-backed implementations of the order and tip
// repositories for tests and local development. Production uses the sqlite
// package behind the same ports.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/platemate/order-ledger/internal/order/app"
	"github.com/platemate/order-ledger/internal/order/domain"
)

var _ app.Repository = (*OrderStore)(nil)

type OrderStore struct {
	mu      sync.RWMutex
	orders  map[string]*domain.Order
	history []*domain.StatusChange
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*domain.Order)}
}

func (s *OrderStore) Create(ctx context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return fmt.Errorf("memory: order %s already exists", o.ID)
	}
	s.orders[o.ID] = copyOrder(o)
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("memory: order %s: %w", id, domain.ErrNotFound)
	}
	return copyOrder(o), nil
}

func (s *OrderStore) Update(ctx context.Context, o *domain.Order, prevVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[o.ID]
	if !ok {
		return fmt.Errorf("memory: order %s: %w", o.ID, domain.ErrNotFound)
	}
	if stored.Version != prevVersion {
		return fmt.Errorf("memory: order %s is at version %d, not %d: %w",
			o.ID, stored.Version, prevVersion, domain.ErrVersionConflict)
	}
	s.orders[o.ID] = copyOrder(o)
	return nil
}

func (s *OrderStore) AppendStatusChange(ctx context.Context, c *domain.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cc := *c
	s.history = append(s.history, &cc)
	return nil
}

// History returns the audit rows recorded for an order, oldest first.
func (s *OrderStore) History(orderID string) []*domain.StatusChange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.StatusChange
	for _, c := range s.history {
		if c.OrderID == orderID {
			cc := *c
			out = append(out, &cc)
		}
	}
	return out
}

// copyOrder deep-copies so callers never alias stored state.
func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = make([]domain.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}
