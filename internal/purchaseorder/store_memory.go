package purchaseorder

import (
	"context"
	"sync"

	"backtrail/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	orders map[string]PurchaseOrder
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{orders: make(map[string]PurchaseOrder)}
}

func (s *InMemoryStore) Create(_ context.Context, order PurchaseOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return sentinel.ErrConflict
	}
	s.orders[order.ID] = order
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return PurchaseOrder{}, sentinel.ErrNotFound
	}
	return order, nil
}

// GetForUpdate is a plain read here: the memory transaction runner already
// serializes whole transactions under one lock.
func (s *InMemoryStore) GetForUpdate(ctx context.Context, id string) (PurchaseOrder, error) {
	return s.Get(ctx, id)
}

func (s *InMemoryStore) Update(_ context.Context, order PurchaseOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.orders[order.ID] = order
	return nil
}
