package payments

import (
	"context"
	"sync"

	"backtrail/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	payments map[string]Payment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{payments: make(map[string]Payment)}
}

func (s *InMemoryStore) Create(_ context.Context, payment Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[payment.ID]; exists {
		return sentinel.ErrConflict
	}
	s.payments[payment.ID] = payment
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payment, ok := s.payments[id]
	if !ok {
		return Payment{}, sentinel.ErrNotFound
	}
	return payment, nil
}

// GetForUpdate is a plain read here: the memory transaction runner already
// serializes whole transactions under one lock.
func (s *InMemoryStore) GetForUpdate(ctx context.Context, id string) (Payment, error) {
	return s.Get(ctx, id)
}

func (s *InMemoryStore) Update(_ context.Context, payment Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[payment.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.payments[payment.ID] = payment
	return nil
}
