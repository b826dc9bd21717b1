package memory

import (
	"context"
	"sync"

	"backtrail/internal/eventlog"
	"backtrail/pkg/platform/sentinel"
)

// Store is an in-memory event log for unit tests and local development.
// Sequence assignment is serialized by the mutex, mirroring what the unique
// constraint enforces in Postgres.
type Store struct {
	mu     sync.RWMutex
	events map[string][]eventlog.Event
}

func NewStore() *Store {
	return &Store{events: make(map[string][]eventlog.Event)}
}

func (s *Store) Append(_ context.Context, event eventlog.Event) (eventlog.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.events[event.AggregateID]
	next := int64(len(history)) + 1
	if event.Seq != 0 && event.Seq != next {
		// A caller pinned a stale sequence; same outcome as the DB race.
		return eventlog.Event{}, sentinel.ErrConflict
	}
	event.Seq = next
	s.events[event.AggregateID] = append(history, event)
	return event, nil
}

func (s *Store) ListByAggregate(_ context.Context, aggregateID string) ([]eventlog.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]eventlog.Event{}, s.events[aggregateID]...), nil
}
