package memory

import (
	"context"
	"sync"

	"backtrail/internal/oplog"
)

// Sink collects entries in memory for unit tests.
type Sink struct {
	mu      sync.RWMutex
	entries []oplog.Entry
	failErr error
}

func NewSink() *Sink {
	return &Sink{}
}

// FailWith makes every subsequent Write return err (nil restores success).
func (s *Sink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *Sink) Write(_ context.Context, entry oplog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of everything written so far.
func (s *Sink) Entries() []oplog.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]oplog.Entry{}, s.entries...)
}

// ByKind filters written entries by kind.
func (s *Sink) ByKind(kind oplog.Kind) []oplog.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []oplog.Entry
	for _, e := range s.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
