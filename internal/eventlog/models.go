// Package eventlog is the append-only event trail shared by every audited
// aggregate. Each mutation of an aggregate is chronicled as an Event with a
// per-aggregate sequence number that is contiguous from 1, so the full
// history of an entity can be replayed in order at any time.
package eventlog

//go:generate mockgen -source=models.go -destination=mocks/mock_store.go -package=mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names one state transition of an aggregate. The closed set of
// valid types is declared by each aggregate package (payments, purchase
// orders); the event log itself treats the type as opaque.
type EventType string

// Shared event types. Aggregates add their own (RATE_CHANGE, APPROVE, ...).
const (
	TypeCreate  EventType = "CREATE"
	TypeDelete  EventType = "DELETE"
	TypeRestore EventType = "RESTORE"
)

// Event is one immutable record of an aggregate state transition.
type Event struct {
	ID          uuid.UUID
	AggregateID string
	// AggregateNo is the human-readable business identifier (payment no,
	// order no), denormalized for query convenience.
	AggregateNo string
	Type        EventType
	// Seq is assigned at append time: contiguous per aggregate, starting at 1.
	Seq     int64
	Changes json.RawMessage
	// Operator is the actor that caused the transition.
	Operator  string
	Note      string
	CreatedAt time.Time
}

// Store is the append-only persistence contract. There is deliberately no
// update or delete surface: the event trail is the permanent history of an
// aggregate.
//
// Append assigns the next sequence number atomically with the insert and
// returns the stored event. When a concurrent writer won the race for that
// sequence, Append returns sentinel.ErrConflict (possibly wrapped); the
// Recorder retries with a recomputed sequence.
type Store interface {
	Append(ctx context.Context, event Event) (Event, error)
	// ListByAggregate returns the full history of one aggregate ordered by
	// Seq ascending. Two reads without an interleaved append return the
	// identical sequence.
	ListByAggregate(ctx context.Context, aggregateID string) ([]Event, error)
}

// FieldChange is the before/after pair for one field in a diff payload.
type FieldChange struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Snapshot marshals the full initial state of an aggregate for CREATE events.
func Snapshot(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return raw, nil
}

// Diff marshals a field-level before/after payload for mutation events.
func Diff(changes map[string]FieldChange) (json.RawMessage, error) {
	raw, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("marshal diff: %w", err)
	}
	return raw, nil
}
