// Package postgres persists aggregate events in per-aggregate-type tables
// (payment_events, purchase_order_events). The next sequence number is
// computed inside the INSERT itself; the UNIQUE(aggregate_id, event_seq)
// constraint is the arbiter under concurrency, and a violation is surfaced
// as sentinel.ErrConflict for the Recorder to retry.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"

	"backtrail/internal/eventlog"
	"backtrail/pkg/platform/sentinel"
	txcontext "backtrail/pkg/platform/tx"
)

// tablePattern guards the table identifier interpolated into queries.
var tablePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Store implements eventlog.Store on one event table.
type Store struct {
	db    *sql.DB
	table string
}

// New creates an event store bound to a single table, e.g.
// New(db, "payment_events").
func New(db *sql.DB, table string) (*Store, error) {
	if !tablePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid event table name %q", table)
	}
	return &Store{db: db, table: table}, nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Append inserts the event with the next free sequence for its aggregate.
// When the context carries a transaction the insert joins it, guarded by a
// savepoint so a sequence conflict can be retried without poisoning the
// enclosing transaction.
func (s *Store) Append(ctx context.Context, event eventlog.Event) (eventlog.Event, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.appendInTx(ctx, tx, event)
	}
	return s.insert(ctx, s.db, event)
}

func (s *Store) appendInTx(ctx context.Context, tx *sql.Tx, event eventlog.Event) (eventlog.Event, error) {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT append_event"); err != nil {
		return eventlog.Event{}, fmt.Errorf("savepoint: %w", err)
	}

	stored, err := s.insert(ctx, tx, event)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Roll back to the savepoint so the retry runs in a live transaction.
			if _, spErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT append_event"); spErr != nil {
				return eventlog.Event{}, fmt.Errorf("rollback to savepoint: %w", spErr)
			}
		}
		return eventlog.Event{}, err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT append_event"); err != nil {
		return eventlog.Event{}, fmt.Errorf("release savepoint: %w", err)
	}
	return stored, nil
}

func (s *Store) insert(ctx context.Context, exec dbExecutor, event eventlog.Event) (eventlog.Event, error) {
	// Sequence computed in the insert: contiguous per aggregate, starting at 1.
	query := fmt.Sprintf(`
		INSERT INTO %s (id, aggregate_id, aggregate_no, event_type, event_seq, changes, operator, note, created_at)
		SELECT $1, $2, $3, $4, COALESCE(MAX(event_seq), 0) + 1, $5, $6, $7, $8
		FROM %s
		WHERE aggregate_id = $2
		RETURNING event_seq
	`, s.table, s.table)

	var changes any
	if event.Changes != nil {
		changes = []byte(event.Changes)
	}

	err := exec.QueryRowContext(ctx, query,
		event.ID,
		event.AggregateID,
		event.AggregateNo,
		string(event.Type),
		changes,
		event.Operator,
		event.Note,
		event.CreatedAt,
	).Scan(&event.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return eventlog.Event{}, fmt.Errorf("event seq race on %s: %w", event.AggregateID, sentinel.ErrConflict)
		}
		return eventlog.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// ListByAggregate returns the ordered history of one aggregate.
func (s *Store) ListByAggregate(ctx context.Context, aggregateID string) ([]eventlog.Event, error) {
	query := fmt.Sprintf(`
		SELECT id, aggregate_id, aggregate_no, event_type, event_seq, changes, operator, note, created_at
		FROM %s
		WHERE aggregate_id = $1
		ORDER BY event_seq ASC
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []eventlog.Event
	for rows.Next() {
		var (
			event   eventlog.Event
			typ     string
			changes []byte
			note    sql.NullString
		)
		err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.AggregateNo,
			&typ,
			&event.Seq,
			&changes,
			&event.Operator,
			&note,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Type = eventlog.EventType(typ)
		event.Changes = changes
		event.Note = note.String
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
