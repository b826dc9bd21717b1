package eventlog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"backtrail/internal/platform/metrics"
	dErrors "backtrail/pkg/domain-errors"
	"backtrail/pkg/platform/sentinel"
	"backtrail/pkg/requestcontext"
)

const defaultRetryLimit = 3

// Recorder assigns sequence numbers and appends events for one aggregate
// kind. Sequence races (two writers computing the same next Seq) are
// recovered locally by recomputing and retrying up to a bounded count;
// exhausting the budget surfaces CodeConflict so the enclosing business
// transaction fails rather than letting the trail fall behind the data.
type Recorder struct {
	aggregate  string
	store      Store
	retryLimit int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRetryLimit bounds sequence-conflict retries per append.
func WithRetryLimit(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.retryLimit = n
		}
	}
}

// WithLogger sets a logger for conflict diagnostics.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder creates a Recorder for one aggregate kind ("payment",
// "purchase_order"). The kind labels metrics and log lines only; isolation
// between kinds comes from each kind having its own store/table.
func NewRecorder(aggregate string, store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		aggregate:  aggregate,
		store:      store,
		retryLimit: defaultRetryLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stamps operator and timestamp from the request context, then appends
// the event. It must run inside the same transaction as the business write
// (via tx in context) so the entity state and its history never diverge.
func (r *Recorder) Record(ctx context.Context, event Event) (Event, error) {
	if event.AggregateID == "" {
		return Event{}, dErrors.New(dErrors.CodeBadRequest, "event requires an aggregate id")
	}
	if event.Type == "" {
		return Event{}, dErrors.New(dErrors.CodeBadRequest, "event requires a type")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Operator == "" {
		event.Operator = requestcontext.Actor(ctx)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = requestcontext.Now(ctx)
	}

	for attempt := 0; attempt <= r.retryLimit; attempt++ {
		stored, err := r.store.Append(ctx, event)
		if err == nil {
			if r.metrics != nil {
				r.metrics.IncEventsAppended(r.aggregate)
			}
			return stored, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			// Storage failure: the caller's transaction must roll back.
			return Event{}, dErrors.Wrap(dErrors.CodeUnavailable, "append event", err)
		}
		if r.metrics != nil {
			r.metrics.IncSequenceConflicts(r.aggregate)
		}
		if r.logger != nil {
			r.logger.WarnContext(ctx, "event sequence conflict, retrying",
				"trace_id", requestcontext.TraceID(ctx),
				"aggregate", r.aggregate,
				"aggregate_id", event.AggregateID,
				"attempt", attempt+1,
			)
		}
	}

	return Event{}, dErrors.New(dErrors.CodeConflict, "event sequence retries exhausted for "+event.AggregateID)
}

// History returns the ordered event trail of one aggregate.
func (r *Recorder) History(ctx context.Context, aggregateID string) ([]Event, error) {
	if aggregateID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "aggregate id required")
	}
	events, err := r.store.ListByAggregate(ctx, aggregateID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "list events", err)
	}
	return events, nil
}
