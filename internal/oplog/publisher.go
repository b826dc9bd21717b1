package oplog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"backtrail/internal/platform/metrics"
	"backtrail/pkg/requestcontext"
)

const (
	defaultBuffer    = 1024
	defaultWorkers   = 2
	sinkWriteTimeout = 5 * time.Second
)

// Publisher is the asynchronous, fire-and-forget dispatcher for log entries.
// Record never blocks the caller: entries go into a bounded queue and are
// drained by background workers; when the queue is full the entry is dropped
// and counted. Workers write with a background context, so a cancelled
// request does not lose entries already accepted.
type Publisher struct {
	inbox   chan Entry
	sinks   []Sink
	logger  *slog.Logger
	metrics *metrics.Metrics

	// mu serializes sends against Close: the inbox is only closed while
	// holding the write lock, and only sent to under the read lock with
	// closed checked, so a Record racing shutdown can never hit a closed
	// channel.
	mu     sync.RWMutex
	closed bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures the Publisher.
type Option func(*publisherConfig)

type publisherConfig struct {
	buffer  int
	workers int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WithBuffer sets the bounded queue size.
func WithBuffer(n int) Option {
	return func(c *publisherConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithWorkers sets the number of draining goroutines.
func WithWorkers(n int) Option {
	return func(c *publisherConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets a logger for dispatch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *publisherConfig) { c.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *publisherConfig) { c.metrics = m }
}

// NewPublisher creates a running publisher fanning entries out to the given
// sinks. Call Close to drain and stop.
func NewPublisher(sinks []Sink, opts ...Option) *Publisher {
	cfg := publisherConfig{
		buffer:  defaultBuffer,
		workers: defaultWorkers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Publisher{
		inbox:   make(chan Entry, cfg.buffer),
		sinks:   sinks,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}
	for range cfg.workers {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Record accepts an entry for asynchronous dispatch. Missing trace context is
// a caller bug: the entry still goes out, under a generated fallback id.
// After Close the entry is dropped and counted, never a panic: a request
// in flight during shutdown must not fail because its log could not be
// queued.
func (p *Publisher) Record(ctx context.Context, entry Entry) {
	if entry.TraceID == "" {
		entry.TraceID = requestcontext.TraceID(ctx)
	}
	if entry.TraceID == "" {
		entry.TraceID = "orphan-" + uuid.NewString()
		p.logger.WarnContext(ctx, "log entry recorded without trace context",
			"module", entry.Module,
			"action", entry.Action,
			"fallback_trace_id", entry.TraceID,
		)
	}
	if entry.Actor == "" {
		entry.Actor = requestcontext.Actor(ctx)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.ClientIP == "" {
		entry.ClientIP = requestcontext.ClientIP(ctx)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = requestcontext.UserAgent(ctx)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		if p.metrics != nil {
			p.metrics.OplogDropped.Inc()
		}
		p.logger.Warn("log entry dropped, publisher closed",
			"trace_id", entry.TraceID,
			"module", entry.Module,
			"action", entry.Action,
		)
		return
	}

	select {
	case p.inbox <- entry:
		if p.metrics != nil {
			p.metrics.OplogEnqueued.WithLabelValues(string(entry.Kind)).Inc()
		}
	default:
		// Queue full: drop rather than block or grow without bound.
		if p.metrics != nil {
			p.metrics.OplogDropped.Inc()
		}
		p.logger.Warn("log entry dropped, dispatch queue full",
			"trace_id", entry.TraceID,
			"module", entry.Module,
			"action", entry.Action,
		)
	}
}

// Close stops accepting entries, drains the queue, and waits for workers.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for entry := range p.inbox {
		p.dispatch(entry)
	}
}

func (p *Publisher) dispatch(entry Entry) {
	// Deliberately not the request context: entries accepted before a
	// request was cancelled are still written out-of-band.
	ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
	defer cancel()

	for _, sink := range p.sinks {
		if err := sink.Write(ctx, entry); err != nil {
			if p.metrics != nil {
				p.metrics.OplogWriteFailures.Inc()
			}
			p.logger.Error("log sink write failed",
				"trace_id", entry.TraceID,
				"kind", entry.Kind,
				"module", entry.Module,
				"action", entry.Action,
				"error", err,
			)
		}
	}
}
