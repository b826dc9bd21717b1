package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	EventsAppended     *prometheus.CounterVec
	SequenceConflicts  *prometheus.CounterVec
	RequestLatency     *prometheus.HistogramVec
	OplogEnqueued      *prometheus.CounterVec
	OplogDropped       prometheus.Counter
	OplogWriteFailures prometheus.Counter
}

// New creates all metrics and registers them with the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics with an explicit registerer. Tests use a
// fresh registry per test to avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backtrail_events_appended_total",
			Help: "Total number of aggregate events appended, by aggregate kind",
		}, []string{"aggregate"}),
		SequenceConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backtrail_sequence_conflicts_total",
			Help: "Total number of event sequence conflicts retried, by aggregate kind",
		}, []string{"aggregate"}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backtrail_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		OplogEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backtrail_oplog_enqueued_total",
			Help: "Total number of business/audit log entries accepted for dispatch, by kind",
		}, []string{"kind"}),
		OplogDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "backtrail_oplog_dropped_total",
			Help: "Total number of log entries dropped because the dispatch queue was full",
		}),
		OplogWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "backtrail_oplog_write_failures_total",
			Help: "Total number of log entries that failed to reach a sink",
		}),
	}
}

// IncEventsAppended increments the appended-events counter for an aggregate kind.
func (m *Metrics) IncEventsAppended(aggregate string) {
	m.EventsAppended.WithLabelValues(aggregate).Inc()
}

// IncSequenceConflicts increments the conflict-retry counter for an aggregate kind.
func (m *Metrics) IncSequenceConflicts(aggregate string) {
	m.SequenceConflicts.WithLabelValues(aggregate).Inc()
}
