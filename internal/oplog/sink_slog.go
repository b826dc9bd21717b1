package oplog

import (
	"context"
	"log/slog"
)

// SlogSink writes entries to the process log. It is the fallback sink for
// deployments without Kafka or Redis configured, and keeps local development
// observable.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Write(ctx context.Context, entry Entry) error {
	s.logger.InfoContext(ctx, "oplog entry",
		"trace_id", entry.TraceID,
		"kind", entry.Kind,
		"module", entry.Module,
		"action", entry.Action,
		"risk", entry.Risk,
		"actor", entry.Actor,
		"outcome", entry.Outcome,
		"detail", entry.Detail,
		"duration_ms", entry.DurationMS,
	)
	return nil
}
