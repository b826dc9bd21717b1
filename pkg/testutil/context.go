package testutil

import (
	"context"
	"testing"
	"time"

	"backtrail/pkg/requestcontext"
)

// TraceContext returns a context carrying a trace id, the way the trace
// middleware would have prepared it for a handler.
func TraceContext(t *testing.T, traceID string) context.Context {
	t.Helper()
	return requestcontext.WithTraceID(context.Background(), traceID)
}

// RequestContext returns a context stamped with the full request metadata an
// authenticated call would carry.
func RequestContext(t *testing.T, traceID, actor string, at time.Time) context.Context {
	t.Helper()
	ctx := requestcontext.WithTraceID(context.Background(), traceID)
	ctx = requestcontext.WithActor(ctx, actor)
	return requestcontext.WithTime(ctx, at)
}
