package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"backtrail/pkg/requestcontext"
)

// TraceHeader carries the correlation id across service boundaries. When a
// caller supplies it, the id is reused verbatim so cross-service traces join;
// otherwise a fresh UUID is minted. The response always echoes the header.
const TraceHeader = "X-Trace-Id"

var tracer = otel.Tracer("backtrail/http")

// Trace establishes the per-request trace context: correlation id, request
// start time, and an OpenTelemetry span. It must run before any handler or
// middleware that logs or emits events. Trace state lives only in the request
// context, so concurrent requests never observe each other's ids.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := strings.TrimSpace(r.Header.Get(TraceHeader))
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := requestcontext.WithTraceID(r.Context(), traceID)
		ctx = requestcontext.WithTime(ctx, time.Now())

		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("backtrail.trace_id", traceID)),
		)
		defer span.End()

		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
