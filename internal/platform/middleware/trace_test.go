package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtrail/internal/platform/middleware"
	"backtrail/pkg/requestcontext"
)

func TestTrace_ReusesInboundHeader(t *testing.T) {
	var seen string
	handler := middleware.Trace(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestcontext.TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/payments/p-1", nil)
	req.Header.Set(middleware.TraceHeader, "upstream-trace-9")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "upstream-trace-9", seen)
	assert.Equal(t, "upstream-trace-9", rr.Header().Get(middleware.TraceHeader))
}

func TestTrace_MintsIDWhenHeaderAbsent(t *testing.T) {
	var seen string
	handler := middleware.Trace(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestcontext.TraceID(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payments/p-1", nil))

	require.NotEmpty(t, seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err, "minted trace id should be a UUID")
	assert.Equal(t, seen, rr.Header().Get(middleware.TraceHeader))
}

func TestTrace_BlankHeaderTreatedAsAbsent(t *testing.T) {
	var seen string
	handler := middleware.Trace(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestcontext.TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/payments/p-1", nil)
	req.Header.Set(middleware.TraceHeader, "   ")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestTrace_ConcurrentRequestsDoNotShareIDs(t *testing.T) {
	handler := middleware.Trace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestcontext.TraceID(r.Context())))
	}))

	first := httptest.NewRequest(http.MethodGet, "/payments/p-1", nil)
	first.Header.Set(middleware.TraceHeader, "trace-a")
	second := httptest.NewRequest(http.MethodGet, "/payments/p-2", nil)
	second.Header.Set(middleware.TraceHeader, "trace-b")

	done := make(chan string, 2)
	for _, req := range []*http.Request{first, second} {
		go func() {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			done <- rr.Body.String()
		}()
	}

	got := map[string]bool{<-done: true, <-done: true}
	assert.True(t, got["trace-a"])
	assert.True(t, got["trace-b"])
}

func TestTrace_StampsRequestTime(t *testing.T) {
	handler := middleware.Trace(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		stamped, ok := r.Context().Value(requestcontext.ContextKeyRequestTime).(time.Time)
		assert.True(t, ok)
		assert.False(t, stamped.IsZero())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
