// Package httptransport is the thin HTTP layer. It delegates to domain
// services without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"backtrail/internal/platform/metrics"
	"backtrail/internal/platform/middleware"
	"backtrail/internal/transport/http/shared"
)

// Services aggregates the domain dependencies the router wires up.
type Services struct {
	Payments       PaymentService
	PurchaseOrders PurchaseOrderService
	Activity       ActivityFeed

	// Health probes the backing services (database, redis). Nil means the
	// process has no external dependencies to check.
	Health func(ctx context.Context) error
}

// NewRouter builds the chi router with the full middleware chain. Trace runs
// first so every later middleware, handler, and log write sees the
// correlation id.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, auth *middleware.ActorAuth, svcs Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Trace)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(m))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	r.Use(auth.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if svcs.Health != nil {
			if err := svcs.Health(req.Context()); err != nil {
				logger.ErrorContext(req.Context(), "health check failed", "error", err)
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	ph := &paymentHandler{service: svcs.Payments, logger: logger}
	r.Route("/payments", func(r chi.Router) {
		r.Post("/", ph.handleCreate)
		r.Get("/{id}", ph.handleGet)
		r.Get("/{id}/events", ph.handleHistory)
		r.Post("/{id}/rate", ph.handleChangeRate)
		r.Post("/{id}/amount", ph.handleChangeAmount)
		r.Delete("/{id}", ph.handleDelete)
		r.Post("/{id}/restore", ph.handleRestore)
	})

	oh := &purchaseOrderHandler{service: svcs.PurchaseOrders, logger: logger}
	r.Route("/purchase-orders", func(r chi.Router) {
		r.Post("/", oh.handleCreate)
		r.Get("/{id}", oh.handleGet)
		r.Get("/{id}/events", oh.handleHistory)
		r.Post("/{id}/approve", oh.handleApprove)
		r.Delete("/{id}", oh.handleDelete)
	})

	if svcs.Activity != nil {
		ah := &activityHandler{feed: svcs.Activity, logger: logger}
		r.Get("/activity/{module}", ah.handleRecent)
	}

	return r
}
