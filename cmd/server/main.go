package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"backtrail/internal/eventlog"
	eventmemory "backtrail/internal/eventlog/store/memory"
	eventpostgres "backtrail/internal/eventlog/store/postgres"
	"backtrail/internal/oplog"
	"backtrail/internal/oplog/interceptor"
	kafkasink "backtrail/internal/oplog/sink/kafka"
	"backtrail/internal/oplog/sink/redisfeed"
	"backtrail/internal/payments"
	"backtrail/internal/platform/config"
	"backtrail/internal/platform/httpserver"
	"backtrail/internal/platform/logger"
	"backtrail/internal/platform/metrics"
	"backtrail/internal/platform/middleware"
	platformredis "backtrail/internal/platform/redis"
	"backtrail/internal/purchaseorder"
	httptransport "backtrail/internal/transport/http"
	"backtrail/pkg/platform/tx"
)

const shutdownTimeout = 15 * time.Second

func main() {
	log := logger.New()
	cfg := config.FromEnv()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. Without DATABASE_URL the process runs fully in memory, which
	// is what local development and the handler tests use.
	var (
		db     *sql.DB
		runner tx.Runner

		paymentStore payments.Store
		orderStore   purchaseorder.Store
		paymentEvs   eventlog.Store
		orderEvs     eventlog.Store
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("database ping failed", "error", err)
			os.Exit(1)
		}

		paymentEvs, err = eventpostgres.New(db, "payment_events")
		if err != nil {
			log.Error("event store init failed", "error", err)
			os.Exit(1)
		}
		orderEvs, err = eventpostgres.New(db, "purchase_order_events")
		if err != nil {
			log.Error("event store init failed", "error", err)
			os.Exit(1)
		}
		paymentStore = payments.NewPostgresStore(db)
		orderStore = purchaseorder.NewPostgresStore(db)
		runner = tx.NewSQLRunner(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		paymentEvs = eventmemory.NewStore()
		orderEvs = eventmemory.NewStore()
		paymentStore = payments.NewInMemoryStore()
		orderStore = purchaseorder.NewInMemoryStore()
		runner = tx.NewMemoryRunner()
	}

	// Log sinks. Kafka and Redis are both optional; the process log is the
	// floor so entries are never silently unobservable.
	sinks := []oplog.Sink{oplog.NewSlogSink(log)}

	var kafka *kafkasink.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		var err error
		kafka, err = kafkasink.New(ctx, cfg.Kafka)
		if err != nil {
			log.Error("kafka sink init failed", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		sinks = append(sinks, kafka)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	var feed *redisfeed.Sink
	if redisClient != nil {
		defer redisClient.Close()
		feed = redisfeed.New(redisClient, 100)
		sinks = append(sinks, feed)
	}

	publisher := oplog.NewPublisher(sinks,
		oplog.WithBuffer(cfg.OplogBuffer),
		oplog.WithWorkers(cfg.OplogWorkers),
		oplog.WithLogger(log),
		oplog.WithMetrics(m),
	)
	ops := interceptor.New(publisher)

	paymentRecorder := eventlog.NewRecorder("payment", paymentEvs,
		eventlog.WithRetryLimit(cfg.EventRetryLimit),
		eventlog.WithLogger(log),
		eventlog.WithMetrics(m),
	)
	orderRecorder := eventlog.NewRecorder("purchase_order", orderEvs,
		eventlog.WithRetryLimit(cfg.EventRetryLimit),
		eventlog.WithLogger(log),
		eventlog.WithMetrics(m),
	)

	svcs := httptransport.Services{
		Payments:       payments.NewService(paymentStore, paymentRecorder, runner, ops),
		PurchaseOrders: purchaseorder.NewService(orderStore, orderRecorder, runner, ops),
	}
	if feed != nil {
		svcs.Activity = feed
	}
	svcs.Health = func(ctx context.Context) error {
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}

	auth := middleware.NewActorAuth(cfg.JWTSigningKey, cfg.ServiceTokenHash, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(log, m, auth, svcs))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}

		// Drain the log queue after the server stops accepting requests so
		// entries enqueued by in-flight handlers still go out.
		publisher.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
