package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/scribe/internal/config"
	"github.com/jwalitptl/scribe/internal/worker"
	"github.com/jwalitptl/scribe/pkg/logger"
	"github.com/jwalitptl/scribe/pkg/messaging/redis"
	"github.com/jwalitptl/scribe/pkg/metrics"
)

// The worker subscribes to the patient change channel the agents publish on
// and keeps an audit log of what changed and when.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "failed to load configuration")
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
	})

	if !cfg.Messaging.Enabled {
		log.Fatal(errors.New("messaging is disabled"), "set messaging.enabled to run the event worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics("scribe", "worker", registry)

	broker, err := redis.NewRedisBroker(ctx, redis.Config{URL: cfg.Messaging.RedisURL}, log.With("broker"))
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              cfg.Messaging.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "metrics server failed")
		}
	}()

	w := worker.NewEventAuditWorker(broker, cfg.Messaging.Channel, log, m)
	if err := w.Start(ctx); err != nil {
		log.Error(err, "event worker stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info("worker exited properly")
}
