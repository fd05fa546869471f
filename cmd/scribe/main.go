package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/scribe/internal/config"
	"github.com/jwalitptl/scribe/internal/export"
	"github.com/jwalitptl/scribe/internal/handler"
	exportHandler "github.com/jwalitptl/scribe/internal/handler/export"
	"github.com/jwalitptl/scribe/internal/handler/health"
	promHandler "github.com/jwalitptl/scribe/internal/handler/prometheus"
	"github.com/jwalitptl/scribe/internal/handler/recording"
	"github.com/jwalitptl/scribe/internal/handler/records"
	"github.com/jwalitptl/scribe/internal/middleware"
	"github.com/jwalitptl/scribe/internal/mirror"
	"github.com/jwalitptl/scribe/internal/recorder"
	"github.com/jwalitptl/scribe/internal/remote"
	"github.com/jwalitptl/scribe/internal/router"
	"github.com/jwalitptl/scribe/internal/store"
	"github.com/jwalitptl/scribe/internal/transcription"
	"github.com/jwalitptl/scribe/internal/worker"
	"github.com/jwalitptl/scribe/pkg/circuitbreaker"
	"github.com/jwalitptl/scribe/pkg/logger"
	"github.com/jwalitptl/scribe/pkg/messaging"
	"github.com/jwalitptl/scribe/pkg/messaging/redis"
	"github.com/jwalitptl/scribe/pkg/metrics"
	"github.com/jwalitptl/scribe/pkg/retry"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "failed to load configuration")
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics("scribe", "agent", registry)

	// Records API client behind a circuit breaker
	breakerLog := log.With("remote-breaker")
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "patient-api",
		MaxFailures: cfg.Remote.BreakerFailures,
		MaxRequests: 1,
		Timeout:     cfg.Remote.BreakerTimeout,
		IsFailure:   remote.BreakerFailure,
		OnStateChange: func(name, from, to string) {
			breakerLog.Warn("circuit breaker state changed", "name", name, "from", from, "to", to)
		},
	})

	remoteClient, err := remote.NewClient(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		Token:   cfg.Remote.Token,
		Timeout: cfg.Remote.Timeout,
	}, nil, breaker, log.With("remote"), m)
	if err != nil {
		log.Fatal(err, "failed to create records API client")
	}

	transcriber, err := transcription.NewClient(transcription.Config{
		BaseURL: cfg.Transcription.BaseURL,
		Token:   cfg.Transcription.Token,
		Timeout: cfg.Transcription.Timeout,
	}, nil, log.With("transcription"), m)
	if err != nil {
		log.Fatal(err, "failed to create transcription client")
	}

	// Local mirror
	mir, err := mirror.Open(ctx, mirror.Config{
		Driver:        cfg.Mirror.Driver,
		Path:          cfg.Mirror.Path,
		Key:           cfg.Mirror.Key,
		RedisURL:      cfg.Mirror.RedisURL,
		EncryptionKey: cfg.Mirror.EncryptionKey,
	})
	if err != nil {
		log.Fatal(err, "failed to open local mirror", "driver", cfg.Mirror.Driver)
	}
	if closer, ok := mir.(io.Closer); ok {
		defer closer.Close()
	}

	// Optional change events
	var publisher messaging.Publisher
	if cfg.Messaging.Enabled {
		broker, err := redis.NewRedisBroker(ctx, redis.Config{URL: cfg.Messaging.RedisURL}, log.With("broker"))
		if err != nil {
			log.Fatal(err, "failed to connect to message broker")
		}
		defer broker.Close()
		publisher = messaging.NewChannelPublisher(broker, cfg.Messaging.Channel)
	}

	patients := store.New(remoteClient, mir, publisher, store.Config{
		OfflineWrites: cfg.Store.OfflineWrites,
	}, log, m)

	loadLog := log.With("startup")
	err = retry.DoNotify(ctx, cfg.Remote.RetryAttempts, cfg.Remote.RetryDelay, func() error {
		return patients.Load(ctx)
	}, func(err error, wait time.Duration) {
		loadLog.Warn("failed to load patients, retrying", "error", err.Error(), "wait", wait.String())
	})
	if err != nil {
		log.Fatal(err, "failed to load patients")
	}
	log.Info("patients loaded", "count", patients.Len(), "offline", patients.Offline())

	rec := recorder.New(recorder.NewFFmpegDevice(cfg.Recorder.Command), recorder.Config{
		Device: recorder.DeviceConfig{
			SampleRate:  cfg.Recorder.SampleRate,
			Channels:    cfg.Recorder.Channels,
			InputFormat: cfg.Recorder.InputFormat,
			InputDevice: cfg.Recorder.InputDevice,
		},
		ChunkSize:   cfg.Recorder.ChunkSize,
		MaxDuration: cfg.Recorder.MaxDuration,
	}, log.With("recorder"), m)
	defer rec.Cleanup()

	renderer, err := export.NewRenderer(time.Now, time.Local)
	if err != nil {
		log.Fatal(err, "failed to load export templates")
	}

	// Setup router
	metricsHandler := promHandler.New(registry, "scribe_agent")
	r := router.NewRouter(metricsHandler, nil, router.RouterConfig{
		Prefix:         "/api/v1",
		Mode:           gin.ReleaseMode,
		RequestTimeout: cfg.Agent.RequestTimeout,
		RateLimit:      rateLimit(cfg.RateLimit),
		RateBurst:      cfg.RateLimit.Burst,
		CORSConfig:     middleware.CORSFromConfig(cfg.CORS),
		Render:         handler.RenderError,
	})

	storeCheck := health.CheckFunc{CheckName: "records_api", Fn: func(context.Context) error {
		if patients.Offline() {
			return errors.New("offline, serving local mirror")
		}
		return nil
	}}

	r.Setup(nil, []router.Handler{
		health.NewHandler(storeCheck),
		recording.NewHandler(rec, transcriber, patients, cfg.Transcription.FormType),
		records.NewHandler(patients),
		exportHandler.NewHandler(patients, renderer),
	})

	go worker.NewConnectivityWorker(patients, cfg.Store.ProbeInterval, log).Start(ctx)

	srv := &http.Server{
		Addr:         cfg.Agent.Addr(),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Agent.ReadTimeout,
		WriteTimeout: cfg.Agent.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info("scribe agent listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Agent.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
		os.Exit(1)
	}

	log.Info("server exited properly")
}

func rateLimit(cfg config.RateLimitConfig) rate.Limit {
	if !cfg.Enabled {
		return 0
	}
	return rate.Limit(cfg.RequestsPerSecond)
}
