package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/scribe/internal/config"
	"github.com/jwalitptl/scribe/internal/handler"
	"github.com/jwalitptl/scribe/internal/handler/health"
	"github.com/jwalitptl/scribe/internal/handler/patient"
	promHandler "github.com/jwalitptl/scribe/internal/handler/prometheus"
	"github.com/jwalitptl/scribe/internal/middleware"
	"github.com/jwalitptl/scribe/internal/repository/postgres"
	"github.com/jwalitptl/scribe/internal/router"
	patientService "github.com/jwalitptl/scribe/internal/service/patient"
	"github.com/jwalitptl/scribe/pkg/auth"
	"github.com/jwalitptl/scribe/pkg/logger"
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
	m := metrics.NewMetrics("scribe", "api", registry)

	// Initialize database
	var db *sqlx.DB
	dbLog := log.With("database")
	err = retry.DoNotify(ctx, cfg.Remote.RetryAttempts, cfg.Remote.RetryDelay, func() error {
		db, err = postgres.NewDB(ctx, cfg.Database)
		return err
	}, func(err error, wait time.Duration) {
		dbLog.Warn("failed to connect to database, retrying", "error", err.Error(), "wait", wait.String())
	})
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal(err, "failed to apply migrations")
	}

	// Initialize repositories and services
	patientRepo := postgres.NewPatientRepository(db, m)
	patientSvc := patientService.NewService(patientRepo, log)

	var authMiddleware *middleware.AuthMiddleware
	if cfg.Auth.Enabled {
		jwt := auth.NewJWTService(cfg.Auth.Secret, cfg.Auth.Issuer, 0)
		authMiddleware = middleware.NewAuthMiddleware(jwt, handler.RenderDetail)
	}

	var limit rate.Limit
	if cfg.RateLimit.Enabled {
		limit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	}

	// Setup router
	r := router.NewRouter(promHandler.New(registry, "scribe_api"), authMiddleware, router.RouterConfig{
		Prefix:         "/api",
		Mode:           gin.ReleaseMode,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      limit,
		RateBurst:      cfg.RateLimit.Burst,
		CORSConfig:     middleware.CORSFromConfig(cfg.CORS),
		Render:         handler.RenderDetail,
	})

	r.Setup(
		[]router.Handler{health.NewHandler(health.CheckFunc{CheckName: "database", Fn: patientSvc.Ping})},
		[]router.Handler{patient.NewHandler(patientSvc)},
	)

	// Create server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info("records API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
		os.Exit(1)
	}

	log.Info("server exited properly")
}
