// Package main is the entry point for the civil registry portal API
// server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/baliwag-egov/civreg/internal/api"
	"github.com/baliwag-egov/civreg/internal/audit"
	"github.com/baliwag-egov/civreg/internal/auth"
	"github.com/baliwag-egov/civreg/internal/config"
	"github.com/baliwag-egov/civreg/internal/db"
	"github.com/baliwag-egov/civreg/internal/docstore"
	"github.com/baliwag-egov/civreg/internal/gateway"
	"github.com/baliwag-egov/civreg/internal/health"
	"github.com/baliwag-egov/civreg/internal/ledger"
	"github.com/baliwag-egov/civreg/internal/middleware"
	"github.com/baliwag-egov/civreg/internal/permit"
	"github.com/baliwag-egov/civreg/internal/tracing"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Civil Registry Portal API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	tracerProvider, err := tracing.NewProvider(tracing.ConfigFromEnv("civreg-api", cfg.Env))
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracer provider", "error", err)
		}
	}()

	handler, cleanup, err := buildHandler(cfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildHandler wires repositories, the lifecycle engine, handlers, and the
// middleware chain from configuration. Without DATABASE_URL everything runs
// on in-memory stores, which is how local development and tests operate.
func buildHandler(cfg *config.Config, logger *slog.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	permits := permit.Repository(permit.NewMemoryRepository())
	transactions := ledger.Store(ledger.NewMemoryStore())
	audits := audit.Repository(audit.NewInMemoryRepository())
	healthCfg := api.HealthHandlersConfig{}

	if cfg.DatabaseURL != "" {
		conn, err := db.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = conn.Close() })

		permits = permit.NewPostgresRepository(conn)
		transactions = ledger.NewPostgresStore(conn)
		audits = audit.NewPostgresRepository(conn)
		healthCfg.DBChecker = health.NewDBChecker(conn)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
	}

	rateLimits := middleware.RateLimitStore(middleware.NewMemoryRateLimitStore())
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		closers = append(closers, func() { _ = client.Close() })
		rateLimits = middleware.NewRedisRateLimitStore(client)
		healthCfg.RedisChecker = health.NewRedisChecker(client)
	}

	var gw gateway.Client
	if cfg.GatewayURL != "" {
		gw = gateway.NewHTTPClient(cfg.GatewayURL, cfg.GatewaySystemID, cfg.GatewayCallbackURL,
			time.Duration(cfg.GatewayTimeoutSec)*time.Second)
		healthCfg.GatewayChecker = health.NewGatewayChecker(cfg.GatewayURL)
	} else {
		logger.Warn("GATEWAY_URL not set, online payment runs in fallback mode")
	}

	docs := docstore.Store(docstore.NewMemoryStore())
	if cfg.R2BucketName != "" {
		s3Store, err := docstore.NewS3Store(docstore.S3Config{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			MaxSizeMB:       cfg.R2MaxUploadSizeMB,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("configure document store: %w", err)
		}
		docs = s3Store
	} else {
		logger.Warn("R2 not configured, storing documents in memory")
	}

	engine := permit.NewEngine(permits, transactions, audits, gw, logger)

	engineMetrics := permit.NewMetrics()
	if err := engineMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, cleanup, fmt.Errorf("register engine metrics: %w", err)
	}
	engine.UseMetrics(engineMetrics)

	mux := api.Routes(
		api.NewPermitHandlers(engine, docs),
		api.NewCallbackHandlers(engine, cfg.GatewaySystemID),
		api.NewDocumentHandlers(docs, audits),
		api.NewHealthHandlers(healthCfg),
		middleware.RateLimit(rateLimits, middleware.DefaultSubmissionLimit()),
	)

	metrics := middleware.NewHTTPMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, cleanup, fmt.Errorf("register metrics: %w", err)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	// RequestID -> Tracing -> Logging -> RateLimit -> Auth -> metrics
	handler := metrics.Instrument(mux)
	handler = middleware.Auth(jwtService)(handler)
	handler = middleware.RateLimit(rateLimits, middleware.DefaultGlobalLimit())(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing("civreg-api")(handler)
	handler = middleware.RequestID(handler)

	return handler, cleanup, nil
}
