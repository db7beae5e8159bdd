package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmarques/finsight-api/internal/config"
	"github.com/dmarques/finsight-api/internal/handler"
	"github.com/dmarques/finsight-api/internal/infra/cache"
	"github.com/dmarques/finsight-api/internal/infra/mx"
	"github.com/dmarques/finsight-api/internal/infra/observability"
	"github.com/dmarques/finsight-api/internal/infra/plaid"
	"github.com/dmarques/finsight-api/internal/infra/resilience"
	"github.com/dmarques/finsight-api/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("plaid_environment", cfg.PlaidEnvironment),
		zap.String("mx_environment", cfg.MXEnvironment),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Int("poll_max_attempts", cfg.PollMaxAttempts),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "finsight-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	analyticsCache := cache.New[any](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	plaidCB := resilience.NewCircuitBreaker("plaid")
	mxCB := resilience.NewCircuitBreaker("mx")
	pollerBulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	plaidClient := plaid.NewClient(
		httpClient,
		cfg.PlaidEnvironment,
		cfg.PlaidClientID,
		cfg.PlaidSecret,
		plaidCB,
		resilienceCfg,
		logger,
	)
	mxClient := mx.NewClient(
		httpClient,
		cfg.MXEnvironment,
		cfg.MXClientID,
		cfg.MXAPIKey,
		mxCB,
		resilienceCfg,
		logger,
	)

	// --- Services ---
	insightsSvc := service.NewInsightsService(plaidClient, analyticsCache, metrics, logger)

	poller := service.NewAggregationPoller(
		mxClient,
		pollerBulkhead,
		cfg.PollInterval,
		cfg.PollMaxAttempts,
		metrics,
		logger,
	)
	connectSvc := service.NewConnectService(plaidClient, mxClient, poller, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(insightsSvc, connectSvc, metrics, cfg.AllowedOrigins, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
