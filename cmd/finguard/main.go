package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/san2804/finguard-go/internal/config"
	"github.com/san2804/finguard-go/internal/handler"
	"github.com/san2804/finguard-go/internal/infra/cache"
	"github.com/san2804/finguard-go/internal/infra/memory"
	"github.com/san2804/finguard-go/internal/infra/observability"
	"github.com/san2804/finguard-go/internal/infra/resilience"
	"github.com/san2804/finguard-go/internal/infra/supabase"
	"github.com/san2804/finguard-go/internal/port"
	"github.com/san2804/finguard-go/internal/service"

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
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.String("canonical_timezone", cfg.CanonicalTimezone),
		zap.Duration("submit_timeout", cfg.SubmitTimeout),
		zap.Duration("upload_timeout", cfg.UploadTimeout),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "finguard")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Canonical timezone ---
	loc := cfg.Timezone(logger)

	// --- Cache ---
	summaryCache := cache.New[any](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("transaction-store")
	bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Stores ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var repo port.TransactionRepository
	var blobs port.BlobStore
	backend := "memory"

	if cfg.UseSupabase && cfg.SupabaseURL != "" {
		logger.Info("using Supabase as data backend",
			zap.String("supabase_url", cfg.SupabaseURL),
			zap.String("bucket", cfg.SupabaseBucket),
		)
		supabaseClient := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cfg.SupabaseBucket,
			cfg.PollInterval,
			cb,
			bulkhead,
			resilienceCfg,
			logger,
		)
		repo = supabaseClient
		blobs = supabaseClient
		backend = "supabase"
	} else {
		logger.Warn("Supabase not configured, using in-memory backend; data will not survive restarts")
		repo = memory.NewStore(logger)
		blobs = memory.NewBlobStore()
	}

	// --- Services ---
	identity := handler.ContextIdentity{}
	writer := service.NewTransactionWriter(repo, blobs, identity, cfg.SubmitTimeout, cfg.UploadTimeout, metrics, logger)
	summaries := service.NewSummaryService(repo, summaryCache, loc, metrics, logger)
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.DevAuth, logger)

	newLive := func() *service.LiveController {
		return service.NewLiveController(repo, loc, metrics, logger)
	}

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Writer:    writer,
		Summaries: summaries,
		Auth:      authSvc,
		NewLive:   newLive,
		Cache:     summaryCache,
		Timezone:  loc,
		Backend:   backend,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// No write timeout: /v1/summary/stream holds its connection open.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port), zap.String("backend", backend))
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
