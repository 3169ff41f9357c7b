package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bimakw/ledger-analyzer/internal/application/services"
	"github.com/bimakw/ledger-analyzer/internal/config"
	"github.com/bimakw/ledger-analyzer/internal/infrastructure/cache"
	"github.com/bimakw/ledger-analyzer/internal/infrastructure/database"
	"github.com/bimakw/ledger-analyzer/internal/infrastructure/ledger"
	"github.com/bimakw/ledger-analyzer/internal/infrastructure/logging"
	"github.com/bimakw/ledger-analyzer/internal/presentation/handlers"
	"github.com/bimakw/ledger-analyzer/internal/presentation/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting ledger-analyzer API",
		zap.Int("port", cfg.API.Port),
		zap.String("ledger_url", cfg.Ledger.BaseURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	reportRepo := database.NewReportRepo(db.DB())
	if err := reportRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to prepare reports table", zap.Error(err))
	}

	// Shared page cache in Redis (optional)
	var pageCache ledger.PageCache
	var cacheChecker handlers.HealthChecker
	redisCache, err := cache.NewRedisCache(cfg.Redis, logger)
	if err != nil {
		logger.Warn("Failed to connect to Redis, using in-memory page cache", zap.Error(err))
	} else {
		defer redisCache.Close()
		pageCache = redisCache
		cacheChecker = redisCache
	}

	// Ledger client and pipeline
	client := ledger.NewClient(cfg.Ledger, pageCache, logger)
	defer client.Close()

	fetcher := ledger.NewFetcher(client, cfg.Analyzer, logger)
	aggregator := services.NewAggregator(client, fetcher, cfg.Analyzer, logger)
	batchService := services.NewBatchService(aggregator, client, cfg.Analyzer, logger)
	analysisService := services.NewAnalysisService(
		aggregator,
		batchService,
		services.NewReportAssembler(),
		reportRepo,
		cfg.Analyzer,
		logger,
	)

	// Create handlers
	analysisHandler := handlers.NewAnalysisHandler(analysisService, cfg.API.MaxAddresses, logger)
	healthHandler := handlers.NewHealthHandler(db, cacheChecker, client)

	// Setup router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)

	// Health endpoints (no rate limiting)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity())
		r.Use(middleware.RateLimiter(cfg.API.RateLimitRPS))
		analysisHandler.RegisterRoutes(r)
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// Run server in goroutine
	go func() {
		logger.Info("API server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	cancel()

	logger.Info("Server stopped")
}
