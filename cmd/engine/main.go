package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meridianrisk/fraud-impact-engine/internal/infrastructure/cache"
	"github.com/meridianrisk/fraud-impact-engine/internal/infrastructure/config"
	"github.com/meridianrisk/fraud-impact-engine/internal/infrastructure/database"
	"github.com/meridianrisk/fraud-impact-engine/internal/infrastructure/repository"
	"github.com/meridianrisk/fraud-impact-engine/internal/infrastructure/telemetry"
	"github.com/meridianrisk/fraud-impact-engine/internal/metrics"
	"github.com/meridianrisk/fraud-impact-engine/internal/service/analyzer"
	"github.com/meridianrisk/fraud-impact-engine/internal/service/investigation"
)

func main() {
	var (
		configPath  = flag.String("config", "configs/config.yaml", "Path to configuration file")
		entityID    = flag.String("entity", "", "Investigate a single entity instead of the analyzer batch")
		force       = flag.Bool("force", false, "Re-investigate entities with completed investigations")
		metricsAddr = flag.String("metrics-addr", ":9090", "Prometheus metrics listen address (empty to disable)")
	)
	flag.Parse()

	if err := run(*configPath, *entityID, *force, *metricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "fraud-impact-engine: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, entityID string, force bool, metricsAddr string) error {
	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	params, err := cfg.Engine.Parameters()
	if err != nil {
		return fmt.Errorf("engine configuration: %w", err)
	}
	params.ForceReinvestigate = force

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := telemetry.SetupTracing(telemetry.TracingConfig{
		ServiceName:    "fraud-impact-engine",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Enabled:        true,
		SamplingRate:   1.0,
	})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	txnRepo := repository.NewTransactionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)

	var completionCache investigation.CompletionCache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewInvestigationCache(&cfg.Redis, logger)
		if err != nil {
			// The cache is a fast path, not a dependency
			logger.Warn("investigation cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer redisCache.Close()
			completionCache = redisCache
		}
	}

	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewRegistry(registry)
	if metricsAddr != "" {
		go serveMetrics(metricsAddr, registry, logger)
	}

	orchestrator, err := investigation.NewOrchestrator(
		txnRepo, resultRepo, completionCache,
		cfg.MerchantAdjustments,
		engineMetrics,
		tracing.Tracer("fraud-impact-engine"),
		logger,
		investigation.Options{
			Concurrency:      cfg.Orchestrator.Concurrency,
			FetchMaxAttempts: cfg.Orchestrator.FetchMaxAttempts,
			FetchBackoffBase: cfg.Orchestrator.FetchBackoffBase,
			StoreRateLimit:   rate.Limit(cfg.Orchestrator.StoreRateLimit),
			StoreRateBurst:   cfg.Orchestrator.StoreRateBurst,
		},
	)
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}

	if entityID != "" {
		result, err := orchestrator.RunInvestigation(ctx, entityID, params)
		if err != nil {
			return fmt.Errorf("investigating %s: %w", entityID, err)
		}
		logResult(logger, result)
		return nil
	}

	entities, err := analyzer.NewAnalyzer(txnRepo, nil, nil, logger).
		FlaggedEntities(ctx, params.TimeWindowDuration, params.LookbackOffset)
	if err != nil {
		return fmt.Errorf("analyzing entities: %w", err)
	}
	if len(entities) == 0 {
		logger.Info("no flagged entities in window")
		return nil
	}

	entityIDs := make([]string, len(entities))
	for i, e := range entities {
		entityIDs[i] = e.EntityID
	}

	batch := orchestrator.RunBatch(ctx, entityIDs, params)
	logBatch(logger, batch)

	if batch.Failed > 0 {
		return fmt.Errorf("%d of %d investigations failed", batch.Failed, len(entityIDs))
	}
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}

func logResult(logger *zap.Logger, result *investigation.Result) {
	if result.Skipped {
		logger.Info("entity already investigated, skipped")
		return
	}

	fields := []zap.Field{
		zap.String("entity_id", result.Investigation.EntityID),
		zap.String("status", result.Investigation.Status.String()),
		zap.Int("scores", len(result.Scores)),
	}
	if precision, ok := result.Matrix.Precision(); ok {
		fields = append(fields, zap.Float64("precision", precision))
	}
	if recall, ok := result.Matrix.Recall(); ok {
		fields = append(fields, zap.Float64("recall", recall))
	}
	fields = append(fields,
		zap.String("net_value", result.Impact.NetValue.String()),
		zap.String("confidence", string(result.Impact.Confidence)))

	logger.Info("investigation result", fields...)
}

func logBatch(logger *zap.Logger, batch *investigation.BatchResult) {
	fields := []zap.Field{
		zap.Int("completed", batch.Completed),
		zap.Int("skipped", batch.Skipped),
		zap.Int("failed", batch.Failed),
	}
	if precision, ok := batch.AggregateMatrix.Precision(); ok {
		fields = append(fields, zap.Float64("aggregate_precision", precision))
	}
	if recall, ok := batch.AggregateMatrix.Recall(); ok {
		fields = append(fields, zap.Float64("aggregate_recall", recall))
	}
	logger.Info("batch result", fields...)

	for _, group := range batch.MerchantImpacts {
		logger.Info("merchant impact",
			zap.String("merchant", group.GroupKey),
			zap.String("saved_fraud_gmv", group.SavedFraudGMV.String()),
			zap.String("lost_revenues", group.LostRevenues.String()),
			zap.String("net_value", group.NetValue.String()),
			zap.Int("reports", group.ReportCount))
	}
}
