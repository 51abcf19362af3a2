package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/po-console/internal/app"
	"github.com/odyssey-erp/po-console/internal/backend"
	jobmetrics "github.com/odyssey-erp/po-console/internal/jobs"
	"github.com/odyssey-erp/po-console/internal/platform/cache"
	"github.com/odyssey-erp/po-console/internal/platform/db"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
	"github.com/odyssey-erp/po-console/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := reference.SetupMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Warn("reference metrics", slog.Any("error", err))
	}
	upstream := backend.NewClient(cfg.APIBaseURL, cfg.APITimeout)
	referenceService := reference.NewService(upstream, reference.NewCache(redisClient, cfg.ReferenceCacheTTL), logger)
	jobMetrics := jobmetrics.NewMetrics(nil)
	warmupJob := jobs.NewReferenceWarmupJob(referenceService, cfg.WarmupTenants, cfg.ServiceToken, logger, jobMetrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), jobs.DefaultKeyRetention, logger, jobMetrics)

	warmupTask, err := jobs.NewReferenceWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReferenceWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: jobs.CleanupCron, Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("tenants", len(cfg.WarmupTenants)))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
