package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/fixflow-erp/fixflow/internal/app"
	"github.com/fixflow-erp/fixflow/internal/history"
	jobmetrics "github.com/fixflow-erp/fixflow/internal/jobs"
	"github.com/fixflow-erp/fixflow/internal/platform/cache"
	"github.com/fixflow-erp/fixflow/internal/platform/db"
	"github.com/fixflow-erp/fixflow/internal/report"
	"github.com/fixflow-erp/fixflow/internal/warehouse"
	"github.com/fixflow-erp/fixflow/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, capacity cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	ledger := history.NewLedger(history.NewRepository(pool))

	warehouseCache := warehouse.NewCache(redisClient, cfg.CapacityCacheTTL)
	warehouseService := warehouse.NewService(
		warehouse.NewRepository(pool), ledger, warehouseCache, nil, nil, nil, logger)

	reportService := report.NewService(report.NewRepository(pool), logger)

	metrics := jobmetrics.NewMetrics(nil)
	reportJob := jobs.NewDailyReportJob(reportService, logger)
	reportJob.Metrics = metrics
	alertJob := jobs.NewStockAlertScanJob(warehouseService, logger)
	alertJob.Metrics = metrics

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDailyReport, Handler: reportJob.Handle},
			{Type: jobs.TaskStockAlertScan, Handler: alertJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 6 * * *", Task: jobs.NewDailyReportTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/30 * * * *", Task: jobs.NewStockAlertScanTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}
