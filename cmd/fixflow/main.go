package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fixflow-erp/fixflow/internal/app"
	"github.com/fixflow-erp/fixflow/internal/audit"
	"github.com/fixflow-erp/fixflow/internal/catalog"
	"github.com/fixflow-erp/fixflow/internal/customer"
	"github.com/fixflow-erp/fixflow/internal/history"
	"github.com/fixflow-erp/fixflow/internal/issue"
	"github.com/fixflow-erp/fixflow/internal/location"
	"github.com/fixflow-erp/fixflow/internal/notify"
	"github.com/fixflow-erp/fixflow/internal/observability"
	"github.com/fixflow-erp/fixflow/internal/platform/cache"
	"github.com/fixflow-erp/fixflow/internal/platform/db"
	"github.com/fixflow-erp/fixflow/internal/product"
	"github.com/fixflow-erp/fixflow/internal/report"
	"github.com/fixflow-erp/fixflow/internal/serviceop"
	"github.com/fixflow-erp/fixflow/internal/shared"
	"github.com/fixflow-erp/fixflow/internal/shipment"
	"github.com/fixflow-erp/fixflow/internal/warehouse"
	"github.com/fixflow-erp/fixflow/jobs"
	pdfreport "github.com/fixflow-erp/fixflow/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	emitter := notify.NewQueueEmitter(cfg.NotifyQueueSize, jobClient, logger, metrics)
	go emitter.Run(ctx)

	ledger := history.NewLedger(history.NewRepository(pool))

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	catalogHandler := catalog.NewHandler(logger, catalogService)

	customerService := customer.NewService(customer.NewRepository(pool))
	customerHandler := customer.NewHandler(logger, customerService)

	locationService := location.NewService(location.NewRepository(pool))
	locationHandler := location.NewHandler(logger, locationService)

	productService := product.NewService(
		product.NewRepository(pool), ledger,
		catalogService, locationService, customerService,
		auditLogger, emitter, metrics, idempotencyStore, logger,
		product.ServiceConfig{AllowFreeformTransitions: cfg.AllowFreeformTransitions},
	)
	productHandler := product.NewHandler(logger, productService)

	warehouseCache := warehouse.NewCache(redisClient, cfg.CapacityCacheTTL)
	warehouseService := warehouse.NewService(
		warehouse.NewRepository(pool), ledger, warehouseCache,
		auditLogger, emitter, metrics, logger,
	)
	warehouseHandler := warehouse.NewHandler(logger, warehouseService)

	issueService := issue.NewService(issue.NewRepository(pool), productService, ledger, pool, emitter, logger)
	issueHandler := issue.NewHandler(logger, issueService)

	serviceOpService := serviceop.NewService(serviceop.NewRepository(pool), issueService, productService, ledger, pool, logger)
	serviceOpHandler := serviceop.NewHandler(logger, serviceOpService)

	shipmentService := shipment.NewService(
		shipment.NewRepository(pool), productService, catalogService,
		customerService, ledger, pool, emitter, logger,
	)
	shipmentHandler := shipment.NewHandler(logger, shipmentService)

	reportService := report.NewService(report.NewRepository(pool), logger)
	reportHandler := report.NewHandler(logger, reportService)

	auditService := audit.NewService(audit.NewRepository(pool), logger)
	auditHandler := audit.NewHandler(logger, auditService)

	pdfClient := pdfreport.NewClient(cfg.GotenbergURL)
	pdfHandler := pdfreport.NewHandler(pdfClient, reportService, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CatalogHandler:   catalogHandler,
		CustomerHandler:  customerHandler,
		LocationHandler:  locationHandler,
		ProductHandler:   productHandler,
		WarehouseHandler: warehouseHandler,
		IssueHandler:     issueHandler,
		ServiceOpHandler: serviceOpHandler,
		ShipmentHandler:  shipmentHandler,
		ReportHandler:    reportHandler,
		AuditHandler:     auditHandler,
		PDFHandler:       pdfHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
