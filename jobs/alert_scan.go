package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/fixflow-erp/fixflow/internal/jobs"
	"github.com/fixflow-erp/fixflow/internal/shared"
	"github.com/fixflow-erp/fixflow/internal/warehouse"
)

// StockAlertScanJob runs the warehouse alert scan on a schedule so empty
// locations and service backlogs surface without anyone opening the
// dashboard.
type StockAlertScanJob struct {
	Service *warehouse.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStockAlertScanJob initialises the alert scan handler.
func NewStockAlertScanJob(service *warehouse.Service, logger *slog.Logger) *StockAlertScanJob {
	return &StockAlertScanJob{Service: service, Logger: logger}
}

// Handle executes the alert scan.
func (j *StockAlertScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("stock alert scan: handler not configured")
	}
	start := time.Now()
	logger := j.logger()
	logger.Info("starting stock alert scan")
	tracker := j.Metrics.Track(TaskStockAlertScan)

	alerts, err := j.Service.StockAlerts(ctx, shared.SystemActor())
	if err != nil {
		logger.Error("stock alert scan failed", slog.Any("error", err))
		return tracker.End(err)
	}

	for _, a := range alerts {
		j.Metrics.ObserveAlert(string(a.Severity))
		if a.Severity == warehouse.SeverityInfo {
			continue
		}
		logger.Warn("stock alert",
			slog.String("type", string(a.Type)),
			slog.String("severity", string(a.Severity)),
			slog.String("location", a.LocationName),
			slog.Int("affected", a.AffectedCount),
		)
	}

	logger.Info("completed stock alert scan",
		slog.Int("alerts", len(alerts)),
		slog.Duration("duration", time.Since(start)),
	)
	return tracker.End(nil)
}

func (j *StockAlertScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockAlertScan))
	}
	return slog.Default().With(slog.String("job", TaskStockAlertScan))
}
