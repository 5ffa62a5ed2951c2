package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/fixflow-erp/fixflow/internal/jobs"
	"github.com/fixflow-erp/fixflow/internal/report"
)

// DailyReportJob builds the overview aggregate once a day so the morning
// dashboard load hits a warm path and the numbers land in the worker log.
type DailyReportJob struct {
	Service *report.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDailyReportJob initialises the daily report handler.
func NewDailyReportJob(service *report.Service, logger *slog.Logger) *DailyReportJob {
	return &DailyReportJob{
		Service: service,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the daily report build.
func (j *DailyReportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("daily report: handler not configured")
	}
	start := j.now()
	logger := j.logger()
	logger.Info("building daily report")
	tracker := j.Metrics.Track(TaskDailyReport)

	overview, err := j.Service.Overview(ctx)
	if err != nil {
		logger.Error("daily report failed", slog.Any("error", err))
		return tracker.End(err)
	}

	logger.Info("completed daily report",
		slog.Int("total_units", overview.TotalUnits),
		slog.Int("in_warranty", overview.InWarranty),
		slog.Int("warranty_expired", overview.WarrantyExpired),
		slog.Int("open_issues", overview.OpenIssues),
		slog.Int("locations", len(overview.Locations)),
		slog.Duration("duration", time.Since(start)),
	)
	return tracker.End(nil)
}

func (j *DailyReportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDailyReport))
	}
	return slog.Default().With(slog.String("job", TaskDailyReport))
}

func (j *DailyReportJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
