package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/fixflow-erp/fixflow/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueNotify carries customer-facing notification dispatches.
	QueueNotify = "notify"
	// TaskNotifyDispatch delivers one lifecycle/inventory event to the
	// customer-facing channels.
	TaskNotifyDispatch = "notify:dispatch"
	// TaskDailyReport builds the daily overview aggregate.
	TaskDailyReport = "report:daily"
	// TaskStockAlertScan runs the warehouse alert scan.
	TaskStockAlertScan = "warehouse:alert_scan"
)

// NewNotifyDispatchTask constructs a notification dispatch task.
func NewNotifyDispatchTask(event notify.Event) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyDispatch, data), nil
}

// HandleNotifyDispatchTask processes TaskNotifyDispatch tasks. Actual email
// and SMS providers sit behind this boundary; the worker only fans out.
func HandleNotifyDispatchTask(ctx context.Context, t *asynq.Task) error {
	var event notify.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return asynq.SkipRetry
	}
	fmt.Printf("[jobs] dispatch %s event=%s unit=%d\n", event.Type, event.ID, event.UnitID)
	return nil
}

// NewDailyReportTask constructs the cron task shell for the daily report.
func NewDailyReportTask() *asynq.Task {
	return asynq.NewTask(TaskDailyReport, nil)
}

// NewStockAlertScanTask constructs the cron task shell for the alert scan.
func NewStockAlertScanTask() *asynq.Task {
	return asynq.NewTask(TaskStockAlertScan, nil)
}
