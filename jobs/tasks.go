package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskArchiveDocument writes the PDF receipt of a completed sale to disk.
	TaskArchiveDocument = "documents:archive_pdf"
	// TaskDailySummary regenerates the stored WhatsApp sales summary.
	TaskDailySummary = "reports:daily_summary"
)

// ArchivePayload identifies the sale to archive and how it was served.
type ArchivePayload struct {
	SaleID        int64  `json:"sale_id"`
	ServedBy      string `json:"served_by"`
	PaymentMethod string `json:"payment_method"`
}

// NewArchiveTask constructs an archive task.
func NewArchiveTask(payload ArchivePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskArchiveDocument, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
	), nil
}

// DailySummaryPayload carries scheduling metadata.
type DailySummaryPayload struct {
	Scope string `json:"scope"`
}

// NewDailySummaryTask constructs the cron task for the daily summary.
func NewDailySummaryTask() (*asynq.Task, error) {
	body, err := json.Marshal(DailySummaryPayload{Scope: "month_to_date"})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDailySummary, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
