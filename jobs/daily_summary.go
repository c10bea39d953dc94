package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/marvenixx/pos-console/internal/jobs"
)

// SummaryGenerator produces and stores the daily summary text.
type SummaryGenerator interface {
	GenerateDailySummary(ctx context.Context, now time.Time) (string, error)
}

// DailySummaryJob refreshes the stored WhatsApp summary.
type DailySummaryJob struct {
	Reports SummaryGenerator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDailySummaryJob wires dependencies for the summary handler.
func NewDailySummaryJob(reports SummaryGenerator, logger *slog.Logger, metrics *jobmetrics.Metrics) *DailySummaryJob {
	return &DailySummaryJob{Reports: reports, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle processes daily summary tasks.
func (j *DailySummaryJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("daily summary: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskDailySummary)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskDailySummary))

	now := time.Now()
	if j.clock != nil {
		now = j.clock()
	}
	text, err := j.Reports.GenerateDailySummary(ctx, now)
	if err != nil {
		logger.Error("generate daily summary", slog.Any("error", err))
		return err
	}
	logger.Info("daily summary stored", slog.Int("chars", len(text)))
	return nil
}
