package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/document"
	jobmetrics "github.com/marvenixx/pos-console/internal/jobs"
	"github.com/marvenixx/pos-console/internal/pos"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Exporter turns a document into PDF bytes.
type Exporter interface {
	Export(ctx context.Context, doc document.Document) ([]byte, error)
}

// ArchiveJob stores a PDF receipt for every completed sale.
type ArchiveJob struct {
	Sales    pos.SaleFetcher
	Branding pos.BrandingSource
	PDF      Exporter
	Dir      string
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewArchiveJob wires dependencies for the archive handler.
func NewArchiveJob(sales pos.SaleFetcher, branding pos.BrandingSource, pdf Exporter, dir string, logger *slog.Logger, metrics *jobmetrics.Metrics) *ArchiveJob {
	return &ArchiveJob{
		Sales:    sales,
		Branding: branding,
		PDF:      pdf,
		Dir:      dir,
		Logger:   logger,
		Metrics:  metrics,
		clock:    time.Now,
	}
}

// Handle processes archive tasks. A sale the backend no longer knows is
// not retried.
func (j *ArchiveJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Sales == nil || j.PDF == nil || j.Dir == "" {
		return errors.New("archive: handler not configured")
	}
	var payload ArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.SaleID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskArchiveDocument)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger := j.logger().With(slog.Int64("sale_id", payload.SaleID))

	sale, err := j.Sales.GetSale(ctx, payload.SaleID)
	if err != nil {
		if apiclient.IsNotFound(err) {
			logger.Warn("sale vanished before archiving")
			return fmt.Errorf("archive sale %d: %w", payload.SaleID, asynq.SkipRetry)
		}
		return fmt.Errorf("archive sale %d: %w", payload.SaleID, err)
	}
	var branding apiclient.CompanySettings
	if j.Branding != nil {
		if b, err := j.Branding.Branding(ctx); err == nil {
			branding = b
		} else {
			logger.Warn("archive without branding", slog.Any("error", err))
		}
	}
	now := j.now()
	doc := document.Build(sale, branding, document.KindReceipt, document.Options{
		ServedBy:      payload.ServedBy,
		PaymentMethod: payload.PaymentMethod,
		PrintedAt:     now,
	})
	pdf, err := j.PDF.Export(ctx, doc)
	if err != nil {
		return fmt.Errorf("archive sale %d: %w", payload.SaleID, err)
	}
	path, err := j.write(now, doc.FileName("pdf"), pdf)
	if err != nil {
		return err
	}
	j.metrics().AddArchived(string(doc.Kind), len(pdf))
	logger.Info("document archived", slog.String("path", path), slog.Int("bytes", len(pdf)))
	return nil
}

// write stores data under Dir/YYYY/MM, replacing an earlier copy atomically.
func (j *ArchiveJob) write(now time.Time, name string, data []byte) (string, error) {
	dir := filepath.Join(j.Dir, now.Format("2006"), now.Format("01"))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("archive dir: %w", err)
	}
	target := filepath.Join(dir, name)
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return "", fmt.Errorf("archive write: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("archive rename: %w", err)
	}
	return target, nil
}

func (j *ArchiveJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskArchiveDocument))
	}
	return slog.Default().With(slog.String("job", TaskArchiveDocument))
}

func (j *ArchiveJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ArchiveJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
