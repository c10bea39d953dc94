package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/app"
	"github.com/marvenixx/pos-console/internal/catalog"
	"github.com/marvenixx/pos-console/internal/document"
	jobmetrics "github.com/marvenixx/pos-console/internal/jobs"
	"github.com/marvenixx/pos-console/internal/platform/cache"
	"github.com/marvenixx/pos-console/internal/reports"
	"github.com/marvenixx/pos-console/jobs"
	"github.com/marvenixx/pos-console/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
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

	metrics := jobmetrics.NewMetrics(nil)
	api := apiclient.New(apiclient.Options{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout, Logger: logger})
	catalogCache := catalog.NewCache(redisClient)
	reference := catalog.NewService(api, catalogCache, cfg.CacheTTLs())

	documents, err := document.NewRenderer(cfg.CurrencySymbol)
	if err != nil {
		logger.Error("parse document templates", slog.Any("error", err))
		os.Exit(1)
	}
	pdfExporter := document.NewPDFExporter(documents, report.NewClient(cfg.GotenbergURL))
	archiveJob := jobs.NewArchiveJob(api, reference, pdfExporter, cfg.DocumentArchiveDir, logger, metrics)

	reportsService := reports.NewService(api, reference, nil, reports.NewSummaryStore(redisClient), cfg.CurrencySymbol, logger)
	summaryJob := jobs.NewDailySummaryJob(reportsService, logger, metrics)

	summaryTask, err := jobs.NewDailySummaryTask()
	if err != nil {
		logger.Error("build summary task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: jobs.RedisOpt(redisClient.Options()),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskArchiveDocument, Handler: archiveJob.Handle},
			{Type: jobs.TaskDailySummary, Handler: summaryJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SummaryCron, Task: summaryTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("archive_dir", cfg.DocumentArchiveDir), slog.String("summary_cron", cfg.SummaryCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
