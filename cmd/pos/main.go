package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/app"
	"github.com/marvenixx/pos-console/internal/auth"
	"github.com/marvenixx/pos-console/internal/catalog"
	"github.com/marvenixx/pos-console/internal/document"
	"github.com/marvenixx/pos-console/internal/inventory"
	"github.com/marvenixx/pos-console/internal/observability"
	"github.com/marvenixx/pos-console/internal/platform/cache"
	"github.com/marvenixx/pos-console/internal/pos"
	"github.com/marvenixx/pos-console/internal/reports"
	"github.com/marvenixx/pos-console/internal/sales"
	"github.com/marvenixx/pos-console/internal/settings"
	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/internal/view"
	"github.com/marvenixx/pos-console/jobs"
	"github.com/marvenixx/pos-console/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	staff, err := auth.ParseStaffUsers(cfg.StaffUsers)
	if err != nil {
		logger.Error("parse staff users", slog.Any("error", err))
		os.Exit(1)
	}
	if len(staff) == 0 {
		logger.Warn("no staff users configured, nobody can sign in")
	}

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

	metrics := observability.NewMetrics()

	api := apiclient.New(apiclient.Options{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.APITimeout,
		Logger:   logger,
		Observer: metrics.ObserveBackendCall,
	})
	catalogCache := catalog.NewCache(redisClient)
	reference := catalog.NewService(api, catalogCache, cfg.CacheTTLs())

	sessionManager := shared.NewSessionManager(redisClient, "pos_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine(cfg.CurrencySymbol)
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}
	documents, err := document.NewRenderer(cfg.CurrencySymbol)
	if err != nil {
		logger.Error("parse document templates", slog.Any("error", err))
		os.Exit(1)
	}
	pdfClient := report.NewClient(cfg.GotenbergURL)
	pdfExporter := document.NewPDFExporter(documents, pdfClient)

	carts := pos.NewStore(redisClient, cfg.SessionTTL)
	authService := auth.NewService(staff)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, carts)

	var archive pos.ArchiveEnqueuer
	var jobHandler *jobs.Handler
	if cfg.DocumentArchiveEnabled {
		redisOpts := jobs.RedisOpt(redisClient.Options())
		jobClient := jobs.NewClient(redisOpts)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		archive = jobClient

		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	posHandler := pos.NewHandler(pos.HandlerConfig{
		Logger:            logger,
		Templates:         templates,
		CSRF:              csrfManager,
		Products:          reference,
		Sales:             api,
		Branding:          reference,
		Store:             carts,
		Guard:             pos.NewRedisGuard(redisClient, cfg.CheckoutLockTTL()),
		Documents:         documents,
		PDF:               pdfExporter,
		Archive:           archive,
		Metrics:           metrics,
		Currency:          cfg.CurrencySymbol,
		DefaultLocationID: cfg.DefaultLocationID,
	})

	salesHandler := sales.NewHandler(logger, sales.NewService(api, reference, logger), templates, csrfManager, cfg.CurrencySymbol)
	inventoryHandler := inventory.NewHandler(logger, inventory.NewService(api, reference, logger), templates, csrfManager, authMiddleware)
	settingsHandler := settings.NewHandler(logger, settings.NewService(api, reference, logger), templates, csrfManager, authMiddleware)

	reportsService := reports.NewService(api, reference, catalogCache, reports.NewSummaryStore(redisClient), cfg.CurrencySymbol, logger)
	reportsHandler := reports.NewHandler(logger, reportsService, templates, csrfManager)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthMiddleware:   authMiddleware,
		Metrics:          metrics,
		AuthHandler:      authHandler,
		POSHandler:       posHandler,
		SalesHandler:     salesHandler,
		InventoryHandler: inventoryHandler,
		SettingsHandler:  settingsHandler,
		ReportsHandler:   reportsHandler,
		RendererHandler:  report.NewHandler(pdfClient, logger),
		JobHandler:       jobHandler,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("api", cfg.APIBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
