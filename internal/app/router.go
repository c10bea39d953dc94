package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marvenixx/pos-console/internal/auth"
	"github.com/marvenixx/pos-console/internal/inventory"
	"github.com/marvenixx/pos-console/internal/observability"
	"github.com/marvenixx/pos-console/internal/platform/httpx"
	"github.com/marvenixx/pos-console/internal/pos"
	"github.com/marvenixx/pos-console/internal/reports"
	"github.com/marvenixx/pos-console/internal/sales"
	"github.com/marvenixx/pos-console/internal/settings"
	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/jobs"
	"github.com/marvenixx/pos-console/report"
	"github.com/marvenixx/pos-console/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthMiddleware auth.Middleware
	Metrics        *observability.Metrics

	AuthHandler      *auth.Handler
	POSHandler       *pos.Handler
	SalesHandler     *sales.Handler
	InventoryHandler *inventory.Handler
	SettingsHandler  *settings.Handler
	ReportsHandler   *reports.Handler
	// RendererHandler and JobHandler are optional.
	RendererHandler *report.Handler
	JobHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with the console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.AuthMiddleware.LoadPrincipal)

	r.Route("/healthz", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		if params.RendererHandler != nil {
			params.RendererHandler.MountRoutes(r)
		}
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Get("/", params.ReportsHandler.Home)
	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireLogin)

		r.Route("/pos", params.POSHandler.MountRoutes)
		r.Route("/documents", params.POSHandler.MountDocumentRoutes)
		r.Route("/sales", params.SalesHandler.MountRoutes)
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/settings", params.SettingsHandler.MountRoutes)
		r.Route("/reports", params.ReportsHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.AuthMiddleware.RequireRole(shared.RoleAdmin))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers keep embedded assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
