package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marvenixx/pos-console/internal/platform/httpx"
	"github.com/marvenixx/pos-console/internal/pos"
	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/internal/view"
)

// Handler serves the home page and the dashboard.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	now       func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, now: time.Now}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
}

// Home renders the landing page. Signed-in staff see the month-to-date
// KPIs and the WhatsApp summary.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	if shared.PrincipalFromContext(r.Context()) != nil {
		daily, err := h.service.DailySummary(r.Context(), h.now())
		if err != nil {
			h.logger.Warn("load home summary failed", slog.Any("error", err))
			data["Error"] = "Could not load KPIs: " + pos.Message(err)
		} else {
			data["Daily"] = daily
		}
	}
	h.render(w, r, "pages/home.html", "Home", data, http.StatusOK)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	from, to := MonthToDate(h.now())
	query := r.URL.Query()
	var formErr string
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		if parsed, err := time.Parse(time.DateOnly, raw); err == nil {
			from = parsed
		} else {
			formErr = "From date must look like 2006-01-02."
		}
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		if parsed, err := time.Parse(time.DateOnly, raw); err == nil {
			to = parsed
		} else {
			formErr = "To date must look like 2006-01-02."
		}
	}
	data := map[string]any{"From": from, "To": to}
	if formErr != "" {
		data["Error"] = formErr
		h.render(w, r, "pages/dashboard.html", "Dashboard", data, http.StatusBadRequest)
		return
	}

	dash, err := h.service.Dashboard(r.Context(), from, to)
	if err != nil {
		status := http.StatusBadGateway
		msg := "Could not load sales summary: " + pos.Message(err)
		if errors.Is(err, httpx.ErrValidation) {
			status = http.StatusBadRequest
			msg = pos.Message(err)
		} else {
			h.logger.Warn("load dashboard failed", slog.Any("error", err))
		}
		data["Error"] = msg
		h.render(w, r, "pages/dashboard.html", "Dashboard", data, status)
		return
	}
	data["Dashboard"] = dash
	h.render(w, r, "pages/dashboard.html", "Dashboard", data, http.StatusOK)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl, title string, data map[string]any, status int) {
	viewData := view.PageData(r, h.csrf, title, data)
	if err := h.templates.RenderStatus(w, status, tmpl, viewData); err != nil {
		h.logger.Error("render "+tmpl+" failed", slog.Any("error", err))
	}
}

// SetClockForTest pins the date used for default ranges.
func (h *Handler) SetClockForTest(now func() time.Time) {
	h.now = now
}
