package settings

import (
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/auth"
	"github.com/marvenixx/pos-console/internal/document"
	"github.com/marvenixx/pos-console/internal/platform/httpx"
	"github.com/marvenixx/pos-console/internal/pos"
	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/internal/view"
)

// Handler serves the company settings screen.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      auth.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac auth.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers the admin-only settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireRole(shared.RoleAdmin))
	r.Get("/company", h.show)
	r.Post("/company", h.save)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.Current(r.Context())
	if err != nil {
		h.logger.Warn("load company settings failed", slog.Any("error", err))
		h.renderForm(w, r, apiclient.CompanySettings{Footer: DefaultFooter}, "Could not load settings: "+pos.Message(err), http.StatusBadGateway)
		return
	}
	if current.Footer == "" {
		current.Footer = DefaultFooter
	}
	h.renderForm(w, r, current, "", http.StatusOK)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxLogoBytes+64<<10)
	if err := r.ParseMultipartForm(MaxLogoBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		view.RedirectWithFlash(w, r, "/settings/company", shared.FlashError, "Logo must be smaller than 1 MB.")
		return
	}
	form := Form{
		CompanyName: r.FormValue("company_name"),
		Address:     r.FormValue("address"),
		Phone:       r.FormValue("phone"),
		Website:     r.FormValue("website"),
		Footer:      r.FormValue("footer"),
	}
	logo := Logo{Remove: r.FormValue("remove_logo") == "1"}
	if file, _, err := r.FormFile("logo"); err == nil {
		logo.Data, err = io.ReadAll(io.LimitReader(file, MaxLogoBytes+1))
		_ = file.Close()
		if err != nil {
			view.RedirectWithFlash(w, r, "/settings/company", shared.FlashError, "Could not read the uploaded logo.")
			return
		}
	}

	saved, err := h.service.Save(r.Context(), form, logo)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, httpx.ErrValidation) {
			status = http.StatusBadRequest
		} else {
			h.logger.Warn("save company settings failed", slog.Any("error", err))
		}
		h.renderForm(w, r, apiclient.CompanySettings{
			CompanyName: form.CompanyName,
			Address:     form.Address,
			Phone:       form.Phone,
			Website:     form.Website,
			Footer:      form.Footer,
		}, pos.Message(err), status)
		return
	}
	h.logger.Info("company settings saved", slog.String("company", saved.CompanyName), slog.Bool("logo", saved.LogoBase64 != ""))
	view.RedirectWithFlash(w, r, "/settings/company", shared.FlashSuccess, "Saved. Go to POS and print again.")
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, current apiclient.CompanySettings, formErr string, status int) {
	data := map[string]any{"Settings": current, "Error": formErr}
	if uri := document.LogoDataURI(current.LogoBase64); uri != "" {
		data["Logo"] = template.URL(uri)
	}
	viewData := view.PageData(r, h.csrf, "Company settings", data)
	if err := h.templates.RenderStatus(w, status, "pages/settings.html", viewData); err != nil {
		h.logger.Error("render settings failed", slog.Any("error", err))
	}
}
