package sales

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/document"
	"github.com/marvenixx/pos-console/internal/platform/httpx"
	"github.com/marvenixx/pos-console/internal/pos"
	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/internal/view"
)

const historyPerPage = 50

// Handler manages the sales history endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	currency  string
	now       func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, currency string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		currency:  currency,
		now:       time.Now,
	}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/history", h.listHistory)
	r.Get("/{id:[0-9]+}", h.showSale)
	r.Post("/{id:[0-9]+}/lines", h.addLine)
}

// ============================================================================
// HISTORY
// ============================================================================

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, to := DefaultRange(h.now())
	var formErr string
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			formErr = "From date must look like 2006-01-02."
		} else {
			from = parsed
		}
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			formErr = "To date must look like 2006-01-02."
		} else {
			to = parsed
		}
	}

	data := map[string]any{"From": from, "To": to}
	if formErr != "" {
		data["Error"] = formErr
		h.render(w, r, "pages/sales_history.html", "Sales history", data, http.StatusBadRequest)
		return
	}

	rows, err := h.service.History(r.Context(), from, to)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, httpx.ErrValidation) {
			status = http.StatusBadRequest
		} else {
			h.logger.Warn("load sales history failed", slog.Any("error", err))
		}
		data["Error"] = "Could not load sales history: " + pos.Message(err)
		if status == http.StatusBadRequest {
			data["Error"] = pos.Message(err)
		}
		h.render(w, r, "pages/sales_history.html", "Sales history", data, status)
		return
	}

	page, _ := strconv.Atoi(query.Get("page"))
	pagination := shared.NewPagination(page, historyPerPage, len(rows))
	start, end := pagination.Bounds()
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Total)
	}
	data["Rows"] = rows[start:end]
	data["Count"] = len(rows)
	data["Total"] = total
	data["Pagination"] = pagination
	h.render(w, r, "pages/sales_history.html", "Sales history", data, http.StatusOK)
}

// ============================================================================
// DETAIL AND ADD LINES
// ============================================================================

func (h *Handler) showSale(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	ctx := r.Context()
	sale, err := h.service.Sale(ctx, id)
	if err != nil {
		msg := pos.Message(err)
		if apiclient.IsNotFound(err) {
			msg = fmt.Sprintf("Sale #%d was not found.", id)
		} else {
			h.logger.Warn("load sale failed", slog.Int64("sale_id", id), slog.Any("error", err))
		}
		view.RedirectWithFlash(w, r, "/sales/history", shared.FlashError, msg)
		return
	}

	var loadErrors []string
	products, err := h.service.Products(ctx)
	if err != nil {
		loadErrors = append(loadErrors, "Products: "+pos.Message(err))
	}
	locations, err := h.service.Locations(ctx)
	if err != nil {
		loadErrors = append(loadErrors, "Locations: "+pos.Message(err))
	}
	deductFrom := sale.LocationID
	if deductFrom <= 0 {
		deductFrom = 1
	}

	h.render(w, r, "pages/sale_detail.html", fmt.Sprintf("Sale #%d", sale.ID), map[string]any{
		"Sale":          sale,
		"Customer":      customerName(sale.CustomerName),
		"Total":         sale.GrandTotal(),
		"Products":      products,
		"Locations":     locations,
		"DeductFrom":    deductFrom,
		"DocumentKinds": document.Kinds,
		"LoadErrors":    loadErrors,
	}, http.StatusOK)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	back := fmt.Sprintf("/sales/%d", id)
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	in := AddLineInput{SKU: r.PostFormValue("sku")}
	var err error
	if in.Qty, err = parseDecimal(r.PostFormValue("qty")); err != nil {
		view.RedirectWithFlash(w, r, back, shared.FlashError, "Enter a valid quantity.")
		return
	}
	if raw := strings.TrimSpace(r.PostFormValue("unit_price")); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			view.RedirectWithFlash(w, r, back, shared.FlashError, "Enter a valid unit price.")
			return
		}
		in.UnitPrice = decimal.NewNullDecimal(price)
	}
	in.LocationID, _ = strconv.ParseInt(strings.TrimSpace(r.PostFormValue("location_id")), 10, 64)

	newTotal, err := h.service.AddLine(r.Context(), id, in)
	if err != nil {
		if !errors.Is(err, httpx.ErrValidation) {
			h.logger.Warn("add sale lines failed", slog.Int64("sale_id", id), slog.Any("error", err))
		}
		view.RedirectWithFlash(w, r, back, shared.FlashError, pos.Message(err))
		return
	}
	h.logger.Info("sale lines added", slog.Int64("sale_id", id), slog.String("sku", in.SKU), slog.String("new_total", newTotal.String()))
	view.RedirectWithFlash(w, r, back, shared.FlashSuccess, "Added. New total: "+view.FormatMoney(h.currency, newTotal)+".")
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl, title string, data map[string]any, status int) {
	viewData := view.PageData(r, h.csrf, title, data)
	if err := h.templates.RenderStatus(w, status, tmpl, viewData); err != nil {
		h.logger.Error("render "+tmpl+" failed", slog.Any("error", err))
	}
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func customerName(name string) string {
	if strings.TrimSpace(name) == "" {
		return document.WalkInCustomer
	}
	return name
}

// SetClockForTest pins the date used for the default history range.
func (h *Handler) SetClockForTest(now func() time.Time) {
	h.now = now
}
