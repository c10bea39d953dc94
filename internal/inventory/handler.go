package inventory

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
	"github.com/marvenixx/pos-console/internal/auth"
	"github.com/marvenixx/pos-console/internal/platform/httpx"
	"github.com/marvenixx/pos-console/internal/pos"
	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/internal/view"
)

const (
	defaultRows = 5
	maxRows     = 30
)

// Handler serves the inventory screens.
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

// MountRoutes registers inventory routes. Editing and deactivating products
// is restricted to admins.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleAdmin))
		r.Get("/products/{id:[0-9]+}/edit", h.editProduct)
		r.Post("/products/{id:[0-9]+}", h.updateProduct)
		r.Post("/products/{id:[0-9]+}/deactivate", h.deactivateProduct)
	})
	r.Get("/receive", h.showReceive)
	r.Post("/receive", h.postReceive)
	r.Get("/transfer", h.showTransfer)
	r.Post("/transfer", h.postTransfer)
	r.Get("/on-hand", h.showOnHand)
	r.Get("/on-hand.csv", h.exportOnHand)
}

// ============================================================================
// PRODUCTS
// ============================================================================

type productFormValues struct {
	SKU          string
	Name         string
	Barcode      string
	Unit         string
	TaxRate      string
	SellingPrice string
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	h.renderProducts(w, r, productFormValues{Unit: pos.Units[0], TaxRate: "0", SellingPrice: "0.00"}, "", http.StatusOK)
}

func (h *Handler) renderProducts(w http.ResponseWriter, r *http.Request, form productFormValues, formErr string, status int) {
	data := map[string]any{"Form": form, "Units": pos.Units, "Error": formErr}
	products, err := h.service.Products(r.Context())
	if err != nil {
		h.logger.Warn("load products failed", slog.Any("error", err))
		data["LoadError"] = "Could not load products: " + pos.Message(err)
	}
	data["Products"] = products
	h.render(w, r, "pages/products.html", "Products", data, status)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	values := productValuesFromRequest(r)
	form, err := values.parse()
	if err == nil {
		var created apiclient.Product
		created, err = h.service.CreateProduct(r.Context(), form)
		if err == nil {
			h.logger.Info("product created", slog.Int64("product_id", created.ID), slog.String("sku", created.SKU))
			view.RedirectWithFlash(w, r, "/inventory/products", shared.FlashSuccess, "Product created.")
			return
		}
	}
	h.logFailure("create product", err)
	h.renderProducts(w, r, values, pos.Message(err), statusFor(err))
}

func (h *Handler) editProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	product, err := h.service.Product(r.Context(), id)
	if err != nil {
		msg := pos.Message(err)
		if errors.Is(err, httpx.ErrNotFound) {
			msg = fmt.Sprintf("Product #%d was not found.", id)
		}
		view.RedirectWithFlash(w, r, "/inventory/products", shared.FlashError, msg)
		return
	}
	values := productFormValues{
		SKU:          product.SKU,
		Name:         product.Name,
		Barcode:      product.Barcode,
		Unit:         product.Unit,
		TaxRate:      product.TaxRate.String(),
		SellingPrice: product.SellingPrice.StringFixed(2),
	}
	h.renderProductForm(w, r, product, values, "", http.StatusOK)
}

func (h *Handler) renderProductForm(w http.ResponseWriter, r *http.Request, product apiclient.Product, form productFormValues, formErr string, status int) {
	h.render(w, r, "pages/product_form.html", "Edit product", map[string]any{
		"Product": product,
		"Form":    form,
		"Units":   unitOptions(form.Unit),
		"Error":   formErr,
	}, status)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	values := productValuesFromRequest(r)
	form, err := values.parse()
	if err == nil {
		if _, err = h.service.UpdateProduct(r.Context(), id, form); err == nil {
			h.logger.Info("product updated", slog.Int64("product_id", id))
			view.RedirectWithFlash(w, r, "/inventory/products", shared.FlashSuccess, "Product updated.")
			return
		}
	}
	h.logFailure("update product", err)
	h.renderProductForm(w, r, apiclient.Product{ID: id, SKU: values.SKU}, values, pos.Message(err), statusFor(err))
}

func (h *Handler) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.DeactivateProduct(r.Context(), id); err != nil {
		h.logFailure("deactivate product", err)
		view.RedirectWithFlash(w, r, "/inventory/products", shared.FlashError, pos.Message(err))
		return
	}
	h.logger.Info("product deactivated", slog.Int64("product_id", id))
	view.RedirectWithFlash(w, r, "/inventory/products", shared.FlashSuccess,
		"Product deactivated. It will no longer appear in POS / Receive Stock.")
}

func productValuesFromRequest(r *http.Request) productFormValues {
	return productFormValues{
		SKU:          strings.TrimSpace(r.PostFormValue("sku")),
		Name:         strings.TrimSpace(r.PostFormValue("name")),
		Barcode:      strings.TrimSpace(r.PostFormValue("barcode")),
		Unit:         strings.TrimSpace(r.PostFormValue("unit")),
		TaxRate:      strings.TrimSpace(r.PostFormValue("tax_rate")),
		SellingPrice: strings.TrimSpace(r.PostFormValue("selling_price")),
	}
}

func (v productFormValues) parse() (ProductForm, error) {
	form := ProductForm{SKU: v.SKU, Name: v.Name, Barcode: v.Barcode, Unit: v.Unit}
	var err error
	if form.TaxRate, err = parseDecimal(v.TaxRate); err != nil {
		return ProductForm{}, httpx.Invalid("Enter a valid tax rate.")
	}
	if form.SellingPrice, err = parseDecimal(v.SellingPrice); err != nil {
		return ProductForm{}, httpx.Invalid("Enter a valid selling price.")
	}
	return form, nil
}

// unitOptions keeps a legacy unit selectable when editing.
func unitOptions(current string) []string {
	if current == "" || knownUnit(current) {
		return pos.Units
	}
	return append(append([]string(nil), pos.Units...), current)
}

// ============================================================================
// RECEIVE STOCK
// ============================================================================

func (h *Handler) showReceive(w http.ResponseWriter, r *http.Request) {
	h.renderStockForm(w, r, "pages/receive.html", "Receive stock")
}

func (h *Handler) postReceive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	skus := r.PostForm["sku"]
	qtys := r.PostForm["qty"]
	costs := r.PostForm["unit_cost"]
	lots := r.PostForm["lot_code"]
	expiries := r.PostForm["expiry"]
	locations := r.PostForm["location_id"]

	lines := make([]ReceiptLine, 0, len(skus))
	for i := range skus {
		line := ReceiptLine{SKU: strings.TrimSpace(skus[i]), LotCode: at(lots, i)}
		if line.SKU == "" {
			continue
		}
		var err error
		if line.Qty, err = parseDecimal(at(qtys, i)); err != nil {
			h.backTo(w, r, "/inventory/receive", httpx.Invalid("Row %d: enter a valid quantity.", i+1))
			return
		}
		if line.UnitCost, err = parseDecimal(at(costs, i)); err != nil {
			h.backTo(w, r, "/inventory/receive", httpx.Invalid("Row %d: enter a valid unit cost.", i+1))
			return
		}
		if raw := at(expiries, i); raw != "" {
			if line.Expiry, err = time.Parse(time.DateOnly, raw); err != nil {
				h.backTo(w, r, "/inventory/receive", httpx.Invalid("Row %d: expiry must look like 2006-01-02.", i+1))
				return
			}
		}
		line.LocationID, _ = strconv.ParseInt(at(locations, i), 10, 64)
		lines = append(lines, line)
	}

	ref, err := h.service.Receive(r.Context(), r.PostFormValue("supplier"), lines)
	if err != nil {
		h.backTo(w, r, "/inventory/receive", err)
		return
	}
	h.logger.Info("stock received", slog.String("reference", ref), slog.Int("rows", len(lines)))
	view.RedirectWithFlash(w, r, "/inventory/receive", shared.FlashSuccess, withReference("GRN posted successfully", ref))
}

// ============================================================================
// TRANSFER
// ============================================================================

func (h *Handler) showTransfer(w http.ResponseWriter, r *http.Request) {
	h.renderStockForm(w, r, "pages/transfer.html", "Stock transfer")
}

func (h *Handler) postTransfer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	t := Transfer{}
	t.FromLocationID, _ = strconv.ParseInt(r.PostFormValue("from_location_id"), 10, 64)
	t.ToLocationID, _ = strconv.ParseInt(r.PostFormValue("to_location_id"), 10, 64)
	skus := r.PostForm["sku"]
	qtys := r.PostForm["qty"]
	for i := range skus {
		sku := strings.TrimSpace(skus[i])
		if sku == "" {
			continue
		}
		qty, err := parseDecimal(at(qtys, i))
		if err != nil {
			h.backTo(w, r, "/inventory/transfer", httpx.Invalid("Row %d: enter a valid quantity.", i+1))
			return
		}
		t.Lines = append(t.Lines, TransferLine{SKU: sku, Qty: qty})
	}

	ref, err := h.service.Transfer(r.Context(), t)
	if err != nil {
		h.backTo(w, r, "/inventory/transfer", err)
		return
	}
	h.logger.Info("stock transferred",
		slog.Int64("from", t.FromLocationID), slog.Int64("to", t.ToLocationID), slog.String("reference", ref))
	view.RedirectWithFlash(w, r, "/inventory/transfer", shared.FlashSuccess, withReference("Stock transfer posted successfully", ref))
}

// ============================================================================
// ON HAND
// ============================================================================

func (h *Handler) showOnHand(w http.ResponseWriter, r *http.Request) {
	table, err := h.service.OnHand(r.Context())
	data := map[string]any{"Table": table}
	status := http.StatusOK
	if err != nil {
		h.logger.Warn("load inventory report failed", slog.Any("error", err))
		data["Error"] = "Could not load inventory: " + pos.Message(err)
		status = http.StatusBadGateway
	}
	h.render(w, r, "pages/on_hand.html", "Stock on hand", data, status)
}

func (h *Handler) exportOnHand(w http.ResponseWriter, r *http.Request) {
	table, err := h.service.OnHand(r.Context())
	if err != nil {
		h.logger.Warn("export inventory report failed", slog.Any("error", err))
		view.RedirectWithFlash(w, r, "/inventory/on-hand", shared.FlashError, "Could not load inventory: "+pos.Message(err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+OnHandFilename+`"`)
	if err := WriteOnHandCSV(w, table); err != nil {
		h.logger.Error("write inventory csv failed", slog.Any("error", err))
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) renderStockForm(w http.ResponseWriter, r *http.Request, tmpl, title string) {
	rows, _ := strconv.Atoi(r.URL.Query().Get("rows"))
	if rows <= 0 {
		rows = defaultRows
	}
	if rows > maxRows {
		rows = maxRows
	}
	data := map[string]any{"Rows": make([]struct{}, rows), "RowCount": rows, "Today": time.Now().Format(time.DateOnly)}
	products, locations, err := h.service.FormData(r.Context())
	status := http.StatusOK
	if err != nil {
		h.logger.Warn("load stock form data failed", slog.Any("error", err))
		data["Error"] = "Could not load products and locations: " + pos.Message(err)
		status = http.StatusBadGateway
	}
	data["Products"] = products
	data["Locations"] = locations
	h.render(w, r, tmpl, title, data, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl, title string, data map[string]any, status int) {
	viewData := view.PageData(r, h.csrf, title, data)
	if err := h.templates.RenderStatus(w, status, tmpl, viewData); err != nil {
		h.logger.Error("render "+tmpl+" failed", slog.Any("error", err))
	}
}

func (h *Handler) backTo(w http.ResponseWriter, r *http.Request, target string, err error) {
	h.logFailure(strings.TrimPrefix(target, "/inventory/"), err)
	view.RedirectWithFlash(w, r, target, shared.FlashError, pos.Message(err))
}

func (h *Handler) logFailure(action string, err error) {
	if err == nil || errors.Is(err, httpx.ErrValidation) {
		return
	}
	h.logger.Warn(action+" failed", slog.Any("error", err))
}

func statusFor(err error) int {
	if errors.Is(err, httpx.ErrValidation) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func withReference(msg, ref string) string {
	if ref == "" {
		return msg + "."
	}
	return fmt.Sprintf("%s (#%s).", msg, ref)
}

func at(values []string, i int) string {
	if i < len(values) {
		return strings.TrimSpace(values[i])
	}
	return ""
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
