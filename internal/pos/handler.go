package pos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/document"
	"github.com/marvenixx/pos-console/internal/observability"
	"github.com/marvenixx/pos-console/internal/platform/httpx"
	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/internal/view"
)

const maxProductResults = 60

// ProductSource is the cached catalog the POS page reads.
type ProductSource interface {
	Catalog
	Search(ctx context.Context, locationID int64, query string) ([]apiclient.Product, error)
	Locations(ctx context.Context) ([]apiclient.Location, error)
	Invalidate(ctx context.Context) error
}

// SalesBackend submits and loads sales.
type SalesBackend interface {
	SaleSubmitter
	SaleFetcher
}

// ArchiveEnqueuer schedules a PDF copy of a completed sale.
type ArchiveEnqueuer interface {
	EnqueueArchive(ctx context.Context, saleID int64, servedBy, paymentMethod string) error
}

// Recorder counts checkout and document outcomes.
type Recorder interface {
	RecordCheckout(outcome string)
	RecordDocument(kind, format string)
}

// HandlerConfig wires the POS web surface.
type HandlerConfig struct {
	Logger    *slog.Logger
	Templates *view.Engine
	CSRF      *shared.CSRFManager
	Products  ProductSource
	Sales     SalesBackend
	Branding  BrandingSource
	Store     *Store
	Guard     CheckoutGuard
	Documents *document.Renderer
	// PDF is optional; without it the .pdf routes answer 503.
	PDF *document.PDFExporter
	// Archive is optional.
	Archive           ArchiveEnqueuer
	Metrics           Recorder
	Currency          string
	DefaultLocationID int64
}

// Handler serves the POS page, the cart endpoints and printable documents.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	products  ProductSource
	sales     SalesBackend
	branding  BrandingSource
	store     *Store
	guard     CheckoutGuard
	documents *document.Renderer
	pdf       *document.PDFExporter
	archive   ArchiveEnqueuer
	metrics   Recorder
	currency  string
	location  int64
}

// NewHandler constructs the POS handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	guard := cfg.Guard
	if guard == nil {
		guard = NewLocalGuard()
	}
	return &Handler{
		logger:    logger,
		templates: cfg.Templates,
		csrf:      cfg.CSRF,
		products:  cfg.Products,
		sales:     cfg.Sales,
		branding:  cfg.Branding,
		store:     cfg.Store,
		guard:     guard,
		documents: cfg.Documents,
		pdf:       cfg.PDF,
		archive:   cfg.Archive,
		metrics:   cfg.Metrics,
		currency:  cfg.Currency,
		location:  cfg.DefaultLocationID,
	}
}

// MountRoutes registers the /pos routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showPOS)
	r.Post("/cart/add", h.addToCart)
	r.Post("/cart/set", h.setQuantity)
	r.Post("/cart/inc", h.increment)
	r.Post("/cart/dec", h.decrement)
	r.Post("/cart/remove", h.removeLine)
	r.Post("/cart/clear", h.clearCart)
	r.Post("/cart/price", h.setPrice)
	r.Post("/cart/customer", h.setCustomer)
	r.Post("/cart/location", h.selectLocation)
	r.Post("/checkout", h.checkout)

	r.Route("/api", func(r chi.Router) {
		r.Get("/cart", h.apiCart)
		r.Delete("/cart", h.apiClear)
		r.Post("/cart/lines", h.apiUpsertLine)
		r.Delete("/cart/lines/{sku}", h.apiRemoveLine)
		r.Post("/checkout", h.apiCheckout)
	})
}

// MountDocumentRoutes registers the /documents routes.
func (h *Handler) MountDocumentRoutes(r chi.Router) {
	r.Get("/", h.documentPicker)
	r.Get("/{saleID:[0-9]+}.pdf", h.documentPDF)
	r.Get("/{saleID:[0-9]+}", h.documentHTML)
}

// ====================================================================
// Cart state per request
// ====================================================================

type cartSession struct {
	ctrl *Controller
	sess *shared.Session
	// busy is set when another request holds the checkout for this session.
	busy bool
}

// open restores the session's controller. Every change it makes is saved
// against the revision loaded here, so a request working on an outdated cart
// fails with ErrStaleCart instead of overwriting a newer one.
func (h *Handler) open(r *http.Request) (*cartSession, error) {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		return nil, errors.New("pos: session missing")
	}
	snap, rev, err := h.store.Load(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	busy := false
	if snap.Phase == PhaseSubmitting {
		release, err := h.guard.Acquire(ctx, sess.ID)
		switch {
		case errors.Is(err, ErrCheckoutInProgress):
			busy = true
		case err != nil:
			return nil, err
		default:
			release()
		}
	}

	persist := func(s Snapshot) error {
		next, err := h.store.Save(ctx, sess.ID, rev, s)
		if err != nil {
			if s.Phase == PhaseCompleted && s.LastSale != nil {
				h.logger.Error("save cart after sale failed", slog.Int64("sale_id", s.LastSale.SaleID), slog.Any("error", err))
			}
			return err
		}
		rev = next
		return nil
	}
	ctrl := NewController(Deps{
		Catalog:  h.products,
		Sales:    h.sales,
		Sale:     h.sales,
		Branding: h.branding,
		Guard:    h.guard,
		Owner:    sess.ID,
		Persist:  persist,
	})
	ctrl.Restore(snap)
	if snap.LocationID == 0 && h.location > 0 {
		if err := ctrl.SelectLocation(h.location); err != nil {
			h.logger.Warn("apply default location failed", slog.Any("error", err))
		}
	}
	return &cartSession{ctrl: ctrl, sess: sess, busy: busy}, nil
}

// ====================================================================
// POS page
// ====================================================================

type productRow struct {
	apiclient.Product
	Step decimal.Decimal
}

func (h *Handler) showPOS(w http.ResponseWriter, r *http.Request) {
	cs, err := h.open(r)
	if err != nil {
		h.logger.Error("load cart failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	snap := cs.ctrl.Snapshot()
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	var loadErrors []string
	products, err := h.products.Search(ctx, snap.LocationID, query)
	if err != nil {
		h.logger.Warn("load products failed", slog.Any("error", err))
		loadErrors = append(loadErrors, "Products: "+Message(err))
	}
	truncated := len(products) > maxProductResults
	if truncated {
		products = products[:maxProductResults]
	}
	rows := make([]productRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, productRow{Product: p, Step: StepFor(p.Unit)})
	}

	locations, err := h.products.Locations(ctx)
	if err != nil {
		h.logger.Warn("load locations failed", slog.Any("error", err))
		loadErrors = append(loadErrors, "Locations: "+Message(err))
	}

	h.render(w, r, "pages/pos.html", "Point of Sale", map[string]any{
		"Cart":           snap,
		"Total":          snap.Total(),
		"Products":       rows,
		"Truncated":      truncated,
		"Query":          query,
		"Locations":      locations,
		"PaymentMethods": PaymentMethods,
		"DocumentKinds":  document.Kinds,
		"LastSale":       snap.LastSale,
		"Busy":           cs.busy,
		"LoadErrors":     loadErrors,
	}, http.StatusOK)
}

// ====================================================================
// Cart form endpoints
// ====================================================================

type mutation func(ctx context.Context, c *Controller) error

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn mutation, success string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	back := posURL(r.PostFormValue("q"))
	cs, err := h.open(r)
	if err != nil {
		h.logger.Error("load cart failed", slog.Any("error", err))
		view.RedirectWithFlash(w, r, back, shared.FlashError, "Could not load your cart. Please try again.")
		return
	}
	if cs.busy {
		err = ErrCheckoutInProgress
	} else {
		err = fn(r.Context(), cs.ctrl)
	}
	if err != nil {
		h.logActionError("cart update", err)
		view.RedirectWithFlash(w, r, back, flashKindFor(err), Message(err))
		return
	}
	view.RedirectWithFlash(w, r, back, shared.FlashSuccess, success)
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, c *Controller) error {
		qty, err := formDecimal(r.PostFormValue("qty"), decimal.NewFromInt(1), "quantity")
		if err != nil {
			return err
		}
		return c.AddQuantity(ctx, r.PostFormValue("sku"), qty)
	}, "")
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, c *Controller) error {
		qty, err := formDecimal(r.PostFormValue("qty"), decimal.Zero, "quantity")
		if err != nil {
			return err
		}
		return c.SetQuantity(ctx, r.PostFormValue("sku"), qty)
	}, "")
}

func (h *Handler) increment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, c *Controller) error {
		return c.IncrementByOneStep(ctx, r.PostFormValue("sku"))
	}, "")
}

func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, c *Controller) error {
		return c.DecrementByOneStep(ctx, r.PostFormValue("sku"))
	}, "")
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(_ context.Context, c *Controller) error {
		return c.RemoveLine(r.PostFormValue("sku"))
	}, "")
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(_ context.Context, c *Controller) error {
		return c.ClearCart()
	}, "Cart cleared.")
}

func (h *Handler) setPrice(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(_ context.Context, c *Controller) error {
		price, err := formDecimal(r.PostFormValue("price"), decimal.Zero, "price")
		if err != nil {
			return err
		}
		return c.SetUnitPrice(r.PostFormValue("sku"), price)
	}, "")
}

func (h *Handler) setCustomer(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(_ context.Context, c *Controller) error {
		return c.SetCustomerName(r.PostFormValue("customer_name"))
	}, "")
}

func (h *Handler) selectLocation(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(_ context.Context, c *Controller) error {
		id, err := strconv.ParseInt(strings.TrimSpace(r.PostFormValue("location_id")), 10, 64)
		if err != nil {
			return invalid("Select a valid location.")
		}
		return c.SelectLocation(id)
	}, "")
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	cs, err := h.open(r)
	if err != nil {
		h.logger.Error("load cart failed", slog.Any("error", err))
		view.RedirectWithFlash(w, r, "/pos", shared.FlashError, "Could not load your cart. Please try again.")
		return
	}
	if r.PostForm.Has("customer_name") && !cs.busy {
		_ = cs.ctrl.SetCustomerName(r.PostFormValue("customer_name"))
	}
	sale, err := h.submit(r, cs, r.PostFormValue("payment_method"))
	if err != nil {
		view.RedirectWithFlash(w, r, "/pos", flashKindFor(err), Message(err))
		return
	}
	msg := fmt.Sprintf("Sale #%d recorded. Total %s.", sale.SaleID, view.FormatMoney(h.currency, sale.Total))
	if sale.ReceiptNo != "" {
		msg = fmt.Sprintf("Sale #%d recorded, receipt %s. Total %s.", sale.SaleID, sale.ReceiptNo, view.FormatMoney(h.currency, sale.Total))
	}
	view.RedirectWithFlash(w, r, "/pos", shared.FlashSuccess, msg)
}

// submit runs the checkout and its follow-ups: cache invalidation, PDF
// archiving and metrics.
func (h *Handler) submit(r *http.Request, cs *cartSession, method string) (CompletedSale, error) {
	ctx := r.Context()
	var (
		sale CompletedSale
		err  error
	)
	if cs.busy {
		err = ErrCheckoutInProgress
	} else {
		sale, err = cs.ctrl.Checkout(ctx, method)
	}
	h.recordCheckout(err)
	if err != nil {
		h.logActionError("checkout", err)
		return CompletedSale{}, err
	}

	h.logger.Info("sale recorded", slog.Int64("sale_id", sale.SaleID), slog.String("total", sale.Total.String()), slog.Int("low_stock", len(sale.LowStock)))
	if err := h.products.Invalidate(ctx); err != nil {
		h.logger.Warn("invalidate catalog after sale", slog.Any("error", err))
	}
	if h.archive != nil {
		servedBy := shared.PrincipalFromContext(ctx).DisplayName()
		if err := h.archive.EnqueueArchive(ctx, sale.SaleID, servedBy, sale.PaymentMethod.Label()); err != nil {
			h.logger.Warn("enqueue document archive", slog.Int64("sale_id", sale.SaleID), slog.Any("error", err))
		}
	}
	return sale, nil
}

func (h *Handler) recordCheckout(err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case err == nil:
		h.metrics.RecordCheckout(observability.CheckoutSuccess)
	case errors.Is(err, ErrCheckoutInProgress):
		h.metrics.RecordCheckout(observability.CheckoutInProgress)
	case errors.Is(err, ErrValidation), errors.Is(err, ErrStaleCart):
		h.metrics.RecordCheckout(observability.CheckoutRejected)
	default:
		h.metrics.RecordCheckout(observability.CheckoutFailed)
	}
}

// ====================================================================
// JSON API
// ====================================================================

var problemRules = []httpx.Rule{
	{Target: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrInsufficientStock, Status: http.StatusConflict, Title: "Insufficient Stock"},
	{Target: ErrCheckoutInProgress, Status: http.StatusConflict, Title: "Checkout In Progress"},
	{Target: ErrStaleCart, Status: http.StatusConflict, Title: "Cart Changed"},
	{Target: apiclient.ErrAPI, Status: http.StatusBadGateway, Title: "Backend Error"},
	{Target: apiclient.ErrNetwork, Status: http.StatusServiceUnavailable, Title: "Backend Unavailable"},
}

type lineResponse struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Quantity  decimal.Decimal `json:"quantity"`
	Step      decimal.Decimal `json:"step"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type cartResponse struct {
	Lines        []lineResponse  `json:"lines"`
	LocationID   int64           `json:"location_id"`
	CustomerName string          `json:"customer_name"`
	Total        decimal.Decimal `json:"total"`
	ItemCount    decimal.Decimal `json:"item_count"`
	Phase        Phase           `json:"phase"`
	LastSale     *CompletedSale  `json:"last_sale,omitempty"`
	Warning      string          `json:"warning,omitempty"`
}

func newCartResponse(snap Snapshot) cartResponse {
	lines := make([]lineResponse, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		lines = append(lines, lineResponse{
			SKU:       l.SKU,
			Name:      l.Name,
			Unit:      l.Unit,
			Quantity:  l.Quantity,
			Step:      l.Step(),
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal(),
		})
	}
	return cartResponse{
		Lines:        lines,
		LocationID:   snap.LocationID,
		CustomerName: snap.CustomerName,
		Total:        snap.Total(),
		ItemCount:    snap.ItemCount(),
		Phase:        snap.Phase,
		LastSale:     snap.LastSale,
	}
}

type lineRequest struct {
	SKU  string          `json:"sku"`
	Qty  decimal.Decimal `json:"qty"`
	Mode string          `json:"mode"`
}

type checkoutRequest struct {
	PaymentMethod string  `json:"payment_method"`
	CustomerName  *string `json:"customer_name"`
}

func (h *Handler) problem(w http.ResponseWriter, err error) {
	h.logActionError("cart api", err)
	httpx.RespondError(w, err, Message(err), problemRules...)
}

func (h *Handler) openAPI(w http.ResponseWriter, r *http.Request) (*cartSession, bool) {
	cs, err := h.open(r)
	if err != nil {
		h.logger.Error("load cart failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return nil, false
	}
	return cs, true
}

func (h *Handler) apiCart(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.openAPI(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, newCartResponse(cs.ctrl.Snapshot()))
}

func (h *Handler) apiClear(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.openAPI(w, r)
	if !ok {
		return
	}
	if cs.busy {
		h.problem(w, ErrCheckoutInProgress)
		return
	}
	if err := cs.ctrl.ClearCart(); err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCartResponse(cs.ctrl.Snapshot()))
}

func (h *Handler) apiUpsertLine(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.problem(w, invalid("Request body must be JSON with sku and qty."))
		return
	}
	cs, ok := h.openAPI(w, r)
	if !ok {
		return
	}
	if cs.busy {
		h.problem(w, ErrCheckoutInProgress)
		return
	}
	var err error
	switch strings.ToLower(req.Mode) {
	case "", "add":
		err = cs.ctrl.AddQuantity(r.Context(), req.SKU, req.Qty)
	case "set":
		err = cs.ctrl.SetQuantity(r.Context(), req.SKU, req.Qty)
	default:
		err = invalid("mode must be add or set.")
	}
	resp := newCartResponse(cs.ctrl.Snapshot())
	var stockErr *StockError
	if errors.As(err, &stockErr) && stockErr.Clamped {
		resp.Warning = Message(err)
		httpx.JSON(w, http.StatusOK, resp)
		return
	}
	if err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) apiRemoveLine(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.openAPI(w, r)
	if !ok {
		return
	}
	if cs.busy {
		h.problem(w, ErrCheckoutInProgress)
		return
	}
	if err := cs.ctrl.RemoveLine(chi.URLParam(r, "sku")); err != nil {
		h.problem(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCartResponse(cs.ctrl.Snapshot()))
}

func (h *Handler) apiCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.problem(w, invalid("Request body must be JSON with payment_method."))
		return
	}
	cs, ok := h.openAPI(w, r)
	if !ok {
		return
	}
	if req.CustomerName != nil && !cs.busy {
		_ = cs.ctrl.SetCustomerName(*req.CustomerName)
	}
	sale, err := h.submit(r, cs, req.PaymentMethod)
	if err != nil {
		httpx.RespondError(w, err, Message(err), problemRules...)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

// ====================================================================
// Printable documents
// ====================================================================

func (h *Handler) documentPicker(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("sale_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			view.RedirectWithFlash(w, r, "/documents", shared.FlashError, "Enter a valid sale id.")
			return
		}
		kind, err := document.ParseKind(query.Get("kind"))
		if err != nil {
			view.RedirectWithFlash(w, r, "/documents", shared.FlashError, "Choose receipt, proforma or waybill.")
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/documents/%d?kind=%s", id, kind), http.StatusSeeOther)
		return
	}
	h.render(w, r, "pages/document_picker.html", "Print documents", map[string]any{
		"Kinds": document.Kinds,
	}, http.StatusOK)
}

func (h *Handler) loadDocument(w http.ResponseWriter, r *http.Request) (document.Document, bool) {
	saleID, _ := strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
	kind, err := document.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		view.RedirectWithFlash(w, r, "/documents", shared.FlashError, "Choose receipt, proforma or waybill.")
		return document.Document{}, false
	}
	cs, err := h.open(r)
	if err != nil {
		h.logger.Error("load cart failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return document.Document{}, false
	}
	opts := h.documentOptions(r, cs.ctrl.Snapshot(), saleID)
	doc, err := cs.ctrl.LoadPrintableDocument(r.Context(), saleID, kind, opts)
	if err != nil {
		h.logActionError("load document", err)
		msg := Message(err)
		if apiclient.IsNotFound(err) {
			msg = fmt.Sprintf("Sale #%d was not found.", saleID)
		}
		view.RedirectWithFlash(w, r, "/documents", shared.FlashError, msg)
		return document.Document{}, false
	}
	return doc, true
}

// documentOptions prefers explicit query values, then what this session
// knows about the sale.
func (h *Handler) documentOptions(r *http.Request, snap Snapshot, saleID int64) document.Options {
	query := r.URL.Query()
	opts := document.Options{
		ServedBy: strings.TrimSpace(query.Get("served_by")),
	}
	if opts.ServedBy == "" {
		opts.ServedBy = shared.PrincipalFromContext(r.Context()).DisplayName()
	}
	if raw := strings.TrimSpace(query.Get("payment")); raw != "" {
		if method, err := ParsePaymentMethod(raw); err == nil {
			opts.PaymentMethod = method.Label()
		} else {
			opts.PaymentMethod = raw
		}
	} else if snap.LastSale != nil && snap.LastSale.SaleID == saleID {
		opts.PaymentMethod = snap.LastSale.PaymentMethod.Label()
	}
	return opts
}

func (h *Handler) documentHTML(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadDocument(w, r)
	if !ok {
		return
	}
	html, err := h.documents.HTML(doc)
	if err != nil {
		h.logger.Error("render document failed", slog.Int64("sale_id", doc.SaleID), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.recordDocument(doc.Kind, "html")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (h *Handler) documentPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		http.Error(w, "PDF export is not configured", http.StatusServiceUnavailable)
		return
	}
	doc, ok := h.loadDocument(w, r)
	if !ok {
		return
	}
	pdf, err := h.pdf.Export(r.Context(), doc)
	if err != nil {
		h.logger.Error("export document pdf failed", slog.Int64("sale_id", doc.SaleID), slog.Any("error", err))
		http.Error(w, "Could not produce the PDF. Use the print view instead.", http.StatusBadGateway)
		return
	}
	h.recordDocument(doc.Kind, "pdf")
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.FileName("pdf")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) recordDocument(kind document.Kind, format string) {
	if h.metrics != nil {
		h.metrics.RecordDocument(string(kind), format)
	}
}

// ====================================================================
// Helpers
// ====================================================================

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl, title string, data map[string]any, status int) {
	viewData := view.PageData(r, h.csrf, title, data)
	if err := h.templates.RenderStatus(w, status, tmpl, viewData); err != nil {
		h.logger.Error("render "+tmpl+" failed", slog.Any("error", err))
	}
}

func (h *Handler) logActionError(action string, err error) {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrCheckoutInProgress), errors.Is(err, ErrStaleCart):
		h.logger.Debug(action+" rejected", slog.Any("error", err))
	default:
		h.logger.Warn(action+" failed", slog.Any("error", err))
	}
}

func flashKindFor(err error) string {
	var stockErr *StockError
	if errors.As(err, &stockErr) && stockErr.Clamped {
		return shared.FlashWarning
	}
	return shared.FlashError
}

func formDecimal(raw string, fallback decimal.Decimal, field string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalid("Enter a valid %s.", field)
	}
	return d, nil
}

func posURL(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "/pos"
	}
	return "/pos?q=" + url.QueryEscape(query)
}
