package pos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/document"
	"github.com/marvenixx/pos-console/internal/observability"
	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/internal/view"
)

type stubProducts struct {
	*stubCatalog
	invalidated int
}

func (s *stubProducts) Search(_ context.Context, _ int64, query string) ([]apiclient.Product, error) {
	var out []apiclient.Product
	for _, p := range s.products {
		if query == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubProducts) Locations(context.Context) ([]apiclient.Location, error) {
	return []apiclient.Location{{ID: 1, Name: "Main Shop"}, {ID: 2, Name: "Warehouse"}}, nil
}

func (s *stubProducts) Invalidate(context.Context) error {
	s.invalidated++
	return nil
}

type recordingMetrics struct {
	checkouts []string
	documents []string
}

func (m *recordingMetrics) RecordCheckout(outcome string) {
	m.checkouts = append(m.checkouts, outcome)
}

func (m *recordingMetrics) RecordDocument(kind, format string) {
	m.documents = append(m.documents, kind+"/"+format)
}

type archived struct {
	saleID   int64
	servedBy string
	payment  string
}

type recordingArchive struct {
	jobs []archived
}

func (a *recordingArchive) EnqueueArchive(_ context.Context, saleID int64, servedBy, payment string) error {
	a.jobs = append(a.jobs, archived{saleID: saleID, servedBy: servedBy, payment: payment})
	return nil
}

type posFixture struct {
	router   http.Handler
	sess     *shared.Session
	store    *Store
	guard    *LocalGuard
	products *stubProducts
	sales    *stubSales
	metrics  *recordingMetrics
	archive  *recordingArchive
}

func newPOSFixture(t *testing.T, sales *stubSales) *posFixture {
	t.Helper()
	client, _ := newRedis(t)
	templates, err := view.NewEngine("₵")
	require.NoError(t, err)
	renderer, err := document.NewRenderer("₵")
	require.NoError(t, err)

	f := &posFixture{
		sess:     &shared.Session{ID: "sess-pos"},
		store:    NewStore(client, 0),
		guard:    NewLocalGuard(),
		products: &stubProducts{stubCatalog: newCatalog()},
		sales:    sales,
		metrics:  &recordingMetrics{},
		archive:  &recordingArchive{},
	}
	handler := NewHandler(HandlerConfig{
		Templates:         templates,
		CSRF:              shared.NewCSRFManager("secret"),
		Products:          f.products,
		Sales:             sales,
		Branding:          stubBranding{},
		Store:             f.store,
		Guard:             f.guard,
		Documents:         renderer,
		Archive:           f.archive,
		Metrics:           f.metrics,
		Currency:          "₵",
		DefaultLocationID: 1,
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithSession(req.Context(), f.sess)
			ctx = shared.ContextWithPrincipal(ctx, &shared.Principal{Username: "ama", FullName: "Ama Owusu", Role: shared.RoleCashier})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/pos", handler.MountRoutes)
	r.Route("/documents", handler.MountDocumentRoutes)
	f.router = r
	return f
}

func (f *posFixture) form(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func (f *posFixture) json(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func (f *posFixture) get(path string) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	return res
}

func (f *posFixture) saved(t *testing.T) Snapshot {
	t.Helper()
	snap, _, err := f.store.Load(context.Background(), f.sess.ID)
	require.NoError(t, err)
	return snap
}

func TestFormAddPersistsCart(t *testing.T) {
	f := newPOSFixture(t, &stubSales{})

	res := f.form("/pos/cart/add", url.Values{"sku": {"SKU-COLA"}, "qty": {"2"}, "q": {"co"}})

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/pos?q=co", res.Header().Get("Location"))
	snap := f.saved(t)
	line, ok := snap.Line("SKU-COLA")
	require.True(t, ok)
	assert.True(t, line.Quantity.Equal(dec("2")))
	assert.Equal(t, int64(1), snap.LocationID)
	assert.Nil(t, f.sess.PopFlash())
}

func TestFormAddOverStockFlashesError(t *testing.T) {
	f := newPOSFixture(t, &stubSales{})

	res := f.form("/pos/cart/add", url.Values{"sku": {"SKU-COLA"}, "qty": {"5"}})

	assert.Equal(t, http.StatusSeeOther, res.Code)
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashError, flash.Kind)
	assert.Equal(t, "Not enough stock for Cola. Available: 3 piece.", flash.Message)
	assert.True(t, f.saved(t).Empty())
}

func TestFormSetClampFlashesWarning(t *testing.T) {
	f := newPOSFixture(t, &stubSales{})
	f.form("/pos/cart/add", url.Values{"sku": {"SKU-OIL"}, "qty": {"1"}})

	f.form("/pos/cart/set", url.Values{"sku": {"SKU-OIL"}, "qty": {"5"}})

	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashWarning, flash.Kind)
	line, _ := f.saved(t).Line("SKU-OIL")
	assert.True(t, line.Quantity.Equal(dec("2")))
}

func TestFormRejectsMalformedQuantity(t *testing.T) {
	f := newPOSFixture(t, &stubSales{})

	f.form("/pos/cart/add", url.Values{"sku": {"SKU-COLA"}, "qty": {"two"}})

	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Enter a valid quantity.", flash.Message)
	assert.Zero(t, f.products.calls)
}

func TestFormCheckoutRecordsSale(t *testing.T) {
	sales := &stubSales{result: apiclient.SaleResult{SaleID: 42, ReceiptNo: "R-0042", Total: dec("10")}}
	f := newPOSFixture(t, sales)
	f.form("/pos/cart/add", url.Values{"sku": {"SKU-COLA"}, "qty": {"2"}})

	res := f.form("/pos/checkout", url.Values{"payment_method": {"cash"}, "customer_name": {" Kofi "}})

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/pos", res.Header().Get("Location"))
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Sale #42 recorded, receipt R-0042. Total ₵ 10.00.", flash.Message)
	require.NotNil(t, sales.last.CustomerName)
	assert.Equal(t, "Kofi", *sales.last.CustomerName)

	snap := f.saved(t)
	assert.True(t, snap.Empty())
	assert.Equal(t, PhaseCompleted, snap.Phase)
	require.NotNil(t, snap.LastSale)
	assert.Equal(t, int64(42), snap.LastSale.SaleID)
}

func TestAPICheckout(t *testing.T) {
	sales := &stubSales{result: apiclient.SaleResult{SaleID: 7, Total: dec("12.50")}}
	f := newPOSFixture(t, sales)

	res := f.json(http.MethodPost, "/pos/api/cart/lines", `{"sku":"SKU-RICE","qty":"1"}`)
	require.Equal(t, http.StatusOK, res.Code)

	res = f.json(http.MethodPost, "/pos/api/checkout", `{"payment_method":"momo"}`)
	require.Equal(t, http.StatusCreated, res.Code)
	var sale CompletedSale
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &sale))
	assert.Equal(t, int64(7), sale.SaleID)
	assert.Equal(t, PaymentMoMo, sale.PaymentMethod)

	assert.Equal(t, []string{observability.CheckoutSuccess}, f.metrics.checkouts)
	assert.Equal(t, 1, f.products.invalidated)
	require.Len(t, f.archive.jobs, 1)
	assert.Equal(t, archived{saleID: 7, servedBy: "Ama Owusu", payment: "Mobile Money"}, f.archive.jobs[0])
}

func TestAPICheckoutProblems(t *testing.T) {
	f := newPOSFixture(t, &stubSales{err: &apiclient.APIError{StatusCode: 422, Body: `{"detail":"Insufficient stock"}`}})

	res := f.json(http.MethodPost, "/pos/api/checkout", `{"payment_method":"cash"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Cart is empty")

	f.json(http.MethodPost, "/pos/api/cart/lines", `{"sku":"SKU-COLA","qty":"1"}`)
	res = f.json(http.MethodPost, "/pos/api/checkout", `{"payment_method":"cash"}`)
	assert.Equal(t, http.StatusBadGateway, res.Code)
	assert.Contains(t, res.Body.String(), "Error from API (422): Insufficient stock")
	assert.False(t, f.saved(t).Empty())

	assert.Equal(t, []string{observability.CheckoutRejected, observability.CheckoutFailed}, f.metrics.checkouts)
	assert.Empty(t, f.archive.jobs)
}

func TestAPIUpsertLine(t *testing.T) {
	f := newPOSFixture(t, &stubSales{})

	res := f.json(http.MethodPost, "/pos/api/cart/lines", `{"sku":"SKU-COLA","qty":"4"}`)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = f.json(http.MethodPost, "/pos/api/cart/lines", `{"sku":"SKU-OIL","qty":"1"}`)
	require.Equal(t, http.StatusOK, res.Code)
	res = f.json(http.MethodPost, "/pos/api/cart/lines", `{"sku":"SKU-OIL","qty":"9","mode":"set"}`)
	require.Equal(t, http.StatusOK, res.Code)
	var cart cartResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &cart))
	assert.Equal(t, "Only 2.3 bottle of Oil available. Quantity set to 2.", cart.Warning)
	require.Len(t, cart.Lines, 1)
	assert.True(t, cart.Total.Equal(dec("60")))

	res = f.json(http.MethodPost, "/pos/api/cart/lines", `{"sku":"SKU-OIL","qty":"1","mode":"swap"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = f.json(http.MethodDelete, "/pos/api/cart/lines/SKU-OIL", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, f.saved(t).Empty())
}

func TestEditsRejectedWhileAnotherRequestSubmits(t *testing.T) {
	f := newPOSFixture(t, &stubSales{})
	_, err := f.store.Save(context.Background(), f.sess.ID, 0, Snapshot{
		Lines:      []CartLine{{SKU: "SKU-COLA", Name: "Cola", Unit: "piece", Quantity: dec("1"), UnitPrice: dec("5")}},
		LocationID: 1,
		Phase:      PhaseSubmitting,
	})
	require.NoError(t, err)
	release, err := f.guard.Acquire(context.Background(), f.sess.ID)
	require.NoError(t, err)

	res := f.json(http.MethodPost, "/pos/api/cart/lines", `{"sku":"SKU-COLA","qty":"1"}`)
	assert.Equal(t, http.StatusConflict, res.Code)
	res = f.json(http.MethodPost, "/pos/api/checkout", `{"payment_method":"cash"}`)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Zero(t, f.sales.calls)

	release()
	res = f.json(http.MethodPost, "/pos/api/cart/lines", `{"sku":"SKU-COLA","qty":"1"}`)
	assert.Equal(t, http.StatusOK, res.Code)
	line, _ := f.saved(t).Line("SKU-COLA")
	assert.True(t, line.Quantity.Equal(dec("2")))
}

func TestCartEditRacingCheckoutIsRejected(t *testing.T) {
	sales := &stubSales{result: apiclient.SaleResult{SaleID: 51, Total: dec("5")}}
	f := newPOSFixture(t, sales)
	f.form("/pos/cart/add", url.Values{"sku": {"SKU-COLA"}, "qty": {"1"}})
	f.products.holdSKU = "SKU-RICE"
	f.products.held = make(chan struct{})
	f.products.resume = make(chan struct{})

	// The edit loads the cart, then waits on its catalog lookup while the
	// checkout of the same cart completes.
	edited := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		edited <- f.form("/pos/cart/add", url.Values{"sku": {"SKU-RICE"}, "qty": {"2"}})
	}()
	<-f.products.held

	res := f.form("/pos/checkout", url.Values{"payment_method": {"cash"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Contains(t, flash.Message, "Sale #51 recorded")

	close(f.products.resume)
	res = <-edited
	assert.Equal(t, http.StatusSeeOther, res.Code)
	flash = f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashError, flash.Kind)
	assert.Equal(t, Message(ErrStaleCart), flash.Message)

	snap := f.saved(t)
	assert.True(t, snap.Empty())
	assert.Equal(t, PhaseCompleted, snap.Phase)
	require.NotNil(t, snap.LastSale)
	assert.Equal(t, int64(51), snap.LastSale.SaleID)
	assert.Equal(t, 1, sales.calls)
	require.Len(t, sales.last.Lines, 1)
	assert.Equal(t, "SKU-COLA", sales.last.Lines[0].SKU)
}

func TestAPIEditOnOutdatedCartConflicts(t *testing.T) {
	f := newPOSFixture(t, &stubSales{})
	f.json(http.MethodPost, "/pos/api/cart/lines", `{"sku":"SKU-COLA","qty":"1"}`)
	f.products.holdSKU = "SKU-RICE"
	f.products.held = make(chan struct{})
	f.products.resume = make(chan struct{})

	edited := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		edited <- f.json(http.MethodPost, "/pos/api/cart/lines", `{"sku":"SKU-RICE","qty":"1"}`)
	}()
	<-f.products.held

	res := f.json(http.MethodDelete, "/pos/api/cart", "")
	require.Equal(t, http.StatusOK, res.Code)
	close(f.products.resume)

	res = <-edited
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Contains(t, res.Body.String(), "Cart Changed")
	assert.True(t, f.saved(t).Empty())
}

func TestShowPOSPage(t *testing.T) {
	f := newPOSFixture(t, &stubSales{})
	f.form("/pos/cart/add", url.Values{"sku": {"SKU-RICE"}, "qty": {"1.5"}})

	res := f.get("/pos?q=rice")

	assert.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Point of Sale")
	assert.Contains(t, body, "SKU-RICE")
	assert.Contains(t, body, "Main Shop")
	assert.Contains(t, body, "₵ 18.75")
	assert.NotContains(t, body, "SKU-COLA")
}

func TestDocumentRoutes(t *testing.T) {
	f := newPOSFixture(t, &stubSales{})

	res := f.get("/documents/15?kind=waybill")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "WAYBILL")
	assert.Contains(t, res.Body.String(), "Ama Owusu")
	assert.Equal(t, []string{"waybill/html"}, f.metrics.documents)

	res = f.get("/documents/15.pdf")
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)

	res = f.get("/documents?sale_id=15&kind=proforma")
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/documents/15?kind=proforma", res.Header().Get("Location"))

	res = f.get("/documents/15?kind=invoice")
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/documents", res.Header().Get("Location"))
}

func TestDocumentMissingSaleRedirects(t *testing.T) {
	f := newPOSFixture(t, &stubSales{err: &apiclient.APIError{StatusCode: 404, Body: `{"detail":"Sale not found"}`}})

	res := f.get("/documents/99?kind=receipt")

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/documents", res.Header().Get("Location"))
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Sale #99 was not found.", flash.Message)
}
