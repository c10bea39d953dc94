package sales

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/internal/view"
)

type salesFixture struct {
	router  http.Handler
	sess    *shared.Session
	backend *stubBackend
	ref     *stubReference
}

func newSalesFixture(t *testing.T, backend *stubBackend) *salesFixture {
	t.Helper()
	templates, err := view.NewEngine("₵")
	require.NoError(t, err)
	f := &salesFixture{sess: &shared.Session{ID: "sess-sales"}, backend: backend, ref: newReference()}
	handler := NewHandler(nil, NewService(backend, f.ref, nil), templates, shared.NewCSRFManager("secret"), "₵")
	handler.SetClockForTest(func() time.Time { return time.Date(2025, 5, 17, 9, 0, 0, 0, time.UTC) })

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), f.sess)))
		})
	})
	r.Route("/sales", handler.MountRoutes)
	f.router = r
	return f
}

func (f *salesFixture) do(req *http.Request) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func TestHistoryPageDefaultsToMonth(t *testing.T) {
	f := newSalesFixture(t, &stubBackend{})

	res := f.do(httptest.NewRequest(http.MethodGet, "/sales/history", nil))

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `value="2025-05-01"`)
	assert.Contains(t, body, `value="2025-05-17"`)
	assert.Contains(t, body, "R-0009")
	assert.Contains(t, body, "3 sales totalling ₵ 39.50.")
	require.Len(t, f.ref.filters, 1)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), f.ref.filters[0].From)
}

func TestHistoryPageRejectsBadRange(t *testing.T) {
	f := newSalesFixture(t, &stubBackend{})

	res := f.do(httptest.NewRequest(http.MethodGet, "/sales/history?from=2025-05-10&to=2025-05-01", nil))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "From date cannot be after To date.")

	res = f.do(httptest.NewRequest(http.MethodGet, "/sales/history?from=10/05/2025", nil))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Empty(t, f.ref.filters)
}

func TestSaleDetailPage(t *testing.T) {
	backend := &stubBackend{sale: apiclient.SaleDetail{
		ReceiptNo:  "R-0042",
		LocationID: 2,
		Lines: []apiclient.SaleLine{
			{SKU: "SKU-COLA", ProductName: "Cola", Qty: d("2"), UnitPrice: d("5")},
		},
	}}
	f := newSalesFixture(t, backend)

	res := f.do(httptest.NewRequest(http.MethodGet, "/sales/42", nil))

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Sale #42")
	assert.Contains(t, body, "Walk-in Customer")
	assert.Contains(t, body, "₵ 10.00")
	assert.Contains(t, body, `action="/sales/42/lines"`)
	assert.Contains(t, body, `<option value="2" selected>Warehouse</option>`)
	assert.NotContains(t, body, "SKU-OLD")
}

func TestSaleDetailNotFoundRedirects(t *testing.T) {
	f := newSalesFixture(t, &stubBackend{saleErr: &apiclient.APIError{StatusCode: 404}})

	res := f.do(httptest.NewRequest(http.MethodGet, "/sales/77", nil))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/sales/history", res.Header().Get("Location"))
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Sale #77 was not found.", flash.Message)
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestAddLineForm(t *testing.T) {
	backend := &stubBackend{newTotal: d("1250")}
	f := newSalesFixture(t, backend)

	res := f.do(postForm("/sales/42/lines", url.Values{"sku": {"SKU-COLA"}, "qty": {"3"}, "location_id": {"1"}}))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/sales/42", res.Header().Get("Location"))
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashSuccess, flash.Kind)
	assert.Equal(t, "Added. New total: ₵ 1,250.00.", flash.Message)
	assert.Equal(t, []int64{42}, backend.addedTo)
}

func TestAddLineFormErrors(t *testing.T) {
	backend := &stubBackend{}
	f := newSalesFixture(t, backend)

	f.do(postForm("/sales/42/lines", url.Values{"sku": {"SKU-COLA"}, "qty": {"lots"}, "location_id": {"1"}}))
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Enter a valid quantity.", flash.Message)

	f.do(postForm("/sales/42/lines", url.Values{"sku": {"SKU-COLA"}, "qty": {"0"}, "location_id": {"1"}}))
	flash = f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashError, flash.Kind)
	assert.Equal(t, "Quantity must be greater than zero.", flash.Message)

	backend.addErr = &apiclient.APIError{StatusCode: 400, Body: `{"detail":"Insufficient stock for SKU-COLA"}`}
	f.do(postForm("/sales/42/lines", url.Values{"sku": {"SKU-COLA"}, "qty": {"1"}, "location_id": {"1"}}))
	flash = f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Error from API (400): Insufficient stock for SKU-COLA", flash.Message)
	assert.Empty(t, backend.added)
}
