package inventory

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/auth"
	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/internal/view"
)

type inventoryFixture struct {
	router  http.Handler
	sess    *shared.Session
	user    *shared.Principal
	backend *stubBackend
	ref     *stubReference
}

func newInventoryFixture(t *testing.T, role string) *inventoryFixture {
	t.Helper()
	templates, err := view.NewEngine("₵")
	require.NoError(t, err)
	f := &inventoryFixture{
		sess:    &shared.Session{ID: "sess-inventory"},
		user:    &shared.Principal{Username: "esi", FullName: "Esi Mensah", Role: role},
		backend: &stubBackend{},
		ref:     newReference(),
	}
	handler := NewHandler(nil, NewService(f.backend, f.ref, nil), templates, shared.NewCSRFManager("secret"), auth.Middleware{})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithSession(req.Context(), f.sess)
			ctx = shared.ContextWithPrincipal(ctx, f.user)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/inventory", handler.MountRoutes)
	f.router = r
	return f
}

func (f *inventoryFixture) do(req *http.Request) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func (f *inventoryFixture) flash(t *testing.T) *shared.FlashMessage {
	t.Helper()
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	return flash
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestProductsPage(t *testing.T) {
	f := newInventoryFixture(t, shared.RoleAdmin)

	res := f.do(httptest.NewRequest(http.MethodGet, "/inventory/products", nil))

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Old Soap")
	assert.Contains(t, body, "Inactive")
	assert.Contains(t, body, `href="/inventory/products/3/edit"`)
	assert.Contains(t, body, `<option value="piece" selected>piece</option>`)
}

func TestProductsPageHidesAdminActionsFromCashiers(t *testing.T) {
	f := newInventoryFixture(t, shared.RoleCashier)

	res := f.do(httptest.NewRequest(http.MethodGet, "/inventory/products", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotContains(t, res.Body.String(), "/edit")

	res = f.do(httptest.NewRequest(http.MethodGet, "/inventory/products/3/edit", nil))
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = f.do(postForm("/inventory/products/3/deactivate", url.Values{}))
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Empty(t, f.backend.deactivated)
}

func TestCreateProductForm(t *testing.T) {
	f := newInventoryFixture(t, shared.RoleCashier)

	res := f.do(postForm("/inventory/products", url.Values{
		"name": {"Sugar"}, "unit": {"kg"}, "tax_rate": {"0"}, "selling_price": {"9.50"},
	}))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/inventory/products", res.Header().Get("Location"))
	assert.Equal(t, "Product created.", f.flash(t).Message)
	require.Len(t, f.backend.created, 1)
	assert.True(t, f.backend.created[0].SellingPrice.Equal(d("9.5")))
}

func TestCreateProductFormRerendersOnError(t *testing.T) {
	f := newInventoryFixture(t, shared.RoleCashier)

	res := f.do(postForm("/inventory/products", url.Values{"name": {""}, "unit": {"kg"}, "barcode": {"600777"}}))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Name is required.")
	assert.Contains(t, body, `value="600777"`)

	res = f.do(postForm("/inventory/products", url.Values{"name": {"Sugar"}, "unit": {"kg"}, "selling_price": {"nine"}}))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Enter a valid selling price.")
	assert.Empty(t, f.backend.created)
}

func TestEditAndDeactivateProduct(t *testing.T) {
	f := newInventoryFixture(t, shared.RoleAdmin)

	res := f.do(httptest.NewRequest(http.MethodGet, "/inventory/products/3/edit", nil))
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Edit product #3")
	assert.Contains(t, body, `value="12.50"`)

	res = f.do(postForm("/inventory/products/3", url.Values{"name": {"Rice (local)"}, "unit": {"kg"}, "selling_price": {"14"}}))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "Product updated.", f.flash(t).Message)
	assert.Equal(t, "Rice (local)", f.backend.updated[3].Name)

	res = f.do(postForm("/inventory/products/2/deactivate", url.Values{}))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "Product deactivated. It will no longer appear in POS / Receive Stock.", f.flash(t).Message)
	assert.Equal(t, []int64{2}, f.backend.deactivated)

	res = f.do(httptest.NewRequest(http.MethodGet, "/inventory/products/99/edit", nil))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "Product #99 was not found.", f.flash(t).Message)
}

func TestReceiveForm(t *testing.T) {
	f := newInventoryFixture(t, shared.RoleCashier)

	res := f.do(httptest.NewRequest(http.MethodGet, "/inventory/receive?rows=3", nil))
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Equal(t, 3, strings.Count(body, `name="unit_cost"`))
	assert.NotContains(t, body, "SKU-OLD")

	res = f.do(postForm("/inventory/receive", url.Values{
		"supplier":    {"Accra Traders"},
		"sku":         {"SKU-RICE", "SKU-COLA", ""},
		"qty":         {"10", "0", "0"},
		"unit_cost":   {"8.75", "2", "0"},
		"lot_code":    {"", "", ""},
		"expiry":      {"2026-03-01", "", ""},
		"location_id": {"1", "1", "1"},
	}))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/inventory/receive", res.Header().Get("Location"))
	flash := f.flash(t)
	assert.Equal(t, shared.FlashSuccess, flash.Kind)
	assert.Equal(t, "GRN posted successfully (#17).", flash.Message)
	require.Len(t, f.backend.receipts, 1)
	assert.Len(t, f.backend.receipts[0].Lines, 1)
}

func TestReceiveFormErrors(t *testing.T) {
	f := newInventoryFixture(t, shared.RoleCashier)

	f.do(postForm("/inventory/receive", url.Values{"sku": {"SKU-RICE"}, "qty": {"ten"}, "unit_cost": {"1"}, "location_id": {"1"}}))
	assert.Equal(t, "Row 1: enter a valid quantity.", f.flash(t).Message)

	f.do(postForm("/inventory/receive", url.Values{"sku": {"SKU-RICE"}, "qty": {"3"}, "unit_cost": {""}, "location_id": {"1"}}))
	assert.Equal(t, "No valid lines to post. Please enter quantity and unit cost.", f.flash(t).Message)

	f.backend.err = &apiclient.APIError{StatusCode: 422, Body: `{"detail":"Unknown location"}`}
	f.do(postForm("/inventory/receive", url.Values{"sku": {"SKU-RICE"}, "qty": {"3"}, "unit_cost": {"2"}, "location_id": {"9"}}))
	assert.Equal(t, "Error from API (422): Unknown location", f.flash(t).Message)
}

func TestTransferForm(t *testing.T) {
	f := newInventoryFixture(t, shared.RoleCashier)

	f.do(postForm("/inventory/transfer", url.Values{
		"from_location_id": {"2"}, "to_location_id": {"2"}, "sku": {"SKU-COLA"}, "qty": {"4"},
	}))
	assert.Equal(t, "From and To locations must be different.", f.flash(t).Message)

	res := f.do(postForm("/inventory/transfer", url.Values{
		"from_location_id": {"2"}, "to_location_id": {"1"}, "sku": {"SKU-COLA", "SKU-RICE"}, "qty": {"4", "0"},
	}))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "Stock transfer posted successfully.", f.flash(t).Message)
	require.Len(t, f.backend.transfers, 1)
	assert.Equal(t, int64(2), f.backend.transfers[0].FromLocationID)
}

func TestOnHandPageAndExport(t *testing.T) {
	f := newInventoryFixture(t, shared.RoleCashier)

	res := f.do(httptest.NewRequest(http.MethodGet, "/inventory/on-hand", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "No inventory yet. Receive stock first.")

	f.backend.report = apiclient.InventoryReport{Items: []map[string]any{{"sku": "SKU-RICE", "qty_on_hand": 4.0}}}
	res = f.do(httptest.NewRequest(http.MethodGet, "/inventory/on-hand", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<td>SKU-RICE</td>")

	res = f.do(httptest.NewRequest(http.MethodGet, "/inventory/on-hand.csv", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, `attachment; filename="inventory_on_hand.csv"`, res.Header().Get("Content-Disposition"))
	assert.Equal(t, "sku,qty_on_hand\nSKU-RICE,4\n", res.Body.String())
}
