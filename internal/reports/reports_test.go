package reports

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marvenixx/pos-console/internal/apiclient"
	"github.com/marvenixx/pos-console/internal/catalog"
	"github.com/marvenixx/pos-console/internal/platform/httpx"
	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/internal/view"
)

var fixedNow = time.Date(2025, 5, 17, 18, 0, 0, 0, time.UTC)

type stubBackend struct {
	summary apiclient.SalesSummary
	calls   int
	err     error
}

func (s *stubBackend) SalesSummary(context.Context, time.Time, time.Time) (apiclient.SalesSummary, error) {
	s.calls++
	if s.err != nil {
		return apiclient.SalesSummary{}, s.err
	}
	return s.summary, nil
}

type stubBranding struct{}

func (stubBranding) Branding(context.Context) (apiclient.CompanySettings, error) {
	return apiclient.CompanySettings{CompanyName: "Ateasefuor Limited"}, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleSummary() apiclient.SalesSummary {
	return apiclient.SalesSummary{
		SalesToday:     d("250"),
		SalesThisMonth: d("4200.5"),
		SalesThisYear:  d("38950"),
		Daily: []apiclient.DailyTotal{
			{Date: "2025-05-02", Total: d("1200.5")},
			{Date: "2025-05-01", Total: d("3000")},
		},
	}
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSummaryText(t *testing.T) {
	from, to := MonthToDate(fixedNow)

	text := SummaryText("Ateasefuor Limited", "₵", sampleSummary(), from, to)

	assert.Equal(t, "*Ateasefuor Limited – Daily Sales Summary* (2025-05-17)\n"+
		"Sales today: ₵ 250.00\n"+
		"Sales this month: ₵ 4,200.50\n"+
		"Sales this year: ₵ 38,950.00\n"+
		"Period 2025-05-01 → 2025-05-17: ₵ 4,200.50", text)
	assert.Contains(t, SummaryText("", "₵", apiclient.SalesSummary{}, from, to), "*Daily Sales Summary* (2025-05-17)")
}

func TestSummaryCachedAndSorted(t *testing.T) {
	backend := &stubBackend{summary: sampleSummary()}
	svc := NewService(backend, stubBranding{}, catalog.NewCache(newRedis(t)), nil, "₵", nil)
	from, to := MonthToDate(fixedNow)

	first, err := svc.Summary(context.Background(), from, to)
	require.NoError(t, err)
	second, err := svc.Summary(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, "2025-05-01", first.Daily[0].Date)
	assert.True(t, second.SalesThisMonth.Equal(d("4200.5")))

	_, err = svc.Summary(context.Background(), to, from)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDashboardDrawsTrend(t *testing.T) {
	svc := NewService(&stubBackend{summary: sampleSummary()}, nil, nil, nil, "₵", nil)
	from, to := MonthToDate(fixedNow)

	dash, err := svc.Dashboard(context.Background(), from, to)
	require.NoError(t, err)
	assert.True(t, dash.PeriodTotal.Equal(d("4200.5")))
	assert.Contains(t, string(dash.Chart), "<svg")
	assert.Contains(t, string(dash.Chart), "01 May")

	empty, err := NewService(&stubBackend{}, nil, nil, nil, "₵", nil).Dashboard(context.Background(), from, to)
	require.NoError(t, err)
	assert.Empty(t, empty.Chart)
}

func TestGenerateAndFallBackToStoredSummary(t *testing.T) {
	client := newRedis(t)
	backend := &stubBackend{summary: sampleSummary()}
	svc := NewService(backend, stubBranding{}, nil, NewSummaryStore(client), "₵", nil)

	text, err := svc.GenerateDailySummary(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Contains(t, text, "Sales today: ₵ 250.00")

	backend.err = apiclient.ErrNetwork
	daily, err := svc.DailySummary(context.Background(), fixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, daily.Stale)
	assert.Equal(t, text, daily.Text)
	assert.True(t, daily.GeneratedAt.Equal(fixedNow))
}

func TestDailySummaryWithoutStoreFails(t *testing.T) {
	svc := NewService(&stubBackend{err: apiclient.ErrNetwork}, nil, nil, NewSummaryStore(newRedis(t)), "₵", nil)

	_, err := svc.DailySummary(context.Background(), fixedNow)
	assert.ErrorIs(t, err, apiclient.ErrNetwork)
}

func newReportsRouter(t *testing.T, backend *stubBackend, user *shared.Principal) http.Handler {
	t.Helper()
	templates, err := view.NewEngine("₵")
	require.NoError(t, err)
	handler := NewHandler(nil, NewService(backend, stubBranding{}, nil, nil, "₵", nil), templates, shared.NewCSRFManager("secret"))
	handler.SetClockForTest(func() time.Time { return fixedNow })
	sess := &shared.Session{ID: "sess-reports"}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithSession(req.Context(), sess)
			if user != nil {
				ctx = shared.ContextWithPrincipal(ctx, user)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/", handler.Home)
	r.Route("/reports", handler.MountRoutes)
	return r
}

func serve(router http.Handler, path string) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	return res
}

func TestHomePage(t *testing.T) {
	backend := &stubBackend{summary: sampleSummary()}

	res := serve(newReportsRouter(t, backend, nil), "/")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `href="/auth/login"`)
	assert.Zero(t, backend.calls)

	user := &shared.Principal{Username: "cecy", FullName: "Cecilia", Role: shared.RoleCashier}
	res = serve(newReportsRouter(t, backend, user), "/")
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Cecilia")
	assert.Contains(t, body, "₵ 38,950.00")
	assert.Contains(t, body, "*Ateasefuor Limited – Daily Sales Summary* (2025-05-17)")
}

func TestDashboardPage(t *testing.T) {
	user := &shared.Principal{Username: "gerty", Role: shared.RoleAdmin}
	router := newReportsRouter(t, &stubBackend{summary: sampleSummary()}, user)

	res := serve(router, "/reports/dashboard")
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `value="2025-05-01"`)
	assert.Contains(t, body, "₵ 4,200.50")
	assert.Contains(t, body, "<svg")

	res = serve(router, "/reports/dashboard?from=2025-05-20&to=2025-05-01")
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "From date cannot be after To date.")

	res = serve(newReportsRouter(t, &stubBackend{err: apiclient.ErrNetwork}, user), "/reports/dashboard")
	assert.Equal(t, http.StatusBadGateway, res.Code)
	assert.Contains(t, res.Body.String(), "Could not load sales summary")
}
