package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marvenixx/pos-console/internal/auth"
	"github.com/marvenixx/pos-console/internal/shared"
	"github.com/marvenixx/pos-console/internal/view"
	_ "github.com/marvenixx/pos-console/testing"
)

type recordingCarts struct {
	deleted []string
}

func (r *recordingCarts) Delete(_ context.Context, sessionID string) error {
	r.deleted = append(r.deleted, sessionID)
	return nil
}

func staff(t *testing.T) []auth.StaffUser {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return []auth.StaffUser{{Username: "ama", FullName: "Ama Owusu", Role: shared.RoleCashier, PasswordHash: string(hashed)}}
}

func newAuthHandler(t *testing.T) (*auth.Handler, *shared.SessionManager, *recordingCarts) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine("₵")
	require.NoError(t, err)
	carts := &recordingCarts{}
	handler := auth.NewHandler(nil, auth.NewService(staff(t)), templates, sessionManager, csrfManager, carts)
	return handler, sessionManager, carts
}

func serve(t *testing.T, sm *shared.SessionManager, req *http.Request, fn http.HandlerFunc) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	fn(res, req)
	require.NoError(t, sm.Commit(ctx, res, req, sess))
	return res, sess
}

func loginRequest(values url.Values, cookie string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "test_session", Value: cookie})
	}
	return req
}

func TestLoginPage(t *testing.T) {
	handler, sessionManager, _ := newAuthHandler(t)

	res, sess := serve(t, sessionManager, httptest.NewRequest(http.MethodGet, "/auth/login?next=/pos", nil), handler.ShowLoginForTest)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	assert.Contains(t, res.Body.String(), `value="/pos"`)
	assert.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler, sessionManager, _ := newAuthHandler(t)
	_, sess := serve(t, sessionManager, httptest.NewRequest(http.MethodGet, "/auth/login", nil), handler.ShowLoginForTest)

	values := url.Values{"username": {"ama"}, "password": {"wrongpass"}, "csrf_token": {sess.Get(shared.CSRFSessionKey)}}
	res, loaded := serve(t, sessionManager, loginRequest(values, sess.ID), handler.HandleLoginForTest)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid username or password.")
	assert.Empty(t, loaded.User())
}

func TestLoginValidationErrors(t *testing.T) {
	handler, sessionManager, _ := newAuthHandler(t)

	res, _ := serve(t, sessionManager, loginRequest(url.Values{}, ""), handler.HandleLoginForTest)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Username is required.")
}

func TestLoginSuccessRenewsSession(t *testing.T) {
	handler, sessionManager, _ := newAuthHandler(t)
	_, sess := serve(t, sessionManager, httptest.NewRequest(http.MethodGet, "/auth/login", nil), handler.ShowLoginForTest)
	original := sess.ID

	values := url.Values{"username": {"AMA"}, "password": {"correctpass"}, "next": {"/pos"}}
	res, loaded := serve(t, sessionManager, loginRequest(values, original), handler.HandleLoginForTest)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/pos", res.Header().Get("Location"))
	assert.Equal(t, "ama", loaded.User())
	assert.NotEqual(t, original, loaded.ID)

	// The renewed session is reachable under its new id only.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: loaded.ID})
	again, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ama", again.User())

	stale := httptest.NewRequest(http.MethodGet, "/", nil)
	stale.AddCookie(&http.Cookie{Name: "test_session", Value: original})
	old, err := sessionManager.Load(context.Background(), stale)
	require.NoError(t, err)
	assert.Empty(t, old.User())
	assert.NotEqual(t, original, old.ID)
}

func TestLoginRejectsOffsiteNext(t *testing.T) {
	handler, sessionManager, _ := newAuthHandler(t)
	values := url.Values{"username": {"ama"}, "password": {"correctpass"}, "next": {"//evil.example"}}
	res, _ := serve(t, sessionManager, loginRequest(values, ""), handler.HandleLoginForTest)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
}

func TestLogoutDiscardsCart(t *testing.T) {
	handler, sessionManager, carts := newAuthHandler(t)
	_, sess := serve(t, sessionManager, httptest.NewRequest(http.MethodGet, "/auth/login", nil), handler.ShowLoginForTest)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: sess.ID})
	res, _ := serve(t, sessionManager, req, handler.HandleLogoutForTest)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, []string{sess.ID}, carts.deleted)
}

func TestMiddleware(t *testing.T) {
	service := auth.NewService(staff(t))
	mw := auth.Middleware{Service: service}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := mw.LoadPrincipal(mw.RequireLogin(ok))
	adminOnly := mw.LoadPrincipal(mw.RequireRole(shared.RoleAdmin)(ok))

	anonymous := httptest.NewRequest(http.MethodGet, "/pos?q=cola", nil)
	anonymous = anonymous.WithContext(shared.ContextWithSession(anonymous.Context(), &shared.Session{ID: "s1"}))
	res := httptest.NewRecorder()
	protected.ServeHTTP(res, anonymous)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login?next=%2Fpos%3Fq%3Dcola", res.Header().Get("Location"))

	jsonReq := httptest.NewRequest(http.MethodGet, "/pos/api/cart", nil)
	jsonReq.Header.Set("Accept", "application/json")
	res = httptest.NewRecorder()
	protected.ServeHTTP(res, jsonReq)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	sess := &shared.Session{ID: "s2"}
	sess.SetUser("ama")
	signedIn := httptest.NewRequest(http.MethodGet, "/pos", nil)
	signedIn = signedIn.WithContext(shared.ContextWithSession(signedIn.Context(), sess))

	res = httptest.NewRecorder()
	protected.ServeHTTP(res, signedIn)
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = httptest.NewRecorder()
	adminOnly.ServeHTTP(res, signedIn)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestLoadPrincipalDropsUnknownUser(t *testing.T) {
	mw := auth.Middleware{Service: auth.NewService(nil)}
	sess := &shared.Session{ID: "s3"}
	sess.SetUser("ghost")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	var principal *shared.Principal
	mw.LoadPrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = shared.PrincipalFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), req)

	assert.Nil(t, principal)
	assert.Empty(t, sess.User())
}

func TestParseStaffUsers(t *testing.T) {
	users, err := auth.ParseStaffUsers(" admin:Kwame Mensah:admin:$2a$10$abc ; ama:Ama Owusu:CASHIER:$2a$10$def;")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Kwame Mensah", users[0].FullName)
	assert.Equal(t, shared.RoleCashier, users[1].Role)
	assert.Equal(t, "$2a$10$def", users[1].PasswordHash)

	_, err = auth.ParseStaffUsers("bob:Bob:owner:$2a$10$x")
	assert.Error(t, err)
	_, err = auth.ParseStaffUsers("bob:Bob")
	assert.Error(t, err)
	_, err = auth.ParseStaffUsers("bob:B:admin:h;BOB:B:admin:h")
	assert.Error(t, err)

	users, err = auth.ParseStaffUsers("")
	require.NoError(t, err)
	assert.Empty(t, users)
}
