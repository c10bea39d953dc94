package app

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marvenixx/pos-console/internal/shared"
)

func newStack(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	csrf := shared.NewCSRFManager("test-secret")
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Config:         &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		SessionManager: shared.NewSessionManager(client, "pos_session", time.Hour, false),
		CSRFManager:    csrf,
	}) {
		r.Use(mw)
	}
	r.Get("/token", func(w http.ResponseWriter, r *http.Request) {
		token, err := csrf.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
		require.NoError(t, err)
		_, _ = io.WriteString(w, token)
	})
	r.Post("/upload", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func fetchToken(t *testing.T, h http.Handler) (string, *http.Cookie, http.Header) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "pos_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	return rec.Body.String(), cookie, rec.Header()
}

func multipartBody(t *testing.T, token string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if token != "" {
		require.NoError(t, mw.WriteField(shared.CSRFFormField, token))
	}
	part, err := mw.CreateFormFile("logo", "logo.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSecurityHeadersAllowInlineStylesAndDataImages(t *testing.T) {
	_, _, header := fetchToken(t, newStack(t))

	assert.Equal(t, contentSecurityPolicy, header.Get("Content-Security-Policy"))
	assert.Equal(t, "DENY", header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", header.Get("X-Content-Type-Options"))
}

func TestCSRFAcceptsMultipartToken(t *testing.T) {
	h := newStack(t)
	token, cookie, _ := fetchToken(t, h)

	body, contentType := multipartBody(t, token)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRFRejectsMissingToken(t *testing.T) {
	h := newStack(t)
	_, cookie, _ := fetchToken(t, h)

	body, contentType := multipartBody(t, "")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("csrf_token=forged"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFAcceptsHeaderToken(t *testing.T) {
	h := newStack(t)
	token, cookie, _ := fetchToken(t, h)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", token)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
