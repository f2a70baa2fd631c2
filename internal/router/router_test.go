package router_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/minimarket-auth/config"
	"github.com/FACorreiaa/minimarket-auth/internal/api/identity"
	"github.com/FACorreiaa/minimarket-auth/internal/api/user"
	"github.com/FACorreiaa/minimarket-auth/internal/container"
	"github.com/FACorreiaa/minimarket-auth/internal/router"
)

func newRouter(t *testing.T, secret string) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT = config.JWTConfig{SecretKey: secret, AccessTokenTTL: time.Hour}
	cfg.CORS.AllowedOrigins = []string{"http://shop.test"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := container.Wire(cfg, logger, identity.NewMemoryStore(nil), user.NewMemoryProfileRepo(), nil, nil)
	return router.SetupRouter(c.RouterConfig())
}

func TestPingAndHeaders(t *testing.T) {
	r := newRouter(t, "secret")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Mini Market API is running", w.Body.String())
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", w.Header().Get("Cache-Control"))
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(t, "secret")

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://shop.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://shop.test", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://evil.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminRoutes(t *testing.T) {
	t.Run("RequireToken", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(t, "secret").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/ghosts", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("NotMountedWithoutSecret", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(t, "").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/ghosts", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUnknownMethod(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(t, "secret").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/register", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
