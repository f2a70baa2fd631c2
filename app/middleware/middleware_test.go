package appMiddleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/minimarket-auth/config"
	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

var testJWT = config.JWTConfig{
	SecretKey: "test-access-secret",
	Issuer:    "test-issuer",
	Audience:  "authenticated",
}

func signToken(t *testing.T, secret string, claims types.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(subject string) types.Claims {
	return types.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    testJWT.Issuer,
			Audience:  jwt.ClaimStrings{testJWT.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	role, _ := GetUserRoleFromContext(r.Context())
	_, _ = w.Write([]byte(userID + "|" + role))
}

func TestAuthenticate(t *testing.T) {
	h := Authenticate(slog.Default(), testJWT)(http.HandlerFunc(echoUser))

	t.Run("Success", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/ghosts", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testJWT.SecretKey, validClaims("user-1")))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1|", w.Body.String())
	})

	t.Run("MissingHeader", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("WrongScheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "another-secret", validClaims("user-1")))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid token signature")
	})

	t.Run("Expired", func(t *testing.T) {
		claims := validClaims("user-1")
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testJWT.SecretKey, claims))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Token has expired")
	})

	t.Run("WrongAudience", func(t *testing.T) {
		claims := validClaims("user-1")
		claims.Audience = jwt.ClaimStrings{"somebody-else"}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testJWT.SecretKey, claims))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("NoSubject", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testJWT.SecretKey, validClaims("")))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	roles := map[string]string{"admin-id": types.RoleAdmin, "user-id": types.RoleUser}
	resolve := func(ctx context.Context, userID string) (string, error) {
		if userID == "broken-id" {
			return "", errors.New("connection refused")
		}
		role, ok := roles[userID]
		if !ok {
			return "", types.ErrNotFound
		}
		return role, nil
	}
	h := RequireRole(slog.Default(), resolve, types.RoleAdmin)(http.HandlerFunc(echoUser))

	serve := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if userID != "" {
			req = req.WithContext(context.WithValue(req.Context(), UserIDKey, userID))
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := serve("admin-id")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-id|admin", w.Body.String())

	assert.Equal(t, http.StatusForbidden, serve("user-id").Code)
	assert.Equal(t, http.StatusForbidden, serve("ghost-id").Code)
	assert.Equal(t, http.StatusBadGateway, serve("broken-id").Code)
	assert.Equal(t, http.StatusUnauthorized, serve("").Code)
}

func TestNoCache(t *testing.T) {
	w := httptest.NewRecorder()
	NoCache(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", w.Header().Get("Cache-Control"))
}

func TestAuthenticatePanicsWithoutSecret(t *testing.T) {
	assert.Panics(t, func() { Authenticate(slog.Default(), config.JWTConfig{}) })
}
