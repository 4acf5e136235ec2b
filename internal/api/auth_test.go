package api

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewarePassesThroughWhenNoAPIKey(t *testing.T) {
	h := authMiddleware("", logger.New(slog.LevelError), okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	h := authMiddleware("secret", logger.New(slog.LevelError), okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	h := authMiddleware("secret", logger.New(slog.LevelError), okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareAcceptsAPIKeyHeader(t *testing.T) {
	h := authMiddleware("secret", logger.New(slog.LevelError), okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareAllowsPublicHealthPath(t *testing.T) {
	h := authMiddleware("secret", logger.New(slog.LevelError), okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractTokenPrefersBearerOverAPIKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer one")
	req.Header.Set("X-API-Key", "two")
	require.Equal(t, "one", extractToken(req))
}

func TestExtractTokenFallsBackToQueryParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?token=three", nil)
	require.Equal(t, "three", extractToken(req))
}

func TestTokenValidRejectsEmpty(t *testing.T) {
	require.False(t, tokenValid("", "secret"))
	require.False(t, tokenValid("secret", ""))
	require.True(t, tokenValid("secret", "secret"))
	require.False(t, tokenValid("wrong", "secret"))
}
