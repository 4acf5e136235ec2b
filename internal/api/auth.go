// API authentication middleware — static bearer token.
//
// When an api key is configured, every request must carry:
//
//	Authorization: Bearer <api_key>
//
// or:
//
//	X-API-Key: <api_key>
//
// Exempt routes: GET /api/v1/health. WebSocket upgrades fall back to
// ?token=<api_key> since browsers can't set headers on ws:// requests.
//
// Grounded directly on pkg/api/auth.go's authMiddleware/extractToken/
// tokenValid/isPublicPath, generalized from one fixed public-path set
// to the docflow route table.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/docflow/docflow/internal/logger"
)

func authMiddleware(apiKey string, log *logger.Logger, next http.Handler) http.Handler {
	if apiKey == "" {
		log.WarnC("auth", "API auth DISABLED — no api key configured")
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if !tokenValid(extractToken(r), apiKey) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="docflow"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return ""
}

func tokenValid(provided, expected string) bool {
	if provided == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

func isPublicPath(path string) bool {
	return path == "/api/v1/health"
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
