// Package auth enforces optional Bearer token authentication on the API.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/hamsat/skytrack/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// Probes, metrics and the public sky feed stay open even when auth is on;
// everything else requires the configured token.
func isExempt(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return strings.HasPrefix(path, "/api/v1/sky")
}

// authorized reports whether the request carries the configured Bearer
// token. The comparison is constant-time so the token cannot be probed
// byte by byte.
func authorized(r *http.Request, token string) bool {
	presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Enabled && !isExempt(r.URL.Path) && !authorized(r, cfg.Token) {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
