// Package auth provides static bearer key authentication middleware.
package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/aigateway/aigateway/internal/observability"
	apperrors "github.com/aigateway/aigateway/pkg/errors"
)

// Middleware validates bearer API keys on incoming requests.
type Middleware struct {
	keys      []string
	logger    *slog.Logger
	skipPaths map[string]bool
	enabled   bool
}

// MiddlewareConfig contains configuration for the auth middleware.
type MiddlewareConfig struct {
	// APIKeys is the set of accepted bearer keys. Empty disables auth.
	APIKeys []string

	Logger *slog.Logger

	// SkipPaths are exempt from authentication (e.g. /healthz, /metrics).
	SkipPaths []string
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(cfg MiddlewareConfig) *Middleware {
	skipPaths := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		keys:      cfg.APIKeys,
		logger:    logger,
		skipPaths: skipPaths,
		enabled:   len(cfg.APIKeys) > 0,
	}
}

// Authenticate returns an HTTP middleware that validates bearer keys.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled || m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		key, ok := parseBearer(r.Header.Get("Authorization"))
		if !ok {
			m.writeUnauthorized(w, r, "Missing or malformed Authorization header")
			return
		}
		if !m.keyAccepted(key) {
			m.writeUnauthorized(w, r, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// keyAccepted compares the presented key against every configured key in
// constant time.
func (m *Middleware) keyAccepted(key string) bool {
	accepted := false
	for _, k := range m.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			accepted = true
		}
	}
	return accepted
}

func (m *Middleware) writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	m.logger.WarnContext(r.Context(), "request rejected", "path", r.URL.Path, "reason", message)

	appErr := apperrors.NewAuthError(message)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	if rid := observability.RequestIDFromContext(r.Context()); rid != "" {
		observability.SetRequestIDHeaders(w.Header(), rid)
	}
	w.WriteHeader(appErr.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(appErr.Payload())
}

// parseBearer extracts the key from a "Bearer <key>" header value.
func parseBearer(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	key := strings.TrimSpace(parts[1])
	if key == "" {
		return "", false
	}
	return key, true
}
