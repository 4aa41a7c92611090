package main

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/aigateway/aigateway/internal/auth"
	"github.com/aigateway/aigateway/internal/config"
	"github.com/aigateway/aigateway/internal/metrics"
	"github.com/aigateway/aigateway/internal/observability"
	apperrors "github.com/aigateway/aigateway/pkg/errors"
)

// buildMiddlewareStack composes the outer middleware chain. Order matters:
// CORS runs first so preflights never hit auth, the request ID middleware
// runs before anything that logs or writes errors.
func buildMiddlewareStack(cfg *config.Config, logger *slog.Logger) func(http.Handler) http.Handler {
	authMiddleware := auth.NewMiddleware(auth.MiddlewareConfig{
		APIKeys:   cfg.Auth.APIKeys,
		Logger:    logger,
		SkipPaths: []string{"/healthz", cfg.Metrics.Path},
	})
	if cfg.Auth.Enabled() {
		logger.Info("API key authentication enabled", "keys", len(cfg.Auth.APIKeys))
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimit.RequestsPerMinute)/60.0), cfg.RateLimit.BurstSize)
		logger.Info("rate limiting enabled",
			"requests_per_minute", cfg.RateLimit.RequestsPerMinute,
			"burst", cfg.RateLimit.BurstSize)
	}

	return func(next http.Handler) http.Handler {
		handler := next
		handler = rateLimitMiddleware(limiter, handler)
		handler = authMiddleware.Authenticate(handler)
		handler = metrics.Middleware(handler)
		handler = observability.RequestIDMiddleware(handler)
		handler = securityHeadersMiddleware(handler)
		handler = corsMiddleware(cfg.CORS, handler)
		return handler
	}
}

func corsMiddleware(cfg config.CORSConfig, next http.Handler) http.Handler {
	allowAll := false
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowOrigin := ""
		if allowAll {
			allowOrigin = "*"
		} else {
			for _, o := range cfg.AllowedOrigins {
				if strings.EqualFold(o, origin) {
					allowOrigin = origin
					break
				}
			}
		}
		if allowOrigin == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if allowOrigin != "*" {
			w.Header().Add("Vary", "Origin")
		}

		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware applies a global token bucket. A nil limiter disables
// limiting.
func rateLimitMiddleware(limiter *rate.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			appErr := apperrors.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(appErr.HTTPStatusCode())
			_ = json.NewEncoder(w).Encode(appErr.Payload())
			return
		}
		next.ServeHTTP(w, r)
	})
}
