// Package observability provides structured logging, request ID propagation,
// and OpenTelemetry tracing for the gateway.
package observability

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader is the canonical HTTP header name for correlation IDs.
const RequestIDHeader = "X-Request-ID"

// requestIDHeaderLower mirrors the canonical header for clients that match
// header names case-sensitively.
const requestIDHeaderLower = "x-request-id"

const maxRequestIDLen = 128

// requestIDKey is the context key for request IDs.
type requestIDKey struct{}

// GenerateRequestID generates a new unique request ID.
func GenerateRequestID() string {
	return uuid.NewString()
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SetRequestIDHeaders writes the correlation ID under both the canonical and
// the lowercase header spelling. The lowercase entry is assigned into the
// header map directly so net/http does not re-canonicalize it.
func SetRequestIDHeaders(h http.Header, requestID string) {
	h.Set(RequestIDHeader, requestID)
	h[requestIDHeaderLower] = []string{requestID}
}

// RequestIDMiddleware attaches a correlation ID to every request. A valid
// client-supplied ID is honored, otherwise a fresh one is generated. The ID
// is echoed on the response and stored in the request context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if sanitized, ok := sanitizeRequestID(requestID); ok {
			requestID = sanitized
		} else {
			requestID = GenerateRequestID()
		}

		SetRequestIDHeaders(w.Header(), requestID)

		ctx := ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sanitizeRequestID(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxRequestIDLen {
		return "", false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return "", false
		}
	}
	return value, true
}
