package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/codemode-gw/codemode/internal/ctxkey"
)

// RequestLoggingMiddleware wraps an HTTP handler to attach a per-request
// logger, enriched with a generated request_id, to the request's context
// under ctxkey.LoggerKey. Downstream handlers call LoggerFromContext to
// retrieve it instead of threading a logger through call signatures.
func RequestLoggingMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			requestID := uuid.NewString()
			enriched := base.With("request_id", requestID)
			ctx := context.WithValue(r.Context(), ctxkey.LoggerKey{}, enriched)
			w.Header().Set("X-Request-Id", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext returns the request-scoped logger stashed by
// RequestLoggingMiddleware, or fallback if none is present (e.g. in tests
// that build a context directly).
func LoggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}
