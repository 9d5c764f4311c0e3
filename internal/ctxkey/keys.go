// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the request-scoped logger.
// internal/adapter/inbound/http.RequestLoggingMiddleware stores a
// request_id-enriched *slog.Logger under this key; LoggerFromContext in
// that same package retrieves it.
type LoggerKey struct{}
