// Package http provides the inbound HTTP transport adapter for the
// gateway's downstream MCP surface: the /health and /metrics endpoints
// and the request-metrics middleware wrapped around the streamable-HTTP
// MCP handler built by internal/adapter/inbound/mcpserver.
//
// # Endpoints
//
//	POST/GET/DELETE /mcp - Streamable HTTP MCP transport (mcpserver package)
//	GET /health          - Catalog-backed liveness/readiness check
//	GET /metrics         - Prometheus exposition
//
// /health and /metrics are excluded from MetricsMiddleware's own
// bookkeeping so scraping them doesn't perturb the request metrics it
// records for the MCP surface.
package http
