// Package outbound defines the outbound port interfaces the core depends on:
// the per-upstream MCP client, credential resolution, and config loading.
package outbound

import (
	"context"
	"encoding/json"

	"github.com/codemode-gw/codemode/internal/domain/catalog"
)

// ToolCallResult is the routed result of a call_tool, carrying both the
// MCP content envelope and, when the upstream provided one, the
// structured/typed result.
type ToolCallResult struct {
	Content           json.RawMessage
	StructuredContent json.RawMessage
}

// MCPClient speaks JSON-RPC 2.0 to one upstream MCP server over HTTP (spec
// §4.1). Implementations must tolerate concurrent in-flight calls on one
// session id, and must re-query the CredentialProvider per request rather
// than caching headers, so credential rotation is transparent.
type MCPClient interface {
	// Initialize performs the MCP initialize handshake, caching the
	// returned session id and protocol version for subsequent requests.
	Initialize(ctx context.Context) error

	// ListTools returns the upstream's advertised tools. Returns an empty
	// slice, not an error, if the upstream does not support tools/list.
	ListTools(ctx context.Context) ([]catalog.ToolDescriptor, error)

	// CallTool invokes one tool by name with JSON-encoded arguments. On a
	// JSON-RPC error response, returns an *UpstreamError unchanged so the
	// sandbox can surface the upstream's message verbatim.
	CallTool(ctx context.Context, name string, argumentsJSON json.RawMessage) (ToolCallResult, error)

	// Close performs orderly shutdown, issuing DELETE /mcp when a session
	// is active.
	Close(ctx context.Context) error
}

// ClientFactory constructs an MCPClient for one upstream descriptor.
type ClientFactory func(desc catalog.UpstreamDescriptor) MCPClient
