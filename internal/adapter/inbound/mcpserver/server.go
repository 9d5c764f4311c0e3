// Package mcpserver is the downstream MCP server adapter: it exposes the
// gateway's three meta-tools (list_functions, get_function_details,
// execute) over the streamable-HTTP MCP transport, using the same SDK the
// upstream client's wire types borrow vocabulary from (spec §4.5, §4.1).
package mcpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codemode-gw/codemode/internal/port/inbound"
)

const serverInstructions = `This gateway exposes upstream MCP tools through a single TypeScript
execution surface instead of one downstream tool per upstream tool.

Call list_functions to see every available namespace.function pair.
Call get_function_details with one or more "namespace.function" names to
get each function's signature and JSDoc before writing code against it.
Call execute with a TypeScript snippet; inside it, invoke upstream tools as
plain async function calls, e.g. await weather.getForecast({ city: "nyc" }).
The snippet's default export (or its last top-level expression) becomes
return_value.`

// ListFunctionsArgs is empty: list_functions takes no arguments.
type ListFunctionsArgs struct{}

// GetFunctionDetailsArgs is get_function_details' request shape.
type GetFunctionDetailsArgs struct {
	Names []string `json:"names" jsonschema:"fully-qualified namespace.function names to describe"`
}

// ExecuteArgs is execute's request shape.
type ExecuteArgs struct {
	Code      string `json:"code" jsonschema:"TypeScript source to type-check and run"`
	TimeoutMs int    `json:"timeout_ms,omitempty" jsonschema:"execution deadline in milliseconds, clamped to [1,10000]; when omitted the configured execution.default_timeout applies (5s unless set)"`
}

// New builds the downstream MCP server wired to svc, and returns the
// http.Handler serving it over the streamable-HTTP transport.
func New(svc inbound.GatewayService, name, version string) http.Handler {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, &mcp.ServerOptions{
		Instructions: serverInstructions,
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_functions",
		Description: "List every namespace.function pair available for execute.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ ListFunctionsArgs) (*mcp.CallToolResult, []inbound.Namespace, error) {
		namespaces, err := svc.ListFunctions(ctx)
		if err != nil {
			return nil, nil, err
		}
		return nil, namespaces, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_function_details",
		Description: "Resolve namespace.function names to their TypeScript signature and docs.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args GetFunctionDetailsArgs) (*mcp.CallToolResult, []inbound.FunctionDetail, error) {
		details, err := svc.GetFunctionDetails(ctx, args.Names)
		if err != nil {
			return nil, nil, err
		}
		return nil, details, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "execute",
		Description: "Type-check and run a TypeScript snippet against the available upstream functions.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args ExecuteArgs) (*mcp.CallToolResult, inbound.ExecuteResult, error) {
		timeout := time.Duration(args.TimeoutMs) * time.Millisecond
		result, err := svc.Execute(ctx, args.Code, timeout)
		if err != nil {
			return nil, inbound.ExecuteResult{}, err
		}
		return nil, result, nil
	})

	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}
