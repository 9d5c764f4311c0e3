// Package mcpclient implements the outbound MCPClient port: JSON-RPC 2.0
// framed over HTTP POST to one upstream's /mcp endpoint (spec §4.1, §6).
package mcpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/codemode-gw/codemode/internal/domain/catalog"
	"github.com/codemode-gw/codemode/internal/port/outbound"
)

// clientState tracks the session lifecycle.
type clientState int

const (
	stateNew clientState = iota
	stateInitialized
	stateClosed
)

const (
	// maxResponseBodySize bounds reads from the upstream to prevent OOM
	// from a malicious or misbehaving upstream.
	maxResponseBodySize = 10 * 1024 * 1024

	// retryBackoffMin/Max bound the single network-layer retry's jitter
	// (spec §4.1: "at most one retry ... with a 200-500ms backoff").
	retryBackoffMin = 200 * time.Millisecond
	retryBackoffMax = 500 * time.Millisecond

	protocolVersion = "2025-06-18"
)

// HTTPClient implements outbound.MCPClient over the MCP streamable-HTTP
// transport. One HTTPClient instance owns at most one live session id for
// its upstream; it re-queries the CredentialProvider on every request so
// credential rotation is transparent.
type HTTPClient struct {
	upstreamName string
	endpoint     string
	httpClient   *http.Client
	credentials  outbound.CredentialProvider

	mu        sync.Mutex
	sessionID string
	state     clientState
	nextID    int64
}

// New creates an HTTPClient for the given upstream descriptor. credentials
// may be nil, in which case no auth headers are injected. The descriptor's
// AuthHeaders field is not read; auth headers come only from credentials.
func New(desc catalog.UpstreamDescriptor, credentials outbound.CredentialProvider) *HTTPClient {
	return &HTTPClient{
		upstreamName: desc.Name,
		endpoint:     desc.URL,
		credentials:  credentials,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Initialize performs the MCP initialize handshake.
func (c *HTTPClient) Initialize(ctx context.Context) error {
	_, err := c.call(ctx, "initialize", initializeParams())
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state = stateInitialized
	c.mu.Unlock()
	return nil
}

func initializeParams() json.RawMessage {
	params, _ := json.Marshal(map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "codemode-gw", "version": protocolVersion},
	})
	return params
}

// ListTools returns the upstream's advertised tools, converted to
// catalog.ToolDescriptor. Returns an empty slice if tools/list is
// unsupported (a JSON-RPC "method not found" response).
func (c *HTTPClient) ListTools(ctx context.Context) ([]catalog.ToolDescriptor, error) {
	result, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		var upErr *outbound.UpstreamError
		if errors.As(err, &upErr) && upErr.Code == -32601 {
			return nil, nil
		}
		return nil, err
	}

	var payload struct {
		Tools []struct {
			Name         string          `json:"name"`
			Title        string          `json:"title"`
			Description  string          `json:"description"`
			InputSchema  json.RawMessage `json:"inputSchema"`
			OutputSchema json.RawMessage `json:"outputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, &outbound.UpstreamProtocolError{Upstream: c.upstreamName, Cause: err}
	}

	tools := make([]catalog.ToolDescriptor, 0, len(payload.Tools))
	for _, t := range payload.Tools {
		tools = append(tools, catalog.ToolDescriptor{
			Name:         t.Name,
			Title:        t.Title,
			Description:  t.Description,
			InputSchema:  t.InputSchema,
			OutputSchema: t.OutputSchema,
		})
	}
	return tools, nil
}

// CallTool invokes a tools/call request and routes the result.content and
// structuredContent fields back to the caller.
func (c *HTTPClient) CallTool(ctx context.Context, name string, argumentsJSON json.RawMessage) (outbound.ToolCallResult, error) {
	if len(argumentsJSON) == 0 {
		argumentsJSON = json.RawMessage(`{}`)
	}
	params, err := json.Marshal(map[string]any{
		"name":      name,
		"arguments": json.RawMessage(argumentsJSON),
	})
	if err != nil {
		return outbound.ToolCallResult{}, fmt.Errorf("marshal tools/call params: %w", err)
	}

	result, err := c.call(ctx, "tools/call", params)
	if err != nil {
		return outbound.ToolCallResult{}, err
	}

	var payload struct {
		Content           json.RawMessage `json:"content"`
		StructuredContent json.RawMessage `json:"structuredContent"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return outbound.ToolCallResult{}, &outbound.UpstreamProtocolError{Upstream: c.upstreamName, Cause: err}
	}
	return outbound.ToolCallResult{Content: payload.Content, StructuredContent: payload.StructuredContent}, nil
}

// Close issues DELETE /mcp when a session is active.
func (c *HTTPClient) Close(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.state = stateClosed
	c.mu.Unlock()

	if sessionID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Mcp-Session-Id", sessionID)
	c.applyAuthHeaders(ctx, req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil // best-effort shutdown, never fail the caller
	}
	_ = resp.Body.Close()
	return nil
}

// call sends one JSON-RPC request, applying the single network-layer retry
// and the single session-id-4xx reinitialize-then-retry (spec §4.1: "session-
// id 4xx triggers exactly one initialize + retry").
func (c *HTTPClient) call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	resp, err := c.doCall(ctx, method, params)
	if err == nil {
		return resp, nil
	}

	var unavailable *outbound.UpstreamUnavailable
	if errors.As(err, &unavailable) {
		select {
		case <-time.After(retryBackoffMin + time.Duration(time.Now().UnixNano()%int64(retryBackoffMax-retryBackoffMin))):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return c.doCall(ctx, method, params)
	}

	var expired *outbound.SessionExpired
	if errors.As(err, &expired) && method != "initialize" {
		if _, initErr := c.doCall(ctx, "initialize", initializeParams()); initErr != nil {
			return nil, initErr
		}
		c.mu.Lock()
		c.state = stateInitialized
		c.mu.Unlock()
		return c.doCall(ctx, method, params)
	}
	return nil, err
}

func (c *HTTPClient) doCall(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	c.mu.Lock()
	c.nextID++
	id, _ := jsonrpc.MakeID(c.nextID)
	c.mu.Unlock()

	request := &jsonrpc.Request{ID: id, Method: method, Params: params}
	body, err := jsonrpc.EncodeMessage(request)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	httpReq.Header.Set("MCP-Protocol-Version", protocolVersion)

	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()
	if sessionID != "" {
		httpReq.Header.Set("Mcp-Session-Id", sessionID)
	}
	c.applyAuthHeaders(ctx, httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &outbound.UpstreamUnavailable{Upstream: c.upstreamName, Cause: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	if sid := httpResp.Header.Get("Mcp-Session-Id"); sid != "" {
		c.mu.Lock()
		c.sessionID = sid
		c.mu.Unlock()
	}

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &outbound.UpstreamUnavailable{Upstream: c.upstreamName, Cause: err}
	}

	if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 {
		// Session-id 4xx: discard the session and signal call() to
		// re-initialize and retry once (spec §4.1). respBody is ignored here
		// even when it happens to carry a JSON-RPC error body: the session is
		// gone either way, and the retried call is what gets a real result.
		c.mu.Lock()
		c.sessionID = ""
		c.mu.Unlock()
		return nil, &outbound.SessionExpired{Upstream: c.upstreamName, StatusCode: httpResp.StatusCode}
	}
	if httpResp.StatusCode >= 500 {
		return nil, &outbound.UpstreamUnavailable{Upstream: c.upstreamName, Cause: fmt.Errorf("http %d", httpResp.StatusCode)}
	}

	decoded, err := jsonrpc.DecodeMessage(respBody)
	if err != nil {
		return nil, &outbound.UpstreamProtocolError{Upstream: c.upstreamName, Cause: err}
	}
	response, ok := decoded.(*jsonrpc.Response)
	if !ok {
		return nil, &outbound.UpstreamProtocolError{Upstream: c.upstreamName, Cause: fmt.Errorf("expected response, got %T", decoded)}
	}
	if response.Error != nil {
		return nil, &outbound.UpstreamError{Code: int(response.Error.Code), Message: response.Error.Message}
	}
	return response.Result, nil
}

// applyAuthHeaders merges the CredentialProvider's current headers for this
// upstream into the outgoing request. Re-queried on every call so rotated
// credentials take effect without client restart.
func (c *HTTPClient) applyAuthHeaders(ctx context.Context, req *http.Request) {
	if c.credentials == nil {
		return
	}
	headers, err := c.credentials.HeadersFor(ctx, c.upstreamName)
	if err != nil {
		return
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

var _ outbound.MCPClient = (*HTTPClient)(nil)
