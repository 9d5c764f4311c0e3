package synthesizer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/codemode-gw/codemode/internal/domain/catalog"
)

func buildCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	b := catalog.NewBuilder()
	err := b.AddUpstream(
		catalog.UpstreamDescriptor{Name: "gdrive", URL: "https://gdrive.example/mcp"},
		[]catalog.ToolDescriptor{
			{
				Name:        "getSheet",
				Description: "Fetch a spreadsheet by id",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"sheetId":{"type":"string"}},"required":["sheetId"]}`),
			},
		},
		catalog.StatusConnected,
	)
	if err != nil {
		t.Fatalf("AddUpstream: %v", err)
	}
	return b.Build()
}

func TestRenderDeclarations_CatalogRenderScenario(t *testing.T) {
	cat := buildCatalog(t)
	got := RenderDeclarations(cat)

	want := "declare namespace gdrive {\n" +
		"  /** Fetch a spreadsheet by id */\n" +
		"  function getSheet(args: { sheetId: string; [key: string]: any; }): Promise<any>;\n" +
		"}\n"

	if got != want {
		t.Errorf("RenderDeclarations() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderDeclarations_Idempotent(t *testing.T) {
	cat := buildCatalog(t)
	first := RenderDeclarations(cat)
	second := RenderDeclarations(cat)
	if first != second {
		t.Errorf("RenderDeclarations is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestRenderDeclarations_CanonicalOrdering(t *testing.T) {
	b := catalog.NewBuilder()
	_ = b.AddUpstream(catalog.UpstreamDescriptor{Name: "zeta", URL: "https://z.example/mcp"}, nil, catalog.StatusConnected)
	_ = b.AddUpstream(catalog.UpstreamDescriptor{Name: "alpha", URL: "https://a.example/mcp"}, nil, catalog.StatusConnected)
	cat := b.Build()

	got := RenderDeclarations(cat)
	alphaIdx := strings.Index(got, "declare namespace alpha")
	zetaIdx := strings.Index(got, "declare namespace zeta")
	if alphaIdx == -1 || zetaIdx == -1 || alphaIdx > zetaIdx {
		t.Errorf("expected alpha namespace before zeta, got:\n%s", got)
	}
}

func TestSignature(t *testing.T) {
	tool := catalog.ToolDescriptor{
		Name:        "getSheet",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"sheetId":{"type":"string"}},"required":["sheetId"]}`),
	}
	got := Signature("gdrive", tool)
	want := "function gdrive.getSheet(args: { sheetId: string; [key: string]: any; }): Promise<any>"
	if got != want {
		t.Errorf("Signature() = %q, want %q", got, want)
	}
}

func TestFQNameRoundTrip(t *testing.T) {
	fq := FQName("gdrive", "getSheet")
	if fq != "gdrive.getSheet" {
		t.Fatalf("FQName() = %q", fq)
	}
	ns, fn, ok := SplitFQName(fq)
	if !ok || ns != "gdrive" || fn != "getSheet" {
		t.Errorf("SplitFQName(%q) = (%q, %q, %v)", fq, ns, fn, ok)
	}
}

func TestSplitFQName_Invalid(t *testing.T) {
	tests := []string{"", "noDot", ".leadingDot", "trailingDot."}
	for _, fq := range tests {
		if _, _, ok := SplitFQName(fq); ok {
			t.Errorf("SplitFQName(%q) expected ok=false", fq)
		}
	}
}
