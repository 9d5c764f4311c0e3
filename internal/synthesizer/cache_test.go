package synthesizer

import (
	"testing"

	"github.com/codemode-gw/codemode/internal/domain/catalog"
)

func TestCache_HitsOnUnchangedContent(t *testing.T) {
	cat := buildCatalog(t)
	c := NewCache()

	first := c.Render(cat)
	if !c.valid {
		t.Fatal("cache should be populated after first Render")
	}

	second := c.Render(cat)
	if first != second {
		t.Errorf("cached render differs: %q vs %q", first, second)
	}
}

func TestCache_MissesOnDifferentCatalog(t *testing.T) {
	c := NewCache()
	first := c.Render(buildCatalog(t))

	b := catalog.NewBuilder()
	_ = b.AddUpstream(catalog.UpstreamDescriptor{Name: "other", URL: "https://other.example/mcp"}, nil, catalog.StatusConnected)
	second := c.Render(b.Build())

	if first == second {
		t.Error("expected different catalogs to render differently")
	}
}
