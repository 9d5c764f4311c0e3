package synthesizer

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/codemode-gw/codemode/internal/domain/catalog"
)

// Cache memoizes RenderDeclarations output, keyed by a fast hash of the
// catalog's content rather than catalog identity, so a refreshed Catalog
// whose upstreams/tools are unchanged (a no-op discovery cycle) reuses the
// previous rendering instead of re-walking every schema.
type Cache struct {
	mu    sync.Mutex
	key   uint64
	valid bool
	text  string
}

// NewCache creates an empty declaration cache.
func NewCache() *Cache {
	return &Cache{}
}

// Render returns the cached declaration text for cat, computing and storing
// it on a cache miss.
func (c *Cache) Render(cat *catalog.Catalog) string {
	key := contentKey(cat)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.key == key {
		return c.text
	}
	c.text = RenderDeclarations(cat)
	c.key = key
	c.valid = true
	return c.text
}

// contentKey hashes the catalog's canonical (name-sorted) upstream and tool
// names plus raw schema bytes, so identical catalogs always hash equal
// regardless of discovery order or pointer identity.
func contentKey(cat *catalog.Catalog) uint64 {
	h := xxhash.New()
	for _, up := range cat.Upstreams() {
		h.WriteString(up.Name)
		h.Write([]byte{0})
		tools, _ := cat.Tools(up.Name)
		for _, tool := range tools {
			h.WriteString(tool.Name)
			h.Write(tool.InputSchema)
			h.Write(tool.OutputSchema)
		}
		h.Write([]byte{0xff})
	}
	return h.Sum64()
}
