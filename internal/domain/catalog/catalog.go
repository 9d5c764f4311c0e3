package catalog

import (
	"fmt"
	"sort"
	"time"
)

// Catalog is an immutable mapping from upstream name to its descriptor and
// tool set. Once built, a Catalog value is never mutated; refreshes build a
// new Catalog and the holder swaps an atomic pointer to it (see Store),
// giving in-flight executions stable snapshot isolation.
type Catalog struct {
	entries []upstreamEntry
	byName  map[string]int
}

// Builder accumulates upstreams and their tools, fail-fast validating
// identifiers as they are registered, then produces an immutable Catalog.
type Builder struct {
	entries []upstreamEntry
	byName  map[string]int
	err     error
}

// NewBuilder creates an empty catalog Builder.
func NewBuilder() *Builder {
	return &Builder{byName: make(map[string]int)}
}

// AddUpstream registers an upstream and its discovered tools. Returns an
// error (and fails fast) if the upstream name is invalid, duplicated, or any
// tool name is invalid or duplicated within the upstream.
func (b *Builder) AddUpstream(desc UpstreamDescriptor, tools []ToolDescriptor, status ConnectionStatus) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if _, exists := b.byName[desc.Name]; exists {
		return fmt.Errorf("upstream %q is already registered", desc.Name)
	}

	toolByName := make(map[string]int, len(tools))
	for i, t := range tools {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("upstream %q: %w", desc.Name, err)
		}
		if _, dup := toolByName[t.Name]; dup {
			return fmt.Errorf("upstream %q: duplicate tool name %q", desc.Name, t.Name)
		}
		toolByName[t.Name] = i
	}

	entry := upstreamEntry{
		descriptor:  desc,
		tools:       append([]ToolDescriptor(nil), tools...),
		toolByName:  toolByName,
		status:      status,
		refreshedAt: time.Now().UTC(),
	}
	b.byName[desc.Name] = len(b.entries)
	b.entries = append(b.entries, entry)
	return nil
}

// Build finalizes the Builder into an immutable Catalog, with upstreams
// sorted by name for deterministic, idempotent rendering (spec §8: equal
// catalogs synthesize byte-identical declarations).
func (b *Builder) Build() *Catalog {
	entries := append([]upstreamEntry(nil), b.entries...)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].descriptor.Name < entries[j].descriptor.Name
	})
	for i := range entries {
		sort.Slice(entries[i].tools, func(a, c int) bool {
			return entries[i].tools[a].Name < entries[i].tools[c].Name
		})
		// rebuild toolByName against the re-sorted slice
		m := make(map[string]int, len(entries[i].tools))
		for j, t := range entries[i].tools {
			m[t.Name] = j
		}
		entries[i].toolByName = m
	}
	byName := make(map[string]int, len(entries))
	for i, e := range entries {
		byName[e.descriptor.Name] = i
	}
	return &Catalog{entries: entries, byName: byName}
}

// Upstreams returns the catalog's upstream descriptors in canonical
// (name-sorted) order.
func (c *Catalog) Upstreams() []UpstreamDescriptor {
	out := make([]UpstreamDescriptor, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.descriptor
	}
	return out
}

// Upstream returns the descriptor and connection status for a named
// upstream.
func (c *Catalog) Upstream(name string) (UpstreamDescriptor, ConnectionStatus, bool) {
	i, ok := c.byName[name]
	if !ok {
		return UpstreamDescriptor{}, "", false
	}
	return c.entries[i].descriptor, c.entries[i].status, true
}

// Tools returns the tool descriptors registered for a named upstream, in
// canonical (name-sorted) order.
func (c *Catalog) Tools(upstreamName string) ([]ToolDescriptor, bool) {
	i, ok := c.byName[upstreamName]
	if !ok {
		return nil, false
	}
	return append([]ToolDescriptor(nil), c.entries[i].tools...), true
}

// Tool looks up one tool by its fully-qualified (namespace, name) pair.
func (c *Catalog) Tool(upstreamName, toolName string) (ToolDescriptor, bool) {
	i, ok := c.byName[upstreamName]
	if !ok {
		return ToolDescriptor{}, false
	}
	j, ok := c.entries[i].toolByName[toolName]
	if !ok {
		return ToolDescriptor{}, false
	}
	return c.entries[i].tools[j], true
}

// Len returns the number of registered upstreams.
func (c *Catalog) Len() int {
	return len(c.entries)
}
