// Package state provides file-based persistence for a snapshot of the
// gateway's catalog. The start command does not load or save it: the
// catalog is rebuilt by upstream discovery on every start. Execute never
// reads or writes this store; it is off the hot path.
package state

import "time"

// AppState is the top-level structure persisted in state.json.
type AppState struct {
	// Version is the schema version for forward compatibility. Currently "1".
	Version string `json:"version"`

	// Upstreams is the last discovered tool set per configured upstream.
	Upstreams []UpstreamEntry `json:"upstreams"`

	// CreatedAt is when this state file was first created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when this state file was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// UpstreamEntry is a snapshot of one upstream's last known catalog entry.
type UpstreamEntry struct {
	// Name is the upstream's identifier, as in catalog.UpstreamDescriptor.
	Name string `json:"name"`

	// URL is the upstream's endpoint at the time of the snapshot.
	URL string `json:"url"`

	// Status is the last observed catalog.ConnectionStatus value.
	Status string `json:"status"`

	// Tools is the last discovered tool set, as ToolEntry copies of
	// catalog.ToolDescriptor values, so this package does not import
	// domain/catalog.
	Tools []ToolEntry `json:"tools"`

	// UpdatedAt is when this upstream's entry was last refreshed.
	UpdatedAt time.Time `json:"updated_at"`
}

// ToolEntry is a snapshot of one catalog.ToolDescriptor.
type ToolEntry struct {
	Name         string `json:"name"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	InputSchema  []byte `json:"input_schema,omitempty"`
	OutputSchema []byte `json:"output_schema,omitempty"`
}
