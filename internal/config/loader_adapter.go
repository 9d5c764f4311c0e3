package config

import "github.com/codemode-gw/codemode/internal/port/outbound"

// Loader adapts a loaded GatewayConfig to the outbound.ConfigLoader port.
type Loader struct {
	cfg *GatewayConfig
}

// NewLoader wraps an already-loaded, validated GatewayConfig.
func NewLoader(cfg *GatewayConfig) *Loader {
	return &Loader{cfg: cfg}
}

// LoadServers implements outbound.ConfigLoader.
func (l *Loader) LoadServers() ([]outbound.ServerConfig, error) {
	servers := make([]outbound.ServerConfig, 0, len(l.cfg.Servers))
	for _, s := range l.cfg.Servers {
		servers = append(servers, outbound.ServerConfig{Name: s.Name, URL: s.URL, AuthRef: s.AuthRef})
	}
	return servers, nil
}

var _ outbound.ConfigLoader = (*Loader)(nil)
