package outbound

// ServerConfig is one entry of the ConfigLoader's server list: an upstream
// name, its base URL, and an opaque reference to how its credential is
// resolved (interpreted by the CredentialProvider, not by the core).
type ServerConfig struct {
	Name    string
	URL     string
	AuthRef string
}

// ConfigLoader produces the initial sequence of upstream server
// descriptions the gateway connects to at startup (spec §4.6, §6). Parsing
// the two serialized forms into this shape is an external collaborator's
// responsibility, out of the core's scope.
type ConfigLoader interface {
	LoadServers() ([]ServerConfig, error)
}
