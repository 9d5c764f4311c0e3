// Package config provides configuration types and loading for Codemode
// Gateway: the downstream listener, the configured upstream MCP servers,
// the optional CEL policy gate, and resource ceilings.
package config

// GatewayConfig is the top-level configuration for Codemode Gateway.
type GatewayConfig struct {
	// Server configures the downstream MCP server listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Servers lists the upstream MCP servers to connect to at startup.
	Servers []ServerEntry `yaml:"servers" mapstructure:"servers" validate:"omitempty,dive"`

	// Policy configures the optional CEL-based pre-execution gate. When
	// empty, every execute call is allowed through to the sandbox.
	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`

	// RateLimit configures the optional per-upstream call rate limiter.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Execution configures sandbox resource ceilings.
	Execution ExecutionConfig `yaml:"execution" mapstructure:"execution"`

	// TypeCheck configures the Type-Check Sandbox's compiler source.
	TypeCheck TypeCheckConfig `yaml:"type_check" mapstructure:"type_check"`

	// DevMode enables verbose logging and relaxed validation.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the downstream MCP server listener.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g. "127.0.0.1:8080").
	// Defaults to "127.0.0.1:8080" if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// ServerEntry configures one upstream MCP server (spec.md §1, §6).
type ServerEntry struct {
	// Name is the upstream's identifier, used as the namespace prefix for
	// its tools and as the "name" argument to call_mcp_tool.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// URL is the upstream's streamable-HTTP MCP endpoint.
	URL string `yaml:"url" mapstructure:"url" validate:"required,url"`

	// AuthRef is an opaque reference resolved by the CredentialProvider
	// (e.g. "env:GDRIVE_TOKEN" or "secret:gdrive"). The core
	// never interprets this string itself.
	AuthRef string `yaml:"auth_ref" mapstructure:"auth_ref"`
}

// PolicyConfig configures the optional CEL gate on upstream tool calls.
type PolicyConfig struct {
	// Rules are evaluated in order; the first matching rule's Action wins.
	// When no rule matches, or Rules is empty, the call is allowed.
	Rules []PolicyRuleConfig `yaml:"rules" mapstructure:"rules" validate:"omitempty,dive"`
}

// PolicyRuleConfig defines one CEL-evaluated access rule.
type PolicyRuleConfig struct {
	// Name is a human-readable identifier for this rule.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Condition is a CEL expression over the gated tool call (available
	// variables: "upstream", "tool", "arguments"). It must evaluate to a bool.
	Condition string `yaml:"condition" mapstructure:"condition" validate:"required"`

	// Action is "allow" or "deny".
	Action string `yaml:"action" mapstructure:"action" validate:"required,oneof=allow deny"`
}

// RateLimitConfig configures the optional per-upstream call rate limiter.
type RateLimitConfig struct {
	// Enabled turns the limiter on. Default: false (no rate limiting).
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// CallsPerMinute is the GCRA rate for tool calls to any single upstream.
	// Defaults to 600 when Enabled and unset.
	CallsPerMinute int `yaml:"calls_per_minute" mapstructure:"calls_per_minute" validate:"omitempty,min=1"`

	// Burst is the maximum burst size. Defaults to CallsPerMinute/10 (min 1).
	Burst int `yaml:"burst" mapstructure:"burst" validate:"omitempty,min=1"`
}

// ExecutionConfig configures sandbox resource ceilings (spec.md §5).
type ExecutionConfig struct {
	// DefaultTimeout is applied when execute's caller-supplied timeout is
	// zero (e.g. "5s"). Defaults to "5s".
	DefaultTimeout string `yaml:"default_timeout" mapstructure:"default_timeout" validate:"omitempty"`

	// SoftCapCalls is the per-execution call_mcp_tool soft ceiling; beyond
	// this count a "warning" diagnostic is attached but calls still
	// proceed. Defaults to 100.
	SoftCapCalls int `yaml:"soft_cap_calls" mapstructure:"soft_cap_calls" validate:"omitempty,min=1"`
}

// TypeCheckConfig configures the Type-Check Sandbox (spec.md §4.3).
type TypeCheckConfig struct {
	// CompilerPath points at a real TypeScript compiler UMD bundle (the
	// `typescript` npm package's lib/typescript.js) on disk; see
	// internal/sandbox/typecheck/assets/README.md. When empty, the Type-
	// Check Sandbox runs in fallback mode: esbuild syntax checking plus
	// litecheck's structural call-site check, rather than a full compiler.
	CompilerPath string `yaml:"compiler_path" mapstructure:"compiler_path"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *GatewayConfig) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.CallsPerMinute == 0 {
			c.RateLimit.CallsPerMinute = 600
		}
		if c.RateLimit.Burst == 0 {
			c.RateLimit.Burst = maxInt(c.RateLimit.CallsPerMinute/10, 1)
		}
	}

	if c.Execution.DefaultTimeout == "" {
		c.Execution.DefaultTimeout = "5s"
	}
	if c.Execution.SoftCapCalls == 0 {
		c.Execution.SoftCapCalls = 100
	}
}

// SetDevDefaults applies permissive defaults for development mode: a
// catch-all allow policy so a config with no policy section still behaves
// like the "no policy configured" default-allow case explicitly, rather
// than implicitly.
func (c *GatewayConfig) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if len(c.Policy.Rules) == 0 {
		c.Policy.Rules = []PolicyRuleConfig{
			{Name: "dev-allow-all", Condition: "true", Action: "allow"},
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
