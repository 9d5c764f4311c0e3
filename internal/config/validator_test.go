package config

import (
	"strings"
	"testing"
)

// minimalValidConfig returns a minimal valid GatewayConfig for testing.
func minimalValidConfig() *GatewayConfig {
	return &GatewayConfig{
		Servers: []ServerEntry{
			{Name: "gdrive", URL: "https://gdrive.internal/mcp", AuthRef: "env:GDRIVE_TOKEN"},
		},
		Policy: PolicyConfig{
			Rules: []PolicyRuleConfig{{Name: "allow-all", Condition: "true", Action: "allow"}},
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_NoServers_ZeroUpstreamMode(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Servers = nil

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with no servers unexpected error: %v", err)
	}
}

func TestValidate_DuplicateServerNames(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Servers = append(cfg.Servers, ServerEntry{Name: "gdrive", URL: "https://other.internal/mcp"})

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate name") {
		t.Errorf("error = %q, want to contain 'duplicate name'", err.Error())
	}
}

func TestValidate_ServerMissingURL(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Servers[0].URL = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for missing URL, got nil")
	}
}

func TestValidate_ServerMissingName(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Servers[0].Name = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for missing name, got nil")
	}
}

func TestValidate_EmptyPolicy(t *testing.T) {
	t.Parallel()

	// Empty policy is valid — default-allow, per spec.md (no policy gate).
	cfg := minimalValidConfig()
	cfg.Policy.Rules = nil

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with empty policy unexpected error: %v", err)
	}
}

func TestValidate_ZeroConfig(t *testing.T) {
	t.Parallel()

	cfg := &GatewayConfig{}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() zero-config unexpected error: %v", err)
	}
	if len(cfg.Policy.Rules) != 0 {
		t.Errorf("expected empty policy rules (default-allow), got %d rules", len(cfg.Policy.Rules))
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("default http_addr = %q, want 127.0.0.1:8080", cfg.Server.HTTPAddr)
	}
}

func TestValidate_InvalidPolicyAction(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Policy.Rules[0].Action = "approval_required"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid action, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "Action") || !strings.Contains(errStr, "allow deny") {
		t.Errorf("error = %q, want to contain 'Action' and 'allow deny'", errStr)
	}
}

func TestValidate_PolicyRuleMissingCondition(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Policy.Rules[0].Condition = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for missing condition, got nil")
	}
}

func TestValidate_InvalidHTTPAddr(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.HTTPAddr = "not-a-host-port"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for invalid http_addr, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.LogLevel = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for invalid log level, got nil")
	}
}
