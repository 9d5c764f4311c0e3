// Package credentials implements the outbound.CredentialProvider port:
// resolving each upstream's AuthRef into the header set the MCPClient
// merges into its requests (spec.md §4.1, §4.6).
//
// AuthRef supports two forms:
//   - "env:NAME"    — read NAME from the process environment, sent as
//     "Authorization: Bearer <value>".
//   - "secret:NAME" — look NAME up in a locked local secrets file, sent
//     verbatim as that upstream's header set.
//
// An empty or unconfigured AuthRef means HeadersFor returns no headers for
// that upstream.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alexedwards/argon2id"

	"github.com/codemode-gw/codemode/internal/port/outbound"
)

// secretsFile is the on-disk shape of a locked credential store.
type secretsFile struct {
	// BootstrapHash is the argon2id hash of the passphrase required to
	// unlock Upstreams. Empty means the file is unlocked (no passphrase
	// gate) — appropriate for local development only.
	BootstrapHash string `json:"bootstrap_hash"`

	// Upstreams maps upstream name to the header set sent with every
	// request to it.
	Upstreams map[string]map[string]string `json:"upstreams"`
}

// Provider implements outbound.CredentialProvider.
type Provider struct {
	refs map[string]string // upstream name -> AuthRef

	mu      sync.RWMutex
	secrets map[string]map[string]string // unlocked secrets, nil until LoadSecretsFile
	locked  bool
}

// New builds a Provider from the configured upstream AuthRefs.
func New(refs map[string]string) *Provider {
	copied := make(map[string]string, len(refs))
	for k, v := range refs {
		copied[k] = v
	}
	return &Provider{refs: copied}
}

// LoadSecretsFile reads path and, if it carries a bootstrap hash, verifies
// passphrase against it before making its Upstreams map available to
// HeadersFor. An empty bootstrap hash skips the passphrase gate.
func (p *Provider) LoadSecretsFile(path, passphrase string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read secrets file: %w", err)
	}

	var sf secretsFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse secrets file: %w", err)
	}

	if sf.BootstrapHash != "" {
		match, err := argon2id.ComparePasswordAndHash(passphrase, sf.BootstrapHash)
		if err != nil {
			return fmt.Errorf("verify bootstrap passphrase: %w", err)
		}
		if !match {
			p.mu.Lock()
			p.locked = true
			p.mu.Unlock()
			return fmt.Errorf("bootstrap passphrase does not match")
		}
	}

	p.mu.Lock()
	p.secrets = sf.Upstreams
	p.locked = false
	p.mu.Unlock()
	return nil
}

// HashBootstrapPassphrase is a setup-time helper producing the
// bootstrap_hash field for a new secrets file.
func HashBootstrapPassphrase(passphrase string) (string, error) {
	return argon2id.CreateHash(passphrase, argon2id.DefaultParams)
}

// HeadersFor implements outbound.CredentialProvider.
func (p *Provider) HeadersFor(_ context.Context, upstreamName string) (map[string]string, error) {
	ref, ok := p.refs[upstreamName]
	if !ok || ref == "" {
		return nil, nil
	}

	switch {
	case strings.HasPrefix(ref, "env:"):
		name := strings.TrimPrefix(ref, "env:")
		value := os.Getenv(name)
		if value == "" {
			return nil, outbound.ErrCredentialUnavailable
		}
		return map[string]string{"Authorization": "Bearer " + value}, nil

	case strings.HasPrefix(ref, "secret:"):
		name := strings.TrimPrefix(ref, "secret:")
		p.mu.RLock()
		defer p.mu.RUnlock()
		if p.locked {
			return nil, outbound.ErrCredentialUnavailable
		}
		headers, ok := p.secrets[name]
		if !ok {
			return nil, outbound.ErrCredentialUnavailable
		}
		return headers, nil

	default:
		return nil, fmt.Errorf("unrecognized auth_ref %q", ref)
	}
}

var _ outbound.CredentialProvider = (*Provider)(nil)
