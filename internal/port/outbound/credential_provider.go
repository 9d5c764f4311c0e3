package outbound

import "context"

// CredentialProvider resolves the header set to merge into every request to
// a named upstream. Implementations must be safe to call concurrently and
// cheap in the steady state (internal caching expected) — the MCPClient
// re-queries this on every request rather than caching the result itself,
// so token rotation is transparent (spec §4.1, §4.6).
type CredentialProvider interface {
	// HeadersFor returns the auth headers for upstreamName, or
	// ErrCredentialUnavailable if no credential is configured or the
	// backing secret could not be resolved.
	HeadersFor(ctx context.Context, upstreamName string) (map[string]string, error)
}

// ErrCredentialUnavailable is returned by a CredentialProvider when a
// credential cannot currently be resolved.
var ErrCredentialUnavailable = &credentialUnavailableError{}

type credentialUnavailableError struct{}

func (*credentialUnavailableError) Error() string { return "credential unavailable" }
