package exec

import "fmt"

// UnknownUpstreamError is thrown into the sandbox when registerMCP or
// callMCPTool references an upstream absent from the pinned Catalog
// snapshot (spec.md §4.4, §7).
type UnknownUpstreamError struct {
	Name string
}

func (e *UnknownUpstreamError) Error() string {
	return fmt.Sprintf("unknown upstream %q", e.Name)
}

// HostNotAllowedError is thrown into the sandbox when fetch targets a host
// outside the Host Allow-List (spec.md §4.4, §4.8).
type HostNotAllowedError struct {
	Host string
}

func (e *HostNotAllowedError) Error() string {
	return fmt.Sprintf("host %q is not allow-listed", e.Host)
}

// PolicyDeniedError is thrown into the sandbox when the CEL pre-execution
// gate (SPEC_FULL §4) denies a call_mcp_tool invocation. Catchable, same as
// HostNotAllowedError and UnknownUpstreamError — the gate is evaluated per
// upstream/tool/arguments triple as the call is dispatched, not against the
// code text up front, since arbitrary TypeScript has no static call graph.
type PolicyDeniedError struct {
	Upstream string
	Tool     string
	Rule     string
}

func (e *PolicyDeniedError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("policy denied call to %s.%s", e.Upstream, e.Tool)
	}
	return fmt.Sprintf("policy denied call to %s.%s (rule %q)", e.Upstream, e.Tool, e.Rule)
}

// RateLimitExceededError is thrown into the sandbox when callMCPTool is
// rate-limited against the per-upstream GCRA limiter (SPEC_FULL §4,
// config.RateLimitConfig). Catchable, same as the other call_mcp_tool
// errors above.
type RateLimitExceededError struct {
	Upstream   string
	RetryAfter string
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for upstream %q, retry after %s", e.Upstream, e.RetryAfter)
}
