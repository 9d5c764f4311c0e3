// Package exec implements the Execution Sandbox (spec.md §4.4): a
// disposable goja VM seeded with console capture, host-allow-listed fetch,
// and the registerMCP/callMCPTool native ops, run under a hard wall-clock
// deadline. Nothing about one Run outlives it — the runtime is scrubbed and
// returned to a pool before the next request touches it.
package exec

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/dop251/goja"
	"go.opentelemetry.io/otel/trace"

	"github.com/codemode-gw/codemode/internal/domain/allowlist"
	"github.com/codemode-gw/codemode/internal/domain/catalog"
	"github.com/codemode-gw/codemode/internal/domain/diagnostic"
	"github.com/codemode-gw/codemode/internal/domain/policy"
	"github.com/codemode-gw/codemode/internal/domain/ratelimit"
	"github.com/codemode-gw/codemode/internal/port/outbound"
	"github.com/codemode-gw/codemode/internal/sandbox/transpile"
	"github.com/codemode-gw/codemode/internal/telemetry"
)

// ClientResolver resolves the long-lived, shared outbound.MCPClient for an
// upstream name. Owned by the catalog/connection service (service.CatalogService),
// not the sandbox — one MCPClient instance is reused across many executions.
type ClientResolver func(upstreamName string) (outbound.MCPClient, bool)

// RunResult is the outcome of one Sandbox.Run call: the RUNNING branch of
// the execution state machine (spec.md §4.4). It does not itself decide
// success/failure — the caller (service/gateway) combines this with the
// type-check stage's diagnostics to produce the final execution.Result.
type RunResult struct {
	Stdout      []string
	Stderr      []string
	Diagnostics []diagnostic.Diagnostic
	ReturnValue any
	TimedOut    bool
	RuntimeErr  error
}

// Sandbox constructs and runs Execution Sandbox VMs. One Sandbox is shared
// across many concurrent Run calls; each Run gets its own goja.Runtime
// (pooled) and session state, so concurrent executions never observe each
// other (spec.md §5 "no shared mutable state").
type Sandbox struct {
	pool     *vmPool
	clients  ClientResolver
	allow    *allowlist.AllowList
	gate     policy.Gate
	http     *http.Client
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	limiter  ratelimit.RateLimiter
	rlConfig ratelimit.RateLimitConfig
	softCap  int
}

// New creates a Sandbox. gate may be nil, in which case every call_mcp_tool
// invocation is allowed (policy.AllowAllGate semantics). metrics may be nil.
func New(clients ClientResolver, allow *allowlist.AllowList, gate policy.Gate, metrics *telemetry.Metrics) *Sandbox {
	if gate == nil {
		gate = policy.AllowAllGate{}
	}
	return &Sandbox{
		pool:    newVMPool(),
		clients: clients,
		allow:   allow,
		gate:    gate,
		metrics: metrics,
		tracer:  telemetry.Tracer(),
		softCap: defaultSoftUpstreamCallCap,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithRateLimit attaches a per-upstream call rate limiter (SPEC_FULL §4,
// config.RateLimitConfig). Every callMCPTool invocation against a given
// upstream is checked against the same GCRA cell before it is dispatched.
func (s *Sandbox) WithRateLimit(limiter ratelimit.RateLimiter, cfg ratelimit.RateLimitConfig) *Sandbox {
	s.limiter = limiter
	s.rlConfig = cfg
	return s
}

// WithSoftCapCalls overrides the per-execution call_mcp_tool soft ceiling
// (config.ExecutionConfig.SoftCapCalls). n <= 0 is ignored.
func (s *Sandbox) WithSoftCapCalls(n int) *Sandbox {
	if n > 0 {
		s.softCap = n
	}
	return s
}

// Run transpiles user TypeScript to CommonJS, executes it in a fresh
// session against snapshot, and enforces the hard wall-clock deadline.
// Run never panics and never blocks past deadline+a scheduling epsilon: on
// expiry it interrupts the VM, which is terminal for that execution (spec.md
// §5 "cancellation is terminal for the VM").
func (s *Sandbox) Run(parent context.Context, snapshot *catalog.Catalog, code string, deadline time.Duration) RunResult {
	tr := transpile.ToCommonJS("execute.ts", code)
	if tr.HasErrors() {
		return RunResult{Diagnostics: tr.Diagnostics, RuntimeErr: fmt.Errorf("execution sandbox: transpile failed")}
	}

	ctx, cancel := context.WithTimeout(parent, deadline)
	defer cancel()

	rt, wasNew := s.pool.get()
	if s.metrics != nil {
		if wasNew {
			s.metrics.SandboxPoolMisses.Inc()
		} else {
			s.metrics.SandboxPoolHits.Inc()
		}
	}
	sess := newSession(ctx, s, snapshot)
	sess.install(rt)

	moduleExports := rt.NewObject()
	module := rt.NewObject()
	_ = module.Set("exports", moduleExports)
	sess.set(rt, "module", module)
	sess.set(rt, "exports", moduleExports)
	defer s.pool.release(rt, sess.installedNames)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			rt.Interrupt(fmt.Sprintf("execution timed out after %dms", deadline.Milliseconds()))
		case <-done:
		}
	}()

	type outcome struct {
		val goja.Value
		err error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		v, err := rt.RunString(tr.JS)
		resultCh <- outcome{val: v, err: err}
	}()

	out := <-resultCh
	close(done)

	result := RunResult{
		Stdout:      sess.stdout,
		Stderr:      sess.stderr,
		Diagnostics: sess.diagnostics(),
	}

	if out.err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			result.Diagnostics = append(result.Diagnostics, diagnostic.Diagnostic{
				Severity: diagnostic.SeverityError,
				Message:  fmt.Sprintf("execution timed out after %dms", deadline.Milliseconds()),
			})
			return result
		}

		message := out.err.Error()
		result.Stderr = append(result.Stderr, message)
		line, column := extractLineColumn(message)
		result.Diagnostics = append(result.Diagnostics, diagnostic.Diagnostic{
			Severity: diagnostic.SeverityError,
			Message:  message,
			Line:     line,
			Column:   column,
		})
		result.RuntimeErr = out.err
		return result
	}

	result.ReturnValue = extractReturnValue(rt, moduleExports, out.val)
	return result
}

// extractReturnValue implements spec.md §4.4's return_value rule: a
// `export default` (surfaced as module.exports.default by esbuild's
// CommonJS lowering) wins; otherwise the completion value of the last
// top-level expression statement, which goja's script-mode evaluator
// already returns from RunString.
func extractReturnValue(rt *goja.Runtime, moduleExports *goja.Object, completion goja.Value) any {
	if def := moduleExports.Get("default"); def != nil && !goja.IsUndefined(def) {
		return def.Export()
	}
	if completion == nil || goja.IsUndefined(completion) || goja.IsNull(completion) {
		return nil
	}
	return completion.Export()
}

// stackLocationPattern matches a goja stack-trace line's "<file>:<line>:<col>"
// suffix, e.g. "at execute.ts:3:11(3)".
var stackLocationPattern = regexp.MustCompile(`:(\d+):(\d+)\(`)

// extractLineColumn best-effort pulls a 1-based line/column out of a goja
// exception's stringified stack trace. Returns (0, 0) when none is found —
// spec.md §4.4 only requires these "when available".
func extractLineColumn(message string) (int, int) {
	m := stackLocationPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, 0
	}
	line, err1 := strconv.Atoi(m[1])
	column, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return line, column
}
