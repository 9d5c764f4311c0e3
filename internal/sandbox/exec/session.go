package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codemode-gw/codemode/internal/domain/allowlist"
	"github.com/codemode-gw/codemode/internal/domain/catalog"
	"github.com/codemode-gw/codemode/internal/domain/diagnostic"
	"github.com/codemode-gw/codemode/internal/domain/policy"
	"github.com/codemode-gw/codemode/internal/domain/ratelimit"
	"github.com/codemode-gw/codemode/internal/port/outbound"
	"github.com/codemode-gw/codemode/internal/telemetry"
)

// defaultSoftUpstreamCallCap is the per-execution soft cap on callMCPTool
// invocations (SPEC_FULL §4, config.ExecutionConfig.SoftCapCalls). Crossing
// it does not fail the execution; it appends one warning diagnostic the
// first time the cap is exceeded, so a runaway loop calling upstream tools
// is visible without being cut off.
const defaultSoftUpstreamCallCap = 100

// session holds the per-Run() state a VM's native ops close over: output
// buffers, the upstreams registered for this execution, and the globals it
// installed (so the pool can scrub them afterward).
type session struct {
	ctx      context.Context
	snapshot *catalog.Catalog
	clients  ClientResolver
	allow    *allowlist.AllowList
	http     *http.Client
	gate     policy.Gate
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	limiter  ratelimit.RateLimiter
	rlConfig ratelimit.RateLimitConfig
	softCap  int

	stdout []string
	stderr []string
	diags  []diagnostic.Diagnostic

	registered     map[string]bool
	upstreamCalls  int
	capWarnAdded   bool
	installedNames []string
}

func newSession(ctx context.Context, s *Sandbox, snapshot *catalog.Catalog) *session {
	return &session{
		ctx:        ctx,
		snapshot:   snapshot,
		clients:    s.clients,
		allow:      s.allow,
		http:       s.http,
		gate:       s.gate,
		metrics:    s.metrics,
		tracer:     s.tracer,
		limiter:    s.limiter,
		rlConfig:   s.rlConfig,
		softCap:    s.softCap,
		registered: make(map[string]bool),
	}
}

// install binds every native op, the console, and the generated namespace
// wrappers into rt's global scope, then pre-registers every upstream in
// the pinned Catalog snapshot (spec.md §4.4: "the host seeds the VM by
// calling registerMCP for every upstream in the Catalog snapshot").
func (sess *session) install(rt *goja.Runtime) {
	sess.set(rt, "console", sess.buildConsole(rt))
	sess.set(rt, "registerMCP", sess.registerMCPFunc(rt))
	sess.set(rt, "callMCPTool", sess.callMCPToolFunc(rt))
	sess.set(rt, "fetch", sess.fetchFunc(rt))

	registry := rt.NewObject()
	for _, up := range sess.snapshot.Upstreams() {
		_ = registry.Set(up.Name, up.URL)
	}
	sess.set(rt, "REGISTRY", registry)

	for _, up := range sess.snapshot.Upstreams() {
		sess.registered[up.Name] = true
		sess.set(rt, up.Name, sess.buildNamespace(rt, up.Name))
	}
}

func (sess *session) set(rt *goja.Runtime, name string, v interface{}) {
	_ = rt.Set(name, v)
	sess.installedNames = append(sess.installedNames, name)
}

func (sess *session) diagnostics() []diagnostic.Diagnostic {
	return sess.diags
}

// --- console ---

func (sess *session) buildConsole(rt *goja.Runtime) *goja.Object {
	c := rt.NewObject()
	log := func(call goja.FunctionCall) goja.Value {
		sess.stdout = append(sess.stdout, formatArgs(call.Arguments))
		return goja.Undefined()
	}
	errLog := func(call goja.FunctionCall) goja.Value {
		sess.stderr = append(sess.stderr, formatArgs(call.Arguments))
		return goja.Undefined()
	}
	_ = c.Set("log", log)
	_ = c.Set("info", log)
	_ = c.Set("warn", errLog)
	_ = c.Set("error", errLog)
	_ = c.Set("debug", log)
	return c
}

func formatArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatValue(a)
	}
	return strings.Join(parts, " ")
}

func formatValue(v goja.Value) string {
	exported := v.Export()
	switch exported.(type) {
	case string:
		return exported.(string)
	default:
		if b, err := json.Marshal(exported); err == nil {
			return string(b)
		}
		return fmt.Sprint(exported)
	}
}

// --- registerMCP / callMCPTool / namespace wrappers ---

func (sess *session) registerMCPFunc(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		arg := call.Argument(0).ToObject(rt)
		name := arg.Get("name").String()
		if _, _, ok := sess.snapshot.Upstream(name); !ok {
			panic(rt.NewTypeError((&UnknownUpstreamError{Name: name}).Error()))
		}
		sess.registered[name] = true
		return goja.Undefined()
	}
}

func (sess *session) callMCPToolFunc(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		arg := call.Argument(0).ToObject(rt)
		upstream := arg.Get("name").String()
		tool := arg.Get("tool").String()
		argsVal := arg.Get("arguments")
		return sess.invokeTool(rt, upstream, tool, argsVal)
	}
}

// buildNamespace creates the runtime object backing `<upstream>.<tool>(args)`
// calls, the generated wrapper form the synthesizer's .d.ts declarations
// describe types for but cannot itself implement (TypeScript type
// declarations have no runtime representation).
func (sess *session) buildNamespace(rt *goja.Runtime, upstreamName string) *goja.Object {
	ns := rt.NewObject()
	tools, _ := sess.snapshot.Tools(upstreamName)
	for _, t := range tools {
		toolName := t.Name
		fn := func(call goja.FunctionCall) goja.Value {
			return sess.invokeTool(rt, upstreamName, toolName, call.Argument(0))
		}
		_ = ns.Set(toolName, fn)
	}
	return ns
}

func (sess *session) invokeTool(rt *goja.Runtime, upstream, tool string, argsVal goja.Value) goja.Value {
	ctx, span := sess.tracer.Start(sess.ctx, "upstream_call",
		trace.WithAttributes(attribute.String("codemode.upstream", upstream), attribute.String("codemode.tool", tool)))
	defer span.End()

	var callOutcome string
	defer func() {
		if sess.metrics != nil {
			sess.metrics.UpstreamCallsTotal.WithLabelValues(upstream, tool, callOutcome).Inc()
		}
	}()

	if !sess.registered[upstream] {
		if _, _, ok := sess.snapshot.Upstream(upstream); !ok {
			callOutcome = "error"
			panic(rt.NewTypeError((&UnknownUpstreamError{Name: upstream}).Error()))
		}
		sess.registered[upstream] = true
	}

	argsExported, _ := argsVal.Export().(map[string]any)
	if sess.gate != nil {
		decision, err := sess.gate.Evaluate(ctx, policy.EvaluationContext{
			Upstream:    upstream,
			Tool:        tool,
			Arguments:   argsExported,
			RequestTime: time.Now(),
		})
		if err != nil {
			callOutcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			panic(rt.NewGoError(fmt.Errorf("policy evaluation: %w", err)))
		}
		if sess.metrics != nil {
			result := "allow"
			if !decision.Allowed {
				result = "deny"
			}
			sess.metrics.PolicyEvaluations.WithLabelValues(result).Inc()
		}
		if !decision.Allowed {
			callOutcome = "denied"
			panic(rt.NewTypeError((&PolicyDeniedError{Upstream: upstream, Tool: tool, Rule: decision.RuleName}).Error()))
		}
	}

	if sess.limiter != nil {
		key := ratelimit.FormatKey(ratelimit.KeyTypeUpstream, upstream)
		rlResult, err := sess.limiter.Allow(ctx, key, sess.rlConfig)
		if err != nil {
			callOutcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			panic(rt.NewGoError(fmt.Errorf("rate limit check: %w", err)))
		}
		if !rlResult.Allowed {
			callOutcome = "error"
			panic(rt.NewTypeError((&RateLimitExceededError{Upstream: upstream, RetryAfter: rlResult.RetryAfter.String()}).Error()))
		}
	}

	softCap := sess.softCap
	if softCap <= 0 {
		softCap = defaultSoftUpstreamCallCap
	}
	sess.upstreamCalls++
	if sess.upstreamCalls > softCap && !sess.capWarnAdded {
		sess.capWarnAdded = true
		sess.diags = append(sess.diags, diagnostic.Diagnostic{
			Severity: diagnostic.SeverityWarning,
			Message:  fmt.Sprintf("execution made more than %d upstream tool calls", softCap),
		})
	}

	client, ok := sess.clients(upstream)
	if !ok {
		callOutcome = "error"
		panic(rt.NewTypeError((&UnknownUpstreamError{Name: upstream}).Error()))
	}

	argsJSON, err := json.Marshal(argsVal.Export())
	if err != nil {
		callOutcome = "error"
		panic(rt.NewTypeError("callMCPTool: encoding arguments: " + err.Error()))
	}

	result, err := client.CallTool(ctx, tool, argsJSON)
	if err != nil {
		callOutcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		panic(rt.NewTypeError(upstreamErrorMessage(upstream, err)))
	}
	callOutcome = "ok"

	out := rt.NewObject()
	var content any
	if len(result.Content) > 0 {
		_ = json.Unmarshal(result.Content, &content)
	}
	_ = out.Set("content", content)
	if len(result.StructuredContent) > 0 {
		var structured any
		_ = json.Unmarshal(result.StructuredContent, &structured)
		_ = out.Set("structuredContent", structured)
	}
	return out
}

// upstreamErrorMessage picks the message the sandbox sees for a failed
// upstream call. *outbound.UpstreamError is propagated verbatim (spec.md
// §7); transport/protocol failures get a short, upstream-qualified message.
func upstreamErrorMessage(upstream string, err error) string {
	var upstreamErr *outbound.UpstreamError
	if asUpstreamError(err, &upstreamErr) {
		return upstreamErr.Message
	}
	return fmt.Sprintf("upstream %q call failed: %v", upstream, err)
}

func asUpstreamError(err error, target **outbound.UpstreamError) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if ue, ok := err.(*outbound.UpstreamError); ok {
			*target = ue
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// --- fetch ---

func (sess *session) fetchFunc(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		url := call.Argument(0).String()
		if !sess.allow.Allows(url) {
			panic(rt.NewTypeError((&HostNotAllowedError{Host: url}).Error()))
		}

		method := http.MethodGet
		var body io.Reader
		headers := http.Header{}

		if optsVal := call.Argument(1); !goja.IsUndefined(optsVal) && !goja.IsNull(optsVal) {
			opts := optsVal.ToObject(rt)
			if m := opts.Get("method"); m != nil && !goja.IsUndefined(m) {
				method = strings.ToUpper(m.String())
			}
			if b := opts.Get("body"); b != nil && !goja.IsUndefined(b) {
				body = strings.NewReader(b.String())
			}
			if h := opts.Get("headers"); h != nil && !goja.IsUndefined(h) {
				if hm, ok := h.Export().(map[string]interface{}); ok {
					for k, v := range hm {
						headers.Set(k, fmt.Sprint(v))
					}
				}
			}
		}

		req, err := http.NewRequestWithContext(sess.ctx, method, url, body)
		if err != nil {
			panic(rt.NewTypeError("fetch: " + err.Error()))
		}
		req.Header = headers

		resp, err := sess.http.Do(req)
		if err != nil {
			panic(rt.NewTypeError("fetch: " + err.Error()))
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			panic(rt.NewTypeError("fetch: reading response body: " + err.Error()))
		}

		return sess.buildResponse(rt, resp, data)
	}
}

func (sess *session) buildResponse(rt *goja.Runtime, resp *http.Response, data []byte) *goja.Object {
	r := rt.NewObject()
	_ = r.Set("ok", resp.StatusCode >= 200 && resp.StatusCode < 300)
	_ = r.Set("status", resp.StatusCode)
	_ = r.Set("statusText", http.StatusText(resp.StatusCode))

	headers := rt.NewObject()
	for k := range resp.Header {
		_ = headers.Set(strings.ToLower(k), resp.Header.Get(k))
	}
	_ = r.Set("headers", headers)

	bodyText := string(data)
	_ = r.Set("text", func(goja.FunctionCall) goja.Value {
		return rt.ToValue(bodyText)
	})
	_ = r.Set("json", func(goja.FunctionCall) goja.Value {
		var v any
		if err := json.Unmarshal(bytes.TrimSpace(data), &v); err != nil {
			panic(rt.NewTypeError("response body is not valid JSON: " + err.Error()))
		}
		return rt.ToValue(v)
	})
	return r
}
