package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codemode-gw/codemode/internal/domain/catalog"
	"github.com/codemode-gw/codemode/internal/domain/diagnostic"
	"github.com/codemode-gw/codemode/internal/domain/execution"
	"github.com/codemode-gw/codemode/internal/port/inbound"
	"github.com/codemode-gw/codemode/internal/sandbox/exec"
	"github.com/codemode-gw/codemode/internal/sandbox/typecheck"
	"github.com/codemode-gw/codemode/internal/synthesizer"
	"github.com/codemode-gw/codemode/internal/telemetry"
)

// GatewayService implements inbound.GatewayService: the three meta-tools a
// downstream MCP client calls (list_functions, get_function_details,
// execute), built on top of a Catalog snapshot and the two sandboxes.
type GatewayService struct {
	store          *catalog.Store
	checker        *typecheck.Checker
	sandbox        *exec.Sandbox
	logger         *slog.Logger
	metrics        *telemetry.Metrics
	tracer         trace.Tracer
	defaultTimeout time.Duration
}

// NewGatewayService wires a GatewayService from its three collaborators.
// metrics may be nil (no metrics recorded); tracer defaults to
// telemetry.Tracer() when nil. The zero-substitute timeout defaults to
// execution.DefaultTimeout; override it with WithDefaultTimeout.
func NewGatewayService(store *catalog.Store, checker *typecheck.Checker, sandbox *exec.Sandbox, logger *slog.Logger, metrics *telemetry.Metrics) *GatewayService {
	return &GatewayService{store: store, checker: checker, sandbox: sandbox, logger: logger, metrics: metrics, tracer: telemetry.Tracer(), defaultTimeout: execution.DefaultTimeout}
}

// WithDefaultTimeout overrides the timeout substituted when execute's
// caller-supplied timeout is zero (config.ExecutionConfig.DefaultTimeout).
// The per-call ceiling (execution.MaxTimeout) still applies regardless.
func (g *GatewayService) WithDefaultTimeout(d time.Duration) *GatewayService {
	if d > 0 {
		g.defaultTimeout = d
	}
	return g
}

// ListFunctions returns every upstream's function index from the current
// Catalog snapshot (spec §4.5).
func (g *GatewayService) ListFunctions(ctx context.Context) ([]inbound.Namespace, error) {
	cat := g.store.Snapshot()
	upstreams := cat.Upstreams()
	out := make([]inbound.Namespace, 0, len(upstreams))
	for _, up := range upstreams {
		tools, _ := cat.Tools(up.Name)
		refs := make([]inbound.FunctionRef, len(tools))
		for i, t := range tools {
			refs[i] = inbound.FunctionRef{Name: t.Name, Title: t.Title}
		}
		out = append(out, inbound.Namespace{Name: up.Name, Functions: refs})
	}
	return out, nil
}

// GetFunctionDetails resolves each "<ns>.<fn>" name against the current
// snapshot, preserving input order. An unresolvable name yields an entry
// with Error set rather than failing the whole call (spec §4.5).
func (g *GatewayService) GetFunctionDetails(ctx context.Context, fqNames []string) ([]inbound.FunctionDetail, error) {
	cat := g.store.Snapshot()
	out := make([]inbound.FunctionDetail, len(fqNames))
	for i, fq := range fqNames {
		upstreamName, toolName, ok := synthesizer.SplitFQName(fq)
		if !ok {
			out[i] = inbound.FunctionDetail{FQName: fq, Error: "unknown"}
			continue
		}
		tool, ok := cat.Tool(upstreamName, toolName)
		if !ok {
			out[i] = inbound.FunctionDetail{FQName: fq, Error: "unknown"}
			continue
		}
		out[i] = inbound.FunctionDetail{
			FQName:       fq,
			Signature:    synthesizer.Signature(upstreamName, tool),
			Description:  tool.Description,
			InputSchema:  string(tool.InputSchema),
			OutputSchema: string(tool.OutputSchema),
		}
	}
	return out, nil
}

// Execute type-checks code against the current snapshot's generated
// declarations, and if it passes, runs it in the execution sandbox. Both
// stages share the same pinned snapshot so a concurrent catalog refresh
// cannot change the surface mid-request (spec §3 snapshot isolation).
func (g *GatewayService) Execute(ctx context.Context, code string, timeout time.Duration) (inbound.ExecuteResult, error) {
	ctx, span := g.tracer.Start(ctx, "execute")
	defer span.End()

	start := time.Now()
	outcome := string(execution.StateFailedRuntime)
	defer func() {
		if g.metrics != nil {
			g.metrics.ExecutionsTotal.WithLabelValues(outcome).Inc()
			g.metrics.ExecuteDuration.Observe(time.Since(start).Seconds())
		}
		span.SetAttributes(attribute.String("codemode.outcome", outcome))
	}()

	if timeout <= 0 {
		timeout = g.defaultTimeout
	}
	snapshot := g.store.Snapshot()
	req := execution.NewRequest(code, timeout, snapshot)
	machine := execution.NewMachine()

	if !machine.Transition(execution.StateTypechecking) {
		return inbound.ExecuteResult{}, fmt.Errorf("execute: invalid state transition to typechecking")
	}

	_, typecheckSpan := g.tracer.Start(ctx, "type_check")
	typecheckStart := time.Now()
	declarations := synthesizer.RenderDeclarations(snapshot)
	diags, err := g.checker.Check(ctx, req.Code, declarations)
	if g.metrics != nil {
		g.metrics.TypeCheckDuration.Observe(time.Since(typecheckStart).Seconds())
	}
	typecheckSpan.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return inbound.ExecuteResult{}, fmt.Errorf("execute: type check: %w", err)
	}

	if diagnostic.HasErrors(diags) {
		machine.Transition(execution.StateFailedTypecheck)
		outcome = string(execution.StateFailedTypecheck)
		return inbound.ExecuteResult{
			Success:     false,
			Diagnostics: toWireDiagnostics(diags),
		}, nil
	}

	if !machine.Transition(execution.StateRunning) {
		return inbound.ExecuteResult{}, fmt.Errorf("execute: invalid state transition to running")
	}

	run := g.sandbox.Run(ctx, snapshot, req.Code, req.Timeout)
	allDiags := append(append([]diagnostic.Diagnostic(nil), diags...), run.Diagnostics...)

	switch {
	case run.TimedOut:
		machine.Transition(execution.StateTimedOut)
		outcome = string(execution.StateTimedOut)
	case run.RuntimeErr != nil:
		machine.Transition(execution.StateFailedRuntime)
		outcome = string(execution.StateFailedRuntime)
	default:
		machine.Transition(execution.StateCompleted)
		outcome = string(execution.StateCompleted)
	}

	result := inbound.ExecuteResult{
		Success:     run.RuntimeErr == nil && !run.TimedOut,
		Stdout:      run.Stdout,
		Stderr:      run.Stderr,
		ReturnValue: run.ReturnValue,
		Diagnostics: toWireDiagnostics(allDiags),
	}
	return result, nil
}

func toWireDiagnostics(diags []diagnostic.Diagnostic) []inbound.Diag {
	out := make([]inbound.Diag, len(diags))
	for i, d := range diags {
		out[i] = inbound.Diag{
			Message:  d.Message,
			Line:     d.Line,
			Column:   d.Column,
			Severity: string(d.Severity),
			Code:     d.Code,
		}
	}
	return out
}
