package policy

import (
	"context"
	"fmt"
)

// Gate evaluates an EvaluationContext against a set of Rules and produces
// a Decision. Implementations compile Rule.Condition with a CEL-capable
// evaluator (internal/adapter/outbound/cel); the domain package stays free
// of the CEL dependency itself.
type Gate interface {
	Evaluate(ctx context.Context, evalCtx EvaluationContext) (Decision, error)
}

// Compiler compiles and runs one CEL expression against an
// EvaluationContext. Implemented by internal/adapter/outbound/cel.Evaluator.
type Compiler interface {
	ValidateExpression(expr string) error
	Eval(ctx context.Context, expr string, evalCtx EvaluationContext) (bool, error)
}

// StaticGate is a Gate over a fixed, config-loaded rule set, evaluated
// in order with first-match-wins and default allow (SPEC_FULL §4).
type StaticGate struct {
	rules    []Rule
	compiler Compiler
}

// NewStaticGate compiles and validates every rule's condition up front so
// a malformed policy config fails at startup (ConfigInvalid, spec §7)
// rather than on the first execute() call.
func NewStaticGate(rules []Rule, compiler Compiler) (*StaticGate, error) {
	for _, r := range rules {
		if err := compiler.ValidateExpression(r.Condition); err != nil {
			return nil, fmt.Errorf("policy rule %q: %w", r.Name, err)
		}
	}
	return &StaticGate{rules: append([]Rule(nil), rules...), compiler: compiler}, nil
}

// Evaluate runs the rules in order; the first whose condition is true
// wins. No match means Allowed=true with an empty RuleName.
func (g *StaticGate) Evaluate(ctx context.Context, evalCtx EvaluationContext) (Decision, error) {
	for _, r := range g.rules {
		matched, err := g.compiler.Eval(ctx, r.Condition, evalCtx)
		if err != nil {
			return Decision{}, fmt.Errorf("evaluating policy rule %q: %w", r.Name, err)
		}
		if !matched {
			continue
		}
		allowed := r.Action == ActionAllow
		reason := fmt.Sprintf("rule %q matched, action=%s", r.Name, r.Action)
		return Decision{Allowed: allowed, RuleName: r.Name, Reason: reason}, nil
	}
	return Decision{Allowed: true}, nil
}

var _ Gate = (*StaticGate)(nil)

// AllowAllGate is the Gate used when no policy rules are configured:
// every EvaluationContext is allowed, identical to spec.md's behavior
// (the gate is purely additive).
type AllowAllGate struct{}

func (AllowAllGate) Evaluate(context.Context, EvaluationContext) (Decision, error) {
	return Decision{Allowed: true}, nil
}

var _ Gate = AllowAllGate{}

// Denied is an error carrying the rule name and reason of a Gate denial.
// Neither the gateway service nor the sandbox returns it; the sandbox
// reports a denied tool call as exec.PolicyDeniedError.
type Denied struct {
	RuleName string
	Reason   string
}

func (e *Denied) Error() string {
	return fmt.Sprintf("policy denied: %s", e.Reason)
}
