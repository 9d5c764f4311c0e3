// Package cel provides a CEL-based policy expression evaluator.
package cel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/codemode-gw/codemode/internal/domain/policy"
)

// maxExpressionLength is the maximum allowed length for a policy rule's CEL expression.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit, guarding against expensive expressions.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout bounds a single CEL evaluation so a pathological expression can't
// stall the gate in front of execute().
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context cancellation is checked.
const interruptCheckFreq = 100

// Evaluator compiles and evaluates the policy gate's CEL expressions. It
// implements internal/domain/policy.Compiler.
type Evaluator struct {
	env   *cel.Env
	cache map[string]cel.Program
}

// NewEvaluator creates a new CEL evaluator over the policy environment
// (upstream/tool/arguments variables, the glob function).
func NewEvaluator() (*Evaluator, error) {
	env, err := NewPolicyCELEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create policy environment: %w", err)
	}
	return &Evaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// Compile parses and type-checks a CEL expression, returning a compiled program.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	return prg, nil
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that a CEL expression is syntactically valid and
// safe for policy evaluation (expression length, nesting depth, compiles).
func (e *Evaluator) ValidateExpression(expr string) error {
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}

	if expr == "" {
		return errors.New("expression is empty")
	}

	if err := validateNesting(expr); err != nil {
		return err
	}

	_, err := e.Compile(expr)
	if err != nil {
		return fmt.Errorf("invalid CEL expression: %w", err)
	}

	return nil
}

// Eval compiles (cached) and runs expr against evalCtx, implementing
// policy.Compiler. Returns true if the expression evaluates to true.
func (e *Evaluator) Eval(ctx context.Context, expr string, evalCtx policy.EvaluationContext) (bool, error) {
	prg, ok := e.cache[expr]
	if !ok {
		var err error
		prg, err = e.Compile(expr)
		if err != nil {
			return false, err
		}
		e.cache[expr] = prg
	}
	return e.Evaluate(ctx, prg, evalCtx)
}

// Evaluate runs a compiled CEL program against the given evaluation context,
// bounding the run with evalTimeout so a single rule can't stall the gate.
func (e *Evaluator) Evaluate(ctx context.Context, prg cel.Program, evalCtx policy.EvaluationContext) (bool, error) {
	activation := BuildActivation(evalCtx)

	evalCtxTimeout, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(evalCtxTimeout, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}

	return boolResult, nil
}

var _ policy.Compiler = (*Evaluator)(nil)
