package policy

import "context"

// decisionKey is the context key type for a stashed Decision.
type decisionKey struct{}

// WithDecision stores a Decision in ctx so callers further down the
// execute() path (diagnostics rendering) can report which rule fired.
func WithDecision(ctx context.Context, d *Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// DecisionFromContext retrieves a stashed Decision. Returns nil if none.
func DecisionFromContext(ctx context.Context) *Decision {
	d, _ := ctx.Value(decisionKey{}).(*Decision)
	return d
}
