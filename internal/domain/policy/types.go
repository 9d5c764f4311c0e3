// Package policy implements the optional CEL-based tool-call gate
// (SPEC_FULL §4): a config-driven check, evaluated inside the sandbox each
// time an execute() call's code dispatches an upstream tool call, that can
// deny that one call based on its upstream, tool and arguments; the sandbox
// throws the denial into the running code. When no rules are configured
// the gate allows everything, matching spec.md's silence on access control
// — this is additive, never a default-deny (see DESIGN.md Open Question
// log: introducing default-deny would violate "expansion adds, never
// removes").
package policy

import "time"

// Action is the outcome a matching Rule produces.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
)

// Rule is one CEL-evaluated gate rule. Rules are evaluated in order; the
// first whose Condition evaluates true determines the Decision.
type Rule struct {
	// Name is a human-readable identifier, echoed back in a Decision and
	// any PolicyDenied diagnostic.
	Name string
	// Condition is a CEL expression over the EvaluationContext variables
	// (upstream, tool, arguments). Must evaluate to a bool.
	Condition string
	// Action is taken when Condition evaluates true.
	Action Action
}

// EvaluationContext is the information available to a Rule's CEL
// expression: the upstream and tool an execute() call's code is about to
// invoke, and the JSON arguments it supplies.
type EvaluationContext struct {
	// Upstream is the namespace of the tool call being gated.
	Upstream string
	// Tool is the function name within Upstream.
	Tool string
	// Arguments are the call's JSON arguments, decoded to a Go map.
	Arguments map[string]any
	// RequestTime is when the tool call was dispatched.
	RequestTime time.Time
}

// Decision is the outcome of evaluating a Gate against one
// EvaluationContext.
type Decision struct {
	// Allowed is true if the call is permitted.
	Allowed bool
	// RuleName is the name of the rule that produced this decision; empty
	// when no rule matched (default allow).
	RuleName string
	// Reason is a human-readable explanation, suitable for a PolicyDenied
	// diagnostic message.
	Reason string
}
