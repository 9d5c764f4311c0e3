package cel

import (
	"path/filepath"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/codemode-gw/codemode/internal/domain/policy"
)

// NewPolicyCELEnvironment builds the CEL environment used to compile and
// evaluate SPEC_FULL's pre-execution policy gate rules. Three variables are
// exposed, matching policy.EvaluationContext: "upstream" and "tool" (the
// namespace/function pair an execute() call's code is about to invoke) and
// "arguments" (its decoded JSON arguments). A "glob" function lets rules
// match upstream/tool names with shell-style patterns, e.g.
// glob("file_*", tool).
func NewPolicyCELEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		ext.Sets(),

		cel.Variable("upstream", cel.StringType),
		cel.Variable("tool", cel.StringType),
		cel.Variable("arguments", cel.MapType(cel.StringType, cel.DynType)),

		cel.Function("glob",
			cel.Overload("glob_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(pattern, name ref.Val) ref.Val {
					p, _ := pattern.Value().(string)
					n, _ := name.Value().(string)
					matched, _ := filepath.Match(p, n)
					return types.Bool(matched)
				}),
			),
		),
	)
}

// BuildActivation converts an EvaluationContext into the variable bindings
// NewPolicyCELEnvironment's program expects. A nil Arguments map is
// normalized to an empty one so CEL's map-typed variable never sees a Go
// nil.
func BuildActivation(evalCtx policy.EvaluationContext) map[string]any {
	args := evalCtx.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return map[string]any{
		"upstream":  evalCtx.Upstream,
		"tool":      evalCtx.Tool,
		"arguments": args,
	}
}
