package typecheck

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/codemode-gw/codemode/internal/domain/diagnostic"
)

// litecheck is fallback mode's stand-in for a real TypeScript compiler's
// semantic pass. It is deliberately narrow: it parses the synthesizer's
// rendered declarations text (internal/synthesizer.RenderDeclarations) for
// flat, primitive-typed `args` object shapes, finds namespaced call sites
// (`ns.fn({ ... })`) in the user's source with object-literal arguments, and
// flags a literal whose inferred primitive type doesn't match the declared
// one. Anything it can't confidently parse on either side — nested objects,
// arrays, computed property values, spread arguments — is silently skipped
// rather than guessed at, consistent with TypeExpr's own "unhandled
// constructs degrade to any" policy (spec §4.2): litecheck would rather miss
// a real error than invent a false one.
func litecheck(userCode, declarations string) []diagnostic.Diagnostic {
	decls := parseDeclaredParams(declarations)
	if len(decls) == 0 {
		return nil
	}
	return checkCallSites(userCode, decls)
}

// declaredParams maps a tool's flat `args` property names to their primitive
// TypeScript type name ("string", "number", "boolean", "null"); properties
// whose type litecheck can't confidently parse (objects, arrays, unions) are
// simply absent from the map rather than checked.
type declaredParams map[string]string

var (
	namespaceOpenPattern = regexp.MustCompile(`declare namespace (\w+) \{`)
	functionDeclPattern  = regexp.MustCompile(`function (\w+)\(args: \{(.*)\}\): Promise<`)
	declaredPropPattern  = regexp.MustCompile(`(\w+)\??:\s*([^;]+);`)
)

// parseDeclaredParams walks the rendered declarations text line by line,
// tracking the innermost `declare namespace` block, and collects each
// function's flat declared parameter types keyed by "ns.fn".
func parseDeclaredParams(declarations string) map[string]declaredParams {
	out := make(map[string]declaredParams)
	ns := ""
	for _, line := range strings.Split(declarations, "\n") {
		if m := namespaceOpenPattern.FindStringSubmatch(line); m != nil {
			ns = m[1]
			continue
		}
		if strings.TrimSpace(line) == "}" {
			ns = ""
			continue
		}
		m := functionDeclPattern.FindStringSubmatch(line)
		if m == nil || ns == "" {
			continue
		}
		fn, body := m[1], m[2]
		params := declaredParams{}
		for _, pm := range declaredPropPattern.FindAllStringSubmatch(body, -1) {
			name, typ := pm[1], strings.TrimSpace(pm[2])
			if name == "key" || strings.Contains(typ, "[") {
				continue // index signature, e.g. `[key: string]: any`
			}
			if isPrimitiveType(typ) {
				params[name] = typ
			}
		}
		out[ns+"."+fn] = params
	}
	return out
}

func isPrimitiveType(t string) bool {
	switch t {
	case "string", "number", "boolean", "null":
		return true
	default:
		return false
	}
}

var callSitePattern = regexp.MustCompile(`(\w+)\.(\w+)\(\s*\{([^{}]*)\}\s*\)`)
var literalPropPattern = regexp.MustCompile(`(\w+)\s*:\s*("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|-?\d+(?:\.\d+)?|true|false|null)`)

// checkCallSites scans userCode for `ns.fn({ ... })` calls whose target is a
// declared function, and compares each literal argument property's inferred
// type against the declared one.
func checkCallSites(userCode string, decls map[string]declaredParams) []diagnostic.Diagnostic {
	var out []diagnostic.Diagnostic
	for _, m := range callSitePattern.FindAllStringSubmatchIndex(userCode, -1) {
		ns := userCode[m[2]:m[3]]
		fn := userCode[m[4]:m[5]]
		argsStart, argsEnd := m[6], m[7]
		params, ok := decls[ns+"."+fn]
		if !ok {
			continue
		}
		body := userCode[argsStart:argsEnd]
		for _, pm := range literalPropPattern.FindAllStringSubmatchIndex(body, -1) {
			name := body[pm[2]:pm[3]]
			literal := body[pm[4]:pm[5]]
			declared, ok := params[name]
			if !ok {
				continue
			}
			actual := literalType(literal)
			if actual == "" || actual == declared {
				continue
			}
			out = append(out, diagnostic.Diagnostic{
				Message:  "Type '" + literal + "' is not assignable to type '" + declared + "'.",
				Line:     1 + strings.Count(userCode[:argsStart+pm[4]], "\n"),
				Severity: diagnostic.SeverityError,
				Code:     typeMismatchCode,
			})
		}
	}
	return out
}

// typeMismatchCode mirrors the real TypeScript compiler's TS2322 ("Type 'X'
// is not assignable to type 'Y'") so fallback-mode output stays wire-
// compatible with spec §8 scenario 2's expected diagnostic code.
const typeMismatchCode = 2322

func literalType(lit string) string {
	switch {
	case lit == "true" || lit == "false":
		return "boolean"
	case lit == "null":
		return "null"
	case strings.HasPrefix(lit, `"`) || strings.HasPrefix(lit, "'"):
		return "string"
	default:
		if _, err := strconv.ParseFloat(lit, 64); err == nil {
			return "number"
		}
		return ""
	}
}
