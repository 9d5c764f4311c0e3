// Package synthesizer builds the TypeScript declaration surface (spec §4.2)
// that lets agent code reference upstream tools as typed namespace
// functions, and the per-function signature/JSDoc blocks served by
// get_function_details.
package synthesizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// TypeExpr renders a JSON Schema document as a TypeScript type expression,
// following the design-level mapping in spec §4.2. Any schema construct it
// cannot confidently express degrades to "any" rather than failing —
// degrading to any is always safe because the type-check sandbox's
// ignore-list already tolerates implicit-any diagnostics (§4.7).
func TypeExpr(schema json.RawMessage) string {
	if len(schema) == 0 {
		return "any"
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(schema, &s); err != nil {
		return "any"
	}
	return typeExprOf(&s)
}

func typeExprOf(s *jsonschema.Schema) string {
	if s == nil {
		return "any"
	}

	if len(s.Enum) > 0 {
		return enumUnion(s.Enum)
	}
	if len(s.OneOf) > 0 {
		return unionOf(s.OneOf)
	}
	if len(s.AnyOf) > 0 {
		return unionOf(s.AnyOf)
	}
	if len(s.AllOf) > 0 {
		return intersectionOf(s.AllOf)
	}

	switch s.Type {
	case "string":
		return "string"
	case "number", "integer":
		return "number"
	case "boolean":
		return "boolean"
	case "null":
		return "null"
	case "array":
		return typeExprOf(s.Items) + "[]"
	case "object":
		return objectLiteral(s)
	default:
		return "any"
	}
}

// objectLiteral renders an inline TypeScript object type for a JSON Schema
// object: properties mapped recursively, `required` controlling optionality,
// and `additionalProperties` (true or absent) widening the literal with a
// `[key: string]: any` index signature.
func objectLiteral(s *jsonschema.Schema) string {
	if len(s.Properties) == 0 && s.AdditionalProperties == nil {
		return "Record<string, any>"
	}

	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("{ ")
	for _, name := range names {
		prop := s.Properties[name]
		optional := ""
		if !required[name] {
			optional = "?"
		}
		fmt.Fprintf(&b, "%s%s: %s; ", propertyKey(name), optional, typeExprOf(prop))
	}
	if allowsAdditionalProperties(s) {
		b.WriteString("[key: string]: any; ")
	}
	b.WriteString("}")
	return b.String()
}

// allowsAdditionalProperties mirrors spec §4.2: additionalProperties true or
// absent widens the literal; only the false schema does not. jsonschema-go
// decodes `true` as the empty schema and `false` as {"not": {}}.
func allowsAdditionalProperties(s *jsonschema.Schema) bool {
	if s.AdditionalProperties == nil {
		return true
	}
	return s.AdditionalProperties.Not == nil
}

func propertyKey(name string) string {
	if isValidIdentifier(name) {
		return name
	}
	return strconv.Quote(name)
}

func isValidIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r == '$'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isLetter {
			return false
		}
		if i > 0 && !isLetter && !isDigit {
			return false
		}
	}
	return true
}

func enumUnion(values []any) string {
	lits := make([]string, 0, len(values))
	for _, v := range values {
		lits = append(lits, literalOf(v))
	}
	return strings.Join(lits, " | ")
}

func literalOf(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return "null"
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "any"
		}
		return string(b)
	}
}

func unionOf(schemas []*jsonschema.Schema) string {
	parts := make([]string, 0, len(schemas))
	for _, s := range schemas {
		parts = append(parts, typeExprOf(s))
	}
	return strings.Join(parts, " | ")
}

func intersectionOf(schemas []*jsonschema.Schema) string {
	parts := make([]string, 0, len(schemas))
	for _, s := range schemas {
		parts = append(parts, typeExprOf(s))
	}
	return strings.Join(parts, " & ")
}
