package synthesizer

import (
	"encoding/json"
	"testing"
)

func TestTypeExpr(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		want   string
	}{
		{"string", `{"type":"string"}`, "string"},
		{"number", `{"type":"number"}`, "number"},
		{"integer", `{"type":"integer"}`, "number"},
		{"boolean", `{"type":"boolean"}`, "boolean"},
		{"null", `{"type":"null"}`, "null"},
		{"array of string", `{"type":"array","items":{"type":"string"}}`, "string[]"},
		{"array without items", `{"type":"array"}`, "any[]"},
		{
			"object with required and optional",
			`{"type":"object","properties":{"sheetId":{"type":"string"},"note":{"type":"string"}},"required":["sheetId"]}`,
			`{ note?: string; sheetId: string; }`,
		},
		{
			"object with additionalProperties absent widens",
			`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`,
			`{ id: string; [key: string]: any; }`,
		},
		{
			"object with additionalProperties false stays closed",
			`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"],"additionalProperties":false}`,
			`{ id: string; }`,
		},
		{"empty object", `{"type":"object"}`, "Record<string, any>"},
		{
			"enum of strings",
			`{"type":"string","enum":["a","b","c"]}`,
			`"a" | "b" | "c"`,
		},
		{
			"oneOf union",
			`{"oneOf":[{"type":"string"},{"type":"number"}]}`,
			"string | number",
		},
		{
			"allOf intersection",
			`{"allOf":[{"type":"object","properties":{"a":{"type":"string"}},"required":["a"]},{"type":"object","properties":{"b":{"type":"number"}},"required":["b"]}]}`,
			`{ a: string; } & { b: number; }`,
		},
		{"missing schema degrades to any", "", "any"},
		{"malformed schema degrades to any", "{not json", "any"},
		{"unknown construct degrades to any", `{"not_a_type_keyword":true}`, "any"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TypeExpr(json.RawMessage(tt.schema))
			if got != tt.want {
				t.Errorf("TypeExpr(%s) = %q, want %q", tt.schema, got, tt.want)
			}
		})
	}
}
