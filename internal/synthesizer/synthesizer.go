package synthesizer

import (
	"fmt"
	"strings"

	"github.com/codemode-gw/codemode/internal/domain/catalog"
)

// RenderDeclarations builds the single textual TypeScript declaration
// resource the type-check sandbox's ambient lib.deno.d.ts is seeded with
// (spec §4.2/§4.3). Catalog upstreams and tools are already canonically
// sorted by catalog.Builder.Build, so two equal catalogs always produce
// byte-identical text (spec §8 idempotence property).
func RenderDeclarations(cat *catalog.Catalog) string {
	var b strings.Builder
	for i, up := range cat.Upstreams() {
		if i > 0 {
			b.WriteString("\n")
		}
		tools, _ := cat.Tools(up.Name)
		fmt.Fprintf(&b, "declare namespace %s {\n", up.Name)
		for _, tool := range tools {
			writeFunctionDecl(&b, tool)
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func writeFunctionDecl(b *strings.Builder, tool catalog.ToolDescriptor) {
	if tool.Description != "" {
		fmt.Fprintf(b, "  /** %s */\n", singleLine(tool.Description))
	}
	argsType := TypeExpr(tool.InputSchema)
	returnType := "any"
	if len(tool.OutputSchema) > 0 {
		returnType = TypeExpr(tool.OutputSchema)
	}
	fmt.Fprintf(b, "  function %s(args: %s): Promise<%s>;\n", tool.Name, argsType, returnType)
}

func singleLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// Signature renders the bare function signature for one tool, as used in
// get_function_details (spec §4.2: "a per-function pretty-printed block:
// signature + JSDoc").
func Signature(upstreamName string, tool catalog.ToolDescriptor) string {
	argsType := TypeExpr(tool.InputSchema)
	returnType := "any"
	if len(tool.OutputSchema) > 0 {
		returnType = TypeExpr(tool.OutputSchema)
	}
	return fmt.Sprintf("function %s.%s(args: %s): Promise<%s>", upstreamName, tool.Name, argsType, returnType)
}

// FQName joins an upstream and tool name into the "<ns>.<fn>" form used by
// get_function_details's request/response (spec §4.5).
func FQName(upstreamName, toolName string) string {
	return upstreamName + "." + toolName
}

// SplitFQName parses a "<ns>.<fn>" name into its upstream and tool parts.
// Only the first "." is significant; tool names cannot themselves contain
// one because they must match catalog.ValidIdentifier.
func SplitFQName(fq string) (upstream, tool string, ok bool) {
	i := strings.IndexByte(fq, '.')
	if i <= 0 || i == len(fq)-1 {
		return "", "", false
	}
	return fq[:i], fq[i+1:], true
}
