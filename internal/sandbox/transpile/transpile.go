// Package transpile strips TypeScript syntax from user code down to plain
// ES2020 JavaScript the execution sandbox's goja VM can run. goja itself
// only understands JavaScript (spec.md §4.4); this package is the one place
// TypeScript-specific syntax (type annotations, interfaces, enums, `as`
// casts) is removed before code ever reaches that VM.
package transpile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/codemode-gw/codemode/internal/domain/diagnostic"
)

// Result is the outcome of stripping one source file.
type Result struct {
	JS          string
	Diagnostics []diagnostic.Diagnostic
}

// ToJS strips TypeScript type syntax from source and lowers it to ES2020,
// no bundling or module resolution performed (there is no module loader to
// resolve against). Used where only syntax validity matters, e.g. the
// type-check sandbox's fallback mode.
//
// Transformed with the "esm" output format rather than "iife": esbuild
// rejects top-level await for formats it considers synchronous call
// conventions (iife, cjs), and top-level await is exactly the shape agent
// code is expected to use (spec.md §8 scenario 3). Since this path is only
// ever used for syntax diagnostics and its output is never executed, the
// leftover `export`/`import` keywords esm format preserves are harmless.
func ToJS(sourcefile, source string) Result {
	return transform(sourcefile, source, api.FormatESModule)
}

// ToCommonJS strips TypeScript type syntax and rewrites it into a plain,
// directly runnable script: `export default X` becomes
// `module.exports.default = X` (spec.md §4.4: "its default export, if any,
// becomes return_value") and any other top-level `export` keyword is
// dropped, since the execution sandbox has no module loader for named
// exports to resolve against.
//
// The TypeScript-stripping pass itself runs with the "esm" output format,
// not "cjs": esbuild refuses to emit top-level await for cjs/iife output
// (both are synchronous calling conventions), and top-level await is the
// calling convention spec.md documents for invoking upstream tools. Only
// esm format keeps top-level await as plain, runnable syntax; the exports
// rewrite that follows is then done textually rather than by esbuild, since
// nothing here bundles or resolves a module graph for esbuild to lower
// against.
func ToCommonJS(sourcefile, source string) Result {
	res := transform(sourcefile, source, api.FormatESModule)
	if res.HasErrors() {
		return res
	}
	res.JS = rewriteExports(res.JS)
	return res
}

// exportDefaultPattern matches a line-initial `export default` so it can be
// rewritten into a plain assignment the execution sandbox's module.exports
// object picks up (see ToCommonJS).
var exportDefaultPattern = regexp.MustCompile(`(?m)^export default\b\s*`)

// exportPattern matches any other line-initial `export` keyword (named
// const/let/var/function/class exports), which gets dropped since there is
// no module loader for named exports to resolve against.
var exportPattern = regexp.MustCompile(`(?m)^export\s+`)

func rewriteExports(js string) string {
	js = exportDefaultPattern.ReplaceAllString(js, "module.exports.default = ")
	js = exportPattern.ReplaceAllString(js, "")
	return js
}

func transform(sourcefile, source string, format api.Format) Result {
	opts := api.TransformOptions{
		Sourcefile: sourcefile,
		Loader:     api.LoaderTS,
		Target:     api.ES2020,
		Format:     format,
	}
	res := api.Transform(source, opts)

	out := Result{
		JS:          string(res.Code),
		Diagnostics: messagesToDiagnostics(res.Errors),
	}
	out.Diagnostics = append(out.Diagnostics, messagesToDiagnostics(res.Warnings)...)
	return out
}

// HasErrors reports whether ToJS's diagnostics contain at least one error.
func (r Result) HasErrors() bool {
	return diagnostic.HasErrors(r.Diagnostics)
}

func messagesToDiagnostics(msgs []api.Message) []diagnostic.Diagnostic {
	out := make([]diagnostic.Diagnostic, 0, len(msgs))
	for _, m := range msgs {
		d := diagnostic.Diagnostic{
			Message:  formatMessage(m),
			Severity: diagnostic.SeverityError,
		}
		if m.Location != nil {
			d.Line = m.Location.Line
			d.Column = m.Location.Column + 1
		}
		out = append(out, d)
	}
	return out
}

func formatMessage(m api.Message) string {
	var b strings.Builder
	b.WriteString(m.Text)
	if m.Location != nil && m.Location.LineText != "" {
		fmt.Fprintf(&b, " (%s)", strings.TrimSpace(m.Location.LineText))
	}
	return b.String()
}
