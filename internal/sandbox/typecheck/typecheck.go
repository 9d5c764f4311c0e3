// Package typecheck implements the Type-Check Sandbox (spec.md §4.3): a
// disposable goja VM that type-checks user TypeScript against the
// synthesizer's generated ambient declarations and returns filtered
// diagnostics. The VM has no I/O capabilities and is discarded after every
// call — nothing it does outlives one Check.
package typecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dop251/goja"

	"github.com/codemode-gw/codemode/internal/domain/diagnostic"
	"github.com/codemode-gw/codemode/internal/sandbox/transpile"
)

// Checker type-checks user code against a declaration surface. The zero
// value (via NewChecker("")) runs in fallback mode: no real TypeScript
// compiler is loaded, so fullCheck's createProgram/getPreEmitDiagnostics
// path is unavailable. Fallback mode is not syntax-only, though: it pairs
// the esbuild-based TS parser (syntax diagnostics) with litecheck's flat
// structural comparison of object-literal call-site arguments against the
// declared parameter shape (a narrow, real semantic check — see litecheck.go
// for exactly what it can and can't catch). Supplying the real `typescript`
// package's UMD bundle (see assets/README.md, NewCheckerFromFile) upgrades
// to full compiler-driven semantic checking.
type Checker struct {
	compilerSource string
}

// NewChecker creates a Checker. compilerSource is the full text of a
// TypeScript-compiler UMD bundle exposing a global `ts` object; pass "" to
// run in fallback mode (esbuild syntax check + litecheck structural check).
func NewChecker(compilerSource string) *Checker {
	return &Checker{compilerSource: compilerSource}
}

// NewCheckerFromFile loads a TypeScript-compiler UMD bundle from path (e.g.
// the `typescript` npm package's lib/typescript.js, see assets/README.md)
// and returns a Checker wrapping it. Operators who have a real compiler
// bundle available point Config.TypeCheck.CompilerPath at it; operators who
// don't get NewChecker("")'s fallback mode instead.
func NewCheckerFromFile(path string) (*Checker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("typecheck: reading compiler bundle %s: %w", path, err)
	}
	return NewChecker(string(data)), nil
}

func (c *Checker) hasCompiler() bool {
	return c.compilerSource != ""
}

// rawDiagnostic mirrors the JSON shape the driver script inside the goja VM
// emits for each TypeScript diagnostic.
type rawDiagnostic struct {
	Message  string `json:"message"`
	Code     int    `json:"code"`
	Severity string `json:"severity"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// Check type-checks userCode against declarations (the synthesizer's
// rendered ambient .d.ts text, spec §4.2) and returns the ignored-codes-
// filtered diagnostic set. A fresh VM is used for every call; nothing about
// a prior Check is visible to the next one.
func (c *Checker) Check(ctx context.Context, userCode, declarations string) ([]diagnostic.Diagnostic, error) {
	var raw []diagnostic.Diagnostic
	var err error
	if c.hasCompiler() {
		raw, err = c.fullCheck(ctx, userCode, declarations)
	} else {
		raw = c.fallbackCheck(userCode, declarations)
	}
	if err != nil {
		return nil, err
	}
	return diagnostic.Filter(raw), nil
}

// fullCheck drives the real TypeScript compiler API (createProgram +
// getPreEmitDiagnostics) inside an isolated goja VM seeded with a synthetic
// two-file host: check.ts = userCode, lib.deno.d.ts = declarations.
// Compiler options match spec §4.3 exactly: ES2020/ES2020 module,
// strict, noEmit, noLib, skipLibCheck=false.
func (c *Checker) fullCheck(ctx context.Context, userCode, declarations string) ([]diagnostic.Diagnostic, error) {
	rt := goja.New()
	rt.SetFieldNameMapper(goja.UncapFieldNameMapper())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			rt.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	if _, err := rt.RunString(c.compilerSource); err != nil {
		return nil, fmt.Errorf("typecheck: loading compiler bundle: %w", err)
	}
	driver, err := rt.RunString(typeCheckDriverJS)
	if err != nil {
		return nil, fmt.Errorf("typecheck: loading driver: %w", err)
	}
	fn, ok := goja.AssertFunction(driver)
	if !ok {
		return nil, fmt.Errorf("typecheck: driver script did not evaluate to a function")
	}

	result, err := fn(goja.Undefined(), rt.ToValue(userCode), rt.ToValue(declarations))
	if err != nil {
		return nil, fmt.Errorf("typecheck: running compiler: %w", err)
	}

	var raw []rawDiagnostic
	if err := json.Unmarshal([]byte(result.String()), &raw); err != nil {
		return nil, fmt.Errorf("typecheck: decoding diagnostics: %w", err)
	}

	out := make([]diagnostic.Diagnostic, 0, len(raw))
	for _, d := range raw {
		sev := diagnostic.SeverityError
		if d.Severity == "warning" {
			sev = diagnostic.SeverityWarning
		}
		out = append(out, diagnostic.Diagnostic{
			Message:  d.Message,
			Line:     d.Line,
			Column:   d.Column,
			Severity: sev,
			Code:     d.Code,
		})
	}
	return out, nil
}

// fallbackCheck runs when no real TypeScript compiler bundle is configured.
// It combines the execution sandbox's esbuild-based TS parser (syntax
// diagnostics) with litecheck's flat structural comparison of call-site
// object-literal arguments against the declared parameter shape (semantic
// diagnostics, within litecheck's narrow coverage — see litecheck.go). It
// never blocks runnable code on a missing compiler-bundle asset, and it can
// still produce a real code-2322 diagnostic for the case that matters most:
// a literal argument of the wrong primitive type (spec §8 scenario 2).
func (c *Checker) fallbackCheck(userCode, declarations string) []diagnostic.Diagnostic {
	res := transpile.ToJS("check.ts", userCode)
	out := make([]diagnostic.Diagnostic, len(res.Diagnostics))
	for i, d := range res.Diagnostics {
		d.Code = fallbackSyntaxErrorCode
		out[i] = d
	}
	if diagnostic.HasErrors(out) {
		// A syntax error already makes the source unparseable for litecheck's
		// own (much cruder) regex scan; don't pile on confusing diagnostics.
		return out
	}
	out = append(out, litecheck(userCode, declarations)...)
	return out
}

// fallbackSyntaxErrorCode is not present in diagnostic.Ignored, so a
// fallback-mode syntax error still fails type-check the same way a real
// compiler's would.
const fallbackSyntaxErrorCode = 1002

// typeCheckDriverJS is evaluated inside the VM after the compiler bundle
// loads. It returns a JSON-encoded array of diagnostics as a string so the
// host never has to walk goja Values by hand.
const typeCheckDriverJS = `
(function(userCode, libText) {
  var files = { "check.ts": userCode, "lib.deno.d.ts": libText };
  var host = {
    getSourceFile: function(fileName, languageVersion) {
      var text = files[fileName];
      if (text === undefined) return undefined;
      return ts.createSourceFile(fileName, text, languageVersion, true);
    },
    writeFile: function() {},
    getDefaultLibFileName: function() { return "lib.deno.d.ts"; },
    useCaseSensitiveFileNames: function() { return true; },
    getCanonicalFileName: function(f) { return f; },
    getCurrentDirectory: function() { return ""; },
    getNewLine: function() { return "\n"; },
    fileExists: function(f) { return files[f] !== undefined; },
    readFile: function(f) { return files[f]; },
    directoryExists: function() { return true; },
    getDirectories: function() { return []; }
  };
  var options = {
    target: ts.ScriptTarget.ES2020,
    module: ts.ModuleKind.ES2020,
    strict: true,
    noEmit: true,
    skipLibCheck: false,
    noLib: true
  };
  var program = ts.createProgram(["check.ts"], options, host);
  var diags = ts.getPreEmitDiagnostics(program);
  var out = [];
  for (var i = 0; i < diags.length; i++) {
    var d = diags[i];
    var item = {
      message: ts.flattenDiagnosticMessageText(d.messageText, "\n"),
      code: d.code,
      severity: d.category === ts.DiagnosticCategory.Error ? "error" : "warning"
    };
    if (d.file && d.start !== undefined) {
      var pos = d.file.getLineAndCharacterOfPosition(d.start);
      item.line = pos.line + 1;
      item.column = pos.character + 1;
    }
    out.push(item);
  }
  return JSON.stringify(out);
})
`
