package diagnostic

import "testing"

func TestFilterDropsIgnoredCodes(t *testing.T) {
	in := []Diagnostic{
		{Message: "implicit any", Code: 7006, Severity: SeverityError},
		{Message: "type mismatch", Code: 2322, Severity: SeverityError},
	}
	out := Filter(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 diagnostic to survive filtering, got %d: %v", len(out), out)
	}
	if out[0].Code != 2322 {
		t.Errorf("expected the surviving diagnostic to be code 2322, got %d", out[0].Code)
	}
}

func TestFilterNeverDropsSyntheticDiagnostics(t *testing.T) {
	in := []Diagnostic{
		{Message: "execution timed out after 200ms", Severity: SeverityError},
	}
	out := Filter(in)
	if len(out) != 1 {
		t.Fatalf("expected a Code==0 synthetic diagnostic to survive filtering, got %d", len(out))
	}
}

func TestIgnored(t *testing.T) {
	if !Ignored(2304) {
		t.Error("expected 2304 to be on the ignore-list")
	}
	if Ignored(2322) {
		t.Error("expected 2322 (a real type error) to not be on the ignore-list")
	}
}

func TestHasErrors(t *testing.T) {
	if HasErrors(nil) {
		t.Error("expected no diagnostics to report HasErrors() == false")
	}
	if HasErrors([]Diagnostic{{Severity: SeverityWarning}}) {
		t.Error("expected a warning-only set to report HasErrors() == false")
	}
	if !HasErrors([]Diagnostic{{Severity: SeverityWarning}, {Severity: SeverityError}}) {
		t.Error("expected a set containing an error to report HasErrors() == true")
	}
}
