package main

import (
	"strings"
	"testing"
)

const sampleProgram = `
function add(a: integer, b: integer): integer {
    return a + b;
}
function main(): void {
    print(add(1, 2));
}
`

func TestCompileEmitsX86Assembly(t *testing.T) {
	out, instrs, err := compile(sampleProgram, "x86", "asm", 1)
	if err != nil {
		t.Fatalf("compile returned an error: %v", err)
	}
	if !strings.Contains(out, "add:\n") || !strings.Contains(out, "main:\n") {
		t.Fatalf("expected both functions emitted, got:\n%s", out)
	}
	if instrs <= 0 {
		t.Fatalf("expected a positive instruction count, got %d", instrs)
	}
}

func TestCompileEmitsMipsAssembly(t *testing.T) {
	out, _, err := compile(sampleProgram, "mips", "asm", 1)
	if err != nil {
		t.Fatalf("compile returned an error: %v", err)
	}
	if !strings.Contains(out, "add:\n") || !strings.Contains(out, "main:\n") {
		t.Fatalf("expected both functions emitted, got:\n%s", out)
	}
}

func TestCompileEmitsIRText(t *testing.T) {
	out, _, err := compile(sampleProgram, "x86", "ir", 1)
	if err != nil {
		t.Fatalf("compile returned an error: %v", err)
	}
	if !strings.Contains(out, "; entry: main") {
		t.Fatalf("expected the IR printer's entry comment, got:\n%s", out)
	}
}

func TestCompileEmitsASTText(t *testing.T) {
	out, _, err := compile(sampleProgram, "x86", "ast", 1)
	if err != nil {
		t.Fatalf("compile returned an error: %v", err)
	}
	if !strings.Contains(out, "(function add") || !strings.Contains(out, "(function main") {
		t.Fatalf("expected both function declarations dumped, got:\n%s", out)
	}
}

func TestCompileReportsSyntaxErrorsAsDiagnostics(t *testing.T) {
	_, _, err := compile("let x: integer = ;", "x86", "asm", 1)
	if err == nil {
		t.Fatalf("expected a syntax error")
	}
	if _, ok := err.(diagnostics); !ok {
		t.Fatalf("expected a diagnostics batch, got %T: %v", err, err)
	}
}

func TestCompileReportsSemanticErrorsAsDiagnostics(t *testing.T) {
	_, _, err := compile(`
function main(): void {
    let x: integer = "not an int";
}
`, "x86", "asm", 1)
	if err == nil {
		t.Fatalf("expected a type error")
	}
	if _, ok := err.(diagnostics); !ok {
		t.Fatalf("expected a diagnostics batch, got %T: %v", err, err)
	}
}

func TestCompileRejectsUnknownTarget(t *testing.T) {
	_, _, err := compile(sampleProgram, "sparc", "asm", 1)
	if err == nil {
		t.Fatalf("expected an unknown-target error")
	}
}

func TestCompileWithOptimizationDisabledStillProducesOutput(t *testing.T) {
	out, _, err := compile(sampleProgram, "x86", "asm", 0)
	if err != nil {
		t.Fatalf("compile returned an error: %v", err)
	}
	if !strings.Contains(out, "call add\n") {
		t.Fatalf("expected an unoptimized call to add to survive, got:\n%s", out)
	}
}
