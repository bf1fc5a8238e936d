package astprint

import (
	"strings"
	"testing"

	"compiscript/internal/parser"
)

func mustParse(t *testing.T, src string) string {
	t.Helper()
	prog, errs := parser.ParseSource(src)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	return Print(prog)
}

func TestPrintVarDeclWithBinaryInit(t *testing.T) {
	out := mustParse(t, "let x: integer = 2 + 3 * 4;")
	if !strings.Contains(out, "(let x (+ 2 (* 3 4)))") {
		t.Fatalf("expected a nested binary s-expression respecting precedence, got:\n%s", out)
	}
}

func TestPrintFunctionDeclWithParamsAndBody(t *testing.T) {
	out := mustParse(t, `
function add(a: integer, b: integer): integer {
    return a + b;
}
`)
	if !strings.Contains(out, "(function add (a b)") {
		t.Fatalf("expected the function header with its parameter names, got:\n%s", out)
	}
	if !strings.Contains(out, "(return (+ a b))") {
		t.Fatalf("expected the return statement rendered, got:\n%s", out)
	}
}

func TestPrintIfWithElseBranch(t *testing.T) {
	out := mustParse(t, `
function f(): void {
    if (true) {
        print(1);
    } else {
        print(2);
    }
}
`)
	if !strings.Contains(out, "(if true") {
		t.Fatalf("expected the if condition rendered, got:\n%s", out)
	}
	if !strings.Contains(out, "(call print 1)") || !strings.Contains(out, "(call print 2)") {
		t.Fatalf("expected both branches' print calls rendered, got:\n%s", out)
	}
}

func TestPrintClassDeclWithFieldAndMethod(t *testing.T) {
	out := mustParse(t, `
class Dog {
    let name: string;
    function bark(): string {
        return this.name;
    }
}
`)
	if !strings.Contains(out, "(class Dog") {
		t.Fatalf("expected the class header, got:\n%s", out)
	}
	if !strings.Contains(out, "(function bark ()") {
		t.Fatalf("expected the method rendered, got:\n%s", out)
	}
	if !strings.Contains(out, "(member this name)") {
		t.Fatalf("expected the this.name member access rendered, got:\n%s", out)
	}
}
