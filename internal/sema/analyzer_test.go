package sema

import (
	"testing"

	"compiscript/internal/parser"
	"compiscript/internal/symbols"
)

func analyze(t *testing.T, src string) ([]error, *symbols.Env) {
	t.Helper()
	prog, errs := parser.ParseSource(src)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors for %q: %v", src, errs)
	}
	errs, env, _ := Analyze(prog)
	return errs, env
}

func TestVarDeclTypeMismatchReported(t *testing.T) {
	errs, _ := analyze(t, `let x: integer = "hi";`)
	if len(errs) == 0 {
		t.Fatal("expected a type-mismatch diagnostic")
	}
}

func TestVarDeclInferredFromInit(t *testing.T) {
	errs, _ := analyze(t, `let x = 5; let y: integer = x;`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestConstReassignmentRejected(t *testing.T) {
	errs, _ := analyze(t, `const x: integer = 1; x = 2;`)
	if len(errs) == 0 {
		t.Fatal("expected assignment-to-const diagnostic")
	}
}

func TestRedeclarationInSameScopeRejected(t *testing.T) {
	errs, _ := analyze(t, `let x: integer = 1; let x: integer = 2;`)
	if len(errs) == 0 {
		t.Fatal("expected redeclaration diagnostic")
	}
}

func TestShadowingInNestedBlockAllowed(t *testing.T) {
	errs, _ := analyze(t, `
		let x: integer = 1;
		if (true) {
			let x: integer = 2;
		}
	`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestBreakOutsideLoopRejected(t *testing.T) {
	errs, _ := analyze(t, `break;`)
	if len(errs) == 0 {
		t.Fatal("expected 'break outside loop' diagnostic")
	}
}

func TestContinueInsideWhileAccepted(t *testing.T) {
	errs, _ := analyze(t, `
		let i: integer = 0;
		while (i < 10) {
			i = i + 1;
			continue;
		}
	`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestFunctionMissingReturnOnSomePathRejected(t *testing.T) {
	errs, _ := analyze(t, `
		function f(x: integer): integer {
			if (x > 0) {
				return x;
			}
		}
	`)
	if len(errs) == 0 {
		t.Fatal("expected 'does not guarantee a return' diagnostic")
	}
}

func TestFunctionReturnsOnEveryPathAccepted(t *testing.T) {
	errs, _ := analyze(t, `
		function f(x: integer): integer {
			if (x > 0) {
				return x;
			} else {
				return 0;
			}
		}
	`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestUnreachableCodeAfterReturnFlagged(t *testing.T) {
	errs, _ := analyze(t, `
		function f(): integer {
			return 1;
			let x: integer = 2;
		}
	`)
	if len(errs) == 0 {
		t.Fatal("expected unreachable-code diagnostic")
	}
}

func TestForwardReferenceBetweenFunctionsResolved(t *testing.T) {
	errs, _ := analyze(t, `
		function isEven(n: integer): boolean {
			if (n == 0) { return true; }
			return isOdd(n - 1);
		}
		function isOdd(n: integer): boolean {
			if (n == 0) { return false; }
			return isEven(n - 1);
		}
	`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestClosureCapturesEnclosingLocal(t *testing.T) {
	errs, env := analyze(t, `
		function outer(): integer {
			let captured: integer = 10;
			function inner(): integer {
				return captured;
			}
			return inner();
		}
	`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	innerID, ok := env.ResolveFrom(env.Root, "outer")
	if !ok {
		t.Fatal("expected to resolve 'outer' from the root scope")
	}
	_ = innerID
}

func TestGlobalReferenceIsNotCaptured(t *testing.T) {
	errs, env := analyze(t, `
		let g: integer = 1;
		function f(): integer {
			return g;
		}
	`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	fID, _ := env.Resolve("f")
	fn := env.Symbol(fID).Func
	if len(fn.Captures) != 0 {
		t.Fatalf("expected no captures for a global reference, got %v", fn.Captures)
	}
}

func TestClassInheritanceMethodResolved(t *testing.T) {
	errs, _ := analyze(t, `
		class Animal {
			let name: string;
			function speak(): string {
				return "...";
			}
		}
		class Dog extends Animal {
			function bark(): string {
				return "woof";
			}
		}
		function main(): void {
			let d: Dog = new Dog();
			print(d.speak());
			print(d.bark());
		}
	`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestUndeclaredMemberRejected(t *testing.T) {
	errs, _ := analyze(t, `
		class Animal {
			let name: string;
		}
		function main(): void {
			let a: Animal = new Animal();
			print(a.missing);
		}
	`)
	if len(errs) == 0 {
		t.Fatal("expected undeclared-member diagnostic")
	}
}

func TestArgumentCountMismatchRejected(t *testing.T) {
	errs, _ := analyze(t, `
		function add(a: integer, b: integer): integer {
			return a + b;
		}
		function main(): void {
			print(add(1));
		}
	`)
	if len(errs) == 0 {
		t.Fatal("expected argument-count diagnostic")
	}
}

func TestForeachBindsElementType(t *testing.T) {
	errs, _ := analyze(t, `
		function main(): void {
			let xs: integer[] = [1, 2, 3];
			foreach (x in xs) {
				print(x);
			}
		}
	`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestSwitchCaseTypeMismatchRejected(t *testing.T) {
	errs, _ := analyze(t, `
		function main(): void {
			let x: integer = 1;
			switch (x) {
				case "a": { print("a"); }
			}
		}
	`)
	if len(errs) == 0 {
		t.Fatal("expected switch case type mismatch diagnostic")
	}
}
