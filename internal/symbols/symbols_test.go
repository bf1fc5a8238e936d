package symbols

import (
	"testing"

	"compiscript/internal/types"
)

func TestDeclareRedeclarationFails(t *testing.T) {
	env := NewEnv()
	if _, ok := env.Declare("x", VarKind); !ok {
		t.Fatal("first declaration should succeed")
	}
	if _, ok := env.Declare("x", VarKind); ok {
		t.Fatal("redeclaration in the same scope should fail")
	}
}

func TestResolveWalksParents(t *testing.T) {
	env := NewEnv()
	outer, _ := env.Declare("x", VarKind)
	env.Symbol(outer).Type = types.Simple(types.Int)
	env.Symbol(outer).HasType = true

	child := env.PushScope(BlockScope, NoSymbol)
	_ = child
	id, ok := env.Resolve("x")
	if !ok || id != outer {
		t.Fatalf("expected to resolve 'x' from nested scope, got ok=%v id=%v", ok, id)
	}
	env.PopTo(env.Root)
}

func TestShadowingInnerWins(t *testing.T) {
	env := NewEnv()
	outer, _ := env.Declare("x", VarKind)
	env.PushScope(BlockScope, NoSymbol)
	inner, _ := env.Declare("x", VarKind)
	if inner == outer {
		t.Fatal("inner declaration should be a distinct symbol")
	}
	id, _ := env.Resolve("x")
	if id != inner {
		t.Fatal("resolution from inner scope should find the shadowing declaration")
	}
}

func TestIsAncestor(t *testing.T) {
	env := NewEnv()
	fnScope := env.PushScope(FunctionScope, NoSymbol)
	blockScope := env.PushScope(BlockScope, NoSymbol)
	if !env.IsAncestor(env.Root, blockScope) {
		t.Fatal("root should be an ancestor of the nested block scope")
	}
	if !env.IsAncestor(fnScope, blockScope) {
		t.Fatal("function scope should be an ancestor of its nested block")
	}
	if env.IsAncestor(blockScope, fnScope) {
		t.Fatal("a descendant is not an ancestor of its parent")
	}
}

func TestAppendCaptureDedups(t *testing.T) {
	fn := &FuncInfo{}
	AppendCapture(fn, SymbolID(3))
	AppendCapture(fn, SymbolID(5))
	AppendCapture(fn, SymbolID(3))
	if len(fn.Captures) != 2 {
		t.Fatalf("expected 2 deduplicated captures, got %v", fn.Captures)
	}
}

func TestResolveClassMemberInheritance(t *testing.T) {
	env := NewEnv()
	aScope := env.PushScope(ClassScope, NoSymbol)
	getSym, _ := env.DeclareIn(aScope, "get", FuncKind)
	env.PopTo(env.Root)

	aClassSym, _ := env.Declare("A", ClassKind)
	env.Symbol(aClassSym).Class = &ClassInfo{Members: map[string]SymbolID{"get": getSym}, Ctor: NoSymbol}

	bClassSym, _ := env.Declare("B", ClassKind)
	env.Symbol(bClassSym).Class = &ClassInfo{Members: map[string]SymbolID{}, Ctor: NoSymbol, BaseName: "A"}

	classOf := map[string]SymbolID{"A": aClassSym, "B": bClassSym}
	id, owner, ok := ResolveClassMember(env, classOf, "B", "get")
	if !ok || id != getSym || owner != "A" {
		t.Fatalf("expected to resolve B.get via inheritance from A, got id=%v owner=%v ok=%v", id, owner, ok)
	}
}

func TestResolveClassMemberCycleTolerated(t *testing.T) {
	env := NewEnv()
	aSym, _ := env.Declare("A", ClassKind)
	bSym, _ := env.Declare("B", ClassKind)
	env.Symbol(aSym).Class = &ClassInfo{Members: map[string]SymbolID{}, Ctor: NoSymbol, BaseName: "B"}
	env.Symbol(bSym).Class = &ClassInfo{Members: map[string]SymbolID{}, Ctor: NoSymbol, BaseName: "A"}

	classOf := map[string]SymbolID{"A": aSym, "B": bSym}
	_, _, ok := ResolveClassMember(env, classOf, "A", "missing")
	if ok {
		t.Fatal("missing member on a cyclic inheritance chain must resolve to not-found, not loop forever")
	}
}
