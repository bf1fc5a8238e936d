// Package sema implements Compiscript's two-pass semantic analyzer
// (spec.md §4.1): pass 1 collects function/class declarations (including
// ones nested inside control-flow bodies) without checking statement
// bodies, mirroring the teacher's own HoistingCompiler
// (collectFunctions/precompileFunctions in
// internal/compiler/hoisting_compiler.go); pass 2 walks every statement,
// enforcing typing, scoping, closure capture and control-flow rules.
package sema

import (
	"compiscript/internal/ast"
	"compiscript/internal/diag"
	"compiscript/internal/symbols"
	"compiscript/internal/token"
	"compiscript/internal/types"
)

// Analyzer holds the state threaded through both passes.
type Analyzer struct {
	env     *symbols.Env
	errors  []error
	classOf map[string]symbols.SymbolID // global class-name -> ClassKind symbol

	// Compiler-internal plumbing (not part of spec.md §3.4's Symbol data
	// model): the scope pass 1 opened for a function/class body, resumed by
	// pass 2 so declarations discovered in pass 1 and those added in pass 2
	// (params, locals) land in the very same scope object.
	bodyScope map[symbols.SymbolID]symbols.ScopeID

	loopDepth   int
	switchDepth int
	deadStack   []bool
	retStack    []types.Type // declared return type of each enclosing function, innermost last
}

// Analyze runs both passes over prog and returns the accumulated
// diagnostics (empty on success), the populated environment, and the
// global class-name -> symbol map the IR builder needs to resolve
// constructor calls and member/method lookups, per spec.md §4.1: "it
// always returns (errors, env)" — classOf is compiler-internal plumbing
// threaded alongside env, not a third spec.md-mandated return value.
func Analyze(prog *ast.Program) ([]error, *symbols.Env, map[string]symbols.SymbolID) {
	a := &Analyzer{
		env:       symbols.NewEnv(),
		classOf:   make(map[string]symbols.SymbolID),
		bodyScope: make(map[symbols.SymbolID]symbols.ScopeID),
	}
	a.declareBuiltins()
	a.collectInto(prog.Stmts)
	a.checkBlockStmts(prog.Stmts)
	return a.errors, a.env, a.classOf
}

func (a *Analyzer) errorf(pos token.Position, format string, args ...interface{}) {
	a.errors = append(a.errors, diag.New(pos, format, args...))
}

func (a *Analyzer) declareBuiltins() {
	id, _ := a.env.Declare("print", symbols.FuncKind)
	a.env.Symbol(id).Func = &symbols.FuncInfo{
		Params:    []symbols.FuncParam{{Name: "value", Type: types.Simple(types.Unknown)}},
		Return:    types.Simple(types.Void),
		IsBuiltin: true,
	}
}

// ---- pass 1: declaration collection ----

func stmtsOf(s ast.Stmt) []ast.Stmt {
	if s == nil {
		return nil
	}
	if b, ok := s.(*ast.Block); ok {
		return b.Stmts
	}
	return []ast.Stmt{s}
}

// collectInto walks stmts looking only for function/class declarations,
// recursing through every control-flow construct's bodies without
// checking anything else, per spec.md §4.1 pass 1.
func (a *Analyzer) collectInto(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch n := s.(type) {
		case *ast.FunctionDecl:
			sym := a.declareFunctionSignature(n, false, "")
			if sym == symbols.NoSymbol {
				continue
			}
			outer := a.env.Current()
			scope := a.env.PushScope(symbols.FunctionScope, sym)
			a.bodyScope[sym] = scope
			a.collectInto(n.Body)
			a.env.PopTo(outer)
		case *ast.ClassDecl:
			a.collectClass(n)
		case *ast.Block:
			a.collectInto(n.Stmts)
		case *ast.If:
			a.collectInto(stmtsOf(n.Then))
			if n.Else != nil {
				a.collectInto(stmtsOf(n.Else))
			}
		case *ast.While:
			a.collectInto(stmtsOf(n.Body))
		case *ast.DoWhile:
			a.collectInto(stmtsOf(n.Body))
		case *ast.For:
			a.collectInto(stmtsOf(n.Body))
		case *ast.Foreach:
			a.collectInto(stmtsOf(n.Body))
		case *ast.Switch:
			for _, c := range n.Cases {
				a.collectInto(c.Block)
			}
			a.collectInto(n.Default)
		case *ast.TryCatch:
			a.collectInto(n.Try)
			a.collectInto(n.Catch)
		}
	}
}

func (a *Analyzer) collectClass(n *ast.ClassDecl) {
	sym, ok := a.env.Declare(n.Name, symbols.ClassKind)
	if !ok {
		a.errorf(n.Location(), "class '%s' is already declared", n.Name)
		return
	}
	a.classOf[n.Name] = sym
	outer := a.env.Current()
	classScope := a.env.PushScope(symbols.ClassScope, sym)
	ci := &symbols.ClassInfo{Members: make(map[string]symbols.SymbolID), Ctor: symbols.NoSymbol, BaseName: n.Base}
	a.env.Symbol(sym).Class = ci

	for _, m := range n.Members {
		switch m.Kind {
		case ast.MemberField:
			fieldSym, ok := a.env.DeclareIn(classScope, m.Field.Name, symbols.FieldKind)
			if !ok {
				a.errorf(m.Field.Location(), "duplicate member '%s' in class '%s'", m.Field.Name, n.Name)
				continue
			}
			ft := types.Simple(types.Unknown)
			if m.Field.Ann != nil {
				ft = resolveTypeAnn(m.Field.Ann)
			}
			fs := a.env.Symbol(fieldSym)
			fs.Type, fs.HasType = ft, true
			ci.Members[m.Field.Name] = fieldSym
		case ast.MemberCtor:
			if ci.Ctor != symbols.NoSymbol {
				a.errorf(m.Fn.Location(), "class '%s' already has a constructor", n.Name)
				continue
			}
			ctorSym, ok := a.env.DeclareIn(classScope, "constructor", symbols.FuncKind)
			if !ok {
				a.errorf(m.Fn.Location(), "duplicate member 'constructor' in class '%s'", n.Name)
				continue
			}
			a.env.Symbol(ctorSym).Func = buildFuncInfo(m.Fn, true, n.Name)
			ci.Ctor = ctorSym
			fscope := a.env.PushScope(symbols.FunctionScope, ctorSym)
			a.bodyScope[ctorSym] = fscope
			a.collectInto(m.Fn.Body)
			a.env.PopTo(classScope)
		case ast.MemberMethod:
			methodSym, ok := a.env.DeclareIn(classScope, m.Fn.Name, symbols.FuncKind)
			if !ok {
				a.errorf(m.Fn.Location(), "duplicate member '%s' in class '%s'", m.Fn.Name, n.Name)
				continue
			}
			a.env.Symbol(methodSym).Func = buildFuncInfo(m.Fn, true, n.Name)
			ci.Members[m.Fn.Name] = methodSym
			fscope := a.env.PushScope(symbols.FunctionScope, methodSym)
			a.bodyScope[methodSym] = fscope
			a.collectInto(m.Fn.Body)
			a.env.PopTo(classScope)
		}
	}
	a.env.PopTo(outer)
}

func (a *Analyzer) declareFunctionSignature(n *ast.FunctionDecl, isMethod bool, owner string) symbols.SymbolID {
	sym, ok := a.env.Declare(n.Name, symbols.FuncKind)
	if !ok {
		a.errorf(n.Location(), "function '%s' is already declared", n.Name)
		return symbols.NoSymbol
	}
	a.env.Symbol(sym).Func = buildFuncInfo(n, isMethod, owner)
	return sym
}

func buildFuncInfo(n *ast.FunctionDecl, isMethod bool, owner string) *symbols.FuncInfo {
	params := make([]symbols.FuncParam, len(n.Params))
	for i, p := range n.Params {
		t := types.Simple(types.Unknown)
		if p.Ann != nil {
			t = resolveTypeAnn(p.Ann)
		}
		params[i] = symbols.FuncParam{Name: p.Name, Type: t}
	}
	ret := types.Simple(types.Void)
	if n.RetAnn != nil {
		ret = resolveTypeAnn(n.RetAnn)
	}
	return &symbols.FuncInfo{Params: params, Return: ret, IsMethod: isMethod, OwnerClass: owner}
}

// resolveTypeAnn translates a parsed type annotation into a types.Type.
// Class names are trusted as-is; spec.md's inheritance lookup (and any
// "undeclared type" diagnostic for a genuinely unknown class name) is
// enforced lazily, the first time the class is actually used, matching the
// teacher's own lazy-resolution style for forward-declared types.
func resolveTypeAnn(t *ast.TypeAnn) types.Type {
	var base types.Type
	switch t.Base {
	case "integer", "int":
		base = types.Simple(types.Int)
	case "float":
		base = types.Simple(types.Float)
	case "boolean", "bool":
		base = types.Simple(types.Bool)
	case "string":
		base = types.Simple(types.String)
	case "void":
		base = types.Simple(types.Void)
	default:
		base = types.ClassType(t.Base)
	}
	for i := 0; i < t.ArrayDepth; i++ {
		base = types.ArrayOf(base)
	}
	return base
}
