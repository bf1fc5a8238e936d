package sema

import (
	"compiscript/internal/ast"
	"compiscript/internal/symbols"
	"compiscript/internal/types"
)

// checkExpr type-checks e and returns its type. On any error it emits a
// diagnostic and returns types.Unknown, which AssignableTo/BinaryResult
// treat permissively so a single mistake doesn't cascade into a wall of
// follow-on errors (spec.md §4.1 does not mandate this, but it is the
// conservative, standard discipline every corpus-adjacent checker uses).
func (a *Analyzer) checkExpr(e ast.Expr) types.Type {
	switch n := e.(type) {
	case *ast.Identifier:
		return a.checkIdentifier(n)
	case *ast.Literal:
		return a.checkLiteral(n)
	case *ast.Unary:
		return a.checkUnary(n)
	case *ast.Binary:
		return a.checkBinary(n)
	case *ast.Ternary:
		return a.checkTernary(n)
	case *ast.Call:
		return a.checkCall(n)
	case *ast.MemberAccess:
		t, _, _, _ := a.resolveMember(n)
		return t
	case *ast.IndexAccess:
		return a.checkIndexAccess(n)
	case *ast.ArrayLiteral:
		return a.checkArrayLiteral(n)
	case *ast.This:
		return a.checkThis(n)
	}
	return types.Simple(types.Unknown)
}

func (a *Analyzer) checkIdentifier(n *ast.Identifier) types.Type {
	id, ok := a.env.Resolve(n.Name)
	if !ok {
		a.errorf(n.Location(), "undeclared identifier '%s'", n.Name)
		return types.Simple(types.Unknown)
	}
	a.noteCapture(id)
	sym := a.env.Symbol(id)
	if sym.Kind == symbols.FuncKind {
		return funcSymbolType(sym)
	}
	if sym.Kind == symbols.ClassKind {
		return types.ClassType(sym.Name)
	}
	if !sym.Inited {
		a.errorf(n.Location(), "'%s' used before assignment", n.Name)
	}
	if !sym.HasType {
		return types.Simple(types.Unknown)
	}
	return sym.Type
}

// noteCapture implements spec.md §4.1's closure-capture rule: if the
// symbol's defining scope is a strict ancestor of the current enclosing
// function scope, it crosses a function boundary and is recorded in that
// function's capture list, deduplicated by identity. Symbols declared at
// the root (global) scope are excluded: globals are reachable directly by
// label/name from every function, they never need a per-call capture slot.
func (a *Analyzer) noteCapture(id symbols.SymbolID) {
	sym := a.env.Symbol(id)
	if sym.Scope == a.env.Root {
		return
	}
	fnScope := a.env.EnclosingFunction()
	if fnScope == symbols.NoScope {
		return
	}
	if a.env.IsAncestor(sym.Scope, fnScope) {
		fnSym := a.env.Symbol(a.env.Scope(fnScope).Owner)
		if fnSym != nil && fnSym.Func != nil {
			symbols.AppendCapture(fnSym.Func, id)
		}
	}
}

func funcSymbolType(sym *symbols.Symbol) types.Type {
	params := make([]types.Type, len(sym.Func.Params))
	for i, p := range sym.Func.Params {
		params[i] = p.Type
	}
	return types.FuncType(params, sym.Func.Return)
}

func (a *Analyzer) checkLiteral(n *ast.Literal) types.Type {
	switch n.Kind {
	case ast.LitInt:
		return types.Simple(types.Int)
	case ast.LitBool:
		return types.Simple(types.Bool)
	case ast.LitString:
		return types.Simple(types.String)
	case ast.LitNull:
		return types.Simple(types.Null)
	}
	return types.Simple(types.Unknown)
}

func (a *Analyzer) checkUnary(n *ast.Unary) types.Type {
	operand := a.checkExpr(n.Expr)
	t, ok := types.UnaryResult(n.Op, operand)
	if !ok {
		a.errorf(n.Location(), "operator '%s' not defined for operand type %s", n.Op, operand)
		return types.Simple(types.Unknown)
	}
	return t
}

func (a *Analyzer) checkBinary(n *ast.Binary) types.Type {
	l := a.checkExpr(n.Left)
	r := a.checkExpr(n.Right)
	t, ok := types.BinaryResult(n.Op, l, r)
	if !ok {
		a.errorf(n.Location(), "operator '%s' not defined for operand types %s and %s", n.Op, l, r)
		return types.Simple(types.Unknown)
	}
	return t
}

func (a *Analyzer) checkTernary(n *ast.Ternary) types.Type {
	cond := a.checkExpr(n.Cond)
	if cond.Tag != types.Bool && cond.Tag != types.Unknown {
		a.errorf(n.Cond.Location(), "ternary condition must be boolean, got %s", cond)
	}
	then := a.checkExpr(n.Then)
	els := a.checkExpr(n.Else)
	t, ok := types.TernaryResult(then, els)
	if !ok {
		a.errorf(n.Location(), "ternary branches have incompatible types %s and %s", then, els)
		return types.Simple(types.Unknown)
	}
	return t
}

func (a *Analyzer) checkThis(n *ast.This) types.Type {
	fnScope := a.env.EnclosingFunction()
	if fnScope != symbols.NoScope {
		owner := a.env.Symbol(a.env.Scope(fnScope).Owner)
		if owner != nil && owner.Func != nil && owner.Func.IsMethod {
			return types.ClassType(owner.Func.OwnerClass)
		}
	}
	a.errorf(n.Location(), "'this' used outside a method")
	return types.Simple(types.Unknown)
}

func (a *Analyzer) checkArrayLiteral(n *ast.ArrayLiteral) types.Type {
	elemTypes := make([]types.Type, len(n.Elems))
	for i, e := range n.Elems {
		elemTypes[i] = a.checkExpr(e)
	}
	elem, ok := types.UnifyArrayElems(elemTypes)
	if !ok {
		a.errorf(n.Location(), "array literal has incompatible element types")
		return types.ArrayOf(types.Simple(types.Unknown))
	}
	return types.ArrayOf(elem)
}

func (a *Analyzer) checkIndexAccess(n *ast.IndexAccess) types.Type {
	obj := a.checkExpr(n.Obj)
	idx := a.checkExpr(n.Index)
	if idx.Tag != types.Int && idx.Tag != types.Unknown {
		a.errorf(n.Index.Location(), "array index must be int, got %s", idx)
	}
	if obj.Tag == types.Unknown {
		return types.Simple(types.Unknown)
	}
	if obj.Tag != types.Array {
		a.errorf(n.Obj.Location(), "cannot index into non-array type %s", obj)
		return types.Simple(types.Unknown)
	}
	return *obj.Elem
}

// checkMemberAccess resolves obj.Name and returns (type, ownerClassName, ok).
func (a *Analyzer) checkMemberAccess(n *ast.MemberAccess) (types.Type, string, bool) {
	t, _, owner, ok := a.resolveMember(n)
	return t, owner, ok
}

// resolveMember evaluates n.Obj exactly once and resolves n.Name against
// its class, returning the member's symbol id alongside its type so
// callers (checkExpr and the method-call path in checkCall) never need to
// re-evaluate n.Obj to recover it.
func (a *Analyzer) resolveMember(n *ast.MemberAccess) (types.Type, symbols.SymbolID, string, bool) {
	obj := a.checkExpr(n.Obj)
	if obj.Tag == types.Unknown {
		return types.Simple(types.Unknown), symbols.NoSymbol, "", false
	}
	if obj.Tag != types.Class {
		a.errorf(n.Location(), "cannot access member '%s' on non-class type %s", n.Name, obj)
		return types.Simple(types.Unknown), symbols.NoSymbol, "", false
	}
	memberSym, owner, ok := symbols.ResolveClassMember(a.env, a.classOf, obj.Name, n.Name)
	if !ok {
		a.errorf(n.Location(), "class '%s' has no member '%s'", obj.Name, n.Name)
		return types.Simple(types.Unknown), symbols.NoSymbol, "", false
	}
	sym := a.env.Symbol(memberSym)
	if sym.Kind == symbols.FuncKind {
		return funcSymbolType(sym), memberSym, owner, true
	}
	return sym.Type, memberSym, owner, true
}

func (a *Analyzer) checkCall(n *ast.Call) types.Type {
	if ident, ok := n.Callee.(*ast.Identifier); ok {
		if classSym, ok := a.classOf[ident.Name]; ok {
			return a.checkConstructorCall(n, classSym)
		}
	}
	var sig *symbols.FuncInfo
	switch callee := n.Callee.(type) {
	case *ast.Identifier:
		id, ok := a.env.Resolve(callee.Name)
		if !ok {
			a.errorf(callee.Location(), "undeclared identifier '%s'", callee.Name)
			return a.checkArgsUnknown(n)
		}
		a.noteCapture(id)
		sym := a.env.Symbol(id)
		if sym.Kind != symbols.FuncKind {
			a.errorf(callee.Location(), "'%s' is not callable", callee.Name)
			return a.checkArgsUnknown(n)
		}
		sig = sym.Func
	case *ast.MemberAccess:
		_, memberSym, _, ok := a.resolveMember(callee)
		if !ok {
			return a.checkArgsUnknown(n)
		}
		sym := a.env.Symbol(memberSym)
		if sym.Kind != symbols.FuncKind {
			a.errorf(callee.Location(), "'%s' is not callable", callee.Name)
			return a.checkArgsUnknown(n)
		}
		sig = sym.Func
	default:
		a.errorf(n.Location(), "expression is not callable")
		return a.checkArgsUnknown(n)
	}
	return a.checkCallArgs(n, sig)
}

func (a *Analyzer) checkArgsUnknown(n *ast.Call) types.Type {
	for _, arg := range n.Args {
		a.checkExpr(arg)
	}
	return types.Simple(types.Unknown)
}

func (a *Analyzer) checkCallArgs(n *ast.Call, sig *symbols.FuncInfo) types.Type {
	if len(n.Args) != len(sig.Params) {
		a.errorf(n.Location(), "expected %d argument(s), got %d", len(sig.Params), len(n.Args))
	}
	for i, arg := range n.Args {
		at := a.checkExpr(arg)
		if i < len(sig.Params) && !types.AssignableTo(at, sig.Params[i].Type) {
			a.errorf(arg.Location(), "argument %d: cannot assign %s to parameter of type %s", i+1, at, sig.Params[i].Type)
		}
	}
	return sig.Return
}

func (a *Analyzer) checkConstructorCall(n *ast.Call, classSym symbols.SymbolID) types.Type {
	ci := a.env.Symbol(classSym).Class
	className := a.env.Symbol(classSym).Name
	if ci.Ctor == symbols.NoSymbol {
		if len(n.Args) != 0 {
			a.errorf(n.Location(), "class '%s' has no constructor, expected 0 arguments", className)
		}
		for _, arg := range n.Args {
			a.checkExpr(arg)
		}
		return types.ClassType(className)
	}
	sig := a.env.Symbol(ci.Ctor).Func
	a.checkCallArgs(n, sig)
	return types.ClassType(className)
}
