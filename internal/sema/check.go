package sema

import (
	"compiscript/internal/ast"
	"compiscript/internal/symbols"
	"compiscript/internal/types"
)

// checkTopLevel dispatches a single top-level or nested statement through
// pass 2. Unlike collectInto, this visits every statement kind and
// enforces the full rule set of spec.md §4.1.
func (a *Analyzer) checkTopLevel(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.VarDecl:
		a.checkVarDecl(n, symbols.VarKind)
	case *ast.ConstDecl:
		a.checkConstDecl(n)
	case *ast.FunctionDecl:
		a.checkFunctionDecl(n)
	case *ast.ClassDecl:
		a.checkClassDecl(n)
	case *ast.Block:
		a.checkBlockStmts(n.Stmts)
	case *ast.Assign:
		a.checkAssign(n)
	case *ast.If:
		a.checkIf(n)
	case *ast.While:
		a.checkWhile(n)
	case *ast.DoWhile:
		a.checkDoWhile(n)
	case *ast.For:
		a.checkFor(n)
	case *ast.Foreach:
		a.checkForeach(n)
	case *ast.Switch:
		a.checkSwitch(n)
	case *ast.TryCatch:
		a.checkTryCatchStmt(n)
	case *ast.Return:
		a.checkReturn(n)
	case *ast.Break:
		if a.loopDepth+a.switchDepth == 0 {
			a.errorf(n.Location(), "'break' outside a loop or switch")
		}
		a.markDead()
	case *ast.Continue:
		if a.loopDepth == 0 {
			a.errorf(n.Location(), "'continue' outside a loop")
		}
		a.markDead()
	case *ast.ExprStmt:
		a.checkExpr(n.Expr)
	}
}

// ---- dead-code tracking ----

func (a *Analyzer) markDead() {
	if len(a.deadStack) > 0 {
		a.deadStack[len(a.deadStack)-1] = true
	}
}

func (a *Analyzer) isDead() bool {
	return len(a.deadStack) > 0 && a.deadStack[len(a.deadStack)-1]
}

// checkBlockStmts visits stmts in a fresh dead-code frame, flagging every
// statement reached after one that guarantees termination of the block
// (return/break/continue), per spec.md §4.1's "stack of dead flags pushed
// at every block/function boundary".
func (a *Analyzer) checkBlockStmts(stmts []ast.Stmt) {
	a.deadStack = append(a.deadStack, false)
	for _, s := range stmts {
		if a.isDead() {
			a.errorf(s.Location(), "unreachable code")
		}
		a.checkTopLevel(s)
	}
	a.deadStack = a.deadStack[:len(a.deadStack)-1]
}

// ---- declarations ----

func (a *Analyzer) checkVarDecl(n *ast.VarDecl, kind symbols.Kind) {
	var declared types.Type
	hasAnn := n.Ann != nil
	if hasAnn {
		declared = resolveTypeAnn(n.Ann)
	}
	var initType types.Type
	hasInit := n.Init != nil
	if hasInit {
		initType = a.checkExpr(n.Init)
		if hasAnn && !types.AssignableTo(initType, declared) {
			a.errorf(n.Location(), "cannot initialize '%s' of type %s with value of type %s", n.Name, declared, initType)
		}
	}
	sym, ok := a.env.Declare(n.Name, kind)
	if !ok {
		a.errorf(n.Location(), "'%s' is already declared in this scope", n.Name)
		return
	}
	s := a.env.Symbol(sym)
	switch {
	case hasAnn:
		s.Type, s.HasType = declared, true
	case hasInit:
		s.Type, s.HasType = initType, true
	default:
		s.HasType = false
	}
	s.Inited = hasInit
}

func (a *Analyzer) checkConstDecl(n *ast.ConstDecl) {
	declared := types.Simple(types.Unknown)
	hasAnn := n.Ann != nil
	if hasAnn {
		declared = resolveTypeAnn(n.Ann)
	}
	initType := a.checkExpr(n.Init)
	if hasAnn && !types.AssignableTo(initType, declared) {
		a.errorf(n.Location(), "cannot initialize const '%s' of type %s with value of type %s", n.Name, declared, initType)
	}
	sym, ok := a.env.Declare(n.Name, symbols.ConstKind)
	if !ok {
		a.errorf(n.Location(), "'%s' is already declared in this scope", n.Name)
		return
	}
	s := a.env.Symbol(sym)
	if hasAnn {
		s.Type = declared
	} else {
		s.Type = initType
	}
	s.HasType = true
	s.Inited = true
}

func (a *Analyzer) checkFunctionDecl(n *ast.FunctionDecl) {
	sym, ok := a.env.Resolve(n.Name)
	if !ok {
		return // pass 1 already reported the redeclaration
	}
	a.checkFunctionBody(sym, n.Params, n.Body, n.Location())
}

// checkFunctionBody resumes the scope pass 1 opened for sym (so nested
// hoisted declarations are already present), declares the parameters into
// it, walks the body, and performs the definite-return check for
// non-void functions.
func (a *Analyzer) checkFunctionBody(sym symbols.SymbolID, params []ast.Param, body []ast.Stmt, loc ast.Pos) {
	info := a.env.Symbol(sym).Func
	outer := a.env.Current()
	scope, ok := a.bodyScope[sym]
	if !ok {
		scope = a.env.PushScope(symbols.FunctionScope, sym)
	} else {
		a.env.PopTo(scope)
	}
	for _, p := range params {
		pid, ok := a.env.Declare(p.Name, symbols.ParamKind)
		if !ok {
			a.errorf(p.At, "duplicate parameter name '%s'", p.Name)
			continue
		}
		ps := a.env.Symbol(pid)
		t := types.Simple(types.Unknown)
		if p.Ann != nil {
			t = resolveTypeAnn(p.Ann)
		}
		ps.Type, ps.HasType, ps.Inited = t, true, true
	}
	a.retStack = append(a.retStack, info.Return)
	a.checkBlockStmts(body)
	a.retStack = a.retStack[:len(a.retStack)-1]

	if info.Return.Tag != types.Void && !guaranteesReturn(body) {
		a.errorf(loc, "function '%s' does not guarantee a return on every path", a.env.Symbol(sym).Name)
	}
	a.env.PopTo(outer)
}

func (a *Analyzer) checkClassDecl(n *ast.ClassDecl) {
	classSym, ok := a.classOf[n.Name]
	if !ok {
		return
	}
	if n.Base != "" {
		if _, ok := a.classOf[n.Base]; !ok {
			a.errorf(n.Location(), "class '%s' extends undeclared class '%s'", n.Name, n.Base)
		}
	}
	ci := a.env.Symbol(classSym).Class
	outer := a.env.Current()
	classScope := a.bodyScopeForClass(classSym)
	a.env.PopTo(classScope)
	for _, m := range n.Members {
		switch m.Kind {
		case ast.MemberField:
			// Type was already resolved during collection; nothing further
			// to check since fields have no initializer expression.
		case ast.MemberCtor:
			if ci.Ctor != symbols.NoSymbol {
				a.checkFunctionBody(ci.Ctor, m.Fn.Params, m.Fn.Body, m.Fn.Location())
			}
		case ast.MemberMethod:
			if sym, ok := ci.Members[m.Fn.Name]; ok {
				a.checkFunctionBody(sym, m.Fn.Params, m.Fn.Body, m.Fn.Location())
			}
		}
	}
	a.env.PopTo(outer)
}

// bodyScopeForClass recovers the ClassScope pass 1 created for classSym.
// It is the scope whose Owner is classSym among the arena's scopes created
// at class-collection time; since collectClass always pushes it
// immediately and records no separate map, it is instead recovered via the
// first member symbol's Scope field (every member was declared into it).
func (a *Analyzer) bodyScopeForClass(classSym symbols.SymbolID) symbols.ScopeID {
	ci := a.env.Symbol(classSym).Class
	if ci.Ctor != symbols.NoSymbol {
		return a.env.Symbol(ci.Ctor).Scope
	}
	for _, m := range ci.Members {
		return a.env.Symbol(m).Scope
	}
	// No members at all: nothing was ever resolved into its scope, so
	// nothing needs re-entering; return the current scope unchanged.
	return a.env.Current()
}

// ---- assignment ----

func (a *Analyzer) checkAssign(n *ast.Assign) {
	valType := a.checkExpr(n.Value)
	switch target := n.Target.(type) {
	case *ast.Identifier:
		id, ok := a.env.Resolve(target.Name)
		if !ok {
			a.errorf(target.Location(), "undeclared identifier '%s'", target.Name)
			return
		}
		sym := a.env.Symbol(id)
		if sym.Kind == symbols.ConstKind {
			a.errorf(n.Location(), "cannot assign to const '%s'", target.Name)
			return
		}
		a.noteCapture(id)
		if !sym.HasType {
			sym.Type, sym.HasType = valType, true
		} else if !types.AssignableTo(valType, sym.Type) {
			a.errorf(n.Location(), "cannot assign %s to '%s' of type %s", valType, target.Name, sym.Type)
		}
		sym.Inited = true
	case *ast.MemberAccess:
		fieldType, _, ok := a.checkMemberAccess(target)
		if ok && fieldType.Tag != types.Unknown && !types.AssignableTo(valType, fieldType) {
			a.errorf(n.Location(), "cannot assign %s to field '%s' of type %s", valType, target.Name, fieldType)
		}
	case *ast.IndexAccess:
		elemType := a.checkIndexAccess(target)
		if elemType.Tag != types.Unknown && !types.AssignableTo(valType, elemType) {
			a.errorf(n.Location(), "cannot assign %s to array element of type %s", valType, elemType)
		}
	default:
		a.errorf(n.Location(), "invalid assignment target")
	}
}

// ---- control flow ----

func (a *Analyzer) checkCondition(e ast.Expr) {
	t := a.checkExpr(e)
	if t.Tag != types.Bool && t.Tag != types.Unknown {
		a.errorf(e.Location(), "condition must be boolean, got %s", t)
	}
}

// checkBranchBody visits a single-statement or block body in its own
// scope/dead-frame, matching spec.md §4.1's "fresh block scope per body".
func (a *Analyzer) checkBranchBody(body ast.Stmt) {
	if body == nil {
		return
	}
	if b, ok := body.(*ast.Block); ok {
		outer := a.env.Current()
		a.env.PushScope(symbols.BlockScope, symbols.NoSymbol)
		a.checkBlockStmts(b.Stmts)
		a.env.PopTo(outer)
		return
	}
	a.checkTopLevel(body)
}

func (a *Analyzer) checkIf(n *ast.If) {
	a.checkCondition(n.Cond)
	a.checkBranchBody(n.Then)
	if n.Else != nil {
		a.checkBranchBody(n.Else)
	}
}

func (a *Analyzer) checkWhile(n *ast.While) {
	a.checkCondition(n.Cond)
	a.loopDepth++
	a.checkBranchBody(n.Body)
	a.loopDepth--
}

func (a *Analyzer) checkDoWhile(n *ast.DoWhile) {
	a.loopDepth++
	a.checkBranchBody(n.Body)
	a.loopDepth--
	a.checkCondition(n.Cond)
}

func (a *Analyzer) checkFor(n *ast.For) {
	outer := a.env.Current()
	a.env.PushScope(symbols.BlockScope, symbols.NoSymbol)
	if n.Init != nil {
		a.checkTopLevel(n.Init)
	}
	if n.Cond != nil {
		a.checkCondition(n.Cond)
	}
	a.loopDepth++
	a.checkBranchBody(n.Body)
	if n.Update != nil {
		a.checkTopLevel(n.Update)
	}
	a.loopDepth--
	a.env.PopTo(outer)
}

func (a *Analyzer) checkForeach(n *ast.Foreach) {
	iterType := a.checkExpr(n.Iterable)
	elemType := types.Simple(types.Unknown)
	if iterType.Tag == types.Array {
		elemType = *iterType.Elem
	} else if iterType.Tag != types.Unknown {
		a.errorf(n.Iterable.Location(), "'foreach' requires an array, got %s", iterType)
	}
	outer := a.env.Current()
	a.env.PushScope(symbols.BlockScope, symbols.NoSymbol)
	sym, _ := a.env.Declare(n.Var, symbols.VarKind)
	s := a.env.Symbol(sym)
	s.Type, s.HasType, s.Inited = elemType, true, true
	a.loopDepth++
	if b, ok := n.Body.(*ast.Block); ok {
		a.checkBlockStmts(b.Stmts)
	} else {
		a.checkTopLevel(n.Body)
	}
	a.loopDepth--
	a.env.PopTo(outer)
}

func (a *Analyzer) checkSwitch(n *ast.Switch) {
	discType := a.checkExpr(n.Expr)
	a.switchDepth++
	for _, c := range n.Cases {
		ct := a.checkExpr(c.Expr)
		if discType.Tag != types.Unknown && ct.Tag != types.Unknown &&
			!types.AssignableTo(ct, discType) && !types.AssignableTo(discType, ct) {
			a.errorf(c.Location(), "case type %s is not comparable with switch discriminant type %s", ct, discType)
		}
		outer := a.env.Current()
		a.env.PushScope(symbols.BlockScope, symbols.NoSymbol)
		a.checkBlockStmts(c.Block)
		a.env.PopTo(outer)
	}
	if n.Default != nil {
		outer := a.env.Current()
		a.env.PushScope(symbols.BlockScope, symbols.NoSymbol)
		a.checkBlockStmts(n.Default)
		a.env.PopTo(outer)
	}
	a.switchDepth--
}

func (a *Analyzer) checkTryCatchStmt(n *ast.TryCatch) {
	outer := a.env.Current()
	a.env.PushScope(symbols.BlockScope, symbols.NoSymbol)
	a.checkBlockStmts(n.Try)
	a.env.PopTo(outer)

	a.env.PushScope(symbols.BlockScope, symbols.NoSymbol)
	sym, _ := a.env.Declare(n.ErrName, symbols.VarKind)
	s := a.env.Symbol(sym)
	s.Type, s.HasType, s.Inited = types.Simple(types.Unknown), true, true
	a.checkBlockStmts(n.Catch)
	a.env.PopTo(outer)
}

func (a *Analyzer) checkReturn(n *ast.Return) {
	var actual types.Type
	if n.Value != nil {
		actual = a.checkExpr(n.Value)
	} else {
		actual = types.Simple(types.Void)
	}
	if len(a.retStack) == 0 {
		a.errorf(n.Location(), "'return' outside a function")
	} else {
		declared := a.retStack[len(a.retStack)-1]
		if !types.AssignableTo(actual, declared) {
			a.errorf(n.Location(), "return type %s does not match declared return type %s", actual, declared)
		}
	}
	a.markDead()
}

// ---- definite-return (spec.md §4.1) ----

func guaranteesReturn(stmts []ast.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	return stmtGuaranteesReturn(stmts[len(stmts)-1])
}

func stmtGuaranteesReturn(s ast.Stmt) bool {
	switch n := s.(type) {
	case *ast.Return:
		return true
	case *ast.Block:
		return guaranteesReturn(n.Stmts)
	case *ast.If:
		return n.Else != nil && stmtGuaranteesReturn(n.Then) && stmtGuaranteesReturn(n.Else)
	case *ast.TryCatch:
		return guaranteesReturn(n.Try) && guaranteesReturn(n.Catch)
	case *ast.Switch:
		if n.Default == nil || !guaranteesReturn(n.Default) {
			return false
		}
		for _, c := range n.Cases {
			if !guaranteesReturn(c.Block) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
