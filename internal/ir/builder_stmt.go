package ir

import (
	"compiscript/internal/ast"
	"compiscript/internal/ice"
)

var primitiveAnnBase = map[string]bool{
	"integer": true, "int": true,
	"float": true,
	"boolean": true, "bool": true,
	"string": true,
	"void":    true,
}

// classNameFromAnn reports the class name a non-array, non-primitive type
// annotation names, used to seed staticCls lazily at declaration sites
// (spec.md §4.2: "only where a local is known to be a class instance").
func classNameFromAnn(ann *ast.TypeAnn) (string, bool) {
	if ann == nil || ann.ArrayDepth > 0 || primitiveAnnBase[ann.Base] {
		return "", false
	}
	return ann.Base, true
}

// classNameFromNew reports the class name instantiated by a bare
// `new ClassName(...)` initializer, used when no explicit annotation is
// present but the instantiated class is still statically known.
func (b *Builder) classNameFromNew(e ast.Expr) (string, bool) {
	call, ok := e.(*ast.Call)
	if !ok {
		return "", false
	}
	ident, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return "", false
	}
	if _, ok := b.classOf[ident.Name]; !ok {
		return "", false
	}
	return ident.Name, true
}

// buildStmt lowers one statement, per spec.md §4.2.
func (b *Builder) buildStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Block:
		b.pushScope()
		for _, stmt := range n.Stmts {
			b.buildStmt(stmt)
		}
		b.popScope()
	case *ast.VarDecl:
		b.buildVarDecl(n.Name, n.Ann, n.Init)
	case *ast.ConstDecl:
		b.buildVarDecl(n.Name, n.Ann, n.Init)
	case *ast.Assign:
		b.buildAssign(n)
	case *ast.If:
		b.buildIf(n)
	case *ast.While:
		b.buildWhile(n)
	case *ast.DoWhile:
		b.buildDoWhile(n)
	case *ast.For:
		b.buildFor(n)
	case *ast.Foreach:
		b.buildForeach(n)
	case *ast.Switch:
		b.buildSwitch(n)
	case *ast.TryCatch:
		b.buildTryCatch(n)
	case *ast.Return:
		if n.Value != nil {
			v := b.buildExpr(n.Value)
			b.emit(Return(&v))
		} else {
			b.emit(Return(nil))
		}
	case *ast.Break:
		b.emit(Jump(b.breakTarget()))
	case *ast.Continue:
		b.emit(Jump(b.continueTarget()))
	case *ast.ExprStmt:
		b.buildExpr(n.Expr)
	case *ast.FunctionDecl:
		b.buildNestedFunction(n)
	case *ast.ClassDecl:
		b.buildNestedClass(n)
	}
}

func (b *Builder) buildVarDecl(name string, ann *ast.TypeAnn, init ast.Expr) {
	local := b.newLocal(name)
	if init != nil {
		v := b.buildExpr(init)
		b.emit(Move(local, v))
	}
	if cls, ok := classNameFromAnn(ann); ok {
		b.setStaticClass(name, cls)
	} else if init != nil {
		if cls, ok := b.classNameFromNew(init); ok {
			b.setStaticClass(name, cls)
		}
	}
	if (ann != nil && ann.ArrayDepth == 0 && ann.Base == "string") || (init != nil && b.isStringOperand(init)) {
		b.setKnownString(name)
	}
}

func (b *Builder) buildAssign(n *ast.Assign) {
	switch target := n.Target.(type) {
	case *ast.Identifier:
		dst, ok := b.lookup(target.Name)
		if !ok {
			dst = b.newLocal(target.Name)
		}
		v := b.buildExpr(n.Value)
		b.emit(Move(dst, v))
		if cls, ok := b.classNameFromNew(n.Value); ok {
			b.setStaticClass(target.Name, cls)
		}
		if b.isStringOperand(n.Value) {
			b.setKnownString(target.Name)
		}
	case *ast.MemberAccess:
		v := b.buildExpr(n.Value)
		b.buildMemberAccessStore(target, v)
	case *ast.IndexAccess:
		v := b.buildExpr(n.Value)
		b.buildIndexAccessStore(target, v)
	}
}

func (b *Builder) buildIf(n *ast.If) {
	lThen := b.newLabel("if_then")
	lEnd := b.newLabel("if_end")
	lElse := lEnd
	if n.Else != nil {
		lElse = b.newLabel("if_else")
	}
	b.buildCondJump(n.Cond, lThen, lElse)
	b.emit(Label(lThen))
	b.buildStmt(n.Then)
	if n.Else != nil {
		b.emit(Jump(lEnd))
		b.emit(Label(lElse))
		b.buildStmt(n.Else)
	}
	b.emit(Label(lEnd))
}

func (b *Builder) buildWhile(n *ast.While) {
	lHeader := b.newLabel("while_head")
	lBody := b.newLabel("while_body")
	lEnd := b.newLabel("while_end")
	b.emit(Label(lHeader))
	b.buildCondJump(n.Cond, lBody, lEnd)
	b.emit(Label(lBody))
	b.pushLoop(lHeader, lEnd)
	b.buildStmt(n.Body)
	b.popLoop()
	b.emit(Jump(lHeader))
	b.emit(Label(lEnd))
}

func (b *Builder) buildDoWhile(n *ast.DoWhile) {
	lBody := b.newLabel("do_body")
	lCond := b.newLabel("do_cond")
	lEnd := b.newLabel("do_end")
	b.emit(Label(lBody))
	b.pushLoop(lCond, lEnd)
	b.buildStmt(n.Body)
	b.popLoop()
	b.emit(Label(lCond))
	b.buildCondJump(n.Cond, lBody, lEnd)
	b.emit(Label(lEnd))
}

func (b *Builder) buildFor(n *ast.For) {
	b.pushScope()
	if n.Init != nil {
		b.buildStmt(n.Init)
	}
	lHeader := b.newLabel("for_head")
	lBody := b.newLabel("for_body")
	lUpdate := b.newLabel("for_update")
	lEnd := b.newLabel("for_end")
	b.emit(Label(lHeader))
	if n.Cond != nil {
		b.buildCondJump(n.Cond, lBody, lEnd)
	} else {
		b.emit(Jump(lBody))
	}
	b.emit(Label(lBody))
	b.pushLoop(lUpdate, lEnd)
	b.buildStmt(n.Body)
	b.popLoop()
	b.emit(Label(lUpdate))
	if n.Update != nil {
		b.buildStmt(n.Update)
	}
	b.emit(Jump(lHeader))
	b.emit(Label(lEnd))
	b.popScope()
}

// buildForeach desugars `foreach (x in arr) body` into an index loop over
// arr's length-prefixed layout (spec.md §4.2 / §6.6).
func (b *Builder) buildForeach(n *ast.Foreach) {
	b.pushScope()
	arr := b.buildExpr(n.Iterable)
	lenTmp := b.newTemp()
	b.emit(Load(lenTmp, arr, 0))
	idx := b.newTemp()
	b.emit(Move(idx, ConstInt(0)))

	lHeader := b.newLabel("foreach_head")
	lBody := b.newLabel("foreach_body")
	lUpdate := b.newLabel("foreach_update")
	lEnd := b.newLabel("foreach_end")

	b.emit(Label(lHeader))
	b.emit(CJump("<", idx, lenTmp, lBody, lEnd))
	b.emit(Label(lBody))
	b.pushLoop(lUpdate, lEnd)

	b.pushScope()
	elem := b.newLocal(n.Var)
	b.emit(LoadI(elem, arr, idx))
	b.buildStmt(n.Body)
	b.popScope()

	b.popLoop()
	b.emit(Label(lUpdate))
	one := b.newTemp()
	b.emit(BinOp("+", one, idx, ConstInt(1)))
	b.emit(Move(idx, one))
	b.releaseTemp(one)
	b.emit(Jump(lHeader))
	b.emit(Label(lEnd))
	b.popScope()
}

// buildSwitch lowers a linear CJump chain with implicit fallthrough between
// case bodies (spec.md §4.2). `break` exits to lEnd; `continue` is not
// resolved by a switch frame and falls through to the nearest enclosing
// loop, so the pushed frame carries no continue target.
func (b *Builder) buildSwitch(n *ast.Switch) {
	sv := b.buildExpr(n.Expr)
	lEnd := b.newLabel("switch_end")

	bodyLabels := make([]string, len(n.Cases))
	for i := range n.Cases {
		bodyLabels[i] = b.newLabel("case_body")
	}
	lDefault := lEnd
	if n.Default != nil {
		lDefault = b.newLabel("default_body")
	}

	for i, c := range n.Cases {
		cv := b.buildExpr(c.Expr)
		lNextTest := lEnd
		if i+1 < len(n.Cases) {
			lNextTest = b.newLabel("case_test")
		} else if n.Default != nil {
			lNextTest = lDefault
		}
		b.emit(CJump("==", sv, cv, bodyLabels[i], lNextTest))
		if lNextTest != lDefault && lNextTest != lEnd {
			b.emit(Label(lNextTest))
		}
	}
	if len(n.Cases) == 0 && n.Default != nil {
		b.emit(Jump(lDefault))
	}

	b.pushBreakOnly(lEnd)
	for i, c := range n.Cases {
		b.emit(Label(bodyLabels[i]))
		b.pushScope()
		for _, stmt := range c.Block {
			b.buildStmt(stmt)
		}
		b.popScope()
	}
	if n.Default != nil {
		b.emit(Label(lDefault))
		b.pushScope()
		for _, stmt := range n.Default {
			b.buildStmt(stmt)
		}
		b.popScope()
	}
	b.popLoop()
	b.emit(Label(lEnd))
}

// buildTryCatch compiles the try block only: Compiscript has no runtime
// exceptions, so the catch body is never reachable and is not lowered
// (spec.md §4.2 Non-goals). The catch variable is intentionally left
// unbound to any operand.
func (b *Builder) buildTryCatch(n *ast.TryCatch) {
	b.pushScope()
	for _, stmt := range n.Try {
		b.buildStmt(stmt)
	}
	b.popScope()
}

// ---- loop/break frame management ----

func (b *Builder) pushLoop(continueLabel, breakLabel string) {
	b.loopStack = append(b.loopStack, loopFrame{continueLabel: continueLabel, breakLabel: breakLabel})
}

func (b *Builder) pushBreakOnly(breakLabel string) {
	b.loopStack = append(b.loopStack, loopFrame{breakLabel: breakLabel})
}

func (b *Builder) popLoop() {
	b.loopStack = b.loopStack[:len(b.loopStack)-1]
}

func (b *Builder) breakTarget() string {
	if len(b.loopStack) == 0 {
		panic(ice.New("break with no enclosing loop/switch frame in IR lowering"))
	}
	return b.loopStack[len(b.loopStack)-1].breakLabel
}

// continueTarget finds the nearest frame with a continue target, skipping
// switch frames (which carry none) so `continue` inside a switch inside a
// loop still targets the loop.
func (b *Builder) continueTarget() string {
	for i := len(b.loopStack) - 1; i >= 0; i-- {
		if b.loopStack[i].continueLabel != "" {
			return b.loopStack[i].continueLabel
		}
	}
	panic(ice.New("continue with no enclosing loop frame in IR lowering"))
}

// ---- nested declarations ----

// builderState snapshots the per-function fields that buildFunction resets,
// so a nested declaration encountered mid-body can be compiled without
// disturbing the enclosing function's in-progress state.
type builderState struct {
	fn        *IRFunction
	scopes    []map[string]Operand
	staticCls []map[string]string
	staticStr []map[string]bool
	tempSeq   int
	freeTemps []string
	labelSeq  int
	loopStack []loopFrame
	localSet  map[string]bool
}

func (b *Builder) saveState() builderState {
	return builderState{
		fn: b.fn, scopes: b.scopes, staticCls: b.staticCls, staticStr: b.staticStr,
		tempSeq: b.tempSeq, freeTemps: b.freeTemps, labelSeq: b.labelSeq,
		loopStack: b.loopStack, localSet: b.localSet,
	}
}

func (b *Builder) restoreState(s builderState) {
	b.fn, b.scopes, b.staticCls, b.staticStr = s.fn, s.scopes, s.staticCls, s.staticStr
	b.tempSeq, b.freeTemps, b.labelSeq = s.tempSeq, s.freeTemps, s.labelSeq
	b.loopStack, b.localSet = s.loopStack, s.localSet
}

// buildNestedFunction compiles a function declared inside another
// function's body. Pass-1 hoisting (internal/sema) already resolved its
// name into the enclosing function's scope, so by the time the builder
// walks the body, the nested function's name is already unique within the
// whole program by construction of that hoist; it is lowered into its own
// flat IRFunction under its plain name, same as a top-level function.
func (b *Builder) buildNestedFunction(n *ast.FunctionDecl) {
	saved := b.saveState()
	b.buildFunction(n.Name, nil, "", n.Params, n.Body)
	b.restoreState(saved)
}

func (b *Builder) buildNestedClass(n *ast.ClassDecl) {
	saved := b.saveState()
	b.buildClass(n)
	b.restoreState(saved)
}
