package ir

import (
	"compiscript/internal/ast"
	"compiscript/internal/ice"
	"compiscript/internal/symbols"
)

// buildExpr lowers e to an Operand holding its value, per spec.md §4.2.
func (b *Builder) buildExpr(e ast.Expr) Operand {
	switch n := e.(type) {
	case *ast.Literal:
		return b.buildLiteral(n)
	case *ast.Identifier:
		op, ok := b.lookup(n.Name)
		if !ok {
			// A global function/class reference used as a bare value (not
			// called): represented by its name as a pseudo-constant label
			// so codegen can still print/compare identity if ever asked to;
			// no Compiscript program can observe this today since functions
			// and classes are never first-class values, so this path is
			// unreachable from a semantically valid program.
			panic(ice.New("identifier %q has no bound operand in the current function", n.Name))
		}
		return op
	case *ast.This:
		return Param("this")
	case *ast.Unary:
		return b.buildUnary(n)
	case *ast.Binary:
		return b.buildBinary(n)
	case *ast.Ternary:
		return b.buildTernary(n)
	case *ast.Call:
		return b.buildCall(n)
	case *ast.MemberAccess:
		return b.buildMemberAccessRead(n)
	case *ast.IndexAccess:
		return b.buildIndexAccessRead(n)
	case *ast.ArrayLiteral:
		return b.buildArrayLiteral(n)
	}
	panic(ice.New("unsupported expression node %T", e))
}

func (b *Builder) buildLiteral(n *ast.Literal) Operand {
	switch n.Kind {
	case ast.LitInt:
		return ConstInt(int32(n.Value.(int64)))
	case ast.LitBool:
		if n.Value.(bool) {
			return ConstInt(1)
		}
		return ConstInt(0)
	case ast.LitNull:
		return ConstInt(0)
	case ast.LitString:
		label := b.internString(n.Value.(string))
		return ConstStr(label)
	}
	panic(ice.New("unsupported literal kind %d", n.Kind))
}

func (b *Builder) buildUnary(n *ast.Unary) Operand {
	v := b.buildExpr(n.Expr)
	dst := b.newTemp()
	switch n.Op {
	case "-":
		b.emit(UnaryOp("neg", dst, v))
	case "!":
		b.emit(Cmp("==", dst, v, ConstInt(0)))
	default:
		panic(ice.New("unsupported unary operator %q", n.Op))
	}
	return dst
}

// isStringOperand reports whether e is statically known to produce a
// string, covering string literals, locals/params annotated (or inferred)
// as string, and "+" concatenation chains where either side is a string
// (spec.md §4.2's string-concat detection at lowering time).
func (b *Builder) isStringOperand(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.Literal:
		return n.Kind == ast.LitString
	case *ast.Identifier:
		return b.isKnownString(n.Name)
	case *ast.Binary:
		if n.Op == "+" {
			return b.isStringOperand(n.Left) || b.isStringOperand(n.Right)
		}
	case *ast.Ternary:
		return b.isStringOperand(n.Then) || b.isStringOperand(n.Else)
	}
	return false
}

func (b *Builder) buildBinary(n *ast.Binary) Operand {
	switch n.Op {
	case "&&", "||":
		return b.buildShortCircuit(n)
	}
	if n.Op == "+" && (b.isStringOperand(n.Left) || b.isStringOperand(n.Right)) {
		a := b.buildExpr(n.Left)
		bop := b.buildExpr(n.Right)
		dst := b.newTemp()
		b.emit(Call(&dst, "__concat", []Operand{a, bop}))
		return dst
	}
	a := b.buildExpr(n.Left)
	bop := b.buildExpr(n.Right)
	dst := b.newTemp()
	switch n.Op {
	case "+", "-", "*", "/", "%":
		b.emit(BinOp(n.Op, dst, a, bop))
	case "==", "!=", "<", "<=", ">", ">=":
		b.emit(Cmp(n.Op, dst, a, bop))
	default:
		panic(ice.New("unsupported binary operator %q", n.Op))
	}
	return dst
}

// buildShortCircuit lowers && / || with a destination temp initialized to
// 0 and set to 1 on the success path (spec.md §4.2).
func (b *Builder) buildShortCircuit(n *ast.Binary) Operand {
	dst := b.newTemp()
	lTrue := b.newLabel("sc_true")
	lFalse := b.newLabel("sc_false")
	lEnd := b.newLabel("sc_end")
	b.emit(Move(dst, ConstInt(0)))
	b.buildCondJump(n, lTrue, lFalse)
	b.emit(Label(lTrue))
	b.emit(Move(dst, ConstInt(1)))
	b.emit(Jump(lEnd))
	b.emit(Label(lFalse))
	b.emit(Jump(lEnd))
	b.emit(Label(lEnd))
	return dst
}

func (b *Builder) buildTernary(n *ast.Ternary) Operand {
	dst := b.newTemp()
	lThen := b.newLabel("tern_then")
	lElse := b.newLabel("tern_else")
	lEnd := b.newLabel("tern_end")
	b.buildCondJump(n.Cond, lThen, lElse)
	b.emit(Label(lThen))
	b.emit(Move(dst, b.buildExpr(n.Then)))
	b.emit(Jump(lEnd))
	b.emit(Label(lElse))
	b.emit(Move(dst, b.buildExpr(n.Else)))
	b.emit(Jump(lEnd))
	b.emit(Label(lEnd))
	return dst
}

// buildCondJump lowers e as a branch to (ifTrue, ifFalse), per spec.md
// §4.2's conditional-jump helper. Relational comparisons and short-circuit
// &&/|| get direct jump lowering; everything else is evaluated and
// compared against zero.
func (b *Builder) buildCondJump(e ast.Expr, ifTrue, ifFalse string) {
	if bin, ok := e.(*ast.Binary); ok {
		switch bin.Op {
		case "==", "!=", "<", "<=", ">", ">=":
			a := b.buildExpr(bin.Left)
			bop := b.buildExpr(bin.Right)
			b.emit(CJump(bin.Op, a, bop, ifTrue, ifFalse))
			return
		case "&&":
			mid := b.newLabel("and_mid")
			b.buildCondJump(bin.Left, mid, ifFalse)
			b.emit(Label(mid))
			b.buildCondJump(bin.Right, ifTrue, ifFalse)
			return
		case "||":
			mid := b.newLabel("or_mid")
			b.buildCondJump(bin.Left, ifTrue, mid)
			b.emit(Label(mid))
			b.buildCondJump(bin.Right, ifTrue, ifFalse)
			return
		}
	}
	v := b.buildExpr(e)
	b.emit(CJump("!=", v, ConstInt(0), ifTrue, ifFalse))
}

func (b *Builder) buildMemberAccessRead(n *ast.MemberAccess) Operand {
	base, className := b.resolveReceiver(n.Obj)
	offset, ok := b.fieldOffset(className, n.Name)
	if !ok {
		panic(ice.New("class %q has no field %q in IR lowering", className, n.Name))
	}
	dst := b.newTemp()
	b.emit(Load(dst, base, offset))
	return dst
}

func (b *Builder) buildMemberAccessStore(n *ast.MemberAccess, value Operand) {
	base, className := b.resolveReceiver(n.Obj)
	offset, ok := b.fieldOffset(className, n.Name)
	if !ok {
		panic(ice.New("class %q has no field %q in IR lowering", className, n.Name))
	}
	b.emit(Store(base, offset, value))
}

// resolveReceiver evaluates obj and recovers its static class name, per
// spec.md §4.2: "the receiver must be This or a typed local/param."
func (b *Builder) resolveReceiver(obj ast.Expr) (Operand, string) {
	switch n := obj.(type) {
	case *ast.This:
		cls, ok := b.staticClassOf("this")
		if !ok {
			panic(ice.New("'this' used outside a method in IR lowering"))
		}
		return Param("this"), cls
	case *ast.Identifier:
		op, ok := b.lookup(n.Name)
		if !ok {
			panic(ice.New("identifier %q has no bound operand in IR lowering", n.Name))
		}
		cls, ok := b.staticClassOf(n.Name)
		if !ok {
			panic(ice.New("local %q has no recorded static class in IR lowering", n.Name))
		}
		return op, cls
	default:
		panic(ice.New("unsupported member-access receiver shape %T", obj))
	}
}

func (b *Builder) buildIndexAccessRead(n *ast.IndexAccess) Operand {
	base := b.buildExpr(n.Obj)
	idx := b.buildExpr(n.Index)
	dst := b.newTemp()
	b.emit(LoadI(dst, base, idx))
	return dst
}

func (b *Builder) buildIndexAccessStore(n *ast.IndexAccess, value Operand) {
	base := b.buildExpr(n.Obj)
	idx := b.buildExpr(n.Index)
	b.emit(StoreI(base, idx, value))
}

func (b *Builder) buildArrayLiteral(n *ast.ArrayLiteral) Operand {
	size := int32(4 + 4*len(n.Elems))
	arr := b.newTemp()
	b.emit(Call(&arr, "malloc", []Operand{ConstInt(size)}))
	b.emit(Store(arr, 0, ConstInt(int32(len(n.Elems)))))
	for i, elemExpr := range n.Elems {
		v := b.buildExpr(elemExpr)
		b.emit(Store(arr, int32(4+4*i), v))
	}
	return arr
}

// buildCall lowers a Call node (free function, method, or `new` expression)
// to the Operand carrying its result.
func (b *Builder) buildCall(n *ast.Call) Operand {
	if ident, ok := n.Callee.(*ast.Identifier); ok {
		if _, isClass := b.classOf[ident.Name]; isClass {
			return b.buildConstructorCall(n, ident.Name)
		}
	}
	switch callee := n.Callee.(type) {
	case *ast.Identifier:
		args := make([]Operand, len(n.Args))
		for i, a := range n.Args {
			args[i] = b.buildExpr(a)
		}
		for _, capName := range b.captureNames[callee.Name] {
			op, ok := b.lookup(capName)
			if !ok {
				panic(ice.New("captured name %q not bound at call site of %q", capName, callee.Name))
			}
			args = append(args, op)
		}
		dst := b.newTemp()
		b.emit(Call(&dst, callee.Name, args))
		return dst
	case *ast.MemberAccess:
		base, className := b.resolveReceiver(callee.Obj)
		irName, ok := b.resolveMethod(className, callee.Name)
		if !ok {
			panic(ice.New("class %q has no method %q in IR lowering", className, callee.Name))
		}
		args := make([]Operand, 0, len(n.Args)+1)
		args = append(args, base)
		for _, a := range n.Args {
			args = append(args, b.buildExpr(a))
		}
		dst := b.newTemp()
		b.emit(Call(&dst, irName, args))
		return dst
	default:
		panic(ice.New("unsupported call-target shape %T", n.Callee))
	}
}

// buildConstructorCall lowers `new Class(args)`: allocate the instance,
// run its constructor if one exists, and return the instance pointer
// (spec.md §4.2).
func (b *Builder) buildConstructorCall(n *ast.Call, className string) Operand {
	layout := b.layoutFor(className)
	thisTmp := b.newTemp()
	b.emit(Call(&thisTmp, "malloc", []Operand{ConstInt(layout.size)}))
	classSym := b.classOf[className]
	ci := b.env.Symbol(classSym).Class
	if ci.Ctor != symbols.NoSymbol {
		args := make([]Operand, 0, len(n.Args)+1)
		args = append(args, thisTmp)
		for _, a := range n.Args {
			args = append(args, b.buildExpr(a))
		}
		irName := b.irMethodName(className, "constructor")
		b.emit(Call(nil, irName, args))
	}
	return thisTmp
}
