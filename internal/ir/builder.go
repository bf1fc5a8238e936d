package ir

import (
	"fmt"

	"compiscript/internal/ast"
	"compiscript/internal/ice"
	"compiscript/internal/symbols"
)

// classLayout is the per-class field offset table built once during
// lowering (spec.md §4.2: "build the field offset table (inherited first,
// declared second)").
type classLayout struct {
	fieldOffset map[string]int32
	size        int32
	base        string
}

// loopFrame is the two-stack (continue, break) target pair spec.md §4.2
// describes, pushed by every loop/switch.
type loopFrame struct {
	continueLabel string // "" if not applicable (switch bodies)
	breakLabel    string
}

// Builder lowers a semantically-checked AST to an IRProgram. It owns the
// only mutable state that crosses a phase boundary within itself (temp and
// label counters, per spec.md §5), and consumes (does not mutate) the
// *symbols.Env produced by the analyzer.
//
// Grounded on the teacher's internal/compiler/stmt_compiler.go: the same
// visitor-driven, one-function-at-a-time lowering shape, generalized from
// stack-bytecode emission to three-address-with-named-temps emission.
type Builder struct {
	env     *symbols.Env
	classOf map[string]symbols.SymbolID
	prog    *IRProgram

	layouts map[string]*classLayout

	// captureNames maps an IR function name to the names (in FuncInfo.Captures
	// order) of the enclosing locals it closes over, per spec.md §4.1's
	// capture-list flattening: each name becomes a trailing formal parameter
	// on the callee and a trailing actual argument at every call site.
	captureNames map[string][]string

	// per-function state, reset by newFunction
	fn         *IRFunction
	scopes     []map[string]Operand // name -> operand, innermost last
	staticCls  []map[string]string  // name -> class name (nil entry = unknown), innermost last
	staticStr  []map[string]bool    // name -> known string-typed, innermost last
	tempSeq    int
	freeTemps  []string
	labelSeq   int
	loopStack  []loopFrame
	localSet   map[string]bool
}

// Build lowers prog (a semantically valid *ast.Program) and env (the
// environment Analyze populated) into an IRProgram.
func Build(prog *ast.Program, env *symbols.Env, classOf map[string]symbols.SymbolID) *IRProgram {
	b := &Builder{
		env:     env,
		classOf: classOf,
		prog:    NewProgram(),
		layouts: make(map[string]*classLayout),
	}
	b.buildClassLayouts()
	b.buildCaptureNames()

	var topLevel []ast.Stmt
	for _, s := range prog.Stmts {
		switch n := s.(type) {
		case *ast.FunctionDecl:
			b.buildFunction(n.Name, nil, "", n.Params, n.Body)
		case *ast.ClassDecl:
			b.buildClass(n)
		default:
			topLevel = append(topLevel, s)
		}
	}
	b.buildFunction("__toplevel", nil, "", nil, topLevel)

	if _, ok := b.prog.Functions["main"]; ok {
		b.prog.Entry = "main"
	} else {
		b.prog.Entry = "__toplevel"
	}
	return b.prog
}

// ---- class layout ----

func (b *Builder) buildClassLayouts() {
	var order []string
	for name := range b.classOf {
		order = append(order, name)
	}
	for _, name := range order {
		b.layoutFor(name)
	}
}

// layoutFor computes (and memoizes) the field-offset table for className,
// walking the inheritance chain base-first (spec.md §6.6).
func (b *Builder) layoutFor(className string) *classLayout {
	if l, ok := b.layouts[className]; ok {
		return l
	}
	classSym, ok := b.classOf[className]
	if !ok {
		panic(ice.New("unknown class %q in layout computation", className))
	}
	ci := b.env.Symbol(classSym).Class
	l := &classLayout{fieldOffset: make(map[string]int32), base: ci.BaseName}
	var baseLayout *classLayout
	if ci.BaseName != "" {
		baseLayout = b.layoutFor(ci.BaseName)
		for name, off := range baseLayout.fieldOffset {
			l.fieldOffset[name] = off
		}
		l.size = baseLayout.size
	}
	var fieldNames []string
	for name, sym := range ci.Members {
		if b.env.Symbol(sym).Kind == symbols.FieldKind {
			fieldNames = append(fieldNames, name)
		}
	}
	sortStable(fieldNames)
	for _, name := range fieldNames {
		l.fieldOffset[name] = l.size
		l.size += 4
	}
	b.layouts[className] = l
	return l
}

// sortStable is a tiny insertion sort used only to give field layout a
// deterministic order independent of Go's map iteration (spec.md §5:
// "deterministic... byte-identical outputs").
func sortStable(xs []string) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func (b *Builder) irMethodName(className, methodName string) string {
	return className + "__" + methodName
}

// buildCaptureNames walks every declared symbol once and records, for each
// function that closes over an enclosing local (a nested *ast.FunctionDecl,
// per spec.md §4.1), the ordered list of captured names. This runs before
// any function body is lowered so buildFunction can add the right trailing
// parameters and buildCall can forward the right trailing arguments.
func (b *Builder) buildCaptureNames() {
	b.captureNames = make(map[string][]string)
	for _, sym := range b.env.AllSymbols() {
		if sym.Kind != symbols.FuncKind || sym.Func == nil || len(sym.Func.Captures) == 0 {
			continue
		}
		irName := sym.Name
		if sym.Func.IsMethod {
			irName = b.irMethodName(sym.Func.OwnerClass, sym.Name)
		}
		names := make([]string, len(sym.Func.Captures))
		for i, capID := range sym.Func.Captures {
			names[i] = b.env.Symbol(capID).Name
		}
		b.captureNames[irName] = names
	}
}

// ---- function/scope plumbing ----

func (b *Builder) newFunction(name string, params []string) {
	b.fn = &IRFunction{Name: name, Params: params}
	b.scopes = []map[string]Operand{{}}
	b.staticCls = []map[string]string{{}}
	b.staticStr = []map[string]bool{{}}
	b.tempSeq = 0
	b.freeTemps = nil
	b.labelSeq = 0
	b.loopStack = nil
	b.localSet = make(map[string]bool)
	for _, p := range params {
		b.bind(p, Param(p))
	}
}

func (b *Builder) finishFunction() {
	b.prog.AddFunction(b.fn)
	b.fn = nil
}

func (b *Builder) pushScope() {
	b.scopes = append(b.scopes, map[string]Operand{})
	b.staticCls = append(b.staticCls, map[string]string{})
	b.staticStr = append(b.staticStr, map[string]bool{})
}

func (b *Builder) popScope() {
	b.scopes = b.scopes[:len(b.scopes)-1]
	b.staticCls = b.staticCls[:len(b.staticCls)-1]
	b.staticStr = b.staticStr[:len(b.staticStr)-1]
}

func (b *Builder) bind(name string, op Operand) {
	b.scopes[len(b.scopes)-1][name] = op
}

func (b *Builder) lookup(name string) (Operand, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if op, ok := b.scopes[i][name]; ok {
			return op, true
		}
	}
	return Operand{}, false
}

func (b *Builder) setStaticClass(name, className string) {
	b.staticCls[len(b.staticCls)-1][name] = className
}

func (b *Builder) staticClassOf(name string) (string, bool) {
	for i := len(b.staticCls) - 1; i >= 0; i-- {
		if c, ok := b.staticCls[i][name]; ok {
			return c, true
		}
	}
	return "", false
}

func (b *Builder) setKnownString(name string) {
	b.staticStr[len(b.staticStr)-1][name] = true
}

func (b *Builder) isKnownString(name string) bool {
	for i := len(b.staticStr) - 1; i >= 0; i-- {
		if b.staticStr[i][name] {
			return true
		}
	}
	return false
}

// newLocal declares a fresh named local in the current function and binds
// name to it, recording it on the IRFunction exactly once.
func (b *Builder) newLocal(name string) Operand {
	if !b.localSet[name] {
		b.localSet[name] = true
		b.fn.Locals = append(b.fn.Locals, name)
	}
	op := Local(name)
	b.bind(name, op)
	return op
}

// newTemp allocates a fresh Temp, reusing a released name if one is free
// (spec.md §4.2: "released temps are pushed onto a free-list").
func (b *Builder) newTemp() Operand {
	if n := len(b.freeTemps); n > 0 {
		name := b.freeTemps[n-1]
		b.freeTemps = b.freeTemps[:n-1]
		return Temp(name)
	}
	name := fmt.Sprintf("t%d", b.tempSeq)
	b.tempSeq++
	return Temp(name)
}

func (b *Builder) releaseTemp(op Operand) {
	if op.Kind == OTemp {
		b.freeTemps = append(b.freeTemps, op.Name)
	}
}

func (b *Builder) newLabel(prefix string) string {
	l := fmt.Sprintf("L_%s_%d", prefix, b.labelSeq)
	b.labelSeq++
	return l
}

func (b *Builder) emit(in Instr) { b.fn.Body = append(b.fn.Body, in) }

// internString deduplicates content against the whole-program string pool
// (spec.md §4.2's "after deduplicating by content"), synthesizing a fresh
// label only on first sight.
func (b *Builder) internString(content string) string {
	label := fmt.Sprintf("str_%d", len(b.prog.StrOrder))
	return b.prog.InternString(label, content)
}

// buildFunction compiles one function/method/constructor body into an
// IRFunction and adds it to the program. extraParam is nil and ownerClass
// empty for a plain function; for a method, extraParam names the leading
// "this" parameter, ownerClass is its class, and name is the IR-qualified
// name (Class__method) already computed by the caller.
func (b *Builder) buildFunction(name string, extraParam *string, ownerClass string, params []ast.Param, body []ast.Stmt) {
	var paramNames []string
	if extraParam != nil {
		paramNames = append(paramNames, *extraParam)
	}
	for _, p := range params {
		paramNames = append(paramNames, p.Name)
	}
	paramNames = append(paramNames, b.captureNames[name]...)
	b.newFunction(name, paramNames)
	if ownerClass != "" {
		b.setStaticClass("this", ownerClass)
	}
	for _, p := range params {
		if cls, ok := classNameFromAnn(p.Ann); ok {
			b.setStaticClass(p.Name, cls)
		}
		if p.Ann != nil && p.Ann.ArrayDepth == 0 && (p.Ann.Base == "string") {
			b.setKnownString(p.Name)
		}
	}
	for _, s := range body {
		b.buildStmt(s)
	}
	// Every function falls off the end with an implicit bare return, so a
	// void function (or one whose definite-return check already
	// guaranteed every real path returns) always has valid IR.
	b.emit(Return(nil))
	b.finishFunction()
}

func (b *Builder) buildClass(n *ast.ClassDecl) {
	for _, m := range n.Members {
		switch m.Kind {
		case ast.MemberCtor:
			b.buildFunction(b.irMethodName(n.Name, "constructor"), strPtr("this"), n.Name, m.Fn.Params, m.Fn.Body)
		case ast.MemberMethod:
			b.buildFunction(b.irMethodName(n.Name, m.Fn.Name), strPtr("this"), n.Name, m.Fn.Params, m.Fn.Body)
		}
	}
}

func strPtr(s string) *string { return &s }

// resolveMethod walks className's inheritance chain for methodName,
// returning the IR-qualified name of the class that actually defines it.
func (b *Builder) resolveMethod(className, methodName string) (string, bool) {
	_, owner, ok := symbols.ResolveClassMember(b.env, b.classOf, className, methodName)
	if !ok {
		return "", false
	}
	return b.irMethodName(owner, methodName), true
}

func (b *Builder) fieldOffset(className, fieldName string) (int32, bool) {
	l := b.layoutFor(className)
	off, ok := l.fieldOffset[fieldName]
	return off, ok
}
