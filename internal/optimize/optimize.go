// Package optimize implements Compiscript's fixed-point local-optimization
// pipeline (spec.md §4.3): global string pooling, blockwise copy
// propagation/constant folding/algebraic simplification/local CSE,
// dead-temp elimination, unreachable-code pruning, trivial-jump and
// dead-label cleanup, run for a fixed number of iterations and finished
// with a last string-pooling pass and temp renumbering.
//
// No teacher equivalent: the teacher's bytecode VM (internal/vm,
// internal/vmregister) never statically optimizes its own bytecode, it
// only offers alternate *interpretation* strategies (vm_fast.go,
// vm_super.go, ...). The pass-function naming below ("poolStrings",
// "blockwiseSimplify", ...) borrows that family's one-function-per-
// strategy style, but the passes themselves are built directly from
// spec.md §4.3's algorithm description. Stdlib only — these are closed,
// deterministic rewrites over the IR's own data types, not a library
// concern.
package optimize

import (
	"fmt"

	"compiscript/internal/ir"
)

// iterations is the fixed pass-pipeline repeat count spec.md §4.3 names
// ("runs a fixed number of iterations (default 2)").
const iterations = 2

// Run applies the full pipeline to prog and returns it (the same pointer,
// mutated in place: optimize owns prog for the duration of the call and
// hands back sole ownership of the result, matching spec.md §5's "each
// phase... takes ownership of its input... and produces a new output").
func Run(prog *ir.IRProgram) *ir.IRProgram {
	poolStrings(prog)
	for i := 0; i < iterations; i++ {
		for _, name := range prog.Order {
			fn := prog.Functions[name]
			blockwiseSimplify(fn)
			deadTempElimination(fn)
			pruneUnreachable(fn)
			trivialJumpCleanup(fn)
			deadLabelCleanup(fn)
		}
	}
	poolStrings(prog)
	for _, name := range prog.Order {
		renumberTemps(prog.Functions[name])
	}
	return prog
}

// ---- string pooling (global) ----

// poolStrings canonicalizes the whole-program string pool by byte content,
// rewriting every ConstStr to its canonical label and dropping any label no
// instruction references anymore (spec.md §4.3 step 1/6).
func poolStrings(prog *ir.IRProgram) {
	firstLabelFor := make(map[string]string)
	relabel := make(map[string]string)
	var canonicalOrder []string
	for _, label := range prog.StrOrder {
		content := prog.Strings[label]
		if canon, ok := firstLabelFor[content]; ok {
			relabel[label] = canon
			continue
		}
		firstLabelFor[content] = label
		canonicalOrder = append(canonicalOrder, label)
	}

	for _, name := range prog.Order {
		fn := prog.Functions[name]
		for i := range fn.Body {
			rewriteStringOperands(&fn.Body[i], relabel)
		}
	}

	used := make(map[string]bool)
	for _, name := range prog.Order {
		for _, in := range prog.Functions[name].Body {
			markUsedStrings(in, used)
		}
	}

	newStrings := make(map[string]string)
	var newOrder []string
	for _, label := range canonicalOrder {
		if used[label] {
			newStrings[label] = prog.Strings[label]
			newOrder = append(newOrder, label)
		}
	}
	prog.Strings = newStrings
	prog.StrOrder = newOrder
}

func rewriteStringOperands(in *ir.Instr, relabel map[string]string) {
	relabelOne := func(op ir.Operand) ir.Operand {
		if op.Kind == ir.OConstStr {
			if canon, ok := relabel[op.Name]; ok {
				return ir.ConstStr(canon)
			}
		}
		return op
	}
	in.A = relabelOne(in.A)
	in.B = relabelOne(in.B)
	in.Dst = relabelOne(in.Dst)
	in.Src = relabelOne(in.Src)
	in.Base = relabelOne(in.Base)
	in.Index = relabelOne(in.Index)
	in.Value = relabelOne(in.Value)
	for i := range in.Args {
		in.Args[i] = relabelOne(in.Args[i])
	}
}

func markUsedStrings(in ir.Instr, used map[string]bool) {
	mark := func(op ir.Operand) {
		if op.Kind == ir.OConstStr {
			used[op.Name] = true
		}
	}
	mark(in.A)
	mark(in.B)
	mark(in.Dst)
	mark(in.Src)
	mark(in.Base)
	mark(in.Index)
	mark(in.Value)
	for _, a := range in.Args {
		mark(a)
	}
}

// ---- blockwise simplification (per function) ----

// blockwiseSimplify performs one forward walk maintaining a copy map and an
// expression map, both reset at every Label and every barrier (spec.md
// §4.3 step 2).
func blockwiseSimplify(fn *ir.IRFunction) {
	copyMap := make(map[string]ir.Operand)
	exprMap := make(map[string]ir.Operand)
	var out []ir.Instr

	emit := func(in ir.Instr) {
		out = append(out, in)
		if in.IsBarrier() {
			copyMap = make(map[string]ir.Operand)
			exprMap = make(map[string]ir.Operand)
		}
	}
	// emitMoveOrDrop invalidates dst's stale map entries, drops the move
	// if it has become a self-move after substitution, and otherwise
	// records dst's new value in copyMap and emits the Move.
	emitMoveOrDrop := func(dst, src ir.Operand) {
		invalidate(copyMap, exprMap, dst)
		if src.Key() == dst.Key() {
			return
		}
		copyMap[dst.Key()] = src
		emit(ir.Move(dst, src))
	}

	for _, in := range fn.Body {
		switch in.Op {
		case ir.OpLabel, ir.OpJump:
			emit(in)

		case ir.OpCJump:
			a := subst(in.A, copyMap)
			b := subst(in.B, copyMap)
			if res, ok := foldCmp(in.CmpOp, a, b); ok {
				if res != 0 {
					emit(ir.Jump(in.IfTrue))
				} else {
					emit(ir.Jump(in.IfFalse))
				}
				continue
			}
			emit(ir.CJump(in.CmpOp, a, b, in.IfTrue, in.IfFalse))

		case ir.OpMove:
			src := subst(in.Src, copyMap)
			emitMoveOrDrop(in.Dst, src)

		case ir.OpBinOp:
			a := subst(in.A, copyMap)
			b := subst(in.B, copyMap)
			dst := in.Dst
			if res, ok := foldBinOp(in.BinOpK, a, b); ok {
				emitMoveOrDrop(dst, ir.ConstInt(res))
				continue
			}
			if simplified, ok := algebraicIdentity(in.BinOpK, a, b); ok {
				emitMoveOrDrop(dst, simplified)
				continue
			}
			key := cseKey(in.BinOpK, a, b)
			if prior, ok := exprMap[key]; ok {
				emitMoveOrDrop(dst, prior)
				continue
			}
			invalidate(copyMap, exprMap, dst)
			exprMap[key] = dst
			emit(ir.BinOp(in.BinOpK, dst, a, b))

		case ir.OpUnaryOp:
			a := subst(in.A, copyMap)
			dst := in.Dst
			if res, ok := foldUnary(in.UnOpK, a); ok {
				emitMoveOrDrop(dst, ir.ConstInt(res))
				continue
			}
			invalidate(copyMap, exprMap, dst)
			emit(ir.UnaryOp(in.UnOpK, dst, a))

		case ir.OpCmp:
			a := subst(in.A, copyMap)
			b := subst(in.B, copyMap)
			dst := in.Dst
			if res, ok := foldCmp(in.CmpOp, a, b); ok {
				emitMoveOrDrop(dst, ir.ConstInt(res))
				continue
			}
			key := cseKey(in.CmpOp, a, b)
			if prior, ok := exprMap[key]; ok {
				emitMoveOrDrop(dst, prior)
				continue
			}
			invalidate(copyMap, exprMap, dst)
			exprMap[key] = dst
			emit(ir.Cmp(in.CmpOp, dst, a, b))

		case ir.OpCall:
			args := make([]ir.Operand, len(in.Args))
			for i, a := range in.Args {
				args[i] = subst(a, copyMap)
			}
			if in.HasDst {
				d := in.Dst
				invalidate(copyMap, exprMap, d)
				emit(ir.Call(&d, in.Name, args))
			} else {
				emit(ir.Call(nil, in.Name, args))
			}

		case ir.OpReturn:
			if in.HasValue {
				v := subst(in.Value, copyMap)
				emit(ir.Return(&v))
			} else {
				emit(ir.Return(nil))
			}

		case ir.OpLoad:
			base := subst(in.Base, copyMap)
			dst := in.Dst
			invalidate(copyMap, exprMap, dst)
			emit(ir.Load(dst, base, in.Offset))

		case ir.OpStore:
			base := subst(in.Base, copyMap)
			src := subst(in.Src, copyMap)
			emit(ir.Store(base, in.Offset, src))

		case ir.OpLoadI:
			base := subst(in.Base, copyMap)
			index := subst(in.Index, copyMap)
			dst := in.Dst
			invalidate(copyMap, exprMap, dst)
			emit(ir.LoadI(dst, base, index))

		case ir.OpStoreI:
			base := subst(in.Base, copyMap)
			index := subst(in.Index, copyMap)
			src := subst(in.Src, copyMap)
			emit(ir.StoreI(base, index, src))

		default:
			emit(in)
		}
	}
	fn.Body = out
}

// subst follows the copy map for a single read, so a chain of copies
// collapses to its ultimate source (itself already substituted when it was
// recorded).
func subst(op ir.Operand, copyMap map[string]ir.Operand) ir.Operand {
	if v, ok := copyMap[op.Key()]; ok {
		return v
	}
	return op
}

// invalidate drops every copy/expr map entry that names v as either a key
// or a value, since v is about to be (re)defined (spec.md §4.3's
// "writing a destination v removes every map entry that used v as value or
// key").
func invalidate(copyMap, exprMap map[string]ir.Operand, v ir.Operand) {
	key := v.Key()
	delete(copyMap, key)
	for k, val := range copyMap {
		if val.Key() == key {
			delete(copyMap, k)
		}
	}
	for k, val := range exprMap {
		if val.Key() == key {
			delete(exprMap, k)
		}
	}
}

func isCommutative(op string) bool {
	switch op {
	case "+", "*", "==", "!=":
		return true
	}
	return false
}

// cseKey builds a local-CSE key for a binary/comparison op, normalizing
// commutative operators by sorted operand key so `a+b` and `b+a` collide
// (spec.md §4.3's "Local CSE").
func cseKey(op string, a, b ir.Operand) string {
	ak, bk := a.Key(), b.Key()
	if isCommutative(op) && ak > bk {
		ak, bk = bk, ak
	}
	return op + "|" + ak + "|" + bk
}

func foldBinOp(op string, a, b ir.Operand) (int32, bool) {
	if a.Kind != ir.OConstInt || b.Kind != ir.OConstInt {
		return 0, false
	}
	switch op {
	case "+":
		return a.Int + b.Int, true
	case "-":
		return a.Int - b.Int, true
	case "*":
		return a.Int * b.Int, true
	case "/":
		if b.Int == 0 {
			return 0, false
		}
		return a.Int / b.Int, true
	case "%":
		if b.Int == 0 {
			return 0, false
		}
		return a.Int % b.Int, true
	}
	return 0, false
}

func foldUnary(op string, a ir.Operand) (int32, bool) {
	if a.Kind != ir.OConstInt {
		return 0, false
	}
	switch op {
	case "neg":
		return -a.Int, true
	case "not":
		if a.Int == 0 {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func compareInts(op string, a, b int32) bool {
	switch op {
	case "==":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

// foldCmp folds a comparison when both operands are constant, or when they
// are the identical operand (self-comparison), per spec.md §4.3's
// "Algebraic identities"/"CJump constant folding" bullets.
func foldCmp(op string, a, b ir.Operand) (int32, bool) {
	if a.Kind == ir.OConstInt && b.Kind == ir.OConstInt {
		if compareInts(op, a.Int, b.Int) {
			return 1, true
		}
		return 0, true
	}
	if a.Key() == b.Key() {
		switch op {
		case "==", "<=", ">=":
			return 1, true
		case "!=", "<", ">":
			return 0, true
		}
	}
	return 0, false
}

// algebraicIdentity returns the simplified operand for a BinOp whose
// operands match one of spec.md §4.3's algebraic identities, if any.
func algebraicIdentity(op string, a, b ir.Operand) (ir.Operand, bool) {
	isZero := func(o ir.Operand) bool { return o.Kind == ir.OConstInt && o.Int == 0 }
	isOne := func(o ir.Operand) bool { return o.Kind == ir.OConstInt && o.Int == 1 }
	switch op {
	case "+":
		if isZero(b) {
			return a, true
		}
		if isZero(a) {
			return b, true
		}
	case "-":
		if isZero(b) {
			return a, true
		}
		if a.Key() == b.Key() {
			return ir.ConstInt(0), true
		}
	case "*":
		if isOne(b) {
			return a, true
		}
		if isOne(a) {
			return b, true
		}
		if isZero(a) || isZero(b) {
			return ir.ConstInt(0), true
		}
	case "/":
		if isOne(b) {
			return a, true
		}
	case "%":
		if isOne(b) {
			return ir.ConstInt(0), true
		}
	}
	return ir.Operand{}, false
}

// ---- dead-temp elimination (per function) ----

// deadTempElimination repeatedly drops zero-use, side-effect-free Temp
// definitions until the instruction list stops shrinking (spec.md §4.3
// step 3).
func deadTempElimination(fn *ir.IRFunction) {
	for {
		uses := countTempUses(fn.Body)
		var out []ir.Instr
		changed := false
		for _, in := range fn.Body {
			if in.HasDst && in.Dst.Kind == ir.OTemp && uses[in.Dst.Name] == 0 && !in.HasSideEffect() {
				changed = true
				continue
			}
			out = append(out, in)
		}
		fn.Body = out
		if !changed {
			return
		}
	}
}

func countTempUses(body []ir.Instr) map[string]int {
	uses := make(map[string]int)
	count := func(op ir.Operand) {
		if op.Kind == ir.OTemp {
			uses[op.Name]++
		}
	}
	for _, in := range body {
		count(in.A)
		count(in.B)
		count(in.Src)
		count(in.Base)
		count(in.Index)
		count(in.Value)
		for _, a := range in.Args {
			count(a)
		}
	}
	return uses
}

// ---- unreachable-code pruning (per function) ----

// pruneUnreachable drops every instruction between an unconditional
// Jump/Return and the next Label (spec.md §4.3 step 4).
func pruneUnreachable(fn *ir.IRFunction) {
	var out []ir.Instr
	dead := false
	for _, in := range fn.Body {
		if in.Op == ir.OpLabel {
			dead = false
		}
		if dead {
			continue
		}
		out = append(out, in)
		if in.Op == ir.OpJump || in.Op == ir.OpReturn {
			dead = true
		}
	}
	fn.Body = out
}

// ---- trivial-jump / dead-label cleanup (per function) ----

// trivialJumpCleanup removes a Jump(L) immediately followed by Label(L)
// (spec.md §4.3 step 5, first half).
func trivialJumpCleanup(fn *ir.IRFunction) {
	body := fn.Body
	var out []ir.Instr
	for i := 0; i < len(body); i++ {
		in := body[i]
		if in.Op == ir.OpJump && i+1 < len(body) && body[i+1].Op == ir.OpLabel && body[i+1].Name == in.Name {
			continue
		}
		out = append(out, in)
	}
	fn.Body = out
}

// deadLabelCleanup removes any Label never referenced by a Jump or CJump
// (spec.md §4.3 step 5, second half).
func deadLabelCleanup(fn *ir.IRFunction) {
	referenced := make(map[string]bool)
	for _, in := range fn.Body {
		switch in.Op {
		case ir.OpJump:
			referenced[in.Name] = true
		case ir.OpCJump:
			referenced[in.IfTrue] = true
			referenced[in.IfFalse] = true
		}
	}
	var out []ir.Instr
	for _, in := range fn.Body {
		if in.Op == ir.OpLabel && !referenced[in.Name] {
			continue
		}
		out = append(out, in)
	}
	fn.Body = out
}

// ---- temp renumbering (per function) ----

// renumberTemps relabels every Temp stably by first occurrence in the
// instruction list's own printed field order, so output is `t0, t1, ...`
// regardless of how many temps the builder and earlier passes churned
// through (spec.md §4.3 step 6).
func renumberTemps(fn *ir.IRFunction) {
	mapping := make(map[string]string)
	next := 0
	remap := func(op ir.Operand) ir.Operand {
		if op.Kind != ir.OTemp {
			return op
		}
		name, ok := mapping[op.Name]
		if !ok {
			name = fmt.Sprintf("t%d", next)
			next++
			mapping[op.Name] = name
		}
		return ir.Temp(name)
	}
	for i := range fn.Body {
		in := &fn.Body[i]
		switch in.Op {
		case ir.OpCJump:
			in.A = remap(in.A)
			in.B = remap(in.B)
		case ir.OpMove:
			in.Dst = remap(in.Dst)
			in.Src = remap(in.Src)
		case ir.OpBinOp:
			in.Dst = remap(in.Dst)
			in.A = remap(in.A)
			in.B = remap(in.B)
		case ir.OpUnaryOp:
			in.Dst = remap(in.Dst)
			in.A = remap(in.A)
		case ir.OpCmp:
			in.Dst = remap(in.Dst)
			in.A = remap(in.A)
			in.B = remap(in.B)
		case ir.OpCall:
			if in.HasDst {
				in.Dst = remap(in.Dst)
			}
			for j := range in.Args {
				in.Args[j] = remap(in.Args[j])
			}
		case ir.OpReturn:
			if in.HasValue {
				in.Value = remap(in.Value)
			}
		case ir.OpLoad:
			in.Dst = remap(in.Dst)
			in.Base = remap(in.Base)
		case ir.OpStore:
			in.Base = remap(in.Base)
			in.Src = remap(in.Src)
		case ir.OpLoadI:
			in.Dst = remap(in.Dst)
			in.Base = remap(in.Base)
			in.Index = remap(in.Index)
		case ir.OpStoreI:
			in.Base = remap(in.Base)
			in.Index = remap(in.Index)
			in.Src = remap(in.Src)
		}
	}
}
