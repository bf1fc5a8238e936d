// Package ir implements Compiscript's three-address intermediate
// representation (spec.md §3.5): a closed operand union, a closed
// instruction union, and the IRFunction/IRProgram containers the builder
// produces and the optimizer/backends consume.
//
// Grounded on the teacher's internal/bytecode/{chunk.go,opcodes.go}: a
// closed opcode enum plus a flat per-function instruction list, with a
// content-addressed constant pool — reshaped here from stack bytecode to
// three-address form with named Temp/Local/Param operands.
package ir

import "fmt"

// OperandKind identifies which closed-union variant an Operand holds.
type OperandKind int

const (
	OTemp OperandKind = iota
	OLocal
	OParam
	OConstInt
	OConstStr
)

// Operand is Compiscript's closed operand union (spec.md §3.5).
type Operand struct {
	Kind OperandKind
	Name string // Temp/Local/Param name, or ConstStr's pool label
	Int  int32  // ConstInt's value
}

func Temp(name string) Operand    { return Operand{Kind: OTemp, Name: name} }
func Local(name string) Operand   { return Operand{Kind: OLocal, Name: name} }
func Param(name string) Operand   { return Operand{Kind: OParam, Name: name} }
func ConstInt(v int32) Operand    { return Operand{Kind: OConstInt, Int: v} }
func ConstStr(label string) Operand { return Operand{Kind: OConstStr, Name: label} }

func (o Operand) IsConst() bool { return o.Kind == OConstInt }

func (o Operand) String() string {
	switch o.Kind {
	case OTemp:
		return "%" + o.Name
	case OLocal:
		return "$" + o.Name
	case OParam:
		return "@" + o.Name
	case OConstInt:
		return fmt.Sprintf("%d", o.Int)
	case OConstStr:
		return "&" + o.Name
	}
	return "?"
}

// Key returns a string identifying the operand's kind and value, used by
// the optimizer's copy/expr maps and CSE keys.
func (o Operand) Key() string {
	switch o.Kind {
	case OConstInt:
		return fmt.Sprintf("i:%d", o.Int)
	default:
		return fmt.Sprintf("%d:%s", o.Kind, o.Name)
	}
}

// Op identifies an instruction's closed-union variant.
type Op int

const (
	OpLabel Op = iota
	OpJump
	OpCJump
	OpMove
	OpBinOp
	OpUnaryOp
	OpCmp
	OpCall
	OpReturn
	OpLoad
	OpStore
	OpLoadI
	OpStoreI
)

// Instr is Compiscript's closed instruction union (spec.md §3.5). Only the
// fields relevant to Op are meaningful; the others are zero.
type Instr struct {
	Op Op

	Name string // Label/Jump/CJump target(s); Call's function name

	// CJump
	CmpOp   string // "==","!=","<","<=",">",">="
	A, B    Operand
	IfTrue  string
	IfFalse string

	// Move/BinOp/UnaryOp/Cmp/Load/Store/LoadI/StoreI
	Dst    Operand
	HasDst bool
	Src    Operand
	BinOpK string // "+","-","*","/","%"
	UnOpK  string // "neg","not"

	Base   Operand
	Offset int32
	Index  Operand

	// Call
	Args []Operand

	// Return
	Value    Operand
	HasValue bool
}

func Label(name string) Instr { return Instr{Op: OpLabel, Name: name} }
func Jump(target string) Instr { return Instr{Op: OpJump, Name: target} }

func CJump(op string, a, b Operand, ifTrue, ifFalse string) Instr {
	return Instr{Op: OpCJump, CmpOp: op, A: a, B: b, IfTrue: ifTrue, IfFalse: ifFalse}
}

func Move(dst, src Operand) Instr {
	return Instr{Op: OpMove, Dst: dst, HasDst: true, Src: src}
}

func BinOp(op string, dst, a, b Operand) Instr {
	return Instr{Op: OpBinOp, Dst: dst, HasDst: true, BinOpK: op, A: a, B: b}
}

func UnaryOp(op string, dst, a Operand) Instr {
	return Instr{Op: OpUnaryOp, Dst: dst, HasDst: true, UnOpK: op, A: a}
}

func Cmp(op string, dst, a, b Operand) Instr {
	return Instr{Op: OpCmp, Dst: dst, HasDst: true, CmpOp: op, A: a, B: b}
}

func Call(dst *Operand, fn string, args []Operand) Instr {
	in := Instr{Op: OpCall, Name: fn, Args: args}
	if dst != nil {
		in.Dst, in.HasDst = *dst, true
	}
	return in
}

func Return(value *Operand) Instr {
	in := Instr{Op: OpReturn}
	if value != nil {
		in.Value, in.HasValue = *value, true
	}
	return in
}

func Load(dst, base Operand, offset int32) Instr {
	return Instr{Op: OpLoad, Dst: dst, HasDst: true, Base: base, Offset: offset}
}

func Store(base Operand, offset int32, src Operand) Instr {
	return Instr{Op: OpStore, Base: base, Offset: offset, Src: src}
}

func LoadI(dst, base, index Operand) Instr {
	return Instr{Op: OpLoadI, Dst: dst, HasDst: true, Base: base, Index: index}
}

func StoreI(base, index, src Operand) Instr {
	return Instr{Op: OpStoreI, Base: base, Index: index, Src: src}
}

// IsBarrier reports whether this instruction resets the optimizer's
// copy/expr maps (spec.md §4.3).
func (in Instr) IsBarrier() bool {
	switch in.Op {
	case OpStore, OpStoreI, OpCall, OpReturn, OpJump, OpCJump, OpLabel:
		return true
	}
	return false
}

// HasSideEffect reports whether dead-temp elimination must keep this
// instruction regardless of whether its Dst is ever read (spec.md §4.3).
func (in Instr) HasSideEffect() bool {
	switch in.Op {
	case OpStore, OpStoreI, OpReturn, OpJump, OpCJump, OpLabel, OpCall:
		return true
	}
	return false
}

// IRFunction is one compiled function/method/constructor body.
type IRFunction struct {
	Name   string
	Params []string
	Body   []Instr
	Locals []string // declared locals, in first-declaration order
}

// IRProgram is the whole-program IR produced by the builder (spec.md §3.5).
type IRProgram struct {
	Functions map[string]*IRFunction
	Order     []string // function names in declaration order, for stable output
	Strings   map[string]string
	StrOrder  []string // string-pool labels in first-use order
	Entry     string
}

func NewProgram() *IRProgram {
	return &IRProgram{
		Functions: make(map[string]*IRFunction),
		Strings:   make(map[string]string),
	}
}

func (p *IRProgram) AddFunction(fn *IRFunction) {
	if _, exists := p.Functions[fn.Name]; !exists {
		p.Order = append(p.Order, fn.Name)
	}
	p.Functions[fn.Name] = fn
}

// InternString assigns label to content if content has not already been
// interned under a different label, returning the canonical label.
func (p *IRProgram) InternString(label, content string) string {
	for _, existing := range p.StrOrder {
		if p.Strings[existing] == content {
			return existing
		}
	}
	p.Strings[label] = content
	p.StrOrder = append(p.StrOrder, label)
	return label
}
