package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Printer renders an IRProgram in the textual form of spec.md §6.3.
// Grounded on the teacher's internal/formatter/formatter.go: an
// indent-tracking strings.Builder walk, repointed from AST statements to
// IR instructions.
type Printer struct {
	output strings.Builder
}

func NewPrinter() *Printer { return &Printer{} }

// Print renders the whole program: header comments, then each function in
// declaration order.
func (p *Printer) Print(prog *IRProgram) string {
	p.output.Reset()
	if len(prog.StrOrder) > 0 {
		p.output.WriteString("; .strings\n")
		for _, label := range prog.StrOrder {
			fmt.Fprintf(&p.output, ";   %s = %q\n", label, prog.Strings[label])
		}
	}
	fmt.Fprintf(&p.output, "; entry: %s\n", prog.Entry)
	for _, name := range prog.Order {
		p.output.WriteString("\n")
		p.printFunction(prog.Functions[name])
	}
	return p.output.String()
}

func (p *Printer) printFunction(fn *IRFunction) {
	fmt.Fprintf(&p.output, "%s(%s):\n", fn.Name, strings.Join(fn.Params, ", "))
	if len(fn.Locals) > 0 {
		locals := append([]string(nil), fn.Locals...)
		sort.Strings(locals)
		fmt.Fprintf(&p.output, "; locals: %s\n", strings.Join(locals, ", "))
	}
	for _, in := range fn.Body {
		p.printInstr(in)
	}
}

func (p *Printer) printInstr(in Instr) {
	switch in.Op {
	case OpLabel:
		fmt.Fprintf(&p.output, "%s:\n", in.Name)
	case OpJump:
		fmt.Fprintf(&p.output, "    goto %s\n", in.Name)
	case OpCJump:
		fmt.Fprintf(&p.output, "    if %s %s %s goto %s else %s\n",
			in.A, in.CmpOp, in.B, in.IfTrue, in.IfFalse)
	case OpMove:
		fmt.Fprintf(&p.output, "    %s = %s\n", in.Dst, in.Src)
	case OpBinOp:
		fmt.Fprintf(&p.output, "    %s = %s %s %s\n", in.Dst, in.A, in.BinOpK, in.B)
	case OpUnaryOp:
		fmt.Fprintf(&p.output, "    %s = %s(%s)\n", in.Dst, in.UnOpK, in.A)
	case OpCmp:
		fmt.Fprintf(&p.output, "    %s = (%s %s %s)\n", in.Dst, in.A, in.CmpOp, in.B)
	case OpCall:
		args := make([]string, len(in.Args))
		for i, a := range in.Args {
			args[i] = a.String()
		}
		if in.HasDst {
			fmt.Fprintf(&p.output, "    %s = call %s(%s)\n", in.Dst, in.Name, strings.Join(args, ", "))
		} else {
			fmt.Fprintf(&p.output, "    call %s(%s)\n", in.Name, strings.Join(args, ", "))
		}
	case OpReturn:
		if in.HasValue {
			fmt.Fprintf(&p.output, "    return %s\n", in.Value)
		} else {
			p.output.WriteString("    return\n")
		}
	case OpLoad:
		fmt.Fprintf(&p.output, "    %s = *(%s + %d)\n", in.Dst, in.Base, in.Offset)
	case OpStore:
		fmt.Fprintf(&p.output, "    *(%s + %d) = %s\n", in.Base, in.Offset, in.Src)
	case OpLoadI:
		fmt.Fprintf(&p.output, "    %s = *(%s + 4 + %s*4)\n", in.Dst, in.Base, in.Index)
	case OpStoreI:
		fmt.Fprintf(&p.output, "    *(%s + 4 + %s*4) = %s\n", in.Base, in.Index, in.Src)
	}
}
