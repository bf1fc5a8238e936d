package ir

import "testing"

func TestPrintFunctionBasicForms(t *testing.T) {
	prog := NewProgram()
	fn := &IRFunction{
		Name:   "main",
		Params: nil,
		Locals: []string{"x"},
	}
	x := Local("x")
	t0 := Temp("t0")
	fn.Body = []Instr{
		Move(x, ConstInt(1)),
		BinOp("+", t0, x, ConstInt(2)),
		Return(&t0),
	}
	prog.AddFunction(fn)
	prog.Entry = "main"

	got := NewPrinter().Print(prog)
	want := "; entry: main\n" +
		"\n" +
		"main():\n" +
		"; locals: x\n" +
		"    $x = 1\n" +
		"    %t0 = $x + 2\n" +
		"    return %t0\n"
	if got != want {
		t.Fatalf("Print() =\n%q\nwant\n%q", got, want)
	}
}

func TestPrintControlFlowForms(t *testing.T) {
	prog := NewProgram()
	fn := &IRFunction{Name: "f", Params: []string{"n"}}
	n := Param("n")
	t0 := Temp("t0")
	fn.Body = []Instr{
		CJump("<", n, ConstInt(0), "L_then_0", "L_end_0"),
		Label("L_then_0"),
		Cmp("==", t0, n, ConstInt(0)),
		Jump("L_end_0"),
		Label("L_end_0"),
		Return(nil),
	}
	prog.AddFunction(fn)
	prog.Entry = "f"

	got := NewPrinter().Print(prog)
	want := "; entry: f\n" +
		"\n" +
		"f(n):\n" +
		"    if @n < 0 goto L_then_0 else L_end_0\n" +
		"L_then_0:\n" +
		"    %t0 = (@n == 0)\n" +
		"    goto L_end_0\n" +
		"L_end_0:\n" +
		"    return\n"
	if got != want {
		t.Fatalf("Print() =\n%q\nwant\n%q", got, want)
	}
}

func TestPrintMemoryForms(t *testing.T) {
	prog := NewProgram()
	fn := &IRFunction{Name: "g", Params: []string{"this"}}
	this := Param("this")
	idx := Temp("i")
	dst := Temp("v")
	fn.Body = []Instr{
		Load(dst, this, 4),
		Store(this, 4, dst),
		LoadI(dst, this, idx),
		StoreI(this, idx, dst),
		Return(nil),
	}
	prog.AddFunction(fn)
	prog.Entry = "g"

	got := NewPrinter().Print(prog)
	want := "; entry: g\n" +
		"\n" +
		"g(this):\n" +
		"    %v = *(@this + 4)\n" +
		"    *(@this + 4) = %v\n" +
		"    %v = *(@this + 4 + %i*4)\n" +
		"    *(@this + 4 + %i*4) = %v\n" +
		"    return\n"
	if got != want {
		t.Fatalf("Print() =\n%q\nwant\n%q", got, want)
	}
}

func TestPrintStringsAndCallForms(t *testing.T) {
	prog := NewProgram()
	prog.InternString("str_0", "hi")
	fn := &IRFunction{Name: "h"}
	dst := Temp("t0")
	fn.Body = []Instr{
		Call(&dst, "print", []Operand{ConstStr("str_0")}),
		Call(nil, "print", []Operand{dst}),
		Return(nil),
	}
	prog.AddFunction(fn)
	prog.Entry = "h"

	got := NewPrinter().Print(prog)
	want := "; .strings\n" +
		";   str_0 = \"hi\"\n" +
		"; entry: h\n" +
		"\n" +
		"h():\n" +
		"    %t0 = call print(&str_0)\n" +
		"    call print(%t0)\n" +
		"    return\n"
	if got != want {
		t.Fatalf("Print() =\n%q\nwant\n%q", got, want)
	}
}
