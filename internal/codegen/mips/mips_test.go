package mips

import (
	"strings"
	"testing"

	"compiscript/internal/ir"
)

func mustGenerate(t *testing.T, prog *ir.IRProgram) string {
	t.Helper()
	out, err := Generate(prog)
	if err != nil {
		t.Fatalf("Generate returned an error: %v", err)
	}
	return out
}

func singleFunctionProgram(name string, body []ir.Instr, params ...string) *ir.IRProgram {
	prog := ir.NewProgram()
	prog.AddFunction(&ir.IRFunction{Name: name, Params: params, Body: body})
	prog.Entry = name
	return prog
}

func TestGenerateSimpleFunctionReturnsConstant(t *testing.T) {
	v := ir.ConstInt(42)
	out := mustGenerate(t, singleFunctionProgram("main", []ir.Instr{ir.Return(&v)}))
	if !strings.Contains(out, "main:\n") {
		t.Fatalf("expected a function label, got:\n%s", out)
	}
	if !strings.Contains(out, "    li $v0, 42\n") {
		t.Fatalf("expected the return value loaded into $v0, got:\n%s", out)
	}
	// One jr $ra for main plus one for the __concat routine emitted in
	// every program.
	if strings.Count(out, "    jr $ra\n") != 2 {
		t.Fatalf("expected exactly two jr $ra (main and __concat, no redundant trailing epilogue), got:\n%s", out)
	}
	if !strings.Contains(out, "    addiu $sp, $sp, -8\n") {
		t.Fatalf("expected an 8-byte frame (S=0, S+8=8) for a function with no locals/temps, got:\n%s", out)
	}
}

func TestGenerateFunctionWithLocalSizesFrameForOneSlot(t *testing.T) {
	x := ir.Local("x")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.Move(x, ir.ConstInt(5)),
		ir.Return(nil),
	}))
	if !strings.Contains(out, "    addiu $sp, $sp, -12\n") {
		t.Fatalf("expected a 12-byte frame (S=4, S+8=12) for the single local, got:\n%s", out)
	}
	if !strings.Contains(out, "    li $t0, 5\n    sw $t0, -4($fp)\n") {
		t.Fatalf("expected the local written at -4($fp) via $t0, got:\n%s", out)
	}
}

func TestGeneratePrintIntUsesSyscallOneThenNewline(t *testing.T) {
	dst := ir.Temp("t0")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.Call(&dst, "print", []ir.Operand{ir.ConstInt(7)}),
		ir.Return(nil),
	}))
	if !strings.Contains(out, "    li $a0, 7\n    li $v0, 1\n    syscall\n") {
		t.Fatalf("expected print(int) to load the value into $a0 and invoke syscall 1, got:\n%s", out)
	}
	if !strings.Contains(out, "    li $a0, 10\n    li $v0, 11\n    syscall\n") {
		t.Fatalf("expected a trailing newline print via syscall 11, got:\n%s", out)
	}
}

func TestGeneratePrintStringLiteralUsesSyscallFourAndLabel(t *testing.T) {
	prog := ir.NewProgram()
	label := prog.InternString("str_0", "hi")
	prog.AddFunction(&ir.IRFunction{
		Name: "f",
		Body: []ir.Instr{
			ir.Call(nil, "print", []ir.Operand{ir.ConstStr(label)}),
			ir.Return(nil),
		},
	})
	prog.Entry = "f"
	out := mustGenerate(t, prog)
	if !strings.Contains(out, "    la $a0, "+label+"\n    li $v0, 4\n    syscall\n") {
		t.Fatalf("expected print(string-literal) to load the label's address and invoke syscall 4, got:\n%s", out)
	}
	if !strings.Contains(out, label+": .byte 104, 105, 0\n") {
		t.Fatalf("expected the pooled string emitted as a .byte list, got:\n%s", out)
	}
}

func TestGenerateMallocUsesSbrkSyscall(t *testing.T) {
	dst := ir.Temp("t0")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.Call(&dst, "malloc", []ir.Operand{ir.ConstInt(16)}),
		ir.Return(nil),
	}))
	if !strings.Contains(out, "    li $a0, 16\n    li $v0, 9\n    syscall\n") {
		t.Fatalf("expected malloc(16) to load the size into $a0 and invoke syscall 9 (sbrk), got:\n%s", out)
	}
}

func TestGenerateUserFunctionCallPushesArgumentsRightToLeft(t *testing.T) {
	dst := ir.Temp("t0")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.Call(&dst, "helper", []ir.Operand{ir.ConstInt(1), ir.ConstInt(2)}),
		ir.Return(nil),
	}))
	want := "    li $t0, 2\n    addiu $sp, $sp, -4\n    sw $t0, 0($sp)\n" +
		"    li $t0, 1\n    addiu $sp, $sp, -4\n    sw $t0, 0($sp)\n" +
		"    jal helper\n    nop\n    addiu $sp, $sp, 8\n"
	if !strings.Contains(out, want) {
		t.Fatalf("expected right-to-left stack-passed arguments for helper(1, 2), got:\n%s", out)
	}
}

func TestGenerateCJumpEmitsBranchWithDelaySlotsAndFallthroughJump(t *testing.T) {
	a := ir.Local("a")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.CJump("<", a, ir.ConstInt(0), "Lt", "Lf"),
		ir.Label("Lt"),
		ir.Return(nil),
		ir.Label("Lf"),
		ir.Return(nil),
	}))
	want := "    blt $t0, $t1, Lt\n    nop\n    j Lf\n    nop\n"
	if !strings.Contains(out, want) {
		t.Fatalf("expected a blt/nop/j/nop skeleton for CJump(<, a, 0, Lt, Lf), got:\n%s", out)
	}
}

func TestGenerateJumpEmitsDelaySlotNop(t *testing.T) {
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.Jump("Lend"),
		ir.Label("Lend"),
		ir.Return(nil),
	}))
	if !strings.Contains(out, "    j Lend\n    nop\n") {
		t.Fatalf("expected an unconditional jump followed by a delay-slot nop, got:\n%s", out)
	}
}

func TestGenerateCmpMaterializesBooleanViaTwoLabelSkeleton(t *testing.T) {
	a := ir.Local("a")
	b := ir.Local("b")
	dst := ir.Temp("t0")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.Cmp("==", dst, a, b),
		ir.Return(nil),
	}))
	if !strings.Contains(out, "    beq $t0, $t1, ") {
		t.Fatalf("expected a beq branch to the true label, got:\n%s", out)
	}
	// a -> slot 0 (-4), b -> slot 1 (-8), dst -> slot 2 (-12), matching
	// allocation order (a and b loaded first, dst stored last).
	if !strings.Contains(out, "    sw $zero, -12($fp)\n") {
		t.Fatalf("expected the false branch to store $zero to the destination slot, got:\n%s", out)
	}
	if !strings.Contains(out, "    li $t0, 1\n    sw $t0, -12($fp)\n") {
		t.Fatalf("expected the true branch to store 1 to the destination slot, got:\n%s", out)
	}
}

func TestGenerateDivisionUsesMfloAndMfhi(t *testing.T) {
	a := ir.Local("a")
	b := ir.Local("b")
	q := ir.Temp("t0")
	r := ir.Temp("t1")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.BinOp("/", q, a, b),
		ir.BinOp("%", r, a, b),
		ir.Return(nil),
	}))
	if !strings.Contains(out, "    div $t0, $t1\n    mflo $t0\n") {
		t.Fatalf("expected / to take the quotient via mflo, got:\n%s", out)
	}
	if !strings.Contains(out, "    div $t0, $t1\n    mfhi $t0\n") {
		t.Fatalf("expected %% to take the remainder via mfhi, got:\n%s", out)
	}
}

func TestGenerateIndexedArrayAccessScalesIndexByFour(t *testing.T) {
	arr := ir.Local("arr")
	idx := ir.Local("i")
	dst := ir.Temp("t0")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.LoadI(dst, arr, idx),
		ir.StoreI(arr, idx, ir.ConstInt(9)),
		ir.Return(nil),
	}))
	if !strings.Contains(out, "    sll $t1, $t1, 2\n    add $t1, $t1, $t0\n    lw $t0, 4($t1)\n") {
		t.Fatalf("expected an indexed load at base+4+idx*4, got:\n%s", out)
	}
	if !strings.Contains(out, "    sll $t1, $t1, 2\n    add $t1, $t1, $t0\n    sw $t2, 4($t1)\n") {
		t.Fatalf("expected an indexed store at base+4+idx*4, got:\n%s", out)
	}
}

func TestGenerateObjectFieldAccessUsesPlainOffset(t *testing.T) {
	this := ir.Param("this")
	dst := ir.Temp("t0")
	out := mustGenerate(t, func() *ir.IRProgram {
		prog := ir.NewProgram()
		prog.AddFunction(&ir.IRFunction{
			Name:   "A__get",
			Params: []string{"this"},
			Body: []ir.Instr{
				ir.Load(dst, this, 4),
				ir.Store(this, 4, ir.ConstInt(1)),
				ir.Return(nil),
			},
		})
		prog.Entry = "A__get"
		return prog
	}())
	if !strings.Contains(out, "    lw $t0, 4($t0)\n") {
		t.Fatalf("expected a plain-offset field load, got:\n%s", out)
	}
	if !strings.Contains(out, "    sw $t1, 4($t0)\n") {
		t.Fatalf("expected a plain-offset field store, got:\n%s", out)
	}
	if !strings.Contains(out, "-8($fp)") {
		t.Fatalf("expected 'this' (parameter 0) addressed at -8($fp), got:\n%s", out)
	}
}

func TestGenerateSyntheticMainWrapperWhenEntryIsNotMain(t *testing.T) {
	out := mustGenerate(t, singleFunctionProgram("start", []ir.Instr{ir.Return(nil)}))
	if !strings.Contains(out, "main:\n    jal start\n    nop\n    li $v0, 10\n    syscall\n") {
		t.Fatalf("expected a synthesized main wrapper that jals the real entry and exits via syscall 10, got:\n%s", out)
	}
	if !strings.Contains(out, ".globl main\n") {
		t.Fatalf("expected main declared global, got:\n%s", out)
	}
}

func TestGenerateDeclaresGlobalEntry(t *testing.T) {
	out := mustGenerate(t, singleFunctionProgram("main", []ir.Instr{ir.Return(nil)}))
	if !strings.Contains(out, ".globl main\n") {
		t.Fatalf("expected the entry function exported, got:\n%s", out)
	}
}

func TestGenerateEmitsConcatRoutineOnce(t *testing.T) {
	out := mustGenerate(t, singleFunctionProgram("main", []ir.Instr{ir.Return(nil)}))
	if strings.Count(out, "__concat:\n") != 1 {
		t.Fatalf("expected the __concat runtime routine emitted exactly once, got:\n%s", out)
	}
	if !strings.Contains(out, "    li $v0, 9\n    syscall\n") {
		t.Fatalf("expected __concat to allocate its buffer via sbrk, got:\n%s", out)
	}
	if !strings.Contains(out, "    sb $zero, 0($t7)\n") {
		t.Fatalf("expected __concat to write a terminating NUL, got:\n%s", out)
	}
}

func TestGenerateConcatCallGoesThroughGenericJalConvention(t *testing.T) {
	dst := ir.Temp("t0")
	prog := ir.NewProgram()
	a := prog.InternString("str_0", "ab")
	b := prog.InternString("str_1", "cd")
	prog.AddFunction(&ir.IRFunction{
		Name: "f",
		Body: []ir.Instr{
			ir.Call(&dst, "__concat", []ir.Operand{ir.ConstStr(a), ir.ConstStr(b)}),
			ir.Return(nil),
		},
	})
	prog.Entry = "f"
	out := mustGenerate(t, prog)
	if !strings.Contains(out, "    jal __concat\n    nop\n    addiu $sp, $sp, 8\n") {
		t.Fatalf("expected __concat called via the generic jal convention, got:\n%s", out)
	}
}
