package x86

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
	if !strings.Contains(out, "    mov eax, 42\n") {
		t.Fatalf("expected the return value loaded into eax, got:\n%s", out)
	}
	if strings.Count(out, "    ret\n") != 1 {
		t.Fatalf("expected exactly one ret (no redundant trailing epilogue), got:\n%s", out)
	}
	if strings.Contains(out, "sub esp") {
		t.Fatalf("expected no stack frame for a function with no locals/temps, got:\n%s", out)
	}
}

func TestGenerateFunctionWithLocalEmitsSubEsp(t *testing.T) {
	x := ir.Local("x")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.Move(x, ir.ConstInt(5)),
		ir.Return(nil),
	}))
	if !strings.Contains(out, "    sub esp, 4\n") {
		t.Fatalf("expected a 4-byte frame for the single local, got:\n%s", out)
	}
	if !strings.Contains(out, "    mov eax, 5\n    mov [ebp-4], eax\n") {
		t.Fatalf("expected the local written at [ebp-4] via eax, got:\n%s", out)
	}
}

func TestGeneratePrintIntExpandsToPrintfWithFmtInt(t *testing.T) {
	dst := ir.Temp("t0")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.Call(&dst, "print", []ir.Operand{ir.ConstInt(7)}),
		ir.Return(nil),
	}))
	if !strings.Contains(out, "    push fmt_int\n") {
		t.Fatalf("expected print(int) to push fmt_int, got:\n%s", out)
	}
	if !strings.Contains(out, "    call printf\n") {
		t.Fatalf("expected a call to printf, got:\n%s", out)
	}
	if !strings.Contains(out, "    add esp, 8\n") {
		t.Fatalf("expected the caller to pop printf's two pushed arguments, got:\n%s", out)
	}
}

func TestGeneratePrintStringLiteralUsesFmtStrAndLabel(t *testing.T) {
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
	if !strings.Contains(out, "    push "+label+"\n") {
		t.Fatalf("expected the string label pushed directly, got:\n%s", out)
	}
	if !strings.Contains(out, "    push fmt_str\n") {
		t.Fatalf("expected print(string-literal) to push fmt_str, got:\n%s", out)
	}
	if !strings.Contains(out, label+" db 104, 105, 0\n") {
		t.Fatalf("expected the pooled string emitted as a byte list, got:\n%s", out)
	}
}

func TestGenerateUserFunctionCallPushesArgumentsRightToLeft(t *testing.T) {
	dst := ir.Temp("t0")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.Call(&dst, "helper", []ir.Operand{ir.ConstInt(1), ir.ConstInt(2)}),
		ir.Return(nil),
	}))
	want := "    mov eax, 2\n    push eax\n    mov eax, 1\n    push eax\n    call helper\n    add esp, 8\n"
	if !strings.Contains(out, want) {
		t.Fatalf("expected cdecl right-to-left push order for helper(1, 2), got:\n%s", out)
	}
}

func TestGenerateCJumpEmitsCompareAndConditionalJump(t *testing.T) {
	a := ir.Local("a")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.CJump("<", a, ir.ConstInt(0), "Lt", "Lf"),
		ir.Label("Lt"),
		ir.Return(nil),
		ir.Label("Lf"),
		ir.Return(nil),
	}))
	if !strings.Contains(out, "    cmp eax, ebx\n    jl Lt\n    jmp Lf\n") {
		t.Fatalf("expected a cmp/jl/jmp skeleton for CJump(<, a, 0, Lt, Lf), got:\n%s", out)
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
	if !strings.Contains(out, ".Lx86cmp_true_0:\n") || !strings.Contains(out, ".Lx86cmp_end_1:\n") {
		t.Fatalf("expected a local two-label boolean-materialization skeleton, got:\n%s", out)
	}
	if !strings.Contains(out, "    mov dword [ebp-12], 0\n") || !strings.Contains(out, "    mov dword [ebp-12], 1\n") {
		t.Fatalf("expected both the false (0) and true (1) stores to the destination slot, got:\n%s", out)
	}
}

func TestGenerateIndexedArrayAccessUsesScaleFour(t *testing.T) {
	arr := ir.Local("arr")
	idx := ir.Local("i")
	dst := ir.Temp("t0")
	out := mustGenerate(t, singleFunctionProgram("f", []ir.Instr{
		ir.LoadI(dst, arr, idx),
		ir.StoreI(arr, idx, ir.ConstInt(9)),
		ir.Return(nil),
	}))
	if !strings.Contains(out, "    mov eax, [eax+ebx*4+4]\n") {
		t.Fatalf("expected indexed load at base+4+idx*4, got:\n%s", out)
	}
	if !strings.Contains(out, "    mov [eax+ebx*4+4], ecx\n") {
		t.Fatalf("expected indexed store at base+4+idx*4, got:\n%s", out)
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
	if !strings.Contains(out, "    mov eax, [eax+4]\n") {
		t.Fatalf("expected a plain-offset field load, got:\n%s", out)
	}
	if !strings.Contains(out, "    mov [eax+4], ebx\n") {
		t.Fatalf("expected a plain-offset field store, got:\n%s", out)
	}
	if !strings.Contains(out, "[ebp+8]") {
		t.Fatalf("expected 'this' (parameter 0) addressed at [ebp+8], got:\n%s", out)
	}
}

func TestGenerateSyntheticMainWrapperWhenEntryIsNotMain(t *testing.T) {
	out := mustGenerate(t, singleFunctionProgram("start", []ir.Instr{ir.Return(nil)}))
	if !strings.Contains(out, "main:\n") {
		t.Fatalf("expected a synthesized main wrapper, got:\n%s", out)
	}
	if !strings.Contains(out, "    call start\n") {
		t.Fatalf("expected the wrapper to call the real entry function, got:\n%s", out)
	}
}

func TestGenerateDeclaresExternsAndGlobalEntry(t *testing.T) {
	out := mustGenerate(t, singleFunctionProgram("main", []ir.Instr{ir.Return(nil)}))
	for _, sym := range []string{"printf", "malloc", "__concat"} {
		if !strings.Contains(out, "extern "+sym+"\n") {
			t.Fatalf("expected extern %s declared, got:\n%s", sym, out)
		}
	}
	if !strings.Contains(out, "global main\n") {
		t.Fatalf("expected the entry function exported, got:\n%s", out)
	}
}
