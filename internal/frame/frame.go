// Package frame implements the shared Frame/ABI helper spec.md §4.4
// describes: a per-function activation record that assigns a 4-byte slot
// to every Local and Temp a function uses, plus the parameter-displacement
// formulas for the two target ABIs. Both internal/codegen/x86 and
// internal/codegen/mips build one Frame per IRFunction and consult it while
// emitting, so the slot-assignment policy lives in exactly one place.
//
// Grounded on the teacher's internal/compregister.RegisterAllocator
// (nextReg/freeRegs/locked, a free-list-backed monotonic counter): the same
// shape, repurposed to hand out 4-byte stack slots instead of machine
// registers. spec.md's "no register allocation, naive spill-everything
// codegen" Non-goal is satisfied more directly than the teacher's own
// model — a Frame slot is never freed and reused the way a register is, so
// there is no Free/Lock/Unlock here at all, only a monotonic counter.
package frame

// Frame assigns stack-slot indices to Local/Temp operand names in
// first-use order (spec.md §4.4: "frame capacity is grown lazily").
// Parameter displacement does not go through a Frame at all: it is a pure
// function of the parameter's declared index, computed by X86ParamOffset/
// MIPSParamOffset below.
type Frame struct {
	slotOf   map[string]int32
	order    []string
	nextSlot int32
}

// New returns an empty Frame.
func New() *Frame {
	return &Frame{slotOf: make(map[string]int32)}
}

// Slot returns name's slot index (0-based), assigning the next free index
// on first use and memoizing it for every later call.
func (f *Frame) Slot(name string) int32 {
	if idx, ok := f.slotOf[name]; ok {
		return idx
	}
	idx := f.nextSlot
	f.nextSlot++
	f.slotOf[name] = idx
	f.order = append(f.order, name)
	return idx
}

// Size is local_size(): the running byte count of every slot assigned so
// far. Already word-rounded since each slot is exactly 4 bytes.
func (f *Frame) Size() int32 {
	return f.nextSlot * 4
}

// Order returns the Local/Temp names in the order Slot first assigned them,
// used by a backend that wants to pre-declare every slot deterministically
// before emitting the body (e.g. to size a stack-map comment).
func (f *Frame) Order() []string {
	return f.order
}

// X86Offset returns the magnitude N of the x86 cdecl displacement
// `[ebp - N]` for a Local/Temp (spec.md §4.4).
func (f *Frame) X86Offset(name string) int32 {
	return (f.Slot(name) + 1) * 4
}

// MIPSOffset returns the magnitude N of the MIPS `-N($fp)` displacement for
// a Local/Temp (spec.md §4.4).
func (f *Frame) MIPSOffset(name string) int32 {
	return (f.Slot(name) + 1) * 4
}

// X86ParamOffset returns the displacement N of `[ebp + N]` for the k-th
// (0-based) formal parameter under x86 cdecl: the caller pushed arguments
// right-to-left, so parameter 0 sits just above the saved return address
// and saved ebp (spec.md §4.4: "parameter k at [ebp + 8 + 4k]").
func X86ParamOffset(k int) int32 {
	return 8 + 4*int32(k)
}

// MIPSParamOffset returns the signed displacement N of `N($fp)` for the
// k-th (0-based) formal parameter under the MIPS o32-ish convention this
// compiler uses: all arguments are stack-passed right-to-left (spec.md
// §4.4: "parameter k at ((4k) - 8)($fp)").
func MIPSParamOffset(k int) int32 {
	return 4*int32(k) - 8
}

// MIPSFrameSize returns S+8, the total prologue stack growth spec.md §4.4's
// MIPS prologue computes from the frame's local_size (S): space for locals
// and temps plus the two saved words ($ra, $fp).
func (f *Frame) MIPSFrameSize() int32 {
	return f.Size() + 8
}
