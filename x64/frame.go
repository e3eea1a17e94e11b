package x64

import (
	"github.com/ngenio/ngen/eh"
	"github.com/ngenio/ngen/ir"
)

// rbp is the frame pointer at 64-bit width; ir only exports the
// width-neutral ir.PtrFrame slot, so backends size it themselves the
// way they size ir.PtrA into ir.Rax.
var rbp = ir.AsSize(ir.PtrFrame, ir.WidthLong)

// Prolog expands the pseudo-`prolog` instruction into its concrete
// x86-64 sequence: save the frame pointer, allocate the frame, write
// the EH partId/owner words if the function uses exception handling,
// spill callee-saved registers to their layout-assigned slots, and
// zero every root-block local, taking the locals from the highest
// address down, for locality.
//
// Grounded on spec's numbered prolog sequence (§4.7); the
// push-then-mov-then-sub shape mirrors the standard frame-pointer
// prolog the teacher's own generated functions use (visible in
// codegen.go's function entry emission), generalized here from "the
// one fixed Vibe67 calling convention" to any layout this backend
// computes.
func Prolog(listing *ir.Listing, layout *Layout, rootVars []ir.Variable) []ir.Instr {
	var instrs []ir.Instr
	push := func(i ir.Instr) { instrs = append(instrs, i) }

	push(ir.MustInstr(ir.OpPush, ir.None, ir.Register(rbp, ir.SPtr)))
	push(ir.MustInstr(ir.OpMov, ir.Register(rbp, ir.SPtr), ir.Register(ir.PtrStack, ir.SPtr)))

	frameSize := layout.Total(true)
	if frameSize > 0 {
		push(ir.MustInstr(ir.OpSub, ir.Register(ir.PtrStack, ir.SPtr), ir.Constant(ir.SPtr, int64(frameSize))))
	}

	if layout.HasEHSlot() {
		push(ir.MustInstr(ir.OpMov,
			ir.Relative(ir.PtrFrame, layout.EHSlot(), ir.SLong),
			ir.Constant(ir.SLong, 0)))
		push(ir.MustInstr(ir.OpMov,
			ir.Relative(ir.PtrFrame, layout.EHOwnerSlot(), ir.SLong),
			ir.Constant(ir.SLong, 0)))
	}

	for _, r := range layout.SavedRegs() {
		slot := layout.SavedSlot(r)
		push(ir.MustInstr(ir.OpMov,
			ir.Relative(ir.PtrFrame, slot, ir.SLong),
			ir.Register(r, ir.SLong)))
	}

	if len(rootVars) > 0 {
		push(ir.MustInstr(ir.OpBXor, ir.Register(ir.Rax, ir.SLong), ir.Register(ir.Rax, ir.SLong)))
		for _, v := range rootVars {
			sz := listing.VarSize(v)
			off := layout.OffsetOf(v)
			zeroVar(&instrs, v, off, sz)
		}
	}

	return instrs
}

func zeroVar(instrs *[]ir.Instr, _ ir.Variable, off ir.Offset, sz ir.Size) {
	remaining := int64(sz.Size64)
	pos := int64(0)
	for remaining > 0 {
		var chunk int64
		var width ir.Size
		switch {
		case remaining >= 8:
			chunk, width = 8, ir.SLong
		case remaining >= 4:
			chunk, width = 4, ir.SInt
		default:
			chunk, width = 1, ir.SByte
		}
		dst := ir.Relative(ir.PtrFrame, ir.Offset{O64: off.O64 + pos}, width)
		*instrs = append(*instrs, ir.MustInstr(ir.OpMov, dst, ir.Register(ir.AsSize(ir.Rax, widthOf(width)), width)))
		pos += chunk
		remaining -= chunk
	}
}

func widthOf(sz ir.Size) ir.Width {
	switch sz.Size64 {
	case 8:
		return ir.WidthLong
	case 1:
		return ir.WidthByte
	default:
		return ir.WidthInt
	}
}

// Epilog expands the pseudo-`epilog` instruction: restore every
// callee-saved register this layout spilled, tear down the frame and
// return. Destructor calls for live parts are emitted by the block-
// exit lowering before Epilog runs, per spec's "destroys all
// currently-live parts in order" rule.
func Epilog(layout *Layout) []ir.Instr {
	var instrs []ir.Instr
	regs := layout.SavedRegs()
	for i := len(regs) - 1; i >= 0; i-- {
		r := regs[i]
		slot := layout.SavedSlot(r)
		instrs = append(instrs, ir.MustInstr(ir.OpMov,
			ir.Register(r, ir.SLong),
			ir.Relative(ir.PtrFrame, slot, ir.SLong)))
	}
	instrs = append(instrs,
		ir.MustInstr(ir.OpMov, ir.Register(ir.PtrStack, ir.SPtr), ir.Register(rbp, ir.SPtr)),
		ir.MustInstr(ir.OpPop, ir.Register(rbp, ir.SPtr), ir.None),
		ir.MustInstr(ir.OpRet, ir.None, ir.None),
	)
	return instrs
}

// CFIProgram builds the DW_CFA instruction stream an FDE needs to
// unwind through this function's prolog, per spec §6's fixed opcode
// set (def_cfa_offset, offset reg,n, def_cfa_register, advance_loc*).
// pushRbpEnd and movRbpEnd give the byte offsets (within the function)
// at which the `push rbp` and `mov rbp, rsp` steps end, as measured by
// a prior LabelOutput pass over the same instructions Prolog produced.
func CFIProgram(layout *Layout, pushRbpEnd, movRbpEnd uint32) []byte {
	var buf []byte
	buf = eh.AdvanceLoc(buf, pushRbpEnd)
	buf = eh.DefCFAOffset(buf, 16)
	buf = eh.Offset(buf, uint8(dwarfRegNum(rbp)), 2)
	buf = eh.AdvanceLoc(buf, movRbpEnd-pushRbpEnd)
	buf = eh.DefCFARegister(buf, dwarfRegNum(rbp))
	return buf
}

// dwarfRegNum maps a GPR to its DWARF register number (SysV x86-64
// ABI, Figure 3.36), the numbering .eh_frame's offset/def_cfa
// opcodes use instead of the ModR/M encoding order.
func dwarfRegNum(r ir.Reg) uint64 {
	order := []ir.Reg{
		ir.Rax, ir.Rdx, ir.Rcx, ir.Rbx, ir.Rsi, ir.Rdi, rbp, ir.PtrStack,
		ir.R8, ir.R9, ir.R10, ir.R11, ir.R12, ir.R13, ir.R14, ir.R15,
	}
	for i, gp := range order {
		if ir.Same(gp, r) {
			return uint64(i)
		}
	}
	panic("x64: register has no DWARF number")
}
