package x86

import (
	"github.com/ngenio/ngen/eh"
	"github.com/ngenio/ngen/ir"
)

// ebp is the frame pointer at 32-bit width.
var ebp = ir.AsSize(ir.PtrFrame, ir.WidthInt)

// Prolog is x64/frame.go's Prolog narrowed to 32 bits: save ebp,
// allocate the frame, zero the EH partId/owner words if used, spill
// callee-saved registers, zero every root-block local.
//
// Grounded on spec's numbered prolog sequence (§4.7), same as x64's.
func Prolog(listing *ir.Listing, layout *Layout, rootVars []ir.Variable) []ir.Instr {
	var instrs []ir.Instr
	push := func(i ir.Instr) { instrs = append(instrs, i) }

	push(ir.MustInstr(ir.OpPush, ir.None, ir.Register(ebp, ir.SInt)))
	push(ir.MustInstr(ir.OpMov, ir.Register(ebp, ir.SInt), ir.Register(ir.PtrStack, ir.SInt)))

	frameSize := layout.Total(false)
	if frameSize > 0 {
		push(ir.MustInstr(ir.OpSub, ir.Register(ir.PtrStack, ir.SInt), ir.Constant(ir.SInt, int64(frameSize))))
	}

	if layout.HasEHSlot() {
		push(ir.MustInstr(ir.OpMov,
			ir.Relative(ir.PtrFrame, layout.EHSlot(), ir.SInt),
			ir.Constant(ir.SInt, 0)))
		push(ir.MustInstr(ir.OpMov,
			ir.Relative(ir.PtrFrame, layout.EHOwnerSlot(), ir.SInt),
			ir.Constant(ir.SInt, 0)))
	}

	for _, r := range layout.SavedRegs() {
		slot := layout.SavedSlot(r)
		push(ir.MustInstr(ir.OpMov,
			ir.Relative(ir.PtrFrame, slot, ir.SInt),
			ir.Register(r, ir.SInt)))
	}

	if len(rootVars) > 0 {
		push(ir.MustInstr(ir.OpBXor, ir.Register(ir.Eax, ir.SInt), ir.Register(ir.Eax, ir.SInt)))
		for _, v := range rootVars {
			sz := listing.VarSize(v)
			off := layout.OffsetOf(v)
			zeroVar(&instrs, v, off, sz)
		}
	}

	return instrs
}

func zeroVar(instrs *[]ir.Instr, _ ir.Variable, off ir.Offset, sz ir.Size) {
	remaining := int64(sz.Size32)
	pos := int64(0)
	for remaining > 0 {
		var chunk int64
		var width ir.Size
		switch {
		case remaining >= 4:
			chunk, width = 4, ir.SInt
		default:
			chunk, width = 1, ir.SByte
		}
		dst := ir.Relative(ir.PtrFrame, ir.Offset{O32: off.O32 + int32(pos)}, width)
		*instrs = append(*instrs, ir.MustInstr(ir.OpMov, dst, ir.Register(ir.AsSize(ir.Eax, widthOf(width)), width)))
		pos += chunk
		remaining -= chunk
	}
}

func widthOf(sz ir.Size) ir.Width {
	if sz.Size32 == 1 {
		return ir.WidthByte
	}
	return ir.WidthInt
}

// Epilog restores every spilled callee-saved register, tears down the
// frame and returns.
func Epilog(layout *Layout) []ir.Instr {
	var instrs []ir.Instr
	regs := layout.SavedRegs()
	for i := len(regs) - 1; i >= 0; i-- {
		r := regs[i]
		slot := layout.SavedSlot(r)
		instrs = append(instrs, ir.MustInstr(ir.OpMov,
			ir.Register(r, ir.SInt),
			ir.Relative(ir.PtrFrame, slot, ir.SInt)))
	}
	instrs = append(instrs,
		ir.MustInstr(ir.OpMov, ir.Register(ir.PtrStack, ir.SInt), ir.Register(ebp, ir.SInt)),
		ir.MustInstr(ir.OpPop, ir.Register(ebp, ir.SInt), ir.None),
		ir.MustInstr(ir.OpRet, ir.None, ir.None),
	)
	return instrs
}

// CFIProgram builds the .eh_frame CFI program for this backend's fixed
// push-ebp/mov-ebp,esp prolog shape, the 32-bit analogue of
// x64/frame.go's CFIProgram.
func CFIProgram(layout *Layout, pushEbpEnd, movEbpEnd uint32) []byte {
	var buf []byte
	buf = eh.AdvanceLoc(buf, pushEbpEnd)
	buf = eh.DefCFAOffset(buf, 8)
	buf = eh.Offset(buf, uint8(dwarfRegNum(ebp)), 2)
	buf = eh.AdvanceLoc(buf, movEbpEnd-pushEbpEnd)
	buf = eh.DefCFARegister(buf, dwarfRegNum(ebp))
	return buf
}

// dwarfRegNum maps a GPR to its DWARF register number (i386 ABI
// numbering: eax,ecx,edx,ebx,esp,ebp,esi,edi).
func dwarfRegNum(r ir.Reg) uint64 {
	order := []ir.Reg{
		ir.Eax, ir.Ecx, ir.Edx, ir.Ebx, ir.AsSize(ir.PtrStack, ir.WidthInt), ebp, ir.Esi, ir.Edi,
	}
	for i, gp := range order {
		if ir.Same(gp, r) {
			return uint64(i)
		}
	}
	panic("x86: register has no DWARF number")
}
