package x64

import (
	"fmt"

	"github.com/ngenio/ngen/encoding"
	"github.com/ngenio/ngen/internal/ngenlog"
	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/output"
)

// Encoder walks an already-lowered, already-laid-out Listing and
// emits its final x86-64 byte encoding into an output.Output, the
// shared sizing/emitting interface a LabelOutput or CodeOutput pass
// implements identically.
//
// Grounded on the teacher's direct byte emission in mov.go/add.go/
// sub.go/cmp.go/lea.go (REX/ModR/M/SIB computed inline per mnemonic),
// rebuilt here as one dispatch loop over encoding's descriptor tables
// instead of one function per mnemonic file, since every group-1/
// group-2 opcode shares the same prefix/ModR/M/SIB machinery.
type Encoder struct {
	layout *Layout
}

// NewEncoder creates an encoder resolving Variable operands against
// layout's frame offsets.
func NewEncoder(layout *Layout) *Encoder {
	return &Encoder{layout: layout}
}

// Encode emits every instruction of listing, in order, marking each
// instruction's labels before encoding it.
func (e *Encoder) Encode(listing *ir.Listing, out output.Output) error {
	ngenlog.Default.Tracef("x64: encoding %d instructions", listing.Count())
	for i := 0; i < listing.Count(); i++ {
		for _, lb := range listing.Labels(i) {
			out.Mark(lb)
		}
		if err := e.encodeOne(listing.At(i), out); err != nil {
			return fmt.Errorf("x64: instruction %d: %w", i, err)
		}
	}
	return nil
}

func (e *Encoder) resolve(op ir.Operand) ir.Operand {
	if op.Kind() != ir.KindVariable {
		return op
	}
	off := e.layout.OffsetOf(op.Variable())
	off = off.Add(op.Offset())
	return ir.Relative(ir.PtrFrame, off, op.Size())
}

func (e *Encoder) encodeOne(instr ir.Instr, out output.Output) error {
	dest := e.resolve(instr.Dest)
	src := e.resolve(instr.Src)

	switch instr.Op {
	case ir.OpMov:
		return e.encodeMov(dest, src, out)
	case ir.OpAdd, ir.OpAdc, ir.OpSub, ir.OpSbb, ir.OpBAnd, ir.OpBOr, ir.OpBXor:
		return e.encodeArith(instr.Op, dest, src, out)
	case ir.OpShl, ir.OpShr, ir.OpSar:
		return e.encodeShift(instr.Op, dest, src, out)
	case ir.OpLea:
		return e.encodeLea(dest, src, out)
	case ir.OpPush:
		return e.encodePush(src, out)
	case ir.OpPop:
		return e.encodePop(dest, out)
	case ir.OpRet:
		out.PutByte(0xC3)
		return nil
	case ir.OpJmp:
		return e.encodeJmp(instr.Cond, src, out)
	case ir.OpCall:
		return e.encodeCall(src, out)
	case ir.OpSetCond:
		return e.encodeSetCond(instr.Cond, dest, out)
	case ir.OpMul, ir.OpIDiv, ir.OpUDiv:
		return e.encodeGroup3(instr.Op, src, out)
	case ir.OpFwait:
		out.PutByte(0x9B)
		return nil
	case ir.OpNone, ir.OpLocation, ir.OpPreserve, ir.OpBeginBlock, ir.OpEndBlock:
		return nil
	default:
		return fmt.Errorf("x64: opcode %s has no encoding (expected invalid-instruction lowering to remove it)", instr.Op)
	}
}

// wide64 reports whether op's operand size requires REX.W: every
// 8-byte operand (long or pointer) does; 4-byte and byte operands
// never do.
func wide64(sz ir.Size) bool { return sz.Size64 == 8 }

// emitModRM writes the REX prefix (if needed), opcode bytes and
// ModR/M(+SIB+disp) for a `reg, rm` or `rm, reg` pair where rm is
// either a register or a Relative memory operand. regField is the
// register occupying ModR/M.reg (for a reg/reg or reg/mem form); for
// the group-1/group-2 immediate forms it is instead the opcode's Ext
// digit, not a real register.
func emitModRM(out output.Output, rexW bool, regField byte, regExt bool, rm ir.Operand, opcodeBytes ...byte) {
	if rm.Kind() == ir.KindRegister {
		rmLow3, rmExt := encodingIndex(rm.Reg())
		if encoding.NeedsREX(rexW, regExt, false, rmExt) {
			out.PutByte(encoding.REX(rexW, regExt, false, rmExt))
		}
		for _, b := range opcodeBytes {
			out.PutByte(b)
		}
		out.PutByte(encoding.ModRM(encoding.ModRegister, regField, rmLow3))
		return
	}

	// Relative(base, offset): memory operand.
	base := rm.Reg()
	baseLow3, baseExt := encodingIndex(base)
	disp := rm.Offset().O64
	mod := encoding.DispSizeFor(int32(disp))
	needsSIB := baseLow3 == encoding.RMNeedsSIB

	if encoding.NeedsREX(rexW, regExt, false, baseExt) {
		out.PutByte(encoding.REX(rexW, regExt, false, baseExt))
	}
	for _, b := range opcodeBytes {
		out.PutByte(b)
	}
	rmField := baseLow3
	out.PutByte(encoding.ModRM(mod, regField, rmField))
	if needsSIB {
		out.PutByte(encoding.SIB(encoding.ScaleBits(1), encoding.SIBNoIndex, baseLow3))
	}
	switch mod {
	case encoding.ModIndirectDisp8:
		out.PutByte(byte(int8(disp)))
	case encoding.ModIndirectDisp32:
		out.PutInt(uint32(int32(disp)))
	}
}

func (e *Encoder) encodeMov(dest, src ir.Operand, out output.Output) error {
	rexW := wide64(dest.Size())
	switch {
	case src.Kind() == ir.KindConstant && dest.Kind() == ir.KindRegister:
		low3, ext := encodingIndex(dest.Reg())
		if encoding.NeedsREX(rexW, false, false, ext) {
			out.PutByte(encoding.REX(rexW, false, false, ext))
		}
		if rexW {
			out.PutByte(0xB8 + low3)
			out.PutLong(uint64(src.Word()))
		} else {
			out.PutByte(0xB8 + low3)
			out.PutInt(uint32(src.Word()))
		}
		return nil

	case src.Kind() == ir.KindConstant:
		// mov r/m, imm32 (0xC7 /0).
		emitModRM(out, rexW, 0, false, dest, 0xC7)
		out.PutInt(uint32(src.Word()))
		return nil

	case dest.Kind() == ir.KindRegister && src.IsMemory():
		// mov r, r/m (0x8B).
		regLow3, regExt := encodingIndex(dest.Reg())
		emitModRM(out, rexW, regLow3, regExt, src, 0x8B)
		return nil

	case dest.IsMemory() && src.Kind() == ir.KindRegister:
		// mov r/m, r (0x89).
		regLow3, regExt := encodingIndex(src.Reg())
		emitModRM(out, rexW, regLow3, regExt, dest, 0x89)
		return nil

	case dest.Kind() == ir.KindRegister && src.Kind() == ir.KindRegister:
		regLow3, regExt := encodingIndex(src.Reg())
		emitModRM(out, rexW, regLow3, regExt, dest, 0x89)
		return nil
	}
	return fmt.Errorf("x64: mov %s, %s has no direct encoding (two memory operands need prior lowering)", dest, src)
}

func (e *Encoder) encodeArith(op ir.Opcode, dest, src ir.Operand, out output.Output) error {
	d, ok := encoding.ArithDescriptorFor(op)
	if !ok {
		return fmt.Errorf("x64: %s has no group-1 descriptor", op)
	}
	rexW := wide64(dest.Size())

	switch {
	case src.Kind() == ir.KindConstant:
		if src.FitsIn32() && src.Word() >= -128 && src.Word() <= 127 {
			emitModRM(out, rexW, d.Ext, false, dest, d.Imm8)
			out.PutByte(byte(int8(src.Word())))
			return nil
		}
		emitModRM(out, rexW, d.Ext, false, dest, d.Imm32)
		out.PutInt(uint32(src.Word()))
		return nil

	case dest.Kind() == ir.KindRegister && src.IsMemory():
		regLow3, regExt := encodingIndex(dest.Reg())
		emitModRM(out, rexW, regLow3, regExt, src, encoding.WideOpcode(d.RMReg))
		return nil

	case dest.IsMemory() && src.Kind() == ir.KindRegister:
		regLow3, regExt := encodingIndex(src.Reg())
		emitModRM(out, rexW, regLow3, regExt, dest, encoding.WideOpcode(d.RegRM))
		return nil

	case dest.Kind() == ir.KindRegister && src.Kind() == ir.KindRegister:
		regLow3, regExt := encodingIndex(src.Reg())
		emitModRM(out, rexW, regLow3, regExt, dest, encoding.WideOpcode(d.RegRM))
		return nil
	}
	return fmt.Errorf("x64: %s %s, %s has no direct encoding (two memory operands need prior lowering)", op, dest, src)
}

func (e *Encoder) encodeShift(op ir.Opcode, dest, src ir.Operand, out output.Output) error {
	d, ok := encoding.ShiftDescriptorFor(op)
	if !ok {
		return fmt.Errorf("x64: %s has no group-2 descriptor", op)
	}
	rexW := wide64(dest.Size())
	if src.Kind() == ir.KindConstant {
		emitModRM(out, rexW, d.Ext, false, dest, encoding.WideOpcode(d.ByImm8))
		out.PutByte(byte(src.Word()))
		return nil
	}
	if src.Kind() == ir.KindRegister && ir.Same(src.Reg(), ir.PtrC) {
		emitModRM(out, rexW, d.Ext, false, dest, encoding.WideOpcode(d.ByCL))
		return nil
	}
	return fmt.Errorf("x64: shift count must be an immediate or cl by the time it reaches the encoder")
}

func (e *Encoder) encodeLea(dest, src ir.Operand, out output.Output) error {
	if dest.Kind() != ir.KindRegister || !src.IsMemory() {
		return fmt.Errorf("x64: lea requires a register destination and a memory source")
	}
	regLow3, regExt := encodingIndex(dest.Reg())
	emitModRM(out, true, regLow3, regExt, src, 0x8D)
	return nil
}

func (e *Encoder) encodePush(src ir.Operand, out output.Output) error {
	if src.Kind() != ir.KindRegister {
		return fmt.Errorf("x64: push requires a register operand by encode time")
	}
	low3, ext := encodingIndex(src.Reg())
	if ext {
		out.PutByte(encoding.REX(false, false, false, true))
	}
	out.PutByte(0x50 + low3)
	return nil
}

func (e *Encoder) encodePop(dest ir.Operand, out output.Output) error {
	if dest.Kind() != ir.KindRegister {
		return fmt.Errorf("x64: pop requires a register operand by encode time")
	}
	low3, ext := encodingIndex(dest.Reg())
	if ext {
		out.PutByte(encoding.REX(false, false, false, true))
	}
	out.PutByte(0x58 + low3)
	return nil
}

func (e *Encoder) encodeJmp(cond ir.CondFlag, target ir.Operand, out output.Output) error {
	if target.Kind() != ir.KindLabel {
		return fmt.Errorf("x64: jmp to a non-label target needs prior lowering to a reference call")
	}
	if cond == ir.CondAlways {
		out.PutByte(0xE9)
	} else {
		b0, b1 := encoding.JccNear(cond)
		out.PutByte(b0)
		out.PutByte(b1)
	}
	out.PutRelative(target.Label())
	return nil
}

func (e *Encoder) encodeCall(target ir.Operand, out output.Output) error {
	if target.Kind() != ir.KindLabel {
		return fmt.Errorf("x64: call to a non-label target needs prior lowering to a reference call")
	}
	out.PutByte(0xE8)
	out.PutRelative(target.Label())
	return nil
}

func (e *Encoder) encodeSetCond(cond ir.CondFlag, dest ir.Operand, out output.Output) error {
	if dest.Kind() != ir.KindRegister {
		return fmt.Errorf("x64: setcc requires a register destination")
	}
	low3, ext := encodingIndex(dest.Reg())
	b0, b1 := encoding.SetCC(cond)
	if ext {
		out.PutByte(encoding.REX(false, false, false, true))
	}
	out.PutByte(b0)
	out.PutByte(b1)
	out.PutByte(encoding.ModRM(encoding.ModRegister, 0, low3))
	return nil
}

// encodeGroup3 emits mul/idiv/udiv as the unary group-3 opcode 0xF7,
// operating implicitly on rax:rdx per the ABI's mul/div-to-rax
// lowering rule; src is the single rm operand (the divisor/multiplier).
func (e *Encoder) encodeGroup3(op ir.Opcode, src ir.Operand, out output.Output) error {
	ext := byte(4) // mul
	switch op {
	case ir.OpIDiv:
		ext = 7
	case ir.OpUDiv:
		ext = 6
	}
	rexW := wide64(src.Size())
	emitModRM(out, rexW, ext, false, src, 0xF7)
	return nil
}
