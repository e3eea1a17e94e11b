package x86

import (
	"fmt"

	"github.com/ngenio/ngen/encoding"
	"github.com/ngenio/ngen/internal/ngenlog"
	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/output"
)

// Encoder is x64/encoder.go's Encoder narrowed to 32 bits: the same
// one-dispatch-loop-over-descriptor-tables shape, minus every REX
// computation x86-32 has no byte for.
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
	ngenlog.Default.Tracef("x86: encoding %d instructions", listing.Count())
	for i := 0; i < listing.Count(); i++ {
		for _, lb := range listing.Labels(i) {
			out.Mark(lb)
		}
		if err := e.encodeOne(listing.At(i), out); err != nil {
			return fmt.Errorf("x86: instruction %d: %w", i, err)
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
		return fmt.Errorf("x86: opcode %s has no encoding (expected invalid-instruction lowering to remove it)", instr.Op)
	}
}

// emitModRM writes the opcode bytes and ModR/M(+SIB+disp) for a
// `reg, rm` or `rm, reg` pair, the REX-free analogue of x64/encoder.go's
// emitModRM: regField is the register occupying ModR/M.reg, or the
// opcode's Ext digit for a group-1/group-2 immediate form.
func emitModRM(out output.Output, regField byte, rm ir.Operand, opcodeBytes ...byte) {
	if rm.Kind() == ir.KindRegister {
		rmLow3 := encodingIndex(rm.Reg())
		for _, b := range opcodeBytes {
			out.PutByte(b)
		}
		out.PutByte(encoding.ModRM(encoding.ModRegister, regField, rmLow3))
		return
	}

	base := rm.Reg()
	baseLow3 := encodingIndex(base)
	disp := rm.Offset().O32
	mod := encoding.DispSizeFor(disp)
	needsSIB := baseLow3 == encoding.RMNeedsSIB

	for _, b := range opcodeBytes {
		out.PutByte(b)
	}
	out.PutByte(encoding.ModRM(mod, regField, baseLow3))
	if needsSIB {
		out.PutByte(encoding.SIB(encoding.ScaleBits(1), encoding.SIBNoIndex, baseLow3))
	}
	switch mod {
	case encoding.ModIndirectDisp8:
		out.PutByte(byte(int8(disp)))
	case encoding.ModIndirectDisp32:
		out.PutInt(uint32(disp))
	}
}

func (e *Encoder) encodeMov(dest, src ir.Operand, out output.Output) error {
	switch {
	case src.Kind() == ir.KindConstant && dest.Kind() == ir.KindRegister:
		low3 := encodingIndex(dest.Reg())
		out.PutByte(0xB8 + low3)
		out.PutInt(uint32(src.Word()))
		return nil

	case src.Kind() == ir.KindConstant:
		emitModRM(out, 0, dest, 0xC7)
		out.PutInt(uint32(src.Word()))
		return nil

	case dest.Kind() == ir.KindRegister && src.IsMemory():
		regLow3 := encodingIndex(dest.Reg())
		emitModRM(out, regLow3, src, 0x8B)
		return nil

	case dest.IsMemory() && src.Kind() == ir.KindRegister:
		regLow3 := encodingIndex(src.Reg())
		emitModRM(out, regLow3, dest, 0x89)
		return nil

	case dest.Kind() == ir.KindRegister && src.Kind() == ir.KindRegister:
		regLow3 := encodingIndex(src.Reg())
		emitModRM(out, regLow3, dest, 0x89)
		return nil
	}
	return fmt.Errorf("x86: mov %s, %s has no direct encoding (two memory operands need prior lowering)", dest, src)
}

func (e *Encoder) encodeArith(op ir.Opcode, dest, src ir.Operand, out output.Output) error {
	d, ok := encoding.ArithDescriptorFor(op)
	if !ok {
		return fmt.Errorf("x86: %s has no group-1 descriptor", op)
	}

	switch {
	case src.Kind() == ir.KindConstant:
		if src.FitsIn32() && src.Word() >= -128 && src.Word() <= 127 {
			emitModRM(out, d.Ext, dest, d.Imm8)
			out.PutByte(byte(int8(src.Word())))
			return nil
		}
		emitModRM(out, d.Ext, dest, d.Imm32)
		out.PutInt(uint32(src.Word()))
		return nil

	case dest.Kind() == ir.KindRegister && src.IsMemory():
		regLow3 := encodingIndex(dest.Reg())
		emitModRM(out, regLow3, src, encoding.WideOpcode(d.RMReg))
		return nil

	case dest.IsMemory() && src.Kind() == ir.KindRegister:
		regLow3 := encodingIndex(src.Reg())
		emitModRM(out, regLow3, dest, encoding.WideOpcode(d.RegRM))
		return nil

	case dest.Kind() == ir.KindRegister && src.Kind() == ir.KindRegister:
		regLow3 := encodingIndex(src.Reg())
		emitModRM(out, regLow3, dest, encoding.WideOpcode(d.RegRM))
		return nil
	}
	return fmt.Errorf("x86: %s %s, %s has no direct encoding (two memory operands need prior lowering)", op, dest, src)
}

func (e *Encoder) encodeShift(op ir.Opcode, dest, src ir.Operand, out output.Output) error {
	d, ok := encoding.ShiftDescriptorFor(op)
	if !ok {
		return fmt.Errorf("x86: %s has no group-2 descriptor", op)
	}
	if src.Kind() == ir.KindConstant {
		emitModRM(out, d.Ext, dest, encoding.WideOpcode(d.ByImm8))
		out.PutByte(byte(src.Word()))
		return nil
	}
	if src.Kind() == ir.KindRegister && ir.Same(src.Reg(), ir.Ecx) {
		emitModRM(out, d.Ext, dest, encoding.WideOpcode(d.ByCL))
		return nil
	}
	return fmt.Errorf("x86: shift count must be an immediate or cl by the time it reaches the encoder")
}

func (e *Encoder) encodeLea(dest, src ir.Operand, out output.Output) error {
	if dest.Kind() != ir.KindRegister || !src.IsMemory() {
		return fmt.Errorf("x86: lea requires a register destination and a memory source")
	}
	regLow3 := encodingIndex(dest.Reg())
	emitModRM(out, regLow3, src, 0x8D)
	return nil
}

func (e *Encoder) encodePush(src ir.Operand, out output.Output) error {
	if src.Kind() != ir.KindRegister {
		return fmt.Errorf("x86: push requires a register operand by encode time")
	}
	low3 := encodingIndex(src.Reg())
	out.PutByte(0x50 + low3)
	return nil
}

func (e *Encoder) encodePop(dest ir.Operand, out output.Output) error {
	if dest.Kind() != ir.KindRegister {
		return fmt.Errorf("x86: pop requires a register operand by encode time")
	}
	low3 := encodingIndex(dest.Reg())
	out.PutByte(0x58 + low3)
	return nil
}

func (e *Encoder) encodeJmp(cond ir.CondFlag, target ir.Operand, out output.Output) error {
	if target.Kind() != ir.KindLabel {
		return fmt.Errorf("x86: jmp to a non-label target needs prior lowering to a reference call")
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
		return fmt.Errorf("x86: call to a non-label target needs prior lowering to a reference call")
	}
	out.PutByte(0xE8)
	out.PutRelative(target.Label())
	return nil
}

func (e *Encoder) encodeSetCond(cond ir.CondFlag, dest ir.Operand, out output.Output) error {
	if dest.Kind() != ir.KindRegister {
		return fmt.Errorf("x86: setcc requires a register destination")
	}
	low3 := encodingIndex(dest.Reg())
	b0, b1 := encoding.SetCC(cond)
	out.PutByte(b0)
	out.PutByte(b1)
	out.PutByte(encoding.ModRM(encoding.ModRegister, 0, low3))
	return nil
}

// encodeGroup3 emits mul/idiv/udiv as the unary group-3 opcode 0xF7,
// operating implicitly on eax:edx.
func (e *Encoder) encodeGroup3(op ir.Opcode, src ir.Operand, out output.Output) error {
	ext := byte(4) // mul
	switch op {
	case ir.OpIDiv:
		ext = 7
	case ir.OpUDiv:
		ext = 6
	}
	emitModRM(out, ext, src, 0xF7)
	return nil
}
