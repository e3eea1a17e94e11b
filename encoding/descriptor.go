package encoding

import "github.com/ngenio/ngen/ir"

// ArithDescriptor is the byte-level encoding recipe for one of the
// group-1 arithmetic/logic opcodes (add, or, adc, sbb, and, sub, xor,
// cmp): the three opcode forms the SDM defines for them all, plus the
// ModR/M reg-field digit the two immediate forms use in place of a
// second register operand.
type ArithDescriptor struct {
	// RegRM is "op r/m, r" (dest read-write in rm, src in reg):
	// 0x00/0x01 for add's r/m8,r8 and r/m32/64,r32/64 forms, shifted by
	// the same +8 each group-1 op uses.
	RegRM byte
	// RMReg is "op r, r/m" (dest in reg, src read from rm): RegRM+2.
	RMReg byte
	// Imm8 is the opcode for "op r/m, imm8" (sign-extended): always
	// 0x83 for the wide forms, 0x80 for the 8-bit form.
	Imm8 byte
	// Imm32 is "op r/m, imm32" (or imm16 in a 16-bit operand size):
	// 0x81 for the wide forms; the 8-bit form has no imm32 variant.
	Imm32 byte
	// Ext is the ModR/M.reg digit the 0x80/0x81/0x83 immediate forms
	// use to select which group-1 operation this is.
	Ext byte
}

// arithDescriptors covers the seven group-1 operations the x86/x64
// backends lower OpAdd/OpAdc/OpSub/OpSbb/OpBAnd/OpBOr/OpBXor to
// (cmp, the eighth group-1 operation, is not an ir.Opcode — it's a
// DestRead side effect folded into conditional-branch lowering, so it
// is omitted here).
var arithDescriptors = map[ir.Opcode]ArithDescriptor{
	ir.OpAdd:  {RegRM: 0x00, RMReg: 0x02, Imm8: 0x83, Imm32: 0x81, Ext: 0},
	ir.OpBOr:  {RegRM: 0x08, RMReg: 0x0A, Imm8: 0x83, Imm32: 0x81, Ext: 1},
	ir.OpAdc:  {RegRM: 0x10, RMReg: 0x12, Imm8: 0x83, Imm32: 0x81, Ext: 2},
	ir.OpSbb:  {RegRM: 0x18, RMReg: 0x1A, Imm8: 0x83, Imm32: 0x81, Ext: 3},
	ir.OpBAnd: {RegRM: 0x20, RMReg: 0x22, Imm8: 0x83, Imm32: 0x81, Ext: 4},
	ir.OpSub:  {RegRM: 0x28, RMReg: 0x2A, Imm8: 0x83, Imm32: 0x81, Ext: 5},
	ir.OpBXor: {RegRM: 0x30, RMReg: 0x32, Imm8: 0x83, Imm32: 0x81, Ext: 6},
}

// ArithDescriptorFor looks up the group-1 byte recipe for op, and
// reports whether op is one of the seven group-1 opcodes in the table.
func ArithDescriptorFor(op ir.Opcode) (ArithDescriptor, bool) {
	d, ok := arithDescriptors[op]
	return d, ok
}

// WideOpcode returns the wide (word/dword/qword operand) form of a
// group-1 base opcode, i.e. RegRM/RMReg + 1 (0x00 -> 0x01 etc), the
// bit the SDM calls "w" in the opcode's low bit.
func WideOpcode(base byte) byte { return base | 0x01 }

// ShiftDescriptor is the byte recipe for the group-2 shift/rotate
// opcodes (shl, shr, sar): opcode byte plus the ModR/M.reg digit.
type ShiftDescriptor struct {
	// ByOne is "op r/m, 1" (0xD0/0xD1), used only by a frontend that
	// explicitly special-cases a shift count of 1; this backend always
	// uses the CL/imm8 forms below for uniformity.
	ByOne byte
	// ByCL is "op r/m, cl" (0xD2/0xD3).
	ByCL byte
	// ByImm8 is "op r/m, imm8" (0xC0/0xC1).
	ByImm8 byte
	Ext    byte
}

var shiftDescriptors = map[ir.Opcode]ShiftDescriptor{
	ir.OpShl: {ByOne: 0xD0, ByCL: 0xD2, ByImm8: 0xC0, Ext: 4},
	ir.OpShr: {ByOne: 0xD0, ByCL: 0xD2, ByImm8: 0xC0, Ext: 5},
	ir.OpSar: {ByOne: 0xD0, ByCL: 0xD2, ByImm8: 0xC0, Ext: 7},
}

func ShiftDescriptorFor(op ir.Opcode) (ShiftDescriptor, bool) {
	d, ok := shiftDescriptors[op]
	return d, ok
}

// JccShort, JccNear and SetCC map an ir.CondFlag to the one-byte short
// form (Jcc rel8, 0x70+cc) and the two-byte near form (0x0F 0x80+cc) of
// a conditional jump, and to the SETcc (0x0F 0x90+cc) opcode used for
// OpSetCond.
func JccShort(cond ir.CondFlag) byte { return 0x70 + byte(cond) }
func JccNear(cond ir.CondFlag) (byte, byte) { return 0x0F, 0x80 + byte(cond) }
func SetCC(cond ir.CondFlag) (byte, byte) { return 0x0F, 0x90 + byte(cond) }
