package abi

import "github.com/ngenio/ngen/ir"

// Cdecl32 is the x86-32 C calling convention: every argument on the
// stack, pushed right to left; integer results in eax (eax:edx for
// 64-bit results); float/double results on the x87 stack in st0.
// Complex values are passed and returned by hidden pointer, also on
// the stack, matching the integer-argument rule since cdecl never
// passes anything in a register.
type Cdecl32 struct{}

var _ CallingConvention = Cdecl32{}

func (Cdecl32) Name() string { return "cdecl-x86" }

func (Cdecl32) IntArgRegs() []ir.Reg   { return nil }
func (Cdecl32) FloatArgRegs() []ir.Reg { return nil }

func (Cdecl32) IntReturnRegs() []ir.Reg { return []ir.Reg{ir.Eax, ir.Edx} }
func (Cdecl32) FloatReturnRegs() []ir.Reg { return nil }

func (Cdecl32) CallerSavedRegs() []ir.Reg {
	return []ir.Reg{ir.Eax, ir.Ecx, ir.Edx}
}

func (Cdecl32) CalleeSavedRegs() []ir.Reg {
	return []ir.Reg{ir.Ebx, ir.Esi, ir.Edi, ir.PtrFrame}
}

func (Cdecl32) ShadowSpace() uint32   { return 0 }
func (Cdecl32) StackAlignment() uint32 { return 4 }

// ClassifyParams places every parameter on the stack in order, each
// rounded up to a 4-byte slot; ComplexDesc values pass the hidden
// pointer to the caller-managed copy as that same 4-byte slot.
func (Cdecl32) ClassifyParams(params []ir.TypeDesc) []ParamPlacement {
	var stackOff int64
	out := make([]ParamPlacement, len(params))
	for i, p := range params {
		sz := p.Size()
		slot := int64(ir.AlignUp(sz.Size32, 4))
		if p.IsComplex() {
			slot = 4
		}
		off := ir.Offset{O32: int32(stackOff)}
		out[i] = ParamPlacement{
			Hidden:      p.IsComplex(),
			Memory:      true,
			StackOffset: off,
			Size:        sz,
		}
		stackOff += slot
	}
	return out
}

// ClassifyResult returns integer results in eax (eax:edx if the value
// is 8 bytes), float/double results in st0, and ComplexDesc results
// via a hidden pointer the caller passes as the first stack argument.
func (c Cdecl32) ClassifyResult(result ir.TypeDesc) ResultPlacement {
	switch {
	case result.IsComplex():
		return ResultPlacement{MemoryReturn: true}

	case result.IsPrimitive():
		if result.PrimitiveKind() == ir.PrimReal {
			return ResultPlacement{Eightbytes: []Location{{Class: ClassX87}}}
		}
		if result.Size().Size32 > 4 {
			return ResultPlacement{Eightbytes: []Location{
				{Class: ClassInteger, InReg: true, Reg: ir.Eax},
				{Class: ClassInteger, InReg: true, Reg: ir.Edx},
			}}
		}
		return ResultPlacement{Eightbytes: []Location{{Class: ClassInteger, InReg: true, Reg: ir.Eax}}}

	case result.IsSimple():
		// A SimpleDesc small enough to fit in eax:edx is still
		// returned by value in registers under cdecl when it's 8
		// bytes or less of plain scalar members; anything larger
		// returns via hidden pointer like ComplexDesc.
		if result.Size().Size32 <= 4 {
			return ResultPlacement{Eightbytes: []Location{{Class: ClassInteger, InReg: true, Reg: ir.Eax}}}
		}
		if result.Size().Size32 <= 8 {
			return ResultPlacement{Eightbytes: []Location{
				{Class: ClassInteger, InReg: true, Reg: ir.Eax},
				{Class: ClassInteger, InReg: true, Reg: ir.Edx},
			}}
		}
		return ResultPlacement{MemoryReturn: true}
	}
	return ResultPlacement{}
}
