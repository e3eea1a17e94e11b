// Package abi implements the calling-convention materializer of spec
// §4.5: classifying each parameter and the function result per target
// ABI, including the System V AMD64 eightbyte-splitting rules for
// SimpleDesc aggregates and the hidden-pointer convention for
// ComplexDesc values.
//
// Keeps the familiar CallingConvention/SystemVAMD64-shaped interface
// but swaps a Windows x64 ABI for x86-32 cdecl, the two targets this
// module actually targets.
package abi

import "github.com/ngenio/ngen/ir"

// Class is where a single eightbyte (or a whole primitive/pointer
// argument) is classified to.
type Class uint8

const (
	ClassInteger Class = iota
	ClassSSE
	ClassMemory
	// ClassX87 marks a cdecl float/double result returned on the x87
	// stack in st0, the one case with no general-purpose or SSE home.
	ClassX87
)

// Location describes where one parameter (or one half of a
// register-split SimpleDesc) ultimately lives.
type Location struct {
	Class       Class
	InReg       bool
	Reg         ir.Reg
	StackOffset ir.Offset // valid when !InReg
}

// ParamPlacement is the full placement decision for one parameter:
// either a single Location (primitive, pointer, hidden-pointer
// complex), or up to two for a register-split SimpleDesc, or Memory
// when passed wholly on the stack.
type ParamPlacement struct {
	// Hidden reports a ComplexDesc passed by hidden pointer to a
	// caller-allocated copy.
	Hidden bool
	// Eightbytes holds 1 or 2 entries for a SimpleDesc split across
	// registers, or a single entry for a primitive/hidden pointer.
	Eightbytes []Location
	// Memory is true when the whole parameter was placed on the stack
	// (either because it overflowed registers or because it's a
	// SimpleDesc that didn't fit eightbyte classification).
	Memory      bool
	StackOffset ir.Offset
	Size        ir.Size
}

// ResultPlacement is the equivalent decision for the function result.
type ResultPlacement struct {
	// MemoryReturn is true when the result is returned through a
	// hidden first parameter pointing at caller-supplied storage.
	MemoryReturn bool
	Eightbytes   []Location
}

// CallingConvention is the interface every target ABI implements.
type CallingConvention interface {
	Name() string

	IntArgRegs() []ir.Reg
	FloatArgRegs() []ir.Reg
	IntReturnRegs() []ir.Reg
	FloatReturnRegs() []ir.Reg

	CallerSavedRegs() []ir.Reg
	CalleeSavedRegs() []ir.Reg

	// ShadowSpace is the caller-reserved scratch area below the
	// return address some Windows ABIs require; 0 on System V/cdecl.
	ShadowSpace() uint32
	StackAlignment() uint32

	// ClassifyParams assigns each parameter in order to registers or
	// stack slots per this ABI's rules.
	ClassifyParams(params []ir.TypeDesc) []ParamPlacement
	// ClassifyResult assigns the function result.
	ClassifyResult(result ir.TypeDesc) ResultPlacement
}

// CallerSaved returns c's caller-saved registers as an ir.RegSet, the
// shape xform.AnalyzeUsedRegisters needs.
func CallerSaved(c CallingConvention, ptr64 bool) ir.RegSet {
	set := ir.NewRegSet(ptr64)
	for _, r := range c.CallerSavedRegs() {
		set.Put(r)
	}
	return set
}

// classifyEightbyte is the System V "which register class does this
// eightbyte belong to" rule: INTEGER if any member
// overlapping it is integer/pointer, otherwise SSE.
func classifyEightbyte(members []ir.SimpleMember, lo, hi uint32) Class {
	class := ClassSSE
	any := false
	for _, m := range members {
		if m.Offset64 >= hi || m.Offset64+m.Size.Size64 <= lo {
			continue
		}
		any = true
		if m.Kind == ir.PrimInteger || m.Kind == ir.PrimPointer {
			class = ClassInteger
		}
	}
	if !any {
		return ClassInteger
	}
	return class
}
