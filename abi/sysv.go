package abi

import "github.com/ngenio/ngen/ir"

// SystemVAMD64 is the x86-64 Unix calling convention: up to six
// integer/pointer arguments in rdi,rsi,rdx,rcx,r8,r9, up to eight
// float/double arguments in xmm0-7, overflow on the stack; result in
// rax(:rdx) or xmm0(:xmm1), or via a hidden first parameter when the
// result doesn't fit two eightbytes.
type SystemVAMD64 struct{}

var _ CallingConvention = SystemVAMD64{}

func (SystemVAMD64) Name() string { return "sysv-amd64" }

func (SystemVAMD64) IntArgRegs() []ir.Reg {
	return []ir.Reg{ir.Rdi, ir.Rsi, ir.Rdx, ir.Rcx, ir.R8, ir.R9}
}

func (SystemVAMD64) FloatArgRegs() []ir.Reg { return ir.XmmRegs[:8] }

func (SystemVAMD64) IntReturnRegs() []ir.Reg { return []ir.Reg{ir.Rax, ir.Rdx} }

func (SystemVAMD64) FloatReturnRegs() []ir.Reg { return ir.XmmRegs[:2] }

func (SystemVAMD64) CallerSavedRegs() []ir.Reg {
	regs := []ir.Reg{ir.Rax, ir.Rcx, ir.Rdx, ir.Rsi, ir.Rdi, ir.R8, ir.R9, ir.R10, ir.R11}
	return append(regs, ir.XmmRegs...)
}

func (SystemVAMD64) CalleeSavedRegs() []ir.Reg {
	return []ir.Reg{ir.Rbx, ir.R12, ir.R13, ir.R14, ir.R15, ir.PtrFrame}
}

func (SystemVAMD64) ShadowSpace() uint32   { return 0 }
func (SystemVAMD64) StackAlignment() uint32 { return 16 }

// ClassifyParams runs the System V eightbyte algorithm: primitives and
// pointers consume one integer or SSE register (or a stack slot once
// their bank is exhausted); ComplexDesc values are always passed by
// hidden pointer (one integer register/slot carrying the address);
// SimpleDesc aggregates up to 16 bytes are split into one or two
// eightbytes classified independently, falling back to memory
// wholesale when either half can't be satisfied from registers.
func (c SystemVAMD64) ClassifyParams(params []ir.TypeDesc) []ParamPlacement {
	intRegs := c.IntArgRegs()
	floatRegs := c.FloatArgRegs()
	var nextInt, nextFloat int
	var stackOff int64

	out := make([]ParamPlacement, len(params))
	for i, p := range params {
		switch {
		case p.IsComplex():
			out[i] = c.placeHiddenPointer(&nextInt, &stackOff, intRegs)

		case p.IsPrimitive():
			out[i] = c.placePrimitive(p, &nextInt, &nextFloat, &stackOff, intRegs, floatRegs)

		case p.IsSimple():
			out[i] = c.placeSimple(p, &nextInt, &nextFloat, &stackOff, intRegs, floatRegs)
		}
	}
	return out
}

func (SystemVAMD64) placeHiddenPointer(nextInt *int, stackOff *int64, intRegs []ir.Reg) ParamPlacement {
	sz := ir.SPtr
	if *nextInt < len(intRegs) {
		loc := Location{Class: ClassInteger, InReg: true, Reg: intRegs[*nextInt]}
		*nextInt++
		return ParamPlacement{Hidden: true, Eightbytes: []Location{loc}, Size: sz}
	}
	off := ir.Offset{O64: *stackOff}
	*stackOff += 8
	return ParamPlacement{Hidden: true, Memory: true, StackOffset: off, Size: sz}
}

func (SystemVAMD64) placePrimitive(p ir.TypeDesc, nextInt, nextFloat *int, stackOff *int64, intRegs, floatRegs []ir.Reg) ParamPlacement {
	sz := p.Size()
	if p.PrimitiveKind() == ir.PrimReal {
		if *nextFloat < len(floatRegs) {
			loc := Location{Class: ClassSSE, InReg: true, Reg: floatRegs[*nextFloat]}
			*nextFloat++
			return ParamPlacement{Eightbytes: []Location{loc}, Size: sz}
		}
	} else if *nextInt < len(intRegs) {
		loc := Location{Class: ClassInteger, InReg: true, Reg: intRegs[*nextInt]}
		*nextInt++
		return ParamPlacement{Eightbytes: []Location{loc}, Size: sz}
	}
	off := ir.Offset{O64: *stackOff}
	*stackOff += 8
	return ParamPlacement{Memory: true, StackOffset: off, Size: sz}
}

func (SystemVAMD64) placeSimple(p ir.TypeDesc, nextInt, nextFloat *int, stackOff *int64, intRegs, floatRegs []ir.Reg) ParamPlacement {
	sz := p.Size()
	n := numEightbytes(sz.Size64)
	members := p.Members()

	classes := make([]Class, n)
	for i := range classes {
		lo := uint32(i) * 8
		hi := lo + 8
		classes[i] = classifyEightbyte(members, lo, hi)
	}

	// Tentatively reserve registers; roll back to memory if any
	// eightbyte can't be satisfied from its bank.
	wantInt, wantFloat := 0, 0
	for _, cl := range classes {
		if cl == ClassInteger {
			wantInt++
		} else {
			wantFloat++
		}
	}
	if n > 2 || *nextInt+wantInt > len(intRegs) || *nextFloat+wantFloat > len(floatRegs) {
		off := ir.Offset{O64: *stackOff}
		*stackOff += int64(ir.AlignUp(sz.Size64, 8))
		return ParamPlacement{Memory: true, StackOffset: off, Size: sz}
	}

	locs := make([]Location, n)
	for i, cl := range classes {
		if cl == ClassInteger {
			locs[i] = Location{Class: ClassInteger, InReg: true, Reg: intRegs[*nextInt]}
			*nextInt++
		} else {
			locs[i] = Location{Class: ClassSSE, InReg: true, Reg: floatRegs[*nextFloat]}
			*nextFloat++
		}
	}
	return ParamPlacement{Eightbytes: locs, Size: sz}
}

func numEightbytes(size64 uint32) int {
	n := int(ir.AlignUp(size64, 8) / 8)
	if n < 1 {
		n = 1
	}
	return n
}

// ClassifyResult classifies the function result. SimpleDesc results
// over two eightbytes, and every ComplexDesc result, return through a
// hidden pointer supplied by the caller in rdi (consuming the first
// integer argument register before ClassifyParams sees it).
func (c SystemVAMD64) ClassifyResult(result ir.TypeDesc) ResultPlacement {
	switch {
	case result.IsComplex():
		return ResultPlacement{MemoryReturn: true}

	case result.IsPrimitive():
		if result.PrimitiveKind() == ir.PrimReal {
			return ResultPlacement{Eightbytes: []Location{{Class: ClassSSE, InReg: true, Reg: ir.XmmRegs[0]}}}
		}
		return ResultPlacement{Eightbytes: []Location{{Class: ClassInteger, InReg: true, Reg: ir.Rax}}}

	case result.IsSimple():
		sz := result.Size()
		n := numEightbytes(sz.Size64)
		if n > 2 {
			return ResultPlacement{MemoryReturn: true}
		}
		members := result.Members()
		intRets := c.IntReturnRegs()
		floatRets := c.FloatReturnRegs()
		var nextInt, nextFloat int
		locs := make([]Location, n)
		for i := 0; i < n; i++ {
			lo := uint32(i) * 8
			hi := lo + 8
			if classifyEightbyte(members, lo, hi) == ClassInteger {
				locs[i] = Location{Class: ClassInteger, InReg: true, Reg: intRets[nextInt]}
				nextInt++
			} else {
				locs[i] = Location{Class: ClassSSE, InReg: true, Reg: floatRets[nextFloat]}
				nextFloat++
			}
		}
		return ResultPlacement{Eightbytes: locs}
	}
	return ResultPlacement{}
}
