package x86

import (
	"github.com/ngenio/ngen/abi"
	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/xform"
)

// FrameExpand is x64/frameexpand.go's FrameExpand narrowed to cdecl:
// it replaces every pseudo-instruction a lowered listing still carries
// with the concrete sequence Prolog/Epilog build, and runs last, after
// invalid-instruction lowering.
//
// Grounded on spec §4.7 directly, the same way x64/frameexpand.go is.
type FrameExpand struct {
	layout     *Layout
	resultType ir.TypeDesc
	hasResult  bool
	result     abi.ResultPlacement
	hiddenSlot ir.Offset // frame offset of the hidden destination-pointer parameter
	hasHidden  bool

	used *xform.UsedRegResult
}

func NewFrameExpand(layout *Layout, resultType ir.TypeDesc, hasResult bool, result abi.ResultPlacement, hiddenSlot ir.Offset, hasHidden bool) *FrameExpand {
	return &FrameExpand{
		layout: layout, resultType: resultType, hasResult: hasResult,
		result: result, hiddenSlot: hiddenSlot, hasHidden: hasHidden,
	}
}

func (p *FrameExpand) Before(ctx *xform.Context) error {
	p.used = xform.AnalyzeUsedRegisters(ctx.Src, false, callerSavedABI{(abi.Cdecl32{}).CallerSavedRegs()})
	return nil
}

func (p *FrameExpand) After(ctx *xform.Context) error { return nil }

func (p *FrameExpand) During(ctx *xform.Context, index int, instr ir.Instr) error {
	out := ctx.Out
	live := p.used.UsedAt(index)

	switch instr.Op {
	case ir.OpProlog:
		rootVars := ctx.Src.PartVars(ir.Root)
		seq := Prolog(ctx.Src, p.layout, rootVars)
		if len(seq) > 0 {
			seq[0] = seq[0].WithLabels(instr.Labels()...)
		}
		for _, i := range seq {
			out.Append(i)
		}
		return nil

	case ir.OpEpilog:
		seq := Epilog(p.layout)
		if len(seq) > 0 {
			seq[0] = seq[0].WithLabels(instr.Labels()...)
		}
		for _, i := range seq {
			out.Append(i)
		}
		return nil

	case ir.OpBeginBlock:
		part := instr.Src.Part()
		first := true
		emitFirst := func(i ir.Instr) ir.Instr {
			if first {
				i = i.WithLabels(instr.Labels()...)
				first = false
			}
			return i
		}
		if p.layout.HasEHSlot() {
			out.Append(emitFirst(ir.MustInstr(ir.OpMov,
				ir.Relative(ir.PtrFrame, p.layout.EHSlot(), ir.SInt), ir.Constant(ir.SInt, int64(part)))))
		}
		vars := ctx.Src.PartVars(part)
		if len(vars) > 0 {
			out.Append(emitFirst(ir.MustInstr(ir.OpBXor, ir.Register(ir.Eax, ir.SInt), ir.Register(ir.Eax, ir.SInt))))
		}
		for _, v := range vars {
			sz := ctx.Src.VarSize(v)
			off := p.layout.OffsetOf(v)
			var seq []ir.Instr
			zeroVar(&seq, v, off, sz)
			for _, zi := range seq {
				out.Append(zi)
			}
		}
		if first {
			out.Append(ir.MustInstr(ir.OpNone, ir.None, ir.None).WithLabels(instr.Labels()...))
		}
		return nil

	case ir.OpEndBlock:
		return p.lowerEndBlock(out, instr, live)

	case ir.OpJmpBlock:
		// Simplified the same way x64/frameexpand.go's is: no cross-
		// block unwind-on-jump destructor cascade.
		j := ir.MustInstr(ir.OpJmp, ir.None, instr.Src).WithLabels(instr.Labels()...)
		j.Cond = ir.CondAlways
		out.Append(j)
		return nil

	case ir.OpFnRet, ir.OpFnRetRef:
		return p.lowerReturn(out, instr, live)
	}

	out.Append(instr)
	return nil
}

func (p *FrameExpand) lowerEndBlock(out *ir.Listing, instr ir.Instr, live ir.RegSet) error {
	part := instr.Src.Part()
	first := true
	return p.destroyPart(out, part, instr, live, &first)
}

func (p *FrameExpand) destroyPart(out *ir.Listing, part ir.Part, instr ir.Instr, live ir.RegSet, first *bool) error {
	for _, v := range out.PartVars(part) {
		dtor := out.FreeFn(v)
		opt := out.FreeOpt(v)
		if dtor == nil || opt&ir.FreeOnBlockExit == 0 {
			continue
		}
		sz := out.VarSize(v)
		self := ir.VariableOp(v, ir.Offset{}, sz)
		if opt&ir.FreePtr != 0 {
			tmp := ir.AsSize(xform.UnusedReg(live, scratchGP32), ir.WidthInt)
			out.Append(ir.MustInstr(ir.OpLea, ir.Register(tmp, ir.SPtr), self))
			self = ir.Register(tmp, ir.SPtr)
		}
		emit := func(i ir.Instr) {
			if *first {
				i = i.WithLabels(instr.Labels()...)
				*first = false
			}
			out.Append(i)
		}
		dtor(emit, self)
	}
	if *first {
		out.Append(ir.MustInstr(ir.OpNone, ir.None, ir.None).WithLabels(instr.Labels()...))
	}
	return nil
}

func (p *FrameExpand) lowerReturn(out *ir.Listing, instr ir.Instr, live ir.RegSet) error {
	first := true
	emit := func(i ir.Instr) {
		if first {
			i = i.WithLabels(instr.Labels()...)
			first = false
		}
		out.Append(i)
	}

	switch {
	case p.hasResult && p.resultType.IsComplex():
		// cdecl's hidden-pointer result convention: the caller pushes
		// the destination address as an extra first argument (a plain
		// stack slot, unlike System V's register), and the callee also
		// returns it in eax so callers that ignore it in a statement
		// context still see a correctly set accumulator.
		dstReg := ir.AsSize(xform.UnusedReg(live, scratchGP32), ir.WidthInt)
		emit(ir.MustInstr(ir.OpMov, ir.Register(dstReg, ir.SPtr), ir.Relative(ir.PtrFrame, p.hiddenSlot, ir.SPtr)))
		dst := ir.Register(dstReg, ir.SPtr)
		var src ir.Operand
		if instr.Op == ir.OpFnRetRef {
			src = instr.Src
		} else {
			tmp := ir.AsSize(xform.UnusedReg(live, scratchGP32), ir.WidthInt)
			emit(ir.MustInstr(ir.OpLea, ir.Register(tmp, ir.SPtr), instr.Src))
			src = ir.Register(tmp, ir.SPtr)
		}
		p.resultType.Ctor()(emit, dst, src)
		emit(ir.MustInstr(ir.OpMov, ir.Register(ir.Eax, ir.SInt), dst))

	case p.hasResult && len(p.result.Eightbytes) > 0:
		for i, loc := range p.result.Eightbytes {
			if loc.Class != abi.ClassInteger {
				// x87-classified float results return through st0 via
				// a dedicated fld the encoder doesn't emit yet (see
				// DESIGN.md); skipped.
				continue
			}
			srcOp := instr.Src
			if i > 0 && srcOp.Kind() == ir.KindVariable {
				srcOp = ir.VariableOp(srcOp.Variable(), ir.Offset{O32: srcOp.Offset().O32 + int32(i*4)}, ir.SInt)
			}
			emit(ir.MustInstr(ir.OpMov, ir.Register(ir.AsSize(loc.Reg, ir.WidthInt), ir.SInt), srcOp))
		}
	}

	if first {
		emit(ir.MustInstr(ir.OpNone, ir.None, ir.None))
	}

	seq := Epilog(p.layout)
	for _, i := range seq {
		out.Append(i)
	}
	return nil
}
