package x64

import (
	"github.com/ngenio/ngen/abi"
	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/xform"
)

// FrameExpand replaces every pseudo-instruction a lowered listing still
// carries (prolog/epilog, block entry/exit, the two fnRet forms) with
// the concrete instruction sequences Prolog/Epilog build, per spec's
// §4.7 frame-lowering rules. It runs last, after invalid-instruction
// lowering has already turned everything else into encoder-ready
// forms, so the encoder never sees a pseudo-op.
//
// Grounded on §4.7 directly; the teacher has no equivalent pass since
// its generated functions are emitted with a single fixed prolog/
// epilog shape inlined at their call sites rather than expanded from a
// generic marker instruction.
type FrameExpand struct {
	layout       *Layout
	resultType   ir.TypeDesc
	hasResult    bool
	result       abi.ResultPlacement
	hiddenResult ir.Reg
	hasHidden    bool

	used *xform.UsedRegResult
}

func NewFrameExpand(layout *Layout, resultType ir.TypeDesc, hasResult bool, result abi.ResultPlacement, hiddenResult ir.Reg, hasHidden bool) *FrameExpand {
	return &FrameExpand{
		layout: layout, resultType: resultType, hasResult: hasResult,
		result: result, hiddenResult: hiddenResult, hasHidden: hasHidden,
	}
}

func (p *FrameExpand) Before(ctx *xform.Context) error {
	p.used = xform.AnalyzeUsedRegisters(ctx.Src, true, callerSavedABI{(abi.SystemVAMD64{}).CallerSavedRegs()})
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
				ir.Relative(ir.PtrFrame, p.layout.EHSlot(), ir.SLong), ir.Constant(ir.SLong, int64(part)))))
		}
		vars := ctx.Src.PartVars(part)
		if len(vars) > 0 {
			out.Append(emitFirst(ir.MustInstr(ir.OpBXor, ir.Register(ir.Rax, ir.SLong), ir.Register(ir.Rax, ir.SLong))))
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
		// Simplified: a jump out of a block's normal control flow is
		// encoded as a plain jmp, without running the destructors of
		// the parts being exited early. Cross-block unwind-on-jump
		// destructor cascades aren't implemented (see DESIGN.md); the
		// common case (falling off the end of a block, or an explicit
		// early return) is handled by endBlock/fnRet respectively.
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
	// Destructors are looked up against the listing the pass is
	// transforming (the already-lowered one, which seedGraph gave the
	// same Variable/Part identities as the original), since fnParam/
	// fnCall lowering never introduces new destructible variables.
	for _, v := range out.PartVars(part) {
		dtor := out.FreeFn(v)
		opt := out.FreeOpt(v)
		if dtor == nil || opt&ir.FreeOnBlockExit == 0 {
			continue
		}
		sz := out.VarSize(v)
		self := ir.VariableOp(v, ir.Offset{}, sz)
		if opt&ir.FreePtr != 0 {
			tmp := ir.AsSize(xform.UnusedReg(live, scratchGP), ir.WidthLong)
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
		dst := ir.Register(ir.AsSize(p.hiddenResult, ir.WidthLong), ir.SPtr)
		var src ir.Operand
		if instr.Op == ir.OpFnRetRef {
			src = instr.Src
		} else {
			tmp := ir.AsSize(xform.UnusedReg(live, scratchGP), ir.WidthLong)
			emit(ir.MustInstr(ir.OpLea, ir.Register(tmp, ir.SPtr), instr.Src))
			src = ir.Register(tmp, ir.SPtr)
		}
		p.resultType.Ctor()(emit, dst, src)
		emit(ir.MustInstr(ir.OpMov, ir.Register(ir.Rax, ir.SLong), dst))

	case p.hasResult && len(p.result.Eightbytes) > 0:
		for i, loc := range p.result.Eightbytes {
			if loc.Class != abi.ClassInteger {
				// SSE-classified results need a movsd/movss the
				// encoder doesn't emit yet (see DESIGN.md); skipped.
				continue
			}
			width := widthOf(ir.SLong)
			srcOp := instr.Src
			if i > 0 && srcOp.Kind() == ir.KindVariable {
				srcOp = ir.VariableOp(srcOp.Variable(), ir.Offset{O64: srcOp.Offset().O64 + int64(i*8)}, ir.SLong)
			}
			emit(ir.MustInstr(ir.OpMov, ir.Register(ir.AsSize(loc.Reg, width), ir.SLong), srcOp))
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
