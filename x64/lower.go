package x64

import (
	"fmt"

	"github.com/ngenio/ngen/abi"
	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/xform"
)

// scratchGP is the preference order invalid-instruction lowering picks
// scratch registers from: caller-saved first, rbx/r12-r15 last since
// using one of those forces an extra prolog spill.
var scratchGP = []ir.Reg{
	ir.AsSize(ir.R10, ir.WidthLong), ir.AsSize(ir.R11, ir.WidthLong),
	ir.AsSize(ir.PtrD, ir.WidthLong), ir.AsSize(ir.Rsi, ir.WidthLong), ir.AsSize(ir.Rdi, ir.WidthLong),
	ir.AsSize(ir.Rbx, ir.WidthLong),
}

type callerSavedABI struct{ regs []ir.Reg }

func (a callerSavedABI) CallerSaved() ir.RegSet {
	rs := ir.NewRegSet(true)
	for _, r := range a.regs {
		rs.Put(r)
	}
	return rs
}

// pendingArg is one fnParam/fnParamRef buffered since the last fnCall.
type pendingArg struct {
	value ir.Operand
	typ   ir.TypeDesc
	byRef bool
}

// lowerState is the invalid-instruction lowering pass's scratch data,
// grounded on spec's per-line responsibilities (§4.4): it owns the
// used-register dataflow, the parameter-classification placements for
// this function's own signature (for indirect-complex-parameter
// rewriting), and the in-flight fnParam buffer.
type lowerState struct {
	sysv        abi.SystemVAMD64
	used        *xform.UsedRegResult
	paramHidden map[ir.Variable]bool // true if param is a ComplexDesc hidden pointer
	args        []pendingArg
}

// Lower rewrites listing into the instruction forms the x64 encoder
// accepts directly: no label/imm64 constants outside movabs, no two
// memory operands on a generic arithmetic op, shift counts already in
// cl, mul/div/mod operands already routed through rax/rdx, and
// fnParam/fnCall sequences expanded into real pushes, register moves
// and a call.
//
// Grounded on spec's invalid-instruction lowering responsibilities
// (§4.4) and the teacher's register_allocator.go for the idea of a
// backwards liveness pass driving scratch-register choice, though the
// teacher's pass tracks liveness for allocation decisions rather than
// for picking a transient lowering register.
func Lower(src *ir.Listing, placements []abi.ParamPlacement) (*ir.Listing, error) {
	st := &lowerState{paramHidden: map[ir.Variable]bool{}}

	params := paramVars(src)
	for i, v := range params {
		if i < len(placements) && placements[i].Hidden {
			st.paramHidden[v] = true
		}
	}

	pass := &loweringPass{st: st}
	return xform.Run(pass, src)
}

func paramVars(l *ir.Listing) []ir.Variable {
	var out []ir.Variable
	for _, v := range l.AllVars() {
		if l.IsParam(v) {
			out = append(out, v)
		}
	}
	return out
}

type loweringPass struct {
	st *lowerState
}

func (p *loweringPass) Before(ctx *xform.Context) error {
	p.st.used = xform.AnalyzeUsedRegisters(ctx.Src, true, callerSavedABI{p.st.sysv.CallerSavedRegs()})
	return nil
}

func (p *loweringPass) After(ctx *xform.Context) error {
	return nil
}

func (p *loweringPass) During(ctx *xform.Context, index int, instr ir.Instr) error {
	live := p.st.used.UsedAt(index)
	out := ctx.Out

	switch instr.Op {
	case ir.OpFnParam, ir.OpFnParamRef:
		t, _ := ctx.Src.TypeOf(index)
		p.st.args = append(p.st.args, pendingArg{value: instr.Src, typ: t, byRef: instr.Op == ir.OpFnParamRef})
		return nil

	case ir.OpFnCall, ir.OpFnCallRef:
		return p.lowerCall(out, instr, live)

	case ir.OpShl, ir.OpShr, ir.OpSar:
		return p.lowerShift(out, instr, live)

	case ir.OpMul, ir.OpIDiv, ir.OpUDiv, ir.OpIMod, ir.OpUMod:
		return p.lowerDivide(out, instr, live)

	case ir.OpLea:
		return p.lowerLea(out, instr, live)
	}

	dest := p.indirectComplexParam(out, instr.Dest, live)
	src := p.indirectComplexParam(out, instr.Src, live)
	src = p.resolveLargeConst(out, src, instr.Op, dest, live)

	if isTwoOperandArith(instr.Op) && dest.IsMemory() && src.IsMemory() {
		tmp := ir.AsSize(xform.UnusedReg(live, scratchGP), widthOf(src.Size()))
		out.Append(ir.MustInstr(ir.OpMov, ir.Register(tmp, src.Size()), src).WithLabels(instr.Labels()...))
		src = ir.Register(tmp, src.Size())
		out.Append(ir.MustInstr(instr.Op, dest, src))
		return nil
	}

	rebuilt, err := ir.NewInstr(instr.Op, dest, src)
	if err != nil {
		return fmt.Errorf("x64: lowering %s: %w", instr.Op, err)
	}
	rebuilt = rebuilt.WithLabels(instr.Labels()...)
	rebuilt.Cond = instr.Cond
	out.Append(rebuilt)
	return nil
}

func isTwoOperandArith(op ir.Opcode) bool {
	switch op {
	case ir.OpMov, ir.OpAdd, ir.OpAdc, ir.OpSub, ir.OpSbb, ir.OpBAnd, ir.OpBOr, ir.OpBXor, ir.OpSwap:
		return true
	default:
		return false
	}
}

// resolveLargeConst materializes a constant source that can't be
// embedded directly into the instruction being lowered: anything that
// doesn't fit a 32-bit immediate, unless it's a mov straight into a
// register (movabs handles that natively).
func (p *loweringPass) resolveLargeConst(out *ir.Listing, src ir.Operand, op ir.Opcode, dest ir.Operand, live ir.RegSet) ir.Operand {
	if src.Kind() != ir.KindConstant || src.FitsIn32() {
		return src
	}
	if op == ir.OpMov && dest.Kind() == ir.KindRegister {
		return src
	}
	tmp := ir.AsSize(xform.UnusedReg(live, scratchGP), widthOf(src.Size()))
	out.Append(ir.MustInstr(ir.OpMov, ir.Register(tmp, src.Size()), src))
	return ir.Register(tmp, src.Size())
}

// indirectComplexParam rewrites a reference to a ComplexDesc parameter
// (passed by hidden pointer) from a direct variable access into a
// dereference through the pointer the caller actually passed.
func (p *loweringPass) indirectComplexParam(out *ir.Listing, op ir.Operand, live ir.RegSet) ir.Operand {
	if op.Kind() != ir.KindVariable || !p.st.paramHidden[op.Variable()] {
		return op
	}
	tmp := ir.AsSize(xform.UnusedReg(live, scratchGP), ir.WidthLong)
	out.Append(ir.MustInstr(ir.OpMov, ir.Register(tmp, ir.SPtr), ir.VariableOp(op.Variable(), ir.Offset{}, ir.SPtr)))
	return ir.Relative(tmp, op.Offset(), op.Size())
}

// lowerShift normalizes a register-sourced shift count into cl,
// saving and restoring rcx around it when rcx itself isn't already the
// count (an immediate count needs no normalization at all).
func (p *loweringPass) lowerShift(out *ir.Listing, instr ir.Instr, live ir.RegSet) error {
	dest, src := instr.Dest, instr.Src
	if src.Kind() != ir.KindRegister || ir.Same(src.Reg(), ir.PtrC) {
		out.Append(instr)
		return nil
	}
	rcxLive := live.Has(ir.PtrC)
	if rcxLive {
		out.Append(ir.MustInstr(ir.OpPush, ir.None, ir.Register(ir.Rcx, ir.SLong)))
	}
	out.Append(ir.MustInstr(ir.OpMov, ir.Register(ir.Cl, ir.SByte), ir.Register(ir.AsSize(src.Reg(), ir.WidthByte), ir.SByte)))
	out.Append(ir.MustInstr(instr.Op, dest, ir.Register(ir.Cl, ir.SByte)).WithLabels(instr.Labels()...))
	if rcxLive {
		out.Append(ir.MustInstr(ir.OpPop, ir.Register(ir.Rcx, ir.SLong), ir.None))
	}
	return nil
}

// lowerDivide routes a mul/div/mod through rax (and rdx for the
// 64-bit remainder half), per spec's rule 6. Byte-sized division is
// widened to int width first since the encoder only emits the
// wide (0xF7) group-3 opcode, not the byte (0xF6) form; modulo then
// reads the normal rdx remainder instead of shifting ah.
func (p *loweringPass) lowerDivide(out *ir.Listing, instr ir.Instr, live ir.RegSet) error {
	op, dest, src := instr.Op, instr.Dest, instr.Src
	isMod := op == ir.OpIMod || op == ir.OpUMod
	hwOp := op
	switch op {
	case ir.OpIMod:
		hwOp = ir.OpIDiv
	case ir.OpUMod:
		hwOp = ir.OpUDiv
	}
	signed := op == ir.OpIDiv || op == ir.OpIMod

	sz := dest.Size()
	if sz.Size64 == 1 {
		sz = ir.SInt
	}
	rax := ir.AsSize(ir.Rax, widthOf(sz))
	rdx := ir.AsSize(ir.PtrD, widthOf(sz))

	if !(dest.Kind() == ir.KindRegister && ir.Same(dest.Reg(), ir.Rax)) {
		out.Append(ir.MustInstr(ir.OpMov, ir.Register(rax, sz), dest))
	}

	if hwOp == ir.OpMul {
		if signed {
			out.Append(ir.MustInstr(ir.OpMov, ir.Register(rdx, sz), ir.Register(rax, sz)))
			out.Append(ir.MustInstr(ir.OpSar, ir.Register(rdx, sz), ir.Constant(ir.SByte, 63)))
		} else {
			out.Append(ir.MustInstr(ir.OpBXor, ir.Register(rdx, sz), ir.Register(rdx, sz)))
		}
	} else if signed {
		out.Append(ir.MustInstr(ir.OpMov, ir.Register(rdx, sz), ir.Register(rax, sz)))
		out.Append(ir.MustInstr(ir.OpSar, ir.Register(rdx, sz), ir.Constant(ir.SByte, 63)))
	} else {
		out.Append(ir.MustInstr(ir.OpBXor, ir.Register(rdx, sz), ir.Register(rdx, sz)))
	}

	divisor := src
	if divisor.Kind() == ir.KindConstant {
		tmp := ir.AsSize(xform.UnusedReg(live, scratchGP), widthOf(sz))
		out.Append(ir.MustInstr(ir.OpMov, ir.Register(tmp, sz), divisor))
		divisor = ir.Register(tmp, sz)
	}

	out.Append(ir.MustInstr(hwOp, ir.Register(rax, sz), divisor).WithLabels(instr.Labels()...))

	result := rax
	if isMod {
		result = rdx
	}
	if !(dest.Kind() == ir.KindRegister && ir.Same(dest.Reg(), result)) {
		out.Append(ir.MustInstr(ir.OpMov, dest, ir.Register(result, sz)))
	}
	return nil
}

// lowerLea spills the computed address through a scratch pointer
// register when the destination the frontend gave it isn't itself a
// register (the encoder requires a register lea destination).
func (p *loweringPass) lowerLea(out *ir.Listing, instr ir.Instr, live ir.RegSet) error {
	if instr.Dest.Kind() == ir.KindRegister {
		out.Append(instr)
		return nil
	}
	tmp, usedPtrD := pickLeaScratch(live)
	if usedPtrD {
		out.Append(ir.MustInstr(ir.OpPush, ir.None, ir.Register(ir.Rdx, ir.SLong)))
	}
	out.Append(ir.MustInstr(ir.OpLea, ir.Register(tmp, ir.SPtr), instr.Src).WithLabels(instr.Labels()...))
	out.Append(ir.MustInstr(ir.OpMov, instr.Dest, ir.Register(tmp, ir.SPtr)))
	if usedPtrD {
		out.Append(ir.MustInstr(ir.OpPop, ir.Register(ir.Rdx, ir.SLong), ir.None))
	}
	return nil
}

func pickLeaScratch(live ir.RegSet) (ir.Reg, bool) {
	if r := xform.UnusedReg(live, scratchGP); r != ir.NoReg {
		return ir.AsSize(r, ir.WidthLong), false
	}
	return ir.AsSize(ir.PtrD, ir.WidthLong), true
}

// lowerCall expands a buffered fnParam/fnParamRef run into pushes for
// every argument (right to left) followed by pops into the classified
// integer argument registers (left to right), leaving any stack-spilled
// trailing arguments exactly where the all-push pass left them. This
// sidesteps the dependency-cycle register-assignment algorithm spec
// describes at the cost of extra stack traffic.
func (p *loweringPass) lowerCall(out *ir.Listing, instr ir.Instr, live ir.RegSet) error {
	args := p.st.args
	p.st.args = nil

	types := make([]ir.TypeDesc, len(args))
	for i, a := range args {
		types[i] = a.typ
	}
	placements := p.st.sysv.ClassifyParams(types)

	for i := len(args) - 1; i >= 0; i-- {
		v := args[i].value
		if args[i].byRef {
			tmp := ir.AsSize(xform.UnusedReg(live, scratchGP), ir.WidthLong)
			out.Append(ir.MustInstr(ir.OpLea, ir.Register(tmp, ir.SPtr), v))
			out.Append(ir.MustInstr(ir.OpPush, ir.None, ir.Register(tmp, ir.SPtr)))
			continue
		}
		if v.Kind() == ir.KindRegister {
			out.Append(ir.MustInstr(ir.OpPush, ir.None, ir.Register(ir.AsSize(v.Reg(), ir.WidthLong), ir.SPtr)))
			continue
		}
		tmp := ir.AsSize(xform.UnusedReg(live, scratchGP), ir.WidthLong)
		out.Append(ir.MustInstr(ir.OpMov, ir.Register(tmp, ir.SPtr), v))
		out.Append(ir.MustInstr(ir.OpPush, ir.None, ir.Register(tmp, ir.SPtr)))
	}

	// Only integer-class register args can transit through push/pop;
	// an SSE-classified argument stays on the stack here and needs a
	// movsd/movss load into its xmm register, which floating-point
	// argument support doesn't wire up yet (see DESIGN.md).
	for _, pl := range placements {
		if pl.Memory || len(pl.Eightbytes) == 0 {
			continue
		}
		loc := pl.Eightbytes[0]
		if !loc.InReg || loc.Class != abi.ClassInteger {
			continue
		}
		out.Append(ir.MustInstr(ir.OpPop, ir.Register(ir.AsSize(loc.Reg, ir.WidthLong), ir.SPtr), ir.None))
	}

	call := ir.MustInstr(ir.OpCall, ir.None, instr.Src).WithLabels(instr.Labels()...)
	call.Cond = instr.Cond
	out.Append(call)

	if instr.Dest.Kind() != ir.KindNone {
		out.Append(ir.MustInstr(ir.OpMov, instr.Dest, ir.Register(ir.AsSize(ir.Rax, widthOf(instr.Dest.Size())), instr.Dest.Size())))
	}
	return nil
}
