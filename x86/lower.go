package x86

import (
	"fmt"

	"github.com/ngenio/ngen/abi"
	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/xform"
)

// scratchGP32 is the preference order invalid-instruction lowering
// picks scratch registers from: caller-saved first (eax excluded since
// it's the mul/div accumulator and the return register), ebx/esi/edi
// last since using one of those forces an extra prolog spill.
var scratchGP32 = []ir.Reg{
	ir.Ecx, ir.Edx, ir.Esi, ir.Edi, ir.Ebx,
}

type callerSavedABI struct{ regs []ir.Reg }

func (a callerSavedABI) CallerSaved() ir.RegSet {
	rs := ir.NewRegSet(false)
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

// lowerState is x64/lower.go's lowerState narrowed to cdecl: there is
// no register-argument bank to classify against, so it only tracks
// used-register dataflow, hidden-pointer parameters and the in-flight
// fnParam buffer.
type lowerState struct {
	cdecl       abi.Cdecl32
	used        *xform.UsedRegResult
	paramHidden map[ir.Variable]bool
	args        []pendingArg
}

// Lower rewrites listing into the forms the x86 encoder accepts
// directly, the 32-bit cdecl analogue of x64.Lower.
//
// Grounded on spec's invalid-instruction lowering responsibilities
// (§4.4), narrowed the way x64/lower.go's Lower is, to a convention
// that passes every argument on the stack instead of splitting across
// registers and memory.
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
	p.st.used = xform.AnalyzeUsedRegisters(ctx.Src, false, callerSavedABI{p.st.cdecl.CallerSavedRegs()})
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

	if isTwoOperandArith(instr.Op) && dest.IsMemory() && src.IsMemory() {
		tmp := ir.AsSize(xform.UnusedReg(live, scratchGP32), widthOf(src.Size()))
		out.Append(ir.MustInstr(ir.OpMov, ir.Register(tmp, src.Size()), src).WithLabels(instr.Labels()...))
		src = ir.Register(tmp, src.Size())
		out.Append(ir.MustInstr(instr.Op, dest, src))
		return nil
	}

	rebuilt, err := ir.NewInstr(instr.Op, dest, src)
	if err != nil {
		return fmt.Errorf("x86: lowering %s: %w", instr.Op, err)
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

// indirectComplexParam rewrites a reference to a ComplexDesc parameter
// (passed by hidden pointer, per abi.Cdecl32.ClassifyParams) into a
// dereference through the pointer the caller actually pushed.
func (p *loweringPass) indirectComplexParam(out *ir.Listing, op ir.Operand, live ir.RegSet) ir.Operand {
	if op.Kind() != ir.KindVariable || !p.st.paramHidden[op.Variable()] {
		return op
	}
	tmp := ir.AsSize(xform.UnusedReg(live, scratchGP32), ir.WidthInt)
	out.Append(ir.MustInstr(ir.OpMov, ir.Register(tmp, ir.SPtr), ir.VariableOp(op.Variable(), ir.Offset{}, ir.SPtr)))
	return ir.Relative(tmp, op.Offset(), op.Size())
}

// lowerShift normalizes a register-sourced shift count into cl, saving
// and restoring ecx around it when ecx isn't already the count.
func (p *loweringPass) lowerShift(out *ir.Listing, instr ir.Instr, live ir.RegSet) error {
	dest, src := instr.Dest, instr.Src
	if src.Kind() != ir.KindRegister || ir.Same(src.Reg(), ir.Ecx) {
		out.Append(instr)
		return nil
	}
	ecxLive := live.Has(ir.Ecx)
	if ecxLive {
		out.Append(ir.MustInstr(ir.OpPush, ir.None, ir.Register(ir.Ecx, ir.SInt)))
	}
	out.Append(ir.MustInstr(ir.OpMov, ir.Register(ir.Cl, ir.SByte), ir.Register(ir.AsSize(src.Reg(), ir.WidthByte), ir.SByte)))
	out.Append(ir.MustInstr(instr.Op, dest, ir.Register(ir.Cl, ir.SByte)).WithLabels(instr.Labels()...))
	if ecxLive {
		out.Append(ir.MustInstr(ir.OpPop, ir.Register(ir.Ecx, ir.SInt), ir.None))
	}
	return nil
}

// lowerDivide routes a mul/div/mod through eax/edx, the 32-bit
// analogue of x64/lower.go's lowerDivide. Byte-sized division is
// widened to int width first since the encoder only emits the wide
// group-3 opcode.
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
	if sz.Size32 == 1 {
		sz = ir.SInt
	}
	eax := ir.AsSize(ir.Eax, widthOf(sz))
	edx := ir.AsSize(ir.Edx, widthOf(sz))

	if !(dest.Kind() == ir.KindRegister && ir.Same(dest.Reg(), ir.Eax)) {
		out.Append(ir.MustInstr(ir.OpMov, ir.Register(eax, sz), dest))
	}

	if hwOp == ir.OpMul {
		if signed {
			out.Append(ir.MustInstr(ir.OpMov, ir.Register(edx, sz), ir.Register(eax, sz)))
			out.Append(ir.MustInstr(ir.OpSar, ir.Register(edx, sz), ir.Constant(ir.SByte, 31)))
		} else {
			out.Append(ir.MustInstr(ir.OpBXor, ir.Register(edx, sz), ir.Register(edx, sz)))
		}
	} else if signed {
		out.Append(ir.MustInstr(ir.OpMov, ir.Register(edx, sz), ir.Register(eax, sz)))
		out.Append(ir.MustInstr(ir.OpSar, ir.Register(edx, sz), ir.Constant(ir.SByte, 31)))
	} else {
		out.Append(ir.MustInstr(ir.OpBXor, ir.Register(edx, sz), ir.Register(edx, sz)))
	}

	divisor := src
	if divisor.Kind() == ir.KindConstant {
		tmp := ir.AsSize(xform.UnusedReg(live, scratchGP32), widthOf(sz))
		out.Append(ir.MustInstr(ir.OpMov, ir.Register(tmp, sz), divisor))
		divisor = ir.Register(tmp, sz)
	}

	out.Append(ir.MustInstr(hwOp, ir.Register(eax, sz), divisor).WithLabels(instr.Labels()...))

	result := eax
	if isMod {
		result = edx
	}
	if !(dest.Kind() == ir.KindRegister && ir.Same(dest.Reg(), result)) {
		out.Append(ir.MustInstr(ir.OpMov, dest, ir.Register(result, sz)))
	}
	return nil
}

// lowerLea spills the computed address through a scratch register
// when the destination isn't itself a register.
func (p *loweringPass) lowerLea(out *ir.Listing, instr ir.Instr, live ir.RegSet) error {
	if instr.Dest.Kind() == ir.KindRegister {
		out.Append(instr)
		return nil
	}
	tmp, usedEdx := pickLeaScratch(live)
	if usedEdx {
		out.Append(ir.MustInstr(ir.OpPush, ir.None, ir.Register(ir.Edx, ir.SInt)))
	}
	out.Append(ir.MustInstr(ir.OpLea, ir.Register(tmp, ir.SPtr), instr.Src).WithLabels(instr.Labels()...))
	out.Append(ir.MustInstr(ir.OpMov, instr.Dest, ir.Register(tmp, ir.SPtr)))
	if usedEdx {
		out.Append(ir.MustInstr(ir.OpPop, ir.Register(ir.Edx, ir.SInt), ir.None))
	}
	return nil
}

func pickLeaScratch(live ir.RegSet) (ir.Reg, bool) {
	if r := xform.UnusedReg(live, scratchGP32); r != ir.NoReg {
		return ir.AsSize(r, ir.WidthInt), false
	}
	return ir.Edx, true
}

// lowerCall expands a buffered fnParam/fnParamRef run into pushes for
// every argument, right to left (cdecl's fixed argument order), a
// call, and a caller-side `add esp, N` cleanup — cdecl callees never
// pop their own arguments, unlike System V's register bank.
//
// Grounded on spec's call-lowering responsibility (§4.4), adapted from
// x64/lower.go's lowerCall by dropping its register-argument pop pass
// entirely: abi.Cdecl32.ClassifyParams places everything in memory, so
// there is nothing to pop into.
func (p *loweringPass) lowerCall(out *ir.Listing, instr ir.Instr, live ir.RegSet) error {
	args := p.st.args
	p.st.args = nil

	var pushedBytes int64
	for i := len(args) - 1; i >= 0; i-- {
		v := args[i].value
		if args[i].byRef {
			tmp := ir.AsSize(xform.UnusedReg(live, scratchGP32), ir.WidthInt)
			out.Append(ir.MustInstr(ir.OpLea, ir.Register(tmp, ir.SPtr), v))
			out.Append(ir.MustInstr(ir.OpPush, ir.None, ir.Register(tmp, ir.SPtr)))
			pushedBytes += 4
			continue
		}
		if v.Kind() == ir.KindRegister {
			out.Append(ir.MustInstr(ir.OpPush, ir.None, ir.Register(ir.AsSize(v.Reg(), ir.WidthInt), ir.SInt)))
			pushedBytes += 4
			continue
		}
		sz := args[i].typ.Size()
		if sz.Size32 > 4 {
			// Larger-than-word values (8-byte primitives, small Simple
			// aggregates) push high-to-low so the low word ends up at
			// the lower address, matching cdecl's argument image.
			hi := ir.VariableOp(v.Variable(), ir.Offset{O32: v.Offset().O32 + 4}, ir.SInt)
			out.Append(ir.MustInstr(ir.OpPush, ir.None, hi))
			lo := ir.VariableOp(v.Variable(), v.Offset(), ir.SInt)
			out.Append(ir.MustInstr(ir.OpPush, ir.None, lo))
			pushedBytes += 8
			continue
		}
		tmp := ir.AsSize(xform.UnusedReg(live, scratchGP32), ir.WidthInt)
		out.Append(ir.MustInstr(ir.OpMov, ir.Register(tmp, ir.SInt), v))
		out.Append(ir.MustInstr(ir.OpPush, ir.None, ir.Register(tmp, ir.SInt)))
		pushedBytes += 4
	}

	call := ir.MustInstr(ir.OpCall, ir.None, instr.Src).WithLabels(instr.Labels()...)
	call.Cond = instr.Cond
	out.Append(call)

	if pushedBytes > 0 {
		out.Append(ir.MustInstr(ir.OpAdd, ir.Register(ir.AsSize(ir.PtrStack, ir.WidthInt), ir.SInt), ir.Constant(ir.SInt, pushedBytes)))
	}

	if instr.Dest.Kind() != ir.KindNone {
		out.Append(ir.MustInstr(ir.OpMov, instr.Dest, ir.Register(ir.AsSize(ir.Eax, widthOf(instr.Dest.Size())), instr.Dest.Size())))
	}
	return nil
}
