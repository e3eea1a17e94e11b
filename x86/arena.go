package x86

import (
	"fmt"

	"github.com/ngenio/ngen/abi"
	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/output"
	"github.com/ngenio/ngen/xform"
)

// Arena is x64/arena.go's Arena narrowed to the cdecl x86-32 target:
// the same five-stage pipeline (classify, lower, analyze, lay out,
// expand), with every register-bank decision x64's Transform makes
// replaced by cdecl's all-stack convention.
//
// Grounded on spec §4.10's five-method interface, the same way
// x64/arena.go is.
type Arena struct {
	cdecl abi.Cdecl32

	layout     *Layout
	encoder    *Encoder
	resultType ir.TypeDesc
	hasResult  bool
	result     abi.ResultPlacement
	hiddenSlot ir.Offset
	hasHidden  bool
}

// NewArena creates a cdecl x86-32 target.
func NewArena() *Arena { return &Arena{} }

// Transform is x64/arena.go's Transform adapted to cdecl: a memory-
// class result's hidden destination pointer is a genuine leading
// parameter here (cdecl has no register bank to steal it from), so it
// gets a real stack slot from Layout.Build like any other parameter,
// not a dedicated register.
func (a *Arena) Transform(listing *ir.Listing, bin *output.Binary) (*ir.Listing, error) {
	params := paramVars(listing)
	paramTypes := make([]ir.TypeDesc, len(params))
	for i, v := range params {
		paramTypes[i] = listing.ParamDesc(v)
	}

	a.resultType, a.hasResult = listing.Result()
	a.hasHidden = false
	if a.hasResult {
		a.result = a.cdecl.ClassifyResult(a.resultType)
	}

	var placements []abi.ParamPlacement
	var hiddenPlacement abi.ParamPlacement
	if a.hasResult && a.result.MemoryReturn {
		hiddenType := ir.ComplexDesc(ir.SPtr, nil, nil)
		combined := append([]ir.TypeDesc{hiddenType}, paramTypes...)
		all := a.cdecl.ClassifyParams(combined)
		hiddenPlacement = all[0]
		a.hasHidden = true
		placements = all[1:]
	} else {
		placements = a.cdecl.ClassifyParams(paramTypes)
	}

	lowered, err := Lower(listing, placements)
	if err != nil {
		return nil, fmt.Errorf("x86: %w", err)
	}

	used := xform.AnalyzeUsedRegisters(lowered, false, callerSavedABI{a.cdecl.CallerSavedRegs()})
	var savedRegs []ir.Reg
	for _, r := range a.cdecl.CalleeSavedRegs() {
		if ir.Same(r, ir.PtrFrame) {
			continue // ebp is always pushed/popped directly by Prolog/Epilog
		}
		if used.AllUsed().Has(r) {
			savedRegs = append(savedRegs, r)
		}
	}

	a.layout = Build(lowered, placements, params, savedRegs)
	a.encoder = NewEncoder(a.layout)

	if a.hasHidden {
		a.hiddenSlot = ir.Offset{O32: int32(2*sPtr32) + hiddenPlacement.StackOffset.O32}
	}

	expand := NewFrameExpand(a.layout, a.resultType, a.hasResult, a.result, a.hiddenSlot, a.hasHidden)
	final, err := xform.Run(expand, lowered)
	if err != nil {
		return nil, fmt.Errorf("x86: frame expansion: %w", err)
	}
	return final, nil
}

// Output drives the encoder over listing (the Listing Transform just
// returned) into out, the shared sizing/emitting sink.
func (a *Arena) Output(listing *ir.Listing, out output.Output) error {
	if a.encoder == nil {
		return fmt.Errorf("x86: Output called before Transform")
	}
	return a.encoder.Encode(listing, out)
}

// LabelOutput creates the sizing pass for this target's pointer width.
func (a *Arena) LabelOutput() *output.LabelOutput {
	return output.NewLabelOutput(4)
}

// CodeOutput creates the emitting pass, writing into bin's Writer at
// its current offset. size and refCount are accepted per spec's
// Arena.CodeOutput signature; this backend's Writer already grows on
// demand so it doesn't need either (see DESIGN.md, same rationale as
// x64/arena.go's CodeOutput).
func (a *Arena) CodeOutput(bin *output.Binary, offsets map[ir.Label]uint32, size uint32, refCount uint32) *output.CodeOutput {
	return output.NewCodeOutput(bin.Writer(), 4, offsets)
}

// RemoveFnRegs strikes every register cdecl marks caller-saved from
// regs, since a call clobbers them.
func (a *Arena) RemoveFnRegs(regs *ir.RegSet) {
	for _, r := range a.cdecl.CallerSavedRegs() {
		regs.Remove(r)
	}
}
