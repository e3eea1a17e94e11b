package x64

import (
	"fmt"

	"github.com/ngenio/ngen/abi"
	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/output"
	"github.com/ngenio/ngen/xform"
)

// Arena is the System V x86-64 target: it composes invalid-instruction
// lowering, frame layout, frame-marker expansion and the byte encoder
// into the five operations the dispatch layer drives every function
// through. One Arena transforms functions one at a time — Transform
// records the layout and return-placement decisions for whichever
// function it just lowered, and Output/LabelOutput/CodeOutput read
// that same state back, so a caller must finish a function's sizing
// and emitting passes before calling Transform again for the next one.
//
// Grounded on spec §4.10's five-method interface; the per-function
// statefulness mirrors the teacher's own Backend implementations
// (arm64_backend.go, wasm_backend.go), which likewise hold one
// function's working state in struct fields between pipeline stages
// rather than threading it through every call.
type Arena struct {
	sysv abi.SystemVAMD64

	layout       *Layout
	encoder      *Encoder
	resultType   ir.TypeDesc
	hasResult    bool
	result       abi.ResultPlacement
	hiddenResult ir.Reg
	hasHidden    bool
}

// NewArena creates an x86-64 System V target.
func NewArena() *Arena { return &Arena{} }

// Transform lowers listing's invalid instructions, computes its stack
// layout, and expands every frame marker (prolog/epilog, block entry/
// exit, return) into concrete instructions, leaving only forms the
// encoder accepts directly. bin is accepted per spec's Arena.Transform
// signature for pooling large constants or dat blocks a later pass
// needs; this backend's large-constant lowering (resolveLargeConst)
// embeds immediates directly via movabs instead, so bin goes unused —
// see DESIGN.md.
func (a *Arena) Transform(listing *ir.Listing, bin *output.Binary) (*ir.Listing, error) {
	params := paramVars(listing)
	paramTypes := make([]ir.TypeDesc, len(params))
	for i, v := range params {
		paramTypes[i] = listing.ParamDesc(v)
	}

	a.resultType, a.hasResult = listing.Result()
	a.hasHidden = false
	if a.hasResult {
		a.result = a.sysv.ClassifyResult(a.resultType)
	}

	var placements []abi.ParamPlacement
	if a.hasResult && a.result.MemoryReturn {
		// A memory-class result consumes the first integer argument
		// register for its hidden destination pointer before the real
		// parameters are classified (§4.5).
		hiddenType := ir.ComplexDesc(ir.SPtr, nil, nil)
		combined := append([]ir.TypeDesc{hiddenType}, paramTypes...)
		all := a.sysv.ClassifyParams(combined)
		a.hiddenResult = all[0].Eightbytes[0].Reg
		a.hasHidden = true
		placements = all[1:]
	} else {
		placements = a.sysv.ClassifyParams(paramTypes)
	}

	lowered, err := Lower(listing, placements)
	if err != nil {
		return nil, fmt.Errorf("x64: %w", err)
	}

	used := xform.AnalyzeUsedRegisters(lowered, true, callerSavedABI{a.sysv.CallerSavedRegs()})
	var savedRegs []ir.Reg
	for _, r := range a.sysv.CalleeSavedRegs() {
		if ir.Same(r, ir.PtrFrame) {
			continue // rbp is always pushed/popped directly by Prolog/Epilog
		}
		if used.AllUsed().Has(r) {
			savedRegs = append(savedRegs, r)
		}
	}

	a.layout = Build(lowered, placements, params, savedRegs)
	a.encoder = NewEncoder(a.layout)

	expand := NewFrameExpand(a.layout, a.resultType, a.hasResult, a.result, a.hiddenResult, a.hasHidden)
	final, err := xform.Run(expand, lowered)
	if err != nil {
		return nil, fmt.Errorf("x64: frame expansion: %w", err)
	}
	return final, nil
}

// Output drives the encoder over listing (the Listing Transform just
// returned) into out, the shared sizing/emitting sink.
func (a *Arena) Output(listing *ir.Listing, out output.Output) error {
	if a.encoder == nil {
		return fmt.Errorf("x64: Output called before Transform")
	}
	return a.encoder.Encode(listing, out)
}

// LabelOutput creates the sizing pass for this target's pointer width.
func (a *Arena) LabelOutput() *output.LabelOutput {
	return output.NewLabelOutput(8)
}

// CodeOutput creates the emitting pass, writing into bin's Writer at
// its current offset. size and refCount are accepted per spec's
// Arena.CodeOutput signature (a prior LabelOutput pass's measurements,
// useful for a caller that wants to preallocate); CodeOutput's own
// Writer already grows on demand, so this backend doesn't need to use
// them itself.
func (a *Arena) CodeOutput(bin *output.Binary, offsets map[ir.Label]uint32, size uint32, refCount uint32) *output.CodeOutput {
	return output.NewCodeOutput(bin.Writer(), 8, offsets)
}

// RemoveFnRegs strikes every register the System V ABI marks
// caller-saved from regs, since a call clobbers them.
func (a *Arena) RemoveFnRegs(regs *ir.RegSet) {
	for _, r := range a.sysv.CallerSavedRegs() {
		regs.Remove(r)
	}
}
