package x64

import (
	"testing"

	"github.com/ngenio/ngen/abi"
	"github.com/ngenio/ngen/ir"
)

func TestBuildSpillsRegisterParamBelowRbp(t *testing.T) {
	l := ir.NewListing()
	p0 := l.CreateParam(ir.PrimitiveDesc(ir.PrimInteger, ir.SPtr))

	placements := (abi.SystemVAMD64{}).ClassifyParams([]ir.TypeDesc{
		ir.PrimitiveDesc(ir.PrimInteger, ir.SPtr),
	})
	if placements[0].Memory {
		t.Fatalf("first integer param should classify to a register, not memory")
	}

	layout := Build(l, placements, []ir.Variable{p0}, nil)
	off := layout.OffsetOf(p0)
	if off.O64 >= 0 {
		t.Fatalf("register-passed param's spill slot offset = %d, want negative (below rbp)", off.O64)
	}
}

func TestBuildPlacesOverflowStackParamPastReturnAddressAndSavedRbp(t *testing.T) {
	l := ir.NewListing()
	intTypes := make([]ir.TypeDesc, 7)
	params := make([]ir.Variable, 7)
	for i := range intTypes {
		intTypes[i] = ir.PrimitiveDesc(ir.PrimInteger, ir.SPtr)
		params[i] = l.CreateParam(intTypes[i])
	}

	placements := (abi.SystemVAMD64{}).ClassifyParams(intTypes)
	if !placements[6].Memory {
		t.Fatalf("7th integer arg should overflow to memory on System V (only 6 int arg registers)")
	}

	layout := Build(l, placements, params, nil)
	off := layout.OffsetOf(params[6])
	if off.O64 != 16 {
		t.Fatalf("first stack-passed param offset = %d, want 16 (past return address + saved rbp)", off.O64)
	}
}

func TestBuildWithExceptionHandlerReservesTwoWordEHSlot(t *testing.T) {
	l := ir.NewListing()
	l.UseExceptionHandler()

	layout := Build(l, nil, nil, nil)
	if !layout.HasEHSlot() {
		t.Fatalf("expected HasEHSlot() after UseExceptionHandler")
	}
	if layout.EHOwnerSlot().O64 != layout.EHSlot().O64-8 {
		t.Fatalf("EH owner slot should be 8 bytes further from rbp than EHSlot on x64")
	}
}

func TestBuildReservesDistinctSavedRegisterSlots(t *testing.T) {
	l := ir.NewListing()
	layout := Build(l, nil, nil, []ir.Reg{ir.Rbx, ir.R12})

	s1 := layout.SavedSlot(ir.Rbx)
	s2 := layout.SavedSlot(ir.R12)
	if s1 == s2 {
		t.Fatalf("two saved registers got the same slot: %v", s1)
	}
}
