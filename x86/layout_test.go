package x86

import (
	"testing"

	"github.com/ngenio/ngen/abi"
	"github.com/ngenio/ngen/ir"
)

func TestBuildPlacesStackParamPastReturnAddressAndSavedEbp(t *testing.T) {
	l := ir.NewListing()
	p0 := l.CreateParam(ir.PrimitiveDesc(ir.PrimInteger, ir.SInt))
	p1 := l.CreateParam(ir.PrimitiveDesc(ir.PrimInteger, ir.SInt))

	placements := (abi.Cdecl32{}).ClassifyParams([]ir.TypeDesc{
		ir.PrimitiveDesc(ir.PrimInteger, ir.SInt),
		ir.PrimitiveDesc(ir.PrimInteger, ir.SInt),
	})

	layout := Build(l, placements, []ir.Variable{p0, p1}, nil)

	if off := layout.OffsetOf(p0); off.O32 != 8 {
		t.Fatalf("first stack param offset = %d, want 8 (past return address + saved ebp)", off.O32)
	}
	if off := layout.OffsetOf(p1); off.O32 != 12 {
		t.Fatalf("second stack param offset = %d, want 12", off.O32)
	}
}

func TestBuildPlacesLocalsBelowEbp(t *testing.T) {
	l := ir.NewListing()
	v := l.CreateVar(ir.Root, ir.SInt, nil, 0)

	layout := Build(l, nil, nil, nil)

	off := layout.OffsetOf(v)
	if off.O32 >= 0 {
		t.Fatalf("local variable offset = %d, want negative (below ebp)", off.O32)
	}
}

func TestBuildReservesSavedRegisterSlots(t *testing.T) {
	l := ir.NewListing()
	layout := Build(l, nil, nil, []ir.Reg{ir.Ebx, ir.Esi})

	slot1 := layout.SavedSlot(ir.Ebx)
	slot2 := layout.SavedSlot(ir.Esi)
	if slot1 == slot2 {
		t.Fatalf("two saved registers got the same slot: %v", slot1)
	}
	if slot1.O32 >= 0 || slot2.O32 >= 0 {
		t.Fatalf("saved register slots should be below ebp, got %v and %v", slot1, slot2)
	}
}

func TestBuildWithExceptionHandlerReservesEHSlot(t *testing.T) {
	l := ir.NewListing()
	l.UseExceptionHandler()

	layout := Build(l, nil, nil, nil)
	if !layout.HasEHSlot() {
		t.Fatalf("expected HasEHSlot() after UseExceptionHandler")
	}
	if layout.EHOwnerSlot().O32 != layout.EHSlot().O32-4 {
		t.Fatalf("EH owner slot should be 4 bytes further from ebp than EHSlot")
	}
}
