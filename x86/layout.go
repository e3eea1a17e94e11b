package x86

import (
	"github.com/ngenio/ngen/abi"
	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/xform"
)

// Layout is x64/layout.go's Layout generalized down to cdecl: every
// parameter already has a StackOffset from abi.Cdecl32.ClassifyParams
// (cdecl never passes anything in a register), so Build only adds the
// frame-pointer/return-address base and places locals, the EH slot and
// any callee-saved spill slots below ebp.
//
// Grounded on spec's placement rule (§4.3), the same way x64/layout.go
// is; the teacher has no 32-bit codegen of its own to ground the cdecl
// specifics on, so this mirrors x64's shape exactly, narrowed to 32
// bits.
type Layout struct {
	*xform.Layout
	savedRegs  []ir.Reg
	savedSlots map[uint32]ir.Offset
	ehSlot     ir.Offset
	hasEH      bool
}

const sPtr32 = 4

// Build produces the cdecl layout for listing: stack parameters at
// their classified offset plus the 2*sPtr32 base (return address and
// saved ebp), locals and EH/saved-register slots at negative offsets
// below them, re-aligned to 4 bytes.
func Build(listing *ir.Listing, placements []abi.ParamPlacement, params []ir.Variable, usedRegs []ir.Reg) *Layout {
	naive := xform.ComputeNaive(listing, ir.SInt)
	for _, v := range listing.AllVars() {
		if listing.IsParam(v) {
			continue
		}
		off := naive.OffsetOf(v)
		naive.SetOffset(v, negate(off, listing.VarSize(v)))
	}
	l := &Layout{Layout: naive, savedSlots: map[uint32]ir.Offset{}}

	base := int32(2 * sPtr32)
	for i, v := range params {
		p := placements[i]
		l.SetOffset(v, ir.Offset{O32: base + p.StackOffset.O32})
	}

	if listing.ExceptionHandler() {
		l.hasEH = true
		l.ehSlot = negate(l.Extend(ir.Size{Size32: 8, Align32: 4, Size64: 8, Align64: 4}), ir.SInt)
	}

	l.savedRegs = append([]ir.Reg(nil), usedRegs...)
	for _, r := range l.savedRegs {
		off := l.Extend(ir.SInt)
		l.savedSlots[r.Key()] = negate(off, ir.SInt)
	}

	l.AlignTotal(ir.Size{Size32: 4, Align32: 4, Size64: 4, Align64: 4})
	return l
}

// negate turns an Extend-returned start (the positive distance below
// ebp of a slot's upper end) and the slot's size into the signed
// displacement of the slot's lowest byte — see x64/layout.go's
// identical helper for why.
func negate(o ir.Offset, sz ir.Size) ir.Offset {
	return ir.Offset{O32: -(o.O32 + int32(sz.Size32)), O64: -(o.O64 + int64(sz.Size64))}
}

func (l *Layout) SavedRegs() []ir.Reg { return l.savedRegs }

func (l *Layout) SavedSlot(r ir.Reg) ir.Offset { return l.savedSlots[r.Key()] }

func (l *Layout) HasEHSlot() bool { return l.hasEH }

// EHSlot returns the partId word's frame offset.
func (l *Layout) EHSlot() ir.Offset { return l.ehSlot }

// EHOwnerSlot returns the owner-pointer word's frame offset, 4 bytes
// further from ebp than EHSlot.
func (l *Layout) EHOwnerSlot() ir.Offset {
	return ir.Offset{O32: l.ehSlot.O32 - 4}
}
