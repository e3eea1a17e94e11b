package x64

import (
	"github.com/ngenio/ngen/abi"
	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/xform"
)

// Layout extends the generic naive variable layout with the System V
// details the platform needs: stack-passed parameters placed above
// the saved frame pointer, register-passed parameters spilled to slots
// placed after (below) all locals, then (if used) the EH partId/owner
// slots and callee-saved register slots, and a final round-up to 16 bytes for SIMD
// alignment before `call`.
//
// Grounded on spec's placement rule directly (§4.3) since the teacher
// has no variable-layout pass of its own (`register_allocator.go`
// only tracks live ranges, not stack slots); the spill-slot/stack-
// offset bookkeeping style follows that file's `spillSlots` map
// regardless.
type Layout struct {
	*xform.Layout
	savedRegs  []ir.Reg
	savedSlots map[uint32]ir.Offset
	ehSlot     ir.Offset
	hasEH      bool
}

const sPtr = 8 // x86-64 pointer size

// Build produces the platform layout for listing: stack-passed
// parameters at positive offsets starting at +2*sPtr above rbp
// (return address + saved rbp), and, at negative offsets, the locals
// followed by the remaining register-passed parameters' spill slots,
// the EH slots and the saved registers, each further below rbp than
// the last; the register-parameter spill slots therefore lie below
// the locals, not between rbp and the first local. The total is
// re-aligned to 16 bytes.
func Build(listing *ir.Listing, placements []abi.ParamPlacement, params []ir.Variable, usedRegs []ir.Reg) *Layout {
	naive := xform.ComputeNaive(listing, ir.SPtr)
	// ComputeNaive hands back each local's start as a positive distance
	// below rbp; turn every one into the actual (negative) rbp-relative
	// displacement of the local's lowest byte, which the encoder and
	// frame lowering use directly, so OffsetOf never needs a sign
	// correction at the call site.
	for _, v := range listing.AllVars() {
		if listing.IsParam(v) {
			continue
		}
		off := naive.OffsetOf(v)
		naive.SetOffset(v, negate(off, listing.VarSize(v)))
	}
	l := &Layout{Layout: naive, savedSlots: map[uint32]ir.Offset{}}

	stackOff := int64(2 * sPtr)
	for i, v := range params {
		p := placements[i]
		if p.Memory {
			l.SetOffset(v, ir.Offset{O64: stackOff})
			stackOff += 8
			continue
		}
		// Register-passed parameter: reserve a spill slot below the
		// locals, by extending the running total the same way a local
		// would be, then negating the same way.
		off := l.Extend(ir.SPtr)
		l.SetOffset(v, negate(off, ir.SPtr))
	}

	if listing.ExceptionHandler() {
		l.hasEH = true
		// partId takes the upper half of the slot; the owner word is
		// the lower half (see EHOwnerSlot).
		l.ehSlot = negate(l.Extend(ir.Size{Size64: 16, Align64: 8, Size32: 8, Align32: 4}), ir.SPtr)
	}

	l.savedRegs = append([]ir.Reg(nil), usedRegs...)
	for _, r := range l.savedRegs {
		off := l.Extend(ir.SPtr)
		l.savedSlots[r.Key()] = negate(off, ir.SPtr)
	}

	l.AlignTotal(ir.Size{Size64: 16, Align64: 16, Size32: 4, Align32: 4})
	return l
}

// negate turns an Extend-returned start (the positive distance below
// rbp of a slot's upper end) and the slot's size into the signed
// displacement of the slot's lowest byte, used everywhere offsets are
// actually emitted.
func negate(o ir.Offset, sz ir.Size) ir.Offset {
	return ir.Offset{O32: -(o.O32 + int32(sz.Size32)), O64: -(o.O64 + int64(sz.Size64))}
}

// SavedRegs returns the callee-saved registers this layout reserved
// slots for, in the order they are pushed during prolog (and popped
// in reverse during epilog).
func (l *Layout) SavedRegs() []ir.Reg { return l.savedRegs }

// SavedSlot returns the frame offset reserved for a callee-saved
// register's spilled value.
func (l *Layout) SavedSlot(r ir.Reg) ir.Offset { return l.savedSlots[r.Key()] }

// HasEHSlot reports whether this layout reserved the partId/owner EH
// words.
func (l *Layout) HasEHSlot() bool { return l.hasEH }

// EHSlot returns the partId word's frame offset, the half of the
// 16-byte EH slot nearer rbp.
func (l *Layout) EHSlot() ir.Offset { return l.ehSlot }

// EHOwnerSlot returns the owner-pointer word's frame offset, the other
// half of the 16-byte EH slot (8 bytes further from rbp than EHSlot).
func (l *Layout) EHOwnerSlot() ir.Offset {
	return ir.Offset{O32: l.ehSlot.O32 - 4, O64: l.ehSlot.O64 - 8}
}
