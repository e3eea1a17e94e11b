package xform

import "github.com/ngenio/ngen/ir"

// Layout is the result of a variable-placement pass: one Offset per
// variable plus the total frame size. Platform layouts (x86.Layout,
// x64.Layout) wrap this with parameter offsets, spill slots and EH
// frame slots.
type Layout struct {
	offsets map[ir.Variable]ir.Offset
	total   ir.Size
}

// OffsetOf returns the offset assigned to v. Parameters read back
// ir.Offset{} from the naive layout; a platform layout overrides this.
func (l *Layout) OffsetOf(v ir.Variable) ir.Offset {
	return l.offsets[v]
}

// SetOffset lets a platform layout override or add an entry (used for
// parameters and spill slots the naive pass leaves at zero).
func (l *Layout) SetOffset(v ir.Variable, o ir.Offset) {
	if l.offsets == nil {
		l.offsets = map[ir.Variable]ir.Offset{}
	}
	l.offsets[v] = o
}

// Total returns the frame's total size for the given pointer width.
func (l *Layout) Total(ptr64 bool) uint32 { return l.total.Current(ptr64) }

// Extend grows the running total by extra, re-aligning as Size.Add
// would. Platform layouts use this to reserve spill slots and EH
// frame words after the naive pass has placed the user's variables.
func (l *Layout) Extend(extra ir.Size) ir.Offset {
	before32 := l.total.Size32
	before64 := l.total.Size64
	aligned32 := ir.AlignUp(before32, extra.Align32)
	aligned64 := ir.AlignUp(before64, extra.Align64)
	l.total = l.total.Add(extra)
	return ir.Offset{O32: int32(aligned32), O64: int64(aligned64)}
}

// AlignTotal rounds the running total up to align's alignment without
// reserving any space (used to round the final frame size up to
// pointer size, or to 16 bytes for SIMD on x86-64).
func (l *Layout) AlignTotal(align ir.Size) {
	l.total = l.total.Add(align.Alignment())
}

// ComputeNaive packs every non-parameter variable of listing in index
// order starting at offset 0, each aligned to its own size's
// alignment, then rounds the total up to pointer size. Parameters are
// left at Offset{} for a platform layout to fill in.
func ComputeNaive(listing *ir.Listing, ptrSize ir.Size) *Layout {
	l := &Layout{offsets: map[ir.Variable]ir.Offset{}}
	for _, v := range listing.AllVars() {
		if listing.IsParam(v) {
			l.offsets[v] = ir.Offset{}
			continue
		}
		off := l.Extend(listing.VarSize(v))
		l.offsets[v] = off
	}
	l.AlignTotal(ptrSize)
	return l
}
