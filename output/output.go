package output

import (
	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/refs"
)

// Output is the two-pass sink every backend's encoder writes through:
// a first LabelOutput pass computes label offsets and the total byte
// count without knowing final addresses, then a CodeOutput pass
// replays the identical emission sequence into a live Binary now that
// label offsets are known.
//
// Grounded on the original design's Output/LabelOutput/CodeOutput
// split (see SPEC_FULL.md's domain-stack notes); the teacher never
// needed two passes since its ELF section writer always has the text
// buffer in hand before it resolves addresses, so this is a
// teacher-idiom reinterpretation of a concept absent from the teacher
// itself.
type Output interface {
	PutByte(b byte)
	PutInt(w uint32)
	PutLong(w uint64)
	PutPtr(w uint64)

	// PutGcPtr writes an absolute pointer to a GC-managed object.
	PutGcPtr(w uint64)
	// PutGcRelative writes a pointer-sized PC-relative offset to a
	// GC-managed object.
	PutGcRelative(w uint64)
	// PutRelativeStatic writes a pointer-sized PC-relative offset to
	// an unmanaged (static) address.
	PutRelativeStatic(w uint64)
	// PutPtrSelf writes an absolute pointer to a location inside this
	// same Output (used by `dat` pool back-references).
	PutPtrSelf(w uint64)

	// Tell returns the current write offset from the start of this
	// Output.
	Tell() uint32

	// Mark records that label occurs at the current offset.
	Mark(label ir.Label)
	// PutRelative writes a 4-byte PC-relative displacement to label.
	PutRelative(label ir.Label)
	// PutAddress writes a pointer-sized absolute address of label.
	PutAddress(label ir.Label)

	// PutRelativeRef writes a pointer-sized PC-relative displacement
	// to a reference-system target, patched in place as the target
	// moves.
	PutRelativeRef(r *refs.Ref)
	// PutAddressRef writes a pointer-sized absolute address of a
	// reference-system target.
	PutAddressRef(r *refs.Ref)
}

// LabelOutput is the sizing pass: it records every label's offset and
// counts the references and total bytes a CodeOutput pass over the
// same instruction stream will need, without writing any bytes that
// matter.
type LabelOutput struct {
	ptrSize int
	offsets map[ir.Label]uint32
	size    uint32
	refs    uint32
}

// NewLabelOutput creates a sizing pass for a target with the given
// pointer width (4 on x86-32, 8 on x86-64).
func NewLabelOutput(ptrSize int) *LabelOutput {
	return &LabelOutput{ptrSize: ptrSize, offsets: map[ir.Label]uint32{}}
}

func (o *LabelOutput) PutByte(byte)    { o.size++ }
func (o *LabelOutput) PutInt(uint32)   { o.size += 4 }
func (o *LabelOutput) PutLong(uint64)  { o.size += 8 }
func (o *LabelOutput) PutPtr(uint64)   { o.size += uint32(o.ptrSize) }
func (o *LabelOutput) PutGcPtr(uint64) { o.size += uint32(o.ptrSize); o.refs++ }
func (o *LabelOutput) PutGcRelative(uint64) {
	o.size += uint32(o.ptrSize)
	o.refs++
}
func (o *LabelOutput) PutRelativeStatic(uint64) { o.size += uint32(o.ptrSize) }
func (o *LabelOutput) PutPtrSelf(uint64)        { o.size += uint32(o.ptrSize) }

func (o *LabelOutput) Tell() uint32 { return o.size }

func (o *LabelOutput) Mark(label ir.Label) { o.offsets[label] = o.size }
func (o *LabelOutput) PutRelative(ir.Label) { o.size += 4 }
func (o *LabelOutput) PutAddress(ir.Label)  { o.size += uint32(o.ptrSize) }

func (o *LabelOutput) PutRelativeRef(*refs.Ref) { o.size += uint32(o.ptrSize); o.refs++ }
func (o *LabelOutput) PutAddressRef(*refs.Ref)  { o.size += uint32(o.ptrSize); o.refs++ }

// Offsets returns every label's byte offset from the start of the
// function, as recorded during the sizing pass.
func (o *LabelOutput) Offsets() map[ir.Label]uint32 { return o.offsets }

// Size returns the total byte count the sizing pass measured.
func (o *LabelOutput) Size() uint32 { return o.size }

// Refs returns the number of GC-facing or reference-system slots
// that will need a Relocation recorded during the code pass.
func (o *LabelOutput) Refs() uint32 { return o.refs }

// CodeOutput is the emitting pass: it writes real bytes into a
// Writer, resolving label references against offsets a prior
// LabelOutput pass already measured, and recording a Relocation for
// every GC-facing or reference-system slot so the caller can hand
// them to the reference system and the external GC.
type CodeOutput struct {
	w          *Writer
	ptrSize    int
	labelBase  map[ir.Label]uint32
	funcOffset uint32
}

// NewCodeOutput creates an emitting pass writing into w, starting at
// the function's offset within w (so PutRelative/PutAddress can
// compute displacements relative to that function's own labels)
// using the label offsets a LabelOutput pass already measured.
func NewCodeOutput(w *Writer, ptrSize int, labelOffsets map[ir.Label]uint32) *CodeOutput {
	return &CodeOutput{w: w, ptrSize: ptrSize, labelBase: labelOffsets, funcOffset: uint32(w.Len())}
}

func (o *CodeOutput) PutByte(b byte)   { o.w.WriteByte(b) }
func (o *CodeOutput) PutInt(w uint32)  { o.w.WriteU32(w) }
func (o *CodeOutput) PutLong(w uint64) { o.w.WriteU64(w) }

func (o *CodeOutput) PutPtr(w uint64) {
	if o.ptrSize == 4 {
		o.w.WriteU32(uint32(w))
	} else {
		o.w.WriteU64(w)
	}
}

func (o *CodeOutput) PutGcPtr(w uint64) {
	o.w.MarkRef(RefGCPtr, o.ptrSize)
	o.PutPtr(w)
}

func (o *CodeOutput) PutGcRelative(w uint64) {
	o.w.MarkRef(RefGCRelative, o.ptrSize)
	o.PutPtr(w)
}

func (o *CodeOutput) PutRelativeStatic(w uint64) {
	o.w.MarkRef(RefRaw, o.ptrSize)
	o.PutPtr(w)
}

func (o *CodeOutput) PutPtrSelf(w uint64) { o.PutPtr(w) }

func (o *CodeOutput) Tell() uint32 { return uint32(o.w.Len()) - o.funcOffset }

func (o *CodeOutput) Mark(ir.Label) {}

// PutRelative writes the 4-byte PC-relative displacement from the
// end of this field to label's recorded offset, the `jump` GC
// reference kind.
func (o *CodeOutput) PutRelative(label ir.Label) {
	o.w.MarkRef(RefJump, 4)
	target := o.labelBase[label]
	here := o.Tell() + 4
	o.w.WriteU32(uint32(int32(target) - int32(here)))
}

func (o *CodeOutput) PutAddress(label ir.Label) {
	// Absolute label addresses are resolved by the relocation the
	// frame/arena pass records against the function's final load
	// address; the placeholder here is patched once that is known.
	o.w.MarkRef(RefRaw, o.ptrSize)
	o.PutPtr(uint64(o.labelBase[label]))
}

func (o *CodeOutput) PutRelativeRef(r *refs.Ref) {
	o.w.MarkRef(RefGCRelative, o.ptrSize)
	o.PutPtr(uint64(r.Address()))
}

func (o *CodeOutput) PutAddressRef(r *refs.Ref) {
	o.w.MarkRef(RefGCPtr, o.ptrSize)
	o.PutPtr(uint64(r.Address()))
}
