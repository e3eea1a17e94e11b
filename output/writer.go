// Package output buffers emitted machine code and data into an
// in-memory Binary and, once a listing's final layout is known, maps
// that Binary into an executable code region.
//
// Grounded on the teacher's BufferWrapper/ExecutableBuilder pattern
// (emit.go, main.go): a bytes.Buffer-backed writer with byte/word/
// dword/qword append methods, fed by every per-mnemonic emitter.
package output

import (
	"bytes"
	"encoding/binary"

	"github.com/ngenio/ngen/internal/ngenlog"
)

// Writer accumulates a byte stream the way the teacher's BufferWrapper
// does, plus the relocation/reference bookkeeping spec's `dat` blocks
// and GC code references need that the teacher (which never patches
// already-emitted code) has no equivalent for.
type Writer struct {
	buf  bytes.Buffer
	recs []Relocation
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Len reports the number of bytes written so far; callers use it to
// compute relative offsets before a value's final address is known.
func (w *Writer) Len() int { return w.buf.Len() }

// Bytes returns the accumulated contents. The slice aliases the
// Writer's internal buffer and must not be retained past further
// writes.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) WriteByte(b byte) { w.buf.WriteByte(b) }

func (w *Writer) WriteBytes(bs []byte) { w.buf.Write(bs) }

func (w *Writer) WriteU16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf.Write(tmp[:])
}

func (w *Writer) WriteU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf.Write(tmp[:])
}

func (w *Writer) WriteU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf.Write(tmp[:])
}

// Pad appends n zero bytes, for padding up to an alignment boundary.
func (w *Writer) Pad(n int) {
	for i := 0; i < n; i++ {
		w.buf.WriteByte(0)
	}
}

// RefKind tags how the GC must treat a pointer-sized slot embedded in
// code, per the four categories the external GC understands.
type RefKind int

const (
	// RefJump is a 32-bit PC-relative branch target; the GC may widen
	// it to a 64-bit indirect jump if the target moves out of range.
	RefJump RefKind = iota
	// RefRaw is an absolute, unmanaged pointer (e.g. a libc symbol);
	// the GC never touches it.
	RefRaw
	// RefGCPtr is an absolute pointer to a GC-managed object.
	RefGCPtr
	// RefGCRelative is a 32-bit PC-relative offset to a GC-managed
	// object.
	RefGCRelative
)

// Relocation records one patchable slot: its file offset, its kind,
// and (for jump/gcRelative) the byte width of the relative field.
type Relocation struct {
	Offset int
	Kind   RefKind
	Width  int // 4 or 8
}

// MarkRef records a relocation at the Writer's current offset, for
// the code emitted immediately after the call. Backends call this
// right before writing a placeholder pointer field, so the recorded
// offset is that field's first byte.
func (w *Writer) MarkRef(kind RefKind, width int) {
	off := w.Len()
	w.recs = append(w.recs, Relocation{Offset: off, Kind: kind, Width: width})
	ngenlog.Default.Tracef("output: marked relocation kind=%d width=%d offset=%d", kind, width, off)
}

// Relocations returns every relocation recorded so far, in emission
// order.
func (w *Writer) Relocations() []Relocation { return w.recs }

// PatchU32 overwrites 4 bytes at offset, used once a jump's or a
// dat-pool reference's final displacement is known.
func (w *Writer) PatchU32(offset int, v uint32) {
	b := w.buf.Bytes()
	binary.LittleEndian.PutUint32(b[offset:offset+4], v)
}

// PatchU64 overwrites 8 bytes at offset.
func (w *Writer) PatchU64(offset int, v uint64) {
	b := w.buf.Bytes()
	binary.LittleEndian.PutUint64(b[offset:offset+8], v)
}
