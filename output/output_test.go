package output

import (
	"testing"

	"github.com/ngenio/ngen/ir"
)

func TestLabelOutputThenCodeOutputAgreeOnSize(t *testing.T) {
	lbl := ir.Label(1)

	lo := NewLabelOutput(8)
	lo.PutByte(0x90)
	lo.Mark(lbl)
	lo.PutInt(0)
	lo.PutRelative(lbl)

	w := NewWriter()
	co := NewCodeOutput(w, 8, lo.Offsets())
	co.PutByte(0x90)
	co.Mark(lbl)
	co.PutInt(0xAABBCCDD)
	co.PutRelative(lbl)

	if got, want := uint32(w.Len()), lo.Size(); got != want {
		t.Fatalf("code pass wrote %d bytes, label pass measured %d", got, want)
	}
}

func TestCodeOutputPutRelativeIsBackwardDisplacement(t *testing.T) {
	lbl := ir.Label(7)
	offsets := map[ir.Label]uint32{lbl: 0}

	w := NewWriter()
	w.WriteByte(0x90) // one byte before the relative field starts
	co := NewCodeOutput(w, 8, offsets)
	co.PutRelative(lbl)

	got := int32(w.Bytes()[1]) | int32(w.Bytes()[2])<<8 | int32(w.Bytes()[3])<<16 | int32(w.Bytes()[4])<<24
	if got != -4 {
		t.Fatalf("displacement = %d, want -4 (label at function-local 0, field ends at function-local 4)", got)
	}
}

func TestBinaryInternConstantDeduplicates(t *testing.T) {
	b := NewBinary()
	off1 := b.InternConstant("pi", []byte{1, 2, 3, 4, 5, 6, 7, 8})
	off2 := b.InternConstant("pi", []byte{9, 9, 9, 9, 9, 9, 9, 9})
	if off1 != off2 {
		t.Fatalf("interning the same key twice gave offsets %d and %d", off1, off2)
	}
}

func TestWriterMarkRefRecordsKindAndOffset(t *testing.T) {
	w := NewWriter()
	w.WriteByte(0x90)
	w.MarkRef(RefGCPtr, 8)
	w.WriteU64(0)

	recs := w.Relocations()
	if len(recs) != 1 {
		t.Fatalf("expected 1 relocation, got %d", len(recs))
	}
	if recs[0].Offset != 1 || recs[0].Kind != RefGCPtr || recs[0].Width != 8 {
		t.Fatalf("unexpected relocation: %+v", recs[0])
	}
}
