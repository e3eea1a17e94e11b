package xform

import "github.com/ngenio/ngen/ir"

import "testing"

func TestLayoutNoOverlap(t *testing.T) {
	l := ir.NewListing()
	block := l.CreateBlock(ir.Root)
	v1 := l.CreateVar(block, ir.SByte, nil, 0)
	v2 := l.CreateVar(block, ir.SLong, nil, 0)
	v3 := l.CreateVar(block, ir.SInt, nil, 0)

	layout := ComputeNaive(l, ir.SPtr)

	vars := []ir.Variable{v1, v2, v3}
	for i, a := range vars {
		for j, b := range vars {
			if i == j {
				continue
			}
			sa, sb := l.VarSize(a), l.VarSize(b)
			oa, ob := layout.OffsetOf(a).O64, layout.OffsetOf(b).O64
			aEnd := oa + int64(sa.Size64)
			bEnd := ob + int64(sb.Size64)
			if oa < bEnd && ob < aEnd {
				t.Fatalf("variables %d and %d overlap: [%d,%d) vs [%d,%d)", i, j, oa, aEnd, ob, bEnd)
			}
		}
	}
}

func TestLayoutParamsLeftZero(t *testing.T) {
	l := ir.NewListing()
	p := l.CreateParam(ir.PrimitiveDesc(ir.PrimInteger, ir.SInt))
	layout := ComputeNaive(l, ir.SPtr)
	if off := layout.OffsetOf(p); off.O64 != 0 || off.O32 != 0 {
		t.Fatalf("naive layout should leave parameter offsets at zero, got %+v", off)
	}
}
