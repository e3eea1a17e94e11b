package ir

import "testing"

func TestListingBlockAccessibility(t *testing.T) {
	l := NewListing()
	block := l.CreateBlock(Root)
	inner := l.CreateBlock(block)

	v := l.CreateVar(block, SInt, nil, 0)
	if !l.Accessible(v, block) {
		t.Fatalf("variable should be accessible in its own block")
	}
	if !l.Accessible(v, inner) {
		t.Fatalf("variable should be accessible in a descendant block")
	}
	if l.Accessible(v, Root) {
		t.Fatalf("variable must not be accessible outside the block that created it")
	}
}

func TestListingParamsAlwaysAccessible(t *testing.T) {
	l := NewListing()
	p := l.CreateParam(PrimitiveDesc(PrimInteger, SInt))
	block := l.CreateBlock(Root)
	if !l.Accessible(p, block) || !l.Accessible(p, Root) {
		t.Fatalf("parameters must be accessible from every part")
	}
}

func TestListingLabelsResolveToAppendIndex(t *testing.T) {
	l := NewListing()
	lb := l.NewLabel()
	l.Append(MustInstr(OpMov, Register(Eax, SInt), Constant(SInt, 1)).WithLabels(lb))
	idx, ok := l.LabelIndex(lb)
	if !ok || idx != 0 {
		t.Fatalf("label did not resolve to index 0: idx=%d ok=%v", idx, ok)
	}
	labels := l.Labels(0)
	if len(labels) != 1 || labels[0] != lb {
		t.Fatalf("Labels(0) = %v, want [%v]", labels, lb)
	}
}
