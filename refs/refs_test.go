package refs

import "testing"

func TestReferencePropagation(t *testing.T) {
	source := NewSource("A")
	content := NewContent(0, 0)
	source.Set(content)

	ref := NewRef(source)
	content.Set(0x1000, 8)

	if ref.Address() != 0x1000 {
		t.Fatalf("ref.Address() = %#x, want 0x1000", ref.Address())
	}
}

func TestSteal(t *testing.T) {
	a := NewSource("A")
	b := NewSource("B")

	a.Set(NewContent(0x1000, 4))
	b.Set(NewContent(0x2000, 4))

	r := NewRef(a)
	if r.Address() != 0x1000 {
		t.Fatalf("setup: ref should start at A's address")
	}

	b.Steal(a)

	if r.Address() != 0x2000 {
		t.Fatalf("after steal, ref.Address() = %#x, want 0x2000", r.Address())
	}
	if r.Source() != b {
		t.Fatalf("after steal, ref.Source() should be the new owner")
	}
}

func TestStealScenarioFromSpec(t *testing.T) {
	// "sources A (address 0x1000) and B (address 0x2000); a reference r
	// refers to A. After B.steal(A), r.address == 0x2000 and r.source == B."
	a := NewSource("A")
	b := NewSource("B")
	a.Set(NewContent(0x1000, 0))
	b.Set(NewContent(0x2000, 0))

	r := NewRef(a)
	b.Steal(a)

	if r.Address() != 0x2000 {
		t.Fatalf("r.address = %#x, want 0x2000", r.Address())
	}
	if r.Source() != b {
		t.Fatalf("r.source != B")
	}
}

func TestOffsetSourceUnresolvedIsZero(t *testing.T) {
	s := NewOffsetSource()
	r := NewOffsetRef(s)
	if r.Offset() != 0 {
		t.Fatalf("unresolved OffsetRef should read 0, got %d", r.Offset())
	}
	s.Set(42)
	if r.Offset() != 42 {
		t.Fatalf("OffsetRef.Offset() = %d, want 42", r.Offset())
	}
}
