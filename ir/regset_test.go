package ir

import "testing"

func TestRegSetIdempotence(t *testing.T) {
	s := NewRegSet(true)
	s.Put(Eax)
	s.Put(Eax)
	single := NewRegSet(true)
	single.Put(Eax)
	if s.Len() != single.Len() || !s.Has(Eax) || !single.Has(Eax) {
		t.Fatalf("double Put diverged from single Put")
	}

	s.Remove(Eax)
	if s.Len() != 0 {
		t.Fatalf("Remove of sole member left set non-empty: %d", s.Len())
	}
}

func TestRegSetWidthPromotionInvariant(t *testing.T) {
	s := NewRegSet(true)
	s.Put(Al)
	if s.Has(Eax) != s.Has(Al) {
		t.Fatalf("has(asSize(r,byte)) != has(asSize(r,int))")
	}
	if !s.Has(Rax) {
		t.Fatalf("byte observation should still answer Has for any width of the same physical register")
	}
}

func TestRegSetNeverHoldsStackOrFrame(t *testing.T) {
	s := NewRegSet(true)
	s.Put(PtrStack)
	s.Put(PtrFrame)
	if s.Len() != 0 {
		t.Fatalf("RegSet must never retain ptrStack/ptrFrame, got len=%d", s.Len())
	}
}
