package ir

import "testing"

func TestSizeAlignment(t *testing.T) {
	got := Size{}.Add(SByte).Add(SLong).Current(true)
	if got != 16 {
		t.Fatalf("Size{}+sByte+sLong on 64-bit = %d, want 16", got)
	}
	got2 := Size{}.Add(SByte).Add(SLong.Alignment()).Current(true)
	if got2 != 8 {
		t.Fatalf("Size{}+sByte+sLong.alignment() on 64-bit = %d, want 8", got2)
	}
}

func TestRegRoundTrip(t *testing.T) {
	widths := []Width{WidthByte, WidthInt, WidthLong, WidthPtr}
	regs := []Reg{PtrA, PtrB, PtrC}
	for _, r := range regs {
		for _, w := range widths {
			got := AsSize(r, w)
			if got.Width() != w {
				t.Fatalf("AsSize(%v, %v).Width() = %v", r, w, got.Width())
			}
			if !Same(got, r) {
				t.Fatalf("Same(AsSize(%v,%v), %v) = false", r, w, r)
			}
		}
	}
}

func TestCondNegateInvolution(t *testing.T) {
	for c := CondO; c <= CondG; c++ {
		if c.Negate().Negate() != c {
			t.Fatalf("Negate not involutive for %v", c)
		}
		if c.Negate() == c {
			t.Fatalf("Negate is a no-op for %v", c)
		}
	}
}
