package ir

import "testing"

func TestNewInstrRejectsSizeMismatch(t *testing.T) {
	_, err := NewInstr(OpAdd, Register(Eax, SInt), Register(Rbx, SLong))
	if err == nil {
		t.Fatalf("expected size-mismatch error for add eax(32), rbx(64)")
	}
}

func TestNewInstrRejectsUnwritableDest(t *testing.T) {
	_, err := NewInstr(OpMov, Constant(SInt, 1), Register(Eax, SInt))
	if err == nil {
		t.Fatalf("expected error: constant is not a valid mov destination")
	}
}

func TestNewInstrAcceptsValid(t *testing.T) {
	i, err := NewInstr(OpMov, Register(Eax, SInt), Constant(SInt, 42))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if i.Dest.Reg() != Eax {
		t.Fatalf("dest mismatch")
	}
}

func TestBxorSelfIdiomEncodesAsReadWrite(t *testing.T) {
	i := MustInstr(OpBXor, Register(Eax, SInt), Register(Eax, SInt))
	if i.Op.DestMode() != DestReadWrite {
		t.Fatalf("bxor must be DestReadWrite for the used-register dataflow zeroing idiom")
	}
}
