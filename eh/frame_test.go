package eh

import "testing"

func TestWriteCIEAugmentationStringIsZRP(t *testing.T) {
	w := NewWriter()
	w.WriteCIE(CIE{
		CodeAlignment:    1,
		DataAlignment:    -8,
		ReturnAddressReg: 16,
		Personality:      0x1000,
		InitialCFA:       CFARule{Register: 7, Offset: 8},
		PointerSize:      8,
	})
	b := w.Bytes()
	// length(4) + id(4) + version(1) = 9 bytes before the augmentation string.
	aug := b[9:13]
	if string(aug) != "zRP\x00" {
		t.Fatalf("augmentation string = %q, want \"zRP\\x00\"", aug)
	}
}

func TestWriteCIEPanicsOnSecondCall(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on second WriteCIE call")
		}
	}()
	w := NewWriter()
	cie := CIE{CodeAlignment: 1, DataAlignment: -8, ReturnAddressReg: 16, PointerSize: 8}
	w.WriteCIE(cie)
	w.WriteCIE(cie)
}

func TestWriteFDEBeforeCIEPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when FDE precedes CIE")
		}
	}()
	w := NewWriter()
	w.WriteFDE(FDE{PointerSize: 8})
}

func TestWriteFDEOverflowAsserts(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on oversized FDE instruction stream")
		}
	}()
	w := NewWriter()
	w.WriteCIE(CIE{CodeAlignment: 1, DataAlignment: -8, ReturnAddressReg: 16, PointerSize: 8})
	w.WriteFDE(FDE{PointerSize: 8, Instructions: make([]byte, maxFDEBodySize+1)})
}

func TestAdvanceLocPicksSmallestEncoding(t *testing.T) {
	var buf []byte
	buf = AdvanceLoc(buf, 10)
	if len(buf) != 1 {
		t.Fatalf("small delta should encode in 1 byte, got %d", len(buf))
	}
	buf = nil
	buf = AdvanceLoc(buf, 1000)
	if buf[0] != cfaAdvanceLoc2 {
		t.Fatalf("1000-byte delta should use advance_loc2")
	}
}

func TestULEB128RoundTripShape(t *testing.T) {
	got := AppendULEB128(nil, 624485)
	want := []byte{0xE5, 0x8E, 0x26}
	if len(got) != len(want) {
		t.Fatalf("ULEB128(624485) length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}
}
