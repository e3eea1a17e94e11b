package encoding

// REX prefix bit layout: 0100WRXB.
const (
	RexBase byte = 0x40
	RexW    byte = 0x08
	RexR    byte = 0x04
	RexX    byte = 0x02
	RexB    byte = 0x01
)

// REX builds a REX prefix byte from its four bit fields. w is set for
// a 64-bit operand size, r extends ModR/M.reg, x extends SIB.index, b
// extends ModR/M.rm or SIB.base (or the opcode's embedded register in
// a +rb/+rd/+rq encoding).
func REX(w, r, x, b bool) byte {
	rex := RexBase
	if w {
		rex |= RexW
	}
	if r {
		rex |= RexR
	}
	if x {
		rex |= RexX
	}
	if b {
		rex |= RexB
	}
	return rex
}

// NeedsREX reports whether any of the four fields requires a REX
// prefix to be emitted at all (x86-64 only emits REX when one of
// these is actually set, or when a byte-register operand forces it to
// pick the SPL/BPL/SIL/DIL encoding over AH/CH/DH/BH).
func NeedsREX(w, r, x, b bool) bool { return w || r || x || b }

// ExtBit splits an extended (4-bit) register index into its low 3
// bits (for ModR/M or SIB) and its extension bit (for REX.R/X/B).
func ExtBit(index uint8) (low3 byte, ext bool) {
	return byte(index & 7), index >= 8
}
