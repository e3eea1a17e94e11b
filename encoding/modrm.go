// Package encoding holds the byte-level x86 instruction encoding
// primitives shared by the x86 and x64 backends: ModR/M, SIB and REX
// prefix construction, plus a table of opcode descriptors so neither
// backend hand-writes the same REX/ModR/M bit math per mnemonic.
package encoding

// Mod field values for the ModR/M byte.
const (
	ModIndirect     byte = 0b00 // [reg], or [SIB]/[disp32] in the rm==100/101 special cases
	ModIndirectDisp8  byte = 0b01
	ModIndirectDisp32 byte = 0b10
	ModRegister     byte = 0b11
)

// Special rm field encodings that change addressing mode instead of
// naming a register.
const (
	RMNeedsSIB   byte = 0b100
	RMDisp32Only byte = 0b101
)

// ModRM packs the mod/reg/rm fields of a ModR/M byte. reg and rm are
// masked to their low 3 bits; callers add REX.R/REX.B separately to
// extend them to 4 bits.
func ModRM(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

// DispSizeFor picks the smallest disp encoding (disp8 vs disp32) for
// displacement d, given the base register doesn't itself force disp32
// (rm == RMDisp32Only with mod == ModIndirect means "no base, disp32
// only", a case callers special out explicitly).
func DispSizeFor(d int32) byte {
	if d == 0 {
		return ModIndirect
	}
	if d >= -128 && d <= 127 {
		return ModIndirectDisp8
	}
	return ModIndirectDisp32
}
