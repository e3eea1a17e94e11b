package eh

// AppendULEB128 appends v's unsigned LEB128 encoding to buf, the
// variable-length integer format DWARF uses for every CIE/FDE field
// that isn't a fixed-width header word.
func AppendULEB128(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

// AppendSLEB128 appends v's signed LEB128 encoding to buf (used for
// the CIE's data alignment factor, which is negative on every target
// where the stack grows down).
func AppendSLEB128(buf []byte, v int64) []byte {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}
