package encoding

// Index/base field special cases in the SIB byte (SDM vol 2A §2.1.5).
const (
	SIBNoIndex byte = 0b100 // index==100 means "no index register"
	SIBNoBase  byte = 0b101 // base==101 with mod==00 means "disp32, no base"
)

// ScaleBits converts a 1/2/4/8 scale factor to the two-bit SIB scale
// field; any other value panics, since the frontend never emits a
// scaled-index operand with any other scale.
func ScaleBits(scale uint8) byte {
	switch scale {
	case 1:
		return 0b00
	case 2:
		return 0b01
	case 4:
		return 0b10
	case 8:
		return 0b11
	default:
		panic("encoding: invalid SIB scale factor")
	}
}

// SIB packs the scale/index/base fields of a SIB byte.
func SIB(scale, index, base byte) byte {
	return (scale << 6) | ((index & 7) << 3) | (base & 7)
}
