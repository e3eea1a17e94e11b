// Package eh writes the DWARF .eh_frame unwinding metadata a POSIX
// target needs: one Common Information Entry (CIE) per compilation
// unit pointing at the runtime's personality routine, and one Frame
// Description Entry (FDE) per emitted function carrying that
// function's Call Frame Information (CFI) program.
//
// Grounded on the CIE/FDE field structuring and LEB128 usage of a
// DWARF .debug_frame reader found in the example corpus, rebuilt here
// as a writer with the .eh_frame conventions (CIE id 0 instead of
// 0xffffffff, a "zRP" augmentation string carrying the personality
// routine pointer and FDE address encoding) the teacher itself never
// needed, since it never emits unwind tables.
package eh

import "encoding/binary"

// pointer encodings (DWARF eh_frame_hdr "DW_EH_PE_*" values), named
// for the two this writer actually uses.
const (
	pePcrelSdata4 byte = 0x1B // pc-relative, signed 4-byte
	peAbsPtr      byte = 0x00 // absolute, native pointer width
)

// CIE is one compilation unit's Common Information Entry: the
// CFI program shared by every FDE that references it, plus the
// personality routine address the runtime's unwinder calls into on
// every frame this CIE covers.
type CIE struct {
	CodeAlignment    uint64
	DataAlignment    int64
	ReturnAddressReg uint64
	// Personality is the absolute address of the runtime's personality
	// routine (zero for a unit that never throws; WriteCIE still writes
	// the CIE and encodes whatever value this holds).
	Personality     uintptr
	InitialCFA      CFARule
	InitialOffsets  []RegOffset
	PointerSize     int // 4 on x86-32, 8 on x86-64
}

// CFARule describes how the CFA is computed at the CIE's starting
// state (typically [rsp]+pointerSize right after `call`).
type CFARule struct {
	Register uint64
	Offset   uint64
}

// RegOffset records that a callee-saved register's pushed value lives
// at CFA + Factor*DataAlignment, for the CIE's initial_instructions
// (so a function whose prolog never touches that register still
// unwinds it correctly from the CIE alone).
type RegOffset struct {
	Register uint8
	Factor   uint64
}

// Writer accumulates the .eh_frame section's bytes: exactly one CIE
// followed by its FDEs.
type Writer struct {
	buf       []byte
	cieOffset int
	cieWritten bool
}

// NewWriter creates an empty .eh_frame section writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated section contents.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteCIE emits the unit's single CIE. Must be called exactly once,
// before any WriteFDE call.
func (w *Writer) WriteCIE(c CIE) {
	if w.cieWritten {
		panic("eh: WriteCIE called more than once per Writer")
	}
	w.cieOffset = len(w.buf)

	body := []byte{}
	body = append(body, 0, 0, 0, 0) // CIE id, 0 in .eh_frame
	body = append(body, 1)          // version
	body = append(body, 'z', 'R', 'P', 0)
	body = AppendULEB128(body, c.CodeAlignment)
	body = AppendSLEB128(body, c.DataAlignment)
	body = AppendULEB128(body, c.ReturnAddressReg)

	aug := []byte{pePcrelSdata4}
	personalityEnc := peAbsPtr
	if c.PointerSize == 8 {
		personalityEnc = 0x00 // absolute 8-byte pointer
	}
	aug = append(aug, personalityEnc)
	aug = appendPointer(aug, uint64(c.Personality), c.PointerSize)

	body = AppendULEB128(body, uint64(len(aug)))
	body = append(body, aug...)

	body = DefCFA(body, c.InitialCFA.Register, c.InitialCFA.Offset)
	for _, ro := range c.InitialOffsets {
		body = Offset(body, ro.Register, ro.Factor)
	}
	body = PadToAlign(body, 0, c.PointerSize)

	w.appendEntry(body)
	w.cieWritten = true
}

// FDE is one function's Frame Description Entry: its code range and
// the CFI program describing how its frame unwinds across that range.
type FDE struct {
	// StartAddress and Length are patched by the emitter once the
	// function's final address is known (relocated against the
	// section's load address); both are recorded as relocation
	// entries by the caller, not resolved here.
	StartAddress uintptr
	Length       uint32
	Instructions []byte
	PointerSize  int
}

// maxFDEBodySize bounds a single FDE's instruction stream; WriteFDE
// panics on a longer stream rather than accepting it, so one malformed
// function can't silently bloat the whole section.
const maxFDEBodySize = 4096

// WriteFDE emits one function's FDE, referencing the CIE already
// written by WriteCIE.
func (w *Writer) WriteFDE(f FDE) {
	if !w.cieWritten {
		panic("eh: WriteFDE called before WriteCIE")
	}
	if len(f.Instructions) > maxFDEBodySize {
		panic("eh: FDE instruction stream exceeds the pre-allocated buffer")
	}

	body := []byte{}
	ciePointer := uint32(len(w.buf) - w.cieOffset)
	body = appendU32(body, ciePointer)
	body = appendPointer(body, uint64(f.StartAddress), f.PointerSize)
	body = appendU32(body, f.Length)
	body = append(body, f.Instructions...)
	body = PadToAlign(body, 0, f.PointerSize)

	w.appendEntry(body)
}

func (w *Writer) appendEntry(body []byte) {
	length := uint32(len(body))
	w.buf = appendU32(w.buf, length)
	w.buf = append(w.buf, body...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendPointer(buf []byte, v uint64, size int) []byte {
	switch size {
	case 4:
		return appendU32(buf, uint32(v))
	case 8:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], v)
		return append(buf, tmp[:]...)
	default:
		panic("eh: pointer size must be 4 or 8")
	}
}
