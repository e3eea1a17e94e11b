package ir

import "fmt"

// Kind tags the shape an Operand takes.
type Kind uint8

const (
	KindNone Kind = iota
	KindConstant
	KindDualConstant
	KindRegister
	KindRelative
	KindVariable
	KindLabel
	KindPart
	KindReference
	KindCondFlag
)

func (k Kind) String() string {
	names := [...]string{"none", "const", "dualconst", "reg", "rel", "var", "label", "part", "ref", "cond"}
	if int(k) < len(names) {
		return names[k]
	}
	return "kind?"
}

// ReferenceValue is the narrow interface an Operand needs from the
// refs package without importing it (refs imports nothing from ir,
// so this avoids a cycle while keeping Operand able to carry a live
// reference). Concrete Reference values implement Address() uintptr.
type ReferenceValue interface {
	Address() uintptr
}

// Operand is an immutable tagged union over the operand shapes the
// encoder and transform passes need to inspect. Each shape carries a
// Size describing the data it refers to.
type Operand struct {
	kind Kind
	size Size

	word     int64  // Constant
	word32   int32  // DualConstant low half
	reg      Reg    // Register / Relative base
	offset   Offset // Relative / Variable offset
	variable Variable
	label    Label
	part     Part
	cond     CondFlag
	ref      ReferenceValue
}

// None is the empty operand, used for unary instructions' unused slot.
var None = Operand{kind: KindNone}

func Constant(size Size, word int64) Operand {
	return Operand{kind: KindConstant, size: size, word: word}
}

// DualConstant carries separate 32-bit and 64-bit representations of
// the same constant, used when a value's bit pattern legitimately
// differs by target width (e.g. a pointer-sized immediate).
func DualConstant(size Size, lo32 int32, full64 int64) Operand {
	return Operand{kind: KindDualConstant, size: size, word32: lo32, word: full64}
}

func Register(r Reg, size Size) Operand {
	return Operand{kind: KindRegister, size: size, reg: r}
}

// Relative is a memory operand through a base register plus a
// constant displacement: [reg + offset].
func Relative(r Reg, offset Offset, size Size) Operand {
	return Operand{kind: KindRelative, size: size, reg: r, offset: offset}
}

// VariableOp refers to a Listing variable, optionally offset (for
// accessing a member of a SimpleDesc-typed variable).
func VariableOp(v Variable, offset Offset, size Size) Operand {
	return Operand{kind: KindVariable, size: size, variable: v, offset: offset}
}

func LabelOp(l Label) Operand {
	return Operand{kind: KindLabel, size: SPtr, label: l}
}

func PartOp(p Part) Operand {
	return Operand{kind: KindPart, size: SPtr, part: p}
}

func ReferenceOp(ref ReferenceValue, size Size) Operand {
	return Operand{kind: KindReference, size: size, ref: ref}
}

func CondFlagOp(c CondFlag) Operand {
	return Operand{kind: KindCondFlag, size: SByte, cond: c}
}

func (o Operand) Kind() Kind { return o.kind }
func (o Operand) Size() Size { return o.size }

func (o Operand) Word() int64 {
	if o.kind != KindConstant && o.kind != KindDualConstant {
		panic("ir: Word on non-constant operand")
	}
	return o.word
}

func (o Operand) Word32() int32 {
	if o.kind != KindDualConstant {
		panic("ir: Word32 on non-dual-constant operand")
	}
	return o.word32
}

func (o Operand) Reg() Reg {
	if o.kind != KindRegister && o.kind != KindRelative {
		panic("ir: Reg on operand without a register")
	}
	return o.reg
}

func (o Operand) Offset() Offset {
	if o.kind != KindRelative && o.kind != KindVariable {
		panic("ir: Offset on operand without a displacement")
	}
	return o.offset
}

func (o Operand) Variable() Variable {
	if o.kind != KindVariable {
		panic("ir: Variable on non-variable operand")
	}
	return o.variable
}

func (o Operand) Label() Label {
	if o.kind != KindLabel {
		panic("ir: Label on non-label operand")
	}
	return o.label
}

func (o Operand) Part() Part {
	if o.kind != KindPart {
		panic("ir: Part on non-part operand")
	}
	return o.part
}

func (o Operand) Reference() ReferenceValue {
	if o.kind != KindReference {
		panic("ir: Reference on non-reference operand")
	}
	return o.ref
}

func (o Operand) CondFlag() CondFlag {
	if o.kind != KindCondFlag {
		panic("ir: CondFlag on non-condflag operand")
	}
	return o.cond
}

// Readable reports whether this operand shape may be used as a source.
func (o Operand) Readable() bool {
	switch o.kind {
	case KindNone:
		return false
	default:
		return true
	}
}

// Writable reports whether this operand shape may be used as a
// destination. Constants, labels and condition flags are never
// write targets.
func (o Operand) Writable() bool {
	switch o.kind {
	case KindRegister, KindRelative, KindVariable, KindReference:
		return true
	default:
		return false
	}
}

// IsMemory reports whether encoding this operand requires a ModR/M
// memory addressing mode rather than a direct register.
func (o Operand) IsMemory() bool {
	return o.kind == KindRelative || o.kind == KindVariable
}

// FitsIn32 reports whether a constant operand's value is representable
// in 32 bits, the threshold past which x86 lowering must pool it into a register.
func (o Operand) FitsIn32() bool {
	if o.kind != KindConstant {
		return true
	}
	return o.word >= -(1<<31) && o.word < (1<<31)
}

func (o Operand) String() string {
	switch o.kind {
	case KindNone:
		return "-"
	case KindConstant:
		return fmt.Sprintf("$%d", o.word)
	case KindDualConstant:
		return fmt.Sprintf("$%d/%d", o.word32, o.word)
	case KindRegister:
		return o.reg.String()
	case KindRelative:
		return fmt.Sprintf("[%s+%d]", o.reg, o.offset.O64)
	case KindVariable:
		return fmt.Sprintf("var%d+%d", o.variable, o.offset.O64)
	case KindLabel:
		return fmt.Sprintf("L%d", o.label)
	case KindPart:
		return fmt.Sprintf("part%d", o.part)
	case KindReference:
		return "ref"
	case KindCondFlag:
		return o.cond.String()
	default:
		return "?"
	}
}
