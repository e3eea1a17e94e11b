package ir

import "fmt"

// Opcode enumerates the target-independent instruction set the
// frontend emits. Grouping follows a per-mnemonic-family layout
// split (add.go, sub.go, mov.go, cmp.go, shl.go, jmp.go, call.go,
// ret.go, push.go, ...); here it is one enum instead of one file per
// opcode since there is no per-mnemonic byte emission at this layer.
type Opcode uint8

const (
	OpNone Opcode = iota

	// Arithmetic
	OpAdd
	OpAdc
	OpSub
	OpSbb
	OpMul
	OpIDiv
	OpUDiv
	OpIMod
	OpUMod
	OpBAnd
	OpBOr
	OpBXor
	OpBNot
	OpShl
	OpShr
	OpSar

	// Data movement
	OpMov
	OpSwap
	OpLea
	OpPush
	OpPop
	OpPushFlags
	OpPopFlags

	// Control flow
	OpJmp
	OpCall
	OpRet
	OpSetCond

	// x87 float
	OpFld
	OpFild
	OpFstp
	OpFistp
	OpFldz
	OpFaddp
	OpFsubp
	OpFmulp
	OpFdivp
	OpFcompp
	OpFwait

	// Width cast
	OpICast
	OpUCast

	// Pseudo-instructions
	OpProlog
	OpEpilog
	OpBeginBlock
	OpEndBlock
	OpJmpBlock
	OpFnParam
	OpFnParamRef
	OpFnCall
	OpFnCallRef
	OpFnRet
	OpFnRetRef
	OpPreserve
	OpLocation
	OpDat
	OpAlign
	OpLblOffset
	OpThreadLocal
)

// DestMode declares how an opcode uses its destination operand.
type DestMode uint8

const (
	DestNone DestMode = iota
	DestRead
	DestWrite
	DestReadWrite
)

var destModes = map[Opcode]DestMode{
	OpAdd: DestReadWrite, OpAdc: DestReadWrite, OpSub: DestReadWrite, OpSbb: DestReadWrite,
	OpMul: DestReadWrite, OpIDiv: DestReadWrite, OpUDiv: DestReadWrite,
	OpIMod: DestReadWrite, OpUMod: DestReadWrite,
	OpBAnd: DestReadWrite, OpBOr: DestReadWrite, OpBXor: DestReadWrite, OpBNot: DestReadWrite,
	OpShl: DestReadWrite, OpShr: DestReadWrite, OpSar: DestReadWrite,

	OpMov: DestWrite, OpSwap: DestReadWrite, OpLea: DestWrite,
	OpPush: DestRead, OpPop: DestWrite, OpPushFlags: DestNone, OpPopFlags: DestNone,

	OpJmp: DestNone, OpCall: DestNone, OpRet: DestNone, OpSetCond: DestWrite,

	OpFld: DestRead, OpFild: DestRead, OpFstp: DestWrite, OpFistp: DestWrite,
	OpFldz: DestNone, OpFaddp: DestNone, OpFsubp: DestNone, OpFmulp: DestNone,
	OpFdivp: DestNone, OpFcompp: DestNone, OpFwait: DestNone,

	OpICast: DestWrite, OpUCast: DestWrite,

	OpProlog: DestNone, OpEpilog: DestNone, OpBeginBlock: DestNone, OpEndBlock: DestNone,
	OpJmpBlock: DestNone, OpFnParam: DestRead, OpFnParamRef: DestRead,
	OpFnCall: DestWrite, OpFnCallRef: DestWrite, OpFnRet: DestRead, OpFnRetRef: DestRead,
	OpPreserve: DestNone, OpLocation: DestNone, OpDat: DestNone, OpAlign: DestNone,
	OpLblOffset: DestNone, OpThreadLocal: DestWrite,
}

// DestMode reports how op uses its destination operand.
func (op Opcode) DestMode() DestMode {
	if dm, ok := destModes[op]; ok {
		return dm
	}
	return DestNone
}

// IsTerminator reports whether op ends a basic block (these
// clear the live-register set during the backwards dataflow pass).
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpJmp, OpEndBlock, OpJmpBlock, OpProlog:
		return true
	default:
		return false
	}
}

// IsCall reports whether op transfers control to another function,
// clobbering the ABI's caller-saved registers.
func (op Opcode) IsCall() bool {
	switch op {
	case OpCall, OpFnCall, OpFnCallRef:
		return true
	default:
		return false
	}
}

var opNames = [...]string{
	"none", "add", "adc", "sub", "sbb", "mul", "idiv", "udiv", "imod", "umod",
	"band", "bor", "bxor", "bnot", "shl", "shr", "sar",
	"mov", "swap", "lea", "push", "pop", "pushflags", "popflags",
	"jmp", "call", "ret", "setcond",
	"fld", "fild", "fstp", "fistp", "fldz", "faddp", "fsubp", "fmulp", "fdivp", "fcompp", "fwait",
	"icast", "ucast",
	"prolog", "epilog", "beginblock", "endblock", "jmpblock",
	"fnparam", "fnparamref", "fncall", "fncallref", "fnret", "fnretref",
	"preserve", "location", "dat", "align", "lbloffset", "threadlocal",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Instr is an immutable three-address instruction: an opcode plus a
// destination and a source operand. Either operand may be None for
// opcodes that don't use it.
type Instr struct {
	Op   Opcode
	Dest Operand
	Src  Operand
	Cond CondFlag // only meaningful for OpJmp/OpSetCond

	labels []Label
}

// NewInstr constructs an instruction, validating the obvious mistakes
// a frontend bug would produce: a write
// destination that isn't writable, a read source that isn't readable,
// or mismatched operand sizes on a generic two-operand opcode.
func NewInstr(op Opcode, dest, src Operand) (Instr, error) {
	dm := op.DestMode()
	if (dm == DestWrite || dm == DestReadWrite) && dest.Kind() != KindNone && !dest.Writable() {
		return Instr{}, fmt.Errorf("ir: %s: destination operand %s is not writable", op, dest)
	}
	if src.Kind() != KindNone && !src.Readable() && src.Kind() != KindCondFlag {
		return Instr{}, fmt.Errorf("ir: %s: source operand %s is not readable", op, src)
	}
	if needsMatchedSizes(op) && dest.Kind() != KindNone && src.Kind() != KindNone {
		if !sizesCompatible(dest.Size(), src.Size()) {
			return Instr{}, fmt.Errorf("ir: %s: size mismatch between %s and %s", op, dest, src)
		}
	}
	return Instr{Op: op, Dest: dest, Src: src}, nil
}

// MustInstr is NewInstr for call sites that already know the operands
// are well-formed (tests, internal lowering code that builds valid
// instructions by construction).
func MustInstr(op Opcode, dest, src Operand) Instr {
	i, err := NewInstr(op, dest, src)
	if err != nil {
		panic(err)
	}
	return i
}

func needsMatchedSizes(op Opcode) bool {
	switch op {
	case OpAdd, OpAdc, OpSub, OpSbb, OpBAnd, OpBOr, OpBXor, OpMov, OpSwap:
		return true
	default:
		return false
	}
}

func sizesCompatible(a, b Size) bool {
	return a.Size32 == b.Size32 && a.Size64 == b.Size64
}

// WithLabels returns a copy of i with the given labels attached
// (labels are recorded on the instruction they precede; Listing.Labels
// exposes them by index).
func (i Instr) WithLabels(labels ...Label) Instr {
	i.labels = append(append([]Label(nil), i.labels...), labels...)
	return i
}

func (i Instr) Labels() []Label { return i.labels }

func (i Instr) String() string {
	switch i.Op.DestMode() {
	case DestNone:
		if i.Src.Kind() == KindNone {
			return i.Op.String()
		}
		return fmt.Sprintf("%s %s", i.Op, i.Src)
	default:
		if i.Src.Kind() == KindNone {
			return fmt.Sprintf("%s %s", i.Op, i.Dest)
		}
		return fmt.Sprintf("%s %s, %s", i.Op, i.Dest, i.Src)
	}
}

// TypeInstr extends Instr with a TypeDesc, used by fnParam[Ref] and
// fnCall[Ref]/fnRet[Ref] to drive per-ABI classification.
type TypeInstr struct {
	Instr
	Type   TypeDesc
	Member bool // true for fnCall*/fnParam* that pass/return by member copy
}

func NewTypeInstr(op Opcode, dest, src Operand, t TypeDesc, member bool) (TypeInstr, error) {
	base, err := NewInstr(op, dest, src)
	if err != nil {
		return TypeInstr{}, err
	}
	return TypeInstr{Instr: base, Type: t, Member: member}, nil
}
