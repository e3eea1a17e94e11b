package ir

import (
	"fmt"
	"io"
)

// FreeOpt controls how a variable's destructor (if any) is invoked
// when its owning block exits.
type FreeOpt uint8

const (
	// FreeOnBlockExit calls the destructor automatically when the
	// owning block ends, instead of requiring an explicit free.
	FreeOnBlockExit FreeOpt = 1 << iota
	// FreePtr calls dtor(&v) instead of dtor(v): the destructor
	// receives the variable's address rather than its value.
	FreePtr
)

type varInfo struct {
	part    Part
	size    Size
	dtor    Dtor
	freeOpt FreeOpt
	isParam bool
	param   TypeDesc
}

type partInfo struct {
	parent Part
	isRoot bool
	first  bool // true if this part is a Block (may be entered/exited)
}

// Listing is the IR container for a single function body: its
// instruction stream, variable/part graph, labels, parameter list and
// result type. It is built by repeated CreateVar/CreateBlock/CreatePart
// calls followed by appending instructions with Append; once a
// transform pass has consumed it, further mutation is only ever done
// by producing a fresh Listing.
type Listing struct {
	instrs []Instr
	vars   []varInfo
	parts  []partInfo

	result      TypeDesc
	hasResult   bool
	ehUsed      bool
	nextLabel   Label
	labelOf     map[Label]int // label -> instruction index it precedes
	currentPart Part

	typeOf map[int]TypeDesc // instruction index -> TypeDesc, for fnParam[Ref]/fnCall[Ref]/fnRet[Ref]
}

// NewListing creates an empty listing with only the root part.
func NewListing() *Listing {
	l := &Listing{
		parts:       []partInfo{{parent: Root, isRoot: true, first: true}},
		labelOf:     map[Label]int{},
		currentPart: Root,
	}
	return l
}

// CreateVar allocates a new non-parameter variable scoped to part,
// with an optional destructor and free policy.
func (l *Listing) CreateVar(part Part, size Size, dtor Dtor, opt FreeOpt) Variable {
	l.vars = append(l.vars, varInfo{part: part, size: size, dtor: dtor, freeOpt: opt})
	return Variable(len(l.vars) - 1)
}

// CreateParam allocates a new parameter variable, described by t for
// ABI classification. Parameters are accessible from every part.
func (l *Listing) CreateParam(t TypeDesc) Variable {
	l.vars = append(l.vars, varInfo{part: Root, size: t.Size(), isParam: true, param: t})
	return Variable(len(l.vars) - 1)
}

// CreateBlock creates a new Block (an enterable/exitable Part) whose
// parent is parent.
func (l *Listing) CreateBlock(parent Part) Part {
	l.parts = append(l.parts, partInfo{parent: parent, first: true})
	return Part(len(l.parts) - 1)
}

// CreatePart creates a plain scope (not independently enterable) whose
// parent is parent.
func (l *Listing) CreatePart(parent Part) Part {
	l.parts = append(l.parts, partInfo{parent: parent})
	return Part(len(l.parts) - 1)
}

// NewLabel allocates a fresh label identity, to be attached to a
// later-appended instruction.
func (l *Listing) NewLabel() Label {
	lb := l.nextLabel
	l.nextLabel++
	return lb
}

// Append adds an instruction to the end of the listing, recording any
// labels it carries as pointing at its index. This is the only
// mutator permitted once the variable/part graph has been closed by
// the first transform pass.
func (l *Listing) Append(i Instr) {
	idx := len(l.instrs)
	for _, lb := range i.Labels() {
		l.labelOf[lb] = idx
	}
	l.instrs = append(l.instrs, i)
}

// At returns the instruction at index i.
func (l *Listing) At(i int) Instr { return l.instrs[i] }

// AppendTyped appends a TypeInstr, recording its TypeDesc for later
// retrieval by TypeOf. fnParam[Ref]/fnCall[Ref]/fnRet[Ref] are the only
// opcodes whose ABI classification needs a full type instead of a Size.
func (l *Listing) AppendTyped(i TypeInstr) {
	idx := len(l.instrs)
	l.Append(i.Instr)
	if l.typeOf == nil {
		l.typeOf = map[int]TypeDesc{}
	}
	l.typeOf[idx] = i.Type
}

// TypeOf returns the TypeDesc attached to instruction i by AppendTyped.
func (l *Listing) TypeOf(i int) (TypeDesc, bool) {
	t, ok := l.typeOf[i]
	return t, ok
}

// Count returns the number of instructions in the listing.
func (l *Listing) Count() int { return len(l.instrs) }

// Labels returns every label that resolves to instruction index i.
func (l *Listing) Labels(i int) []Label {
	var out []Label
	for lb, idx := range l.labelOf {
		if idx == i {
			out = append(out, lb)
		}
	}
	return out
}

// LabelIndex returns the instruction index a label resolves to.
func (l *Listing) LabelIndex(lb Label) (int, bool) {
	idx, ok := l.labelOf[lb]
	return idx, ok
}

// AllVars returns every variable in the listing, in creation order.
func (l *Listing) AllVars() []Variable {
	out := make([]Variable, len(l.vars))
	for i := range l.vars {
		out[i] = Variable(i)
	}
	return out
}

// VarsInBlock returns the parameters plus the variables created
// directly in block, in creation order; variables of enclosing blocks
// are not included.
func (l *Listing) VarsInBlock(block Part) []Variable {
	var out []Variable
	for i, v := range l.vars {
		if v.isParam || v.part == block {
			out = append(out, Variable(i))
		}
	}
	return out
}

// PartVars returns only the non-parameter variables created directly
// in part.
func (l *Listing) PartVars(part Part) []Variable {
	var out []Variable
	for i, v := range l.vars {
		if !v.isParam && v.part == part {
			out = append(out, Variable(i))
		}
	}
	return out
}

// Prev returns the part that was current immediately before part was
// entered; for non-Block parts this is simply Parent.
func (l *Listing) Prev(part Part) Part { return l.Parent(part) }

// Parent returns part's parent part.
func (l *Listing) Parent(part Part) Part {
	if part == Root {
		return Root
	}
	return l.parts[part].parent
}

// First reports whether part is a Block (the first part of its own
// scope, enterable via beginBlock/endBlock).
func (l *Listing) First(part Part) bool { return l.parts[part].first }

// PartCount returns the number of parts (including Root), letting a
// transform pass replay CreateBlock/CreatePart calls in creation order
// against a fresh Listing and get back identical Part ids.
func (l *Listing) PartCount() int { return len(l.parts) }

// IsParam reports whether v is a function parameter.
func (l *Listing) IsParam(v Variable) bool { return l.vars[v].isParam }

// VarPart returns the part v was created in (Root for a parameter).
func (l *Listing) VarPart(v Variable) Part { return l.vars[v].part }

// Accessible reports whether v may be read/written from part: a
// non-parameter variable is accessible only within parts descended
// from the block that created it.
func (l *Listing) Accessible(v Variable, part Part) bool {
	info := l.vars[v]
	if info.isParam {
		return true
	}
	for p := part; ; {
		if p == info.part {
			return true
		}
		if p == Root {
			return false
		}
		p = l.Parent(p)
	}
}

// ParamDesc returns v's TypeDesc; panics if v is not a parameter.
func (l *Listing) ParamDesc(v Variable) TypeDesc {
	info := l.vars[v]
	if !info.isParam {
		panic("ir: ParamDesc on non-parameter variable")
	}
	return info.param
}

// VarSize returns v's declared Size.
func (l *Listing) VarSize(v Variable) Size { return l.vars[v].size }

// FreeFn returns v's registered destructor, or nil.
func (l *Listing) FreeFn(v Variable) Dtor { return l.vars[v].dtor }

// FreeOpt returns v's free policy.
func (l *Listing) FreeOpt(v Variable) FreeOpt { return l.vars[v].freeOpt }

// SetResult records the function's result type.
func (l *Listing) SetResult(t TypeDesc) {
	l.result = t
	l.hasResult = true
}

// Result returns the function's result type and whether one was set
// (a void function has none).
func (l *Listing) Result() (TypeDesc, bool) { return l.result, l.hasResult }

// UseExceptionHandler marks this listing as needing EH frame slots
// frame lowering consults this to decide whether
// to reserve the partId/owner slots.
func (l *Listing) UseExceptionHandler() { l.ehUsed = true }

// ExceptionHandler reports whether this listing needs EH frame slots.
func (l *Listing) ExceptionHandler() bool { return l.ehUsed }

func (l *Listing) String() string {
	return fmt.Sprintf("listing{%d instrs, %d vars, %d parts}", len(l.instrs), len(l.vars), len(l.parts))
}

// Dump writes a disassembly-adjacent textual rendering of the
// listing, one instruction per line with any labels prefixed —
// intended for compiler debug flags.
func (l *Listing) Dump(w io.Writer) {
	for i, instr := range l.instrs {
		for _, lb := range l.Labels(i) {
			fmt.Fprintf(w, "L%d:\n", lb)
		}
		fmt.Fprintf(w, "\t%s\n", instr)
	}
}
