package output

import "fmt"

// Binary is the in-memory code object an Arena's transform/output
// passes build up: the function bodies emitted so far, a trailing
// pool of pooled constants/`dat` blocks shared across functions, and
// the relocations the reference system and the external GC need to
// patch once the whole thing is placed in its final Region.
//
// Grounded on the teacher's ExecutableBuilder (main.go): a single
// mutable object accumulating bytes across many emitter calls, here
// generalized from "the one process-lifetime executable" to "one
// Binary per compiled unit", since the in-memory-buffer model this
// rewrite targets (see spec's emitted-in-memory, late-bound-reference
// non-goal) allows many independently-placed Binaries.
type Binary struct {
	w        *Writer
	funcs    map[string]uint32 // function name -> offset within w
	datPool  map[string]uint32 // pooled constant key -> offset
	finished bool
}

// NewBinary creates an empty code object.
func NewBinary() *Binary {
	return &Binary{w: NewWriter(), funcs: map[string]uint32{}, datPool: map[string]uint32{}}
}

// Writer returns the Binary's underlying byte accumulator, the target
// of a CodeOutput pass.
func (b *Binary) Writer() *Writer { return b.w }

// DefineFunction records the offset a function's code starts at,
// right before its CodeOutput pass writes that code.
func (b *Binary) DefineFunction(name string) {
	b.funcs[name] = uint32(b.w.Len())
}

// FunctionOffset returns where a previously-defined function's code
// begins, or ok=false if it hasn't been emitted yet.
func (b *Binary) FunctionOffset(name string) (uint32, bool) {
	off, ok := b.funcs[name]
	return off, ok
}

// InternConstant appends raw bytes to the shared dat pool and returns
// their offset, reusing an existing entry if the same key was already
// pooled, so two callers sharing a literal don't duplicate it. No
// lowering pass in this module calls it: large constants and label
// constants are not moved into a dat pool.
func (b *Binary) InternConstant(key string, bytes []byte) uint32 {
	if off, ok := b.datPool[key]; ok {
		return off
	}
	off := uint32(b.w.Len())
	b.w.WriteBytes(bytes)
	b.datPool[key] = off
	return off
}

// Finish marks the Binary closed to further writes; Region allocation
// reads its final byte length from here.
func (b *Binary) Finish() {
	b.finished = true
}

// Bytes returns the accumulated code, valid only after Finish.
func (b *Binary) Bytes() []byte {
	if !b.finished {
		panic("output: Binary.Bytes called before Finish")
	}
	return b.w.Bytes()
}

// Relocations returns every GC/reference-facing slot recorded while
// emitting this Binary's code.
func (b *Binary) Relocations() []Relocation { return b.w.Relocations() }

func (b *Binary) String() string {
	return fmt.Sprintf("output.Binary{functions=%d, pooled=%d, bytes=%d}", len(b.funcs), len(b.datPool), b.w.Len())
}
