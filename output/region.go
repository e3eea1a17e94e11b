package output

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region is a page-aligned anonymous mapping holding one Binary's
// finished code, writable during Load and then flipped read+execute
// so the running process never holds a writable-and-executable page
// (W^X) for generated code.
//
// Grounded on the teacher's generated-code mmap sequence (arena.go,
// codegen.go: PROT_READ|PROT_WRITE|PROT_EXEC in one mmap call) but
// deliberately not copying that shape — those syscalls target the
// code *this compiler emits*, whereas Region calls unix.Mmap/Mprotect
// directly from the host Go process to hold the code this compiler
// *produces*, following the host-side golang.org/x/sys/unix usage
// pattern in filewatcher_darwin.go rather than the generated-syscall
// one.
type Region struct {
	mem  []byte
	size int
}

// Load copies code into a fresh anonymous mapping, then makes it
// read+execute. The returned Region must be released with Close once
// the code is no longer reachable.
func Load(code []byte) (*Region, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("output: cannot load an empty code region")
	}
	mem, err := unix.Mmap(-1, 0, len(code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("output: mmap code region: %w", err)
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("output: mprotect code region r-x: %w", err)
	}
	return &Region{mem: mem, size: len(code)}, nil
}

// Addr returns the region's base address, the value function pointers
// and GC `raw`/`gcPtr` relocations are computed against.
func (r *Region) Addr() uintptr {
	if len(r.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&r.mem[0]))
}

// Patch temporarily reopens the region for writing to apply a
// relocation fixup (the GC moving a referenced object, or the
// reference system resolving a late-bound address), then restores
// the r-x protection. Callers must not execute code in this region
// concurrently with a Patch call.
func (r *Region) Patch(fn func(mem []byte)) error {
	if err := unix.Mprotect(r.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("output: mprotect code region rw: %w", err)
	}
	fn(r.mem)
	if err := unix.Mprotect(r.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("output: mprotect code region r-x: %w", err)
	}
	return nil
}

// Close unmaps the region. The caller must guarantee nothing still
// calls into it.
func (r *Region) Close() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	return err
}
