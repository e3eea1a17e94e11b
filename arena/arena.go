// Package arena defines the target-dispatch interface every concrete
// backend (x64, x86) implements, and picks the right one for the host
// the compiler itself runs on.
//
// Grounded directly on spec §4.10's five-method Arena interface; the
// teacher has no equivalent since it only ever targets one fixed
// platform, so the interface/dispatch shape here follows the teacher's
// own `Arch`/`OS` enum-and-switch dispatch in arch.go instead.
package arena

import (
	"fmt"
	"runtime"

	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/output"
	"github.com/ngenio/ngen/x64"
	"github.com/ngenio/ngen/x86"
)

// Arena drives a target-specific code generation pipeline: transform
// lowers a Listing to the target's encodable form (appending any
// pooled constants the lowering needs to bin), output walks a lowered
// Listing through the shared Output sink (either sizing or emitting,
// depending on which concrete Output is passed), and labelOutput/
// codeOutput construct the two passes output needs. removeFnRegs
// strikes the registers this target's ABI marks caller-saved (those a
// call clobbers) from a register set.
type Arena interface {
	Transform(listing *ir.Listing, bin *output.Binary) (*ir.Listing, error)
	Output(listing *ir.Listing, out output.Output) error
	LabelOutput() *output.LabelOutput
	CodeOutput(bin *output.Binary, offsets map[ir.Label]uint32, size uint32, refCount uint32) *output.CodeOutput
	RemoveFnRegs(regs *ir.RegSet)
}

// Config selects which concrete Arena New returns.
type Config struct {
	// Arch names the target architecture ("amd64" or "386"); empty
	// defaults to runtime.GOARCH, the architecture the compiler itself
	// is running on (this backend only ever targets the host, per
	// spec's in-memory-JIT, not cross-compiled, scope).
	Arch string
}

// New dispatches Config to a concrete Arena, the way the teacher's
// GetDefaultTarget resolves runtime.GOARCH/GOOS to one Arch/OS pair.
func New(cfg Config) (Arena, error) {
	arch := cfg.Arch
	if arch == "" {
		arch = runtime.GOARCH
	}
	switch arch {
	case "amd64":
		return x64.NewArena(), nil
	case "386":
		return x86.NewArena(), nil
	default:
		return nil, fmt.Errorf("arena: unsupported architecture %q", arch)
	}
}
