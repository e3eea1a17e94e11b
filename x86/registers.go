// Package x86 is the x86-32 cdecl backend: invalid-instruction
// lowering, frame prolog/epilog, platform variable layout and the
// final byte encoder, mirroring x64's structure at half the pointer
// width and without System V's register-argument bank (cdecl passes
// everything on the stack).
//
// Grounded throughout on x64's own files, which this package follows
// file-for-file (registers/layout/frame/lower/frameexpand/arena), and
// on the teacher's per-arch codegen split (x86_64_codegen.go /
// arm64_codegen.go as the pattern for "one backend package per
// target").
package x86

import "github.com/ngenio/ngen/ir"

// encodingIndex returns r's ModR/M/SIB encoding index (0-7, matching
// ir.GPRegs32's declared order: eax..edi). x86-32 has no REX prefix,
// so unlike x64 there is no extension bit to report.
func encodingIndex(r ir.Reg) byte {
	for i, gp := range ir.GPRegs32 {
		if ir.Same(gp, r) {
			return byte(i)
		}
	}
	panic("x86: register has no known GPR encoding")
}
