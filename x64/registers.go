// Package x64 is the x86-64 System V backend: invalid-instruction
// lowering, frame prolog/epilog, platform variable layout and the
// final byte encoder, composed by Arena into the single entry point
// spec's Arena interface names (transform/output/labelOutput/
// codeOutput/removeFnRegs).
//
// Grounded throughout on the teacher's per-arch codegen split
// (x86_64_codegen.go as the pattern for "one file per target", even
// though its own instruction set and ABI differ completely) and on
// stack_validator.go's frame-balance checking idiom, repurposed here
// as the layout invariant this package's tests assert.
package x64

import "github.com/ngenio/ngen/ir"

// encodingIndex returns r's ModR/M/SIB/REX encoding (0-15 for a GPR,
// matching ir.GPRegs64's declared order) and whether bit 3 (the REX.*
// extension bit) is set.
func encodingIndex(r ir.Reg) (low3 byte, ext bool) {
	for i, gp := range ir.GPRegs64 {
		if ir.Same(gp, r) {
			return byte(i & 7), i >= 8
		}
	}
	for i, x := range ir.XmmRegs {
		if ir.Same(x, r) {
			return byte(i & 7), i >= 8
		}
	}
	panic("x64: register has no known GPR/XMM encoding")
}

// isXmm reports whether r names one of the sixteen XMM registers.
func isXmm(r ir.Reg) bool {
	for _, x := range ir.XmmRegs {
		if ir.Same(x, r) {
			return true
		}
	}
	return false
}
