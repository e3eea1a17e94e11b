package ir

import "fmt"

// Extended x86 register slots, shared by the x86-32 (cdecl) and x86-64
// (System V) backends alike: both target the same physical register
// file, just exposing a different prefix of it (x86-32 never emits
// r8-r15, and cdecl passes nothing in xmm registers).
const (
	slotD uint16 = iota + 16
	slotSI
	slotDI
	slotR8
	slotR9
	slotR10
	slotR11
	slotR12
	slotR13
	slotR14
	slotR15
	slotXmm0
	slotXmm1
	slotXmm2
	slotXmm3
	slotXmm4
	slotXmm5
	slotXmm6
	slotXmm7
	slotXmm8
	slotXmm9
	slotXmm10
	slotXmm11
	slotXmm12
	slotXmm13
	slotXmm14
	slotXmm15
)

var (
	PtrD  = MakeReg(WidthPtr, BackendGeneric, slotD)
	PtrSI = MakeReg(WidthPtr, BackendGeneric, slotSI)
	PtrDI = MakeReg(WidthPtr, BackendGeneric, slotDI)

	Dl  = AsSize(PtrD, WidthByte)
	Sil = AsSize(PtrSI, WidthByte)
	Dil = AsSize(PtrDI, WidthByte)
	Edx = AsSize(PtrD, WidthInt)
	Esi = AsSize(PtrSI, WidthInt)
	Edi = AsSize(PtrDI, WidthInt)
	Rdx = AsSize(PtrD, WidthLong)
	Rsi = AsSize(PtrSI, WidthLong)
	Rdi = AsSize(PtrDI, WidthLong)

	R8  = MakeReg(WidthLong, BackendGeneric, slotR8)
	R9  = MakeReg(WidthLong, BackendGeneric, slotR9)
	R10 = MakeReg(WidthLong, BackendGeneric, slotR10)
	R11 = MakeReg(WidthLong, BackendGeneric, slotR11)
	R12 = MakeReg(WidthLong, BackendGeneric, slotR12)
	R13 = MakeReg(WidthLong, BackendGeneric, slotR13)
	R14 = MakeReg(WidthLong, BackendGeneric, slotR14)
	R15 = MakeReg(WidthLong, BackendGeneric, slotR15)

	XmmRegs = []Reg{
		MakeReg(WidthLong, BackendGeneric, slotXmm0),
		MakeReg(WidthLong, BackendGeneric, slotXmm1),
		MakeReg(WidthLong, BackendGeneric, slotXmm2),
		MakeReg(WidthLong, BackendGeneric, slotXmm3),
		MakeReg(WidthLong, BackendGeneric, slotXmm4),
		MakeReg(WidthLong, BackendGeneric, slotXmm5),
		MakeReg(WidthLong, BackendGeneric, slotXmm6),
		MakeReg(WidthLong, BackendGeneric, slotXmm7),
		MakeReg(WidthLong, BackendGeneric, slotXmm8),
		MakeReg(WidthLong, BackendGeneric, slotXmm9),
		MakeReg(WidthLong, BackendGeneric, slotXmm10),
		MakeReg(WidthLong, BackendGeneric, slotXmm11),
		MakeReg(WidthLong, BackendGeneric, slotXmm12),
		MakeReg(WidthLong, BackendGeneric, slotXmm13),
		MakeReg(WidthLong, BackendGeneric, slotXmm14),
		MakeReg(WidthLong, BackendGeneric, slotXmm15),
	}

	Xmm0 = XmmRegs[0]
	Xmm1 = XmmRegs[1]
)

// GPRegs64 lists the sixteen x86-64 general-purpose registers in
// encoding order (rax..r15), the order the ModR/M reg/rm fields and
// the REX.B/R/X extension bits index into.
var GPRegs64 = []Reg{
	Rax, Rcx, Rdx, Rbx,
	PtrStack, PtrFrame, Rsi, Rdi,
	R8, R9, R10, R11, R12, R13, R14, R15,
}

// GPRegs32 lists the eight x86-32 general-purpose registers in
// encoding order (eax..edi).
var GPRegs32 = []Reg{
	Eax, Ecx, Edx, Ebx,
	AsSize(PtrStack, WidthInt), AsSize(PtrFrame, WidthInt), Esi, Edi,
}

func init() {
	RegisterNames(PtrD.Key(), map[Width]string{WidthPtr: "d", WidthByte: "dl", WidthInt: "edx", WidthLong: "rdx"})
	RegisterNames(PtrSI.Key(), map[Width]string{WidthPtr: "si", WidthByte: "sil", WidthInt: "esi", WidthLong: "rsi"})
	RegisterNames(PtrDI.Key(), map[Width]string{WidthPtr: "di", WidthByte: "dil", WidthInt: "edi", WidthLong: "rdi"})

	extra := []Reg{R8, R9, R10, R11, R12, R13, R14, R15}
	for i, r := range extra {
		RegisterNames(r.Key(), map[Width]string{WidthLong: fmt.Sprintf("r%d", 8+i), WidthInt: fmt.Sprintf("r%dd", 8+i)})
	}
	for i, r := range XmmRegs {
		RegisterNames(r.Key(), map[Width]string{WidthLong: fmt.Sprintf("xmm%d", i)})
	}
}
