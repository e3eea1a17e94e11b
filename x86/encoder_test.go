package x86

import (
	"testing"

	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/output"
)

func encodeOneInstr(t *testing.T, instr ir.Instr) []byte {
	t.Helper()
	w := output.NewWriter()
	co := output.NewCodeOutput(w, 4, map[ir.Label]uint32{})
	e := NewEncoder(nil)
	if err := e.encodeOne(instr, co); err != nil {
		t.Fatalf("encodeOne: %v", err)
	}
	return w.Bytes()
}

func TestEncodeMovRegReg(t *testing.T) {
	instr := ir.MustInstr(ir.OpMov, ir.Register(ir.Eax, ir.SInt), ir.Register(ir.Ecx, ir.SInt))
	got := encodeOneInstr(t, instr)
	want := []byte{0x89, 0xC8} // mov eax, ecx: 89 /r, ModRM(11,ecx=1,eax=0)
	if string(got) != string(want) {
		t.Fatalf("mov eax, ecx = % X, want % X", got, want)
	}
}

func TestEncodeMovRegImm(t *testing.T) {
	instr := ir.MustInstr(ir.OpMov, ir.Register(ir.Eax, ir.SInt), ir.Constant(ir.SInt, 5))
	got := encodeOneInstr(t, instr)
	want := []byte{0xB8, 0x05, 0x00, 0x00, 0x00}
	if string(got) != string(want) {
		t.Fatalf("mov eax, 5 = % X, want % X", got, want)
	}
}

func TestEncodeAddRegReg(t *testing.T) {
	instr := ir.MustInstr(ir.OpAdd, ir.Register(ir.Ebx, ir.SInt), ir.Register(ir.Ecx, ir.SInt))
	got := encodeOneInstr(t, instr)
	want := []byte{0x01, 0xCB} // add ebx, ecx: 01 /r, ModRM(11,ecx=1,ebx=3)
	if string(got) != string(want) {
		t.Fatalf("add ebx, ecx = % X, want % X", got, want)
	}
}

func TestEncodePushPop(t *testing.T) {
	push := encodeOneInstr(t, ir.MustInstr(ir.OpPush, ir.None, ir.Register(ir.Eax, ir.SInt)))
	if len(push) != 1 || push[0] != 0x50 {
		t.Fatalf("push eax = % X, want [50]", push)
	}
	pop := encodeOneInstr(t, ir.MustInstr(ir.OpPop, ir.Register(ir.Ecx, ir.SInt), ir.None))
	if len(pop) != 1 || pop[0] != 0x59 {
		t.Fatalf("pop ecx = % X, want [59]", pop)
	}
}

func TestEncodeRet(t *testing.T) {
	got := encodeOneInstr(t, ir.MustInstr(ir.OpRet, ir.None, ir.None))
	if len(got) != 1 || got[0] != 0xC3 {
		t.Fatalf("ret = % X, want [C3]", got)
	}
}

func TestEncodeShiftByImm8(t *testing.T) {
	instr := ir.MustInstr(ir.OpShl, ir.Register(ir.Eax, ir.SInt), ir.Constant(ir.SByte, 3))
	got := encodeOneInstr(t, instr)
	want := []byte{0xC1, 0xE0, 0x03} // shl eax, 3: C1 /4, ModRM(11,4,eax=0), imm8
	if string(got) != string(want) {
		t.Fatalf("shl eax, 3 = % X, want % X", got, want)
	}
}

func TestEncodingIndexMatchesGPRegs32Order(t *testing.T) {
	for i, r := range ir.GPRegs32 {
		if got := encodingIndex(r); got != byte(i) {
			t.Errorf("encodingIndex(%s) = %d, want %d", r, got, i)
		}
	}
}
