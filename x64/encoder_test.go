package x64

import (
	"testing"

	"github.com/ngenio/ngen/ir"
	"github.com/ngenio/ngen/output"
)

func encodeOneInstr(t *testing.T, instr ir.Instr) []byte {
	t.Helper()
	w := output.NewWriter()
	co := output.NewCodeOutput(w, 8, map[ir.Label]uint32{})
	e := NewEncoder(nil)
	if err := e.encodeOne(instr, co); err != nil {
		t.Fatalf("encodeOne: %v", err)
	}
	return w.Bytes()
}

func TestEncodeMovRegRegNoRex(t *testing.T) {
	// mov eax, ecx (32-bit operands): no REX prefix needed.
	instr := ir.MustInstr(ir.OpMov, ir.Register(ir.Eax, ir.SInt), ir.Register(ir.Ecx, ir.SInt))
	got := encodeOneInstr(t, instr)
	want := []byte{0x89, 0xC8}
	if string(got) != string(want) {
		t.Fatalf("mov eax, ecx = % X, want % X", got, want)
	}
}

func TestEncodeMovRegRegRexW(t *testing.T) {
	// mov rax, rcx: REX.W required for the 64-bit operand size.
	instr := ir.MustInstr(ir.OpMov, ir.Register(ir.Rax, ir.SLong), ir.Register(ir.Rcx, ir.SLong))
	got := encodeOneInstr(t, instr)
	want := []byte{0x48, 0x89, 0xC8}
	if string(got) != string(want) {
		t.Fatalf("mov rax, rcx = % X, want % X", got, want)
	}
}

func TestEncodeMovRegRegRexB(t *testing.T) {
	// mov r8, rax: REX.B selects r8 as the rm operand's extension bit.
	instr := ir.MustInstr(ir.OpMov, ir.Register(ir.R8, ir.SLong), ir.Register(ir.Rax, ir.SLong))
	got := encodeOneInstr(t, instr)
	want := []byte{0x49, 0x89, 0xC0}
	if string(got) != string(want) {
		t.Fatalf("mov r8, rax = % X, want % X", got, want)
	}
}

func TestEncodeShiftByImm8(t *testing.T) {
	instr := ir.MustInstr(ir.OpShl, ir.Register(ir.Eax, ir.SInt), ir.Constant(ir.SByte, 3))
	got := encodeOneInstr(t, instr)
	want := []byte{0xC1, 0xE0, 0x03}
	if string(got) != string(want) {
		t.Fatalf("shl eax, 3 = % X, want % X", got, want)
	}
}

func TestEncodeShiftByCL(t *testing.T) {
	instr := ir.MustInstr(ir.OpShr, ir.Register(ir.Eax, ir.SInt), ir.Register(ir.Ecx, ir.SInt))
	got := encodeOneInstr(t, instr)
	want := []byte{0xD3, 0xE8} // shr r/m32, cl: D3 /5, ModRM(11,5,eax=0)
	if string(got) != string(want) {
		t.Fatalf("shr eax, cl = % X, want % X", got, want)
	}
}

func TestEncodePushPop(t *testing.T) {
	push := encodeOneInstr(t, ir.MustInstr(ir.OpPush, ir.None, ir.Register(ir.Rax, ir.SLong)))
	if len(push) != 1 || push[0] != 0x50 {
		t.Fatalf("push rax = % X, want [50]", push)
	}
	pop := encodeOneInstr(t, ir.MustInstr(ir.OpPop, ir.Register(ir.Rcx, ir.SLong), ir.None))
	if len(pop) != 1 || pop[0] != 0x59 {
		t.Fatalf("pop rcx = % X, want [59]", pop)
	}
}

func TestEncodeRet(t *testing.T) {
	got := encodeOneInstr(t, ir.MustInstr(ir.OpRet, ir.None, ir.None))
	if len(got) != 1 || got[0] != 0xC3 {
		t.Fatalf("ret = % X, want [C3]", got)
	}
}

func TestEncodingIndexMatchesGPRegs64Order(t *testing.T) {
	for i, r := range ir.GPRegs64 {
		low3, ext := encodingIndex(r)
		wantExt := i >= 8
		if low3 != byte(i&7) || ext != wantExt {
			t.Errorf("encodingIndex(%s) = (%d,%v), want (%d,%v)", r, low3, ext, i&7, wantExt)
		}
	}
}
