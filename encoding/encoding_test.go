package encoding

import (
	"testing"

	"github.com/ngenio/ngen/ir"
)

func TestModRMRegisterDirect(t *testing.T) {
	// add rbx, rax: ModR/M mod=11, reg=rax(0), rm=rbx(3) -> 0xC3
	got := ModRM(ModRegister, 0, 3)
	if got != 0xC3 {
		t.Fatalf("ModRM(11,0,3) = 0x%02X, want 0xC3", got)
	}
}

func TestRexWEncoding(t *testing.T) {
	got := REX(true, false, false, true)
	if got != 0x49 {
		t.Fatalf("REX(w,_,_,b) = 0x%02X, want 0x49", got)
	}
}

func TestSIBNoIndexScale1(t *testing.T) {
	got := SIB(0, SIBNoIndex, 0 /* rax */)
	if got != 0x20 {
		t.Fatalf("SIB(scale=1,noindex,rax) = 0x%02X, want 0x20", got)
	}
}

func TestArithDescriptorAddOpcodeBytes(t *testing.T) {
	d, ok := ArithDescriptorFor(ir.OpAdd)
	if !ok {
		t.Fatalf("expected OpAdd to have a group-1 descriptor")
	}
	if WideOpcode(d.RegRM) != 0x01 {
		t.Fatalf("add r/m64,r64 opcode = 0x%02X, want 0x01", WideOpcode(d.RegRM))
	}
	if d.Ext != 0 {
		t.Fatalf("add immediate-form ext digit = %d, want 0", d.Ext)
	}
}

func TestArithDescriptorSubExtDigit(t *testing.T) {
	d, _ := ArithDescriptorFor(ir.OpSub)
	if d.Ext != 5 {
		t.Fatalf("sub immediate-form ext digit = %d, want 5", d.Ext)
	}
}

func TestShiftDescriptorShlExtDigit(t *testing.T) {
	d, ok := ShiftDescriptorFor(ir.OpShl)
	if !ok || d.Ext != 4 {
		t.Fatalf("shl ext digit = %d, want 4", d.Ext)
	}
}

func TestJccShortMatchesConditionNibble(t *testing.T) {
	if JccShort(ir.CondE) != 0x74 {
		t.Fatalf("je short opcode = 0x%02X, want 0x74", JccShort(ir.CondE))
	}
}
