package abi

import (
	"testing"

	"github.com/ngenio/ngen/ir"
)

func TestSysVIdentityFunctionParam(t *testing.T) {
	c := SystemVAMD64{}
	places := c.ClassifyParams([]ir.TypeDesc{ir.PrimitiveDesc(ir.PrimInteger, ir.SInt)})
	if len(places) != 1 {
		t.Fatalf("expected 1 placement, got %d", len(places))
	}
	if places[0].Memory {
		t.Fatalf("first int arg should be in a register, not memory")
	}
	if !places[0].Eightbytes[0].InReg || !ir.Same(places[0].Eightbytes[0].Reg, ir.Rdi) {
		t.Fatalf("first int arg should be rdi, got %+v", places[0].Eightbytes[0])
	}

	result := c.ClassifyResult(ir.PrimitiveDesc(ir.PrimInteger, ir.SInt))
	if result.MemoryReturn {
		t.Fatalf("int result should not be a memory return")
	}
	if !ir.Same(result.Eightbytes[0].Reg, ir.Rax) {
		t.Fatalf("int result should be rax, got %v", result.Eightbytes[0].Reg)
	}
}

func TestSysVSixIntArgsOverflowToStack(t *testing.T) {
	c := SystemVAMD64{}
	params := make([]ir.TypeDesc, 7)
	for i := range params {
		params[i] = ir.PrimitiveDesc(ir.PrimInteger, ir.SInt)
	}
	places := c.ClassifyParams(params)
	want := []ir.Reg{ir.Rdi, ir.Rsi, ir.Rdx, ir.Rcx, ir.R8, ir.R9}
	for i, w := range want {
		if !places[i].Eightbytes[0].InReg || !ir.Same(places[i].Eightbytes[0].Reg, w) {
			t.Fatalf("arg %d: expected %v, got %+v", i, w, places[i].Eightbytes[0])
		}
	}
	if !places[6].Memory {
		t.Fatalf("7th int arg should overflow to the stack")
	}
	if places[6].StackOffset.O64 != 0 {
		t.Fatalf("first stack arg should be at offset 0, got %d", places[6].StackOffset.O64)
	}
}

func TestSysVComplexParamIsHiddenPointer(t *testing.T) {
	c := SystemVAMD64{}
	complex := ir.ComplexDesc(ir.Size{Size64: 24, Align64: 8}, nil, nil)
	places := c.ClassifyParams([]ir.TypeDesc{complex})
	if !places[0].Hidden {
		t.Fatalf("complex param should be classified as hidden-pointer")
	}
	if !places[0].Eightbytes[0].InReg || !ir.Same(places[0].Eightbytes[0].Reg, ir.Rdi) {
		t.Fatalf("hidden pointer should consume the first int reg, got %+v", places[0].Eightbytes[0])
	}
}

func TestSysVSimpleStructSplitsAcrossTwoIntRegs(t *testing.T) {
	c := SystemVAMD64{}
	members := []ir.SimpleMember{
		{Kind: ir.PrimInteger, Size: ir.SLong, Offset64: 0},
		{Kind: ir.PrimInteger, Size: ir.SLong, Offset64: 8},
	}
	simple := ir.SimpleDesc(ir.Size{Size64: 16, Align64: 8}, members)
	places := c.ClassifyParams([]ir.TypeDesc{simple})
	if len(places[0].Eightbytes) != 2 {
		t.Fatalf("expected 2 eightbytes, got %d", len(places[0].Eightbytes))
	}
	if !ir.Same(places[0].Eightbytes[0].Reg, ir.Rdi) || !ir.Same(places[0].Eightbytes[1].Reg, ir.Rsi) {
		t.Fatalf("expected rdi/rsi split, got %+v", places[0].Eightbytes)
	}
}

func TestSysVSimpleStructFallsBackToMemoryWhenRegsExhausted(t *testing.T) {
	c := SystemVAMD64{}
	members := []ir.SimpleMember{
		{Kind: ir.PrimInteger, Size: ir.SLong, Offset64: 0},
		{Kind: ir.PrimInteger, Size: ir.SLong, Offset64: 8},
	}
	simple := ir.SimpleDesc(ir.Size{Size64: 16, Align64: 8}, members)
	params := []ir.TypeDesc{
		ir.PrimitiveDesc(ir.PrimInteger, ir.SInt), // rdi
		ir.PrimitiveDesc(ir.PrimInteger, ir.SInt), // rsi
		ir.PrimitiveDesc(ir.PrimInteger, ir.SInt), // rdx
		ir.PrimitiveDesc(ir.PrimInteger, ir.SInt), // rcx
		ir.PrimitiveDesc(ir.PrimInteger, ir.SInt), // r8
		simple,                                    // only r9 left, needs two -> memory
	}
	places := c.ClassifyParams(params)
	if !places[5].Memory {
		t.Fatalf("struct needing 2 int regs with only 1 free should fall back to memory")
	}
}

func TestSysVComplexResultIsMemoryReturn(t *testing.T) {
	c := SystemVAMD64{}
	complex := ir.ComplexDesc(ir.Size{Size64: 32, Align64: 8}, nil, nil)
	if !c.ClassifyResult(complex).MemoryReturn {
		t.Fatalf("complex result should be a memory return")
	}
}
