package abi

import (
	"testing"

	"github.com/ngenio/ngen/ir"
)

func TestCdeclParamsAllOnStack(t *testing.T) {
	c := Cdecl32{}
	params := []ir.TypeDesc{
		ir.PrimitiveDesc(ir.PrimInteger, ir.SInt),
		ir.PrimitiveDesc(ir.PrimInteger, ir.SByte),
		ir.PrimitiveDesc(ir.PrimInteger, ir.SInt),
	}
	places := c.ClassifyParams(params)
	if !places[0].Memory || places[0].StackOffset.O32 != 0 {
		t.Fatalf("param 0 expected stack offset 0, got %+v", places[0])
	}
	if places[1].StackOffset.O32 != 4 {
		t.Fatalf("param 1 expected stack offset 4, got %d", places[1].StackOffset.O32)
	}
	if places[2].StackOffset.O32 != 8 {
		t.Fatalf("param 2 expected stack offset 8, got %d", places[2].StackOffset.O32)
	}
}

func TestCdeclIntegerReturnInEax(t *testing.T) {
	c := Cdecl32{}
	r := c.ClassifyResult(ir.PrimitiveDesc(ir.PrimInteger, ir.SInt))
	if len(r.Eightbytes) != 1 || !ir.Same(r.Eightbytes[0].Reg, ir.Eax) {
		t.Fatalf("expected single eax placement, got %+v", r.Eightbytes)
	}
}

func TestCdeclWideIntegerReturnInEaxEdx(t *testing.T) {
	c := Cdecl32{}
	r := c.ClassifyResult(ir.PrimitiveDesc(ir.PrimInteger, ir.SLong))
	if len(r.Eightbytes) != 2 {
		t.Fatalf("expected eax:edx split, got %+v", r.Eightbytes)
	}
	if !ir.Same(r.Eightbytes[0].Reg, ir.Eax) || !ir.Same(r.Eightbytes[1].Reg, ir.Edx) {
		t.Fatalf("expected eax then edx, got %+v", r.Eightbytes)
	}
}

func TestCdeclFloatReturnIsX87(t *testing.T) {
	c := Cdecl32{}
	r := c.ClassifyResult(ir.PrimitiveDesc(ir.PrimReal, ir.Size{Size32: 8, Align32: 8}))
	if r.Eightbytes[0].Class != ClassX87 {
		t.Fatalf("float result should classify as x87, got %v", r.Eightbytes[0].Class)
	}
}

func TestCdeclComplexParamIsHiddenStackSlot(t *testing.T) {
	c := Cdecl32{}
	complex := ir.ComplexDesc(ir.Size{Size32: 24, Align32: 4}, nil, nil)
	places := c.ClassifyParams([]ir.TypeDesc{complex})
	if !places[0].Hidden || !places[0].Memory {
		t.Fatalf("complex param should be a hidden stack slot, got %+v", places[0])
	}
}
