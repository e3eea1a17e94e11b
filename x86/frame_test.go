package x86

import (
	"testing"

	"github.com/ngenio/ngen/ir"
)

func TestPrologPushesEbpThenSubsForFrameSize(t *testing.T) {
	l := ir.NewListing()
	layout := Build(l, nil, nil, []ir.Reg{ir.Ebx})

	instrs := Prolog(l, layout, nil)
	if len(instrs) < 4 {
		t.Fatalf("expected at least push/mov/sub + one saved-reg spill, got %d instructions", len(instrs))
	}
	if instrs[0].Op != ir.OpPush || !ir.Same(instrs[0].Src.Reg(), ebp) {
		t.Fatalf("first prolog instruction should be push ebp, got %v", instrs[0])
	}
	if instrs[1].Op != ir.OpMov || !ir.Same(instrs[1].Dest.Reg(), ebp) || !ir.Same(instrs[1].Src.Reg(), ir.PtrStack) {
		t.Fatalf("second prolog instruction should be mov ebp, esp, got %v", instrs[1])
	}
	if instrs[2].Op != ir.OpSub {
		t.Fatalf("third prolog instruction should reserve the frame with sub esp, N, got %v", instrs[2])
	}
}

func TestPrologSkipsSubWhenFrameIsEmpty(t *testing.T) {
	l := ir.NewListing()
	layout := Build(l, nil, nil, nil)

	instrs := Prolog(l, layout, nil)
	if len(instrs) != 2 {
		t.Fatalf("expected just push ebp + mov ebp,esp for an empty frame, got %d instructions", len(instrs))
	}
}

func TestEpilogRestoresSavedRegsInReverseOrder(t *testing.T) {
	l := ir.NewListing()
	layout := Build(l, nil, nil, []ir.Reg{ir.Ebx, ir.Esi})

	instrs := Epilog(layout)
	if !ir.Same(instrs[0].Dest.Reg(), ir.Esi) {
		t.Fatalf("epilog should restore the most-recently-pushed register first, got %v", instrs[0])
	}
	if !ir.Same(instrs[1].Dest.Reg(), ir.Ebx) {
		t.Fatalf("epilog should restore ebx second, got %v", instrs[1])
	}
	last := instrs[len(instrs)-1]
	if last.Op != ir.OpRet {
		t.Fatalf("epilog must end in ret, got %v", last)
	}
}

func TestDwarfRegNumMatchesI386Order(t *testing.T) {
	cases := map[ir.Reg]uint64{
		ir.Eax: 0, ir.Ecx: 1, ir.Edx: 2, ir.Ebx: 3, ebp: 5, ir.Esi: 6, ir.Edi: 7,
	}
	for r, want := range cases {
		if got := dwarfRegNum(r); got != want {
			t.Errorf("dwarfRegNum(%s) = %d, want %d", r, got, want)
		}
	}
}

func TestCFIProgramStartsWithAdvanceAndCFAOffset(t *testing.T) {
	l := ir.NewListing()
	layout := Build(l, nil, nil, nil)
	buf := CFIProgram(layout, 1, 4)
	if len(buf) == 0 {
		t.Fatalf("expected a non-empty CFI program")
	}
}
