package x64

import (
	"testing"

	"github.com/ngenio/ngen/ir"
)

func TestPrologPushesRbpThenSubsForFrameSize(t *testing.T) {
	l := ir.NewListing()
	layout := Build(l, nil, nil, []ir.Reg{ir.Rbx})

	instrs := Prolog(l, layout, nil)
	if len(instrs) < 4 {
		t.Fatalf("expected at least push/mov/sub + one saved-reg spill, got %d instructions", len(instrs))
	}
	if instrs[0].Op != ir.OpPush || !ir.Same(instrs[0].Src.Reg(), rbp) {
		t.Fatalf("first prolog instruction should be push rbp, got %v", instrs[0])
	}
	if instrs[1].Op != ir.OpMov || !ir.Same(instrs[1].Dest.Reg(), rbp) || !ir.Same(instrs[1].Src.Reg(), ir.PtrStack) {
		t.Fatalf("second prolog instruction should be mov rbp, rsp, got %v", instrs[1])
	}
	if instrs[2].Op != ir.OpSub {
		t.Fatalf("third prolog instruction should reserve the frame with sub rsp, N, got %v", instrs[2])
	}
}

func TestPrologSkipsSubWhenFrameIsEmpty(t *testing.T) {
	l := ir.NewListing()
	layout := Build(l, nil, nil, nil)

	instrs := Prolog(l, layout, nil)
	if len(instrs) != 2 {
		t.Fatalf("expected just push rbp + mov rbp,rsp for an empty frame, got %d instructions", len(instrs))
	}
}

func TestEpilogRestoresSavedRegsInReverseOrder(t *testing.T) {
	l := ir.NewListing()
	layout := Build(l, nil, nil, []ir.Reg{ir.Rbx, ir.R12})

	instrs := Epilog(layout)
	if !ir.Same(instrs[0].Dest.Reg(), ir.R12) {
		t.Fatalf("epilog should restore the most-recently-pushed register first, got %v", instrs[0])
	}
	if !ir.Same(instrs[1].Dest.Reg(), ir.Rbx) {
		t.Fatalf("epilog should restore rbx second, got %v", instrs[1])
	}
	last := instrs[len(instrs)-1]
	if last.Op != ir.OpRet {
		t.Fatalf("epilog must end in ret, got %v", last)
	}
}

func TestDwarfRegNumMatchesSysVOrder(t *testing.T) {
	cases := map[ir.Reg]uint64{
		ir.Rax: 0, ir.Rdx: 1, ir.Rcx: 2, ir.Rbx: 3, rbp: 6, ir.PtrStack: 7, ir.R8: 8,
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
