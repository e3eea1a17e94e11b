package xform

import "github.com/ngenio/ngen/ir"

// ABI is the narrow slice of a calling convention the used-register
// dataflow needs: which registers a call clobbers.
type ABI interface {
	CallerSaved() ir.RegSet
}

// UsedRegResult is the output of the backwards used-register dataflow
// for every instruction, the set of registers live at
// that point, plus the union of every register ever written.
type UsedRegResult struct {
	usedAt  []ir.RegSet
	allUsed ir.RegSet
}

// UsedAt returns the live-register set at instruction index i.
func (r *UsedRegResult) UsedAt(i int) ir.RegSet { return r.usedAt[i] }

// AllUsed returns the union of every destination register written
// across the whole listing.
func (r *UsedRegResult) AllUsed() ir.RegSet { return r.allUsed }

// AnalyzeUsedRegisters runs the backwards dataflow described in spec
// §4.2 over l, producing one live-register snapshot per instruction.
func AnalyzeUsedRegisters(l *ir.Listing, ptr64 bool, abi ABI) *UsedRegResult {
	n := l.Count()
	result := &UsedRegResult{
		usedAt:  make([]ir.RegSet, n),
		allUsed: ir.NewRegSet(ptr64),
	}
	live := ir.NewRegSet(ptr64)

	for i := n - 1; i >= 0; i-- {
		instr := l.At(i)

		if instr.Dest.Kind() == ir.KindRegister {
			dm := instr.Op.DestMode()
			if dm == ir.DestWrite || dm == ir.DestReadWrite {
				result.allUsed.Put(instr.Dest.Reg())
			}
		}

		switch {
		case instr.Op.IsTerminator():
			live.Clear()

		case instr.Op == ir.OpBeginBlock:
			live.Remove(ir.PtrA)

		case instr.Op.IsCall():
			abi.CallerSaved().Each(func(r ir.Reg) { live.Remove(r) })

		case isSelfXor(instr):
			live.Remove(instr.Dest.Reg())

		default:
			addIndirectBase(&live, instr.Dest)
			addIndirectBase(&live, instr.Src)

			if instr.Src.Kind() == ir.KindRegister {
				live.Put(instr.Src.Reg())
			}

			if instr.Dest.Kind() == ir.KindRegister {
				switch instr.Op.DestMode() {
				case ir.DestWrite:
					live.Remove(instr.Dest.Reg())
				case ir.DestReadWrite:
					live.Put(instr.Dest.Reg())
				}
			}
		}

		result.usedAt[i] = live.Clone()
	}

	return result
}

func addIndirectBase(live *ir.RegSet, o ir.Operand) {
	if o.Kind() == ir.KindRelative {
		live.Put(o.Reg())
	}
}

func isSelfXor(i ir.Instr) bool {
	return i.Op == ir.OpBXor &&
		i.Dest.Kind() == ir.KindRegister && i.Src.Kind() == ir.KindRegister &&
		ir.Same(i.Dest.Reg(), i.Src.Reg())
}

// UnusedReg returns the first register from candidates not present in
// live, or ir.NoReg if every candidate is live. Used by invalid-
// instruction lowering to find a scratch register
// at a given program point.
func UnusedReg(live ir.RegSet, candidates []ir.Reg) ir.Reg {
	for _, r := range candidates {
		if !live.Has(r) {
			return r
		}
	}
	return ir.NoReg
}
