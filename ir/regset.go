package ir

// RegSet is a compact set of registers. Membership is tracked by
// physical register identity (Reg.Key()), not by width: byte-sized
// observations are promoted to 32-bit storage and pointer-sized
// observations are promoted to the target's native pointer width, so
// that has(asSize(r, sByte)) == has(asSize(r, sInt)) always holds.
// ptrStack and ptrFrame are never members (Put silently ignores them,
// keeping the frame/stack registers out of the allocatable pool).
type RegSet struct {
	ptr64 bool
	regs  map[uint32]Width
}

// NewRegSet creates an empty set for the given pointer width.
func NewRegSet(ptr64 bool) RegSet {
	return RegSet{ptr64: ptr64, regs: map[uint32]Width{}}
}

func (s RegSet) normalize(w Width) Width {
	switch w {
	case WidthByte:
		return WidthInt
	case WidthPtr:
		if s.ptr64 {
			return WidthLong
		}
		return WidthInt
	default:
		return w
	}
}

func (s *RegSet) reserved(r Reg) bool {
	return Same(r, PtrStack) || Same(r, PtrFrame)
}

// Put adds r to the set, promoting its stored width per the rules above.
func (s *RegSet) Put(r Reg) {
	if s.reserved(r) {
		return
	}
	key := r.Key()
	w := s.normalize(r.Width())
	if cur, ok := s.regs[key]; !ok || widthRank(w) > widthRank(cur) {
		s.regs[key] = w
	}
}

func widthRank(w Width) int {
	switch w {
	case WidthByte:
		return 0
	case WidthInt:
		return 1
	case WidthPtr:
		return 1
	case WidthLong:
		return 2
	default:
		return -1
	}
}

// Remove deletes r (by physical identity) from the set.
func (s *RegSet) Remove(r Reg) {
	delete(s.regs, r.Key())
}

// Has reports whether r's physical register is a member, regardless
// of the width r itself carries.
func (s RegSet) Has(r Reg) bool {
	_, ok := s.regs[r.Key()]
	return ok
}

// Len returns the number of distinct physical registers in the set.
func (s RegSet) Len() int { return len(s.regs) }

// Each calls fn once per member, with the register at its stored
// (promoted) width.
func (s RegSet) Each(fn func(Reg)) {
	for key, w := range s.regs {
		fn(Reg(key) | Reg(uint32(w)<<regWidthShift))
	}
}

// Clone returns an independent copy of the set.
func (s RegSet) Clone() RegSet {
	out := NewRegSet(s.ptr64)
	for k, v := range s.regs {
		out.regs[k] = v
	}
	return out
}

// Clear empties the set in place.
func (s *RegSet) Clear() {
	for k := range s.regs {
		delete(s.regs, k)
	}
}

// Union adds every member of o into s.
func (s *RegSet) Union(o RegSet) {
	for k, w := range o.regs {
		if cur, ok := s.regs[k]; !ok || widthRank(w) > widthRank(cur) {
			s.regs[k] = w
		}
	}
}

// Intersects reports whether s and o share any physical register.
func (s RegSet) Intersects(o RegSet) bool {
	small, big := s.regs, o.regs
	if len(big) < len(small) {
		small, big = big, small
	}
	for k := range small {
		if _, ok := big[k]; ok {
			return true
		}
	}
	return false
}
