package refs

import "sync"

// OffsetReference is notified when its OffsetSource's offset changes.
type OffsetReference interface {
	Moved(offset int64)
}

// OffsetSource is Source's counterpart for a relative displacement
// rather than an absolute address, and is permitted to stay
// unresolved (read back as zero). Used for placeholders such as a
// block's destructor epilog distance before the frame layout has
// assigned it.
type OffsetSource struct {
	mu       sync.Mutex
	resolved bool
	offset   int64
	subs     map[OffsetReference]struct{}
}

func NewOffsetSource() *OffsetSource {
	return &OffsetSource{subs: map[OffsetReference]struct{}{}}
}

// Offset returns the current offset, or 0 if never resolved.
func (s *OffsetSource) Offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Resolved reports whether Set has ever been called.
func (s *OffsetSource) Resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// Set assigns the offset and notifies every subscriber.
func (s *OffsetSource) Set(offset int64) {
	s.mu.Lock()
	s.offset = offset
	s.resolved = true
	subs := make([]OffsetReference, 0, len(s.subs))
	for r := range s.subs {
		subs = append(subs, r)
	}
	s.mu.Unlock()
	for _, r := range subs {
		r.Moved(offset)
	}
}

func (s *OffsetSource) AddRef(r OffsetReference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[r] = struct{}{}
}

func (s *OffsetSource) RemoveRef(r OffsetReference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, r)
}

// OffsetRef is the default OffsetReference implementation.
type OffsetRef struct {
	mu     sync.Mutex
	offset int64
}

func NewOffsetRef(s *OffsetSource) *OffsetRef {
	r := &OffsetRef{}
	s.AddRef(r)
	if s.Resolved() {
		r.offset = s.Offset()
	}
	return r
}

func (r *OffsetRef) Moved(offset int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offset = offset
}

func (r *OffsetRef) Offset() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offset
}
