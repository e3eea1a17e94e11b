// Package refs implements the reference/relocation system: a RefSource
// holds an identity and a mutable Content (address + size); every
// Reference subscribed to it is notified whenever the content's
// address changes, so that emitted code can hold onto addresses that
// are replaced at any time.
//
// There is no tracing GC backing this rewrite, so the "weak set" of
// subscribers the original design assumes is modeled as an ordinary
// map with explicit AddRef/RemoveRef, deregistering on drop
// instead of relying on a collector to reclaim dead entries.
package refs

import "sync"

// Reference is notified when its Source's address changes, or when
// the Source is replaced by another via Steal.
type Reference interface {
	// Moved is called with the new absolute address whenever the
	// subscribed Source's Content address changes.
	Moved(address uintptr)
	// Lost is the notification for the owning Content being detached
	// without a successor (the Content lifecycle ending without a new
	// Set); nothing in this package calls it.
	Lost()
	// Rehome is called by Steal to update which Source a reference
	// should report itself as subscribed to.
	Rehome(newSource *Source)
}

// Content is an (address, size) record owned by at most one Source at
// a time. It is created detached and
// attached by Source.Set.
type Content struct {
	mu      sync.Mutex
	address uintptr
	size    uintptr
	owner   *Source
}

// NewContent creates a detached Content describing an address/size
// pair not yet associated with a Source.
func NewContent(address uintptr, size uintptr) *Content {
	return &Content{address: address, size: size}
}

func (c *Content) Address() uintptr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

func (c *Content) Size() uintptr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *Content) Owner() *Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// Set updates the content's address and size in place and, if
// attached, drives the same broadcast Source.Set would.
func (c *Content) Set(address, size uintptr) {
	c.mu.Lock()
	c.address = address
	c.size = size
	owner := c.owner
	c.mu.Unlock()
	if owner != nil {
		owner.broadcast(address)
	}
}

func (c *Content) attach(s *Source) {
	c.mu.Lock()
	c.owner = s
	c.mu.Unlock()
}

// Detach clears a Content's owner. Detaching a Content that is still
// live (i.e. emitted code may hold references to it) is undefined;
// this only guards the narrower invariant that a Content may be
// detached only by its current owner.
func (c *Content) Detach(by *Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner != by {
		panic("refs: Content.Detach called by a Source that does not own it")
	}
	c.owner = nil
}

// Source is an immutable identity (its Title) with a mutable Content
// and the set of References subscribed to it. A single coarse lock
// per Source serializes updates.
type Source struct {
	mu          sync.Mutex
	title       string
	content     *Content
	subscribers map[Reference]struct{}
	stolenBy    *Source
}

// NewSource creates a named, initially content-less reference source.
func NewSource(title string) *Source {
	return &Source{title: title, subscribers: map[Reference]struct{}{}}
}

// Title returns the source's debug-only human-readable identity.
func (s *Source) Title() string { return s.title }

// Content returns the currently attached Content, or nil.
func (s *Source) Content() *Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// Set attaches c to s (replacing any previous Content) and notifies
// every subscribed Reference of c's current address.
func (s *Source) Set(c *Content) {
	c.attach(s)
	s.mu.Lock()
	s.content = c
	addr := c.Address()
	s.mu.Unlock()
	s.broadcast(addr)
}

// AddRef subscribes r to address-change notifications from s.
func (s *Source) AddRef(r Reference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[r] = struct{}{}
	if s.content != nil {
		r.Rehome(s)
	}
}

// RemoveRef unsubscribes r (the explicit deregister the absence of a
// tracing GC requires).
func (s *Source) RemoveRef(r Reference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, r)
}

func (s *Source) broadcast(addr uintptr) {
	s.mu.Lock()
	subs := make([]Reference, 0, len(s.subscribers))
	for r := range s.subscribers {
		subs = append(subs, r)
	}
	s.mu.Unlock()
	for _, r := range subs {
		r.Moved(addr)
	}
}

// Steal re-parents every Reference currently subscribed to from onto
// s, and leaves a forwarding pointer on from so that a lingering
// lookup on the stolen source chases to its new owner.
// Every rehomed reference is immediately notified of s's current
// address, if any.
func (s *Source) Steal(from *Source) {
	from.mu.Lock()
	moved := make([]Reference, 0, len(from.subscribers))
	for r := range from.subscribers {
		moved = append(moved, r)
	}
	from.subscribers = map[Reference]struct{}{}
	from.stolenBy = s
	from.mu.Unlock()

	s.mu.Lock()
	for _, r := range moved {
		s.subscribers[r] = struct{}{}
	}
	var addr uintptr
	hasContent := s.content != nil
	if hasContent {
		addr = s.content.Address()
	}
	s.mu.Unlock()

	for _, r := range moved {
		r.Rehome(s)
		if hasContent {
			r.Moved(addr)
		}
	}
}

// Resolve follows forwarding pointers left by Steal to find the
// current owner of what may have been stolen source s.
func (s *Source) Resolve() *Source {
	cur := s
	for {
		cur.mu.Lock()
		next := cur.stolenBy
		cur.mu.Unlock()
		if next == nil {
			return cur
		}
		cur = next
	}
}

// Ref is the default Reference implementation: a value-typed handle
// that tracks the address of whatever Source it is currently
// subscribed to.
type Ref struct {
	mu      sync.Mutex
	source  *Source
	address uintptr
	lost    bool
}

// NewRef creates a Ref subscribed to s, initialized to s's current
// address if it already has Content attached.
func NewRef(s *Source) *Ref {
	r := &Ref{source: s}
	s.AddRef(r)
	if c := s.Content(); c != nil {
		r.address = c.Address()
	}
	return r
}

func (r *Ref) Moved(address uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.address = address
	r.lost = false
}

func (r *Ref) Lost() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost = true
}

func (r *Ref) Rehome(newSource *Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = newSource
}

// Address returns the last address this reference was notified of.
// Satisfies ir.ReferenceValue so a Ref can be embedded directly in an
// ir.Operand.
func (r *Ref) Address() uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.address
}

// Source returns the Source this reference currently believes it is
// subscribed to (updated by Rehome on Steal).
func (r *Ref) Source() *Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

// Release unsubscribes the reference from its source, the explicit
// counterpart to letting a weak-set entry expire under a tracing GC.
func (r *Ref) Release() {
	r.mu.Lock()
	src := r.source
	r.mu.Unlock()
	if src != nil {
		src.RemoveRef(r)
	}
}
