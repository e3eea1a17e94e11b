package uthread

import (
	"container/list"
	"sync"
)

// Sema is a counting semaphore aware of the UThread scheduler: a
// UThread blocked in Down is removed from its Worker's ready queue
// instead of blocking an OS thread, the way the original's Sema::down
// parks via UThreadState::wait().
//
// Grounded on spec §4.9's Sema/Lock/Event description.
type Sema struct {
	mu      sync.Mutex
	count   int
	waiters *list.List // of *UThread
}

// NewSema creates a Sema starting at count.
func NewSema(count int) *Sema {
	return &Sema{count: count, waiters: list.New()}
}

// Down decrements the count, blocking self (by suspending its turn and
// registering it as a waiter) if the count is already zero.
func (s *Sema) Down(self *UThread) {
	s.mu.Lock()
	if s.count > 0 {
		s.count--
		s.mu.Unlock()
		return
	}
	s.waiters.PushBack(self)
	s.mu.Unlock()
	self.suspendAndWait()
}

// Up increments the count, or if a UThread is already waiting, wakes
// the oldest one instead (handing it the unit of count directly so
// Up/Down pairs never race a waiter past a concurrent Down).
func (s *Sema) Up() {
	s.mu.Lock()
	if s.waiters.Len() == 0 {
		s.count++
		s.mu.Unlock()
		return
	}
	elem := s.waiters.Front()
	s.waiters.Remove(elem)
	ut := elem.Value.(*UThread)
	s.mu.Unlock()
	ut.wake()
}

// Lock is a binary Sema, per spec's "Lock is a binary Sema".
type Lock struct {
	sema *Sema
}

// NewLock creates an unlocked Lock.
func NewLock() *Lock { return &Lock{sema: NewSema(1)} }

// Lock blocks self until the lock is acquired.
func (l *Lock) Lock(self *UThread) { l.sema.Down(self) }

// Unlock releases the lock, waking the oldest waiter if any.
func (l *Lock) Unlock() { l.sema.Up() }

// Event is level-triggered: Set wakes every current waiter and leaves
// the event set, so a later Wait call returns immediately until Reset.
type Event struct {
	mu      sync.Mutex
	set     bool
	waiters *list.List // of *UThread
}

// NewEvent creates an unset Event.
func NewEvent() *Event { return &Event{waiters: list.New()} }

// Wait blocks self until the event is set, or returns immediately if
// it already is.
func (e *Event) Wait(self *UThread) {
	e.mu.Lock()
	if e.set {
		e.mu.Unlock()
		return
	}
	e.waiters.PushBack(self)
	e.mu.Unlock()
	self.suspendAndWait()
}

// Set marks the event set and wakes every UThread currently waiting.
func (e *Event) Set() {
	e.mu.Lock()
	e.set = true
	waiters := e.waiters
	e.waiters = list.New()
	e.mu.Unlock()
	for el := waiters.Front(); el != nil; el = el.Next() {
		el.Value.(*UThread).wake()
	}
}

// Reset clears the event; subsequent Wait calls block again until the
// next Set.
func (e *Event) Reset() {
	e.mu.Lock()
	e.set = false
	e.mu.Unlock()
}
