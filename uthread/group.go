package uthread

import "sync"

// Group is ThreadGroup: a thin join over every UThread spawned through
// it, the way UThread::wait lets a test harness wait for a whole batch
// to finish (supplemented from original_source, §3 feature 5).
type Group struct {
	mu      sync.Mutex
	pending int
	done    *Event
}

// NewGroup creates an empty Group.
func NewGroup() *Group {
	return &Group{done: NewEvent()}
}

// Spawn creates a UThread running fn on w, tracked by this Group, and
// enqueues it the same way Worker.Spawn does.
func (g *Group) Spawn(w *Worker, fn Fn) *UThread {
	g.mu.Lock()
	if g.pending == 0 {
		g.done.Reset()
	}
	g.pending++
	g.mu.Unlock()

	return spawn(w, func(self *UThread) {
		defer g.finish()
		fn(self)
	})
}

func (g *Group) finish() {
	g.mu.Lock()
	g.pending--
	empty := g.pending == 0
	g.mu.Unlock()
	if empty {
		g.done.Set()
	}
}

// Join blocks self until every UThread this Group has spawned has
// exited.
func (g *Group) Join(self *UThread) {
	g.mu.Lock()
	n := g.pending
	g.mu.Unlock()
	if n == 0 {
		return
	}
	g.done.Wait(self)
}

// Pending reports how many spawned UThreads have not yet exited.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}
