// Package uthread is the cooperative M:N UThread runtime: a pool of
// OS-thread Workers, each serving its own FIFO ready queue of UThreads,
// plus scheduler-aware Sema/Lock/Event primitives and cross-thread
// Futures.
//
// Grounded on _examples/original_source's OS/UThread*/OS/Thread* (the
// original's cooperative scheduler), generalized the way spec §4.9/§5
// describe. Context switching is implemented with goroutines and
// channels rather than hand-rolled per-architecture assembly stack
// switching — see DESIGN.md's Open Question entry for why.
package uthread

import (
	"container/list"
	"runtime"
	"sync"

	"github.com/ngenio/ngen/internal/ngenlog"
)

// Worker is one OS thread's UThreadState: a FIFO ready queue guarded by
// a lock, plus the thread-local list of UThreads that have exited on it
// (kept for GC-root bookkeeping symmetry with the original's
// exited-threads queue; nothing in this rewrite scans it today).
type Worker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	ready   *list.List // of *UThread
	exited  []*UThread
	closing bool
}

func newWorker() *Worker {
	w := &Worker{ready: list.New()}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Run pins the calling goroutine to an OS thread and services this
// worker's ready queue until Stop is called. Scheduler.Start launches
// one goroutine per Worker running this method.
func (w *Worker) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	log := ngenlog.Default.With("worker", w)
	for {
		w.mu.Lock()
		for w.ready.Len() == 0 && !w.closing {
			log.Trace("ready queue empty, parking")
			w.cond.Wait()
		}
		if w.ready.Len() == 0 && w.closing {
			w.mu.Unlock()
			log.Debug("stopping")
			return
		}
		elem := w.ready.Front()
		w.ready.Remove(elem)
		ut := elem.Value.(*UThread)
		w.mu.Unlock()

		log.Tracef("dispatching uthread %p", ut)
		ut.resumeAndWait()

		if ut.exited {
			w.mu.Lock()
			w.exited = append(w.exited, ut)
			w.mu.Unlock()
			log.Tracef("uthread %p exited", ut)
		}
	}
}

// Stop asks Run to return once the ready queue drains. It does not
// interrupt a UThread mid-turn.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.closing = true
	w.cond.Signal()
	w.mu.Unlock()
}

// enqueue appends ut to the tail of the ready queue and signals a
// worker parked waiting for work — the cross-thread wake spec §4.9
// describes ("signals that thread's Condition").
func (w *Worker) enqueue(ut *UThread) {
	w.mu.Lock()
	w.ready.PushBack(ut)
	w.cond.Signal()
	w.mu.Unlock()
}

func (w *Worker) readyLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready.Len()
}

// Spawn allocates a new UThread running fn and enqueues it on w, the
// Go analogue of UThread::spawn(fn, params, on) (bootstrap + enqueue;
// no explicit stack/register setup since the goroutine runtime owns
// that here).
func (w *Worker) Spawn(fn Fn) *UThread {
	return spawn(w, fn)
}

// Scheduler owns a fixed pool of Workers, one per emulated OS thread.
type Scheduler struct {
	workers []*Worker
}

// NewScheduler creates a Scheduler with n Workers.
func NewScheduler(n int) *Scheduler {
	s := &Scheduler{workers: make([]*Worker, n)}
	for i := range s.workers {
		s.workers[i] = newWorker()
	}
	return s
}

// Start launches one goroutine per Worker, each locked to its own OS
// thread for the runtime's lifetime.
func (s *Scheduler) Start() {
	for _, w := range s.workers {
		go w.Run()
	}
}

// Stop asks every Worker to shut down once its queue drains.
func (s *Scheduler) Stop() {
	for _, w := range s.workers {
		w.Stop()
	}
}

// Worker returns the i'th Worker, the "on" target UThread::spawn takes.
func (s *Scheduler) Worker(i int) *Worker { return s.workers[i%len(s.workers)] }

// NumWorkers reports how many OS-thread Workers this Scheduler owns.
func (s *Scheduler) NumWorkers() int { return len(s.workers) }
