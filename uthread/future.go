package uthread

import (
	"sync"
	"unsafe"

	"github.com/ngenio/ngen/internal/ngenlog"
)

// GCRootable is implemented by a Throwable exception whose payload
// carries pointers an external GC must be able to scan — the
// PtrThrowable scanning list, supplemented from original_source (§3
// supplemented feature 6), kept here as an optional interface rather
// than a forced field on every error.
type GCRootable interface {
	GCRoots() []unsafe.Pointer
}

// Future is FutureBase/Future: a heap-allocated, reference-counted-by-
// the-Go-GC result slot with a scheduler-aware wait, used for
// cross-thread UThread calls (spec §4.9 "Futures").
type Future[T any] struct {
	mu    sync.Mutex
	sema  *Sema
	done  bool
	value T
	err   error

	abandoned bool
}

// NewFuture creates a Future with no result posted yet.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{sema: NewSema(0)}
}

// Post copy-constructs value as the result and wakes whoever is
// waiting in Result, per FutureBase::post.
func (f *Future[T]) Post(value T) {
	f.mu.Lock()
	f.value = value
	f.done = true
	f.mu.Unlock()
	f.sema.Up()
}

// PostError propagates err instead of a value, the exception_ptr-style
// path spec §4.9 describes.
func (f *Future[T]) PostError(err error) {
	f.mu.Lock()
	f.err = err
	f.done = true
	abandoned := f.abandoned
	f.mu.Unlock()
	if abandoned {
		ngenlog.Default.Warnf("uthread: abandoned future dropped error: %v", err)
	}
	f.sema.Up()
}

// Result blocks self until a value or error has been posted, then
// returns it.
func (f *Future[T]) Result(self *UThread) (T, error) {
	f.sema.Down(self)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		var zero T
		return zero, f.err
	}
	return f.value, nil
}

// Ready reports whether a result has already been posted, without
// blocking.
func (f *Future[T]) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Abandon drops interest in the result without waiting for it. An
// error posted to an abandoned Future is logged (rather than
// panicking) through internal/ngenlog's default logger when PostError
// delivers it; an error posted before Abandon is not logged.
func (f *Future[T]) Abandon() {
	f.mu.Lock()
	f.abandoned = true
	f.mu.Unlock()
}

// Abandoned reports whether Abandon was called.
func (f *Future[T]) Abandoned() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.abandoned
}
