package engine

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Future / Promise: one-shot result handoff into the scheduler
// =============================================================================
//
// Promise is the single writer and may be used from any goroutine, including
// non-task ones (e.g. an I/O completion callback). Future is the single
// reader and its blocking calls may only be made from inside a running task,
// because they suspend the calling task.

// futureState is the shared thread-safe one-shot result box behind a
// Future/Promise pair. The readiness channel is closed exactly once, after
// the result slot is written, so a woken reader always observes the value.
type futureState[T any] struct {
	mu        sync.Mutex
	ready     chan struct{}
	set       bool
	retrieved bool
	store     ResultStore[T]
}

func newFutureState[T any]() *futureState[T] {
	return &futureState[T]{ready: make(chan struct{})}
}

func (s *futureState[T]) setValue(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		panic("engine: promise result set twice")
	}
	s.store.SetValue(v)
	s.set = true
	close(s.ready)
}

func (s *futureState[T]) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		panic("engine: promise result set twice")
	}
	s.store.SetError(err)
	s.set = true
	close(s.ready)
}

// trySetError stores err unless a result is already present.
// Used by abandonment paths, which must tolerate losing the race.
func (s *futureState[T]) trySetError(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return false
	}
	s.store.SetError(err)
	s.set = true
	close(s.ready)
	return true
}

func (s *futureState[T]) isReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// get retrieves the result exactly once. A second retrieval is a
// programmer error, as is calling get before the state is ready.
func (s *futureState[T]) get() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		panic("engine: future result retrieved before it is ready")
	}
	if s.retrieved {
		panic("engine: future result retrieved twice")
	}
	s.retrieved = true
	return s.store.Get()
}

func (s *futureState[T]) ensureNotRetrieved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retrieved {
		panic("engine: future constructed over an already-consumed state")
	}
}

// Promise is the producing half of a one-shot result channel.
type Promise[T any] struct {
	state *futureState[T]
}

// NewPromise creates a promise with a fresh shared state.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{state: newFutureState[T]()}
}

// GetFuture returns the consuming half over the shared state.
// Panics if the state was already consumed.
func (p *Promise[T]) GetFuture() *Future[T] {
	if p.state == nil {
		panic("engine: GetFuture on closed promise")
	}
	p.state.ensureNotRetrieved()
	return &Future[T]{state: p.state}
}

// SetValue publishes a value and wakes any waiting task.
// Panics if a result was already set or the promise was closed.
func (p *Promise[T]) SetValue(v T) {
	if p.state == nil {
		panic("engine: SetValue on closed promise")
	}
	p.state.setValue(v)
}

// SetError publishes a failure and wakes any waiting task.
// Panics if a result was already set or the promise was closed.
func (p *Promise[T]) SetError(err error) {
	if p.state == nil {
		panic("engine: SetError on closed promise")
	}
	p.state.setError(err)
}

// Close releases the promise. If no result was ever set, the shared state
// auto-resolves to ErrBrokenPromise so that a waiting Future does not hang.
// Close is idempotent and safe to defer next to the promise's creation.
func (p *Promise[T]) Close() error {
	s := p.state
	if s == nil {
		return nil
	}
	p.state = nil
	s.trySetError(ErrBrokenPromise)
	return nil
}

// Future is the consuming half of a one-shot result channel.
// It is consumed exactly once by Get, which also invalidates it.
type Future[T any] struct {
	state *futureState[T]
}

// IsValid reports whether the future still references a shared state.
func (f *Future[T]) IsValid() bool {
	return f != nil && f.state != nil
}

func (f *Future[T]) mustState() *futureState[T] {
	if f == nil || f.state == nil {
		panic("engine: operation on invalid future")
	}
	return f.state
}

// Get suspends the calling task until a result is ready, then retrieves it
// and invalidates the future. If the calling task is cancelled while
// waiting, Get returns the cancellation error and the future stays valid.
// Must be called from inside a running task.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	s := f.mustState()
	if err := f.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	f.state = nil
	return s.get()
}

// Wait suspends the calling task until a result is ready.
// Returns nil when ready, or the cancellation error if the calling task is
// cancelled first.
func (f *Future[T]) Wait(ctx context.Context) error {
	return f.WaitUntil(ctx, UnreachableDeadline())
}

// WaitFor is Wait bounded by a duration. Returns ErrTimedOut on expiry;
// a zero duration reports timeout immediately when no result is ready.
func (f *Future[T]) WaitFor(ctx context.Context, d time.Duration) error {
	return f.WaitUntil(ctx, DeadlineFromDuration(d))
}

// WaitUntil is Wait bounded by a deadline.
func (f *Future[T]) WaitUntil(ctx context.Context, dl Deadline) error {
	s := f.mustState()
	caller := mustCurrentContext(ctx)
	switch caller.sleep(dl, s.ready) {
	case sleepReady:
		return nil
	case sleepTimedOut:
		return ErrTimedOut
	default:
		return caller.cancellationError()
	}
}
