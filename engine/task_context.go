package engine

import (
	"context"
	"errors"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// TaskFunc is the body of a task. It runs cooperatively on a worker
// goroutine of a TaskProcessor; the context argument carries the task's
// identity and is accepted by every suspension primitive.
type TaskFunc func(ctx context.Context) error

type yieldKind int8

const (
	yieldSuspended yieldKind = iota + 1
	yieldFinished
)

type sleepOutcome int8

const (
	sleepReady sleepOutcome = iota + 1
	sleepTimedOut
	sleepCancelled
)

// taskContext is the shared control block behind one Task handle.
// It is referenced by the handle and by the processor while scheduled;
// its mutable fields (state, cancellation reason) cross goroutines and are
// therefore atomic.
//
// The coroutine protocol: a worker grants the execution slot by sending on
// resume and then blocks on yield until the task either suspends or
// finishes. The body goroutine only ever runs between those two points, so
// at most one worker executes a given context at a time.
type taskContext struct {
	id         TaskID
	processor  *TaskProcessor
	body       TaskFunc
	importance Importance
	finalizer  func(err error)

	state        atomic.Int32 // State
	cancelReason atomic.Int32 // CancellationReason, first writer wins
	suppressed   atomic.Int32 // >0: checkpoints ignore pending cancellation

	// sleepArmed is the single-wake suspension slot: set before parking,
	// cleared by exactly one waker via CAS. Whoever wins the CAS is the one
	// that re-enqueues the context.
	sleepArmed atomic.Bool

	started atomic.Bool

	resume   chan struct{}
	yield    chan yieldKind
	finished chan struct{}

	// queuedAt is written by enqueue before Push; the queue mutex inside
	// Push/Pop publishes it to the worker that dequeues the context.
	queuedAt time.Time

	err error // terminal body error; written before finished is closed
}

func newTaskContext(p *TaskProcessor, body TaskFunc, importance Importance, finalizer func(error)) *taskContext {
	c := &taskContext{
		id:         newTaskID(),
		processor:  p,
		body:       body,
		importance: importance,
		finalizer:  finalizer,
		resume:     make(chan struct{}),
		yield:      make(chan yieldKind),
		finished:   make(chan struct{}),
	}
	c.state.Store(int32(StateNew))
	return c
}

func (c *taskContext) State() State {
	return State(c.state.Load())
}

func (c *taskContext) setState(s State) {
	c.state.Store(int32(s))
}

func (c *taskContext) isFinished() bool {
	s := c.State()
	return s == StateCancelled || s == StateCompleted
}

func (c *taskContext) cancellationReason() CancellationReason {
	return CancellationReason(c.cancelReason.Load())
}

func (c *taskContext) cancellationError() error {
	return &CancelledError{Reason: c.cancellationReason()}
}

// requestCancel records the first cancellation reason and wakes the context
// if it is parked at a suspension point. Idempotent, never blocks, safe
// from any goroutine.
func (c *taskContext) requestCancel(reason CancellationReason) {
	c.cancelReason.CompareAndSwap(int32(CancelNone), int32(reason))
	c.wake()
}

// cancelPending reports whether a cancellation request should be observed
// at the next checkpoint. Cleanup sections suppress observation so that
// unwind code is never interrupted by the cancellation it runs under.
func (c *taskContext) cancelPending() bool {
	return c.cancellationReason() != CancelNone && c.suppressed.Load() == 0
}

// wake re-enqueues the context if it is parked. Exactly one waker wins;
// the others are no-ops, which makes concurrent completion, timeout and
// cancellation wake-ups safe.
func (c *taskContext) wake() {
	if c.sleepArmed.CompareAndSwap(true, false) {
		c.processor.enqueue(c)
	}
}

// start launches the body goroutine, parked until the first resume grant.
func (c *taskContext) start() {
	c.started.Store(true)
	go c.run()
}

func (c *taskContext) run() {
	<-c.resume
	c.setState(StateRunning)

	ctx := context.WithValue(context.Background(), currentTaskKey{}, c)
	err := c.invoke(ctx)
	c.finish(err)
	c.yield <- yieldFinished
}

// invoke runs the body, capturing panics so they never cross the worker
// boundary un-captured.
func (c *taskContext) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
			c.processor.noteTaskPanic(c, r)
		}
	}()
	return c.body(ctx)
}

// finish records the terminal state. A body that returns the cancellation
// signal while a request is pending terminates as Cancelled; any other
// return, error or not, terminates as Completed.
func (c *taskContext) finish(err error) {
	c.err = err
	var ce *CancelledError
	if errors.As(err, &ce) && c.cancellationReason() != CancelNone {
		c.setState(StateCancelled)
	} else {
		c.setState(StateCompleted)
	}
	if c.finalizer != nil {
		c.finalizer(err)
	}
	c.processor.unregister(c)
	close(c.finished)
}

// finishBeforeRun terminates a context whose body never started
// (overload shedding, shutdown, or a handle abandoned while queued).
func (c *taskContext) finishBeforeRun() {
	err := c.cancellationError()
	c.err = err
	c.setState(StateCancelled)
	if c.finalizer != nil {
		c.finalizer(err)
	}
	c.processor.unregister(c)
	close(c.finished)
}

// park hands the execution slot back to the owning worker and blocks until
// a worker grants it again.
func (c *taskContext) park() {
	c.yield <- yieldSuspended
	<-c.resume
	c.setState(StateRunning)
}

// sleep is the single suspension point of the runtime. It parks the task
// until ready is closed, dl expires, or a cancellation request arrives,
// and reports which happened. A nil ready channel waits on the deadline
// (and cancellation) alone.
//
// A woken task is always re-enqueued to the processor and resumed by a
// worker, never run inline on the waking goroutine.
func (c *taskContext) sleep(dl Deadline, ready <-chan struct{}) sleepOutcome {
	for {
		if c.cancelPending() {
			return sleepCancelled
		}
		if chanClosed(ready) {
			return sleepReady
		}
		if dl.IsExpired(time.Now()) {
			return sleepTimedOut
		}

		c.sleepArmed.Store(true)

		// Re-check after arming. A waker that raced the flag has already
		// re-enqueued us and we must park to complete the handoff; if the
		// disarm CAS wins, nobody did, and the outcome is decided inline.
		if c.cancelPending() || chanClosed(ready) || dl.IsExpired(time.Now()) {
			if c.sleepArmed.CompareAndSwap(true, false) {
				continue
			}
			c.park()
			continue
		}

		stop := c.armWakers(dl, ready)
		c.setState(StateSuspended)
		c.park()
		stop()
	}
}

// armWakers installs the timer and readiness watcher for one suspension.
// Each calls wake exactly once at most; the stop function tears both down.
func (c *taskContext) armWakers(dl Deadline, ready <-chan struct{}) (stop func()) {
	var timer *time.Timer
	if dl.IsReachable() {
		timer = time.AfterFunc(dl.TimeLeft(time.Now()), c.wake)
	}
	if ready == nil {
		return func() {
			if timer != nil {
				timer.Stop()
			}
		}
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ready:
			c.wake()
		case <-done:
		}
	}()
	return func() {
		close(done)
		if timer != nil {
			timer.Stop()
		}
	}
}

// yieldNow re-enqueues the context behind the current ready queue contents
// and parks until a worker picks it up again.
func (c *taskContext) yieldNow() {
	c.sleepArmed.Store(true)
	c.wake()
	c.park()
}

func chanClosed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
