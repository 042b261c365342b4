package engine

import (
	"context"
	"time"
)

// =============================================================================
// Task: the public handle over one schedulable unit of work
// =============================================================================

// State is the lifecycle state of a task.
type State int32

const (
	// StateInvalid is reported by a handle with no backing context.
	StateInvalid State = iota
	// StateNew: created, not yet queued on a processor.
	StateNew
	// StateQueued: awaiting execution in the ready queue.
	StateQueued
	// StateRunning: executing user code on a worker.
	StateRunning
	// StateSuspended: parked at a suspension point.
	StateSuspended
	// StateCancelled: exited user code because of an external request.
	StateCancelled
	// StateCompleted: exited user code with a return value or failure.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StateNew:
		return "new"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// CancellationReason records why a task was asked to cancel.
// Only the first recorded reason is kept.
type CancellationReason int32

const (
	// CancelNone: not cancelled.
	CancelNone CancellationReason = iota
	// CancelUserRequest: explicit RequestCancel.
	CancelUserRequest
	// CancelOverload: shed by the processor because of queue pressure.
	CancelOverload
	// CancelAbandoned: the handle was closed while the task was unfinished.
	CancelAbandoned
	// CancelShutdown: the processor is tearing down.
	CancelShutdown
)

func (r CancellationReason) String() string {
	switch r {
	case CancelNone:
		return "none"
	case CancelUserRequest:
		return "user request"
	case CancelOverload:
		return "overload"
	case CancelAbandoned:
		return "abandoned"
	case CancelShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Importance is a task's exemption level from overload-driven cancellation.
type Importance int8

const (
	// ImportanceNormal tasks may be shed under queue pressure.
	ImportanceNormal Importance = iota
	// ImportanceCritical tasks are never cancelled for overload.
	ImportanceCritical
)

func (i Importance) String() string {
	if i == ImportanceCritical {
		return "critical"
	}
	return "normal"
}

// Task is the single-owner handle over a scheduled unit of work.
//
// A handle must be consumed by exactly one of Close, CloseWithContext or
// Detach. Close is the structured-lifetime discipline: if the task has not
// finished, Close requests cancellation with reason CancelAbandoned and
// blocks until the task terminates, so no orphaned work outlives its
// owner. Detach leaves the task running independently.
//
// Handles must not be copied; passing one on transfers ownership.
type Task struct {
	context *taskContext
}

// IsValid reports whether the handle is backed by a context.
func (t *Task) IsValid() bool {
	return t != nil && t.context != nil
}

// ID returns the task's identifier, or the empty TaskID for an invalid
// handle.
func (t *Task) ID() TaskID {
	if !t.IsValid() {
		return ""
	}
	return t.context.id
}

// GetState returns the task's current state, StateInvalid for an invalid
// handle. The value is advisory: a parking task and a racing waker write
// the state from different goroutines, so an already re-queued context may
// transiently report Suspended. Only the terminal states are stable.
func (t *Task) GetState() State {
	if !t.IsValid() {
		return StateInvalid
	}
	return t.context.State()
}

// IsFinished reports whether the task reached a terminal state.
func (t *Task) IsFinished() bool {
	s := t.GetState()
	return s == StateCancelled || s == StateCompleted
}

// Wait suspends the calling task until this task finishes. A caller
// cancelled while waiting gets its cancellation error; the target's own
// cancellation is not an error; observe it via GetState and
// GetCancellationReason. Must be called from inside another running task.
func (t *Task) Wait(ctx context.Context) error {
	return t.WaitUntil(ctx, UnreachableDeadline())
}

// WaitFor is Wait bounded by a duration; returns ErrTimedOut on expiry.
func (t *Task) WaitFor(ctx context.Context, d time.Duration) error {
	return t.WaitUntil(ctx, DeadlineFromDuration(d))
}

// WaitUntil is Wait bounded by a deadline.
func (t *Task) WaitUntil(ctx context.Context, dl Deadline) error {
	c := t.mustContext()
	caller := mustCurrentContext(ctx)
	if caller == c {
		panic("engine: task waiting on itself")
	}
	switch caller.sleep(dl, c.finished) {
	case sleepReady:
		return nil
	case sleepTimedOut:
		return ErrTimedOut
	default:
		return caller.cancellationError()
	}
}

// RequestCancel queues a cancellation request with reason
// CancelUserRequest. Idempotent, non-blocking, callable from any
// goroutine. The task terminates only when it observes the request at a
// cooperative checkpoint.
func (t *Task) RequestCancel() {
	t.mustContext().requestCancel(CancelUserRequest)
}

// GetCancellationReason returns the reason recorded at or before
// cancellation, CancelNone if never cancelled.
func (t *Task) GetCancellationReason() CancellationReason {
	if !t.IsValid() {
		return CancelNone
	}
	return t.context.cancellationReason()
}

// Detach consumes the handle, leaving the task running independently.
// After Detach the cancellation-on-close discipline no longer applies.
func (t *Task) Detach() {
	t.mustContext()
	t.context = nil
}

// Close consumes the handle. If the task has not finished, Close requests
// cancellation with reason CancelAbandoned and blocks the calling
// goroutine natively until the task unwinds past its next cooperative
// checkpoint and terminates. Closing an invalid handle is a no-op.
//
// Close is for non-task goroutines. Inside a running task use
// CloseWithContext, which waits through a suspension point and releases
// the worker slot; a native block would pin the slot and can starve the
// very worker the closed task needs to unwind on.
func (t *Task) Close() error {
	return t.CloseWithContext(context.Background())
}

// CloseWithContext is Close for callers that may be running on a task.
// When ctx belongs to a running task, the wait for the closed task's
// termination is a suspension point: the caller parks and its worker is
// free to resume the cancelled task. The wait is not interrupted by the
// caller's own cancellation; abandonment must not leak the task.
// Outside task execution it behaves exactly like Close.
func (t *Task) CloseWithContext(ctx context.Context) error {
	if t == nil || t.context == nil {
		return nil
	}
	c := t.context
	t.context = nil
	if c.isFinished() {
		return nil
	}

	caller := currentContext(ctx)
	if caller == c {
		panic("engine: task closing its own handle")
	}

	c.requestCancel(CancelAbandoned)

	if caller != nil {
		caller.suppressed.Add(1)
		caller.sleep(UnreachableDeadline(), c.finished)
		caller.suppressed.Add(-1)
		return nil
	}

	<-c.finished
	return nil
}

func (t *Task) mustContext() *taskContext {
	if !t.IsValid() {
		panic("engine: operation on invalid task handle")
	}
	return t.context
}
