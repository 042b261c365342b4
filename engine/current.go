package engine

import (
	"context"
	"time"
)

// =============================================================================
// Current-task accessors and suspension primitives
// =============================================================================
//
// The worker installs the running task's control block into the
// context.Context handed to the body. Every suspension primitive takes that
// context and fails fast when called outside task execution, so higher
// layers can assert they are on a task before using task-only APIs.

type currentTaskKey struct{}

func currentContext(ctx context.Context) *taskContext {
	if v := ctx.Value(currentTaskKey{}); v != nil {
		return v.(*taskContext)
	}
	return nil
}

func mustCurrentContext(ctx context.Context) *taskContext {
	c := currentContext(ctx)
	if c == nil {
		panic("engine: called outside of task execution")
	}
	return c
}

// InsideTask reports whether ctx belongs to a running task.
func InsideTask(ctx context.Context) bool {
	return currentContext(ctx) != nil
}

// CurrentTaskProcessor returns the processor executing the calling task.
// Panics outside task execution.
func CurrentTaskProcessor(ctx context.Context) *TaskProcessor {
	return mustCurrentContext(ctx).processor
}

// CurrentTaskID returns the identifier of the calling task.
// Panics outside task execution.
func CurrentTaskID(ctx context.Context) TaskID {
	return mustCurrentContext(ctx).id
}

// IsCancelRequested reports whether the calling task has a pending
// cancellation request, regardless of suppression.
func IsCancelRequested(ctx context.Context) bool {
	return mustCurrentContext(ctx).cancellationReason() != CancelNone
}

// CancellationPoint is an explicit cooperative checkpoint: it returns the
// cancellation error when a request is pending, nil otherwise. It never
// suspends. Inside an Uninterruptible scope it always returns nil.
func CancellationPoint(ctx context.Context) error {
	c := mustCurrentContext(ctx)
	if c.cancelPending() {
		return c.cancellationError()
	}
	return nil
}

// SleepFor suspends the calling task for at least d. Returns nil after the
// full sleep, or the cancellation error if a cancellation request is
// observed first.
func SleepFor(ctx context.Context, d time.Duration) error {
	return SleepUntil(ctx, DeadlineFromDuration(d))
}

// SleepUntil suspends the calling task until dl expires or a cancellation
// request is observed.
func SleepUntil(ctx context.Context, dl Deadline) error {
	c := mustCurrentContext(ctx)
	if c.sleep(dl, nil) == sleepCancelled {
		return c.cancellationError()
	}
	return nil
}

// InterruptibleSleepFor sleeps like SleepFor but treats a pending
// cancellation as an early, successful wake-up: it returns without error
// and without consuming the request. Callers poll IsCancelRequested.
func InterruptibleSleepFor(ctx context.Context, d time.Duration) {
	c := mustCurrentContext(ctx)
	c.sleep(DeadlineFromDuration(d), nil)
}

// Yield re-enqueues the calling task behind the current ready queue
// contents and returns once a worker resumes it. Doubles as a cancellation
// checkpoint.
func Yield(ctx context.Context) error {
	c := mustCurrentContext(ctx)
	if c.cancelPending() {
		return c.cancellationError()
	}
	c.yieldNow()
	if c.cancelPending() {
		return c.cancellationError()
	}
	return nil
}

// Uninterruptible runs fn with cancellation observation suppressed: every
// checkpoint and suspension inside behaves as if no request were pending.
// This is how unwind/cleanup code avoids being interrupted by the very
// cancellation it is running under. Scopes nest.
func Uninterruptible(ctx context.Context, fn func() error) error {
	c := mustCurrentContext(ctx)
	c.suppressed.Add(1)
	defer c.suppressed.Add(-1)
	return fn()
}
