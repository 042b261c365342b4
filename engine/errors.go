package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrTimedOut is returned by WaitFor/WaitUntil when the deadline expires
	// before the awaited condition is satisfied.
	ErrTimedOut = errors.New("engine: wait timed out")

	// ErrBrokenPromise is the failure a Future resolves to when its Promise
	// is closed without ever setting a value or an error.
	ErrBrokenPromise = errors.New("engine: promise abandoned before a result was set")
)

// CancelledError is returned from suspension points and cancellation
// checkpoints when the running task has a pending cancellation request.
// Task bodies are expected to propagate it up; the runtime records the
// task as Cancelled when the body returns it.
type CancelledError struct {
	Reason CancellationReason
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("engine: task cancelled (%s)", e.Reason)
}

// IsCancelled reports whether err is (or wraps) a cancellation signal.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}

// PanicError captures a panic raised inside a task body, so that it never
// crosses a worker goroutine boundary un-captured.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("engine: task panicked: %v", e.Value)
}
