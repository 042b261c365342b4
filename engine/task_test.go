package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestTask_CompletesNormally verifies the happy path
func TestTask_CompletesNormally(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 2})

	done := make(chan struct{})
	task := p.PostTask(func(ctx context.Context) error {
		close(done)
		return nil
	})

	<-done
	waitFinished(t, task)

	if got := task.GetState(); got != StateCompleted {
		t.Errorf("state = %v, want %v", got, StateCompleted)
	}
	if got := task.GetCancellationReason(); got != CancelNone {
		t.Errorf("cancellation reason = %v, want %v", got, CancelNone)
	}
	if task.ID() == "" {
		t.Error("ID() empty, want a generated identifier")
	}
	task.Close()
}

// TestTask_CooperativeCancel verifies a checkpointing body terminates as
// Cancelled
// Given: A task looping over a suspension point
// When: RequestCancel is called
// Then: The suspension point returns the cancellation error, the body
//
//	propagates it, and the task terminates as Cancelled with the
//	user-request reason
func TestTask_CooperativeCancel(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 1})

	started := make(chan struct{})
	bodyErrCh := make(chan error, 1)
	task := p.PostTask(func(ctx context.Context) error {
		close(started)
		for {
			if err := SleepFor(ctx, time.Millisecond); err != nil {
				bodyErrCh <- err
				return err
			}
		}
	})

	<-started
	task.RequestCancel()
	task.RequestCancel() // idempotent

	err := recvErr(t, bodyErrCh)
	var ce *CancelledError
	if !errors.As(err, &ce) {
		t.Fatalf("body error = %v, want *CancelledError", err)
	}
	if ce.Reason != CancelUserRequest {
		t.Errorf("reason = %v, want %v", ce.Reason, CancelUserRequest)
	}

	waitFinished(t, task)
	if got := task.GetState(); got != StateCancelled {
		t.Errorf("state = %v, want %v", got, StateCancelled)
	}
	if got := task.GetCancellationReason(); got != CancelUserRequest {
		t.Errorf("GetCancellationReason() = %v, want %v", got, CancelUserRequest)
	}
	task.Close()
}

// TestTask_NonCheckpointingBodyCompletes verifies cancellation never
// preempts
// Given: A body that hits no suspension point or checkpoint
// When: Cancellation is requested mid-run
// Then: The body runs to completion and the task terminates as Completed
func TestTask_NonCheckpointingBodyCompletes(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	task := p.PostTask(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	<-started
	task.RequestCancel()
	close(release)

	waitFinished(t, task)
	if got := task.GetState(); got != StateCompleted {
		t.Errorf("state = %v, want %v", got, StateCompleted)
	}
	// The request was recorded even though it was never observed.
	if got := task.GetCancellationReason(); got != CancelUserRequest {
		t.Errorf("GetCancellationReason() = %v, want %v", got, CancelUserRequest)
	}
	task.Close()
}

// TestTask_BodyErrorIsCompleted verifies a plain failure is not Cancelled
func TestTask_BodyErrorIsCompleted(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 1})

	task := p.PostTask(func(ctx context.Context) error {
		return errors.New("domain failure")
	})

	waitFinished(t, task)
	if got := task.GetState(); got != StateCompleted {
		t.Errorf("state = %v, want %v", got, StateCompleted)
	}
	task.Close()
}

// TestTask_CloseCancelsAndJoins verifies the abandonment discipline
// Given: A running task parked in a sleep loop
// When: The handle is closed
// Then: Close blocks until the body unwound with the abandoned reason,
//
//	and afterwards the handle is invalid
func TestTask_CloseCancelsAndJoins(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 1})

	started := make(chan struct{})
	bodyErrCh := make(chan error, 1)
	task := p.PostTask(func(ctx context.Context) error {
		close(started)
		for {
			if err := SleepFor(ctx, time.Millisecond); err != nil {
				bodyErrCh <- err
				return err
			}
		}
	})
	<-started

	if err := task.Close(); err != nil {
		t.Fatalf("Close() = %v, want nil", err)
	}

	// Close returned, so the body has already delivered its error.
	select {
	case err := <-bodyErrCh:
		var ce *CancelledError
		if !errors.As(err, &ce) || ce.Reason != CancelAbandoned {
			t.Errorf("body error = %v, want cancellation with %v", err, CancelAbandoned)
		}
	default:
		t.Error("Close() returned before the body unwound")
	}

	if task.IsValid() {
		t.Error("IsValid() = true after Close, want false")
	}
	if got := task.GetState(); got != StateInvalid {
		t.Errorf("GetState() after Close = %v, want %v", got, StateInvalid)
	}
	task.Close() // closing a consumed handle is a no-op
}

// TestTask_CloseWithContextFromTaskSingleWorker verifies the in-task close
// waits through a suspension point
// Given: A single-worker processor and a parent task that posted a child
// When: The parent closes the still-queued child with CloseWithContext
// Then: The parent parks and releases the worker, the child observes the
//
//	abandonment, and the close returns instead of starving the pool
func TestTask_CloseWithContextFromTaskSingleWorker(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 1})

	reasonCh := make(chan CancellationReason, 1)
	doneCh := make(chan struct{})
	parent := p.PostTask(func(ctx context.Context) error {
		child := p.PostTask(func(ctx context.Context) error {
			for {
				if err := SleepFor(ctx, time.Millisecond); err != nil {
					return err
				}
			}
		})
		cctx := child.context
		if err := child.CloseWithContext(ctx); err != nil {
			return err
		}
		reasonCh <- cctx.cancellationReason()
		close(doneCh)
		return nil
	})
	defer parent.Close()

	select {
	case <-doneCh:
	case <-time.After(testWaitBudget):
		t.Fatal("in-task close starved the only worker")
	}
	if got := <-reasonCh; got != CancelAbandoned {
		t.Errorf("child reason = %v, want %v", got, CancelAbandoned)
	}
}

// TestTask_CloseWithContextJoinsRunningChild verifies the in-task close of
// a child that already started and suspended
func TestTask_CloseWithContextJoinsRunningChild(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 1})

	childErrCh := make(chan error, 1)
	stateCh := make(chan State, 1)
	parent := p.PostTask(func(ctx context.Context) error {
		child := p.PostTask(func(ctx context.Context) error {
			for {
				if err := SleepFor(ctx, time.Millisecond); err != nil {
					childErrCh <- err
					return err
				}
			}
		})
		// Hand the worker over so the child runs and parks first.
		if err := Yield(ctx); err != nil {
			return err
		}
		cctx := child.context
		if err := child.CloseWithContext(ctx); err != nil {
			return err
		}
		stateCh <- cctx.State()
		return nil
	})
	defer parent.Close()

	err := recvErr(t, childErrCh)
	var ce *CancelledError
	if !errors.As(err, &ce) || ce.Reason != CancelAbandoned {
		t.Errorf("child body error = %v, want cancellation with %v", err, CancelAbandoned)
	}
	if got := <-stateCh; got != StateCancelled {
		t.Errorf("child state after close = %v, want %v", got, StateCancelled)
	}
}

// TestTask_CloseWithContextSurvivesCallerCancellation verifies the close
// wait is not interrupted by the closer's own pending cancellation
func TestTask_CloseWithContextSurvivesCallerCancellation(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 2})

	started := make(chan struct{})
	finishedCh := make(chan bool, 1)
	parent := p.PostTask(func(ctx context.Context) error {
		child := p.PostTask(func(ctx context.Context) error {
			for {
				if err := SleepFor(ctx, time.Millisecond); err != nil {
					return err
				}
			}
		})
		close(started)
		// Park until our own cancellation request lands.
		for !IsCancelRequested(ctx) {
			InterruptibleSleepFor(ctx, time.Millisecond)
		}
		cctx := child.context
		wasFinished := cctx.isFinished()
		if err := child.CloseWithContext(ctx); err != nil {
			return err
		}
		finishedCh <- cctx.isFinished() && !wasFinished
		return CancellationPoint(ctx)
	})

	<-started
	parent.RequestCancel()

	select {
	case joined := <-finishedCh:
		if !joined {
			t.Error("close returned without joining the child")
		}
	case <-time.After(testWaitBudget):
		t.Fatal("cancelled parent never completed its close")
	}
	waitFinished(t, parent)
	parent.Close()
}

// TestTask_CloseOwnHandlePanics verifies the self-close guard
func TestTask_CloseOwnHandlePanics(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 1})

	handleCh := make(chan *Task, 1)
	panicCh := make(chan any, 1)
	task := p.PostTask(func(ctx context.Context) error {
		self := <-handleCh
		func() {
			defer func() { panicCh <- recover() }()
			self.CloseWithContext(ctx)
		}()
		return nil
	})
	// The panicking close consumes the handle, so join on the context.
	c := task.context
	handleCh <- task

	if r := <-panicCh; r == nil {
		t.Error("CloseWithContext on own handle did not panic")
	}
	select {
	case <-c.finished:
	case <-time.After(testWaitBudget):
		t.Fatal("task did not finish after the recovered panic")
	}
}

// TestTask_CloseFinishedTaskDoesNotCancel verifies Close on a finished
// task records no cancellation
func TestTask_CloseFinishedTaskDoesNotCancel(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 1})

	task := p.PostTask(func(ctx context.Context) error { return nil })
	waitFinished(t, task)

	c := task.context
	task.Close()

	if got := CancellationReason(c.cancelReason.Load()); got != CancelNone {
		t.Errorf("cancellation reason after Close = %v, want %v", got, CancelNone)
	}
}

// TestTask_Detach verifies a detached task keeps running on its own
func TestTask_Detach(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 1})

	done := make(chan struct{})
	task := p.PostTask(func(ctx context.Context) error {
		if err := SleepFor(ctx, 5*time.Millisecond); err != nil {
			return err
		}
		close(done)
		return nil
	})

	task.Detach()
	if task.IsValid() {
		t.Error("IsValid() = true after Detach, want false")
	}

	select {
	case <-done:
	case <-time.After(testWaitBudget):
		t.Fatal("detached task never completed")
	}
}

// TestTask_WaitFromAnotherTask verifies in-task waiting on a subtask
func TestTask_WaitFromAnotherTask(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 2})

	errCh := make(chan error, 1)
	stateCh := make(chan State, 1)
	parent := p.PostTask(func(ctx context.Context) error {
		child := p.PostTask(func(ctx context.Context) error {
			return SleepFor(ctx, 5*time.Millisecond)
		})
		err := child.Wait(ctx)
		errCh <- err
		stateCh <- child.GetState()
		return child.CloseWithContext(ctx)
	})
	defer parent.Close()

	if err := recvErr(t, errCh); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
	if got := <-stateCh; got != StateCompleted {
		t.Errorf("child state = %v, want %v", got, StateCompleted)
	}
}

// TestTask_WaitObservesCancelledTargetAsSuccess verifies the target's own
// cancellation is not an error for the waiter
func TestTask_WaitObservesCancelledTargetAsSuccess(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 2})

	errCh := make(chan error, 1)
	stateCh := make(chan State, 1)
	reasonCh := make(chan CancellationReason, 1)
	parent := p.PostTask(func(ctx context.Context) error {
		child := p.PostTask(func(ctx context.Context) error {
			for {
				if err := SleepFor(ctx, time.Millisecond); err != nil {
					return err
				}
			}
		})
		child.RequestCancel()
		errCh <- child.Wait(ctx)
		stateCh <- child.GetState()
		reasonCh <- child.GetCancellationReason()
		return child.CloseWithContext(ctx)
	})
	defer parent.Close()

	if err := recvErr(t, errCh); err != nil {
		t.Fatalf("Wait() on cancelled target = %v, want nil", err)
	}
	if got := <-stateCh; got != StateCancelled {
		t.Errorf("child state = %v, want %v", got, StateCancelled)
	}
	if got := <-reasonCh; got != CancelUserRequest {
		t.Errorf("child reason = %v, want %v", got, CancelUserRequest)
	}
}

// TestTask_WaitForTimesOut verifies the bounded wait
func TestTask_WaitForTimesOut(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 2})

	release := make(chan struct{})
	defer close(release)
	blocked := p.PostTask(func(ctx context.Context) error {
		<-release
		return nil
	})
	defer blocked.Detach()

	errCh := make(chan error, 1)
	waiter := p.PostTask(func(ctx context.Context) error {
		errCh <- blocked.WaitFor(ctx, 10*time.Millisecond)
		return nil
	})
	defer waiter.Close()

	if err := recvErr(t, errCh); !errors.Is(err, ErrTimedOut) {
		t.Errorf("WaitFor() = %v, want ErrTimedOut", err)
	}
}

// TestTask_WaitOnSelfPanics verifies the self-deadlock guard
func TestTask_WaitOnSelfPanics(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 1})

	handleCh := make(chan *Task, 1)
	panicCh := make(chan any, 1)
	task := p.PostTask(func(ctx context.Context) error {
		self := <-handleCh
		func() {
			defer func() { panicCh <- recover() }()
			self.Wait(ctx)
		}()
		return nil
	})
	handleCh <- task

	if r := <-panicCh; r == nil {
		t.Error("Wait() on self did not panic")
	}
	waitFinished(t, task)
	task.Close()
}

// TestTask_WaitOutsideTaskPanics verifies blocking waits are task-only
func TestTask_WaitOutsideTaskPanics(t *testing.T) {
	p := newTestProcessor(t, TaskProcessorConfig{Name: "task-test", Workers: 1})

	task := p.PostTask(func(ctx context.Context) error { return nil })
	defer task.Close()

	defer func() {
		if recover() == nil {
			t.Error("Wait() outside task execution did not panic")
		}
	}()
	task.Wait(context.Background())
}

// TestTask_InvalidHandle verifies the zero handle's accessors
func TestTask_InvalidHandle(t *testing.T) {
	var task Task

	if task.IsValid() {
		t.Error("IsValid() = true on zero handle")
	}
	if got := task.GetState(); got != StateInvalid {
		t.Errorf("GetState() = %v, want %v", got, StateInvalid)
	}
	if got := task.ID(); got != "" {
		t.Errorf("ID() = %q, want empty", got)
	}
	if got := task.GetCancellationReason(); got != CancelNone {
		t.Errorf("GetCancellationReason() = %v, want %v", got, CancelNone)
	}
	if err := task.Close(); err != nil {
		t.Errorf("Close() on zero handle = %v, want nil", err)
	}
	if task.IsFinished() {
		t.Error("IsFinished() = true on zero handle")
	}

	defer func() {
		if recover() == nil {
			t.Error("RequestCancel on zero handle did not panic")
		}
	}()
	task.RequestCancel()
}
