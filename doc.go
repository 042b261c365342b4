// Package taskengine provides an embedded cooperative task-scheduling
// runtime for Go: user-level tasks multiplexed onto a fixed pool of worker
// goroutines, with explicit cancellation propagation and one-shot
// future/promise channels for handing results between the runtime and
// external event sources.
//
// # Quick Start
//
// Initialize the default task processor at application startup:
//
//	taskengine.Init(taskengine.TaskProcessorConfig{Workers: 4})
//	defer taskengine.Shutdown()
//
// Post a task and wait for it to finish:
//
//	task := taskengine.Post(func(ctx context.Context) error {
//		// Cooperative code: suspension points observe cancellation.
//		return taskengine.SleepFor(ctx, 100*time.Millisecond)
//	})
//	defer task.Close()
//
// # Key Concepts
//
// Task: a single-owner handle over one schedulable unit of work. Closing
// an unfinished task requests cancellation and blocks until it unwinds,
// the structured-lifetime discipline that prevents orphaned work. A task
// closing another task's handle uses CloseWithContext, which waits at a
// suspension point instead of pinning the worker slot.
//
// TaskProcessor: the worker pool and ready queue. Normal-importance tasks
// may be shed with an overload cancellation under queue pressure; critical
// tasks are always admitted and never shed.
//
// Future/Promise: a one-shot single-producer/single-consumer result
// channel. The promise side may be resolved from any goroutine (e.g. an
// I/O completion callback); the future side suspends the calling task
// until the result is ready.
//
// # Cooperative Cancellation
//
// Cancellation is advisory, never preemptive. A request is observed only
// at suspension points (engine.SleepFor, Future.Get, Task.Wait, ...) and
// explicit engine.CancellationPoint checkpoints, which return a
// *engine.CancelledError that the body propagates like any other error.
// Cleanup code wrapped in engine.Uninterruptible is exempt from the
// cancellation it is unwinding under.
package taskengine
