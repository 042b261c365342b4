package taskengine

import "github.com/cooptask/go-task-engine/engine"

// Re-export commonly used types from the engine package for convenience.
// This allows users to import only the taskengine package for most use
// cases.

// Task is the single-owner handle over one scheduled unit of work.
type Task = engine.Task

// TaskFunc is the body of a task.
type TaskFunc = engine.TaskFunc

// TaskProcessor is the worker pool and ready queue that runs tasks.
type TaskProcessor = engine.TaskProcessor

// TaskProcessorConfig configures a TaskProcessor.
type TaskProcessorConfig = engine.TaskProcessorConfig

// Deadline is an immutable point in time bounding a wait.
type Deadline = engine.Deadline

// Importance is a task's exemption level from overload cancellation.
type Importance = engine.Importance

// State is the lifecycle state of a task.
type State = engine.State

// CancellationReason records why a task was asked to cancel.
type CancellationReason = engine.CancellationReason

// Importance constants
const (
	ImportanceNormal   = engine.ImportanceNormal
	ImportanceCritical = engine.ImportanceCritical
)

// State constants
const (
	StateInvalid   = engine.StateInvalid
	StateNew       = engine.StateNew
	StateQueued    = engine.StateQueued
	StateRunning   = engine.StateRunning
	StateSuspended = engine.StateSuspended
	StateCancelled = engine.StateCancelled
	StateCompleted = engine.StateCompleted
)

// Cancellation reason constants
const (
	CancelNone        = engine.CancelNone
	CancelUserRequest = engine.CancelUserRequest
	CancelOverload    = engine.CancelOverload
	CancelAbandoned   = engine.CancelAbandoned
	CancelShutdown    = engine.CancelShutdown
)

// Suspension primitives, re-exported for task bodies.
var (
	SleepFor              = engine.SleepFor
	SleepUntil            = engine.SleepUntil
	InterruptibleSleepFor = engine.InterruptibleSleepFor
	CancellationPoint     = engine.CancellationPoint
	IsCancelRequested     = engine.IsCancelRequested
	Yield                 = engine.Yield
	Uninterruptible       = engine.Uninterruptible
	InsideTask            = engine.InsideTask
	CurrentTaskProcessor  = engine.CurrentTaskProcessor
)

// NewTaskProcessor creates a processor with its own worker pool. This is
// re-exported for advanced users who want processors beside the default
// one.
func NewTaskProcessor(cfg TaskProcessorConfig) *TaskProcessor {
	return engine.NewTaskProcessor(cfg)
}
