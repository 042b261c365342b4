package taskengine

import (
	"sync"

	"github.com/cooptask/go-task-engine/engine"
)

// =============================================================================
// Default Task Processor Helper (Singleton)
// =============================================================================

var (
	defaultProcessor *engine.TaskProcessor
	defaultMu        sync.Mutex
)

// Init initializes the default task processor. Repeated calls are no-ops.
func Init(cfg TaskProcessorConfig) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultProcessor != nil {
		return // Already initialized
	}
	defaultProcessor = engine.NewTaskProcessor(cfg)
}

// Default returns the default task processor instance.
// It panics if Init has not been called.
func Default() *engine.TaskProcessor {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultProcessor == nil {
		panic("taskengine: default processor not initialized, call Init() first")
	}
	return defaultProcessor
}

// Shutdown stops the default task processor: cancels all non-terminal
// tasks with the shutdown reason and waits for workers to drain.
func Shutdown() {
	defaultMu.Lock()
	p := defaultProcessor
	defaultProcessor = nil
	defaultMu.Unlock()

	if p != nil {
		p.Shutdown()
	}
}

// Post submits a normal-importance task to the default processor.
func Post(body TaskFunc) *Task {
	return Default().PostTask(body)
}

// PostCritical submits a critical task to the default processor; critical
// tasks are exempt from overload shedding.
func PostCritical(body TaskFunc) *Task {
	return Default().PostTaskWithImportance(body, ImportanceCritical)
}
