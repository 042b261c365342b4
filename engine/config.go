package engine

import (
	"runtime"
	"time"
)

// TaskProcessorConfig holds the externally supplied configuration of a
// TaskProcessor. The zero value of every field falls back to a sensible
// default via withDefaults.
type TaskProcessorConfig struct {
	// Name labels the processor in logs and metrics.
	Name string

	// Workers is the fixed number of worker goroutines.
	Workers int

	// QueueDepthLimit sheds a newly posted ImportanceNormal task when the
	// normal ready lane already holds this many contexts. 0 disables the
	// depth check. Critical tasks are never shed.
	QueueDepthLimit int

	// MaxQueueWaitTime sheds a dequeued ImportanceNormal task that waited
	// in the ready queue longer than this before its first run.
	// 0 disables the wait-time check.
	MaxQueueWaitTime time.Duration

	// Logger receives lifecycle and shedding events. Defaults to NoOpLogger.
	Logger Logger

	// Metrics receives scheduling metrics. Defaults to NilMetrics.
	Metrics Metrics
}

// DefaultTaskProcessorConfig returns a config with default values.
func DefaultTaskProcessorConfig() TaskProcessorConfig {
	return TaskProcessorConfig{
		Name:    "main-task-processor",
		Workers: runtime.GOMAXPROCS(0),
		Logger:  NewNoOpLogger(),
		Metrics: &NilMetrics{},
	}
}

func (c TaskProcessorConfig) withDefaults() TaskProcessorConfig {
	if c.Name == "" {
		c.Name = "main-task-processor"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Logger == nil {
		c.Logger = NewNoOpLogger()
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	return c
}
