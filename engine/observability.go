package engine

import "time"

// Metrics defines the interface for collecting scheduling metrics.
// Implementations can send metrics to monitoring systems (Prometheus,
// StatsD, etc.).
//
// Methods should be non-blocking and fast; they are called on the
// scheduling hot path.
type Metrics interface {
	// RecordRunSlice records the duration of one uninterrupted running
	// slice of a task (between a resume and the next suspension point or
	// termination).
	RecordRunSlice(processor string, importance Importance, duration time.Duration)

	// RecordTaskCancelled records a task reaching the Cancelled state.
	RecordTaskCancelled(processor string, reason CancellationReason)

	// RecordTaskCompleted records a task reaching the Completed state.
	RecordTaskCompleted(processor string)

	// RecordQueueDepth records the normal-lane ready queue depth at
	// enqueue time.
	RecordQueueDepth(processor string, depth int)

	// RecordTaskPanic records a panic captured from a task body.
	RecordTaskPanic(processor string)
}

// NilMetrics provides a no-op metrics implementation. It is the default
// when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordRunSlice(processor string, importance Importance, duration time.Duration) {
}
func (m *NilMetrics) RecordTaskCancelled(processor string, reason CancellationReason) {}
func (m *NilMetrics) RecordTaskCompleted(processor string)                            {}
func (m *NilMetrics) RecordQueueDepth(processor string, depth int)                    {}
func (m *NilMetrics) RecordTaskPanic(processor string)                                {}

// ProcessorStats is a point-in-time snapshot of a TaskProcessor.
type ProcessorStats struct {
	Name           string
	Workers        int
	QueuedNormal   int
	QueuedCritical int
	Running        int
	Live           int
	Shed           int64
	ShuttingDown   bool
}
