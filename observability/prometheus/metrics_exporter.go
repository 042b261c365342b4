package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/cooptask/go-task-engine/engine"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts engine.Metrics to Prometheus collectors.
type MetricsExporter struct {
	runSliceSeconds    *prom.HistogramVec
	taskCancelledTotal *prom.CounterVec
	taskCompletedTotal *prom.CounterVec
	taskPanicTotal     *prom.CounterVec
	queueDepth         *prom.GaugeVec
}

var _ engine.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for
// engine.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskengine"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	runSliceVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_run_slice_seconds",
		Help:      "Duration of uninterrupted task running slices in seconds.",
		Buckets:   buckets,
	}, []string{"processor", "importance"})
	cancelledVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_cancelled_total",
		Help:      "Total number of tasks terminated as cancelled, by reason.",
	}, []string{"processor", "reason"})
	completedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_completed_total",
		Help:      "Total number of tasks terminated as completed.",
	}, []string{"processor"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of panics captured from task bodies.",
	}, []string{"processor"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Normal-lane ready queue depth at enqueue time.",
	}, []string{"processor"})

	var err error
	if runSliceVec, err = registerCollector(reg, runSliceVec); err != nil {
		return nil, err
	}
	if cancelledVec, err = registerCollector(reg, cancelledVec); err != nil {
		return nil, err
	}
	if completedVec, err = registerCollector(reg, completedVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		runSliceSeconds:    runSliceVec,
		taskCancelledTotal: cancelledVec,
		taskCompletedTotal: completedVec,
		taskPanicTotal:     panicVec,
		queueDepth:         queueDepthVec,
	}, nil
}

// RecordRunSlice records the duration of one running slice of a task.
func (m *MetricsExporter) RecordRunSlice(processor string, importance engine.Importance, duration time.Duration) {
	if m == nil {
		return
	}
	m.runSliceSeconds.WithLabelValues(normalizeLabel(processor, "unknown"), importanceLabel(importance)).Observe(duration.Seconds())
}

// RecordTaskCancelled records a task terminating as cancelled.
func (m *MetricsExporter) RecordTaskCancelled(processor string, reason engine.CancellationReason) {
	if m == nil {
		return
	}
	m.taskCancelledTotal.WithLabelValues(normalizeLabel(processor, "unknown"), reasonLabel(reason)).Inc()
}

// RecordTaskCompleted records a task terminating as completed.
func (m *MetricsExporter) RecordTaskCompleted(processor string) {
	if m == nil {
		return
	}
	m.taskCompletedTotal.WithLabelValues(normalizeLabel(processor, "unknown")).Inc()
}

// RecordQueueDepth records the normal-lane ready queue depth.
func (m *MetricsExporter) RecordQueueDepth(processor string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(processor, "unknown")).Set(float64(depth))
}

// RecordTaskPanic records a captured task body panic.
func (m *MetricsExporter) RecordTaskPanic(processor string) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(processor, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func importanceLabel(importance engine.Importance) string {
	switch importance {
	case engine.ImportanceCritical:
		return "critical"
	case engine.ImportanceNormal:
		return "normal"
	default:
		return "unknown"
	}
}

func reasonLabel(reason engine.CancellationReason) string {
	switch reason {
	case engine.CancelUserRequest:
		return "user_request"
	case engine.CancelOverload:
		return "overload"
	case engine.CancelAbandoned:
		return "abandoned"
	case engine.CancelShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
