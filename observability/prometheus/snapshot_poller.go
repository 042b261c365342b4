package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/cooptask/go-task-engine/engine"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ProcessorSnapshotProvider provides current processor stats snapshots.
type ProcessorSnapshotProvider interface {
	Stats() engine.ProcessorStats
}

// SnapshotPoller periodically exports processor Stats() snapshots into
// Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	processorsMu sync.RWMutex
	processors   map[string]ProcessorSnapshotProvider

	queuedNormal   *prom.GaugeVec
	queuedCritical *prom.GaugeVec
	running        *prom.GaugeVec
	liveTasks      *prom.GaugeVec
	shedTotal      *prom.GaugeVec
	workers        *prom.GaugeVec
	shuttingDown   *prom.GaugeVec

	stateMu sync.Mutex
	polling bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	queuedNormal := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskengine",
		Name:      "processor_queued_normal",
		Help:      "Normal-lane ready queue depth per processor.",
	}, []string{"processor"})
	queuedCritical := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskengine",
		Name:      "processor_queued_critical",
		Help:      "Critical-lane ready queue depth per processor.",
	}, []string{"processor"})
	running := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskengine",
		Name:      "processor_running",
		Help:      "Tasks currently occupying a worker per processor.",
	}, []string{"processor"})
	liveTasks := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskengine",
		Name:      "processor_live_tasks",
		Help:      "Non-terminal tasks per processor.",
	}, []string{"processor"})
	shedTotal := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskengine",
		Name:      "processor_shed_total",
		Help:      "Overload-shed task count snapshot.",
	}, []string{"processor"})
	workers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskengine",
		Name:      "processor_workers",
		Help:      "Worker count per processor.",
	}, []string{"processor"})
	shuttingDown := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskengine",
		Name:      "processor_shutting_down",
		Help:      "Processor shutdown state (1=shutting down, 0=serving).",
	}, []string{"processor"})

	var err error
	if queuedNormal, err = registerCollector(reg, queuedNormal); err != nil {
		return nil, err
	}
	if queuedCritical, err = registerCollector(reg, queuedCritical); err != nil {
		return nil, err
	}
	if running, err = registerCollector(reg, running); err != nil {
		return nil, err
	}
	if liveTasks, err = registerCollector(reg, liveTasks); err != nil {
		return nil, err
	}
	if shedTotal, err = registerCollector(reg, shedTotal); err != nil {
		return nil, err
	}
	if workers, err = registerCollector(reg, workers); err != nil {
		return nil, err
	}
	if shuttingDown, err = registerCollector(reg, shuttingDown); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:       interval,
		processors:     make(map[string]ProcessorSnapshotProvider),
		queuedNormal:   queuedNormal,
		queuedCritical: queuedCritical,
		running:        running,
		liveTasks:      liveTasks,
		shedTotal:      shedTotal,
		workers:        workers,
		shuttingDown:   shuttingDown,
	}, nil
}

// AddProcessor adds or replaces a processor snapshot provider by name.
func (p *SnapshotPoller) AddProcessor(name string, provider ProcessorSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "processor")
	p.processorsMu.Lock()
	p.processors[name] = provider
	p.processorsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.polling {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.polling = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.polling {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.polling = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.processorsMu.RLock()
	defer p.processorsMu.RUnlock()

	for name, provider := range p.processors {
		stats := provider.Stats()
		p.queuedNormal.WithLabelValues(name).Set(float64(stats.QueuedNormal))
		p.queuedCritical.WithLabelValues(name).Set(float64(stats.QueuedCritical))
		p.running.WithLabelValues(name).Set(float64(stats.Running))
		p.liveTasks.WithLabelValues(name).Set(float64(stats.Live))
		p.shedTotal.WithLabelValues(name).Set(float64(stats.Shed))
		p.workers.WithLabelValues(name).Set(float64(stats.Workers))
		if stats.ShuttingDown {
			p.shuttingDown.WithLabelValues(name).Set(1)
		} else {
			p.shuttingDown.WithLabelValues(name).Set(0)
		}
	}
}
