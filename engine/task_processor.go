package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// TaskProcessor owns a fixed pool of worker goroutines, the ready queue
// they pull task contexts from, and the admission/overload policy.
//
// Scheduling is cooperative: a worker resumes a context and keeps its slot
// occupied until the task suspends or terminates. Woken tasks are always
// re-enqueued, never run inline on the waking goroutine, to preserve queue
// fairness and FIFO ordering per importance class.
type TaskProcessor struct {
	cfg    TaskProcessorConfig
	queue  *readyQueue
	signal chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu              sync.Mutex
	live            map[*taskContext]struct{}
	shutdownStarted bool
	drainClosed     bool

	drainDone chan struct{}
	stoppedCh chan struct{}

	shuttingDown atomic.Bool
	running      atomic.Int32
	shed         atomic.Int64
}

// NewTaskProcessor creates a processor and starts its workers.
func NewTaskProcessor(cfg TaskProcessorConfig) *TaskProcessor {
	cfg = cfg.withDefaults()
	p := &TaskProcessor{
		cfg:       cfg,
		queue:     newReadyQueue(),
		signal:    make(chan struct{}, cfg.Workers*2),
		stopCh:    make(chan struct{}),
		live:      make(map[*taskContext]struct{}),
		drainDone: make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	cfg.Logger.Info("task processor started",
		F("processor", cfg.Name), F("workers", cfg.Workers))
	return p
}

// Name returns the processor's configured name.
func (p *TaskProcessor) Name() string {
	return p.cfg.Name
}

// WorkerCount returns the fixed number of workers.
func (p *TaskProcessor) WorkerCount() int {
	return p.cfg.Workers
}

// PostTask submits a task body with ImportanceNormal and returns its
// handle. The returned handle must be consumed by Close or Detach.
func (p *TaskProcessor) PostTask(body TaskFunc) *Task {
	return p.PostTaskWithImportance(body, ImportanceNormal)
}

// PostTaskWithImportance submits a task body with an explicit importance.
// Normal tasks may be rejected up front with reason CancelOverload when the
// ready queue is above the configured depth limit; critical tasks are
// always admitted.
func (p *TaskProcessor) PostTaskWithImportance(body TaskFunc, importance Importance) *Task {
	return p.post(body, importance, nil)
}

func (p *TaskProcessor) post(body TaskFunc, importance Importance, finalizer func(error)) *Task {
	c := newTaskContext(p, body, importance, finalizer)

	if !p.register(c) {
		c.cancelReason.CompareAndSwap(int32(CancelNone), int32(CancelShutdown))
		c.finishBeforeRun()
		p.cfg.Logger.Warn("task rejected: processor shutting down",
			F("processor", p.cfg.Name), F("task", c.id))
		return &Task{context: c}
	}

	if importance == ImportanceNormal && p.cfg.QueueDepthLimit > 0 &&
		p.queue.NormalDepth() >= p.cfg.QueueDepthLimit {
		p.shedTask(c, "queue depth limit")
		return &Task{context: c}
	}

	p.enqueue(c)
	return &Task{context: c}
}

func (p *TaskProcessor) register(c *taskContext) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdownStarted {
		return false
	}
	p.live[c] = struct{}{}
	return true
}

func (p *TaskProcessor) unregister(c *taskContext) {
	p.mu.Lock()
	if _, ok := p.live[c]; ok {
		delete(p.live, c)
		if p.shutdownStarted && len(p.live) == 0 && !p.drainClosed {
			p.drainClosed = true
			close(p.drainDone)
		}
	}
	p.mu.Unlock()

	if c.State() == StateCancelled {
		p.cfg.Metrics.RecordTaskCancelled(p.cfg.Name, c.cancellationReason())
	} else {
		p.cfg.Metrics.RecordTaskCompleted(p.cfg.Name)
	}
}

// enqueue moves a context into the ready queue (New→Queued or
// Suspended→Queued) and signals an idle worker.
func (p *TaskProcessor) enqueue(c *taskContext) {
	c.setState(StateQueued)
	c.queuedAt = time.Now()
	p.queue.Push(c)
	p.cfg.Metrics.RecordQueueDepth(p.cfg.Name, p.queue.NormalDepth())

	select {
	case p.signal <- struct{}{}:
	default:
		// Signal channel full; a worker is already due to re-scan the queue.
	}
}

// shedTask cancels a never-started normal task for overload.
func (p *TaskProcessor) shedTask(c *taskContext, cause string) {
	c.cancelReason.CompareAndSwap(int32(CancelNone), int32(CancelOverload))
	c.finishBeforeRun()
	p.shed.Add(1)
	p.cfg.Logger.Warn("task shed for overload",
		F("processor", p.cfg.Name), F("task", c.id), F("cause", cause))
}

func (p *TaskProcessor) workerLoop(id int) {
	defer p.wg.Done()
	for {
		c, ok := p.nextReady()
		if !ok {
			return
		}
		p.execute(c)
	}
}

func (p *TaskProcessor) nextReady() (*taskContext, bool) {
	for {
		if c, ok := p.queue.Pop(); ok {
			return c, true
		}
		select {
		case <-p.signal:
		case <-p.stopCh:
			// One final scan so a racing enqueue is not stranded.
			if c, ok := p.queue.Pop(); ok {
				return c, true
			}
			return nil, false
		}
	}
}

// execute runs one scheduling slice of c: first-run admission checks, then
// the resume/yield rendezvous with the task's goroutine.
func (p *TaskProcessor) execute(c *taskContext) {
	if !c.started.Load() {
		if c.cancellationReason() != CancelNone {
			c.finishBeforeRun()
			return
		}
		if c.importance == ImportanceNormal && p.cfg.MaxQueueWaitTime > 0 &&
			time.Since(c.queuedAt) > p.cfg.MaxQueueWaitTime {
			p.shedTask(c, "queue wait time limit")
			return
		}
		c.start()
	}

	begin := time.Now()
	p.running.Add(1)
	c.resume <- struct{}{}
	<-c.yield
	p.running.Add(-1)
	p.cfg.Metrics.RecordRunSlice(p.cfg.Name, c.importance, time.Since(begin))
}

func (p *TaskProcessor) noteTaskPanic(c *taskContext, value any) {
	p.cfg.Metrics.RecordTaskPanic(p.cfg.Name)
	p.cfg.Logger.Error("task panicked",
		F("processor", p.cfg.Name), F("task", c.id), F("panic", value))
}

// Shutdown cancels every non-terminal task with reason CancelShutdown,
// waits until all of them drain through their cooperative checkpoints, and
// then joins the workers. Repeated calls block until the first completes.
func (p *TaskProcessor) Shutdown() {
	p.mu.Lock()
	if p.shutdownStarted {
		p.mu.Unlock()
		<-p.stoppedCh
		return
	}
	p.shutdownStarted = true
	p.shuttingDown.Store(true)
	snapshot := make([]*taskContext, 0, len(p.live))
	for c := range p.live {
		snapshot = append(snapshot, c)
	}
	if len(p.live) == 0 && !p.drainClosed {
		p.drainClosed = true
		close(p.drainDone)
	}
	p.mu.Unlock()

	p.cfg.Logger.Info("task processor shutting down",
		F("processor", p.cfg.Name), F("live", len(snapshot)))

	for _, c := range snapshot {
		c.requestCancel(CancelShutdown)
	}

	<-p.drainDone
	close(p.stopCh)
	p.wg.Wait()
	close(p.stoppedCh)

	p.cfg.Logger.Info("task processor stopped", F("processor", p.cfg.Name))
}

// IsShuttingDown reports whether Shutdown has begun.
func (p *TaskProcessor) IsShuttingDown() bool {
	return p.shuttingDown.Load()
}

// Stats returns a point-in-time snapshot for observability.
func (p *TaskProcessor) Stats() ProcessorStats {
	p.mu.Lock()
	live := len(p.live)
	p.mu.Unlock()
	return ProcessorStats{
		Name:           p.cfg.Name,
		Workers:        p.cfg.Workers,
		QueuedNormal:   p.queue.NormalDepth(),
		QueuedCritical: p.queue.CriticalDepth(),
		Running:        int(p.running.Load()),
		Live:           live,
		Shed:           p.shed.Load(),
		ShuttingDown:   p.shuttingDown.Load(),
	}
}

// PostTaskWithResult submits a task whose typed result is delivered
// through the future machinery: the returned future resolves to the body's
// value or error, to the captured panic, or to the task's cancellation
// error if the task is cancelled before the body produces a result.
func PostTaskWithResult[T any](p *TaskProcessor, body func(ctx context.Context) (T, error)) (*Task, *Future[T]) {
	return PostTaskWithResultAndImportance(p, body, ImportanceNormal)
}

// PostTaskWithResultAndImportance is PostTaskWithResult with an explicit
// importance.
func PostTaskWithResultAndImportance[T any](p *TaskProcessor, body func(ctx context.Context) (T, error), importance Importance) (*Task, *Future[T]) {
	promise := NewPromise[T]()
	future := promise.GetFuture()

	wrapped := func(ctx context.Context) error {
		v, err := body(ctx)
		if err != nil {
			promise.state.trySetError(err)
			return err
		}
		promise.SetValue(v)
		return nil
	}
	// The finalizer resolves the promise when the body never got to:
	// shed or shut down before the first run, cancelled mid-body, or a
	// captured panic.
	task := p.post(wrapped, importance, func(err error) {
		if err != nil {
			promise.state.trySetError(err)
		}
		promise.Close()
	})
	return task, future
}
