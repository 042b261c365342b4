package engine

import "sync"

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// readyQueue holds runnable task contexts: one FIFO lane per importance
// class, the critical lane always drained first. Critical tasks are never
// counted against the normal lane's depth limit.
type readyQueue struct {
	mu       sync.Mutex
	critical []*taskContext
	normal   []*taskContext
}

func newReadyQueue() *readyQueue {
	return &readyQueue{
		critical: make([]*taskContext, 0, defaultQueueCap),
		normal:   make([]*taskContext, 0, defaultQueueCap),
	}
}

func (q *readyQueue) Push(c *taskContext) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if c.importance == ImportanceCritical {
		q.critical = append(q.critical, c)
	} else {
		q.normal = append(q.normal, c)
	}
}

func (q *readyQueue) Pop() (*taskContext, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.critical) > 0 {
		c := q.critical[0]
		q.critical[0] = nil
		q.critical = maybeCompactLane(q.critical[1:])
		return c, true
	}
	if len(q.normal) > 0 {
		c := q.normal[0]
		q.normal[0] = nil
		q.normal = maybeCompactLane(q.normal[1:])
		return c, true
	}
	return nil, false
}

// maybeCompactLane reallocates a lane whose live window has drifted far
// into a large backing array, so popped contexts do not pin memory.
func maybeCompactLane(lane []*taskContext) []*taskContext {
	n := len(lane)
	c := cap(lane)

	if c < compactMinCap {
		return lane
	}
	if n == 0 {
		return make([]*taskContext, 0, defaultQueueCap)
	}
	if n*compactShrinkFactor >= c {
		return lane
	}

	newCap := max(max(c/2, defaultQueueCap), n)
	compacted := make([]*taskContext, n, newCap)
	copy(compacted, lane)
	return compacted
}

func (q *readyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.critical) + len(q.normal)
}

// NormalDepth returns the depth of the normal lane, the number the
// admission policy sheds against.
func (q *readyQueue) NormalDepth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.normal)
}

func (q *readyQueue) CriticalDepth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.critical)
}

func (q *readyQueue) IsEmpty() bool {
	return q.Len() == 0
}
