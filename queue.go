package goasio

import "sync"

// taskQueue is the scheduler's shared, multi-producer/multi-consumer FIFO
// task queue (§3 SharedQueue). It is guarded by a single mutex rather
// than the teacher's pooled-chunk allocator (ingress.go's ChunkedIngress):
// the runtime's task volume doesn't need chunk pooling to avoid
// allocator pressure, but the "externally synchronized FIFO of opaque
// work items" shape is carried over directly from that design.
type taskQueue struct {
	mu    sync.Mutex
	items []task
}

func newTaskQueue() *taskQueue {
	return &taskQueue{}
}

// push enqueues a task at the tail. FIFO per producer, as required by §5.
func (q *taskQueue) push(t task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
}

// pop dequeues the task at the head, or returns (nil, false) if empty.
func (q *taskQueue) pop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return t, true
}

// unparkQueue is the scheduler's FIFO of parked-worker unpark tokens
// (§3 UnparkerQueue). An entry exists only while the corresponding
// worker is actually parked or about to park, per the push-before-park
// ordering required by §4.5.
type unparkQueue struct {
	mu    sync.Mutex
	items []*Unparker
}

func newUnparkQueue() *unparkQueue {
	return &unparkQueue{}
}

func (q *unparkQueue) push(u *Unparker) {
	q.mu.Lock()
	q.items = append(q.items, u)
	q.mu.Unlock()
}

// pop removes and returns one unparker, if any are queued.
func (q *unparkQueue) pop() (*Unparker, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	u := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return u, true
}
