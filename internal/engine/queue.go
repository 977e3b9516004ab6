package engine

import (
	"errors"

	"github.com/vigilix/insightd/internal/insight"
)

// ErrQueueFull is returned by Submit when the queue is at capacity and
// no low priority task can be evicted to make room.
var ErrQueueFull = errors.New("task queue is full")

// pendingTask wraps a task while it is queued or in flight, carrying
// its execution attempt count for the retry budget.
type pendingTask struct {
	task     insight.Task
	attempts int
}

type queueItem struct {
	pending *pendingTask
	seq     uint64
}

// taskQueue is a bounded, priority-ordered holding area for tasks that
// could not be dispatched immediately. High runs before medium, medium
// before low; equal priorities dequeue in strict FIFO order, guaranteed
// by a monotone sequence number assigned at enqueue.
//
// The queue is not safe for concurrent use; the engine serializes all
// access under its own mutex.
type taskQueue struct {
	capacity int
	items    []queueItem
	nextSeq  uint64
}

func newTaskQueue(capacity int) *taskQueue {
	return &taskQueue{
		capacity: capacity,
		items:    make([]queueItem, 0, capacity),
	}
}

// Enqueue appends a task. When the queue is at capacity it evicts the
// single oldest low priority task to make room; if none exists the task
// is rejected with ErrQueueFull. Returns the evicted task, if any.
func (q *taskQueue) Enqueue(p *pendingTask) (*pendingTask, error) {
	var evicted *pendingTask
	if len(q.items) >= q.capacity {
		idx := q.oldestLowPriority()
		if idx < 0 {
			return nil, ErrQueueFull
		}
		evicted = q.items[idx].pending
		q.items = append(q.items[:idx], q.items[idx+1:]...)
	}

	q.items = append(q.items, queueItem{pending: p, seq: q.nextSeq})
	q.nextSeq++
	return evicted, nil
}

// DequeueNext removes and returns the highest-priority task, breaking
// ties by enqueue order.
func (q *taskQueue) DequeueNext() (*pendingTask, bool) {
	if len(q.items) == 0 {
		return nil, false
	}

	best := 0
	for i := 1; i < len(q.items); i++ {
		bw := q.items[best].pending.task.Priority.Weight()
		iw := q.items[i].pending.task.Priority.Weight()
		if iw < bw || (iw == bw && q.items[i].seq < q.items[best].seq) {
			best = i
		}
	}

	p := q.items[best].pending
	q.items = append(q.items[:best], q.items[best+1:]...)
	return p, true
}

// Len reports the current queue length. It reflects state immediately
// after each enqueue and dequeue.
func (q *taskQueue) Len() int {
	return len(q.items)
}

// Clear drops every queued task.
func (q *taskQueue) Clear() {
	q.items = q.items[:0]
}

// oldestLowPriority returns the index of the earliest-enqueued low
// priority task, or -1 when there is none.
func (q *taskQueue) oldestLowPriority() int {
	idx := -1
	for i, item := range q.items {
		if item.pending.task.Priority != insight.PriorityLow {
			continue
		}
		if idx < 0 || item.seq < q.items[idx].seq {
			idx = i
		}
	}
	return idx
}
