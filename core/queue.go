package core

import (
	"sync"
)

const (
	queueInitialCap = 16

	// The backing array is reallocated once it is at least shrinkMinCap
	// wide and less than a quarter full.
	shrinkMinCap = 64
	shrinkRatio  = 4
)

// FIFOTaskQueue is the event loop's ready queue. Push is safe from any
// goroutine; the loop drains it with PopUpTo once per iteration.
type FIFOTaskQueue struct {
	mu    sync.Mutex
	tasks []Task
}

// NewFIFOTaskQueue returns an empty queue.
func NewFIFOTaskQueue() *FIFOTaskQueue {
	return &FIFOTaskQueue{tasks: make([]Task, 0, queueInitialCap)}
}

// Push appends t.
func (q *FIFOTaskQueue) Push(t Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
}

// Pop removes the oldest task.
func (q *FIFOTaskQueue) Pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}
	head := q.tasks[0]
	q.tasks[0] = nil // drop the closure reference
	q.tasks = q.tasks[1:]
	q.shrinkLocked()
	return head, true
}

// PopUpTo removes and returns at most n tasks in FIFO order. The returned
// slice is owned by the caller.
func (q *FIFOTaskQueue) PopUpTo(n int) []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 || len(q.tasks) == 0 {
		return nil
	}
	if len(q.tasks) <= n {
		batch := q.tasks
		q.tasks = make([]Task, 0, queueInitialCap)
		return batch
	}

	batch := make([]Task, n)
	copy(batch, q.tasks)
	clear(q.tasks[:n])
	q.tasks = q.tasks[n:]
	q.shrinkLocked()
	return batch
}

func (q *FIFOTaskQueue) shrinkLocked() {
	size, width := len(q.tasks), cap(q.tasks)
	switch {
	case width < shrinkMinCap:
		return
	case size == 0:
		q.tasks = make([]Task, 0, queueInitialCap)
	case size*shrinkRatio < width:
		shrunk := make([]Task, size, max(width/2, queueInitialCap, size))
		copy(shrunk, q.tasks)
		q.tasks = shrunk
	}
}

// Len returns the number of queued tasks.
func (q *FIFOTaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *FIFOTaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear drops every queued task.
func (q *FIFOTaskQueue) Clear() {
	q.mu.Lock()
	q.tasks = make([]Task, 0, queueInitialCap)
	q.mu.Unlock()
}
