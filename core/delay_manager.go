package core

import (
	"container/heap"
	"sync"
	"time"
)

// DelayedTask is a task waiting for its RunAt deadline
type DelayedTask struct {
	RunAt time.Time
	Task  Task
	seq   uint64 // post order, breaks RunAt ties
	index int    // for heap interface
}

// DelayedTaskHeap implements heap.Interface ordered by (RunAt, post order)
type DelayedTaskHeap []*DelayedTask

func (h DelayedTaskHeap) Len() int { return len(h) }
func (h DelayedTaskHeap) Less(i, j int) bool {
	if h[i].RunAt.Equal(h[j].RunAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].RunAt.Before(h[j].RunAt)
}
func (h DelayedTaskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *DelayedTaskHeap) Push(x any) {
	item := x.(*DelayedTask)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *DelayedTaskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[:n-1]
	return item
}

func (h DelayedTaskHeap) Peek() *DelayedTask {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// DelayManager holds delayed tasks and hands them to post in deadline
// order. A single timer goroutine runs while tasks are pending and exits
// when the heap drains.
type DelayManager struct {
	mu      sync.Mutex
	pq      DelayedTaskHeap
	seq     uint64
	running bool
	stopped bool
	wakeup  chan struct{}

	post func(due []Task)
}

// NewDelayManager creates a manager that delivers due tasks to post. post
// is always called from one goroutine at a time, in (RunAt, post order).
func NewDelayManager(post func(due []Task)) *DelayManager {
	return &DelayManager{
		wakeup: make(chan struct{}, 1),
		post:   post,
	}
}

// AddDelayedTask schedules task. It returns false after Stop.
func (dm *DelayManager) AddDelayedTask(task Task, delay time.Duration) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.stopped {
		return false
	}

	dm.seq++
	item := &DelayedTask{RunAt: time.Now().Add(delay), Task: task, seq: dm.seq}
	heap.Push(&dm.pq, item)

	switch {
	case !dm.running:
		dm.running = true
		go dm.loop()
	case item.index == 0:
		// New earliest deadline
		dm.notify()
	}
	return true
}

func (dm *DelayManager) notify() {
	select {
	case dm.wakeup <- struct{}{}:
	default:
	}
}

func (dm *DelayManager) loop() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait, ok := dm.nextWait()
		if !ok {
			return
		}
		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.C:
			case <-dm.wakeup:
				// Earlier task added or stopped; recalculate
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				continue
			}
		}

		// Post outside the lock; only this goroutine posts
		if due := dm.popExpired(); len(due) > 0 {
			dm.post(due)
		}
	}
}

// nextWait returns how long until the earliest deadline. ok is false once
// the heap is empty, which ends the timer goroutine.
func (dm *DelayManager) nextWait() (wait time.Duration, ok bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := dm.pq.Peek()
	if item == nil {
		dm.running = false
		return 0, false
	}
	return time.Until(item.RunAt), true
}

func (dm *DelayManager) popExpired() []Task {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	now := time.Now()
	var due []Task
	for dm.pq.Len() > 0 && !dm.pq.Peek().RunAt.After(now) {
		due = append(due, heap.Pop(&dm.pq).(*DelayedTask).Task)
	}
	return due
}

// Stop drops every pending task and refuses new ones. It returns how many
// tasks were dropped.
func (dm *DelayManager) Stop() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	dropped := len(dm.pq)
	dm.stopped = true
	dm.pq = nil
	dm.notify()
	return dropped
}

// TaskCount returns the number of pending delayed tasks.
func (dm *DelayManager) TaskCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.pq)
}
