package core

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrLoopRunning is returned by Run when the loop is already running.
var ErrLoopRunning = errors.New("event loop is already running")

// EventLoop is a cooperative, single-goroutine loop.
// All tasks and idle callbacks run on the goroutine that called Run, one at a
// time, so state owned by the loop needs no locks.
//
// Each iteration:
// 1. Runs the tasks that were queued when the iteration began
// 2. Runs every active idle callback once
// 3. Blocks for new work only when no idle handle is active
//
// Run returns once nothing keeps the loop alive: no queued tasks, no active
// idle handles, no pending delayed tasks and no outstanding Ref.
type EventLoop struct {
	// Ready queue and its wakeup signal
	queue  *FIFOTaskQueue
	wakeup chan struct{}
	delays *DelayManager

	// Idle handles; idleScratch is only touched by the loop goroutine
	idleMu      sync.Mutex
	idles       []*IdleHandle
	idleScratch []*IdleHandle

	// Liveness and counters
	refs       atomic.Int64
	iterations atomic.Uint64
	rejected   atomic.Int64

	// Lifecycle control
	running  atomic.Bool
	closed   atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once

	name         string
	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics
}

// NewEventLoop creates an EventLoop with the default configuration.
func NewEventLoop() *EventLoop {
	return NewEventLoopWithConfig(nil)
}

// NewEventLoopWithConfig creates an EventLoop. Zero-valued config fields use defaults.
func NewEventLoopWithConfig(config *EventLoopConfig) *EventLoop {
	defaults := DefaultEventLoopConfig()
	l := &EventLoop{
		queue:        NewFIFOTaskQueue(),
		wakeup:       make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		name:         defaults.Name,
		logger:       defaults.Logger,
		panicHandler: defaults.PanicHandler,
		metrics:      defaults.Metrics,
	}
	l.delays = NewDelayManager(l.postDue)

	if config != nil {
		if config.Name != "" {
			l.name = config.Name
		}
		if config.Logger != nil {
			l.logger = config.Logger
			l.panicHandler = &DefaultPanicHandler{Logger: config.Logger}
		}
		if config.PanicHandler != nil {
			l.panicHandler = config.PanicHandler
		}
		if config.Metrics != nil {
			l.metrics = config.Metrics
		}
	}

	return l
}

// Name returns the name of the loop
func (l *EventLoop) Name() string {
	return l.name
}

// =============================================================================
// Task submission
// =============================================================================

// PostTask queues task for the next loop iteration. Safe from any goroutine.
func (l *EventLoop) PostTask(task Task) {
	if task == nil {
		return
	}
	if l.closed.Load() {
		l.reject("stopped")
		return
	}
	l.queue.Push(task)
	l.wake()
}

// PostDelayedTask queues task once delay has elapsed. Tasks reach the
// queue in deadline order; equal deadlines keep their post order.
// A pending delayed task keeps the loop alive.
func (l *EventLoop) PostDelayedTask(task Task, delay time.Duration) {
	if task == nil {
		return
	}
	if l.closed.Load() {
		l.reject("stopped")
		return
	}

	l.refs.Add(1)
	if !l.delays.AddDelayedTask(task, delay) {
		l.refs.Add(-1)
		l.reject("stopped")
	}
}

// postDue runs on the delay manager goroutine with tasks in deadline order.
func (l *EventLoop) postDue(due []Task) {
	// Queue first so the loop never sees refs==0 with a task still in flight
	for _, task := range due {
		l.PostTask(task)
	}
	l.refs.Add(-int64(len(due)))
	l.wake()
}

// Ref keeps the loop alive until the returned release function is called.
// Release is idempotent and safe from any goroutine.
func (l *EventLoop) Ref() (release func()) {
	l.refs.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.refs.Add(-1)
			l.wake()
		})
	}
}

func (l *EventLoop) reject(reason string) {
	l.rejected.Add(1)
	l.metrics.RecordTaskRejected(l.name, reason)
}

func (l *EventLoop) wake() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// =============================================================================
// Run loop
// =============================================================================

// Run drives the loop on the calling goroutine until nothing keeps it alive,
// Stop is called, or ctx is done.
func (l *EventLoop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	// Create context with taskRunnerKey for GetCurrentTaskRunner
	runCtx := context.WithValue(ctx, taskRunnerKey, l)

	l.logger.Debug("event loop started", F("loop", l.name))
	defer l.logger.Debug("event loop exited", F("loop", l.name), F("iterations", l.iterations.Load()))

	lastDepth := -1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-l.stopCh:
			l.queue.Clear()
			return nil
		default:
		}

		l.iterations.Add(1)

		depth := l.queue.Len()
		if depth != lastDepth {
			l.metrics.RecordQueueDepth(l.name, depth)
			lastDepth = depth
		}
		ran := l.runPending(runCtx, depth)
		l.runIdles(runCtx)

		if l.activeIdles() > 0 {
			// Idle handles make the iteration non-blocking; yield so a
			// pure polling loop does not starve other goroutines.
			if ran == 0 {
				runtime.Gosched()
			}
			continue
		}
		if !l.queue.IsEmpty() {
			continue
		}
		if !l.alive() {
			return nil
		}

		select {
		case <-l.wakeup:
		case <-l.stopCh:
			l.queue.Clear()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runPending executes at most n queued tasks; tasks queued while they run
// wait for the next iteration.
func (l *EventLoop) runPending(ctx context.Context, n int) int {
	if n == 0 {
		return 0
	}
	batch := l.queue.PopUpTo(n)
	for _, task := range batch {
		start := time.Now()
		l.execute(ctx, task)
		l.metrics.RecordTaskDuration(l.name, time.Since(start))
	}
	return len(batch)
}

func (l *EventLoop) runIdles(ctx context.Context) {
	l.idleMu.Lock()
	l.idleScratch = append(l.idleScratch[:0], l.idles...)
	l.idleMu.Unlock()

	for _, h := range l.idleScratch {
		// An earlier callback in this iteration may have stopped h
		if h.IsActive() {
			l.execute(ctx, h.callback)
		}
	}
	clear(l.idleScratch)
}

// execute runs fn and recovers panics so one bad task cannot kill the loop.
func (l *EventLoop) execute(ctx context.Context, fn Task) {
	defer func() {
		if rec := recover(); rec != nil {
			l.metrics.RecordTaskPanic(l.name, rec)
			l.panicHandler.HandlePanic(ctx, l.name, rec, debug.Stack())
		}
	}()
	fn(ctx)
}

func (l *EventLoop) alive() bool {
	// refs before queue: a timer queues its task before dropping its ref
	return l.refs.Load() > 0 || l.activeIdles() > 0 || !l.queue.IsEmpty()
}

func (l *EventLoop) activeIdles() int {
	l.idleMu.Lock()
	defer l.idleMu.Unlock()
	return len(l.idles)
}

// =============================================================================
// Lifecycle
// =============================================================================

// Stop makes Run return at the start of its next iteration, dropping any
// queued and delayed tasks, and rejects all tasks posted afterwards.
// Safe from any goroutine, including loop tasks.
func (l *EventLoop) Stop() {
	l.stopOnce.Do(func() {
		l.closed.Store(true)
		l.refs.Add(-int64(l.delays.Stop()))
		close(l.stopCh)
	})
}

// IsClosed returns true once Stop has been called
func (l *EventLoop) IsClosed() bool {
	return l.closed.Load()
}

// IsRunning returns true while Run is executing
func (l *EventLoop) IsRunning() bool {
	return l.running.Load()
}

// IsLoopGoroutine reports whether ctx belongs to a task running on this loop.
func (l *EventLoop) IsLoopGoroutine(ctx context.Context) bool {
	return GetCurrentTaskRunner(ctx) == TaskRunner(l)
}

// Stats returns a point-in-time snapshot of the loop state.
func (l *EventLoop) Stats() RunnerStats {
	return RunnerStats{
		Name:        l.name,
		Type:        "event_loop",
		Pending:     l.queue.Len(),
		ActiveIdles: l.activeIdles(),
		Delayed:     l.delays.TaskCount(),
		Refs:        l.refs.Load(),
		Iterations:  l.iterations.Load(),
		Rejected:    l.rejected.Load(),
		Running:     l.running.Load(),
		Closed:      l.closed.Load(),
	}
}
