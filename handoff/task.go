package handoff

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/Swind/go-poblado/core"
	"github.com/Swind/go-poblado/tokenizer"
)

// State is the lifecycle position of a Task. Transitions only move forward.
type State int32

const (
	StateIdle State = iota
	StateParsing
	StateProcessingSuccess
	StateProcessingFailure
	StateSignaled
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateParsing:
		return "parsing"
	case StateProcessingSuccess:
		return "processing_success"
	case StateProcessingFailure:
		return "processing_failure"
	case StateSignaled:
		return "signaled"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// =============================================================================
// TaskConfig
// =============================================================================

// TaskConfig holds optional settings for a Task.
type TaskConfig struct {
	// Name labels logs and metrics. Defaults to "task".
	Name string

	// Logger receives boundary-crossing debug messages. Defaults to core.NewDefaultLogger().
	Logger core.Logger

	// Metrics records tokens, transform time and handoff latency. Defaults to core.NilMetrics.
	Metrics core.Metrics
}

// DefaultTaskConfig returns a config with default handlers.
func DefaultTaskConfig() *TaskConfig {
	return &TaskConfig{
		Name:    "task",
		Logger:  core.NewDefaultLogger(),
		Metrics: &core.NilMetrics{},
	}
}

// =============================================================================
// Task
// =============================================================================

// Task runs one Processor over one input stream.
//
// Write and Close are called on the loop goroutine (or before Run); they
// never block on parsing. The Processor's OnComplete fires exactly once on
// the loop goroutine, after which Outcome, Result and Failure may be read
// without locks.
//
// A Task cannot be restarted; build a new one to process new input.
type Task[R any] struct {
	name    string
	proc    Processor[R]
	gate    Gate
	poll    *PollScheduler
	feeder  *tokenizer.Feeder
	state   atomic.Int32
	created time.Time

	// Written by the worker before gate.Signal, read on the loop after
	outcome Outcome[R]
	tokens  int

	// Set on the loop goroutine before OnComplete
	completed atomic.Bool

	logger  core.Logger
	metrics core.Metrics
}

var _ io.WriteCloser = (*Task[int])(nil)

// NewTask creates a Task bound to loop with the default configuration.
func NewTask[R any](loop *core.EventLoop, proc Processor[R]) *Task[R] {
	return NewTaskWithConfig(loop, proc, nil)
}

// NewTaskWithConfig creates a Task bound to loop. Its poll tick is
// registered with the loop immediately and keeps the loop alive until the
// task completes.
func NewTaskWithConfig[R any](loop *core.EventLoop, proc Processor[R], config *TaskConfig) *Task[R] {
	defaults := DefaultTaskConfig()
	t := &Task[R]{
		name:    defaults.Name,
		proc:    proc,
		created: time.Now(),
		logger:  defaults.Logger,
		metrics: defaults.Metrics,
	}
	if config != nil {
		if config.Name != "" {
			t.name = config.Name
		}
		if config.Logger != nil {
			t.logger = config.Logger
		}
		if config.Metrics != nil {
			t.metrics = config.Metrics
		}
	}

	t.poll = NewPollScheduler(loop, &t.gate, t.complete)
	t.feeder = tokenizer.NewFeeder(worker[R]{t: t})
	return t
}

// Name returns the name of the task
func (t *Task[R]) Name() string {
	return t.name
}

// State returns the current lifecycle state. Safe from any goroutine.
func (t *Task[R]) State() State {
	return State(t.state.Load())
}

// Write feeds a chunk of input. The first call moves the task to Parsing.
// After malformed input has been reported it returns tokenizer.ErrStopped.
func (t *Task[R]) Write(p []byte) (int, error) {
	t.state.CompareAndSwap(int32(StateIdle), int32(StateParsing))
	return t.feeder.Write(p)
}

// Close marks the end of input.
func (t *Task[R]) Close() error {
	return t.feeder.Close()
}

// Outcome returns the task outcome. ok is false until the completion hook
// has started.
func (t *Task[R]) Outcome() (outcome Outcome[R], ok bool) {
	if !t.completed.Load() {
		return Outcome[R]{}, false
	}
	return t.outcome, true
}

// Result returns the transform result. ok is false before completion and
// when the task failed.
func (t *Task[R]) Result() (result R, ok bool) {
	o, done := t.Outcome()
	if !done || o.Failed() {
		var zero R
		return zero, false
	}
	return o.Result, true
}

// Failure returns the ParseError of a completed, failed task and nil
// otherwise.
func (t *Task[R]) Failure() *ParseError {
	o, _ := t.Outcome()
	return o.Err
}

// complete is the poll hook; it runs once on the loop goroutine.
func (t *Task[R]) complete() {
	t.state.Store(int32(StateCompleted))
	t.completed.Store(true)

	status := "success"
	if t.outcome.Failed() {
		status = "failure"
	}
	t.metrics.RecordHandoff(t.name, status, time.Since(t.created), t.poll.Ticks())
	t.logger.Debug("[collector] processing complete, reading results",
		core.F("task", t.name),
		core.F("status", status),
		core.F("poll_ticks", t.poll.Ticks()),
	)

	t.proc.OnComplete(t.outcome)
}

// signal publishes the outcome. Worker goroutine only.
func (t *Task[R]) signal() {
	// Before Signal: once the gate is open the loop may store StateCompleted
	t.state.Store(int32(StateSignaled))
	t.logger.Debug("[processor] signaling processing is complete", core.F("task", t.name))
	t.gate.Signal()
}

// =============================================================================
// worker: tokenizer.Handler running on the feeder goroutine
// =============================================================================

type worker[R any] struct {
	t *Task[R]
}

func (w worker[R]) OnToken(tok tokenizer.Token) {
	w.t.tokens++
	w.t.proc.OnToken(tok)
}

func (w worker[R]) OnParseComplete() {
	t := w.t
	t.state.Store(int32(StateProcessingSuccess))
	t.metrics.RecordTokens(t.name, t.tokens)
	t.logger.Debug("[processor] parser complete, processing",
		core.F("task", t.name),
		core.F("tokens", t.tokens),
	)

	start := time.Now()
	result := t.proc.Transform()
	t.metrics.RecordTransformDuration(t.name, time.Since(start))

	t.outcome = Outcome[R]{Result: result}
	t.signal()
}

func (w worker[R]) OnParseFailure(f tokenizer.Failure) {
	t := w.t
	t.state.Store(int32(StateProcessingFailure))
	t.metrics.RecordTokens(t.name, t.tokens)
	t.logger.Debug("[processor] parser failure",
		core.F("task", t.name),
		core.F("offset", f.Offset),
		core.F("error", f.Message),
	)

	t.outcome = Outcome[R]{Err: newParseError(f)}
	t.signal()
}
