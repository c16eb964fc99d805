package poblado

import (
	"github.com/Swind/go-poblado/core"
	"github.com/Swind/go-poblado/handoff"
	"github.com/Swind/go-poblado/tokenizer"
)

// Re-export commonly used types for convenience.
// This allows users to import only the poblado package for most use cases.

// EventLoop is the cooperative single-goroutine loop
type EventLoop = core.EventLoop

// EventLoopConfig configures an EventLoop
type EventLoopConfig = core.EventLoopConfig

// Token is one parsed unit of input
type Token = tokenizer.Token

// ParseError describes malformed or truncated input
type ParseError = handoff.ParseError

// TaskConfig configures a Task
type TaskConfig = handoff.TaskConfig

// Processor, Task and Outcome for the generic handoff pattern
type Processor[R any] = handoff.Processor[R]
type Task[R any] = handoff.Task[R]
type Outcome[R any] = handoff.Outcome[R]

// NewEventLoop creates an EventLoop with the default configuration.
func NewEventLoop() *EventLoop {
	return core.NewEventLoop()
}

// NewTask creates a Task bound to loop.
func NewTask[R any](loop *EventLoop, proc Processor[R]) *Task[R] {
	return handoff.NewTask(loop, proc)
}
