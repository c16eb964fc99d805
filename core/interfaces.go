package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// This allows custom panic handling, logging, and recovery strategies.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task (may contain task runner info)
	// - runnerName: The name of the runner where the panic occurred
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, runnerName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics at error level.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic value and stack trace.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, runnerName string, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("runner", runnerName),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting loop and handoff metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast: most of them are called on the
// loop goroutine.
type Metrics interface {
	// RecordTaskDuration records how long a loop task took to execute.
	RecordTaskDuration(runnerName string, duration time.Duration)

	// RecordTaskPanic records that a loop task panicked during execution.
	RecordTaskPanic(runnerName string, panicInfo any)

	// RecordQueueDepth records the loop's ready-queue depth at the start of an iteration.
	RecordQueueDepth(runnerName string, depth int)

	// RecordTaskRejected records that a task was dropped (e.g., posted after Stop).
	RecordTaskRejected(runnerName string, reason string)

	// RecordTokens records how many tokens a processing task consumed.
	// Called on the worker goroutine.
	RecordTokens(taskName string, count int)

	// RecordTransformDuration records how long a bulk transform ran.
	// Called on the worker goroutine.
	RecordTransformDuration(taskName string, duration time.Duration)

	// RecordHandoff records a completed handoff.
	//
	// Parameters:
	// - taskName: The name of the processing task
	// - status: "success" or "failure"
	// - latency: Time from task construction to the completion hook
	// - pollTicks: How many poll ticks ran before the hook fired
	RecordHandoff(taskName string, status string, latency time.Duration, pollTicks int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(runnerName string, duration time.Duration) {
}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(runnerName string, panicInfo any) {
}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(runnerName string, depth int) {
}

// RecordTaskRejected is a no-op.
func (m *NilMetrics) RecordTaskRejected(runnerName string, reason string) {
}

// RecordTokens is a no-op.
func (m *NilMetrics) RecordTokens(taskName string, count int) {
}

// RecordTransformDuration is a no-op.
func (m *NilMetrics) RecordTransformDuration(taskName string, duration time.Duration) {
}

// RecordHandoff is a no-op.
func (m *NilMetrics) RecordHandoff(taskName string, status string, latency time.Duration, pollTicks int) {
}

// =============================================================================
// EventLoopConfig: Configuration for EventLoop
// =============================================================================

// EventLoopConfig holds configuration options for EventLoop.
// All handlers are optional; if not provided, default implementations will be used.
type EventLoopConfig struct {
	// Name labels logs, metrics and stats. Defaults to "event-loop".
	Name string

	// Logger receives loop lifecycle messages. Defaults to NewDefaultLogger().
	Logger Logger

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record execution metrics. Defaults to NilMetrics.
	Metrics Metrics
}

// DefaultEventLoopConfig returns a config with default handlers.
func DefaultEventLoopConfig() *EventLoopConfig {
	logger := NewDefaultLogger()
	return &EventLoopConfig{
		Name:         "event-loop",
		Logger:       logger,
		PanicHandler: &DefaultPanicHandler{Logger: logger},
		Metrics:      &NilMetrics{},
	}
}
