package core

import (
	"context"
	"time"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// =============================================================================
// TaskRunner: Define task submission interface
// =============================================================================

// TaskRunner accepts tasks for execution on the goroutine it owns.
// PostTask and PostDelayedTask must be safe to call from any goroutine and
// must never block the caller.
type TaskRunner interface {
	PostTask(task Task)
	PostDelayedTask(task Task, delay time.Duration)
}

// =============================================================================
// Context Helper
// =============================================================================
type taskRunnerKeyType struct{}

var taskRunnerKey taskRunnerKeyType

// GetCurrentTaskRunner returns the runner executing the task that owns ctx,
// or nil if ctx was not handed out by a runner.
func GetCurrentTaskRunner(ctx context.Context) TaskRunner {
	if v := ctx.Value(taskRunnerKey); v != nil {
		return v.(TaskRunner)
	}
	return nil
}
