package poblado

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Swind/go-poblado/core"
	"github.com/Swind/go-poblado/handoff"
)

// ErrIncomplete is returned by ProcessReader when the loop exited before the
// task's completion hook ran, e.g. because the loop was stopped.
var ErrIncomplete = errors.New("poblado: loop exited before processing completed")

// Options configures ProcessReader.
type Options struct {
	// ChunkSize is the read size; <= 0 uses DefaultChunkSize
	ChunkSize int

	// ChunkInterval is an optional pause between chunk reads
	ChunkInterval time.Duration

	// Loop, if set, is used instead of a fresh loop built from LoopConfig.
	// It must not be running yet.
	Loop *core.EventLoop

	// LoopConfig and TaskConfig configure the event loop and the task; nil uses defaults
	LoopConfig *core.EventLoopConfig
	TaskConfig *handoff.TaskConfig
}

// ProcessReader runs proc over everything read from r and returns the
// outcome once the completion hook has run. proc.OnComplete is still called
// on the loop goroutine before ProcessReader returns.
//
// The returned error reports loop or input failures (ctx cancellation, read
// errors); malformed input is reported through Outcome.Err instead.
func ProcessReader[R any](ctx context.Context, r io.Reader, proc handoff.Processor[R], opts Options) (handoff.Outcome[R], error) {
	loop := opts.Loop
	if loop == nil {
		loop = core.NewEventLoopWithConfig(opts.LoopConfig)
	}
	task := handoff.NewTaskWithConfig(loop, proc, opts.TaskConfig)
	// Ends the feeder goroutine when the loop exits before the input does
	defer task.Close()

	pump := NewChunkPump(loop, r, task, opts.ChunkSize, opts.ChunkInterval)
	if opts.TaskConfig != nil && opts.TaskConfig.Logger != nil {
		pump.SetLogger(opts.TaskConfig.Logger)
	}
	pump.Start()

	if err := loop.Run(ctx); err != nil {
		return handoff.Outcome[R]{}, fmt.Errorf("running event loop: %w", err)
	}
	if err := pump.Err(); err != nil {
		return handoff.Outcome[R]{}, fmt.Errorf("reading input: %w", err)
	}

	outcome, ok := task.Outcome()
	if !ok {
		return handoff.Outcome[R]{}, ErrIncomplete
	}
	return outcome, nil
}
