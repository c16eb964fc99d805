// Package handoff bridges a cooperative core.EventLoop with the worker
// goroutine of a tokenizer.Feeder.
//
// A Task feeds bytes from the loop goroutine to the worker, which hands
// each token to a Processor and runs the Processor's bulk Transform once
// parsing finishes. The worker then signals the task's Gate exactly once. A
// PollScheduler, registered as an idle handle on the loop, checks the Gate
// every iteration and, once it is signaled, stops itself and invokes the
// completion hook on the loop goroutine.
//
// # Happens-before
//
// Everything the worker writes before Gate.Signal (the Transform result or
// the ParseError) is visible to the loop goroutine once Gate.IsSignaled
// returns true: the mutex release in Signal and the acquire in IsSignaled
// order them. The completion hook and the Task accessors therefore read the
// Outcome without further locking.
//
// # Limitations
//
// A started task cannot be cancelled and has no timeout. Cancelling the
// context given to EventLoop.Run stops the loop, not the worker's
// Transform.
package handoff
