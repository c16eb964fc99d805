package handoff

import (
	"context"

	"github.com/Swind/go-poblado/core"
)

// PollScheduler checks a Gate once per loop iteration and fires a hook on
// the loop goroutine the first time it finds the gate signaled.
//
// Polling costs one gate check per iteration and needs no cross-goroutine
// wakeup; completion is observed at most one iteration after Signal.
type PollScheduler struct {
	gate *Gate
	idle *core.IdleHandle
	hook func()

	// loop goroutine only
	ticks int
	fired bool
}

// NewPollScheduler registers the poll tick with loop and starts it.
func NewPollScheduler(loop *core.EventLoop, gate *Gate, hook func()) *PollScheduler {
	p := &PollScheduler{gate: gate, hook: hook}
	p.idle = loop.NewIdle(p.tick)
	p.idle.Start()
	return p
}

func (p *PollScheduler) tick(ctx context.Context) {
	// The idle handle may already be queued for this iteration
	if p.fired {
		return
	}
	p.ticks++
	if !p.gate.IsSignaled() {
		return
	}

	p.fired = true
	p.idle.Stop()
	if p.hook != nil {
		p.hook()
	}
}

// Ticks returns how many times the gate has been checked. Loop goroutine only.
func (p *PollScheduler) Ticks() int {
	return p.ticks
}

// Fired reports whether the hook has been invoked. Loop goroutine only.
func (p *PollScheduler) Fired() bool {
	return p.fired
}
