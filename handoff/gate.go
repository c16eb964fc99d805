package handoff

import "sync"

// Gate is the one-shot "result ready" flag shared by the worker and the
// loop goroutine. The zero value is an unsignaled gate.
type Gate struct {
	mu   sync.Mutex
	done bool
}

// Signal marks the gate done. Worker goroutine only; it must be called at
// most once and panics on a second call.
func (g *Gate) Signal() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		panic("handoff: completion gate signaled twice")
	}
	g.done = true
}

// IsSignaled reports whether Signal has been called. It never blocks for
// longer than copying a bool under the lock, so it is safe to call on every
// loop iteration.
func (g *Gate) IsSignaled() bool {
	g.mu.Lock()
	done := g.done
	g.mu.Unlock()
	return done
}
