package core

import (
	"slices"
	"sync/atomic"
)

// IdleHandle is a repeating tick that runs once per loop iteration while
// active. An active handle keeps the loop alive and stops it from blocking.
//
// Start and Stop are idempotent and may be called from any goroutine,
// including from inside the handle's own callback.
type IdleHandle struct {
	loop     *EventLoop
	callback Task
	active   atomic.Bool
}

// NewIdle creates an inactive idle handle bound to the loop.
func (l *EventLoop) NewIdle(callback Task) *IdleHandle {
	return &IdleHandle{loop: l, callback: callback}
}

// Start activates the handle.
func (h *IdleHandle) Start() {
	if h.callback == nil {
		return
	}
	l := h.loop
	l.idleMu.Lock()
	// Flip under idleMu so the list and the flag never disagree
	if !h.active.CompareAndSwap(false, true) {
		l.idleMu.Unlock()
		return
	}
	l.idles = append(l.idles, h)
	l.idleMu.Unlock()
	l.wake()
}

// Stop deactivates the handle. The callback will not run again unless Start
// is called.
func (h *IdleHandle) Stop() {
	l := h.loop
	l.idleMu.Lock()
	if !h.active.CompareAndSwap(true, false) {
		l.idleMu.Unlock()
		return
	}
	if i := slices.Index(l.idles, h); i >= 0 {
		l.idles = slices.Delete(l.idles, i, i+1)
	}
	l.idleMu.Unlock()
	l.wake()
}

// IsActive reports whether the handle is started.
func (h *IdleHandle) IsActive() bool {
	return h.active.Load()
}
