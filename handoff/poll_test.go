package handoff

import (
	"context"
	"testing"
	"time"

	"github.com/Swind/go-poblado/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop() *core.EventLoop {
	return core.NewEventLoopWithConfig(&core.EventLoopConfig{Name: "test", Logger: core.NewNoOpLogger()})
}

// runLoop runs l to completion, failing the test on timeout.
func runLoop(t *testing.T, l *core.EventLoop) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		l.Stop()
		t.Fatal("event loop did not exit")
	}
}

// TestPollScheduler_FiresOnceAfterSignal verifies the hook fires exactly once
// Main test items:
// 1. Signal the gate from another goroutine after a delay
// 2. Verify the hook runs exactly once
// 3. Verify the scheduler stops and the loop exits
func TestPollScheduler_FiresOnceAfterSignal(t *testing.T) {
	// Arrange
	l := newTestLoop()
	var g Gate
	calls := 0
	p := NewPollScheduler(l, &g, func() { calls++ })

	// Act
	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Signal()
	}()
	runLoop(t, l)

	// Assert
	assert.Equal(t, 1, calls)
	assert.True(t, p.Fired())
	assert.Greater(t, p.Ticks(), 1)
	assert.Equal(t, 0, l.Stats().ActiveIdles)
}

// TestPollScheduler_AlreadySignaled verifies a gate signaled before the loop
// starts is observed on the first tick
func TestPollScheduler_AlreadySignaled(t *testing.T) {
	l := newTestLoop()
	var g Gate
	g.Signal()
	calls := 0

	p := NewPollScheduler(l, &g, func() { calls++ })
	runLoop(t, l)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, p.Ticks())
}

// TestPollScheduler_LoopStaysResponsive verifies other tasks keep running
// while the scheduler polls
func TestPollScheduler_LoopStaysResponsive(t *testing.T) {
	l := newTestLoop()
	var g Gate
	heartbeats := 0
	var beat func(ctx context.Context)
	beat = func(ctx context.Context) {
		heartbeats++
		if heartbeats == 5 {
			go g.Signal()
			return
		}
		l.PostDelayedTask(beat, 2*time.Millisecond)
	}
	l.PostTask(beat)

	fired := false
	NewPollScheduler(l, &g, func() { fired = true })
	runLoop(t, l)

	assert.True(t, fired)
	assert.Equal(t, 5, heartbeats)
}

func TestPollScheduler_NilHook(t *testing.T) {
	l := newTestLoop()
	var g Gate
	g.Signal()

	p := NewPollScheduler(l, &g, nil)
	runLoop(t, l)

	assert.True(t, p.Fired())
}
