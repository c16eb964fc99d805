package handoff

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-poblado/core"
	"github.com/Swind/go-poblado/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// upperProcessor keeps Key and String tokens and upper-cases them.
type upperProcessor struct {
	delay    time.Duration
	tokens   []string
	outcomes []Outcome[[]string]
	states   []State
	task     *Task[[]string]
}

func (p *upperProcessor) OnToken(tok tokenizer.Token) {
	if tok.Kind == tokenizer.Key || tok.Kind == tokenizer.String {
		p.tokens = append(p.tokens, tok.String())
	}
}

func (p *upperProcessor) Transform() []string {
	out := make([]string, 0, len(p.tokens))
	for _, s := range p.tokens {
		// Key("k1") -> K1
		v := s[strings.Index(s, `"`)+1 : len(s)-2]
		out = append(out, strings.ToUpper(v))
		time.Sleep(p.delay)
	}
	return out
}

func (p *upperProcessor) OnComplete(outcome Outcome[[]string]) {
	p.outcomes = append(p.outcomes, outcome)
	if p.task != nil {
		p.states = append(p.states, p.task.State())
	}
}

func newTestTask(l *core.EventLoop, p *upperProcessor) *Task[[]string] {
	task := NewTaskWithConfig[[]string](l, p, &TaskConfig{Name: "test", Logger: core.NewNoOpLogger()})
	p.task = task
	return task
}

// feedChunks writes input to w in size-byte chunks from loop tasks, each
// step posting the next one interval later, then closes w.
func feedChunks(l *core.EventLoop, w io.WriteCloser, input string, size int, interval time.Duration) {
	var step core.Task
	step = func(ctx context.Context) {
		if len(input) == 0 {
			_ = w.Close()
			return
		}
		n := min(size, len(input))
		_, _ = w.Write([]byte(input[:n]))
		input = input[n:]
		l.PostDelayedTask(step, interval)
	}
	l.PostTask(step)
}

// TestTask_Success verifies the success path end to end
// Main test items:
// 1. Feed {"k1":"v1","k2":"v2"} in 4-byte chunks with a delay between them
// 2. Verify tokens arrive in order and the result is upper-cased
// 3. Verify the completion hook fires once
func TestTask_Success(t *testing.T) {
	// Arrange
	l := newTestLoop()
	p := &upperProcessor{delay: time.Millisecond}
	task := newTestTask(l, p)

	// Act
	feedChunks(l, task, `{"k1":"v1","k2":"v2"}`, 4, 2*time.Millisecond)
	runLoop(t, l)

	// Assert
	assert.Equal(t, []string{`Key("k1")`, `String("v1")`, `Key("k2")`, `String("v2")`}, p.tokens)
	require.Len(t, p.outcomes, 1)
	assert.False(t, p.outcomes[0].Failed())
	assert.Equal(t, []string{"K1", "V1", "K2", "V2"}, p.outcomes[0].Result)
	assert.Equal(t, []State{StateCompleted}, p.states)

	result, ok := task.Result()
	assert.True(t, ok)
	assert.Equal(t, []string{"K1", "V1", "K2", "V2"}, result)
	assert.Nil(t, task.Failure())
	assert.Equal(t, StateCompleted, task.State())
}

// TestTask_Failure verifies malformed input ends in a ParseError and no result
func TestTask_Failure(t *testing.T) {
	l := newTestLoop()
	p := &upperProcessor{}
	task := newTestTask(l, p)

	feedChunks(l, task, `{"a":}`, 64, 0)
	runLoop(t, l)

	require.Len(t, p.outcomes, 1)
	o := p.outcomes[0]
	require.True(t, o.Failed())
	assert.Nil(t, o.Result)
	assert.NotEmpty(t, o.Err.Message)
	assert.GreaterOrEqual(t, o.Err.Offset, int64(5))

	_, ok := task.Result()
	assert.False(t, ok)
	require.NotNil(t, task.Failure())
	assert.Equal(t, o.Err, task.Failure())

	_, err := o.Get()
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

// TestTask_DelayedChunksKeepOrder tests chunks scheduled with equal delays
// Main test items:
// 1. Schedule every chunk of a malformed document with the same delay
// 2. Verify each run reports the failure at the malformed byte
// 3. Repeat on fresh loops to catch reordering
func TestTask_DelayedChunksKeepOrder(t *testing.T) {
	const input = `{"a":}`
	for range 50 {
		l := newTestLoop()
		p := &upperProcessor{}
		task := newTestTask(l, p)

		for i := range len(input) {
			chunk := []byte(input[i : i+1])
			l.PostDelayedTask(func(ctx context.Context) { _, _ = task.Write(chunk) }, time.Millisecond)
		}
		l.PostDelayedTask(func(ctx context.Context) { _ = task.Close() }, time.Millisecond)
		runLoop(t, l)

		require.Len(t, p.outcomes, 1)
		require.True(t, p.outcomes[0].Failed())
		assert.GreaterOrEqual(t, p.outcomes[0].Err.Offset, int64(5))
	}
}

// TestTask_SplitToken verifies a key split across writes is reassembled
func TestTask_SplitToken(t *testing.T) {
	l := newTestLoop()
	p := &upperProcessor{}
	task := newTestTask(l, p)

	l.PostTask(func(ctx context.Context) {
		_, _ = task.Write([]byte(`{"ab`))
		_, _ = task.Write([]byte(`c":"d"}`))
		_ = task.Close()
	})
	runLoop(t, l)

	assert.Equal(t, []string{`Key("abc")`, `String("d")`}, p.tokens)
	require.Len(t, p.outcomes, 1)
	assert.Equal(t, []string{"ABC", "D"}, p.outcomes[0].Result)
}

// TestTask_EmptyInput verifies closing without any write still completes
func TestTask_EmptyInput(t *testing.T) {
	l := newTestLoop()
	p := &upperProcessor{}
	task := newTestTask(l, p)

	l.PostTask(func(ctx context.Context) { _ = task.Close() })
	runLoop(t, l)

	require.Len(t, p.outcomes, 1)
	require.True(t, p.outcomes[0].Failed())
	assert.Equal(t, int64(0), p.outcomes[0].Err.Offset)
	assert.Equal(t, "the document is empty", p.outcomes[0].Err.Message)
}

// TestTask_OutcomeBeforeCompletion verifies accessors report not-ready
// until the hook runs
func TestTask_OutcomeBeforeCompletion(t *testing.T) {
	l := newTestLoop()
	p := &upperProcessor{}
	task := newTestTask(l, p)

	_, ok := task.Outcome()
	assert.False(t, ok)
	_, ok = task.Result()
	assert.False(t, ok)
	assert.Nil(t, task.Failure())
	assert.Equal(t, StateIdle, task.State())
	assert.Equal(t, "test", task.Name())

	_ = task.Close()
	runLoop(t, l)

	_, ok = task.Outcome()
	assert.True(t, ok)
}

// TestTask_StateTransitions verifies state moves forward through parsing
// and processing
func TestTask_StateTransitions(t *testing.T) {
	l := newTestLoop()
	transformStarted := make(chan struct{})
	releaseTransform := make(chan struct{})
	var task *Task[int]
	var atComplete State

	task = NewTaskWithConfig[int](l, ProcessorFuncs[int]{
		TransformFunc: func() int {
			close(transformStarted)
			<-releaseTransform
			return 42
		},
		CompleteFunc: func(o Outcome[int]) { atComplete = task.State() },
	}, &TaskConfig{Logger: core.NewNoOpLogger()})

	l.PostTask(func(ctx context.Context) {
		_, _ = task.Write([]byte(`[1]`))
		assert.Equal(t, StateParsing, task.State())
		_ = task.Close()
	})
	go func() {
		<-transformStarted
		assert.Equal(t, StateProcessingSuccess, task.State())
		close(releaseTransform)
	}()
	runLoop(t, l)

	assert.Equal(t, StateCompleted, atComplete)
	result, ok := task.Result()
	assert.True(t, ok)
	assert.Equal(t, 42, result)
	assert.Equal(t, "task", task.Name())
}

// TestTask_LoopResponsiveDuringTransform verifies loop tasks keep running
// while the worker is busy in Transform
func TestTask_LoopResponsiveDuringTransform(t *testing.T) {
	l := newTestLoop()
	release := make(chan struct{})
	heartbeats := 0

	task := NewTaskWithConfig[string](l, ProcessorFuncs[string]{
		TransformFunc: func() string {
			<-release
			return "done"
		},
	}, &TaskConfig{Logger: core.NewNoOpLogger()})

	var beat func(ctx context.Context)
	beat = func(ctx context.Context) {
		heartbeats++
		if heartbeats == 10 {
			close(release)
			return
		}
		l.PostTask(beat)
	}
	l.PostTask(func(ctx context.Context) {
		_, _ = task.Write([]byte(`"x"`))
		_ = task.Close()
		l.PostTask(beat)
	})
	runLoop(t, l)

	assert.Equal(t, 10, heartbeats)
	result, ok := task.Result()
	assert.True(t, ok)
	assert.Equal(t, "done", result)
}

// TestTask_WriteAfterFailure verifies further writes are rejected once
// malformed input was reported
func TestTask_WriteAfterFailure(t *testing.T) {
	l := newTestLoop()
	var task *Task[int]
	var failed bool
	var lateErr error

	task = NewTaskWithConfig[int](l, ProcessorFuncs[int]{
		CompleteFunc: func(o Outcome[int]) {
			failed = o.Failed()
			// The worker has given up by the time the hook runs
			_, lateErr = task.Write([]byte(`"more"`))
			_ = task.Close()
		},
	}, &TaskConfig{Logger: core.NewNoOpLogger()})

	l.PostTask(func(ctx context.Context) { _, _ = task.Write([]byte(`{"a":]`)) })
	runLoop(t, l)

	assert.True(t, failed)
	assert.ErrorIs(t, lateErr, tokenizer.ErrStopped)
}

type handoffMetrics struct {
	core.NilMetrics
	mu       sync.Mutex
	tokens   int
	statuses []string
	ticks    int
	xforms   atomic.Int32
}

func (m *handoffMetrics) RecordTokens(taskName string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens += count
}

func (m *handoffMetrics) RecordTransformDuration(taskName string, duration time.Duration) {
	m.xforms.Add(1)
}

func (m *handoffMetrics) RecordHandoff(taskName string, status string, latency time.Duration, pollTicks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	m.ticks = pollTicks
}

// TestTask_Metrics verifies token counts, transform time and handoff status
// are recorded
func TestTask_Metrics(t *testing.T) {
	l := newTestLoop()
	m := &handoffMetrics{}
	ok := NewTaskWithConfig[[]string](l, &upperProcessor{}, &TaskConfig{Name: "ok", Logger: core.NewNoOpLogger(), Metrics: m})
	bad := NewTaskWithConfig[[]string](l, &upperProcessor{}, &TaskConfig{Name: "bad", Logger: core.NewNoOpLogger(), Metrics: m})

	feedChunks(l, ok, `{"k1":"v1"}`, 3, 0)
	feedChunks(l, bad, `{"k1"`, 3, 0)
	runLoop(t, l)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 4+2, m.tokens) // {, k1, v1, } then {, k1
	assert.ElementsMatch(t, []string{"success", "failure"}, m.statuses)
	assert.GreaterOrEqual(t, m.ticks, 1)
	assert.Equal(t, int32(1), m.xforms.Load())
}

// TestTask_ManyConcurrent verifies independent tasks on one loop each
// complete exactly once with their own result (run with -race)
func TestTask_ManyConcurrent(t *testing.T) {
	const n = 50
	l := newTestLoop()
	procs := make([]*upperProcessor, n)
	for i := range n {
		procs[i] = &upperProcessor{}
		task := newTestTask(l, procs[i])
		feedChunks(l, task, fmt.Sprintf(`{"key%d":"value%d"}`, i, i), 5, time.Millisecond)
	}
	runLoop(t, l)

	for i, p := range procs {
		require.Len(t, p.outcomes, 1, "task %d", i)
		assert.Equal(t, []string{fmt.Sprintf("KEY%d", i), fmt.Sprintf("VALUE%d", i)}, p.outcomes[0].Result)
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "processing_failure", StateProcessingFailure.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "State(99)", State(99).String())
}

func TestParseError_Messages(t *testing.T) {
	err := &ParseError{Message: "unexpected end of input", Offset: 12}

	assert.Equal(t, "parse error at offset 12: unexpected end of input", err.Error())
	assert.Equal(t,
		"A parser error occurred, this could be due to incomplete or invalid JSON.\n"+
			"Error: [ unexpected end of input ]\n"+
			"The error occurred at file offset: 12",
		err.Detail())
}

// TestTask_ManyLoops verifies tasks on independent loops running in
// parallel each complete on their own loop (run with -race)
func TestTask_ManyLoops(t *testing.T) {
	const loops, tasksPerLoop = 8, 10
	g, ctx := errgroup.WithContext(context.Background())

	for i := range loops {
		g.Go(func() error {
			l := newTestLoop()
			procs := make([]*upperProcessor, tasksPerLoop)
			for j := range tasksPerLoop {
				procs[j] = &upperProcessor{}
				task := newTestTask(l, procs[j])
				feedChunks(l, task, fmt.Sprintf(`{"l%d":"t%d"}`, i, j), 3, 0)
			}
			if err := l.Run(ctx); err != nil {
				return err
			}
			for j, p := range procs {
				if len(p.outcomes) != 1 {
					return fmt.Errorf("loop %d task %d: %d completions", i, j, len(p.outcomes))
				}
				want := []string{fmt.Sprintf("L%d", i), fmt.Sprintf("T%d", j)}
				if got := p.outcomes[0].Result; !assert.ObjectsAreEqual(want, got) {
					return fmt.Errorf("loop %d task %d: got %v, want %v", i, j, got, want)
				}
			}
			return nil
		})
	}

	require.NoError(t, g.Wait())
}
