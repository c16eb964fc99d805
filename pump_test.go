package poblado

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Swind/go-poblado/core"
	"github.com/Swind/go-poblado/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sink records writes and closes.
type sink struct {
	mu       sync.Mutex
	chunks   []string
	closed   int
	writeErr error
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.chunks = append(s.chunks, string(p))
	return len(p), nil
}

func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func newQuietLoop() *core.EventLoop {
	return core.NewEventLoopWithConfig(&core.EventLoopConfig{Logger: core.NewNoOpLogger()})
}

// TestChunkPump_Chunks verifies input is split into fixed-size chunks and
// dst is closed once
// Main test items:
// 1. Pump a 10-byte reader with a chunk size of 4
// 2. Verify dst sees "0123", "4567" and "89" in order
// 3. Verify dst is closed once
func TestChunkPump_Chunks(t *testing.T) {
	// Arrange
	loop := newQuietLoop()
	dst := &sink{}
	pump := NewChunkPump(loop, strings.NewReader("0123456789"), dst, 4, time.Millisecond)

	// Act
	pump.Start()
	require.NoError(t, loop.Run(context.Background()))

	// Assert
	assert.Equal(t, []string{"0123", "4567", "89"}, dst.chunks)
	assert.Equal(t, 1, dst.closed)
	assert.NoError(t, pump.Err())
}

func TestChunkPump_DefaultSize(t *testing.T) {
	loop := newQuietLoop()
	dst := &sink{}
	input := strings.Repeat("x", DefaultChunkSize+1)
	pump := NewChunkPump(loop, strings.NewReader(input), dst, 0, 0)

	pump.Start()
	require.NoError(t, loop.Run(context.Background()))

	require.Len(t, dst.chunks, 2)
	assert.Len(t, dst.chunks[0], DefaultChunkSize)
	assert.Len(t, dst.chunks[1], 1)
}

func TestChunkPump_EmptyInput(t *testing.T) {
	loop := newQuietLoop()
	dst := &sink{}
	pump := NewChunkPump(loop, &bytes.Buffer{}, dst, 4, 0)

	pump.Start()
	require.NoError(t, loop.Run(context.Background()))

	assert.Empty(t, dst.chunks)
	assert.Equal(t, 1, dst.closed)
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

// TestChunkPump_ReadError verifies a read error is kept and dst still closed
func TestChunkPump_ReadError(t *testing.T) {
	loop := newQuietLoop()
	dst := &sink{}
	boom := errors.New("disk on fire")
	pump := NewChunkPump(loop, &failingReader{data: []byte("ab"), err: boom}, dst, 4, 0)

	pump.Start()
	require.NoError(t, loop.Run(context.Background()))

	assert.ErrorIs(t, pump.Err(), boom)
	assert.Equal(t, []string{"ab"}, dst.chunks)
	assert.Equal(t, 1, dst.closed)
}

// TestChunkPump_StopsAfterWriteError verifies chunks after a rejected write
// are dropped
func TestChunkPump_StopsAfterWriteError(t *testing.T) {
	loop := newQuietLoop()
	dst := &sink{writeErr: tokenizer.ErrStopped}
	pump := NewChunkPump(loop, strings.NewReader("0123456789"), dst, 2, 0)

	pump.Start()
	require.NoError(t, loop.Run(context.Background()))

	assert.True(t, pump.stopped)
	assert.Empty(t, dst.chunks)
	assert.Equal(t, 1, dst.closed)
}

var _ io.WriteCloser = (*sink)(nil)
