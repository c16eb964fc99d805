package tokenizer

import (
	"errors"
	"io"
	"sync"
)

var (
	// ErrClosed is returned by Write after Close.
	ErrClosed = errors.New("tokenizer: feeder closed")

	// ErrStopped is returned by Write once parsing has terminated, e.g.
	// after malformed input was reported.
	ErrStopped = errors.New("tokenizer: parsing stopped")
)

// chunkQueue is an unbounded, closable FIFO of byte chunks read as a stream.
// Put never waits for the reader; Read blocks until data or end of input.
type chunkQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	chunks  [][]byte
	closed  bool
	stopped bool
	read    int64
}

func newChunkQueue() *chunkQueue {
	q := &chunkQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put appends a copy of p.
func (q *chunkQueue) Put(p []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case q.stopped:
		return ErrStopped
	case q.closed:
		return ErrClosed
	}
	if len(p) == 0 {
		return nil
	}
	q.chunks = append(q.chunks, append([]byte(nil), p...))
	q.cond.Signal()
	return nil
}

// Close marks end of input; queued chunks are still readable.
func (q *chunkQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Stop drops queued chunks and rejects further writes.
func (q *chunkQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.chunks = nil
	q.cond.Broadcast()
}

func (q *chunkQueue) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.chunks) == 0 && !q.closed && !q.stopped {
		q.cond.Wait()
	}
	if len(q.chunks) == 0 {
		return 0, io.EOF
	}

	n := copy(p, q.chunks[0])
	if n == len(q.chunks[0]) {
		q.chunks[0] = nil
		q.chunks = q.chunks[1:]
	} else {
		q.chunks[0] = q.chunks[0][n:]
	}
	q.read += int64(n)
	return n, nil
}

// consumed returns how many bytes the reader has taken so far.
func (q *chunkQueue) consumed() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.read
}
