package poblado

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Swind/go-poblado/core"
	"github.com/Swind/go-poblado/tokenizer"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 64

// ChunkPump reads src in fixed-size chunks on its own goroutine and hands
// each chunk to the loop goroutine, which writes it to dst. At end of input
// dst is closed on the loop goroutine. The pump holds a loop Ref until the
// final chunk has been posted.
type ChunkPump struct {
	loop     *core.EventLoop
	src      io.Reader
	dst      io.WriteCloser
	size     int
	interval time.Duration
	logger   core.Logger

	// loop goroutine only
	readErr error
	stopped bool
}

// NewChunkPump creates a pump. size <= 0 uses DefaultChunkSize; interval is
// an optional pause between chunks.
func NewChunkPump(loop *core.EventLoop, src io.Reader, dst io.WriteCloser, size int, interval time.Duration) *ChunkPump {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &ChunkPump{
		loop:     loop,
		src:      src,
		dst:      dst,
		size:     size,
		interval: interval,
		logger:   core.NewNoOpLogger(),
	}
}

// SetLogger replaces the pump's logger.
func (p *ChunkPump) SetLogger(logger core.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Start launches the reader goroutine.
func (p *ChunkPump) Start() {
	release := p.loop.Ref()
	go p.run(release)
}

// Err returns the read error that ended the pump, if any. Loop goroutine
// only, or after Run has returned.
func (p *ChunkPump) Err() error {
	return p.readErr
}

func (p *ChunkPump) run(release func()) {
	defer release()

	for {
		buf := make([]byte, p.size)
		n, err := io.ReadFull(p.src, buf)
		if n > 0 {
			chunk := buf[:n]
			p.loop.PostTask(func(ctx context.Context) {
				p.write(chunk)
			})
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = nil
			}
			p.loop.PostTask(func(ctx context.Context) {
				p.finish(err)
			})
			return
		}
		if p.interval > 0 {
			time.Sleep(p.interval)
		}
	}
}

func (p *ChunkPump) write(chunk []byte) {
	if p.stopped {
		return
	}
	if _, err := p.dst.Write(chunk); err != nil {
		// The parser already reported malformed input; drop the rest
		p.stopped = true
		if !errors.Is(err, tokenizer.ErrStopped) {
			p.logger.Warn("chunk write failed", core.F("error", err))
		}
	}
}

func (p *ChunkPump) finish(err error) {
	if err != nil {
		p.readErr = err
		p.logger.Error("reading input failed", core.F("error", err))
	}
	if cerr := p.dst.Close(); cerr != nil {
		p.logger.Warn("closing input failed", core.F("error", cerr))
	}
}
