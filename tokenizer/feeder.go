package tokenizer

import (
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
)

const (
	msgEmptyDocument   = "the document is empty"
	msgUnexpectedEOF   = "unexpected end of input"
	msgRootNotSingular = "the document root must not be followed by other values"
)

// Feeder is the write side of the tokenizer. Write and Close may be called
// from the producer goroutine while the worker goroutine parses.
type Feeder struct {
	handler Handler
	queue   *chunkQueue
	written atomic.Int64
	done    chan struct{}
}

var _ io.WriteCloser = (*Feeder)(nil)

// NewFeeder creates a Feeder and starts its worker goroutine. Every Feeder
// delivers exactly one terminal callback, even if Close is called without
// any Write.
func NewFeeder(handler Handler) *Feeder {
	f := &Feeder{
		handler: handler,
		queue:   newChunkQueue(),
		done:    make(chan struct{}),
	}
	go f.run()
	return f
}

// Write queues a copy of p for the worker and returns immediately.
// It returns ErrClosed after Close and ErrStopped once parsing has failed.
func (f *Feeder) Write(p []byte) (int, error) {
	if err := f.queue.Put(p); err != nil {
		return 0, err
	}
	f.written.Add(int64(len(p)))
	return len(p), nil
}

// Close marks the end of input. It is idempotent and never blocks.
func (f *Feeder) Close() error {
	f.queue.Close()
	return nil
}

// Written returns the number of bytes accepted by Write.
func (f *Feeder) Written() int64 {
	return f.written.Load()
}

// Done is closed after the terminal callback has returned.
func (f *Feeder) Done() <-chan struct{} {
	return f.done
}

func (f *Feeder) run() {
	defer close(f.done)

	failure, ok := f.parse()
	// Nothing after the terminal callback reads input
	f.queue.Stop()
	if !ok {
		f.handler.OnParseFailure(failure)
		return
	}
	f.handler.OnParseComplete()
}

func (f *Feeder) parse() (Failure, bool) {
	dec := json.NewDecoder(f.queue)
	dec.UseNumber()

	var c classifier
	for {
		before := dec.InputOffset()
		raw, err := dec.Token()
		if err != nil {
			return f.failure(dec, &c, err)
		}
		if c.rootDone() {
			return Failure{Message: msgRootNotSingular, Offset: before}, false
		}
		f.handler.OnToken(c.classify(raw))
	}
}

func (f *Feeder) failure(dec *json.Decoder, c *classifier, err error) (Failure, bool) {
	var syntaxErr *json.SyntaxError
	switch {
	case err == io.EOF:
		if !c.seen {
			return Failure{Message: msgEmptyDocument, Offset: 0}, false
		}
		if len(c.stack) > 0 {
			return Failure{Message: msgUnexpectedEOF, Offset: dec.InputOffset()}, false
		}
		return Failure{}, true
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Failure{Message: msgUnexpectedEOF, Offset: f.queue.consumed()}, false
	case errors.As(err, &syntaxErr):
		return Failure{Message: syntaxErr.Error(), Offset: max(syntaxErr.Offset, dec.InputOffset())}, false
	default:
		return Failure{Message: err.Error(), Offset: dec.InputOffset()}, false
	}
}

// =============================================================================
// classifier: tells keys from string values by tracking container nesting
// =============================================================================

type frame struct {
	object    bool
	expectKey bool
}

type classifier struct {
	stack []frame
	seen  bool
}

func (c *classifier) rootDone() bool {
	return c.seen && len(c.stack) == 0
}

func (c *classifier) classify(raw json.Token) Token {
	c.seen = true

	switch v := raw.(type) {
	case json.Delim:
		switch v {
		case '{':
			c.stack = append(c.stack, frame{object: true, expectKey: true})
			return Token{Kind: ObjectStart, Value: []byte{'{'}}
		case '[':
			c.stack = append(c.stack, frame{})
			return Token{Kind: ArrayStart, Value: []byte{'['}}
		case '}':
			c.pop()
			return Token{Kind: ObjectEnd, Value: []byte{'}'}}
		default:
			c.pop()
			return Token{Kind: ArrayEnd, Value: []byte{']'}}
		}
	case string:
		if top := c.top(); top != nil && top.object && top.expectKey {
			top.expectKey = false
			return Token{Kind: Key, Value: []byte(v)}
		}
		c.valueDone()
		return Token{Kind: String, Value: []byte(v)}
	case json.Number:
		c.valueDone()
		return Token{Kind: Number, Value: []byte(v)}
	case bool:
		c.valueDone()
		if v {
			return Token{Kind: Bool, Value: []byte("true")}
		}
		return Token{Kind: Bool, Value: []byte("false")}
	default:
		c.valueDone()
		return Token{Kind: Null, Value: []byte("null")}
	}
}

func (c *classifier) top() *frame {
	if len(c.stack) == 0 {
		return nil
	}
	return &c.stack[len(c.stack)-1]
}

func (c *classifier) pop() {
	if len(c.stack) > 0 {
		c.stack = c.stack[:len(c.stack)-1]
	}
	c.valueDone()
}

// valueDone records that a member value finished, so the next string in the
// enclosing object is a key.
func (c *classifier) valueDone() {
	if top := c.top(); top != nil && top.object {
		top.expectKey = true
	}
}
