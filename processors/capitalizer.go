package processors

import (
	"strings"
	"time"

	"github.com/Swind/go-poblado/handoff"
	"github.com/Swind/go-poblado/tokenizer"
)

// Capitalizer collects every Key and String token and upper-cases them in
// input order, sleeping a fixed delay per item to simulate slow processing.
type Capitalizer struct {
	delay  time.Duration
	keep   func(tokenizer.Kind) bool
	done   func(handoff.Outcome[[]string])
	values []string
}

var _ handoff.Processor[[]string] = (*Capitalizer)(nil)

// NewCapitalizer returns a Capitalizer that calls done on the loop
// goroutine when processing completes. done may be nil.
func NewCapitalizer(delay time.Duration, done func(handoff.Outcome[[]string])) *Capitalizer {
	return &Capitalizer{
		delay: delay,
		keep:  func(k tokenizer.Kind) bool { return k == tokenizer.Key || k == tokenizer.String },
		done:  done,
	}
}

// NewKeyExtractor returns a Capitalizer that keeps Key tokens only.
func NewKeyExtractor(delay time.Duration, done func(handoff.Outcome[[]string])) *Capitalizer {
	return &Capitalizer{
		delay: delay,
		keep:  func(k tokenizer.Kind) bool { return k == tokenizer.Key },
		done:  done,
	}
}

func (c *Capitalizer) OnToken(tok tokenizer.Token) {
	if !c.keep(tok.Kind) {
		return
	}
	// string() copies; tok.Value is only valid during this call
	c.values = append(c.values, string(tok.Value))
}

func (c *Capitalizer) Transform() []string {
	out := make([]string, 0, len(c.values))
	for _, v := range c.values {
		out = append(out, strings.ToUpper(v))
		if c.delay > 0 {
			time.Sleep(c.delay)
		}
	}
	return out
}

func (c *Capitalizer) OnComplete(outcome handoff.Outcome[[]string]) {
	if c.done != nil {
		c.done(outcome)
	}
}
