package handoff

import "github.com/Swind/go-poblado/tokenizer"

// Processor is implemented per concrete task type.
//
// OnToken and Transform run on the worker goroutine; OnComplete runs on the
// loop goroutine. State written by OnToken and Transform may be read in
// OnComplete without locks.
type Processor[R any] interface {
	// OnToken is called once per token, in input order, before Transform.
	// It must not block: classify the token and copy what is needed.
	OnToken(tok tokenizer.Token)

	// Transform is the bulk step over everything buffered by OnToken. It
	// runs only if parsing succeeded and may be slow.
	Transform() R

	// OnComplete is called exactly once after the worker has finished,
	// on success and on failure alike. Check outcome.Err before
	// outcome.Result.
	OnComplete(outcome Outcome[R])
}

// ProcessorFuncs adapts plain functions to Processor. Nil fields are no-ops.
type ProcessorFuncs[R any] struct {
	TokenFunc     func(tok tokenizer.Token)
	TransformFunc func() R
	CompleteFunc  func(outcome Outcome[R])
}

var _ Processor[int] = ProcessorFuncs[int]{}

func (p ProcessorFuncs[R]) OnToken(tok tokenizer.Token) {
	if p.TokenFunc != nil {
		p.TokenFunc(tok)
	}
}

func (p ProcessorFuncs[R]) Transform() R {
	if p.TransformFunc != nil {
		return p.TransformFunc()
	}
	var zero R
	return zero
}

func (p ProcessorFuncs[R]) OnComplete(outcome Outcome[R]) {
	if p.CompleteFunc != nil {
		p.CompleteFunc(outcome)
	}
}
