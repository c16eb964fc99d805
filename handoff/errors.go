package handoff

import (
	"fmt"

	"github.com/Swind/go-poblado/tokenizer"
)

// ParseError is the only processing failure a consumer sees: malformed or
// truncated input reported by the tokenizer.
type ParseError struct {
	Message string
	Offset  int64
}

func newParseError(f tokenizer.Failure) *ParseError {
	return &ParseError{Message: f.Message, Offset: f.Offset}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
}

// Detail renders the multi-line report printed by the command line tools.
func (e *ParseError) Detail() string {
	return fmt.Sprintf(
		"A parser error occurred, this could be due to incomplete or invalid JSON.\n"+
			"Error: [ %s ]\n"+
			"The error occurred at file offset: %d",
		e.Message, e.Offset)
}

// Outcome is the result of a task: either Result or Err, never both.
type Outcome[R any] struct {
	Result R
	Err    *ParseError
}

// Failed reports whether the task ended with a ParseError.
func (o Outcome[R]) Failed() bool {
	return o.Err != nil
}

// Get returns the result and a nil error, or the zero result and the
// ParseError.
func (o Outcome[R]) Get() (R, error) {
	if o.Err != nil {
		var zero R
		return zero, o.Err
	}
	return o.Result, nil
}
