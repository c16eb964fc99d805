package tokenizer

import "fmt"

// Kind classifies a token.
type Kind int

const (
	Key Kind = iota
	String
	Number
	Bool
	Null
	ArrayStart
	ArrayEnd
	ObjectStart
	ObjectEnd
)

var kindNames = [...]string{
	Key:         "Key",
	String:      "String",
	Number:      "Number",
	Bool:        "Bool",
	Null:        "Null",
	ArrayStart:  "ArrayStart",
	ArrayEnd:    "ArrayEnd",
	ObjectStart: "ObjectStart",
	ObjectEnd:   "ObjectEnd",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one parsed unit of input.
//
// Value holds the raw text: the unquoted contents for Key and String, the
// literal for Number, "true"/"false", "null", or the delimiter character.
// Value is only valid for the duration of the OnToken call; handlers must
// copy anything they keep.
type Token struct {
	Kind  Kind
	Value []byte
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Kind, t.Value)
}

// Failure describes malformed or truncated input.
type Failure struct {
	// Message is a human-readable description of the problem
	Message string
	// Offset is the byte offset into the input stream at or after the
	// offending token
	Offset int64
}

// Handler receives token events on the worker goroutine.
// Implementations must not block in OnToken.
type Handler interface {
	OnToken(tok Token)
	OnParseComplete()
	OnParseFailure(f Failure)
}
