// Package tokenizer turns JSON bytes that arrive in arbitrary chunks into a
// sequence of typed token events.
//
// A Feeder owns one worker goroutine. The producer calls Write with chunks
// of any size and Close at end of input; neither call blocks on parsing.
// The worker invokes the Handler callbacks in input order:
//
//	OnToken        once per token
//	OnParseComplete or OnParseFailure, exactly once, last
//
// Chunk boundaries are invisible to the Handler: a key or string split
// across two writes is delivered as a single token.
package tokenizer
