// Package processors contains ready-made handoff.Processor implementations
// that collect string tokens and upper-case them in a deliberately slow
// bulk step.
package processors
