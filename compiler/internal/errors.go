package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrLexical is returned by Compile when the tokenizer found unrecognized characters.
	ErrLexical = errors.New("lexical errors")
	// ErrCompilation is returned by Compile when the parser reported at least one error.
	ErrCompilation = errors.New("compilation errors")
)

// Span locates a piece of source: byte offsets [Start, End) and the line Start is on.
type Span struct {
	Start int
	End   int
	Line  int
}

func (s Span) Length() int {
	if s.End <= s.Start {
		return 1
	}
	return s.End - s.Start
}

// To returns the span covering s up to the end of other.
func (s Span) To(other Span) Span {
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

// SemanticError is a user facing error tied to a piece of source.
type SemanticError struct {
	Span Span
	Msg  string
}

func (e *SemanticError) Error() string {
	return e.Msg
}

func makeSemanticError(span Span, format string, args ...interface{}) *SemanticError {
	return &SemanticError{Span: span, Msg: fmt.Sprintf(format, args...)}
}

// InternalError is raised, as a panic, on a state the compiler should never reach, such as
// an AST the code generator does not know how to lower. It always means a bug.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal compiler error: " + e.Msg
}

func internalError(format string, args ...interface{}) {
	panic(&InternalError{Msg: fmt.Sprintf(format, args...)})
}

// SyntaxError is a grammar mismatch. Productions return it upwards until a recovery point
// skips the offending tokens.
type SyntaxError struct {
	Span Span
	Msg  string
}

func (e *SyntaxError) Error() string {
	return e.Msg
}
