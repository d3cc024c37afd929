package maqui

import (
	"fmt"
	"strings"
)

// CompileError is the common interface implemented by every diagnostic
// kind. All are fatal to the compilation unit they were raised against.
type CompileError interface {
	error
	// Tokens returns every token range implicated in the diagnostic.
	Tokens() []*Location
}

// frame is a contextual annotation attached as a diagnostic propagates
// outward, carrying an outer message and/or a node/token reference so the
// user-visible chain runs from originating cause to outer context.
type frame struct {
	message string
	loc     *Location
}

// wrappedError is embedded by every concrete error kind to provide frame
// accumulation without repeating the bookkeeping per type.
type wrappedError struct {
	frames []frame
}

// Wrap appends a contextual frame and returns the receiver, so frames can
// be chained: `err.Wrap("while verifying call", tok.Loc).Wrap(...)`.
func (w *wrappedError) Wrap(message string, loc *Location) *wrappedError {
	w.frames = append(w.frames, frame{message: message, loc: loc})
	return w
}

func (w *wrappedError) chain() string {
	var b strings.Builder
	for _, f := range w.frames {
		if f.message == "" {
			continue
		}
		fmt.Fprintf(&b, "\n\t%s at %s", f.message, f.loc)
	}
	return b.String()
}

func (w *wrappedError) Tokens() []*Location {
	var locs []*Location
	for _, f := range w.frames {
		if f.loc != nil {
			locs = append(locs, f.loc)
		}
	}
	return locs
}

// UnexpectedCharacterError is raised by the lexer when no NFA transition
// applies from the live state set.
type UnexpectedCharacterError struct {
	wrappedError
	Message string
	Loc     *Location
}

func (e *UnexpectedCharacterError) Error() string {
	return fmt.Sprintf("unexpected character: %s (at %s)%s", e.Message, e.Loc, e.chain())
}

func (e *UnexpectedCharacterError) Tokens() []*Location {
	if e.Loc != nil {
		return append([]*Location{e.Loc}, e.wrappedError.Tokens()...)
	}
	return e.wrappedError.Tokens()
}

// SyntaxError is raised by the parser on an unexpected token or unterminated
// construct.
type SyntaxError struct {
	wrappedError
	Message string
	Toks    []Token
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error: %s%s", e.Message, e.chain())
}

func (e *SyntaxError) Tokens() []*Location {
	var locs []*Location
	for _, t := range e.Toks {
		if t.Loc != nil {
			locs = append(locs, t.Loc)
		}
	}
	return append(locs, e.wrappedError.Tokens()...)
}

// MissingReferenceError is raised by the resolver when a name has no match
// in the scope chain.
type MissingReferenceError struct {
	wrappedError
	Name string
	Loc  *Location
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("missing reference: %s%s", e.Name, e.chain())
}

func (e *MissingReferenceError) Tokens() []*Location {
	if e.Loc != nil {
		return append([]*Location{e.Loc}, e.wrappedError.Tokens()...)
	}
	return e.wrappedError.Tokens()
}

// AmbiguousReferenceError reports a name that resolves to more than one
// candidate binding.
type AmbiguousReferenceError struct {
	wrappedError
	Name       string
	Candidates []*Location
}

func (e *AmbiguousReferenceError) Error() string {
	return fmt.Sprintf("ambiguous reference: %s (%d candidates)%s", e.Name, len(e.Candidates), e.chain())
}

func (e *AmbiguousReferenceError) Tokens() []*Location {
	return append(append([]*Location{}, e.Candidates...), e.wrappedError.Tokens()...)
}

// TypeError is raised by the verifier on an incompatibility at assignment,
// return, or call.
type TypeError struct {
	wrappedError
	Message string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type error: %s%s", e.Message, e.chain())
}

// AmbiguousOverloadError is raised when a Method call matches more than one
// overload outside of a dependent scope.
type AmbiguousOverloadError struct {
	wrappedError
	Method string
}

func (e *AmbiguousOverloadError) Error() string {
	return fmt.Sprintf("ambiguous overload for %s%s", e.Method, e.chain())
}

// SemanticError is raised on a flow-sensitive rule violation - a missing
// return on some path, a break outside a loop, a return inside a
// constructor, and similar.
type SemanticError struct {
	wrappedError
	Message string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error: %s%s", e.Message, e.chain())
}

// InternalError is reserved for states the verifier considers impossible.
type InternalError struct {
	wrappedError
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s%s", e.Message, e.chain())
}
