package maqui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessagesStartWithKindPrefix(t *testing.T) {
	cases := []struct {
		name string
		err  CompileError
		want string
	}{
		{
			name: "syntax error",
			err:  &SyntaxError{Message: "unexpected token"},
			want: "syntax error: unexpected token",
		},
		{
			name: "missing reference",
			err:  &MissingReferenceError{Name: "foo"},
			want: "missing reference: foo",
		},
		{
			name: "ambiguous reference",
			err:  &AmbiguousReferenceError{Name: "foo", Candidates: []*Location{{Start: 1}, {Start: 10}}},
			want: "ambiguous reference: foo (2 candidates)",
		},
		{
			name: "type error",
			err:  &TypeError{Message: "Int is not compatible with Bool"},
			want: "type error: Int is not compatible with Bool",
		},
		{
			name: "ambiguous overload",
			err:  &AmbiguousOverloadError{Method: "f"},
			want: "ambiguous overload for f",
		},
		{
			name: "semantic error",
			err:  &SemanticError{Message: "function f does not return on all code paths"},
			want: "semantic error: function f does not return on all code paths",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(c.err.Error(), c.want))
		})
	}
}

func TestWrapAppendsContextToErrorChain(t *testing.T) {
	err := &TypeError{Message: "base failure"}
	err.Wrap("while verifying call", &Location{Start: 4, End: 6})

	msg := err.Error()
	assert.Contains(t, msg, "base failure")
	assert.Contains(t, msg, "while verifying call")
}

func TestSyntaxErrorTokensIncludesDeclaredTokens(t *testing.T) {
	loc := &Location{Start: 3, End: 4}
	err := &SyntaxError{Message: "bad", Toks: []Token{{Typ: TokenIdentifier, Value: "x", Loc: loc}}}

	toks := err.Tokens()
	assert.Len(t, toks, 1)
	assert.Equal(t, loc, toks[0])
}
