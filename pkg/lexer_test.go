package maqui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.maqui.dev/internal/test"
)

// simplify strips Loc so test cases don't have to predict byte offsets.
func simplify(toks []Token) []struct {
	Typ   TokenType
	Value string
} {
	out := make([]struct {
		Typ   TokenType
		Value string
	}, len(toks))
	for i, t := range toks {
		out[i] = struct {
			Typ   TokenType
			Value string
		}{t.Typ, t.Value}
	}
	return out
}

func tok(typ TokenType, value string) struct {
	Typ   TokenType
	Value string
} {
	return struct {
		Typ   TokenType
		Value string
	}{typ, value}
}

func TestLexer(t *testing.T) {
	cases := []struct {
		name   string
		data   string
		fail   bool
		expect []struct {
			Typ   TokenType
			Value string
		}
	}{
		{
			name: "hello world def",
			data: "def main ()\n  io.print(`hello, world`)\nend",
			expect: []struct {
				Typ   TokenType
				Value string
			}{
				tok(TokenDef, "def"),
				tok(TokenIdentifier, "main"),
				tok(TokenOpenParen, "("),
				tok(TokenCloseParen, ")"),
				tok(TokenNewline, "\n"),
				tok(TokenIdentifier, "io"),
				tok(TokenDot, "."),
				tok(TokenIdentifier, "print"),
				tok(TokenOpenParen, "("),
				tok(TokenString, "hello, world"),
				tok(TokenCloseParen, ")"),
				tok(TokenNewline, "\n"),
				tok(TokenEnd, "end"),
			},
		},
		{
			name: "line comment collapses to newline",
			data: "# a comment\n",
			expect: []struct {
				Typ   TokenType
				Value string
			}{
				tok(TokenNewline, "# a comment\n"),
			},
		},
		{
			// Identifiers are ASCII-only; a non-ASCII letter is an
			// unexpected character.
			name: "non-ASCII identifier fails",
			data: "únicódeShouldBeVàlid = 1",
			fail: true,
		},
		{
			// The lexer only strips the surrounding quotes; decoding the
			// backslash escape is the parser's job, not the lexer's.
			name: "format string quotes stripped, escapes left raw",
			data: `"line\n"`,
			expect: []struct {
				Typ   TokenType
				Value string
			}{
				tok(TokenFormatString, `line\n`),
			},
		},
		{
			name: "raw string untouched",
			data: "`line\\n`",
			expect: []struct {
				Typ   TokenType
				Value string
			}{
				tok(TokenString, `line\n`),
			},
		},
		{
			name: "integer with underscore separators",
			data: "4_096",
			expect: []struct {
				Typ   TokenType
				Value string
			}{
				tok(TokenInteger, "4_096"),
			},
		},
		{
			name: "operator longest match",
			data: "a >= b > c",
			expect: []struct {
				Typ   TokenType
				Value string
			}{
				tok(TokenIdentifier, "a"),
				tok(TokenGreaterEq, ">="),
				tok(TokenIdentifier, "b"),
				tok(TokenGreater, ">"),
				tok(TokenIdentifier, "c"),
			},
		},
		{
			name: "unclosed string fails",
			data: "`unclosed",
			fail: true,
		},
		{
			name: "unrecognized character fails",
			data: "@",
			fail: true,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			l := NewLexer(strings.NewReader(c.data), "test.mq")
			toks, err := l.Lex()
			if c.fail {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, c.expect, simplify(toks))
		})
	}
}

// Use a package-level variable so the compiler can't optimize the call away.
var benchResult []Token

func benchmarkLexer(size int, b *testing.B) {
	for n := 0; n < b.N; n++ {
		b.StopTimer()
		data := test.GetRandomTokens(size)
		r := strings.NewReader(data)
		l := NewLexer(r, "bench.mq")
		b.StartTimer()

		var err error
		benchResult, err = l.Lex()
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLexer100(b *testing.B)    { benchmarkLexer(100, b) }
func BenchmarkLexer1000(b *testing.B)   { benchmarkLexer(1000, b) }
func BenchmarkLexer10000(b *testing.B)  { benchmarkLexer(10000, b) }
func BenchmarkLexer100000(b *testing.B) { benchmarkLexer(100000, b) }
