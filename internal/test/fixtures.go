// Package test provides fixture generators shared by the pkg test suite.
// An earlier revision of this generator only covered a four-token toy
// grammar (func/string/paren/comment); this covers every lexical category
// of the full language so BenchmarkLexer exercises the whole NFA, not a
// sliver of it.
package test

import (
	"math/rand"
	"strings"
)

// validTokens lists one example spelling per lexical category recognized by
// the lexer, separated by ';' so GetRandomTokens can pick uniformly among
// them.
const validTokens = "def;end;class;new;as;module;loop;while;break;self;if;elif;else;return;import;const;true;false;" +
	"foo;bar;baz;qux;Int;Bool;String;Real;" +
	"(;);:;->;,;=;.;" +
	"+;-;*;//;/;%;" +
	"==;!=;<=;<;>=;>;!;&&;||;" +
	"`a raw string`;\"a format string\\n\";" +
	"123;4_096;0;" +
	"#a trailing comment\n;\n"

// GetRandomTokens returns size randomly chosen token spellings joined by a
// single space.
func GetRandomTokens(size int) string {
	return GetRandomTokensWithSep(size, " ")
}

// GetRandomTokensWithSep is GetRandomTokens with a caller-chosen separator,
// letting a benchmark probe the lexer's whitespace-collapsing behavior.
func GetRandomTokensWithSep(size int, sep string) string {
	valid := strings.Split(validTokens, ";")

	var toks []string
	for len(toks) < size {
		toks = append(toks, valid[rand.Intn(len(valid))])
	}

	return strings.Join(toks, sep)
}
