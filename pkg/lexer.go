package maqui

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// eof is the sentinel rune used internally once the input stream is
// exhausted.
const eof = rune(0)

// postProcessor transforms a matched lexeme before it becomes a Token's
// Value, e.g. stripping the surrounding quotes off a string literal.
type postProcessor func(lexeme string) string

// nfaNode is a single state in the lexer's automaton. It carries a set of
// labeled outgoing edges and, if terminal, the token kind it emits plus an
// optional post-processor.
type nfaNode struct {
	edges     []nfaEdge
	tokenType *TokenType
	post      postProcessor
}

// nfaEdge is a labeled transition: follow it to target if predicate accepts
// the current character.
type nfaEdge struct {
	target    *nfaNode
	predicate func(r rune) bool
}

func newNode() *nfaNode {
	return &nfaNode{}
}

func (n *nfaNode) on(predicate func(r rune) bool, target *nfaNode) {
	n.edges = append(n.edges, nfaEdge{target: target, predicate: predicate})
}

func (n *nfaNode) terminal(t TokenType) *nfaNode {
	typ := t
	n.tokenType = &typ
	return n
}

func (n *nfaNode) withPost(p postProcessor) *nfaNode {
	n.post = p
	return n
}

// evaluate returns every node reachable from n on the given character.
func (n *nfaNode) evaluate(r rune) []*nfaNode {
	var out []*nfaNode
	for _, e := range n.edges {
		if e.predicate(r) {
			out = append(out, e.target)
		}
	}
	return out
}

func (n *nfaNode) getToken(loc *Location, lexeme string) Token {
	value := lexeme
	if n.post != nil {
		value = n.post(value)
	}

	return Token{Typ: *n.tokenType, Value: value, Loc: loc}
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isWordChar(r rune) bool {
	return isLetter(r) || isDigit(r)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r'
}

func eq(c rune) func(rune) bool {
	return func(r rune) bool { return r == c }
}

func neq(c rune) func(rune) bool {
	return func(r rune) bool { return r != c }
}

func anyRune(r rune) bool { return true }

// root is the single shared entry point of the NFA, built once at package
// initialization time.
var root = buildLexerNFA()

// buildLexerNFA constructs the lexer's table-driven NFA: a whitespace
// self-loop, a newline terminal, a comment sink collapsing to newline, two
// string sub-automata, a direct-map chain builder for keywords and
// operators, and dedicated identifier/integer sub-automata.
func buildLexerNFA() *nfaNode {
	tree := newNode()

	// Whitespace loops back onto the root: no token boundary is crossed.
	tree.on(isSpace, tree)

	// Newline: a single-character terminal.
	newlineNode := newNode().terminal(TokenNewline)
	tree.on(eq('\n'), newlineNode)

	// Line comment: '#' to end of line or EOF, also collapsing to newline.
	commentNode := newNode()
	tree.on(eq('#'), commentNode)
	commentNode.on(neq('\n'), commentNode)
	commentNode.on(eq(eof), newlineNode)
	commentNode.on(eq('\n'), newlineNode)

	// Format strings: "..." with a '\' escape branch. The escape state
	// accepts any following character and returns to the body state.
	fsBody := newNode()
	tree.on(eq('"'), fsBody)
	fsBody.on(func(r rune) bool { return r != '"' && r != '\\' }, fsBody)
	fsEscape := newNode()
	fsBody.on(eq('\\'), fsEscape)
	fsEscape.on(anyRune, fsBody)
	fsEnd := newNode().terminal(TokenFormatString).withPost(stripQuotes)
	fsBody.on(eq('"'), fsEnd)

	// Raw strings: `...` verbatim, no escape processing.
	rsBody := newNode()
	tree.on(eq('`'), rsBody)
	rsBody.on(neq('`'), rsBody)
	rsEnd := newNode().terminal(TokenString).withPost(stripQuotes)
	rsBody.on(eq('`'), rsEnd)

	installDirectMap(tree)

	// Identifiers: a letter/underscore followed by any number of word
	// characters. Keyword chains, installed above, share a prefix with this
	// sub-NFA; the emit rule prefers the more specific (keyword) terminal.
	idStart := newNode().terminal(TokenIdentifier)
	tree.on(isLetter, idStart)
	idRest := newNode().terminal(TokenIdentifier)
	idStart.on(isWordChar, idRest)
	idRest.on(isWordChar, idRest)

	// Integers: digits with optional internal underscore separators. An
	// underscore must be both preceded and followed by a digit.
	intStart := newNode().terminal(TokenInteger)
	tree.on(isDigit, intStart)
	intUnderscore := newNode()
	intStart.on(eq('_'), intUnderscore)
	intEnd := newNode().terminal(TokenInteger)
	intUnderscore.on(isDigit, intEnd)
	intStart.on(isDigit, intEnd)
	intEnd.on(eq('_'), intUnderscore)
	intEnd.on(isDigit, intEnd)

	return tree
}

func stripQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	return s[1 : len(s)-1]
}

// installDirectMap installs every keyword and operator spelling as a linear
// chain of nodes rooted at tree, the terminal node of each chain carrying
// the associated token kind. Entries are walked longest-spelling-first so
// that spellings sharing a prefix (e.g. "<" and "<=", "//" and "/") share
// the prefix's node instead of creating parallel duplicate edges.
func installDirectMap(tree *nfaNode) {
	type entry struct {
		spelling string
		typ      TokenType
	}

	var entries []entry
	for spelling, typ := range operatorTable {
		entries = append(entries, entry{spelling, typ})
	}
	for spelling, typ := range keywordTable {
		entries = append(entries, entry{spelling, typ})
	}

	sort.Slice(entries, func(i, j int) bool {
		return len(entries[i].spelling) > len(entries[j].spelling)
	})

	existing := map[*nfaNode]map[rune]*nfaNode{}

	for _, e := range entries {
		node := tree
		for _, ch := range e.spelling {
			children, ok := existing[node]
			if !ok {
				children = map[rune]*nfaNode{}
				existing[node] = children
			}

			next, ok := children[ch]
			if !ok {
				next = newNode()
				children[ch] = next
				node.on(eq(ch), next)
			}
			node = next
		}
		node.terminal(e.typ)
	}
}

// Lexer implements a table-driven NFA lexer over a rune stream. A Lexer
// should never be reused and is not safe for concurrent use.
type Lexer struct {
	filename string
	reader   *bufio.Reader
	pos      uint64
	start    uint64

	pending     rune
	pendingSize int
	hasPending  bool

	output chan Token
}

// NewLexer creates a lexer reading from r. filename is used only to stamp
// diagnostic Location values.
func NewLexer(r io.Reader, filename string) *Lexer {
	return &Lexer{
		filename: filename,
		reader:   bufio.NewReader(r),
		output:   make(chan Token, 2),
	}
}

// Chan returns the lexer's result channel.
func (l *Lexer) Chan() chan Token {
	return l.output
}

// Get fetches the next available token, blocking until one is ready.
func (l *Lexer) Get() Token {
	return <-l.output
}

// GetFilename returns the name of the file being lexed.
func (l *Lexer) GetFilename() string {
	return l.filename
}

// Do runs the lexer to completion on a goroutine, streaming tokens onto the
// result channel.
func (l *Lexer) Do() {
	for {
		tok, done := l.lexOne()
		l.output <- tok
		if done {
			break
		}
	}
	close(l.output)
}

// Lex runs the lexer to completion synchronously and returns the full token
// slice, or the first lexing error encountered.
func (l *Lexer) Lex() ([]Token, error) {
	var toks []Token
	for {
		tok, done := l.lexOne()
		if tok.Typ == TokenError {
			return nil, &UnexpectedCharacterError{Message: tok.Value, Loc: tok.Loc}
		}
		if tok.Typ != TokenEOF {
			toks = append(toks, tok)
		}
		if done {
			return toks, nil
		}
	}
}

// lexOne drives the NFA from root until a token boundary is found, per the
// execution rules: track a live state set, on an empty successor set emit
// from the current set and rewind one character; on a successor set that
// collapses back to {root} restart accumulation; else accumulate and
// advance.
func (l *Lexer) lexOne() (tok Token, done bool) {
	l.start = l.pos

	current := []*nfaNode{root}
	var lexeme strings.Builder

	for {
		r := l.peekRune()

		next := l.successors(current, r)

		switch {
		case len(next) == 0:
			return l.emit(current, lexeme.String())
		case len(next) == 1 && next[0] == root:
			l.nextRune()
			l.start = l.pos
			lexeme.Reset()
			current = []*nfaNode{root}
			continue
		default:
			if r == eof {
				return l.emit(next, lexeme.String())
			}
			lexeme.WriteRune(r)
			l.nextRune()
			current = next
		}
	}
}

func (l *Lexer) successors(current []*nfaNode, r rune) []*nfaNode {
	seen := map[*nfaNode]bool{}
	var next []*nfaNode
	for _, n := range current {
		for _, m := range n.evaluate(r) {
			if !seen[m] {
				seen[m] = true
				next = append(next, m)
			}
		}
	}
	return next
}

// emit selects a terminal state from the live set and emits its token. If
// none of the live states is terminal, EOF is only valid when the live set
// is exactly the bare root (nothing was ever accumulated); any other
// non-terminal live set at EOF, or no live state at all mid-input, fails
// with UnexpectedCharacter - this is what makes a trailing-underscore
// integer or an unterminated string fail to lex instead of silently
// truncating.
func (l *Lexer) emit(states []*nfaNode, lexeme string) (Token, bool) {
	for _, n := range states {
		if n.tokenType != nil {
			return n.getToken(l.location(), lexeme), false
		}
	}

	for _, n := range states {
		if n == root && l.peekRune() == eof {
			return Token{Typ: TokenEOF}, true
		}
	}

	if l.peekRune() == eof {
		return Token{
			Typ:   TokenError,
			Value: fmt.Sprintf("unexpected end of input in %q", lexeme),
			Loc:   l.location(),
		}, true
	}

	return Token{
		Typ:   TokenError,
		Value: fmt.Sprintf("unexpected character %q", l.peekRune()),
		Loc:   l.location(),
	}, true
}

func (l *Lexer) peekRune() rune {
	if l.hasPending {
		return l.pending
	}

	r, size, err := l.reader.ReadRune()
	if err != nil {
		r = eof
	}

	l.pending = r
	l.pendingSize = size
	l.hasPending = true
	return r
}

func (l *Lexer) nextRune() rune {
	r := l.peekRune()
	l.hasPending = false
	if r != eof {
		l.pos += uint64(l.pendingSize)
	}
	return r
}

func (l *Lexer) location() *Location {
	return &Location{File: l.filename, Start: l.start, End: l.pos}
}
