package maqui

import (
	"fmt"
	"io"
	"strings"
)

// This file implements a recursive-descent, precedence-climbing parser: the
// three-tier binary operator precedence table and unary operator set
// already live in token.go as binaryOperationTiers/unaryOperationTokens, so
// this file only walks them. Assignment detection needs up to six tokens of
// lookahead, so the Parser holds the full token slice produced by
// Lexer.Lex with a cursor rather than streaming single-token lookahead off
// a channel - simpler, and still a single-threaded, synchronous data flow.

// Parser consumes a token slice with bounded lookahead and emits unverified
// IR. A Parser should never be reused.
type Parser struct {
	tokens   []Token
	pos      int
	filename string
}

// NewParser builds a parser over tokens, which should come from a single
// Lexer.Lex call.
func NewParser(tokens []Token, filename string) *Parser {
	return &Parser{tokens: tokens, filename: filename}
}

// ParseModule parses the entire token stream as a top-level compilation
// unit, the non-inline form of parseModule.
func (p *Parser) ParseModule() (*Module, error) {
	n, err := p.parseModule(false)
	if err != nil {
		return nil, err
	}
	m, ok := n.(*Module)
	if !ok {
		return nil, &InternalError{Message: "parseModule did not return a Module"}
	}
	return m, nil
}

// ParseSource lexes r and parses the result as a compilation unit in one
// step, the entry point compiler.go drives per source file.
func ParseSource(r io.Reader, filename string) (*Module, error) {
	lexer := NewLexer(r, filename)
	toks, err := lexer.Lex()
	if err != nil {
		return nil, err
	}
	return NewParser(toks, filename).ParseModule()
}

//
// Low-level token cursor
//

// isBlankNewline reports whether t is a plain structural newline rather
// than one carrying collapsed comment text (the lexer emits both as
// TokenNewline; a comment's Value starts with "#", a blank line's does
// not).
func isBlankNewline(t Token) bool {
	return t.Typ == TokenNewline && !strings.HasPrefix(t.Value, "#")
}

// skipBlanks advances past any run of blank newlines sitting at the
// cursor, so peek/next never have to special-case them individually.
func (p *Parser) skipBlanks() {
	for p.pos < len(p.tokens) && isBlankNewline(p.tokens[p.pos]) {
		p.pos++
	}
}

// peek returns the nth significant token ahead (1-indexed, non-consuming),
// or a TokenEOF sentinel past the end of the stream.
func (p *Parser) peek(n int) Token {
	p.skipBlanks()
	idx := p.pos
	count := 0
	for idx < len(p.tokens) {
		if isBlankNewline(p.tokens[idx]) {
			idx++
			continue
		}
		count++
		if count == n {
			return p.tokens[idx]
		}
		idx++
	}
	return Token{Typ: TokenEOF}
}

// next consumes and returns the next significant token.
func (p *Parser) next() Token {
	p.skipBlanks()
	if p.pos >= len(p.tokens) {
		return Token{Typ: TokenEOF}
	}
	t := p.tokens[p.pos]
	p.pos++
	return t
}

// atEOF reports whether no significant tokens remain.
func (p *Parser) atEOF() bool {
	return p.peek(1).Typ == TokenEOF
}

// expect consumes the next token, failing with SyntaxError if its kind
// does not match want.
func (p *Parser) expect(want TokenType) (Token, error) {
	tok := p.next()
	if tok.Typ == TokenEOF {
		return tok, &SyntaxError{Message: fmt.Sprintf("expected %v before EOF", want)}
	}
	if tok.Typ != want {
		return tok, p.unexpected(tok)
	}
	return tok, nil
}

func (p *Parser) unexpected(tok Token) error {
	return &SyntaxError{Message: fmt.Sprintf("unexpected token: %v", tok), Toks: []Token{tok}}
}

// skipComments discards any inline comment tokens at the cursor - a
// comment interleaved between an operand and an operator is simply
// dropped, not turned into a Comment node.
func (p *Parser) skipComments() {
	for p.peek(1).Typ == TokenNewline {
		p.next()
	}
}

// asType asserts that n (the result of parsing a value in type position)
// implements Type, failing with SyntaxError otherwise.
func asType(n Node, toks []Token) (Type, error) {
	if n == nil {
		return nil, nil
	}
	t, ok := n.(Type)
	if !ok {
		return nil, &SyntaxError{Message: "expected a type expression", Toks: toks}
	}
	return t, nil
}

// decodeEscapes processes the standard backslash escapes of a format
// string's body; a raw string's body passes through untouched.
func decodeEscapes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte('\\')
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// addChild binds value under its own name into children/order: if a
// Method of the same name is already bound, the new overload set is
// merged into it rather than replacing it; any other collision is a plain
// overwrite. Non-Named values are ignored -
// callers only ever pass the Named result of parseMethod/parseClass/
// parseModule/parseVariable.
func addChild(children map[string]Node, order *[]string, value Node) {
	named, ok := value.(Named)
	if !ok {
		return
	}
	name := named.Name()

	if existing, found := children[name]; found {
		if existingMethod, ok := existing.(*Method); ok {
			if newMethod, ok2 := value.(*Method); ok2 {
				existingMethod.Assimilate(newMethod)
				return
			}
		}
		children[name] = value
		return
	}

	*order = append(*order, name)
	children[name] = value
}

//
// Top-level / lines
//

// parseModule parses a compilation unit (inline=false) or a nested
// `module NAME ... end` block (inline=true).
func (p *Parser) parseModule(inline bool) (Node, error) {
	var tokens []Token
	var name string

	if inline {
		tokens = []Token{p.next()}
		nameTok, err := p.expect(TokenIdentifier)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, nameTok)
		name = nameTok.Value
	} else {
		name = "main"
	}

	order := []string{}
	children := map[string]Node{}
	var instructions []Node

	for {
		if inline {
			tok := p.peek(1)
			if tok.Typ == TokenEOF {
				return nil, &SyntaxError{Message: "expected `end` before EOF for module", Toks: tokens}
			}
			if tok.Typ == TokenEnd {
				tokens = append(tokens, p.next())
				break
			}
		} else if p.atEOF() {
			break
		}

		value, err := p.parseLine()
		if err != nil {
			return nil, err
		}
		if value == nil {
			break
		}

		if _, ok := value.(Named); ok {
			addChild(children, &order, value)
		} else {
			instructions = append(instructions, value)
		}
	}

	childNodes := make([]Node, 0, len(order))
	for _, n := range order {
		childNodes = append(childNodes, children[n])
	}

	main := NewFunction("main", nil, instructions, nil)
	return NewModule(name, childNodes, main), nil
}

// parseLine parses a single line, dispatching on its first significant
// token. Returns (nil, nil) at end of input.
func (p *Parser) parseLine() (Node, error) {
	tok := p.peek(1)
	if tok.Typ == TokenEOF {
		return nil, nil
	}

	switch tok.Typ {
	case TokenNewline:
		return p.parseComment()
	case TokenReturn:
		return p.parseReturn()
	case TokenImport:
		return p.parseImport()
	case TokenIf:
		return p.parseBranch()
	case TokenWhile:
		return p.parseWhile()
	case TokenLoop:
		return p.parseLoop()
	case TokenBreak:
		return p.parseBreak()
	case TokenPragma:
		return nil, &SyntaxError{Message: "pragma directives are not implemented", Toks: []Token{tok}}
	case TokenFor:
		return nil, &SyntaxError{Message: "for loops are not implemented", Toks: []Token{tok}}
	case TokenIdentifier, TokenConst:
		// The assignment token must appear within the first six tokens:
		// shortest is `foo =`, longest `const foo:Bar =`.
		for i := 1; i <= 6; i++ {
			t := p.peek(i)
			if t.Typ == TokenEOF {
				break
			}
			if t.Typ == TokenAssign {
				return p.parseAssignment()
			}
		}
	case TokenSelf:
		// `self.field = value` is parsed as an assignment whose target is
		// the bare name `field` (see parseAssignmentTarget); any other use
		// of self falls through to parseValue as an ordinary read.
		if p.peek(2).Typ == TokenDot && p.peek(3).Typ == TokenIdentifier && p.peek(4).Typ == TokenAssign {
			return p.parseAssignment()
		}
	}
	return p.parseValue()
}

func (p *Parser) parseComment() (Node, error) {
	tok := p.next()
	return NewComment(strings.TrimPrefix(tok.Value, "#"), []Token{tok}), nil
}

//
// Block helpers
//

// parseBlockUntilEnd parses lines until `end`, appending consumed tokens
// (including the terminating `end`) onto *tokens for diagnostics.
func (p *Parser) parseBlockUntilEnd(tokens *[]Token, what string) ([]Node, error) {
	var instrs []Node
	for {
		tok := p.peek(1)
		if tok.Typ == TokenEOF {
			return nil, &SyntaxError{Message: fmt.Sprintf("expected `end` before EOF for %s", what), Toks: *tokens}
		}
		if tok.Typ == TokenEnd {
			*tokens = append(*tokens, p.next())
			return instrs, nil
		}
		line, err := p.parseLine()
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, line)
	}
}

// parseBlockUntilEndOrElse is parseBlockUntilEnd's variant for an if
// branch's true-arm, which may terminate on either `end` or `else`.
func (p *Parser) parseBlockUntilEndOrElse(tokens *[]Token, what string) (instrs []Node, sawElse bool, err error) {
	for {
		tok := p.peek(1)
		if tok.Typ == TokenEOF {
			return nil, false, &SyntaxError{Message: fmt.Sprintf("expected `end` or `else` before EOF for %s", what), Toks: *tokens}
		}
		if tok.Typ == TokenEnd {
			*tokens = append(*tokens, p.next())
			return instrs, false, nil
		}
		if tok.Typ == TokenElse {
			*tokens = append(*tokens, p.next())
			return instrs, true, nil
		}
		line, lerr := p.parseLine()
		if lerr != nil {
			return nil, false, lerr
		}
		instrs = append(instrs, line)
	}
}

//
// Control flow
//

func (p *Parser) parseWhile() (Node, error) {
	tokens := []Token{p.next()}
	condition, err := p.parseValue()
	if err != nil {
		return nil, err
	}

	instructions, err := p.parseBlockUntilEnd(&tokens, "while loop")
	if err != nil {
		return nil, err
	}

	branch := NewBranch(condition, nil, []Node{NewBreak(tokens)}, tokens)
	body := append([]Node{branch}, instructions...)
	return NewLoop(body, tokens), nil
}

func (p *Parser) parseLoop() (Node, error) {
	tokens := []Token{p.next()}
	instructions, err := p.parseBlockUntilEnd(&tokens, "loop")
	if err != nil {
		return nil, err
	}
	return NewLoop(instructions, tokens), nil
}

func (p *Parser) parseBreak() (Node, error) {
	tok := p.next()
	return NewBreak([]Token{tok}), nil
}

func (p *Parser) parseBranch() (Node, error) {
	tokens := []Token{p.next()}
	condition, err := p.parseValue()
	if err != nil {
		return nil, err
	}

	trueInstrs, sawElse, err := p.parseBlockUntilEndOrElse(&tokens, "if branch")
	if err != nil {
		return nil, err
	}
	if !sawElse {
		return NewBranch(condition, trueInstrs, nil, tokens), nil
	}

	falseInstrs, err := p.parseBlockUntilEnd(&tokens, "else branch")
	if err != nil {
		return nil, err
	}
	return NewBranch(condition, trueInstrs, falseInstrs, tokens), nil
}

//
// Expressions
//

func (p *Parser) parseValue() (Node, error) {
	first, err := p.parseUnaryOperation()
	if err != nil {
		return nil, err
	}

	values := []Node{first}
	var operations []Token

	for {
		p.skipComments()
		tok := p.peek(1)
		if !isBinaryOperationToken(tok.Typ) {
			break
		}
		operations = append(operations, p.next())
		v, err := p.parseUnaryOperation()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	return parseBinaryOperation(values, operations, 0)
}

// parseBinaryOperation folds a flat list of operand values and the binary
// operators between them into a left-associative tree of method calls,
// walking binaryOperationTiers from loosest to tightest precedence.
func parseBinaryOperation(values []Node, operations []Token, tierIndex int) (Node, error) {
	if len(values) == 1 {
		return values[0], nil
	}
	if tierIndex == len(binaryOperationTiers) {
		return nil, &InternalError{Message: "unparsed binary operation"}
	}
	tier := binaryOperationTiers[tierIndex]
	inTier := func(t TokenType) bool {
		for _, tt := range tier {
			if tt == t {
				return true
			}
		}
		return false
	}

	var operationValues []Node
	var operationOperations []Token

	previous := 0
	for index, op := range operations {
		if inTier(op.Typ) {
			operationOperations = append(operationOperations, op)
			sub, err := parseBinaryOperation(values[previous:index+1], operations[previous:index], tierIndex+1)
			if err != nil {
				return nil, err
			}
			operationValues = append(operationValues, sub)
			previous = index + 1
		}
	}
	sub, err := parseBinaryOperation(values[previous:], operations[previous:], tierIndex+1)
	if err != nil {
		return nil, err
	}
	operationValues = append(operationValues, sub)

	lhs := operationValues[0]
	for i, op := range operationOperations {
		rhs := operationValues[i+1]
		lhs = NewCall(NewAttribute(lhs, op.Value, []Token{op}), []Node{rhs}, []Token{op})
	}
	return lhs, nil
}

// parseUnaryOperation collects prefix unary operators, parses a single
// value, then applies postfix call/attribute/cast constructs.
func (p *Parser) parseUnaryOperation() (Node, error) {
	var prefixOps []Token
	for {
		p.skipComments()
		tok := p.peek(1)
		if !unaryOperationTokens[tok.Typ] {
			break
		}
		prefixOps = append(prefixOps, p.next())
	}

	value, err := p.parseSingleValue()
	if err != nil {
		return nil, err
	}

	// Apply innermost-first: the operator closest to the value binds
	// tightest, so walk the collected prefix tokens in reverse.
	for i := len(prefixOps) - 1; i >= 0; i-- {
		op := prefixOps[i]
		value = NewCall(NewAttribute(value, op.Value, []Token{op}), nil, []Token{op})
	}

	for {
		p.skipComments()
		tok := p.peek(1)
		switch tok.Typ {
		case TokenOpenParen:
			value, err = p.parseCall(value)
		case TokenDot:
			value, err = p.parseAttribute(value)
		case TokenAs:
			value, err = p.parseCast(value)
		default:
			return value, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseSingleValue() (Node, error) {
	p.skipComments()
	tok := p.peek(1)
	if tok.Typ == TokenEOF {
		return nil, &SyntaxError{Message: "expected value before EOF"}
	}

	switch tok.Typ {
	case TokenDef:
		return p.parseMethod(nil)
	case TokenClass:
		return p.parseClass()
	case TokenModule:
		return p.parseModule(true)
	case TokenIdentifier, TokenSelf:
		t := p.next()
		return NewReference(t.Value, []Token{t}), nil
	case TokenInteger, TokenDot:
		return p.parseNumber()
	case TokenTrue, TokenFalse:
		return p.parseConstant()
	case TokenString:
		t := p.next()
		return NewLiteral(t.Value, NewReference("String", []Token{t}), []Token{t}), nil
	case TokenFormatString:
		t := p.next()
		return NewLiteral(decodeEscapes(t.Value), NewReference("String", []Token{t}), []Token{t}), nil
	case TokenOpenParen:
		return p.parseGrouping()
	}

	return nil, p.unexpected(tok)
}

func (p *Parser) parseGrouping() (Node, error) {
	p.next()
	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenCloseParen); err != nil {
		return nil, err
	}
	return value, nil
}

func (p *Parser) parseConstant() (Node, error) {
	tok := p.next()
	switch tok.Typ {
	case TokenTrue:
		return NewLiteral("true", NewReference("Bool", []Token{tok}), []Token{tok}), nil
	case TokenFalse:
		return NewLiteral("false", NewReference("Bool", []Token{tok}), []Token{tok}), nil
	default:
		return nil, &InternalError{Message: "invalid constant token type"}
	}
}

// parseNumber handles the three Real shapes (`.5`, `3.`, `3.14`) besides
// plain integers - the lexer only ever produces bare integer and dot
// tokens; the parser glues them together.
func (p *Parser) parseNumber() (Node, error) {
	first := p.next()
	toks := []Token{first}

	if first.Typ == TokenDot {
		tok := p.next()
		toks = append(toks, tok)
		if tok.Typ != TokenInteger {
			return nil, p.unexpected(tok)
		}
		data := "." + strings.ReplaceAll(tok.Value, "_", "")
		return NewLiteral(data, NewReference("Real", toks), toks), nil
	}

	next := p.peek(1)
	if next.Typ == TokenDot {
		toks = append(toks, p.next())
		data := strings.ReplaceAll(first.Value, "_", "") + "."

		if p.peek(1).Typ != TokenInteger {
			return NewLiteral(data, NewReference("Real", toks), toks), nil
		}
		tok := p.next()
		toks = append(toks, tok)
		if tok.Typ != TokenInteger {
			return nil, p.unexpected(tok)
		}
		data += strings.ReplaceAll(tok.Value, "_", "")
		return NewLiteral(data, NewReference("Real", toks), toks), nil
	}

	data := strings.ReplaceAll(first.Value, "_", "")
	return NewLiteral(data, NewReference("Int", toks), toks), nil
}

//
// Methods, classes
//

// parseMethod parses one `def` declaration in any of its four shapes
// (named method, binary operator, unary operator, cast). selfType is nil
// at module scope; inside a class body it is the class's shared
// forward-declared ClassType, and gets prepended as an explicit first
// argument to every shape rather than captured implicitly by closure
// (the simplification DESIGN.md records).
func (p *Parser) parseMethod(selfType Type) (Node, error) {
	tokens := []Token{p.next()}

	var name string
	var arguments []*Variable
	var defaults []Node
	var returnType Type

	if p.peek(2).Typ != TokenAs {
		switch {
		case p.peek(1).Typ == TokenSelf:
			tokens = append(tokens, p.next())

			opTok := p.next()
			if !isBinaryOperationToken(opTok.Typ) {
				return nil, &SyntaxError{Message: fmt.Sprintf("%v is not a valid operator", opTok), Toks: []Token{opTok}}
			}
			name = opTok.Value
			tokens = append(tokens, opTok)

			rhs, err := p.parseVariable()
			if err != nil {
				return nil, err
			}
			arguments = []*Variable{rhs}
			defaults = []Node{nil}

		case p.peek(2).Typ == TokenSelf:
			opTok := p.next()
			if !unaryOperationTokens[opTok.Typ] {
				return nil, &SyntaxError{Message: fmt.Sprintf("%v is not a valid operator", opTok), Toks: []Token{opTok}}
			}
			name = opTok.Value
			tokens = append(tokens, opTok, p.next())

		default:
			nameTok, err := p.expect(TokenIdentifier)
			if err != nil {
				return nil, err
			}
			name = nameTok.Value
			tokens = append(tokens, nameTok)

			arguments, defaults, err = p.parseMethodArguments()
			if err != nil {
				return nil, err
			}
		}

		rt, err := p.parseTypeSig(TokenArrow)
		if err != nil {
			return nil, err
		}
		returnType, err = asType(rt, tokens)
		if err != nil {
			return nil, err
		}
	} else {
		selfTok, err := p.expect(TokenSelf)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, selfTok)

		if p.peek(1).Typ != TokenAs {
			return nil, &SyntaxError{Message: "implicit casts are not supported", Toks: tokens}
		}
		tokens = append(tokens, p.next())
		name = "as"

		rt, err := p.parseSingleValue()
		if err != nil {
			return nil, err
		}
		returnType, err = asType(rt, tokens)
		if err != nil {
			return nil, err
		}
	}

	if selfType != nil {
		arguments = append([]*Variable{NewVariable("self", selfType)}, arguments...)
		defaults = append([]Node{nil}, defaults...)
	}

	return p.parseMethodBody(name, arguments, defaults, returnType, tokens)
}

// parseConstructor parses one `new(args) ... end` block. A constructor
// never takes an implicit self: it produces the instance, it is not
// handed one.
func (p *Parser) parseConstructor() (*Method, error) {
	tokens := []Token{p.next()}
	arguments, defaults, err := p.parseMethodArguments()
	if err != nil {
		return nil, err
	}
	return p.parseMethodBody("", arguments, defaults, nil, tokens)
}

// parseMethodBody parses the instruction list up to `end`, then
// synthesizes one overload per defaulted argument: each synthesized
// overload's body is a single Call to the next-longer overload with the
// trailing default value substituted, right to left.
func (p *Parser) parseMethodBody(name string, arguments []*Variable, defaults []Node, returnType Type, tokens []Token) (*Method, error) {
	instructions, err := p.parseBlockUntilEnd(&tokens, "method")
	if err != nil {
		return nil, err
	}

	overloads := []Node{NewFunction(name, arguments, instructions, returnType)}

	inDefaults := true
	for i := len(defaults) - 1; i >= 0; i-- {
		value := defaults[i]
		if !inDefaults {
			if value != nil {
				return nil, &SyntaxError{Message: "default arguments must form a contiguous trailing suffix", Toks: tokens}
			}
			continue
		}
		if value == nil {
			inDefaults = false
			continue
		}

		args := make([]*Variable, i)
		for j := 0; j < i; j++ {
			args[j] = arguments[j].Copy().(*Variable)
		}
		callArgs := make([]Node, 0, i+1)
		for _, a := range args {
			callArgs = append(callArgs, a)
		}
		callArgs = append(callArgs, value)

		prev := overloads[len(overloads)-1]
		body := []Node{NewCall(prev, callArgs, tokens)}
		forward := NewFunction(name, args, body, returnType)
		// The forwarding body is a bare Call with no Return, so the default
		// every-path-returns check does not apply to it.
		forward.verifySelfHook = func() error { return nil }
		overloads = append(overloads, forward)
	}

	return NewMethod(name, overloads), nil
}

func (p *Parser) parseMethodArguments() ([]*Variable, []Node, error) {
	var arguments []*Variable
	var defaults []Node

	if _, err := p.expect(TokenOpenParen); err != nil {
		return nil, nil, err
	}

	if p.peek(1).Typ == TokenCloseParen {
		p.next()
		return arguments, defaults, nil
	}

	for {
		v, err := p.parseVariable()
		if err != nil {
			return nil, nil, err
		}
		arguments = append(arguments, v)

		tok := p.next()
		if tok.Typ == TokenAssign {
			val, err := p.parseValue()
			if err != nil {
				return nil, nil, err
			}
			defaults = append(defaults, val)
			tok = p.next()
		} else {
			defaults = append(defaults, nil)
		}

		switch tok.Typ {
		case TokenComma:
			continue
		case TokenCloseParen:
			return arguments, defaults, nil
		default:
			return nil, nil, p.unexpected(tok)
		}
	}
}

func (p *Parser) parseClass() (Node, error) {
	tokens := []Token{p.next()}
	nameTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	tokens = append(tokens, nameTok)

	// selfType forward-declares the class's instance type before the
	// class itself exists, since methods parsed inside the body need
	// self's type at parse time; it is patched once NewClass returns.
	selfType := &ClassType{}

	var constructor *Method
	order := []string{}
	attrs := map[string]Node{}

classBody:
	for {
		p.skipComments()
		tok := p.peek(1)

		switch tok.Typ {
		case TokenEOF:
			return nil, &SyntaxError{Message: "expected `end` before EOF for class", Toks: tokens}

		case TokenEnd:
			tokens = append(tokens, p.next())
			break classBody

		case TokenDef:
			value, err := p.parseMethod(selfType)
			if err != nil {
				return nil, err
			}
			addChild(attrs, &order, value)

		case TokenNew:
			meth, err := p.parseConstructor()
			if err != nil {
				return nil, err
			}
			if constructor != nil {
				constructor.Assimilate(meth)
			} else {
				constructor = meth
			}

		case TokenIdentifier:
			v, err := p.parseVariable()
			if err != nil {
				return nil, err
			}
			addChild(attrs, &order, v)

		default:
			return nil, p.unexpected(tok)
		}
	}

	attrNodes := make([]Node, 0, len(order))
	for _, n := range order {
		attrNodes = append(attrNodes, attrs[n])
	}

	class, err := NewClass(nameTok.Value, constructor, attrNodes)
	if err != nil {
		return nil, err
	}
	selfType.Class = class
	return class, nil
}

//
// Variables, type signatures
//

func (p *Parser) parseVariable() (*Variable, error) {
	var tokens []Token
	constant := false
	if p.peek(1).Typ == TokenConst {
		tokens = append(tokens, p.next())
		constant = true
	}

	nameTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	tokens = append(tokens, nameTok)

	typeNode, err := p.parseTypeSig(TokenColon)
	if err != nil {
		return nil, err
	}
	typ, err := asType(typeNode, tokens)
	if err != nil {
		return nil, err
	}

	if constant {
		return NewConstVariable(nameTok.Value, typ), nil
	}
	return NewVariable(nameTok.Value, typ), nil
}

// parseTypeSig parses an optional `sep VALUE` suffix (`: TYPE` for an
// argument, `-> TYPE` for a return type), returning (nil, nil) when sep is
// not present.
func (p *Parser) parseTypeSig(sep TokenType) (Node, error) {
	if p.peek(1).Typ != sep {
		return nil, nil
	}
	p.next()
	return p.parseValue()
}

//
// Postfix constructs
//

func (p *Parser) parseCall(called Node) (Node, error) {
	tokens := []Token{p.next()}

	var args []Node
	if p.peek(1).Typ == TokenCloseParen {
		tokens = append(tokens, p.next())
		return NewCall(called, args, tokens), nil
	}

	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		args = append(args, v)

		tok := p.next()
		switch tok.Typ {
		case TokenComma:
			continue
		case TokenCloseParen:
			tokens = append(tokens, tok)
			return NewCall(called, args, tokens), nil
		default:
			return nil, p.unexpected(tok)
		}
	}
}

func (p *Parser) parseAttribute(value Node) (Node, error) {
	tokens := []Token{p.next()}
	nameTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	tokens = append(tokens, nameTok)
	return NewAttribute(value, nameTok.Value, tokens), nil
}

// parseCast parses the postfix `as T` cast construct, modeled as
// `Call(Attribute(value, "as"), [], returnHint=T)`.
func (p *Parser) parseCast(value Node) (Node, error) {
	asTok := p.next()
	tokens := []Token{asTok}

	typeNode, err := p.parseSingleValue()
	if err != nil {
		return nil, err
	}
	typ, err := asType(typeNode, tokens)
	if err != nil {
		return nil, err
	}

	call := NewCall(NewAttribute(value, asTok.Value, tokens), nil, tokens)
	return call.WithReturnHint(typ), nil
}

//
// Statements
//

func (p *Parser) parseReturn() (Node, error) {
	tokens := []Token{p.next()}

	switch p.peek(1).Typ {
	case TokenEnd, TokenElse, TokenEOF:
		return NewReturn(nil, tokens), nil
	}

	value, err := p.parseValue()
	if err != nil {
		return NewReturn(nil, tokens), nil
	}
	return NewReturn(value, tokens), nil
}

func (p *Parser) parseAssignment() (Node, error) {
	variable, err := p.parseAssignmentTarget()
	if err != nil {
		return nil, err
	}
	eqTok, err := p.expect(TokenAssign)
	if err != nil {
		return nil, err
	}
	tokens := []Token{eqTok}

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return NewAssignment(variable, value, tokens), nil
}

// parseAssignmentTarget parses the left-hand side of an assignment: either a
// bare name (optionally `const`-qualified and type-annotated) or a
// `self.field` attribute path. The latter consumes the `self.` qualifier and
// returns an untyped Variable named `field`. Assignment resolves that name
// against the enclosing scope chain like any bare target, so the innermost
// binding wins: a same-named local or parameter is rebound rather than the
// instance attribute.
func (p *Parser) parseAssignmentTarget() (*Variable, error) {
	if p.peek(1).Typ == TokenSelf {
		p.next()
		if _, err := p.expect(TokenDot); err != nil {
			return nil, err
		}
		nameTok, err := p.expect(TokenIdentifier)
		if err != nil {
			return nil, err
		}
		return NewVariable(nameTok.Value, nil), nil
	}
	return p.parseVariable()
}

func (p *Parser) parseImport() (Node, error) {
	tokens := []Token{p.next()}

	path, err := p.parseImportPath(&tokens)
	if err != nil {
		return nil, err
	}

	var alias string
	if p.peek(1).Typ == TokenAs {
		tokens = append(tokens, p.next())
		aliasTok, err := p.expect(TokenIdentifier)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, aliasTok)
		alias = aliasTok.Value
	}

	return NewImport(path, alias, tokens), nil
}

// parseImportPath parses any number of leading dots (each a "." path
// segment, for a relative import), then identifiers separated by dots.
func (p *Parser) parseImportPath(tokens *[]Token) ([]string, error) {
	var path []string

	for p.peek(1).Typ == TokenDot {
		*tokens = append(*tokens, p.next())
		path = append(path, ".")
	}

	for {
		tok, err := p.expect(TokenIdentifier)
		if err != nil {
			return nil, err
		}
		*tokens = append(*tokens, tok)
		path = append(path, tok.Value)

		if p.peek(1).Typ != TokenDot {
			return path, nil
		}
		*tokens = append(*tokens, p.next())
	}
}
