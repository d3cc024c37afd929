package maqui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *Module {
	t.Helper()
	mod, err := ParseSource(strings.NewReader(src), "test.mq")
	require.NoError(t, err)
	require.NotNil(t, mod)
	return mod
}

func TestParserHelloWorld(t *testing.T) {
	mod := parse(t, "io.print(`Hello`)\n")

	require.Len(t, mod.Main.Instructions, 1)
	call, ok := mod.Main.Instructions[0].(*Call)
	require.True(t, ok)

	attr, ok := call.Called.(*Attribute)
	require.True(t, ok)
	assert.Equal(t, "print", attr.Reference)

	ref, ok := attr.Value.(*Reference)
	require.True(t, ok)
	assert.Equal(t, "io", ref.Name)

	require.Len(t, call.Values, 1)
	lit, ok := call.Values[0].(*Literal)
	require.True(t, ok)
	assert.Equal(t, "Hello", lit.Data)
}

func TestParserDefFunction(t *testing.T) {
	mod := parse(t, "def add(a: Int, b: Int) -> Int\n  return a + b\nend\n")

	require.Len(t, mod.context.Names(), 1)
	child, ok := mod.context.Get("add")
	require.True(t, ok)
	method, ok := child.(*Method)
	require.True(t, ok)

	overloads := method.Overloads()
	require.Len(t, overloads, 1)
	fn, ok := overloads[0].(*Function)
	require.True(t, ok)
	require.Len(t, fn.Arguments, 2)
	assert.Equal(t, "a", fn.Arguments[0].Name())
	assert.Equal(t, "b", fn.Arguments[1].Name())

	require.Len(t, fn.Instructions, 1)
	ret, ok := fn.Instructions[0].(*Return)
	require.True(t, ok)

	call, ok := ret.Value.(*Call)
	require.True(t, ok)
	attr, ok := call.Called.(*Attribute)
	require.True(t, ok)
	assert.Equal(t, "+", attr.Reference)
}

func TestParserBinaryOperatorOverload(t *testing.T) {
	mod := parse(t, `
class Vector
  x: Int
  y: Int

  def self + other -> Vector
    return self
  end
end
`)

	child, ok := mod.context.Get("Vector")
	require.True(t, ok)
	class, ok := child.(*Class)
	require.True(t, ok)

	plus, ok := class.instanceContext.Get("+")
	require.True(t, ok)
	method, ok := plus.(*Method)
	require.True(t, ok)

	overloads := method.Overloads()
	require.Len(t, overloads, 1)
	fn, ok := overloads[0].(*Function)
	require.True(t, ok)

	// self is prepended as an explicit first argument.
	require.Len(t, fn.Arguments, 2)
	assert.Equal(t, "self", fn.Arguments[0].Name())
	assert.Equal(t, "other", fn.Arguments[1].Name())
}

func TestParserDefaultArgumentsSynthesizeOverloadChain(t *testing.T) {
	mod := parse(t, "def greet(name: String, times: Int = 1) -> Int\n  return times\nend\n")

	child, ok := mod.context.Get("greet")
	require.True(t, ok)
	method, ok := child.(*Method)
	require.True(t, ok)

	// One explicit overload plus one synthesized for the defaulted argument.
	overloads := method.Overloads()
	require.Len(t, overloads, 2)

	full, ok := overloads[0].(*Function)
	require.True(t, ok)
	assert.Len(t, full.Arguments, 2)

	short, ok := overloads[1].(*Function)
	require.True(t, ok)
	assert.Len(t, short.Arguments, 1)

	// The synthesized overload's body forwards to the fuller overload with
	// the trailing default value substituted - a bare Call, not wrapped in
	// a Return.
	require.Len(t, short.Instructions, 1)
	_, isCall := short.Instructions[0].(*Call)
	assert.True(t, isCall, "synthesized overload body should be a bare Call")
}

func TestParserDependentFunctionArgument(t *testing.T) {
	mod := parse(t, "def identity(x) -> Int\n  return x\nend\n")

	child, ok := mod.context.Get("identity")
	require.True(t, ok)
	method := child.(*Method)
	fn := method.Overloads()[0].(*Function)

	assert.True(t, fn.Dependent)
	_, isDependent := fn.Arguments[0].Typ.(*DependentType)
	assert.True(t, isDependent)
}

func TestParserClassWithConstructor(t *testing.T) {
	mod := parse(t, `
class Point
  x: Int
  y: Int

  new(x: Int, y: Int)
    self.x = x
    self.y = y
  end
end
`)

	child, ok := mod.context.Get("Point")
	require.True(t, ok)
	class, ok := child.(*Class)
	require.True(t, ok)
	require.NotNil(t, class.Constructor)

	overloads := class.Constructor.Overloads()
	require.Len(t, overloads, 1)
	ctor, ok := overloads[0].(*Constructor)
	assert.True(t, ok)

	assignment, ok := ctor.Instructions[0].(*Assignment)
	require.True(t, ok)
	assert.Equal(t, "x", assignment.Variable.Name())

	ref, ok := assignment.Value.(*Reference)
	require.True(t, ok)
	assert.Equal(t, "x", ref.Name)
}

func TestParserSelfAsValue(t *testing.T) {
	mod := parse(t, `
class Point
  x: Int

  def get() -> Int
    return self.x
  end
end
`)

	child, ok := mod.context.Get("Point")
	require.True(t, ok)
	class := child.(*Class)

	getM, ok := class.instanceContext.Get("get")
	require.True(t, ok)
	method := getM.(*Method)
	fn := method.Overloads()[0].(*Function)

	ret, ok := fn.Instructions[0].(*Return)
	require.True(t, ok)
	attr2, ok := ret.Value.(*Attribute)
	require.True(t, ok)
	assert.Equal(t, "x", attr2.Reference)

	self, ok := attr2.Value.(*Reference)
	require.True(t, ok)
	assert.Equal(t, "self", self.Name)
}

func TestParserAssignment(t *testing.T) {
	mod := parse(t, "x = 1\n")

	require.Len(t, mod.Main.Instructions, 1)
	assignment, ok := mod.Main.Instructions[0].(*Assignment)
	require.True(t, ok)
	assert.Equal(t, "x", assignment.Variable.Name())

	lit, ok := assignment.Value.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "1", lit.Data)
}

func TestParserConstAssignment(t *testing.T) {
	mod := parse(t, "const pi: Real = 3.14\n")

	assignment, ok := mod.Main.Instructions[0].(*Assignment)
	require.True(t, ok)
	assert.True(t, assignment.Variable.Constant)
}

func TestParserWhileLowersToLoopWithBreakingBranch(t *testing.T) {
	mod := parse(t, "while true\n  break\nend\n")

	require.Len(t, mod.Main.Instructions, 1)
	loop, ok := mod.Main.Instructions[0].(*Loop)
	require.True(t, ok)
	require.Len(t, loop.Instructions, 2)

	branch, ok := loop.Instructions[0].(*Branch)
	require.True(t, ok)
	require.Len(t, branch.FalseInstructions, 1)
	_, isBreak := branch.FalseInstructions[0].(*Break)
	assert.True(t, isBreak)
}

func TestParserOperatorPrecedence(t *testing.T) {
	// 1 + 2 * 3 should bind as 1 + (2 * 3): the outermost Call is "+".
	mod := parse(t, "x = 1 + 2 * 3\n")

	assignment := mod.Main.Instructions[0].(*Assignment)
	call, ok := assignment.Value.(*Call)
	require.True(t, ok)
	attr := call.Called.(*Attribute)
	assert.Equal(t, "+", attr.Reference)

	rhsCall, ok := call.Values[0].(*Call)
	require.True(t, ok)
	rhsAttr := rhsCall.Called.(*Attribute)
	assert.Equal(t, "*", rhsAttr.Reference)
}

func TestParserCastExpression(t *testing.T) {
	mod := parse(t, "x = 1 as Real\n")

	assignment := mod.Main.Instructions[0].(*Assignment)
	call, ok := assignment.Value.(*Call)
	require.True(t, ok)
	attr, ok := call.Called.(*Attribute)
	require.True(t, ok)
	assert.Equal(t, "as", attr.Reference)
	assert.NotNil(t, call.ReturnHint)
}

func TestParserRejectsPragmaAndForLines(t *testing.T) {
	cases := []string{
		"pragma foo\n",
		"for x in y\nend\n",
	}
	for _, src := range cases {
		_, err := ParseSource(strings.NewReader(src), "test.mq")
		assert.Error(t, err)
		_, ok := err.(*SyntaxError)
		assert.True(t, ok, "expected a SyntaxError for %q", src)
	}
}

func TestParserUnterminatedBlockFails(t *testing.T) {
	_, err := ParseSource(strings.NewReader("def f()\n  return 1\n"), "test.mq")
	assert.Error(t, err)
}

func TestParserImport(t *testing.T) {
	mod := parse(t, "import foo.bar as baz\n")

	require.Len(t, mod.context.Names(), 0)
	require.Len(t, mod.Main.Instructions, 1)
	imp, ok := mod.Main.Instructions[0].(*Import)
	require.True(t, ok)
	assert.Equal(t, []string{"foo", "bar"}, imp.Path)
	assert.Equal(t, "baz", imp.Alias)
}
