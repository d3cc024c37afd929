package maqui

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verifySource(t *testing.T, src string) error {
	t.Helper()
	mod, err := ParseSource(strings.NewReader(src), "test.mq")
	require.NoError(t, err)
	return Verify(mod, Builtins(), zerolog.Nop())
}

func TestVerifyArithmeticResolvesAgainstBuiltins(t *testing.T) {
	err := verifySource(t, "def add(a: Int, b: Int) -> Int\n  return a + b\nend\n\nx = add(1, 2)\n")
	assert.NoError(t, err)
}

func TestVerifyComparisonResolvesToBool(t *testing.T) {
	err := verifySource(t, "def lt(a: Int, b: Int) -> Bool\n  return a < b\nend\n")
	assert.NoError(t, err)
}

func TestVerifyLogicOperatorsOnBool(t *testing.T) {
	err := verifySource(t, "def both(a: Bool, b: Bool) -> Bool\n  return a && b\nend\n")
	assert.NoError(t, err)
}

func TestVerifyMissingReturnFails(t *testing.T) {
	err := verifySource(t, "def f() -> Int\n  x = 1\nend\n")
	require.Error(t, err)
	_, ok := err.(*SemanticError)
	assert.True(t, ok, "expected a SemanticError, got %T: %v", err, err)
}

func TestVerifyMissingReturnInsideBranchFails(t *testing.T) {
	// Only one arm returns, so the function still does not definitely
	// return on every path.
	err := verifySource(t, "def f(a: Bool) -> Int\n  if a\n    return 1\n  end\nend\n")
	require.Error(t, err)
	_, ok := err.(*SemanticError)
	assert.True(t, ok)
}

func TestVerifyReturnOnBothBranchesSucceeds(t *testing.T) {
	err := verifySource(t, "def f(a: Bool) -> Int\n  if a\n    return 1\n  else\n    return 2\n  end\nend\n")
	assert.NoError(t, err)
}

func TestVerifyAmbiguousOverloadFails(t *testing.T) {
	err := verifySource(t, `
def f(a: Int) -> Int
  return a
end

def f(a: Int) -> Int
  return a
end

x = f(1)
`)
	require.Error(t, err)
	_, ok := err.(*AmbiguousOverloadError)
	assert.True(t, ok, "expected an AmbiguousOverloadError, got %T: %v", err, err)
}

func TestVerifyDependentFunctionSpecializesPerCallSite(t *testing.T) {
	err := verifySource(t, "def identity(x) -> Int\n  return 1\nend\n\na = identity(1)\nb = identity(true)\n")
	assert.NoError(t, err)
}

func TestVerifyUndefinedReferenceFails(t *testing.T) {
	err := verifySource(t, "x = undefined\n")
	require.Error(t, err)
	_, ok := err.(*AmbiguousReferenceError)
	if !ok {
		_, ok = err.(*MissingReferenceError)
	}
	assert.True(t, ok, "expected a reference-resolution error, got %T: %v", err, err)
}

func TestVerifyBreakOutsideLoopFails(t *testing.T) {
	err := verifySource(t, "break\n")
	require.Error(t, err)
	_, ok := err.(*SemanticError)
	assert.True(t, ok)
}

func TestVerifyBreakInsideLoopSucceeds(t *testing.T) {
	err := verifySource(t, "while true\n  break\nend\n")
	assert.NoError(t, err)
}

func TestVerifyConstructorRejectsReturn(t *testing.T) {
	err := verifySource(t, `
class Point
  x: Int

  new(x: Int)
    self.x = x
    return x
  end
end
`)
	assert.Error(t, err)
}

func TestVerifyConstructorWithoutReturnSucceeds(t *testing.T) {
	err := verifySource(t, `
class Point
  x: Int

  new(x: Int)
    self.x = x
  end
end
`)
	assert.NoError(t, err)
}

func TestVerifyStringConcatenation(t *testing.T) {
	err := verifySource(t, "def greeting(a: String, b: String) -> String\n  return a + b\nend\n")
	assert.NoError(t, err)
}

func TestVerifyChainedArithmeticInOneTier(t *testing.T) {
	// A third same-tier operator resolves its attribute against the
	// previous Call's ClassType return, not a Reference to it - this
	// exercises that ClassType.InstanceContext delegates to its Class.
	err := verifySource(t, "def sum3(a: Int, b: Int, c: Int) -> Int\n  return a + b + c\nend\n")
	assert.NoError(t, err)

	err = verifySource(t, "def mixed(a: Int, b: Int, c: Int) -> Int\n  return a + b - c\nend\n")
	assert.NoError(t, err)
}

func TestVerifyInstanceMethodsOnConstructedValue(t *testing.T) {
	// p's static type comes from Constructor's ClassType return, not a
	// Reference wrapping it - p.x must still resolve.
	err := verifySource(t, `
class Point
  x: Int

  new(x: Int)
    self.x = x
  end
end

p = Point(1)
y = p.x
`)
	assert.NoError(t, err)
}

func TestVerifySelfUsableInsideConstructorAndMethod(t *testing.T) {
	err := verifySource(t, `
class Point
  x: Int

  new(x: Int)
    self.x = x
  end

  def addX(other: Int) -> Int
    return self.x + other
  end
end
`)
	assert.NoError(t, err)
}

func TestVerifySelfReturnedFromOperatorOverload(t *testing.T) {
	err := verifySource(t, `
class Vector
  x: Int

  def self + other -> Vector
    return self
  end
end
`)
	assert.NoError(t, err)
}
