package codegen

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	maqui "go.maqui.dev/pkg"
)

func verifiedModule(t *testing.T, src string) *maqui.Module {
	t.Helper()
	mod, err := maqui.ParseSource(strings.NewReader(src), "test.mq")
	require.NoError(t, err)
	require.NoError(t, maqui.Verify(mod, maqui.Builtins(), zerolog.Nop()))
	return mod
}

func TestGenerateLowersScalarArithmeticFunction(t *testing.T) {
	mod := verifiedModule(t, "def add(a: Int, b: Int) -> Int\n  return a + b\nend\n")

	g := New()
	llvmMod, errs := g.Generate(mod)
	require.Empty(t, errs)
	require.NotNil(t, llvmMod)

	var names []string
	for _, fn := range llvmMod.Funcs {
		names = append(names, fn.Name())
	}
	assert.Contains(t, names, "add")
}

func TestGenerateLowersComparisonFunction(t *testing.T) {
	mod := verifiedModule(t, "def lt(a: Int, b: Int) -> Bool\n  return a < b\nend\n")

	g := New()
	llvmMod, errs := g.Generate(mod)
	require.Empty(t, errs)

	var found bool
	for _, fn := range llvmMod.Funcs {
		if fn.Name() == "lt" {
			found = true
			assert.Len(t, fn.Params, 2)
		}
	}
	assert.True(t, found, "expected a lowered lt function")
}

func TestGenerateReportsOverloadedMethodsAsUnsupported(t *testing.T) {
	mod := verifiedModule(t, `
def f(a: Int) -> Int
  return a
end

def f(a: Int, b: Int) -> Int
  return a
end
`)

	g := New()
	_, errs := g.Generate(mod)
	assert.NotEmpty(t, errs)
}

func TestGenerateReportsDependentFunctionAsUnsupported(t *testing.T) {
	mod := verifiedModule(t, "def identity(x) -> Int\n  return 1\nend\n\na = identity(1)\n")

	g := New()
	_, errs := g.Generate(mod)
	// identity itself, pre-specialization, carries a DependentType argument
	// that scalarType does not recognize.
	assert.NotEmpty(t, errs)
}

func TestScalarTypeRejectsUnsupportedTypes(t *testing.T) {
	_, err := scalarType(maqui.NewClassType(mustClass(t, "String")))
	assert.Error(t, err)
}

func mustClass(t *testing.T, name string) *maqui.Class {
	t.Helper()
	builtins := maqui.Builtins()
	child, ok := builtins.GlobalContext().Get(name)
	require.True(t, ok)
	class, ok := child.(*maqui.Class)
	require.True(t, ok)
	return class
}
