// Package codegen is a demonstration backend consuming a verified Module,
// built against github.com/llir/llvm's ir.Module/ir.Func/ir.Block builder
// API in place of piping a textual IR string to an external linker. It
// deliberately only lowers a narrow slice: non-dependent functions whose
// arguments and return type are the scalar builtins Int or Bool, calling
// only the builtin arithmetic and comparison operators installed by
// Builtins() - the full dependent-type and overload-resolution machinery
// stays out of scope for this backend.
package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	maqui "go.maqui.dev/pkg"
)

// scalarOp maps a builtin operator method name (the literal operator
// spelling - "+", "==", and so on - per installArithmetic/installComparison
// in builtin.go) to the llir instruction builder that lowers a call to it.
type scalarOp func(b *ir.Block, lhs, rhs value.Value) value.Value

var scalarOps = map[string]scalarOp{
	"+":  func(b *ir.Block, l, r value.Value) value.Value { return b.NewAdd(l, r) },
	"-":  func(b *ir.Block, l, r value.Value) value.Value { return b.NewSub(l, r) },
	"*":  func(b *ir.Block, l, r value.Value) value.Value { return b.NewMul(l, r) },
	"//": func(b *ir.Block, l, r value.Value) value.Value { return b.NewSDiv(l, r) },
	"/":  func(b *ir.Block, l, r value.Value) value.Value { return b.NewSDiv(l, r) },
	"%":  func(b *ir.Block, l, r value.Value) value.Value { return b.NewSRem(l, r) },
	"<":  func(b *ir.Block, l, r value.Value) value.Value { return b.NewICmp(enum.IPredSLT, l, r) },
	"<=": func(b *ir.Block, l, r value.Value) value.Value { return b.NewICmp(enum.IPredSLE, l, r) },
	">":  func(b *ir.Block, l, r value.Value) value.Value { return b.NewICmp(enum.IPredSGT, l, r) },
	">=": func(b *ir.Block, l, r value.Value) value.Value { return b.NewICmp(enum.IPredSGE, l, r) },
	"==": func(b *ir.Block, l, r value.Value) value.Value { return b.NewICmp(enum.IPredEQ, l, r) },
	"!=": func(b *ir.Block, l, r value.Value) value.Value { return b.NewICmp(enum.IPredNE, l, r) },
}

// Generator lowers a verified Module into an LLVM IR module.
type Generator struct {
	module *ir.Module
	locals map[*maqui.Variable]value.Value
}

// New creates a Generator targeting a fresh llvm module.
func New() *Generator {
	return &Generator{module: ir.NewModule(), locals: map[*maqui.Variable]value.Value{}}
}

// Generate lowers every eligible top-level Method in mod's global context
// into an llvm function declaration or definition, skipping anything
// outside the supported slice rather than failing the whole unit - a
// partial lowering is still useful for the demo's purpose of exercising the
// llir/llvm dependency against real verified IR.
func (g *Generator) Generate(mod *maqui.Module) (*ir.Module, []error) {
	var errs []error

	global := mod.GlobalContext()
	if global == nil {
		return g.module, errs
	}

	for _, child := range global.Children() {
		method, ok := child.(*maqui.Method)
		if !ok {
			continue
		}
		overloads := method.Overloads()
		if len(overloads) != 1 {
			errs = append(errs, fmt.Errorf("method %q: overloaded methods are not lowered", methodName(child)))
			continue
		}

		switch fn := overloads[0].(type) {
		case *maqui.Function:
			if err := g.lowerFunction(fn); err != nil {
				errs = append(errs, err)
			}
		case *maqui.ExternalFunction:
			if err := g.lowerExternal(fn); err != nil {
				errs = append(errs, err)
			}
		default:
			errs = append(errs, fmt.Errorf("method %q: unsupported overload kind", methodName(child)))
		}
	}

	return g.module, errs
}

func methodName(n maqui.Node) string {
	if named, ok := n.(maqui.Named); ok {
		return named.Name()
	}
	return "<anonymous>"
}

// scalarType maps a verified maqui.Type to the matching llvm scalar type,
// failing for anything outside {Int, Bool}.
func scalarType(t maqui.Type) (types.Type, error) {
	if t == nil {
		return types.Void, nil
	}
	resolved := t.ResolveValue()
	if ct, ok := resolved.(*maqui.ClassType); ok {
		resolved = ct.Class
	}
	named, ok := resolved.(maqui.Named)
	if !ok {
		return nil, fmt.Errorf("unsupported type in scalar slice: %v", t)
	}
	switch named.Name() {
	case "Int":
		return types.I64, nil
	case "Bool":
		return types.I1, nil
	default:
		return nil, fmt.Errorf("unsupported type in scalar slice: %s", named.Name())
	}
}

func (g *Generator) lowerExternal(fn *maqui.ExternalFunction) error {
	retType, err := scalarType(fn.Type.ReturnType)
	if err != nil {
		return fmt.Errorf("external %q: %w", fn.ExternalName, err)
	}

	params := make([]*ir.Param, len(fn.Type.Arguments))
	for i, arg := range fn.Type.Arguments {
		argType, err := scalarType(arg)
		if err != nil {
			return fmt.Errorf("external %q: %w", fn.ExternalName, err)
		}
		params[i] = ir.NewParam(fmt.Sprintf("arg%d", i), argType)
	}

	g.module.NewFunc(fn.ExternalName, retType, params...)
	return nil
}

// lowerFunction emits a defined llvm function for fn, whose body must be a
// single Return of a value built from arguments, literals and scalar
// operator calls, per the narrow slice this package supports. Control flow (Branch, Loop) is out of scope
// for the demo and reported as a lowering error rather than attempted.
func (g *Generator) lowerFunction(fn *maqui.Function) error {
	retType, err := scalarType(fn.Type.ReturnType)
	if err != nil {
		return fmt.Errorf("function %q: %w", fn.Name(), err)
	}

	params := make([]*ir.Param, len(fn.Arguments))
	for i, arg := range fn.Arguments {
		argType, err := scalarType(arg.Typ)
		if err != nil {
			return fmt.Errorf("function %q: %w", fn.Name(), err)
		}
		params[i] = ir.NewParam(arg.Name(), argType)
	}

	llvmFn := g.module.NewFunc(fn.Name(), retType, params...)
	block := llvmFn.NewBlock("entry")

	locals := map[string]value.Value{}
	for i, arg := range fn.Arguments {
		locals[arg.Name()] = llvmFn.Params[i]
	}

	for _, instr := range fn.Instructions {
		ret, ok := instr.(*maqui.Return)
		if !ok {
			return fmt.Errorf("function %q: only a trailing return is supported in the demo slice", fn.Name())
		}
		if ret.Value == nil {
			block.NewRet(nil)
			return nil
		}
		result, err := g.lowerExpr(block, locals, ret.Value)
		if err != nil {
			return fmt.Errorf("function %q: %w", fn.Name(), err)
		}
		block.NewRet(result)
		return nil
	}

	if retType == types.Void {
		block.NewRet(nil)
	}
	return nil
}

// lowerExpr lowers a value-producing node to an llvm value: a variable
// reference, an integer/bool literal, or a binary-operator Call against a
// scalarOp.
func (g *Generator) lowerExpr(block *ir.Block, locals map[string]value.Value, n maqui.Node) (value.Value, error) {
	switch v := n.ResolveValue().(type) {
	case *maqui.Variable:
		val, ok := locals[v.Name()]
		if !ok {
			return nil, fmt.Errorf("unbound local %q in demo slice", v.Name())
		}
		return val, nil

	case *maqui.Literal:
		return g.lowerLiteral(v)

	case *maqui.Call:
		attr, ok := v.Called.(*maqui.Attribute)
		if !ok {
			return nil, fmt.Errorf("only operator calls are supported in the demo slice")
		}
		op, ok := scalarOps[attr.Reference]
		if !ok {
			return nil, fmt.Errorf("operator %q is not in the demo slice", attr.Reference)
		}
		if len(v.Values) != 1 {
			return nil, fmt.Errorf("operator %q: expected exactly one argument", attr.Reference)
		}
		lhs, err := g.lowerExpr(block, locals, attr.Value)
		if err != nil {
			return nil, err
		}
		rhs, err := g.lowerExpr(block, locals, v.Values[0])
		if err != nil {
			return nil, err
		}
		return op(block, lhs, rhs), nil

	default:
		return nil, fmt.Errorf("unsupported expression kind in demo slice")
	}
}

func (g *Generator) lowerLiteral(l *maqui.Literal) (value.Value, error) {
	t, err := scalarType(l.Typ)
	if err != nil {
		return nil, err
	}
	switch t {
	case types.I1:
		return constant.NewBool(l.Data == "true"), nil
	default:
		return constant.NewIntFromString(t.(*types.IntType), l.Data)
	}
}
