package maqui

// Type is the interface implemented by every type entity. Types are
// themselves Nodes - FunctionType, ModuleType, ClassType
// and DependentType all implement Node as well, since a Class (for example)
// is both a scope and a type.
type Type interface {
	Node
	// CheckCompatibility reports whether other is compatible with this
	// type. checkCompatibility (the free function below) makes this
	// symmetric at the top level.
	CheckCompatibility(other Type) bool
}

// checkCompatibility is satisfied if either direction reports
// compatibility: it is symmetric at the top level even though
// CheckCompatibility itself need not be.
func checkCompatibility(a, b Type) bool {
	if a.CheckCompatibility(b) {
		return true
	}
	return b.CheckCompatibility(a)
}

// ModuleType is the type of a Module value. Two ModuleTypes are compatible
// only when they wrap the same Module instance.
type ModuleType struct {
	baseNode
	Module *Module
}

func NewModuleType(m *Module) *ModuleType { return &ModuleType{Module: m} }

func (t *ModuleType) Verify(ctx *VerifyContext) error { return nil }
func (t *ModuleType) ResolveType() (Type, error) {
	return nil, &InternalError{Message: "ModuleType has no type"}
}
func (t *ModuleType) ResolveValue() Node { return t }
func (t *ModuleType) Copy() Node         { return &ModuleType{Module: t.Module} }

func (t *ModuleType) CheckCompatibility(other Type) bool {
	o, ok := other.ResolveValue().(*ModuleType)
	return ok && o.Module == t.Module
}

// ClassType is the type of a Class value, distinct from the Class itself
// (which is a Type in its own right acting as the type of its instances).
// ClassType is compatible with another ClassType of the same Class, or with
// that Class itself.
// InstanceContext/GlobalContext delegate to the underlying Class so that a
// value whose static type is a bare ClassType (a constructor's return type,
// a builtin operator's return type) still resolves attribute and operator
// lookups through defaultResolveAttribute.
type ClassType struct {
	baseNode
	Class *Class
}

func NewClassType(c *Class) *ClassType { return &ClassType{Class: c} }

func (t *ClassType) Verify(ctx *VerifyContext) error { return nil }
func (t *ClassType) ResolveType() (Type, error) {
	return nil, &InternalError{Message: "ClassType has no type"}
}
func (t *ClassType) ResolveValue() Node        { return t }
func (t *ClassType) Copy() Node                { return &ClassType{Class: t.Class} }
func (t *ClassType) InstanceContext() *Context { return t.Class.InstanceContext() }
func (t *ClassType) GlobalContext() *Context   { return t.Class.GlobalContext() }

func (t *ClassType) CheckCompatibility(other Type) bool {
	switch o := other.ResolveValue().(type) {
	case *ClassType:
		return o.Class == t.Class
	case *Class:
		return o == t.Class
	default:
		return false
	}
}

// FunctionType describes the signature of a callable: its argument types
// and an optional return type. A missing return type on the caller side of
// a comparison is treated as a wildcard, enabling call-site inference.
type FunctionType struct {
	baseNode
	Name       string
	Arguments  []Type
	ReturnType Type
	verified   bool
}

func NewFunctionType(name string, args []Type, ret Type) *FunctionType {
	return &FunctionType{Name: name, Arguments: args, ReturnType: ret}
}

func (t *FunctionType) Verify(ctx *VerifyContext) error {
	if t.verified {
		return nil
	}
	t.verified = true

	for _, arg := range t.Arguments {
		if err := arg.Verify(ctx); err != nil {
			return err
		}
	}
	if t.ReturnType != nil {
		return t.ReturnType.Verify(ctx)
	}
	return nil
}

func (t *FunctionType) ResolveType() (Type, error) {
	return nil, &InternalError{Message: "FunctionType has no type"}
}
func (t *FunctionType) ResolveValue() Node { return t }

func (t *FunctionType) Copy() Node {
	args := make([]Type, len(t.Arguments))
	copy(args, t.Arguments)
	return &FunctionType{Name: t.Name, Arguments: args, ReturnType: t.ReturnType}
}

// CheckCompatibility compares two function signatures: arities
// must match, each argument pairwise compatible, and if both return types
// are present they must be compatible; a missing return type on either side
// is treated as a wildcard.
func (t *FunctionType) CheckCompatibility(other Type) bool {
	o, ok := other.ResolveValue().(*FunctionType)
	if !ok {
		return false
	}
	if len(t.Arguments) != len(o.Arguments) {
		return false
	}
	for i := range t.Arguments {
		if !checkCompatibility(t.Arguments[i], o.Arguments[i]) {
			return false
		}
	}
	if t.ReturnType != nil && o.ReturnType != nil {
		return checkCompatibility(t.ReturnType, o.ReturnType)
	}
	return true
}

// DependentType is a type placeholder populated during call resolution,
// implementing a limited form of generics. Until a specialization chooses
// a concrete target, it records every type it was compared against and
// reports itself compatible with all of them; at most one target is ever
// assigned.
type DependentType struct {
	baseNode
	Compatibles []Type
	Target      Type
}

func NewDependentType() *DependentType { return &DependentType{} }

func (t *DependentType) Verify(ctx *VerifyContext) error { return nil }
func (t *DependentType) ResolveType() (Type, error) {
	return nil, &InternalError{Message: "DependentType has no type"}
}

func (t *DependentType) ResolveValue() Node {
	if t.Target != nil {
		return t.Target.ResolveValue()
	}
	return t
}

func (t *DependentType) Copy() Node {
	compat := make([]Type, len(t.Compatibles))
	copy(compat, t.Compatibles)
	return &DependentType{Compatibles: compat}
}

func (t *DependentType) CheckCompatibility(other Type) bool {
	if t.Target != nil {
		return t.Target.CheckCompatibility(other)
	}

	for _, c := range t.Compatibles {
		if c == other {
			return true
		}
	}
	t.Compatibles = append(t.Compatibles, other)
	return true
}

// Resolve assigns the dependent type's target, the only mutation a
// specialization may perform on it.
func (t *DependentType) Resolve(target Type) {
	t.Target = target
}
