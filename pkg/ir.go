package maqui

import (
	"fmt"
	"strconv"
)

// This file defines the intermediate representation: the tree of Node
// variants the parser builds and the verifier walks. Every variant embeds
// either baseNode (a value or instruction with no name of its own) or
// boundNode (anything that can be looked up by name in a Context), and
// implements whichever Node operations apply to it.

// copyNodes deep-copies a slice of nodes.
func copyNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Copy()
	}
	return out
}

//
// Module
//

// Module is a namespace container scope: the root of a compiled source file
// plus an optional Main function that runs its top level statements.
type Module struct {
	boundNode
	context  *Context
	Main     *Function
	verified bool
}

// NewModule builds a module named name from children, binding main as a
// fake child (visible to resolveReference walks through the module's
// context, but not itself enumerated among the module's named children).
func NewModule(name string, children []Node, main *Function) *Module {
	m := &Module{boundNode: boundNode{name: name}}
	m.context = NewContext(m)
	for _, c := range children {
		if named, ok := c.(Named); ok {
			m.context.Add(named.Name(), c)
		}
	}
	m.Main = main
	if main != nil {
		main.SetBoundContext(m.context)
	}
	return m
}

func (m *Module) Verify(ctx *VerifyContext) error {
	if m.verified {
		return nil
	}
	m.verified = true

	return ctx.EnterScope(m, func() error {
		if m.Main != nil {
			if err := m.Main.Verify(ctx); err != nil {
				return err
			}
		}
		for _, child := range m.context.Children() {
			if err := child.Verify(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *Module) ResolveType() (Type, error) { return NewModuleType(m), nil }
func (m *Module) ResolveValue() Node         { return m }
func (m *Module) LocalContext() *Context     { return m.context }
func (m *Module) GlobalContext() *Context    { return m.context }

func (m *Module) ResolveAttribute(ctx *VerifyContext, name string) (Node, error) {
	return defaultResolveAttribute(ctx, m, name)
}

func (m *Module) Copy() Node {
	return NewModule(m.name, copyNodes(m.context.Children()), nil)
}

//
// Function
//

// Function is a named container of instructions. An argument left without
// an explicit type is given a DependentType and marks the function
// dependent: its signature is only pinned down at a call site, implementing
// a limited form of compile-time generics.
type Function struct {
	boundNode
	Arguments    []*Variable
	Instructions []Node
	Type         *FunctionType
	Dependent    bool
	verified     bool
	localContext *Context

	// verifySelfHook lets Constructor substitute its own analytical check
	// (no Return anywhere) for the default (must return on every path), and
	// lets parseMethodBody exempt its synthesized forwarding overloads,
	// without duplicating Verify's scope/instruction-walking machinery -
	// Go's embedding has no way to override a method called from within
	// the embedded type itself, so the hook stands in for that.
	verifySelfHook func() error
}

// NewFunction builds a function named name over arguments and instructions.
// Arguments without an explicit type are promoted to dependent type slots.
func NewFunction(name string, arguments []*Variable, instructions []Node, returnType Type) *Function {
	f := &Function{boundNode: boundNode{name: name}, Arguments: arguments, Instructions: instructions}
	f.localContext = NewContext(f)

	argTypes := make([]Type, len(arguments))
	for i, arg := range arguments {
		f.localContext.Add(arg.Name(), arg)
		if arg.Typ == nil {
			dep := NewDependentType()
			arg.Typ = dep
			f.Dependent = true
		}
		argTypes[i] = arg.Typ
	}
	f.Type = NewFunctionType(name, argTypes, returnType)
	return f
}

func (f *Function) LocalContext() *Context { return f.localContext }

func (f *Function) Verify(ctx *VerifyContext) error {
	if f.verified {
		return nil
	}
	f.verified = true

	return ctx.EnterScope(f, func() error {
		if err := f.Type.Verify(ctx); err != nil {
			return err
		}
		for _, instr := range f.Instructions {
			if err := instr.Verify(ctx); err != nil {
				return err
			}
		}
		if f.verifySelfHook != nil {
			return f.verifySelfHook()
		}
		return f.verifySelf()
	})
}

// verifySelf performs the analytical check run after a Function's
// instructions have verified: every code path must return when the
// function declares a return type. Constructor overrides this to instead
// forbid any Return.
func (f *Function) verifySelf() error {
	if f.Type.ReturnType != nil && !blockDefinitelyReturns(f.Instructions) {
		return &SemanticError{Message: fmt.Sprintf("function %s does not return on all code paths", f.name)}
	}
	return nil
}

func (f *Function) ResolveType() (Type, error) { return f.Type, nil }
func (f *Function) ResolveValue() Node         { return f }

func (f *Function) ResolveAttribute(ctx *VerifyContext, name string) (Node, error) {
	return defaultResolveAttribute(ctx, f, name)
}

func (f *Function) Copy() Node {
	args := make([]*Variable, len(f.Arguments))
	for i, a := range f.Arguments {
		args[i] = a.Copy().(*Variable)
	}
	instrs := copyNodes(f.Instructions)
	return NewFunction(f.name, args, instrs, f.Type.ReturnType)
}

// ResolveCall implements dependent-function specialization:
// a non-dependent function just checks compatibility and returns itself; a
// dependent one is cloned, its dependent argument slots are resolved
// against the call's argument types, and the clone is verified fresh.
func (f *Function) ResolveCall(ctx *VerifyContext, call *FunctionType) (Node, error) {
	ownType, _ := f.ResolveType()
	if !checkCompatibility(ownType, call) {
		return nil, &TypeError{Message: fmt.Sprintf("%s is not compatible with %s", f.name, describeFunctionType(call))}
	}
	if !f.Dependent {
		return f, nil
	}

	specialized := f.Copy().(*Function)
	for i, arg := range specialized.Arguments {
		if dep, ok := arg.Typ.(*DependentType); ok {
			dep.Resolve(call.Arguments[i])
			specialized.Type.Arguments[i] = call.Arguments[i]
		}
	}
	if err := specialized.Verify(ctx); err != nil {
		return nil, err
	}
	return specialized, nil
}

func describeFunctionType(t *FunctionType) string {
	return fmt.Sprintf("(%d args) -> %v", len(t.Arguments), t.ReturnType)
}

//
// ExternalFunction
//

// ExternalFunction declares a function implemented outside the module
// (the builtin io.print, for instance): a name visible to the
// module's context paired with an external linkage name and a fixed,
// non-dependent signature.
type ExternalFunction struct {
	boundNode
	ExternalName string
	Type         *FunctionType
	verified     bool
}

func NewExternalFunction(name, externalName string, arguments []Type, returnType Type) *ExternalFunction {
	return &ExternalFunction{
		boundNode:    boundNode{name: name},
		ExternalName: externalName,
		Type:         NewFunctionType(externalName, arguments, returnType),
	}
}

func (f *ExternalFunction) Verify(ctx *VerifyContext) error {
	if f.verified {
		return nil
	}
	f.verified = true
	return ctx.EnterScope(f, func() error {
		return f.Type.Verify(ctx)
	})
}

func (f *ExternalFunction) ResolveType() (Type, error) { return f.Type, nil }
func (f *ExternalFunction) ResolveValue() Node         { return f }
func (f *ExternalFunction) Copy() Node {
	args := make([]Type, len(f.Type.Arguments))
	copy(args, f.Type.Arguments)
	return NewExternalFunction(f.name, f.ExternalName, args, f.Type.ReturnType)
}

func (f *ExternalFunction) ResolveCall(ctx *VerifyContext, call *FunctionType) (Node, error) {
	ownType, _ := f.ResolveType()
	if !checkCompatibility(ownType, call) {
		return nil, &TypeError{Message: fmt.Sprintf("%s is not compatible with %s", f.name, describeFunctionType(call))}
	}
	return f, nil
}

//
// Method
//

// Method is an overload set: a named group of callables - ordinarily
// Functions, but an ExternalFunction for a builtin operator or a
// Constructor once NewClass has wrapped it - sharing one call site,
// disambiguated by argument compatibility at resolution time.
type Method struct {
	boundNode
	overloadContext *Context
	verified        bool
}

func NewMethod(name string, overloads []Node) *Method {
	m := &Method{boundNode: boundNode{name: name}}
	m.overloadContext = NewContext(m)
	for _, o := range overloads {
		m.AddOverload(o)
	}
	return m
}

// Overloads returns the method's overload set in declaration order, for a
// backend walking a verified Module.
func (m *Method) Overloads() []Node {
	return m.overloadContext.Children()
}

// AddOverload binds o under a positional key inside the overload set -
// the key is purely an internal slot, unrelated to whatever name o itself
// carries.
func (m *Method) AddOverload(o Node) {
	key := strconv.Itoa(len(m.overloadContext.Children()))
	m.overloadContext.Add(key, o)
}

func (m *Method) Verify(ctx *VerifyContext) error {
	if m.verified {
		return nil
	}
	m.verified = true
	return ctx.EnterScope(m, func() error {
		for _, overload := range m.overloadContext.Children() {
			if err := overload.Verify(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *Method) ResolveType() (Type, error) {
	return nil, &InternalError{Message: "MethodType resolution is not implemented"}
}
func (m *Method) ResolveValue() Node { return m }

// Assimilate merges other's overload set into m, appended after m's own
// overloads in declaration order - the parser calls this whenever two
// declarations in the same scope share a name and are both Methods
// (assimilation), rather than the later one overwriting the
// earlier as happens for every other named declaration kind.
func (m *Method) Assimilate(other *Method) {
	for _, name := range other.overloadContext.Names() {
		child, _ := other.overloadContext.Get(name)
		m.AddOverload(child)
	}
}

// Copy preserves each overload's concrete kind (a plain *Function, or a
// *Constructor once NewClass has wrapped it) rather than assuming every
// overload is a bare *Function.
func (m *Method) Copy() Node {
	copied := &Method{boundNode: boundNode{name: m.name}}
	copied.overloadContext = NewContext(copied)
	for _, name := range m.overloadContext.Names() {
		child, _ := m.overloadContext.Get(name)
		copied.overloadContext.Add(name, child.Copy())
	}
	return copied
}

// ResolveCall collects every overload compatible with call. A single match
// resolves normally; more than one is only tolerated inside a dependent
// scope, where the ambiguity is expected to collapse once specialization
// pins down the caller's own dependent slots.
func (m *Method) ResolveCall(ctx *VerifyContext, call *FunctionType) (Node, error) {
	var matches []Node
	for _, child := range m.overloadContext.Children() {
		match, err := child.ResolveCall(ctx, call)
		if err == nil {
			matches = append(matches, match)
		}
	}

	if len(matches) < 1 {
		return nil, &TypeError{Message: fmt.Sprintf("method %s is not compatible with %s", m.name, describeFunctionType(call))}
	}
	if len(matches) > 1 {
		if fn, ok := ctx.EnclosingFunction(); !ok || !fn.Dependent {
			return nil, &AmbiguousOverloadError{Method: m.name}
		}
	}
	return matches[0], nil
}

//
// Class
//

// Class is both a scope and a type: its instance context lists the
// attributes and methods available on a value of the class, and its
// constructor overload set produces new instances.
type Class struct {
	boundNode
	Constructor     *Method
	instanceContext *Context
	verified        bool
}

// NewClass builds a class named name. constructor's overloads are wrapped
// as Constructors bound into the instance context as a fake child (visible
// to resolveReference, not enumerated as an attribute).
func NewClass(name string, constructor *Method, attributes []Node) (*Class, error) {
	c := &Class{boundNode: boundNode{name: name}}
	c.instanceContext = NewContext(c)
	for _, a := range attributes {
		if named, ok := a.(Named); ok {
			c.instanceContext.Add(named.Name(), a)
		}
	}

	if constructor != nil {
		c.Constructor = constructor
		// Overloads arrive as plain *Function the first time a class is
		// built from parsed source; Class.Copy instead passes a Method
		// whose overloads are already *Constructor (Method.Copy preserves
		// their concrete kind) and need no re-wrapping.
		for _, name := range constructor.overloadContext.Names() {
			child, _ := constructor.overloadContext.Get(name)
			fn, ok := child.(*Function)
			if !ok {
				continue
			}
			ctor, err := NewConstructor(fn, NewClassType(c))
			if err != nil {
				return nil, err
			}
			constructor.overloadContext.Add(name, ctor)
		}
		constructor.SetBoundContext(c.instanceContext)
	}

	return c, nil
}

func (c *Class) Verify(ctx *VerifyContext) error {
	if c.verified {
		return nil
	}
	c.verified = true

	return ctx.EnterScope(c, func() error {
		if c.Constructor != nil {
			if err := c.Constructor.Verify(ctx); err != nil {
				return err
			}
		}
		for _, child := range c.instanceContext.Children() {
			if err := child.Verify(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Class) ResolveType() (Type, error) {
	return nil, &InternalError{Message: "Class has no type of its own; it is one"}
}
func (c *Class) ResolveValue() Node        { return c }
func (c *Class) LocalContext() *Context    { return c.instanceContext }
func (c *Class) InstanceContext() *Context { return c.instanceContext }

func (c *Class) ResolveCall(ctx *VerifyContext, call *FunctionType) (Node, error) {
	if c.Constructor == nil {
		return nil, &TypeError{Message: fmt.Sprintf("class %s does not have a constructor", c.name)}
	}
	// The constructor's return type was already pinned to NewClassType(c)
	// by NewConstructor, and Function.Copy carries ReturnType through
	// specialization, so the resolved call's return type needs no
	// restamping here.
	return c.Constructor.ResolveCall(ctx, call)
}

// CheckCompatibility satisfies Type: another type is compatible with a
// class only when it resolves to this exact class, whether named directly
// (a bare reference to the class) or wrapped in a ClassType (an
// instance-producing call's return type).
func (c *Class) CheckCompatibility(other Type) bool {
	switch o := other.ResolveValue().(type) {
	case *ClassType:
		return o.Class == c
	case *Class:
		return o == c
	default:
		return false
	}
}

func (c *Class) Copy() Node {
	attrs := make([]Node, 0, len(c.instanceContext.Children()))
	for _, child := range c.instanceContext.Children() {
		attrs = append(attrs, child.Copy())
	}
	var ctorCopy *Method
	if c.Constructor != nil {
		ctorCopy = c.Constructor.Copy().(*Method)
	}
	copied, _ := NewClass(c.name, ctorCopy, attrs)
	return copied
}

//
// Constructor
//

// Constructor is a Function specialized to build instances of constructing:
// it must declare no explicit return type (one is installed implicitly) and
// must not contain a Return.
type Constructor struct {
	*Function
}

func NewConstructor(fn *Function, constructing Type) (*Constructor, error) {
	if fn.Type.ReturnType != nil {
		return nil, &TypeError{Message: "constructors must not declare a return type"}
	}
	fn.Type.ReturnType = constructing
	c := &Constructor{Function: fn}
	fn.verifySelfHook = c.verifySelf
	return c, nil
}

// verifySelf rejects any Return instruction anywhere in the constructor
// body, replacing Function's default "must return on every path" check.
func (c *Constructor) verifySelf() error {
	var containsReturn func(instrs []Node) bool
	containsReturn = func(instrs []Node) bool {
		for _, instr := range instrs {
			switch n := instr.(type) {
			case *Return:
				return true
			case *Branch:
				if containsReturn(n.TrueInstructions) || containsReturn(n.FalseInstructions) {
					return true
				}
			case *Loop:
				if containsReturn(n.Instructions) {
					return true
				}
			}
		}
		return false
	}
	if containsReturn(c.Instructions) {
		return &SemanticError{Message: "return is invalid inside a constructor"}
	}
	return nil
}

// ResolveCall is defined directly on Constructor, rather than relying on
// Function's promoted implementation, because a dependent constructor's
// specialization must come back wrapped as a *Constructor again (forbidding
// Return, carrying the constructing ClassType) - Function.ResolveCall's
// f.Copy() call is bound to *Function and has no way to know the outer
// type exists.
func (c *Constructor) ResolveCall(ctx *VerifyContext, call *FunctionType) (Node, error) {
	ownType, _ := c.ResolveType()
	if !checkCompatibility(ownType, call) {
		return nil, &TypeError{Message: fmt.Sprintf("%s is not compatible with %s", c.name, describeFunctionType(call))}
	}
	if !c.Dependent {
		return c, nil
	}

	constructing := c.Type.ReturnType
	specializedFn := c.Function.Copy().(*Function)
	specializedFn.Type.ReturnType = nil
	for i, arg := range specializedFn.Arguments {
		if dep, ok := arg.Typ.(*DependentType); ok {
			dep.Resolve(call.Arguments[i])
			specializedFn.Type.Arguments[i] = call.Arguments[i]
		}
	}

	specialized, err := NewConstructor(specializedFn, constructing)
	if err != nil {
		return nil, err
	}
	if err := specialized.Verify(ctx); err != nil {
		return nil, err
	}
	return specialized, nil
}

func (c *Constructor) Copy() Node {
	fn := c.Function.Copy().(*Function)
	fn.Type.ReturnType = nil
	ctor, _ := NewConstructor(fn, c.Type.ReturnType)
	return ctor
}

//
// Loop / Break / Branch
//

// Loop is an unconditional instruction block, broken out of only by a
// nested Break targeting it.
type Loop struct {
	baseNode
	Instructions []Node
	function     *Function
}

func NewLoop(instructions []Node, tokens []Token) *Loop {
	return &Loop{baseNode: baseNode{tokens: tokens}, Instructions: instructions}
}

func (l *Loop) Verify(ctx *VerifyContext) error {
	fn, ok := ctx.EnclosingFunction()
	if !ok {
		return &SyntaxError{Message: "loop is not valid outside a function", Toks: l.tokens}
	}
	l.function = fn

	return ctx.EnterSoft(l, func() error {
		for _, instr := range l.Instructions {
			if err := instr.Verify(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Loop) ResolveType() (Type, error) { return nil, nil }
func (l *Loop) ResolveValue() Node         { return l }
func (l *Loop) Copy() Node                 { return NewLoop(copyNodes(l.Instructions), l.tokens) }

// Break exits the nearest enclosing Loop within the current hard scope.
type Break struct {
	baseNode
	loop *Loop
}

func NewBreak(tokens []Token) *Break { return &Break{baseNode: baseNode{tokens: tokens}} }

func (b *Break) Verify(ctx *VerifyContext) error {
	loop, ok := ctx.EnclosingLoop()
	if !ok {
		return &SemanticError{Message: "break is not valid outside a loop"}
	}
	b.loop = loop
	return nil
}

func (b *Break) ResolveType() (Type, error) { return nil, nil }
func (b *Break) ResolveValue() Node         { return b }
func (b *Break) Copy() Node                 { return NewBreak(b.tokens) }

// Branch is a two-armed conditional instruction block.
type Branch struct {
	baseNode
	Condition         Node
	TrueInstructions  []Node
	FalseInstructions []Node
	function          *Function
}

func NewBranch(condition Node, trueInstrs, falseInstrs []Node, tokens []Token) *Branch {
	return &Branch{
		baseNode:          baseNode{tokens: tokens},
		Condition:         condition,
		TrueInstructions:  trueInstrs,
		FalseInstructions: falseInstrs,
	}
}

func (b *Branch) Verify(ctx *VerifyContext) error {
	fn, ok := ctx.EnclosingFunction()
	if !ok {
		return &SyntaxError{Message: "branch is not valid outside a function", Toks: b.tokens}
	}
	b.function = fn

	if err := b.Condition.Verify(ctx); err != nil {
		return err
	}

	return ctx.EnterSoft(b, func() error {
		for _, instr := range b.TrueInstructions {
			if err := instr.Verify(ctx); err != nil {
				return err
			}
		}
		for _, instr := range b.FalseInstructions {
			if err := instr.Verify(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Branch) ResolveType() (Type, error) { return nil, nil }
func (b *Branch) ResolveValue() Node         { return b }
func (b *Branch) Copy() Node {
	return NewBranch(b.Condition.Copy(), copyNodes(b.TrueInstructions), copyNodes(b.FalseInstructions), b.tokens)
}

//
// Variable
//

// Variable is a named, typed storage slot: a function argument, a local
// declared by Assignment, or a Class attribute.
type Variable struct {
	boundNode
	Typ      Type
	Constant bool
}

func NewVariable(name string, typ Type) *Variable {
	return &Variable{boundNode: boundNode{name: name}, Typ: typ}
}

// NewConstVariable builds a Variable declared with the const keyword,
// carrying a name, an optional declared type, and constness.
func NewConstVariable(name string, typ Type) *Variable {
	v := NewVariable(name, typ)
	v.Constant = true
	return v
}

func (v *Variable) Verify(ctx *VerifyContext) error {
	if v.Typ != nil {
		return v.Typ.Verify(ctx)
	}
	return nil
}

func (v *Variable) ResolveType() (Type, error) { return v.Typ, nil }
func (v *Variable) ResolveValue() Node         { return v }

// Copy deep-copies the variable's type through Type.Copy rather than
// sharing the pointer - essential for a dependent argument, whose
// DependentType.Copy resets Target to nil, so specializing one call's
// clone never pins down the type slot of another.
func (v *Variable) Copy() Node {
	var typ Type
	if v.Typ != nil {
		typ = v.Typ.Copy().(Type)
	}
	cp := NewVariable(v.name, typ)
	cp.Constant = v.Constant
	return cp
}

func (v *Variable) ResolveAttribute(ctx *VerifyContext, name string) (Node, error) {
	return defaultResolveAttribute(ctx, v, name)
}

//
// Assignment
//

// Assignment binds value to variable, declaring the variable in the
// current scope the first time it is seen and checking type compatibility
// on every subsequent assignment.
type Assignment struct {
	baseNode
	Variable *Variable
	Value    Node
}

func NewAssignment(variable *Variable, value Node, tokens []Token) *Assignment {
	return &Assignment{baseNode: baseNode{tokens: tokens}, Variable: variable, Value: value}
}

func (a *Assignment) Verify(ctx *VerifyContext) error {
	scope := ctx.CurrentScope()

	existing, err := resolveReference(ctx, a.Variable.name, nil)
	if err != nil {
		if _, isMissing := err.(*MissingReferenceError); !isMissing {
			return err
		}
		if local := scope.LocalContext(); local != nil {
			local.Add(a.Variable.name, a.Variable)
		}
	} else {
		variable, ok := existing.(*Variable)
		if !ok {
			return &TypeError{Message: fmt.Sprintf("%s is not a variable", a.Variable.name)}
		}
		if variable.Typ == nil {
			variable.Typ = a.Variable.Typ
		} else if a.Variable.Typ != nil {
			return &TypeError{Message: fmt.Sprintf("cannot override the type of variable %s", a.Variable.name)}
		}
		a.Variable = variable
	}

	if err := a.Value.Verify(ctx); err != nil {
		return err
	}
	if err := a.Variable.Verify(ctx); err != nil {
		return err
	}

	valueType, err := a.Value.ResolveType()
	if err != nil {
		return err
	}

	if a.Variable.Typ == nil {
		a.Variable.Typ = valueType
	} else if valueType == nil || !checkCompatibility(valueType, a.Variable.Typ) {
		return &TypeError{Message: fmt.Sprintf("cannot assign to %s: incompatible type", a.Variable.name)}
	}

	return nil
}

func (a *Assignment) ResolveType() (Type, error) { return nil, nil }
func (a *Assignment) ResolveValue() Node         { return a }
func (a *Assignment) Copy() Node {
	return NewAssignment(a.Variable.Copy().(*Variable), a.Value.Copy(), a.tokens)
}

//
// Call
//

// Call invokes called with values as arguments, resolving overloads and
// dependent specialization through called.ResolveCall.
type Call struct {
	baseNode
	Called Node
	Values []Node
	// ReturnHint is the optional return-type hint on a Call
	// node, set by the parser only for an explicit cast (`v as T`) so
	// overload resolution can pick the cast overload matching T.
	ReturnHint Type
	function   Node
}

func NewCall(called Node, values []Node, tokens []Token) *Call {
	return &Call{baseNode: baseNode{tokens: tokens}, Called: called, Values: values}
}

// WithReturnHint sets the call's return-type hint and returns the receiver,
// for use at the parser's construction site.
func (c *Call) WithReturnHint(t Type) *Call {
	c.ReturnHint = t
	return c
}

func (c *Call) Verify(ctx *VerifyContext) error {
	if err := c.Called.Verify(ctx); err != nil {
		return err
	}

	argTypes := make([]Type, len(c.Values))
	for i, val := range c.Values {
		if err := val.Verify(ctx); err != nil {
			return err
		}
		t, err := val.ResolveType()
		if err != nil {
			return err
		}
		argTypes[i] = t
	}
	callType := NewFunctionType("", argTypes, c.ReturnHint)

	fn, err := c.Called.ResolveCall(ctx, callType)
	if err != nil {
		return err
	}
	c.function = fn
	return nil
}

func (c *Call) ResolveType() (Type, error) {
	t, err := c.function.ResolveType()
	if err != nil {
		return nil, err
	}
	ft, ok := t.(*FunctionType)
	if !ok {
		return nil, &InternalError{Message: "call target resolved to a non-function type"}
	}
	return ft.ReturnType, nil
}

func (c *Call) ResolveValue() Node { return c }
func (c *Call) Copy() Node {
	return NewCall(c.Called.Copy(), copyNodes(c.Values), c.tokens).WithReturnHint(c.ReturnHint)
}

func (c *Call) ResolveAttribute(ctx *VerifyContext, name string) (Node, error) {
	return defaultResolveAttribute(ctx, c, name)
}

//
// Literal
//

// Literal is a constant value of a fixed type: an integer, string, or
// boolean token turned directly into IR by the parser.
type Literal struct {
	baseNode
	Data string
	Typ  Type
}

func NewLiteral(data string, typ Type, tokens []Token) *Literal {
	return &Literal{baseNode: baseNode{tokens: tokens}, Data: data, Typ: typ}
}

func (l *Literal) Verify(ctx *VerifyContext) error { return l.Typ.Verify(ctx) }
func (l *Literal) ResolveType() (Type, error)      { return l.Typ, nil }
func (l *Literal) ResolveValue() Node              { return l }
func (l *Literal) Copy() Node                      { return l }

func (l *Literal) ResolveAttribute(ctx *VerifyContext, name string) (Node, error) {
	return defaultResolveAttribute(ctx, l, name)
}

//
// Reference / Attribute
//

// Reference is a by-name link to a binding visible from the current scope,
// resolved once via resolveReference and cached.
type Reference struct {
	baseNode
	Name     string
	value    Node
	verified bool
}

func NewReference(name string, tokens []Token) *Reference {
	return &Reference{baseNode: baseNode{tokens: tokens}, Name: name}
}

func (r *Reference) Verify(ctx *VerifyContext) error {
	if r.verified {
		return nil
	}
	r.verified = true

	value, err := resolveReference(ctx, r.Name, nil)
	if err != nil {
		return err
	}
	r.value = value
	return r.value.Verify(ctx)
}

func (r *Reference) ResolveType() (Type, error) { return r.value.ResolveType() }
func (r *Reference) ResolveValue() Node         { return r.value.ResolveValue() }
func (r *Reference) LocalContext() *Context     { return r.value.LocalContext() }
func (r *Reference) GlobalContext() *Context    { return r.value.GlobalContext() }
func (r *Reference) InstanceContext() *Context  { return r.value.InstanceContext() }
func (r *Reference) Copy() Node                 { return NewReference(r.Name, r.tokens) }

func (r *Reference) ResolveCall(ctx *VerifyContext, ft *FunctionType) (Node, error) {
	return r.value.ResolveCall(ctx, ft)
}

func (r *Reference) ResolveAttribute(ctx *VerifyContext, name string) (Node, error) {
	return r.value.ResolveAttribute(ctx, name)
}

func (r *Reference) CheckCompatibility(other Type) bool {
	t, ok := r.value.(Type)
	return ok && t.CheckCompatibility(other)
}

// Attribute resolves reference against value's attribute set once value
// has verified.
type Attribute struct {
	baseNode
	Value     Node
	Reference string
	attribute Node
	verified  bool
}

func NewAttribute(value Node, reference string, tokens []Token) *Attribute {
	return &Attribute{baseNode: baseNode{tokens: tokens}, Value: value, Reference: reference}
}

func (a *Attribute) Verify(ctx *VerifyContext) error {
	if a.verified {
		return nil
	}
	a.verified = true

	if err := a.Value.Verify(ctx); err != nil {
		return err
	}

	attr, err := a.Value.ResolveAttribute(ctx, a.Reference)
	if err != nil {
		return err
	}
	a.attribute = attr
	return nil
}

func (a *Attribute) ResolveType() (Type, error) { return a.attribute.ResolveType() }
func (a *Attribute) ResolveValue() Node         { return a.attribute.ResolveValue() }
func (a *Attribute) LocalContext() *Context     { return a.attribute.LocalContext() }
func (a *Attribute) GlobalContext() *Context    { return a.attribute.GlobalContext() }
func (a *Attribute) InstanceContext() *Context  { return a.attribute.InstanceContext() }
func (a *Attribute) Copy() Node                 { return NewAttribute(a.Value.Copy(), a.Reference, a.tokens) }

func (a *Attribute) ResolveCall(ctx *VerifyContext, ft *FunctionType) (Node, error) {
	return a.attribute.ResolveCall(ctx, ft)
}

func (a *Attribute) ResolveAttribute(ctx *VerifyContext, name string) (Node, error) {
	return a.attribute.ResolveAttribute(ctx, name)
}

func (a *Attribute) CheckCompatibility(other Type) bool {
	t, ok := a.attribute.(Type)
	return ok && t.CheckCompatibility(other)
}

//
// Return
//

// Return exits the enclosing Function with value, inferring the
// function's return type on the first return seen and checking
// compatibility on every subsequent one.
type Return struct {
	baseNode
	Value    Node
	function *Function
}

func NewReturn(value Node, tokens []Token) *Return {
	return &Return{baseNode: baseNode{tokens: tokens}, Value: value}
}

func (r *Return) Verify(ctx *VerifyContext) error {
	fn, ok := ctx.EnclosingFunction()
	if !ok {
		return &SyntaxError{Message: "return is not valid outside a function", Toks: r.tokens}
	}
	r.function = fn

	var valueType Type
	if r.Value != nil {
		if err := r.Value.Verify(ctx); err != nil {
			return err
		}
		t, err := r.Value.ResolveType()
		if err != nil {
			return err
		}
		valueType = t
	}

	if fn.Type.ReturnType == nil {
		fn.Type.ReturnType = valueType
	} else if valueType == nil || !checkCompatibility(fn.Type.ReturnType, valueType) {
		return &TypeError{Message: fmt.Sprintf("return value is not compatible with %s's declared return type", fn.name)}
	}
	return nil
}

func (r *Return) ResolveType() (Type, error) { return nil, nil }
func (r *Return) ResolveValue() Node         { return r }
func (r *Return) Copy() Node {
	var value Node
	if r.Value != nil {
		value = r.Value.Copy()
	}
	return NewReturn(value, r.tokens)
}

//
// Comment
//

// Comment carries source-level metadata through the IR without affecting
// verification or codegen.
type Comment struct {
	baseNode
	Contents string
}

func NewComment(contents string, tokens []Token) *Comment {
	return &Comment{baseNode: baseNode{tokens: tokens}, Contents: contents}
}

func (c *Comment) Verify(ctx *VerifyContext) error { return nil }
func (c *Comment) ResolveType() (Type, error)      { return nil, nil }
func (c *Comment) ResolveValue() Node              { return c }
func (c *Comment) Copy() Node                      { return NewComment(c.Contents, c.tokens) }

//
// Import
//

// Import records a dotted module path and an optional alias. Verify
// succeeds only once Bind has attached a module, and then verifies that
// module; nothing in this package calls Bind, and an Import adds no name to
// any context.
type Import struct {
	baseNode
	Path   []string
	Alias  string
	module *Module
}

func NewImport(path []string, alias string, tokens []Token) *Import {
	return &Import{baseNode: baseNode{tokens: tokens}, Path: path, Alias: alias}
}

func (i *Import) Bind(m *Module) { i.module = m }

func (i *Import) Verify(ctx *VerifyContext) error {
	if i.module == nil {
		return &MissingReferenceError{Name: fmt.Sprintf("%v", i.Path), Loc: loc(i.tokens)}
	}
	return i.module.Verify(ctx)
}

func (i *Import) ResolveType() (Type, error) { return nil, nil }
func (i *Import) ResolveValue() Node         { return i }
func (i *Import) Copy() Node                 { return NewImport(i.Path, i.Alias, i.tokens) }
