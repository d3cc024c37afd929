package maqui

// Node is the uniform interface implemented by every IR entity, both values
// (expression-like, yield a type once resolved) and instructions
// (statement-like, yield none). The verifier is expressed
// entirely in terms of these operations: concrete variants override only
// the operations that apply to them, inheriting sensible failing defaults
// from baseNode for the rest.
type Node interface {
	// Verify performs semantic verification of the node within ctx, mutating
	// the node in place (binding references, inferring types, selecting
	// overloads, specializing dependent functions).
	Verify(ctx *VerifyContext) error

	// ResolveType returns the node's type once verified. Instructions return
	// (nil, nil).
	ResolveType() (Type, error)

	// ResolveValue returns the ultimate resolved node. For most variants this
	// is the node itself; References and Attributes resolve transitively
	// through their target.
	ResolveValue() Node

	// ResolveCall returns a concrete callable that matches ft, or a TypeError
	// if the node cannot be called with that signature. The default
	// implementation on baseNode always fails - callable variants
	// (Function, ExternalFunction, Method, Class, Reference, Attribute)
	// override it.
	ResolveCall(ctx *VerifyContext, ft *FunctionType) (Node, error)

	// ResolveAttribute resolves name in the union of the node's instance and
	// global contexts, instance taking preference.
	ResolveAttribute(ctx *VerifyContext, name string) (Node, error)

	// LocalContext, GlobalContext and InstanceContext are the three context
	// accessors every variant implements. They return nil when not applicable
	// to the variant.
	LocalContext() *Context
	GlobalContext() *Context
	InstanceContext() *Context

	// Copy returns an unverified deep copy, used when specializing a
	// dependent function for a call site.
	Copy() Node

	// TokenList returns the tokens that produced this node, for diagnostics.
	TokenList() []Token
}

// baseNode supplies the common failing defaults for operations that only
// apply to a subset of node variants, and carries the originating token
// list every node keeps for diagnostics. Concrete variants embed it and
// override whichever operations their kind supports.
type baseNode struct {
	tokens []Token
}

func (n *baseNode) TokenList() []Token { return n.tokens }

func (n *baseNode) ResolveValue() Node { return nil }

func (n *baseNode) ResolveCall(ctx *VerifyContext, ft *FunctionType) (Node, error) {
	return nil, &TypeError{Message: "object is not callable"}
}

func (n *baseNode) ResolveAttribute(ctx *VerifyContext, name string) (Node, error) {
	return nil, &MissingReferenceError{Name: name}
}

func (n *baseNode) LocalContext() *Context    { return nil }
func (n *baseNode) GlobalContext() *Context   { return nil }
func (n *baseNode) InstanceContext() *Context { return nil }

// Named is implemented by every BoundObject-like node: one that carries a
// declared name and a back-reference to the context it was bound into.
// Context.Add wires the back-reference automatically whenever such a node
// is added as a child.
type Named interface {
	Node
	Name() string
	BoundContext() *Context
	SetBoundContext(*Context)
}

// boundNode is embedded by every node variant that can be looked up by name
// inside a Context (Module, Function, ExternalFunction, Method, Class,
// Constructor, Variable).
type boundNode struct {
	baseNode
	name         string
	boundContext *Context
}

func (n *boundNode) Name() string               { return n.name }
func (n *boundNode) BoundContext() *Context     { return n.boundContext }
func (n *boundNode) SetBoundContext(c *Context) { n.boundContext = c }

// loc is a small helper returning the Location of the first token, or nil.
func loc(tokens []Token) *Location {
	if len(tokens) == 0 {
		return nil
	}
	return tokens[0].Loc
}

// Context is an ordered mapping from name to bound child, plus a
// back-reference to the owning scope. Lookup order follows declaration
// order, so overload/attribute enumeration is deterministic.
type Context struct {
	scope    Node
	order    []string
	children map[string]Node
}

// NewContext creates an empty context owned by scope.
func NewContext(scope Node) *Context {
	return &Context{scope: scope, children: map[string]Node{}}
}

// Scope returns the node that owns this context.
func (c *Context) Scope() Node { return c.scope }

// Add binds name to child, appending it to declaration order if it is new.
// If child implements Named, its back-reference is wired to c - this is
// what lets resolveReference walk back up from a bound node to the
// context it was declared in.
func (c *Context) Add(name string, child Node) {
	if _, exists := c.children[name]; !exists {
		c.order = append(c.order, name)
	}
	c.children[name] = child

	if named, ok := child.(Named); ok {
		named.SetBoundContext(c)
	}
}

// Get returns the child bound to name, if any.
func (c *Context) Get(name string) (Node, bool) {
	n, ok := c.children[name]
	return n, ok
}

// Contains reports whether name is bound in this context.
func (c *Context) Contains(name string) bool {
	_, ok := c.children[name]
	return ok
}

// Names returns every bound name, in declaration order.
func (c *Context) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Children returns every bound child, in declaration order.
func (c *Context) Children() []Node {
	out := make([]Node, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.children[name])
	}
	return out
}

// union returns a context combining preferred and fallback, preferring
// preferred's bindings on a name collision - used to implement the instance-before-global
// preference order of attribute resolution.
func union(preferred, fallback *Context) *Context {
	if preferred == nil {
		return fallback
	}
	if fallback == nil {
		return preferred
	}

	merged := NewContext(preferred.scope)
	for _, name := range fallback.order {
		merged.Add(name, fallback.children[name])
	}
	for _, name := range preferred.order {
		merged.Add(name, preferred.children[name])
	}
	return merged
}
