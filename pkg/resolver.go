package maqui

// resolveReference walks the scope chain starting at ctx.CurrentScope(),
// checking one scope's LocalContext at a time and continuing upward through
// each scope's bound context until the builtins module is reached. The
// first scope level that binds name wins - an inner binding (a function
// argument, say) shadows an outer one of the same name (a class attribute)
// rather than competing with it, since a single Context can never itself
// bind a name twice. exclude, if non-nil, is skipped at the level it would
// otherwise match, so the walk falls through to an outer scope's binding of
// the same name instead; the callers in this package pass nil.
func resolveReference(ctx *VerifyContext, name string, exclude Node) (Node, error) {
	scope := ctx.CurrentScope()
	for {
		if local := scope.LocalContext(); local != nil {
			if child, ok := local.Get(name); ok && child != exclude {
				return child, nil
			}
		}

		if scope == Node(ctx.Builtins) {
			break
		}

		named, ok := scope.(Named)
		if ok && named.BoundContext() != nil {
			scope = named.BoundContext().Scope()
		} else {
			scope = ctx.Builtins
		}
	}

	return nil, &MissingReferenceError{Name: name}
}

// defaultResolveAttribute implements the uniform attribute lookup rule: the
// instance context of n's resolved type, unioned with n's own global
// context (instance bindings taking preference on a name collision).
// Concrete node variants that produce a value delegate here, passing
// themselves as n, since Go's embedding has no way to let baseNode see the
// outer type's overrides.
func defaultResolveAttribute(ctx *VerifyContext, n Node, name string) (Node, error) {
	value := n.ResolveValue()
	if value == nil {
		value = n
	}

	typ, err := value.ResolveType()
	if err != nil {
		return nil, err
	}

	var instance *Context
	if typ != nil {
		instance = typ.InstanceContext()
	}

	context := union(instance, value.GlobalContext())
	if context != nil {
		if child, ok := context.Get(name); ok {
			return child, nil
		}
	}

	return nil, &MissingReferenceError{Name: name, Loc: loc(n.TokenList())}
}

// inScope reports whether object is scope itself, or lies within scope by
// walking up scope's bound-context chain. Nothing in this package calls it.
func inScope(object Node, scope Node) bool {
	for scope != nil {
		if object == scope {
			return true
		}
		named, ok := scope.(Named)
		if !ok || named.BoundContext() == nil {
			return false
		}
		scope = named.BoundContext().Scope()
	}
	return false
}
