package maqui

// Builtins constructs the implicit root module every other module resolves
// against once its own scope chain is exhausted: the four primitive classes
// (Int, Bool, String, Real), each exposing its arithmetic/comparison
// operators as a Method of a single ExternalFunction overload bound to a
// runtime-supplied symbol, plus a nested io module declaring print.
// Operator methods are named after the literal operator spelling ("+",
// "==", and so on), the same name the parser puts on the Attribute of an
// operator expression and on a user's own `def self + rhs -> T`
// declaration.
func Builtins() *Module {
	intClass, _ := NewClass("Int", nil, nil)
	boolClass, _ := NewClass("Bool", nil, nil)
	stringClass, _ := NewClass("String", nil, nil)
	realClass, _ := NewClass("Real", nil, nil)

	installArithmetic(intClass, "int")
	installArithmetic(realClass, "real")
	installComparison(intClass, "int", boolClass)
	installComparison(realClass, "real", boolClass)
	installEquality(stringClass, "string", boolClass)
	installEquality(boolClass, "bool", boolClass)
	installLogic(boolClass)

	installOperator(stringClass, "+", "lang.string.concat", stringClass, stringClass)

	printFn := NewExternalFunction("print", "lang.io.print", []Type{NewClassType(stringClass)}, NewClassType(intClass))
	ioModule := NewModule("io", []Node{printFn}, nil)

	return NewModule("builtins", []Node{intClass, boolClass, stringClass, realClass, ioModule}, nil)
}

// installOperator binds a single-overload operator Method named name onto
// class, backed by an ExternalFunction with linkage symbol. A later user
// overload of the same operator name is added with Method.AddOverload, not
// by calling this again.
func installOperator(class *Class, name, symbol string, argClass, returnClass *Class) {
	ext := NewExternalFunction(name, symbol, []Type{NewClassType(argClass)}, NewClassType(returnClass))
	method := NewMethod(name, []Node{ext})
	class.instanceContext.Add(name, method)
}

// installArithmetic wires +, -, *, /, // and % onto class, each returning
// class itself, with external symbols namespaced under prefix.
func installArithmetic(class *Class, prefix string) {
	ops := []struct {
		name   string
		suffix string
	}{
		{"+", "add"},
		{"-", "sub"},
		{"*", "mul"},
		{"/", "div"},
		{"//", "idiv"},
		{"%", "mod"},
	}
	for _, op := range ops {
		installOperator(class, op.name, "lang."+prefix+"."+op.suffix, class, class)
	}
}

// installComparison wires <, <=, >, >= onto class, returning boolClass.
func installComparison(class *Class, prefix string, boolClass *Class) {
	ops := []struct {
		name   string
		suffix string
	}{
		{"<", "lt"},
		{"<=", "le"},
		{">", "gt"},
		{">=", "ge"},
	}
	for _, op := range ops {
		installOperator(class, op.name, "lang."+prefix+"."+op.suffix, class, boolClass)
	}
	installEquality(class, prefix, boolClass)
}

// installEquality wires == and != onto class, returning boolClass.
func installEquality(class *Class, prefix string, boolClass *Class) {
	installOperator(class, "==", "lang."+prefix+".eq", class, boolClass)
	installOperator(class, "!=", "lang."+prefix+".ne", class, boolClass)
}

// installLogic wires && and || onto Bool.
func installLogic(boolClass *Class) {
	installOperator(boolClass, "&&", "lang.bool.and", boolClass, boolClass)
	installOperator(boolClass, "||", "lang.bool.or", boolClass, boolClass)
}
