package maqui

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// VerifyContext is an explicit, non-ambient verification state: every
// verification entry point threads one through rather than reaching into
// package-level mutable fields, so two verification runs never interfere
// even if driven concurrently (the CLI driver does exactly that across
// source files with an errgroup).
//
// hardScope is the function/class/module whose LocalContext bounds name
// resolution and whose return type references are checked against.
// softScope is the stack of nested loops and branches within the current
// hard scope, reset every time a new hard scope is entered.
type VerifyContext struct {
	Builtins *Module
	Logger   zerolog.Logger
	RunID    uuid.UUID

	hardScope []Node
	softScope [][]Node
}

// NewVerifyContext creates a VerifyContext against builtins, stamping a
// fresh run ID for correlating the diagnostics of a single verification
// pass in the logger output.
func NewVerifyContext(builtins *Module, logger zerolog.Logger) *VerifyContext {
	runID := uuid.New()
	return &VerifyContext{
		Builtins: builtins,
		Logger:   logger.With().Str("run_id", runID.String()).Logger(),
		RunID:    runID,
	}
}

// CurrentScope returns the innermost hard scope, or Builtins if none has
// been entered yet.
func (ctx *VerifyContext) CurrentScope() Node {
	if len(ctx.hardScope) == 0 {
		return ctx.Builtins
	}
	return ctx.hardScope[len(ctx.hardScope)-1]
}

// EnterScope pushes scope as the new hard scope for the duration of fn,
// with a fresh, empty soft scope stack, per State.scoped.
func (ctx *VerifyContext) EnterScope(scope Node, fn func() error) error {
	ctx.hardScope = append(ctx.hardScope, scope)
	ctx.softScope = append(ctx.softScope, nil)
	defer func() {
		ctx.hardScope = ctx.hardScope[:len(ctx.hardScope)-1]
		ctx.softScope = ctx.softScope[:len(ctx.softScope)-1]
	}()
	return fn()
}

// EnterSoft pushes scope onto the current hard scope's soft scope stack for
// the duration of fn, per State.softScoped. Used by Loop and Branch to make
// themselves visible to a nested Break's enclosing-loop search.
func (ctx *VerifyContext) EnterSoft(scope Node, fn func() error) error {
	top := len(ctx.softScope) - 1
	ctx.softScope[top] = append(ctx.softScope[top], scope)
	defer func() {
		ctx.softScope[top] = ctx.softScope[top][:len(ctx.softScope[top])-1]
	}()
	return fn()
}

// EnclosingLoop returns the nearest *Loop on the current soft scope stack,
// searched innermost-first, per Break._getSoftScope.
func (ctx *VerifyContext) EnclosingLoop() (*Loop, bool) {
	if len(ctx.softScope) == 0 {
		return nil, false
	}
	stack := ctx.softScope[len(ctx.softScope)-1]
	for i := len(stack) - 1; i >= 0; i-- {
		if l, ok := stack[i].(*Loop); ok {
			return l, true
		}
	}
	return nil, false
}

// EnclosingFunction returns the current hard scope as a *Function, if it is
// one - used by Return and Branch/Loop to reject use outside a function
// body.
func (ctx *VerifyContext) EnclosingFunction() (*Function, bool) {
	f, ok := ctx.CurrentScope().(*Function)
	return f, ok
}

// blockDefinitelyReturns reports whether every control path through
// instructions ends in a Return, computed as a pure function over the
// instruction list rather than an ambient flag mutated during traversal.
// A Branch definitely returns only if both its arms do; any instruction
// after one that definitely returns is unreachable but does not change the
// verdict.
func blockDefinitelyReturns(instructions []Node) bool {
	for _, instr := range instructions {
		switch n := instr.(type) {
		case *Return:
			return true
		case *Branch:
			if blockDefinitelyReturns(n.TrueInstructions) && blockDefinitelyReturns(n.FalseInstructions) {
				return true
			}
		}
	}
	return false
}

// Verify runs semantic verification of module against builtins, logging
// through logger. It is the single entry point the compiler driver calls
// after parsing; everything else in this file exists to support it.
func Verify(module *Module, builtins *Module, logger zerolog.Logger) error {
	ctx := NewVerifyContext(builtins, logger)
	ctx.Logger.Debug().Str("module", module.name).Msg("verifying module")
	return module.Verify(ctx)
}
