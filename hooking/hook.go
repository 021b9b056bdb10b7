// Package hooking lets observers attach to traced execution without the
// traced code knowing who is listening.
package hooking

// Pos identifies a position in the instrumented code where hooks can fire.
type Pos struct {
	Name string
}

// Ctx holds all the information about the site that triggered a hook.
type Ctx struct {
	Domain Hookable
	Pos    *Pos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accepts Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx Ctx)
}

// A Base carries the hook bookkeeping for types that implement Hookable.
// The zero value is ready to use.
type Base struct {
	hooks []Hook
}

// NumHooks returns the number of hooks registered.
func (b *Base) NumHooks() int {
	return len(b.hooks)
}

// Hooks returns all the hooks registered.
func (b *Base) Hooks() []Hook {
	return b.hooks
}

// AcceptHook registers a hook. Registering the same hook twice panics.
func (b *Base) AcceptHook(hook Hook) {
	b.mustNotHaveDuplicatedHook(hook)
	b.hooks = append(b.hooks, hook)
}

func (b *Base) mustNotHaveDuplicatedHook(hook Hook) {
	for _, h := range b.hooks {
		if h == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the registered hooks in registration order.
func (b *Base) InvokeHook(ctx Ctx) {
	for _, hook := range b.hooks {
		hook.Func(ctx)
	}
}
