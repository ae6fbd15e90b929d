// Package hooking defines the hook points through which observers, sessions and
// tracers exchange node events, measurements and frames.
package hooking

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	// Domain is the hookable object that is raising this hook.
	Domain Hookable

	// Pos identifies the stage the hook is firing from.
	Pos *HookPos

	// Item carries the primary subject associated with the hook (node event,
	// measurement, frame).
	Item any

	// Detail holds optional auxiliary data; hook sites may leave it nil.
	Detail any
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// RemoveHook unregisters a hook. Removing a hook that is not registered
	// is a no-op.
	RemoveHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook

	// InvokeHook triggers the registered Hooks.
	InvokeHook(ctx HookCtx)
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function to the Hook interface. Since functions are
// not comparable, a HookFunc must be registered through a pointer if it is
// ever going to be removed.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	hookList []Hook
}

// NewHookableBase creates a HookableBase object.
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.hookList = make([]Hook, 0)

	return h
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook register a hook.
//
// Hooks are registered and removed from the same goroutine that invokes them.
// Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

// RemoveHook unregisters a hook.
func (h *HookableBase) RemoveHook(hook Hook) {
	kept := make([]Hook, 0, len(h.hookList))
	for _, registered := range h.hookList {
		if registered != hook {
			kept = append(kept, registered)
		}
	}

	h.hookList = kept
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	for _, registered := range h.hookList {
		if registered == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the register Hooks. Hooks added or removed while the
// hooks are being invoked only take effect from the next invocation on.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	hooks := h.hookList
	for _, hook := range hooks {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
