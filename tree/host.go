// Package tree defines the boundary between the profiler and the host that
// owns the live object tree being observed.
package tree

import "time"

// Node is an opaque handle to a live object. Handles are compared with ==,
// so hosts hand out pointers; two handles are the same node only when they
// are the same reference.
type Node any

// Forest enumerates the current structure of the observed tree.
type Forest interface {
	// Roots returns the top-level nodes in order.
	Roots() []Node

	// Children returns the children of n in order.
	Children(n Node) []Node

	// IsComposite tells whether n is a composite (component-like) entity.
	IsComposite(n Node) bool

	// Name returns a human readable name for n.
	Name(n Node) string
}

// Notifier delivers "subtree structurally changed" notifications. The host
// batches structural changes and calls the subscribers asynchronously.
type Notifier interface {
	Subscribe(fn func()) (unsubscribe func())
}

// Operation is an executable binding. The receiver is the node the operation
// runs on behalf of.
type Operation func(receiver Node, args ...any) (any, error)

// Slot is a replaceable binding that holds an Operation. A slot may be shared
// by several nodes, for example the render operation of a composite type is
// shared by all its instances.
type Slot interface {
	// Name returns the name of the bound operation.
	Name() string

	// Operation returns the operation currently bound.
	Operation() Operation

	// SetOperation replaces the bound operation.
	SetOperation(op Operation)

	// Patch returns the record of the decorator currently installed on the
	// slot, nil if the slot holds its own operation.
	Patch() any

	// SetPatch attaches a decorator record to the slot. nil detaches it.
	SetPatch(p any)
}

// Bindings exposes the slots of a node that can be instrumented.
type Bindings interface {
	// CompositeSlot returns the slot of the composite operation (render /
	// change detection) of n, if any.
	CompositeSlot(n Node) (Slot, bool)

	// LifecycleSlots returns the named lifecycle operations of n.
	LifecycleSlots(n Node) []Slot
}

// Deferrer runs a callback once, after the current synchronous work and at
// least delay later.
type Deferrer interface {
	Defer(delay time.Duration, fn func())
}

// SourceTeller can describe what triggered the current turn of work.
type SourceTeller interface {
	CurrentSource() string
}

// Host is everything the profiler needs from the environment.
type Host interface {
	Forest
	Notifier
	Bindings
	Deferrer
}
