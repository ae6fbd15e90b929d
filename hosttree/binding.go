package hosttree

import "github.com/sarchlab/framescope/tree"

// Binding is a replaceable operation slot.
type Binding struct {
	name  string
	op    tree.Operation
	patch any
}

// NewBinding creates a binding holding op. A nil op does nothing.
func NewBinding(name string, op tree.Operation) *Binding {
	if op == nil {
		op = func(tree.Node, ...any) (any, error) { return nil, nil }
	}

	return &Binding{name: name, op: op}
}

// Name returns the name of the bound operation.
func (b *Binding) Name() string {
	return b.name
}

// Operation returns the bound operation.
func (b *Binding) Operation() tree.Operation {
	return b.op
}

// SetOperation replaces the bound operation.
func (b *Binding) SetOperation(op tree.Operation) {
	b.op = op
}

// Patch returns the decorator record attached to the binding.
func (b *Binding) Patch() any {
	return b.patch
}

// SetPatch attaches a decorator record to the binding.
func (b *Binding) SetPatch(p any) {
	b.patch = p
}

// Call invokes the currently bound operation.
func (b *Binding) Call(receiver tree.Node, args ...any) (any, error) {
	return b.op(receiver, args...)
}

var _ tree.Slot = (*Binding)(nil)

// Type describes a kind of node. Bindings belong to the type, so all the
// nodes of a type share them.
type Type struct {
	name      string
	composite bool
	render    *Binding
	hooks     []*Binding
}

// NewComponentType creates a composite type whose render operation is op.
func NewComponentType(name string, render tree.Operation) *Type {
	return &Type{
		name:      name,
		composite: true,
		render:    NewBinding("template", render),
	}
}

// NewDirectiveType creates a plain, non-composite type.
func NewDirectiveType(name string) *Type {
	return &Type{name: name}
}

// WithHook adds a lifecycle operation to the type and returns the type.
func (t *Type) WithHook(name string, op tree.Operation) *Type {
	t.hooks = append(t.hooks, NewBinding(name, op))
	return t
}

// Name returns the type name.
func (t *Type) Name() string {
	return t.name
}

// Render returns the render binding, nil for directive types.
func (t *Type) Render() *Binding {
	return t.render
}

// Hooks returns the lifecycle bindings.
func (t *Type) Hooks() []*Binding {
	return t.hooks
}

// Hook returns the lifecycle binding with the given name.
func (t *Type) Hook(name string) (*Binding, bool) {
	for _, h := range t.hooks {
		if h.name == name {
			return h, true
		}
	}

	return nil, false
}
