// Package hosttree is an in-memory host: a mutable tree of component and
// directive nodes whose operations run on a timing engine.
package hosttree

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/sarchlab/framescope/tree"
)

// Node is a live object of the tree.
type Node struct {
	typ      *Type
	label    string
	parent   *Node
	children []*Node
	attached bool
}

// Type returns the type of the node.
func (n *Node) Type() *Type {
	return n.typ
}

// Parent returns the parent, nil for roots and detached nodes.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the children of the node.
func (n *Node) Children() []*Node {
	return n.children
}

// Name returns the label of the node, or its type name.
func (n *Node) Name() string {
	if n.label != "" {
		return n.label
	}

	return n.typ.name
}

type subscriber struct {
	id int
	fn func()
}

// Tree is a host implementation whose structural notifications are batched
// into one deferred notification per turn.
type Tree struct {
	deferrer tree.Deferrer

	roots         []*Node
	subscribers   []subscriber
	nextSubID     int
	notifyPending bool
	source        string
}

// New creates an empty tree that defers work on deferrer.
func New(deferrer tree.Deferrer) *Tree {
	if deferrer == nil {
		panic("hosttree: deferrer must not be nil")
	}

	return &Tree{deferrer: deferrer}
}

// NewNode creates a detached node of the given type.
func (t *Tree) NewNode(typ *Type, label string) *Node {
	return &Node{typ: typ, label: label}
}

// AppendRoot attaches n as the last root.
func (t *Tree) AppendRoot(n *Node) {
	t.mustBeDetached(n)
	t.roots = append(t.roots, n)
	t.attach(n, nil)
	t.changed()
}

// Append attaches child as the last child of parent.
func (t *Tree) Append(parent, child *Node) {
	t.Insert(parent, len(parent.children), child)
}

// Insert attaches child at index idx among the children of parent.
func (t *Tree) Insert(parent *Node, idx int, child *Node) {
	t.mustBeDetached(child)

	if idx < 0 || idx > len(parent.children) {
		panic(fmt.Sprintf("hosttree: index %d out of range [0, %d]", idx, len(parent.children)))
	}

	parent.children = append(parent.children, nil)
	copy(parent.children[idx+1:], parent.children[idx:])
	parent.children[idx] = child

	t.attach(child, parent)
	t.changed()
}

// Remove detaches n and its subtree.
func (t *Tree) Remove(n *Node) {
	if !n.attached {
		return
	}

	if n.parent == nil {
		t.roots = without(t.roots, n)
	} else {
		n.parent.children = without(n.parent.children, n)
	}

	t.detach(n)
	t.changed()
}

// Move detaches n and reattaches it at index idx of newParent.
func (t *Tree) Move(n, newParent *Node, idx int) {
	t.Remove(n)
	t.Insert(newParent, idx, n)
}

func without(nodes []*Node, n *Node) []*Node {
	out := nodes[:0]
	for _, c := range nodes {
		if c != n {
			out = append(out, c)
		}
	}

	return out
}

func (t *Tree) mustBeDetached(n *Node) {
	if n.attached {
		panic("hosttree: node " + n.Name() + " is already attached")
	}
}

func (t *Tree) attach(n, parent *Node) {
	n.parent = parent
	n.attached = true
}

func (t *Tree) detach(n *Node) {
	n.parent = nil
	n.attached = false
}

// changed batches a structural notification.
func (t *Tree) changed() {
	if t.notifyPending || len(t.subscribers) == 0 {
		return
	}

	t.notifyPending = true
	t.deferrer.Defer(0, t.notify)
}

func (t *Tree) notify() {
	t.notifyPending = false

	subscribers := append([]subscriber(nil), t.subscribers...)
	for _, s := range subscribers {
		s.fn()
	}
}

// Subscribe registers fn to be called after structural changes.
func (t *Tree) Subscribe(fn func()) (unsubscribe func()) {
	id := t.nextSubID
	t.nextSubID++
	t.subscribers = append(t.subscribers, subscriber{id: id, fn: fn})

	return func() {
		for i, s := range t.subscribers {
			if s.id == id {
				t.subscribers = append(t.subscribers[:i:i], t.subscribers[i+1:]...)
				return
			}
		}
	}
}

// NumSubscribers returns the number of active subscriptions.
func (t *Tree) NumSubscribers() int {
	return len(t.subscribers)
}

// Roots returns the root nodes.
func (t *Tree) Roots() []tree.Node {
	return asNodes(t.roots)
}

// Children returns the children of n.
func (t *Tree) Children(n tree.Node) []tree.Node {
	node, ok := n.(*Node)
	if !ok {
		return nil
	}

	return asNodes(node.children)
}

func asNodes(nodes []*Node) []tree.Node {
	out := make([]tree.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}

	return out
}

// IsComposite tells whether n is a component.
func (t *Tree) IsComposite(n tree.Node) bool {
	node, ok := n.(*Node)
	return ok && node.typ.composite
}

// Name returns the name of n.
func (t *Tree) Name(n tree.Node) string {
	node, ok := n.(*Node)
	if !ok {
		return fmt.Sprintf("%T", n)
	}

	return node.Name()
}

// CompositeSlot returns the render binding shared by n's type.
func (t *Tree) CompositeSlot(n tree.Node) (tree.Slot, bool) {
	node, ok := n.(*Node)
	if !ok || node.typ.render == nil {
		return nil, false
	}

	return node.typ.render, true
}

// LifecycleSlots returns the lifecycle bindings shared by n's type.
func (t *Tree) LifecycleSlots(n tree.Node) []tree.Slot {
	node, ok := n.(*Node)
	if !ok {
		return nil
	}

	slots := make([]tree.Slot, len(node.typ.hooks))
	for i, h := range node.typ.hooks {
		slots[i] = h
	}

	return slots
}

// Defer forwards to the underlying deferrer.
func (t *Tree) Defer(delay time.Duration, fn func()) {
	t.deferrer.Defer(delay, fn)
}

// SetSource sets what the following work is attributed to.
func (t *Tree) SetSource(source string) {
	t.source = source
}

// CurrentSource returns the last source set.
func (t *Tree) CurrentSource() string {
	return t.source
}

// Check runs change detection on n and its subtree: the render operation of
// every component, parents before children. The first error stops the pass.
func (t *Tree) Check(n *Node) error {
	if n.typ.render != nil {
		if _, err := n.typ.render.Call(n); err != nil {
			return errors.Wrapf(err, "rendering %s", n.Name())
		}
	}

	for _, c := range n.children {
		if err := t.Check(c); err != nil {
			return err
		}
	}

	return nil
}

// CheckAll runs change detection from every root.
func (t *Tree) CheckAll() error {
	for _, r := range t.roots {
		if err := t.Check(r); err != nil {
			return err
		}
	}

	return nil
}

// CallHook invokes the lifecycle operation name of n.
func (t *Tree) CallHook(n *Node, name string, args ...any) (any, error) {
	h, ok := n.typ.Hook(name)
	if !ok {
		return nil, errors.Newf("hosttree: %s has no hook %q", n.Name(), name)
	}

	return h.Call(n, args...)
}

// Walk visits the attached nodes depth first.
func (t *Tree) Walk(fn func(n *Node)) {
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			fn(n)
			walk(n.children)
		}
	}

	walk(t.roots)
}

var (
	_ tree.Host         = (*Tree)(nil)
	_ tree.SourceTeller = (*Tree)(nil)
)
