package instrumentation

import (
	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/tree"
)

// KindSampleFunc receives a classified sample.
type KindSampleFunc func(receiver tree.Node, kind frame.Kind, durationMs float64)

// slotDecorator is the measuring operation installed on a slot. It is stored
// on the slot, so every patcher instrumenting the same slot shares it and
// the slot never holds more than one decorator.
type slotDecorator struct {
	original  tree.Operation
	kind      frame.Kind
	listeners []*Patcher
}

func (d *slotDecorator) dispatch(receiver tree.Node, durationMs float64) {
	listeners := append([]*Patcher(nil), d.listeners...)
	for _, l := range listeners {
		l.onSample(receiver, d.kind, durationMs)
	}
}

func (d *slotDecorator) subscribe(p *Patcher) {
	d.listeners = append(d.listeners, p)
}

func (d *slotDecorator) unsubscribe(p *Patcher) {
	for i, l := range d.listeners {
		if l == p {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

// IsInstrumented tells whether slot currently holds a measuring decorator,
// no matter which patcher installed it.
func IsInstrumented(slot tree.Slot) bool {
	_, ok := slot.Patch().(*slotDecorator)
	return ok
}

// A Patch is the reversible record of one instrumented slot.
type Patch struct {
	Slot     tree.Slot
	Kind     frame.Kind
	Original tree.Operation

	decorator *slotDecorator
	owners    map[tree.Node]struct{}
}

// NumOwners returns how many nodes keep the patch alive.
func (p *Patch) NumOwners() int {
	return len(p.owners)
}

// A Patcher installs measuring decorators on slots and restores them. A slot
// is decorated at most once, even when several patchers instrument it.
// Slots shared by several nodes stay patched until every owner is released.
type Patcher struct {
	clock    Clock
	onSample KindSampleFunc

	patches map[tree.Slot]*Patch
	order   []tree.Slot
	owned   map[tree.Node][]tree.Slot
}

// NewPatcher creates a patcher that reports samples to onSample.
func NewPatcher(clock Clock, onSample KindSampleFunc) *Patcher {
	if clock == nil {
		clock = WallClock{}
	}

	return &Patcher{
		clock:    clock,
		onSample: onSample,
		patches:  make(map[tree.Slot]*Patch),
		owned:    make(map[tree.Node][]tree.Slot),
	}
}

// Patch instruments slot on behalf of owner. It returns true only if it
// installed a new decorator. A slot that this patcher already holds only
// gains the owner. A slot decorated by another patcher is joined, not
// wrapped again.
func (p *Patcher) Patch(slot tree.Slot, kind frame.Kind, owner tree.Node) bool {
	if patch, found := p.patches[slot]; found {
		p.addOwner(patch, owner)
		return false
	}

	installed := false
	decorator, ok := slot.Patch().(*slotDecorator)
	if !ok {
		decorator = &slotDecorator{original: slot.Operation(), kind: kind}
		slot.SetOperation(Wrap(decorator.original, p.clock, decorator.dispatch))
		slot.SetPatch(decorator)
		installed = true
	}

	decorator.subscribe(p)

	patch := &Patch{
		Slot:      slot,
		Kind:      decorator.kind,
		Original:  decorator.original,
		decorator: decorator,
		owners:    make(map[tree.Node]struct{}),
	}

	p.patches[slot] = patch
	p.order = append(p.order, slot)
	p.addOwner(patch, owner)

	return installed
}

func (p *Patcher) addOwner(patch *Patch, owner tree.Node) {
	if _, found := patch.owners[owner]; found {
		return
	}

	patch.owners[owner] = struct{}{}
	p.owned[owner] = append(p.owned[owner], patch.Slot)
}

// Release drops owner from all its patches and detaches the slots that no
// longer have owners. It returns the number of detached slots.
func (p *Patcher) Release(owner tree.Node) int {
	slots, found := p.owned[owner]
	if !found {
		return 0
	}

	delete(p.owned, owner)

	restored := 0
	for _, slot := range slots {
		patch := p.patches[slot]
		delete(patch.owners, owner)

		if len(patch.owners) == 0 {
			p.detach(patch)
			p.forget(patch.Slot)
			restored++
		}
	}

	return restored
}

// detach leaves the shared decorator. The original operation goes back on
// the slot once nobody listens, and only if the slot still holds the
// decorator.
func (p *Patcher) detach(patch *Patch) {
	d := patch.decorator
	d.unsubscribe(p)

	if len(d.listeners) > 0 {
		return
	}

	if current, ok := patch.Slot.Patch().(*slotDecorator); ok && current == d {
		patch.Slot.SetOperation(d.original)
		patch.Slot.SetPatch(nil)
	}
}

func (p *Patcher) forget(slot tree.Slot) {
	delete(p.patches, slot)

	for i, s := range p.order {
		if s == slot {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// UnpatchAll detaches every slot, most recent patch first.
func (p *Patcher) UnpatchAll() {
	for i := len(p.order) - 1; i >= 0; i-- {
		p.detach(p.patches[p.order[i]])
	}

	p.patches = make(map[tree.Slot]*Patch)
	p.order = nil
	p.owned = make(map[tree.Node][]tree.Slot)
}

// IsPatched tells whether this patcher holds slot.
func (p *Patcher) IsPatched(slot tree.Slot) bool {
	_, found := p.patches[slot]
	return found
}

// Lookup returns the patch record of slot.
func (p *Patcher) Lookup(slot tree.Slot) (*Patch, bool) {
	patch, found := p.patches[slot]
	return patch, found
}

// Len returns the number of patched slots.
func (p *Patcher) Len() int {
	return len(p.patches)
}
