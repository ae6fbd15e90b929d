// Package observer keeps track of the nodes of a host tree, instruments their
// operations and reports node events and measurements.
package observer

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/hooking"
	"github.com/sarchlab/framescope/identity"
	"github.com/sarchlab/framescope/idgen"
	"github.com/sarchlab/framescope/instrumentation"
	"github.com/sarchlab/framescope/mutation"
	"github.com/sarchlab/framescope/tree"
)

type bufferedSample struct {
	kind       frame.Kind
	durationMs float64
}

// An Observer drives the life of tracked nodes from index passes: new nodes
// get instrumented and announced, removed nodes get released and announced.
type Observer struct {
	*hooking.HookableBase

	host  tree.Host
	cfg   Config
	log   zerolog.Logger
	clock instrumentation.Clock
	ids   idgen.Generator

	index   *identity.Index
	watcher *mutation.Watcher
	patcher *instrumentation.Patcher

	fallback    map[tree.Node][]bufferedSample
	announcing  map[tree.Node]struct{}
	initialized bool
	passes      uint64
}

// Option configures an Observer.
type Option func(o *Observer)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Observer) {
		o.log = logger
	}
}

// WithClock sets the clock used to measure operations.
func WithClock(clock instrumentation.Clock) Option {
	return func(o *Observer) {
		o.clock = clock
	}
}

// WithIDGenerator sets the generator identities are drawn from.
func WithIDGenerator(ids idgen.Generator) Option {
	return func(o *Observer) {
		o.ids = ids
	}
}

// New creates an observer over host.
func New(host tree.Host, cfg Config, opts ...Option) *Observer {
	if host == nil {
		panic("observer: host must not be nil")
	}

	o := &Observer{
		HookableBase: hooking.NewHookableBase(),
		host:         host,
		cfg:          cfg,
		log:          zerolog.Nop(),
		clock:        instrumentation.WallClock{},
		fallback:     make(map[tree.Node][]bufferedSample),
		announcing:   make(map[tree.Node]struct{}),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.index = identity.New(host, o.ids, o.log)
	o.watcher = mutation.NewWatcher(host, o.log)
	o.patcher = instrumentation.NewPatcher(o.clock, o.onSample)
	o.AcceptHook(&configHook{cfg: cfg})

	return o
}

// Initialize starts watching the host and runs the first pass.
func (o *Observer) Initialize() error {
	if err := o.watcher.Start(o.Observe); err != nil {
		return errors.Wrap(err, "observer: initialize")
	}

	o.initialized = true
	o.Observe()

	return nil
}

// Initialized tells whether the observer is watching the host.
func (o *Observer) Initialized() bool {
	return o.initialized
}

// Observe runs one index pass and reports its result.
func (o *Observer) Observe() {
	result := o.index.Index()
	o.passes++

	// A new node only measures once it has been announced.
	for _, n := range result.NewNodes {
		o.announcing[n.Node] = struct{}{}
	}

	for _, n := range result.NewNodes {
		o.instrument(n)
		o.fire(HookPosNodeCreated, nodeEvent(n))
		delete(o.announcing, n.Node)
		o.deliverBuffered(n)
	}

	for _, n := range result.RemovedNodes {
		o.patcher.Release(n.Node)
		o.fire(HookPosNodeDestroyed, nodeEvent(n))
	}

	o.dropBuffered()
}

func nodeEvent(n *identity.IndexedNode) NodeEvent {
	return NodeEvent{
		Node:        n.Node,
		Identity:    n.Identity,
		IsComposite: n.IsComposite,
		Position:    n.Position.Clone(),
	}
}

func (o *Observer) instrument(n *identity.IndexedNode) {
	if n.IsComposite && o.cfg.OnChangeMeasured != nil {
		if slot, ok := o.host.CompositeSlot(n.Node); ok {
			o.patcher.Patch(slot, frame.KindComposite, n.Node)
		}
	}

	if o.cfg.OnLifecycleMeasured != nil {
		for _, slot := range o.host.LifecycleSlots(n.Node) {
			o.patcher.Patch(slot, instrumentation.Classify(slot.Name()), n.Node)
		}
	}
}

func (o *Observer) onSample(receiver tree.Node, kind frame.Kind, durationMs float64) {
	n, tracked := o.index.Lookup(receiver)
	_, announcing := o.announcing[receiver]
	if !tracked || announcing {
		o.fallback[receiver] = append(o.fallback[receiver],
			bufferedSample{kind: kind, durationMs: durationMs})
		return
	}

	o.measured(n, kind, durationMs)
}

func (o *Observer) measured(n *identity.IndexedNode, kind frame.Kind, durationMs float64) {
	pos := HookPosLifecycleMeasured
	if kind == frame.KindComposite {
		pos = HookPosChangeMeasured
	}

	o.fire(pos, Measurement{
		Node:        n.Node,
		Identity:    n.Identity,
		IsComposite: n.IsComposite,
		Position:    n.Position.Clone(),
		Kind:        kind,
		DurationMs:  durationMs,
	})
}

func (o *Observer) deliverBuffered(n *identity.IndexedNode) {
	samples, found := o.fallback[n.Node]
	if !found {
		return
	}

	delete(o.fallback, n.Node)

	for _, s := range samples {
		o.measured(n, s.kind, s.durationMs)
	}
}

func (o *Observer) dropBuffered() {
	if len(o.fallback) == 0 {
		return
	}

	dropped := 0
	for _, samples := range o.fallback {
		dropped += len(samples)
	}

	o.log.Debug().
		Int("nodes", len(o.fallback)).
		Int("samples", dropped).
		Msg("dropping samples of untracked nodes")

	o.fallback = make(map[tree.Node][]bufferedSample)
}

func (o *Observer) fire(pos *hooking.HookPos, item any) {
	o.InvokeHook(hooking.HookCtx{
		Domain: o,
		Pos:    pos,
		Item:   item,
	})
}

// Destroy stops watching, restores every instrumented operation and forgets
// all the tracked nodes.
func (o *Observer) Destroy() {
	o.watcher.Stop()
	o.patcher.UnpatchAll()
	o.index.Teardown()
	o.fallback = make(map[tree.Node][]bufferedSample)
	o.announcing = make(map[tree.Node]struct{})
	o.initialized = false
}

// Index returns the identity index of the observer.
func (o *Observer) Index() *identity.Index {
	return o.index
}

// Host returns the observed host.
func (o *Observer) Host() tree.Host {
	return o.host
}

// Passes returns the number of index passes run so far.
func (o *Observer) Passes() uint64 {
	return o.passes
}

// NumPatched returns the number of instrumented slots.
func (o *Observer) NumPatched() int {
	return o.patcher.Len()
}

// NumBuffered returns the number of nodes with buffered samples.
func (o *Observer) NumBuffered() int {
	return len(o.fallback)
}

// PositionOf returns the current position of the node with identity id.
func (o *Observer) PositionOf(id idgen.ID) (tree.Position, bool) {
	n, ok := o.index.LookupID(id)
	if !ok {
		return nil, false
	}

	return n.Position.Clone(), true
}

// Describe returns the metadata of the node with identity id.
func (o *Observer) Describe(id idgen.ID) (frame.NodeMeta, bool) {
	n, ok := o.index.LookupID(id)
	if !ok {
		return frame.NodeMeta{}, false
	}

	return frame.NodeMeta{
		Identity:    id,
		Name:        o.host.Name(n.Node),
		IsComposite: n.IsComposite,
	}, true
}
