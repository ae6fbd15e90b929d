package tracing

import (
	"sync"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/idgen"
	"github.com/sarchlab/framescope/observer"
)

// KindCountTracer counts the measurements of each kind and the number of
// live nodes that reported each kind at least once.
type KindCountTracer struct {
	filter MeasurementFilter

	lock         sync.Mutex
	liveNodes    map[idgen.ID]map[frame.Kind]bool
	kinds        []frame.Kind
	measurements map[frame.Kind]uint64
	nodesPerKind map[frame.Kind]uint64
}

// NewKindCountTracer creates a KindCountTracer. A nil filter accepts every
// measurement.
func NewKindCountTracer(filter MeasurementFilter) *KindCountTracer {
	if filter == nil {
		filter = AllMeasurements
	}

	return &KindCountTracer{
		filter:       filter,
		liveNodes:    make(map[idgen.ID]map[frame.Kind]bool),
		measurements: make(map[frame.Kind]uint64),
		nodesPerKind: make(map[frame.Kind]uint64),
	}
}

// Kinds returns the kinds seen so far, in order of first appearance.
func (t *KindCountTracer) Kinds() []frame.Kind {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]frame.Kind(nil), t.kinds...)
}

// MeasurementCount returns the number of measurements of kind.
func (t *KindCountTracer) MeasurementCount(kind frame.Kind) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.measurements[kind]
}

// NodeCount returns the number of nodes that reported kind while they were
// tracked.
func (t *KindCountTracer) NodeCount(kind frame.Kind) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.nodesPerKind[kind]
}

// NodeCreated starts following a node.
func (t *KindCountTracer) NodeCreated(e observer.NodeEvent) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.liveNodes[e.Identity] = make(map[frame.Kind]bool)
}

// NodeDestroyed stops following a node.
func (t *KindCountTracer) NodeDestroyed(e observer.NodeEvent) {
	t.lock.Lock()
	defer t.lock.Unlock()

	delete(t.liveNodes, e.Identity)
}

// Measured counts m.
func (t *KindCountTracer) Measured(m observer.Measurement) {
	if !t.filter(m) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if _, seen := t.measurements[m.Kind]; !seen {
		t.kinds = append(t.kinds, m.Kind)
	}
	t.measurements[m.Kind]++

	reported, live := t.liveNodes[m.Identity]
	if !live || reported[m.Kind] {
		return
	}

	reported[m.Kind] = true
	t.nodesPerKind[m.Kind]++
}
