package profiler

import (
	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/idgen"
)

// An Aggregator accumulates samples per identity until the next flush.
type Aggregator struct {
	builder *FrameBuilder
	pending map[idgen.ID]*frame.Samples
	records uint64
}

// NewAggregator creates an Aggregator that flushes through builder.
func NewAggregator(builder *FrameBuilder) *Aggregator {
	return &Aggregator{
		builder: builder,
		pending: make(map[idgen.ID]*frame.Samples),
	}
}

// Record adds a sample. Samples of the same identity and kind add up.
func (a *Aggregator) Record(id idgen.ID, kind frame.Kind, durationMs float64) {
	s, found := a.pending[id]
	if !found {
		fresh := frame.NewSamples()
		s = &fresh
		a.pending[id] = s
	}

	s.Add(kind, durationMs)
	a.records++
}

// Pending returns the number of identities with samples.
func (a *Aggregator) Pending() int {
	return len(a.pending)
}

// Records returns the number of samples recorded since creation.
func (a *Aggregator) Records() uint64 {
	return a.records
}

// Flush builds a frame out of the pending samples and starts a new window.
func (a *Aggregator) Flush(source string) frame.Frame {
	f := a.builder.Build(source, a.pending)
	a.Reset()

	return f
}

// Reset discards the pending samples.
func (a *Aggregator) Reset() {
	a.pending = make(map[idgen.ID]*frame.Samples)
}
