// Package frame defines the position-nested snapshots produced by the
// profiler.
package frame

import (
	"github.com/sarchlab/framescope/idgen"
)

// Kind classifies a timing sample.
type Kind string

// KindComposite is the kind of samples measured on the composite operation
// (render / change detection) of a composite node.
const KindComposite Kind = "composite"

// The recognized lifecycle operations. KindUnknown is used for lifecycle
// operations whose name matches none of them.
const (
	KindOnInit              Kind = "OnInit"
	KindOnDestroy           Kind = "OnDestroy"
	KindOnChanges           Kind = "OnChanges"
	KindDoCheck             Kind = "DoCheck"
	KindAfterContentInit    Kind = "AfterContentInit"
	KindAfterContentChecked Kind = "AfterContentChecked"
	KindAfterViewInit       Kind = "AfterViewInit"
	KindAfterViewChecked    Kind = "AfterViewChecked"
	KindUnknown             Kind = "unknown"
)

// IsLifecycle tells whether k is a lifecycle kind, including KindUnknown.
func (k Kind) IsLifecycle() bool {
	return k != KindComposite && k != ""
}

// NodeMeta describes the node a profile belongs to.
type NodeMeta struct {
	Identity    idgen.ID `json:"id"`
	Name        string   `json:"name"`
	IsComposite bool     `json:"is_composite"`
}

// Samples holds the durations, in milliseconds, accumulated for one node
// during one flush window.
type Samples struct {
	Composite float64          `json:"composite"`
	Lifecycle map[Kind]float64 `json:"lifecycle"`
}

// NewSamples returns empty samples.
func NewSamples() Samples {
	return Samples{Lifecycle: make(map[Kind]float64)}
}

// Add accumulates a duration of the given kind.
func (s *Samples) Add(kind Kind, durationMs float64) {
	if kind == KindComposite {
		s.Composite += durationMs
		return
	}

	if s.Lifecycle == nil {
		s.Lifecycle = make(map[Kind]float64)
	}

	s.Lifecycle[kind] += durationMs
}

// Merge adds all the durations of other into s.
func (s *Samples) Merge(other Samples) {
	s.Composite += other.Composite
	for kind, d := range other.Lifecycle {
		s.Add(kind, d)
	}
}

// Total returns the sum of all the durations.
func (s Samples) Total() float64 {
	total := s.Composite
	for _, d := range s.Lifecycle {
		total += d
	}

	return total
}

// NodeProfile is one slot of a frame. A profile whose Node is nil is a
// placeholder for an ancestor that has no samples in the frame.
type NodeProfile struct {
	Node     *NodeMeta      `json:"node"`
	Samples  Samples        `json:"samples"`
	Children []*NodeProfile `json:"children"`
}

// IsPlaceholder tells whether the profile only holds the place of an
// ancestor.
func (p *NodeProfile) IsPlaceholder() bool {
	return p.Node == nil
}

// Frame is one flushed snapshot. Entries nest exactly like the positions of
// the profiled nodes at flush time: the profile at [p0, ..., pk] is
// Entries[p0].Children[p1]...Children[pk].
type Frame struct {
	Source  string         `json:"source"`
	Entries []*NodeProfile `json:"entries"`
}

// At returns the profile at the given position, if the frame holds one.
func (f Frame) At(position []int) (*NodeProfile, bool) {
	if len(position) == 0 {
		return nil, false
	}

	level := f.Entries
	var p *NodeProfile

	for _, idx := range position {
		if idx < 0 || idx >= len(level) || level[idx] == nil {
			return nil, false
		}

		p = level[idx]
		level = p.Children
	}

	return p, true
}

// Walk visits every profile of the frame in depth-first order, passing the
// position of each one. Placeholders are visited too.
func (f Frame) Walk(fn func(position []int, p *NodeProfile)) {
	var walk func(prefix []int, level []*NodeProfile)
	walk = func(prefix []int, level []*NodeProfile) {
		for i, p := range level {
			if p == nil {
				continue
			}

			pos := append(append(make([]int, 0, len(prefix)+1), prefix...), i)
			fn(pos, p)
			walk(pos, p.Children)
		}
	}

	walk(nil, f.Entries)
}

// NumProfiles returns the number of non-placeholder profiles in the frame.
func (f Frame) NumProfiles() int {
	n := 0
	f.Walk(func(_ []int, p *NodeProfile) {
		if !p.IsPlaceholder() {
			n++
		}
	})

	return n
}
