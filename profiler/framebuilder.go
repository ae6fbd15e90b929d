package profiler

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/idgen"
	"github.com/sarchlab/framescope/tree"
)

// A Resolver maps identities to what the nodes currently look like.
type Resolver interface {
	// PositionOf returns the current position of the node with identity id.
	PositionOf(id idgen.ID) (tree.Position, bool)

	// Describe returns the metadata of the node with identity id.
	Describe(id idgen.ID) (frame.NodeMeta, bool)
}

// FrameBuilder nests flat samples by the current positions of their nodes.
type FrameBuilder struct {
	resolver Resolver
	log      zerolog.Logger
}

// NewFrameBuilder creates a FrameBuilder.
func NewFrameBuilder(resolver Resolver, logger zerolog.Logger) *FrameBuilder {
	return &FrameBuilder{resolver: resolver, log: logger}
}

type positioned struct {
	id       idgen.ID
	position tree.Position
	profile  *frame.NodeProfile
}

// Build assembles a frame. Identities that no longer resolve are dropped.
// Ancestors without samples are represented by placeholders.
func (b *FrameBuilder) Build(
	source string,
	samples map[idgen.ID]*frame.Samples,
) frame.Frame {
	items := b.resolve(samples)

	sort.SliceStable(items, func(i, j int) bool {
		c := tree.Compare(items[i].position, items[j].position)
		if c != 0 {
			return c < 0
		}

		return items[i].id < items[j].id
	})

	f := frame.Frame{
		Source:  source,
		Entries: []*frame.NodeProfile{},
	}

	for _, item := range items {
		insert(&f.Entries, item.position, item.profile)
	}

	return f
}

func (b *FrameBuilder) resolve(
	samples map[idgen.ID]*frame.Samples,
) []positioned {
	items := make([]positioned, 0, len(samples))

	for id, s := range samples {
		position, ok := b.resolver.PositionOf(id)
		if !ok || len(position) == 0 {
			b.log.Debug().
				Stringer("identity", id).
				Float64("total_ms", s.Total()).
				Msg("dropping samples of an untracked node")

			continue
		}

		meta, _ := b.resolver.Describe(id)
		meta.Identity = id

		items = append(items, positioned{
			id:       id,
			position: position,
			profile: &frame.NodeProfile{
				Node:     &meta,
				Samples:  *s,
				Children: []*frame.NodeProfile{},
			},
		})
	}

	return items
}

func placeholder() *frame.NodeProfile {
	return &frame.NodeProfile{
		Samples:  frame.NewSamples(),
		Children: []*frame.NodeProfile{},
	}
}

// slotAt grows level with placeholders until it has index idx and returns
// the profile there.
func slotAt(level *[]*frame.NodeProfile, idx int) *frame.NodeProfile {
	for len(*level) <= idx {
		*level = append(*level, placeholder())
	}

	return (*level)[idx]
}

func insert(
	entries *[]*frame.NodeProfile,
	position tree.Position,
	profile *frame.NodeProfile,
) {
	level := entries
	for _, idx := range position[:len(position)-1] {
		level = &slotAt(level, idx).Children
	}

	last := position[len(position)-1]
	existing := slotAt(level, last)

	if existing.IsPlaceholder() {
		existing.Node = profile.Node
		existing.Samples = profile.Samples

		return
	}

	existing.Samples.Merge(profile.Samples)
}
