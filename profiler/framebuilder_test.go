package profiler

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/idgen"
	"github.com/sarchlab/framescope/tree"
)

func composite(ms float64) *frame.Samples {
	s := frame.NewSamples()
	s.Add(frame.KindComposite, ms)

	return &s
}

var _ = Describe("FrameBuilder", func() {
	var (
		resolver fakeResolver
		builder  *FrameBuilder
	)

	BeforeEach(func() {
		resolver = fakeResolver{}
		builder = NewFrameBuilder(resolver, zerolog.Nop())
	})

	It("should nest profiles by position", func() {
		resolver[1] = tree.Position{0}
		resolver[2] = tree.Position{0, 0}
		resolver[3] = tree.Position{1}

		f := builder.Build("tick", map[idgen.ID]*frame.Samples{
			3: composite(10),
			2: composite(10),
			1: composite(10),
		})

		Expect(f.Source).To(Equal("tick"))
		Expect(f.Entries).To(HaveLen(2))

		Expect(f.Entries[0].Node.Identity).To(Equal(idgen.ID(1)))
		Expect(f.Entries[0].Samples.Composite).To(Equal(10.0))
		Expect(f.Entries[0].Children).To(HaveLen(1))
		Expect(f.Entries[0].Children[0].Node.Identity).To(Equal(idgen.ID(2)))
		Expect(f.Entries[0].Children[0].Samples.Composite).To(Equal(10.0))
		Expect(f.Entries[0].Children[0].Children).To(BeEmpty())

		Expect(f.Entries[1].Node.Identity).To(Equal(idgen.ID(3)))
		Expect(f.Entries[1].Samples.Composite).To(Equal(10.0))
		Expect(f.Entries[1].Children).To(BeEmpty())
	})

	It("should fill missing ancestors with placeholders", func() {
		resolver[7] = tree.Position{1, 0, 0}

		f := builder.Build("", map[idgen.ID]*frame.Samples{7: composite(3)})

		Expect(f.Entries).To(HaveLen(2))
		Expect(f.Entries[0].IsPlaceholder()).To(BeTrue())
		Expect(f.Entries[1].IsPlaceholder()).To(BeTrue())
		Expect(f.Entries[1].Children[0].IsPlaceholder()).To(BeTrue())

		p, ok := f.At([]int{1, 0, 0})
		Expect(ok).To(BeTrue())
		Expect(p.Node.Identity).To(Equal(idgen.ID(7)))
		Expect(f.NumProfiles()).To(Equal(1))
	})

	It("should fill a placeholder when the ancestor has samples too", func() {
		resolver[1] = tree.Position{0, 1}
		resolver[2] = tree.Position{0}

		f := builder.Build("", map[idgen.ID]*frame.Samples{
			1: composite(1),
			2: composite(2),
		})

		Expect(f.Entries[0].Node.Identity).To(Equal(idgen.ID(2)))
		Expect(f.Entries[0].Children[0].IsPlaceholder()).To(BeTrue())
		Expect(f.Entries[0].Children[1].Node.Identity).To(Equal(idgen.ID(1)))
	})

	It("should drop identities that no longer resolve", func() {
		resolver[1] = tree.Position{0}

		f := builder.Build("", map[idgen.ID]*frame.Samples{
			1: composite(1),
			9: composite(2),
		})

		Expect(f.NumProfiles()).To(Equal(1))
	})

	It("should encode to the frame wire shape", func() {
		resolver[1] = tree.Position{0}

		f := builder.Build("tick", map[idgen.ID]*frame.Samples{1: composite(10)})
		data, err := json.Marshal(f)
		Expect(err).NotTo(HaveOccurred())

		Expect(data).To(MatchJSON(`{
			"source": "tick",
			"entries": [{
				"node": {"id": 1, "name": "n1", "is_composite": true},
				"samples": {"composite": 10, "lifecycle": {}},
				"children": []
			}]
		}`))
	})
})
