package profiler

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/idgen"
	"github.com/sarchlab/framescope/tree"
)

type fakeResolver map[idgen.ID]tree.Position

func (r fakeResolver) PositionOf(id idgen.ID) (tree.Position, bool) {
	p, ok := r[id]
	return p, ok
}

func (r fakeResolver) Describe(id idgen.ID) (frame.NodeMeta, bool) {
	if _, ok := r[id]; !ok {
		return frame.NodeMeta{}, false
	}

	return frame.NodeMeta{Identity: id, Name: fmt.Sprintf("n%d", id), IsComposite: true}, true
}

var _ = Describe("Aggregator", func() {
	var (
		resolver   fakeResolver
		aggregator *Aggregator
	)

	BeforeEach(func() {
		resolver = fakeResolver{1: {0}, 2: {0, 0}, 3: {1}}
		aggregator = NewAggregator(NewFrameBuilder(resolver, zerolog.Nop()))
	})

	It("should add up samples of the same kind", func() {
		aggregator.Record(1, frame.KindComposite, 5)
		aggregator.Record(1, frame.KindComposite, 7)

		f := aggregator.Flush("")

		p, ok := f.At([]int{0})
		Expect(ok).To(BeTrue())
		Expect(p.Samples.Composite).To(Equal(12.0))
		Expect(p.Samples.Lifecycle).To(BeEmpty())
	})

	It("should keep lifecycle kinds apart", func() {
		aggregator.Record(1, frame.KindOnInit, 1)
		aggregator.Record(1, frame.KindDoCheck, 2)
		aggregator.Record(1, frame.KindDoCheck, 3)

		f := aggregator.Flush("")

		p, _ := f.At([]int{0})
		Expect(p.Samples.Composite).To(BeZero())
		Expect(p.Samples.Lifecycle).To(Equal(map[frame.Kind]float64{
			frame.KindOnInit:  1,
			frame.KindDoCheck: 5,
		}))
	})

	It("should start a new window after a flush", func() {
		aggregator.Record(1, frame.KindComposite, 5)
		Expect(aggregator.Pending()).To(Equal(1))

		aggregator.Flush("")
		Expect(aggregator.Pending()).To(Equal(0))

		f := aggregator.Flush("")
		Expect(f.Entries).To(BeEmpty())
		Expect(aggregator.Records()).To(Equal(uint64(1)))
	})

	It("should resolve the position at flush time", func() {
		aggregator.Record(3, frame.KindComposite, 4)
		resolver[3] = tree.Position{2}

		f := aggregator.Flush("")

		p, ok := f.At([]int{2})
		Expect(ok).To(BeTrue())
		Expect(p.Node.Identity).To(Equal(idgen.ID(3)))
	})
})
