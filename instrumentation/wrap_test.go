package instrumentation

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/tree"
)

var _ = Describe("Wrap", func() {
	var (
		clock     *ManualClock
		samples   []float64
		receivers []tree.Node
		onSample  SampleFunc
		errOdd    = errors.New("odd input")
	)

	op := func(receiver tree.Node, args ...any) (any, error) {
		clock.Advance(3 * time.Millisecond)

		n := args[0].(int)
		switch {
		case n < 0:
			panic("negative input")
		case n%2 == 1:
			return nil, errOdd
		}

		return n * 10, nil
	}

	BeforeEach(func() {
		clock = NewManualClock(time.Unix(0, 0))
		samples = nil
		receivers = nil
		onSample = func(receiver tree.Node, durationMs float64) {
			receivers = append(receivers, receiver)
			samples = append(samples, durationMs)
		}
	})

	It("should return the original result and report the duration", func() {
		wrapped := Wrap(op, clock, onSample)

		out, err := wrapped("me", 4)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(40))
		Expect(samples).To(Equal([]float64{3}))
		Expect(receivers).To(Equal([]tree.Node{"me"}))
	})

	It("should propagate errors unchanged", func() {
		wrapped := Wrap(op, clock, onSample)

		_, err := wrapped("me", 3)

		Expect(err).To(BeIdenticalTo(errOdd))
		Expect(samples).To(HaveLen(1))
	})

	It("should propagate panics unchanged", func() {
		wrapped := Wrap(op, clock, onSample)

		Expect(func() { _, _ = wrapped("me", -1) }).To(PanicWith("negative input"))
		Expect(samples).To(HaveLen(1))
	})
})

var _ = Describe("Classify", func() {
	DescribeTable("lifecycle names",
		func(name string, kind frame.Kind) {
			Expect(Classify(name)).To(Equal(kind))
		},
		Entry("init", "ngOnInit", frame.KindOnInit),
		Entry("case", "NGONDESTROY", frame.KindOnDestroy),
		Entry("do check", "ngDoCheck", frame.KindDoCheck),
		Entry("content checked", "ngAfterContentChecked", frame.KindAfterContentChecked),
		Entry("view init", "ngAfterViewInit", frame.KindAfterViewInit),
		Entry("last match wins", "OnInitAfterViewChecked", frame.KindAfterViewChecked),
		Entry("unknown", "render", frame.KindUnknown),
		Entry("empty", "", frame.KindUnknown),
	)
})
