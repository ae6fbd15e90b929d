package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/observer"
)

var _ = Describe("TotalTimeTracer", func() {
	It("should add up durations per kind", func() {
		t := NewTotalTimeTracer(nil)

		t.Measured(observer.Measurement{Kind: frame.KindComposite, DurationMs: 5})
		t.Measured(observer.Measurement{Kind: frame.KindComposite, DurationMs: 7})
		t.Measured(observer.Measurement{Kind: frame.KindOnInit, DurationMs: 1})

		Expect(t.TotalTime(frame.KindComposite)).To(Equal(12.0))
		Expect(t.Count(frame.KindComposite)).To(Equal(uint64(2)))
		Expect(t.AverageTime(frame.KindComposite)).To(Equal(6.0))
		Expect(t.Total()).To(Equal(13.0))
		Expect(t.AverageTime(frame.KindDoCheck)).To(BeZero())
	})

	It("should apply the filter", func() {
		t := NewTotalTimeTracer(OnlyKinds(frame.KindOnInit))

		t.Measured(observer.Measurement{Kind: frame.KindComposite, DurationMs: 5})
		t.Measured(observer.Measurement{Kind: frame.KindOnInit, DurationMs: 1})

		Expect(t.Total()).To(Equal(1.0))
	})
})
