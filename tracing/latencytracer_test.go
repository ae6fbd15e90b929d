package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/observer"
)

var _ = Describe("LatencyTracer", func() {
	var t *LatencyTracer

	BeforeEach(func() {
		t = NewLatencyTracer(nil)
	})

	It("should compute percentiles per kind", func() {
		for i := 1; i <= 100; i++ {
			t.Measured(observer.Measurement{
				Kind:       frame.KindComposite,
				DurationMs: float64(i),
			})
		}
		t.Measured(observer.Measurement{Kind: frame.KindDoCheck, DurationMs: 2})

		Expect(t.Count(frame.KindComposite)).To(Equal(int64(100)))
		Expect(t.Percentile(frame.KindComposite, 50)).To(BeNumerically("~", 50, 0.1))
		Expect(t.Percentile(frame.KindComposite, 99)).To(BeNumerically("~", 99, 0.1))

		summary := t.Summary()
		Expect(summary).To(HaveLen(2))
		Expect(summary[0].Kind).To(Equal(frame.KindDoCheck))
		Expect(summary[1].Kind).To(Equal(frame.KindComposite))
		Expect(summary[1].Max).To(BeNumerically("~", 100, 0.1))
		Expect(summary[1].Mean).To(BeNumerically("~", 50.5, 0.1))
	})

	It("should clamp tiny durations", func() {
		t.Measured(observer.Measurement{Kind: frame.KindOnInit, DurationMs: 0})

		Expect(t.Count(frame.KindOnInit)).To(Equal(int64(1)))
		Expect(t.Percentile(frame.KindOnInit, 50)).To(Equal(0.001))
	})

	It("should report nothing for unknown kinds", func() {
		Expect(t.Percentile(frame.KindUnknown, 50)).To(BeZero())
		Expect(t.Count(frame.KindUnknown)).To(BeZero())
	})

	It("should reset", func() {
		t.Measured(observer.Measurement{Kind: frame.KindOnInit, DurationMs: 3})
		t.Reset()

		Expect(t.Summary()).To(BeEmpty())
	})
})
