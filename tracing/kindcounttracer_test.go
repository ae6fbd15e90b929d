package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/observer"
)

var _ = Describe("KindCountTracer", func() {
	var t *KindCountTracer

	BeforeEach(func() {
		t = NewKindCountTracer(nil)
	})

	It("should count measurements and nodes per kind", func() {
		t.NodeCreated(observer.NodeEvent{Identity: 1})
		t.NodeCreated(observer.NodeEvent{Identity: 2})

		t.Measured(observer.Measurement{Identity: 1, Kind: frame.KindComposite})
		t.Measured(observer.Measurement{Identity: 1, Kind: frame.KindComposite})
		t.Measured(observer.Measurement{Identity: 2, Kind: frame.KindComposite})
		t.Measured(observer.Measurement{Identity: 2, Kind: frame.KindDoCheck})

		Expect(t.Kinds()).To(Equal(
			[]frame.Kind{frame.KindComposite, frame.KindDoCheck}))
		Expect(t.MeasurementCount(frame.KindComposite)).To(Equal(uint64(3)))
		Expect(t.NodeCount(frame.KindComposite)).To(Equal(uint64(2)))
		Expect(t.NodeCount(frame.KindDoCheck)).To(Equal(uint64(1)))
	})

	It("should not count untracked nodes", func() {
		t.NodeCreated(observer.NodeEvent{Identity: 1})
		t.NodeDestroyed(observer.NodeEvent{Identity: 1})

		t.Measured(observer.Measurement{Identity: 1, Kind: frame.KindOnInit})

		Expect(t.MeasurementCount(frame.KindOnInit)).To(Equal(uint64(1)))
		Expect(t.NodeCount(frame.KindOnInit)).To(BeZero())
	})

	It("should apply the filter", func() {
		t = NewKindCountTracer(OnlyKinds(frame.KindOnInit))
		t.NodeCreated(observer.NodeEvent{Identity: 1})

		t.Measured(observer.Measurement{Identity: 1, Kind: frame.KindComposite})

		Expect(t.Kinds()).To(BeEmpty())
	})
})
