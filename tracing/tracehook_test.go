package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/hooking"
	"github.com/sarchlab/framescope/observer"
	"github.com/sarchlab/framescope/profiler"
)

type countingTracer struct {
	created, destroyed, measured, frames int
}

func (t *countingTracer) NodeCreated(observer.NodeEvent)   { t.created++ }
func (t *countingTracer) NodeDestroyed(observer.NodeEvent) { t.destroyed++ }
func (t *countingTracer) Measured(observer.Measurement)    { t.measured++ }
func (t *countingTracer) FrameFlushed(frame.Frame)         { t.frames++ }

var _ = Describe("Trace hooks", func() {
	var (
		domain *hooking.HookableBase
		tracer *countingTracer
	)

	BeforeEach(func() {
		domain = hooking.NewHookableBase()
		tracer = &countingTracer{}
	})

	invoke := func(pos *hooking.HookPos, item any) {
		domain.InvokeHook(hooking.HookCtx{Domain: domain, Pos: pos, Item: item})
	}

	It("should dispatch node events and measurements", func() {
		CollectMeasurements(domain, tracer)

		invoke(observer.HookPosNodeCreated, observer.NodeEvent{})
		invoke(observer.HookPosNodeDestroyed, observer.NodeEvent{})
		invoke(observer.HookPosChangeMeasured, observer.Measurement{})
		invoke(observer.HookPosLifecycleMeasured, observer.Measurement{})
		invoke(profiler.HookPosFrameFlushed, frame.Frame{})

		Expect(tracer.created).To(Equal(1))
		Expect(tracer.destroyed).To(Equal(1))
		Expect(tracer.measured).To(Equal(2))
		Expect(tracer.frames).To(Equal(0))
	})

	It("should dispatch frames", func() {
		CollectFrames(domain, tracer)

		invoke(observer.HookPosChangeMeasured, observer.Measurement{})
		invoke(profiler.HookPosFrameFlushed, frame.Frame{})

		Expect(tracer.measured).To(Equal(0))
		Expect(tracer.frames).To(Equal(1))
	})

	It("should panic when attaching a tracer twice", func() {
		CollectMeasurements(domain, tracer)
		CollectFrames(domain, tracer)

		Expect(func() { CollectMeasurements(domain, tracer) }).To(Panic())
		Expect(func() { CollectFrames(domain, tracer) }).To(Panic())
		Expect(domain.NumHooks()).To(Equal(2))
	})
})
