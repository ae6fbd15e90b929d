package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/hooking"
	"github.com/sarchlab/framescope/observer"
	"github.com/sarchlab/framescope/profiler"
)

// CollectMeasurements lets the tracer collect the node events and the
// measurements raised by domain.
func CollectMeasurements(domain hooking.Hookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*measurementHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				reflect.TypeOf(domain), reflect.TypeOf(tracer)))
		}
	}

	h := measurementHook{t: tracer}
	domain.AcceptHook(&h)
}

type measurementHook struct {
	t Tracer
}

// Func calls the tracer interfaces when the hook is triggered
func (h *measurementHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case observer.HookPosNodeCreated:
		h.t.NodeCreated(ctx.Item.(observer.NodeEvent))
	case observer.HookPosNodeDestroyed:
		h.t.NodeDestroyed(ctx.Item.(observer.NodeEvent))
	case observer.HookPosChangeMeasured, observer.HookPosLifecycleMeasured:
		h.t.Measured(ctx.Item.(observer.Measurement))
	}
}

// CollectFrames lets the tracer collect the frames flushed by domain.
func CollectFrames(domain hooking.Hookable, tracer FrameTracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*frameHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"domain %s already has frame tracer %s",
				reflect.TypeOf(domain), reflect.TypeOf(tracer)))
		}
	}

	h := frameHook{t: tracer}
	domain.AcceptHook(&h)
}

type frameHook struct {
	t FrameTracer
}

func (h *frameHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos == profiler.HookPosFrameFlushed {
		h.t.FrameFlushed(ctx.Item.(frame.Frame))
	}
}
