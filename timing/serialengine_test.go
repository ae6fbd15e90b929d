package timing

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type labelEvent struct {
	*EventBase
	label string
}

type recordingHandler struct {
	name   string
	calls  *[]string
	after  map[string][]Event
	engine *SerialEngine
	err    error
}

func (h *recordingHandler) Handle(e Event) error {
	evt := e.(*labelEvent)
	*h.calls = append(*h.calls, h.name+":"+evt.label)

	for _, next := range h.after[evt.label] {
		h.engine.Schedule(next)
	}

	return h.err
}

func newLabelEvent(label string, t VTimeInSec, h Handler) *labelEvent {
	return &labelEvent{EventBase: NewEventBase(t, h), label: label}
}

var _ = Describe("SerialEngine", func() {
	var (
		engine *SerialEngine
		calls  []string
	)

	BeforeEach(func() {
		engine = NewSerialEngine()
		calls = nil
	})

	It("should schedule events", func() {
		handlerA := &recordingHandler{name: "A", calls: &calls, engine: engine}
		handlerB := &recordingHandler{name: "B", calls: &calls, engine: engine}
		handlerB.after = map[string][]Event{
			"evt2": {
				newLabelEvent("evt3", 3, handlerA),
				newLabelEvent("evt4", 5, handlerA),
			},
		}

		engine.Schedule(newLabelEvent("evt1", 4, handlerA))
		engine.Schedule(newLabelEvent("evt2", 2, handlerB))

		Expect(engine.Run()).To(Succeed())
		Expect(calls).To(Equal([]string{"B:evt2", "A:evt3", "A:evt1", "A:evt4"}))
		Expect(engine.Now()).To(Equal(VTimeInSec(5)))
	})

	It("should keep the push order of same-time events", func() {
		h := &recordingHandler{name: "H", calls: &calls, engine: engine}
		for _, l := range []string{"a", "b", "c", "d"} {
			engine.Schedule(newLabelEvent(l, 1, h))
		}

		Expect(engine.Run()).To(Succeed())
		Expect(calls).To(Equal([]string{"H:a", "H:b", "H:c", "H:d"}))
	})

	It("should run deferred callbacks after same-time primary events", func() {
		h := &recordingHandler{name: "P", calls: &calls, engine: engine}
		engine.Defer(0, func() { calls = append(calls, "deferred") })
		engine.Schedule(newLabelEvent("primary", 0, h))

		Expect(engine.Run()).To(Succeed())
		Expect(calls).To(Equal([]string{"P:primary", "deferred"}))
	})

	It("should honour the deferral delay", func() {
		engine.Defer(10*time.Millisecond, func() {
			calls = append(calls, "late")
		})

		Expect(engine.RunUntil(0.005)).To(Succeed())
		Expect(calls).To(BeEmpty())
		Expect(engine.Now()).To(BeNumerically("~", 0.005, 1e-9))

		Expect(engine.RunUntil(0.02)).To(Succeed())
		Expect(calls).To(Equal([]string{"late"}))
	})

	It("should stop at the first handler error", func() {
		failing := &recordingHandler{
			name: "F", calls: &calls, engine: engine, err: errors.New("boom"),
		}
		engine.Schedule(newLabelEvent("x", 1, failing))
		engine.Schedule(newLabelEvent("y", 2, failing))

		err := engine.Run()

		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(calls).To(Equal([]string{"F:x"}))
	})

	It("should panic when scheduling in the past", func() {
		h := &recordingHandler{name: "H", calls: &calls, engine: engine}
		engine.Schedule(newLabelEvent("a", 2, h))
		Expect(engine.Run()).To(Succeed())

		Expect(func() {
			engine.Schedule(newLabelEvent("b", 1, h))
		}).To(Panic())
	})
})
