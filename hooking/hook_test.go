package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingHook struct {
	positions []*HookPos
}

func (h *countingHook) Func(ctx HookCtx) {
	h.positions = append(h.positions, ctx.Pos)
}

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  = &HookPos{Name: "Test"}
	)

	BeforeEach(func() {
		base = NewHookableBase()
	})

	It("should invoke hooks in registration order", func() {
		order := []string{}
		first := HookFunc(func(HookCtx) { order = append(order, "first") })
		second := HookFunc(func(HookCtx) { order = append(order, "second") })

		base.AcceptHook(&first)
		base.AcceptHook(&second)
		base.InvokeHook(HookCtx{Domain: base, Pos: pos})

		Expect(order).To(Equal([]string{"first", "second"}))
		Expect(base.NumHooks()).To(Equal(2))
	})

	It("should panic on duplicated hooks", func() {
		h := &countingHook{}
		base.AcceptHook(h)

		Expect(func() { base.AcceptHook(h) }).To(Panic())
	})

	It("should remove hooks", func() {
		h1 := &countingHook{}
		h2 := &countingHook{}
		base.AcceptHook(h1)
		base.AcceptHook(h2)

		base.RemoveHook(h1)
		base.InvokeHook(HookCtx{Domain: base, Pos: pos})

		Expect(base.Hooks()).To(ConsistOf(h2))
		Expect(h1.positions).To(BeEmpty())
		Expect(h2.positions).To(Equal([]*HookPos{pos}))
	})

	It("should ignore removing unknown hooks", func() {
		h := &countingHook{}
		base.AcceptHook(h)

		base.RemoveHook(&countingHook{})

		Expect(base.NumHooks()).To(Equal(1))
	})
})
