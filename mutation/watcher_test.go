package mutation

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/sarchlab/framescope/hosttree"
	"github.com/sarchlab/framescope/timing"
)

var _ = Describe("Watcher", func() {
	var (
		engine  *timing.SerialEngine
		host    *hosttree.Tree
		cmp     *hosttree.Type
		watcher *Watcher
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		host = hosttree.New(engine)
		cmp = hosttree.NewComponentType("Cmp", nil)
		watcher = NewWatcher(host, zerolog.Nop())
	})

	It("should call back once per batched notification", func() {
		calls := 0
		Expect(watcher.Start(func() { calls++ })).To(Succeed())

		root := host.NewNode(cmp, "root")
		host.AppendRoot(root)
		host.Append(root, host.NewNode(cmp, "a"))
		Expect(engine.Run()).To(Succeed())

		host.Append(root, host.NewNode(cmp, "b"))
		Expect(engine.Run()).To(Succeed())

		Expect(calls).To(Equal(2))
		Expect(watcher.Notifications()).To(Equal(uint64(2)))
	})

	It("should refuse to start twice", func() {
		Expect(watcher.Start(func() {})).To(Succeed())
		Expect(watcher.Start(func() {})).To(MatchError(ErrAlreadyWatching))
		Expect(host.NumSubscribers()).To(Equal(1))
	})

	It("should stop idempotently", func() {
		calls := 0
		Expect(watcher.Start(func() { calls++ })).To(Succeed())

		watcher.Stop()
		watcher.Stop()
		Expect(watcher.Watching()).To(BeFalse())

		host.AppendRoot(host.NewNode(cmp, "root"))
		Expect(engine.Run()).To(Succeed())
		Expect(calls).To(Equal(0))
	})

	It("should restart after stop", func() {
		Expect(watcher.Start(func() {})).To(Succeed())
		watcher.Stop()
		Expect(watcher.Start(func() {})).To(Succeed())
		Expect(watcher.Watching()).To(BeTrue())
	})
})
