package profiler

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("FlushScheduler", func() {
	var (
		mockCtrl  *gomock.Controller
		deferrer  *MockDeferrer
		scheduler *FlushScheduler
		flushes   int
		deferred  []func()
		onFlush   func()
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		deferrer = NewMockDeferrer(mockCtrl)
		flushes = 0
		deferred = nil
		onFlush = nil

		scheduler = NewFlushScheduler(deferrer, 16*time.Millisecond, func() {
			flushes++
			if onFlush != nil {
				onFlush()
			}
		})
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	expectDefer := func() {
		deferrer.EXPECT().
			Defer(16*time.Millisecond, gomock.Any()).
			Do(func(_ time.Duration, fn func()) {
				deferred = append(deferred, fn)
			})
	}

	It("should coalesce requests into one flush", func() {
		expectDefer()

		Expect(scheduler.RequestFlush()).To(BeTrue())
		for i := 0; i < 99; i++ {
			Expect(scheduler.RequestFlush()).To(BeFalse())
		}
		Expect(scheduler.Pending()).To(BeTrue())

		deferred[0]()

		Expect(flushes).To(Equal(1))
		Expect(scheduler.Pending()).To(BeFalse())
		Expect(scheduler.Scheduled()).To(Equal(uint64(1)))
	})

	It("should clear the pending flag before flushing", func() {
		expectDefer()
		expectDefer()

		onFlush = func() {
			onFlush = nil
			Expect(scheduler.RequestFlush()).To(BeTrue())
		}

		scheduler.RequestFlush()
		deferred[0]()

		Expect(deferred).To(HaveLen(2))
		Expect(scheduler.Pending()).To(BeTrue())
	})

	It("should ignore a cancelled flush", func() {
		expectDefer()
		expectDefer()

		scheduler.RequestFlush()
		scheduler.Cancel()
		Expect(scheduler.Pending()).To(BeFalse())

		Expect(scheduler.RequestFlush()).To(BeTrue())

		deferred[0]()
		Expect(flushes).To(Equal(0))
		Expect(scheduler.Pending()).To(BeTrue())

		deferred[1]()
		Expect(flushes).To(Equal(1))
	})
})
