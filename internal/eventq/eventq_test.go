package eventq_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/eventq"
)

func TestEventQ(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "EventQ Suite")
}

var _ = Describe("Dispatcher", func() {
	const kind eventq.EventKind = 1
	var (
		d   *eventq.Dispatcher
		ran []string
	)

	BeforeEach(func() {
		d = eventq.NewDispatcher()
		ran = nil
		d.RegisterHandler(kind, func(e *eventq.Event) {
			ran = append(ran, e.Args.(string))
		})
	})

	It("runs ORDERED events for a core in nondecreasing time, FIFO on ties", func() {
		d.ProcessInOrder(&eventq.Event{Kind: kind, Time: 5, Args: "second"}, 0, eventq.Ordered)
		d.ProcessInOrder(&eventq.Event{Kind: kind, Time: 5, Args: "third"}, 0, eventq.Ordered)
		d.ProcessInOrder(&eventq.Event{Kind: kind, Time: 1, Args: "first"}, 0, eventq.Ordered)

		n := d.Drain(0, 10)
		Expect(n).To(Equal(3))
		Expect(ran).To(Equal([]string{"first", "second", "third"}))
	})

	It("leaves events scheduled past now untouched", func() {
		d.ProcessInOrder(&eventq.Event{Kind: kind, Time: 5, Args: "late"}, 0, eventq.Ordered)
		Expect(d.Drain(0, 3)).To(Equal(0))
		Expect(ran).To(BeEmpty())
		Expect(d.Drain(0, 5)).To(Equal(1))
	})

	It("does not let one core's ORDERED backlog block another core's", func() {
		d.ProcessInOrder(&eventq.Event{Kind: kind, Time: 1, Args: "coreA"}, 0, eventq.Ordered)
		d.ProcessInOrder(&eventq.Event{Kind: kind, Time: 1, Args: "coreB"}, 1, eventq.Ordered)

		Expect(d.Drain(1, 1)).To(Equal(1))
		Expect(ran).To(Equal([]string{"coreB"}))
	})

	It("interleaves UNORDERED events into any core's Drain", func() {
		d.ProcessInOrder(&eventq.Event{Kind: kind, Time: 2, Args: "broadcast"}, common.Broadcast, eventq.Unordered)
		Expect(d.HasPending(0)).To(BeTrue())
		Expect(d.Drain(0, 2)).To(Equal(1))
		Expect(ran).To(Equal([]string{"broadcast"}))
	})

	It("reports HasPending accurately", func() {
		Expect(d.HasPending(0)).To(BeFalse())
		d.ProcessInOrder(&eventq.Event{Kind: kind, Time: 1, Args: "x"}, 0, eventq.Ordered)
		Expect(d.HasPending(0)).To(BeTrue())
		d.Drain(0, 1)
		Expect(d.HasPending(0)).To(BeFalse())
	})
})
