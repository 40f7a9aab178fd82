package router_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/meshsim/internal/network/netmsg"
	"github.com/sarchlab/meshsim/internal/network/router"
)

func TestRouter(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Router Suite")
}

var _ = Describe("Buffer", func() {
	It("allows unlimited pushes when Infinite", func() {
		b := router.NewBuffer("b", router.Infinite, 2)
		for i := 0; i < 100; i++ {
			Expect(b.CanPush()).To(BeTrue())
			b.Push(&netmsg.Flit{})
		}
	})

	It("reports full once Credit capacity is reached", func() {
		b := router.NewBuffer("b", router.Credit, 2)
		Expect(b.CanPush()).To(BeTrue())
		b.Push(&netmsg.Flit{Kind: netmsg.Head})
		Expect(b.CanPush()).To(BeTrue())
		b.Push(&netmsg.Flit{Kind: netmsg.Tail})
		Expect(b.CanPush()).To(BeFalse())
	})

	It("Pop returns flits in FIFO order", func() {
		b := router.NewBuffer("b", router.Credit, 4)
		f1 := &netmsg.Flit{SenderSeq: 1}
		f2 := &netmsg.Flit{SenderSeq: 2}
		b.Push(f1)
		b.Push(f2)

		Expect(b.Pop().SenderSeq).To(Equal(uint32(1)))
		Expect(b.Pop().SenderSeq).To(Equal(uint32(2)))
		Expect(b.Pop()).To(BeNil())
	})

	It("Peek does not dequeue", func() {
		b := router.NewBuffer("b", router.Credit, 4)
		b.Push(&netmsg.Flit{SenderSeq: 1})

		Expect(b.Peek().SenderSeq).To(Equal(uint32(1)))
		Expect(b.Peek().SenderSeq).To(Equal(uint32(1)))
	})

	It("turns off once at capacity and on again once drained below the low watermark", func() {
		b := router.NewBuffer("b", router.OnOff, 4)
		Expect(b.IsOn()).To(BeTrue())
		for i := 0; i < 4; i++ {
			b.Push(&netmsg.Flit{})
		}
		Expect(b.IsOn()).To(BeFalse())
		b.Pop()
		b.Pop()
		b.Pop()
		Expect(b.IsOn()).To(BeTrue())
	})
})
