package router_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/network/netmsg"
	"github.com/sarchlab/meshsim/internal/network/router"
)

var _ = Describe("Router.Step", func() {
	// A trivial route function: port 0 always, never broadcast.
	route := func(selfID int, dest common.CoreId, broadcast bool) ([]int, bool) {
		return []int{0}, false
	}

	It("delivers a HEAD_TAIL flit once its single output has room", func() {
		r := router.New(0, 1, router.Wormhole, router.Infinite, 4, 1, 1, route)
		r.Input(0).Push(&netmsg.Flit{Kind: netmsg.HeadTail, Receiver: 1})

		out := router.NewBuffer("downstream", router.Infinite, 4)
		delivered := r.Step(0, func(int) *router.Buffer { return out }, func(*netmsg.Flit) int { return 1 })

		Expect(delivered).To(HaveLen(1))
		Expect(delivered[0].OutPort).To(Equal(0))
		Expect(delivered[0].ArriveTime).To(BeNumerically("==", 1))
	})

	It("withholds a Store-and-Forward HEAD until the downstream has room for the whole packet", func() {
		r := router.New(0, 1, router.StoreAndForward, router.Infinite, 4, 1, 1, route)
		r.Input(0).Push(&netmsg.Flit{Kind: netmsg.Head, Receiver: 1})

		out := router.NewBuffer("downstream", router.Credit, 1)
		// downstream has room for only 1 flit, but the packet needs 3
		delivered := r.Step(0, func(int) *router.Buffer { return out }, func(*netmsg.Flit) int { return 3 })
		Expect(delivered).To(BeEmpty())
	})

	It("blocks when the downstream buffer is off", func() {
		r := router.New(0, 1, router.Wormhole, router.Infinite, 4, 1, 1, route)
		r.Input(0).Push(&netmsg.Flit{Kind: netmsg.HeadTail, Receiver: 1})

		out := router.NewBuffer("downstream", router.OnOff, 2)
		for i := 0; i < 2; i++ {
			out.Push(&netmsg.Flit{}) // drive the downstream buffer off
		}
		delivered := r.Step(0, func(int) *router.Buffer { return out }, func(*netmsg.Flit) int { return 1 })
		Expect(delivered).To(BeEmpty())
	})
})
