package l2cache_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/cache"
	"github.com/sarchlab/meshsim/internal/memhier/l2cache"
	"github.com/sarchlab/meshsim/internal/memhier/msg"
)

func TestL2Cache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "L2Cache Suite")
}

type fixedHome struct{ core common.CoreId }

func (h fixedHome) Home(common.Address) common.CoreId { return h.core }

func newController() *l2cache.Controller {
	return l2cache.New(0, cache.Config{BlockSize: 64}, fixedHome{core: 5})
}

var _ = Describe("Controller", func() {
	It("forwards a read miss to the home directory as SH_REQ", func() {
		c := newController()
		res := c.Access(common.L1D, 0x100, common.Read, 2, 0)
		Expect(res.EndedInL2).To(BeFalse())
		Expect(res.ToDir.Dest).To(Equal(common.CoreId(5)))
		Expect(res.ToDir.Msg.Type).To(Equal(msg.ShReq))
	})

	It("forwards a write miss as EX_REQ", func() {
		c := newController()
		res := c.Access(common.L1D, 0x100, common.Write, 2, 0)
		Expect(res.ToDir.Msg.Type).To(Equal(msg.ExReq))
	})

	It("completes the miss and returns a Completion once SH_REP arrives", func() {
		c := newController()
		c.Access(common.L1D, 0x100, common.Read, 2, 0)

		acts, comp := c.HandleDirectoryMsg(5, &msg.ShmemMsg{Type: msg.ShRep, Address: 0x100, Block: []byte{7}}, 1)
		Expect(acts).To(BeEmpty())
		Expect(comp).NotTo(BeNil())
		Expect(comp.L1).To(Equal(common.L1D))
		Expect(comp.State).To(Equal(common.Shared))
	})

	It("hits locally on a subsequent read of an installed SHARED block", func() {
		c := newController()
		c.Access(common.L1D, 0x100, common.Read, 2, 0)
		c.HandleDirectoryMsg(5, &msg.ShmemMsg{Type: msg.ShRep, Address: 0x100, Block: []byte{7}}, 1)

		res := c.Access(common.L1D, 0x100, common.Read, 3, 2)
		Expect(res.EndedInL2).To(BeTrue())
		Expect(res.State).To(Equal(common.Shared))
	})

	It("queues an INV_REQ arriving while locked and drains it once the miss completes", func() {
		c := newController()
		c.Access(common.L1D, 0x100, common.Read, 2, 0)

		acts, comp := c.HandleDirectoryMsg(5, &msg.ShmemMsg{Type: msg.InvReq, Address: 0x100}, 1)
		Expect(acts).To(BeEmpty())
		Expect(comp).To(BeNil())

		acts, comp = c.HandleDirectoryMsg(5, &msg.ShmemMsg{Type: msg.ShRep, Address: 0x100, Block: []byte{7}}, 2)
		Expect(comp).NotTo(BeNil())
		Expect(acts).To(HaveLen(1))
		Expect(acts[0].Msg.Type).To(Equal(msg.InvRep))
	})

	It("answers FLUSH_REQ for a MODIFIED block with FLUSH_REP and invalidates", func() {
		c := newController()
		c.Access(common.L1D, 0x100, common.Write, 2, 0)
		c.HandleDirectoryMsg(5, &msg.ShmemMsg{Type: msg.ExRep, Address: 0x100, Block: []byte{1, 2}}, 1)

		acts, _ := c.HandleDirectoryMsg(5, &msg.ShmemMsg{Type: msg.FlushReq, Address: 0x100}, 2)
		Expect(acts).To(HaveLen(1))
		Expect(acts[0].Msg.Type).To(Equal(msg.FlushRep))
		Expect(acts[0].Msg.Block).To(Equal([]byte{1, 2}))

		_, ok := c.SharerState(0x100)
		Expect(ok).To(BeFalse())
	})

	It("EvictVictim reports FLUSH_REP for a MODIFIED victim and nothing for absent blocks", func() {
		c := newController()
		Expect(c.EvictVictim(0x999, 5)).To(BeNil())

		c.Access(common.L1D, 0x100, common.Write, 2, 0)
		c.HandleDirectoryMsg(5, &msg.ShmemMsg{Type: msg.ExRep, Address: 0x100, Block: []byte{3}}, 1)

		act := c.EvictVictim(0x100, 5)
		Expect(act).NotTo(BeNil())
		Expect(act.Msg.Type).To(Equal(msg.FlushRep))
	})
})
