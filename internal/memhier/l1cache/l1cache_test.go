package l1cache_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/cache"
	"github.com/sarchlab/meshsim/internal/memhier/l1cache"
	"github.com/sarchlab/meshsim/internal/memhier/l2cache"
	"github.com/sarchlab/meshsim/internal/memhier/msg"
)

func TestL1Cache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "L1Cache Suite")
}

type fixedHome struct{ core common.CoreId }

func (h fixedHome) Home(common.Address) common.CoreId { return h.core }

func newController() (*l1cache.Controller, *l2cache.Controller) {
	l2 := l2cache.New(0, cache.Config{BlockSize: 64}, fixedHome{core: 5})
	l1 := l1cache.New(0, l2, cache.Config{BlockSize: 64}, cache.Config{BlockSize: 64})
	return l1, l2
}

var _ = Describe("Controller", func() {
	It("misses and locks on the first access to an address", func() {
		l1, _ := newController()
		out := l1.InitiateAccess(common.L1D, 0x100, common.Read, 2, 0)
		Expect(out.Hit).To(BeFalse())
		Expect(out.Coalesced).To(BeFalse())
		Expect(l1.IsLocked(common.L1D)).To(BeTrue())
		Expect(out.ToL2).NotTo(BeNil())
	})

	It("coalesces a second access to the same outstanding block", func() {
		l1, _ := newController()
		l1.InitiateAccess(common.L1D, 0x100, common.Read, 2, 0)
		out := l1.InitiateAccess(common.L1D, 0x100, common.Read, 3, 1)
		Expect(out.Coalesced).To(BeTrue())
	})

	It("replays the primary then each coalesced access on SignalDataReady", func() {
		l1, _ := newController()
		l1.InitiateAccess(common.L1D, 0x100, common.Read, 2, 0)
		l1.InitiateAccess(common.L1D, 0x100, common.Read, 3, 1)

		replays := l1.SignalDataReady(common.L1D, 0x100, common.Shared, []byte{9})
		Expect(replays).To(HaveLen(2))
		Expect(replays[0].Requester).To(Equal(common.CoreId(2)))
		Expect(replays[0].Delay).To(Equal(common.Time(0)))
		Expect(replays[1].Requester).To(Equal(common.CoreId(3)))
		Expect(replays[1].Delay).To(Equal(common.Time(1)))
		Expect(l1.IsLocked(common.L1D)).To(BeFalse())
	})

	It("hits after the block is installed", func() {
		l1, _ := newController()
		l1.InitiateAccess(common.L1D, 0x100, common.Read, 2, 0)
		l1.SignalDataReady(common.L1D, 0x100, common.Shared, []byte{9})

		out := l1.InitiateAccess(common.L1D, 0x100, common.Read, 2, 2)
		Expect(out.Hit).To(BeTrue())
		Expect(out.Data).To(Equal([]byte{9}))
	})

	It("ends in L2 without reaching the MSHR when the local L2 already has the block", func() {
		l1, l2 := newController()
		l2.Access(common.L1D, 0x100, common.Read, 9, 0)
		l2.HandleDirectoryMsg(5, &msg.ShmemMsg{Type: msg.ShRep, Address: 0x100, Block: []byte{4}}, 1)

		out := l1.InitiateAccess(common.L1D, 0x100, common.Read, 2, 2)
		Expect(out.Hit).To(BeTrue())
		Expect(out.ToL2).To(BeNil())
		Expect(l1.IsLocked(common.L1D)).To(BeFalse())
	})

	It("Invalidate drops a resident block", func() {
		l1, _ := newController()
		l1.InitiateAccess(common.L1D, 0x100, common.Read, 2, 0)
		l1.SignalDataReady(common.L1D, 0x100, common.Shared, []byte{9})

		l1.Invalidate(common.L1D, 0x100)
		out := l1.InitiateAccess(common.L1D, 0x100, common.Read, 2, 5)
		Expect(out.Hit).To(BeFalse())
	})

	It("Stats reports hit/miss counts for the given component", func() {
		l1, _ := newController()
		l1.InitiateAccess(common.L1D, 0x100, common.Read, 2, 0)
		l1.SignalDataReady(common.L1D, 0x100, common.Shared, []byte{9})
		l1.InitiateAccess(common.L1D, 0x100, common.Read, 2, 2)

		hits, misses := l1.Stats(common.L1D)
		Expect(hits).To(Equal(uint64(1)))
		Expect(misses).To(Equal(uint64(1)))
	})
})
