package manager_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/cache"
	"github.com/sarchlab/meshsim/internal/memhier/directory"
	"github.com/sarchlab/meshsim/internal/memhier/dramcntlr"
	"github.com/sarchlab/meshsim/internal/memhier/l1cache"
	"github.com/sarchlab/meshsim/internal/memhier/l2cache"
	"github.com/sarchlab/meshsim/internal/memhier/manager"
	"github.com/sarchlab/meshsim/internal/memhier/msg"
	"github.com/sarchlab/meshsim/internal/perfclock"
)

func TestManager(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Manager Suite")
}

type fixedHome struct{ core common.CoreId }

func (h fixedHome) Home(common.Address) common.CoreId { return h.core }

func newManager() (*manager.Manager, *directory.Controller) {
	dir := directory.New(0, directory.Config{Kind: directory.FullMap, MaxHwSharers: 4, TotalEntries: 16, Protocol: common.MSI})
	l2 := l2cache.New(0, cache.Config{BlockSize: 64}, fixedHome{core: 0})
	l1 := l1cache.New(0, l2, cache.Config{BlockSize: 64}, cache.Config{BlockSize: 64})
	perf := perfclock.New()
	perf.Enable()
	dram := dramcntlr.New(0, 64, dramcntlr.NewPerfModel(dramcntlr.Config{AccessCost: 1, BandwidthBytesPerCycle: 64}))
	return manager.New(0, l1, l2, dir, dram, perf, 64), dir
}

var _ = Describe("Manager", func() {
	It("parks a fresh access and reports the L2 request to send", func() {
		m, _ := newManager()
		res := m.AccessMemory(common.Read, 0x100, 4, common.LockNone, true, 0)
		Expect(res.Done).To(BeFalse())
		Expect(res.Actions).To(HaveLen(1))
		Expect(res.Actions[0].Msg.Type).To(Equal(msg.ShReq))
	})

	It("completes the full round trip once the directory replies", func() {
		m, dir := newManager()
		res := m.AccessMemory(common.Read, 0x100, 4, common.LockNone, true, 0)
		Expect(res.Done).To(BeFalse())

		toDir := res.Actions[0]
		dirActs := dir.HandleRequest(0, toDir.Msg)
		Expect(dirActs).To(HaveLen(1))
		Expect(dirActs[0].Msg.Type).To(Equal(msg.GetDataReq))

		dram := dirActs[0]
		replyActs := dir.HandleReply(0, &msg.ShmemMsg{Type: msg.GetDataRep, Address: 0x100, Requester: 0, Block: []byte{1, 2, 3, 4, 5, 6, 7, 8}})
		Expect(replyActs).To(HaveLen(1))
		Expect(replyActs[0].Msg.Type).To(Equal(msg.ShRep))
		_ = dram

		_, results := m.HandleL2DirectoryMsg(0, replyActs[0].Msg, 5)
		Expect(results).To(HaveLen(1))
		Expect(results[0].Done).To(BeTrue())
	})

	It("reports hit/miss counters through L1Stats/L2Stats after completion", func() {
		m, dir := newManager()
		res := m.AccessMemory(common.Read, 0x100, 4, common.LockNone, true, 0)
		dirActs := dir.HandleRequest(0, res.Actions[0].Msg)
		replyActs := dir.HandleReply(0, &msg.ShmemMsg{Type: msg.GetDataRep, Address: 0x100, Requester: 0, Block: make([]byte, 8)})
		_ = dirActs
		m.HandleL2DirectoryMsg(0, replyActs[0].Msg, 5)

		_, misses := m.L1Stats(common.L1D)
		Expect(misses).To(Equal(uint64(1)))
	})

	It("IsLocked reflects the LOCK/UNLOCK signal", func() {
		m, _ := newManager()
		Expect(m.IsLocked()).To(BeFalse())
		m.AccessMemory(common.Read, 0x200, 4, common.Lock, false, 0)
		Expect(m.IsLocked()).To(BeTrue())
		m.AccessMemory(common.Read, 0x200, 4, common.Unlock, false, 0)
		Expect(m.IsLocked()).To(BeFalse())
	})
})
