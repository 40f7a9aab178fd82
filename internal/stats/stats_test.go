package stats_test

import (
	"bytes"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/directory"
	"github.com/sarchlab/meshsim/internal/memhier/dramcntlr"
	"github.com/sarchlab/meshsim/internal/network"
	"github.com/sarchlab/meshsim/internal/network/model"
	"github.com/sarchlab/meshsim/internal/network/netmsg"
	"github.com/sarchlab/meshsim/internal/perfclock"
	"github.com/sarchlab/meshsim/internal/stats"
)

func TestStats(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Stats Suite")
}

func newFacade(core common.CoreId) *network.Facade {
	nets := map[network.Logical]model.Model{
		network.User1:   model.Magic{},
		network.User2:   model.Magic{},
		network.Memory1: model.Magic{},
		network.Memory2: model.Magic{},
		network.System:  model.Magic{},
	}
	return network.New(core, nets, 8)
}

var _ = Describe("Collect", func() {
	It("pulls hit/miss counters, sharer histogram and network counts into one summary", func() {
		dir := directory.New(0, directory.Config{Kind: directory.FullMap, MaxHwSharers: 4, TotalEntries: 16, Protocol: common.MSI})

		net := newFacade(0)
		net.Send(&netmsg.Packet{Sender: 0, Receiver: 1, Length: 8, Type: netmsg.UserPacket}, 0)

		s := stats.Collect(0, perfclock.Summary{NumAccesses: 3, AverageLatency: 5},
			dramcntlr.Summary{NumAccesses: 2, AverageAccessLatency: 4, AverageQueueingDelay: 1},
			10, 2, 20, 4, 30, 6, dir, net)

		Expect(s.Core).To(Equal(common.CoreId(0)))
		Expect(s.L1I).To(Equal(stats.CacheCounters{Hits: 10, Misses: 2}))
		Expect(s.L1D).To(Equal(stats.CacheCounters{Hits: 20, Misses: 4}))
		Expect(s.L2).To(Equal(stats.CacheCounters{Hits: 30, Misses: 6}))
		Expect(s.NetworkSent[network.User1]).To(Equal(uint64(1)))
	})
})

var _ = Describe("Report", func() {
	It("aggregates Add'd summaries and renders non-empty tables", func() {
		r := stats.NewReport()
		r.Add(stats.CoreSummary{
			Core: 0,
			Perf: perfclock.Summary{NumAccesses: 1, AverageLatency: 2},
			Dram: dramcntlr.Summary{NumAccesses: 1, AverageAccessLatency: 3, AverageQueueingDelay: 0.5},
			L1I:  stats.CacheCounters{Hits: 8, Misses: 2},
			L1D:  stats.CacheCounters{Hits: 6, Misses: 4},
			L2:   stats.CacheCounters{Hits: 5, Misses: 1},
			SharerHistogram: map[int]int{1: 3, 2: 1},
			NetworkSent:     map[network.Logical]uint64{network.User1: 7},
		})

		var buf bytes.Buffer
		r.WriteTables(&buf)
		Expect(buf.Len()).To(BeNumerically(">", 0))
		Expect(buf.String()).To(ContainSubstring("Per-Core Performance Summary"))
		Expect(buf.String()).To(ContainSubstring("Directory Sharer-Count Histogram"))
	})

	It("exposes a prometheus registry with the expected gauge families", func() {
		r := stats.NewReport()
		r.Add(stats.CoreSummary{
			Core: 1,
			Dram: dramcntlr.Summary{NumAccesses: 4},
			L1D:  stats.CacheCounters{Hits: 3, Misses: 1},
		})

		metrics, err := r.Registry().Gather()
		Expect(err).NotTo(HaveOccurred())

		names := map[string]bool{}
		for _, mf := range metrics {
			names[mf.GetName()] = true
		}
		Expect(names).To(HaveKey("meshsim_core_memory_accesses_total"))
		Expect(names).To(HaveKey("meshsim_cache_hit_rate"))
	})
})
