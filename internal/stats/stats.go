// Package stats renders the spec §6.3 output summary: per-core
// performance-model numbers, per-network packet counts, per-cache hit/miss
// counters, the directory sharer-count histogram and DRAM access counters.
// Tables are rendered with jedib0t/go-pretty/v6/table, the same library
// core/util.go's PrintState uses for its register/buffer dumps; counters are
// additionally exported as prometheus/client_golang gauges for anyone
// scraping a running instance rather than reading the end-of-run summary.
package stats

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/directory"
	"github.com/sarchlab/meshsim/internal/memhier/dramcntlr"
	"github.com/sarchlab/meshsim/internal/network"
	"github.com/sarchlab/meshsim/internal/perfclock"
)

// CacheCounters is one cache level's hit/miss pair.
type CacheCounters struct {
	Hits, Misses uint64
}

// CoreSummary is everything spec §6.3 asks about a single core.
type CoreSummary struct {
	Core common.CoreId

	Perf perfclock.Summary
	Dram dramcntlr.Summary

	L1I, L1D, L2 CacheCounters

	SharerHistogram map[int]int
	NetworkSent     map[network.Logical]uint64
}

// Collect gathers a CoreSummary from a core's live components. Exported
// functions/methods, not the concrete *core.Core type, so this package
// never imports internal/core (stats is a leaf consumer, not a dependency
// of the simulation loop).
func Collect(
	id common.CoreId,
	perf perfclock.Summary,
	dram dramcntlr.Summary,
	l1iHits, l1iMisses uint64,
	l1dHits, l1dMisses uint64,
	l2Hits, l2Misses uint64,
	dir *directory.Controller,
	net *network.Facade,
) CoreSummary {
	return CoreSummary{
		Core:            id,
		Perf:            perf,
		Dram:            dram,
		L1I:             CacheCounters{l1iHits, l1iMisses},
		L1D:             CacheCounters{l1dHits, l1dMisses},
		L2:              CacheCounters{l2Hits, l2Misses},
		SharerHistogram: dir.SharerHistogram(),
		NetworkSent:     net.SentCounts(),
	}
}

// Report accumulates CoreSummary values across a run and renders them.
type Report struct {
	cores []CoreSummary

	registry *prometheus.Registry
	accesses *prometheus.GaugeVec
	hitRate  *prometheus.GaugeVec
}

// NewReport builds an empty Report with its own prometheus registry (spec
// §6.3's summary is self-contained; it does not assume a shared global
// registry from whatever process embeds meshsim).
func NewReport() *Report {
	reg := prometheus.NewRegistry()
	accesses := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "meshsim",
		Name:      "core_memory_accesses_total",
		Help:      "Number of DRAM accesses serviced by this core's local controller.",
	}, []string{"core"})
	hitRate := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "meshsim",
		Name:      "cache_hit_rate",
		Help:      "Hit rate of one cache level on one core.",
	}, []string{"core", "level"})
	reg.MustRegister(accesses, hitRate)
	return &Report{registry: reg, accesses: accesses, hitRate: hitRate}
}

// Registry exposes the prometheus registry for an HTTP /metrics handler.
func (r *Report) Registry() *prometheus.Registry { return r.registry }

// Add records one core's summary, updating the prometheus gauges.
func (r *Report) Add(s CoreSummary) {
	r.cores = append(r.cores, s)

	label := fmt.Sprintf("%d", s.Core)
	r.accesses.WithLabelValues(label).Set(float64(s.Dram.NumAccesses))
	r.hitRate.WithLabelValues(label, "l1i").Set(hitRate(s.L1I))
	r.hitRate.WithLabelValues(label, "l1d").Set(hitRate(s.L1D))
	r.hitRate.WithLabelValues(label, "l2").Set(hitRate(s.L2))
}

func hitRate(c CacheCounters) float64 {
	total := c.Hits + c.Misses
	if total == 0 {
		return 0
	}
	return float64(c.Hits) / float64(total)
}

// WriteTables renders the spec §6.3 tables to w, sorted by core: one row
// per core for perf/DRAM numbers, one row per core for cache counters, one
// row per core for per-network packet counts, and one row per (core,
// sharer count) pair for the sharer histogram.
func (r *Report) WriteTables(w io.Writer) {
	sort.Slice(r.cores, func(i, j int) bool { return r.cores[i].Core < r.cores[j].Core })

	perfT := table.NewWriter()
	perfT.SetOutputMirror(w)
	perfT.SetTitle("Per-Core Performance Summary")
	perfT.AppendHeader(table.Row{"Core", "Accesses", "Avg Access Latency", "DRAM Accesses", "Avg DRAM Latency", "Avg Queueing Delay"})
	for _, s := range r.cores {
		perfT.AppendRow(table.Row{
			s.Core, s.Perf.NumAccesses, fmt.Sprintf("%.2f", s.Perf.AverageLatency),
			s.Dram.NumAccesses, fmt.Sprintf("%.2f", s.Dram.AverageAccessLatency), fmt.Sprintf("%.2f", s.Dram.AverageQueueingDelay),
		})
	}
	perfT.Render()
	fmt.Fprintln(w)

	cacheT := table.NewWriter()
	cacheT.SetOutputMirror(w)
	cacheT.SetTitle("Per-Cache Hit/Miss Counters")
	cacheT.AppendHeader(table.Row{"Core", "L1I Hits", "L1I Misses", "L1D Hits", "L1D Misses", "L2 Hits", "L2 Misses"})
	for _, s := range r.cores {
		cacheT.AppendRow(table.Row{s.Core, s.L1I.Hits, s.L1I.Misses, s.L1D.Hits, s.L1D.Misses, s.L2.Hits, s.L2.Misses})
	}
	cacheT.Render()
	fmt.Fprintln(w)

	netT := table.NewWriter()
	netT.SetOutputMirror(w)
	netT.SetTitle("Per-Network Packet Counts")
	netT.AppendHeader(table.Row{"Core", "User1", "User2", "Memory1", "Memory2", "System"})
	for _, s := range r.cores {
		netT.AppendRow(table.Row{
			s.Core,
			s.NetworkSent[network.User1], s.NetworkSent[network.User2],
			s.NetworkSent[network.Memory1], s.NetworkSent[network.Memory2],
			s.NetworkSent[network.System],
		})
	}
	netT.Render()
	fmt.Fprintln(w)

	histT := table.NewWriter()
	histT.SetOutputMirror(w)
	histT.SetTitle("Directory Sharer-Count Histogram")
	histT.AppendHeader(table.Row{"Core", "Sharer Count", "Addresses"})
	for _, s := range r.cores {
		keys := make([]int, 0, len(s.SharerHistogram))
		for k := range s.SharerHistogram {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		for _, k := range keys {
			histT.AppendRow(table.Row{s.Core, k, s.SharerHistogram[k]})
		}
	}
	histT.Render()
}
