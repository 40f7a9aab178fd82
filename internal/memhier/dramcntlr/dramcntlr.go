// Package dramcntlr implements the DRAM controller of spec §4.4.5: a lazy,
// zero-filled address space plus DramPerfModel's latency calculation,
// ported from
// original_source/common/performance_model/memory_subsystem/dram_perf_model.cc.
package dramcntlr

import (
	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/queuemodel"
)

// Config mirrors spec §6.1's perf_model/dram/{latency,
// per_controller_bandwidth, queue_model/enabled}.
type Config struct {
	AccessCost          common.Time
	BandwidthBytesPerCycle float64
	QueueModelEnabled   bool
}

// PerfModel computes DRAM access latency, matching DramPerfModel's
// getAccessLatency: a fixed access cost plus bandwidth-limited transfer
// time plus an optional single-server queueing delay.
type PerfModel struct {
	cfg     Config
	queue   *queuemodel.Simple
	enabled bool

	numAccesses        uint64
	totalAccessLatency uint64
	totalQueueingDelay  uint64
}

// NewPerfModel builds a DRAM performance model.
func NewPerfModel(cfg Config) *PerfModel {
	pm := &PerfModel{cfg: cfg}
	if cfg.QueueModelEnabled {
		pm.queue = queuemodel.NewSimple()
	}
	return pm
}

// Enable matches the original's m_enabled gate: until enabled,
// GetAccessLatency always returns zero (used while performance modeling is
// globally disabled, spec §6.1's general/enable_performance_modeling).
func (m *PerfModel) Enable()  { m.enabled = true }
func (m *PerfModel) Disable() { m.enabled = false }

// GetAccessLatency returns the total latency of a pktSize-byte access
// arriving at pktTime, and updates the running counters.
func (m *PerfModel) GetAccessLatency(pktTime common.Time, pktSize uint32, requester common.CoreId) common.Time {
	if !m.enabled {
		return 0
	}

	processingTime := common.Time(float64(pktSize)/m.cfg.BandwidthBytesPerCycle) + 1

	var queueDelay common.Time
	if m.queue != nil {
		queueDelay = m.queue.ComputeQueueDelay(pktTime, processingTime)
	}

	latency := queueDelay + processingTime + m.cfg.AccessCost

	m.numAccesses++
	m.totalAccessLatency += uint64(latency)
	m.totalQueueingDelay += uint64(queueDelay)

	return latency
}

// Summary is the per-controller §6.3 DRAM output block.
type Summary struct {
	NumAccesses           uint64
	AverageAccessLatency  float64
	AverageQueueingDelay  float64
}

func (m *PerfModel) Summarize() Summary {
	if m.numAccesses == 0 {
		return Summary{}
	}
	return Summary{
		NumAccesses:          m.numAccesses,
		AverageAccessLatency: float64(m.totalAccessLatency) / float64(m.numAccesses),
		AverageQueueingDelay: float64(m.totalQueueingDelay) / float64(m.numAccesses),
	}
}

// Controller is the memory-backing store addressed by GET_DATA_REQ/
// PUT_DATA_REQ (spec §4.4.5): address → block data, lazily allocated and
// zero-filled on first read.
type Controller struct {
	core      common.CoreId
	blockSize uint32
	perf      *PerfModel

	mem map[common.Address][]byte
}

// New builds a DRAM controller owned by core.
func New(core common.CoreId, blockSize uint32, perf *PerfModel) *Controller {
	return &Controller{core: core, blockSize: blockSize, perf: perf, mem: make(map[common.Address][]byte)}
}

// Get services a GET_DATA_REQ: returns the block's data and the latency to
// charge before replying.
func (c *Controller) Get(blockAddr common.Address, now common.Time, requester common.CoreId) ([]byte, common.Time) {
	data, ok := c.mem[blockAddr]
	if !ok {
		data = make([]byte, c.blockSize)
		c.mem[blockAddr] = data
	}
	latency := c.perf.GetAccessLatency(now, c.blockSize, requester)
	out := make([]byte, len(data))
	copy(out, data)
	return out, latency
}

// Put services a PUT_DATA_REQ: no reply is expected, only the latency
// charge (spec §4.4.5).
func (c *Controller) Put(blockAddr common.Address, data []byte, now common.Time, requester common.CoreId) common.Time {
	buf := make([]byte, c.blockSize)
	copy(buf, data)
	c.mem[blockAddr] = buf
	return c.perf.GetAccessLatency(now, c.blockSize, requester)
}

// PerfSummary reports this controller's access-count/latency summary
// (spec §6.3's DRAM access counters).
func (c *Controller) PerfSummary() Summary {
	return c.perf.Summarize()
}
