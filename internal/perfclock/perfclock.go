// Package perfclock implements the per-core simulated clock of spec §4.2
// (ShmemPerfModel) and the cross-frequency time normalizers supplemented
// from original_source/common/misc/time_normalizers (spec_full §6).
package perfclock

import (
	"fmt"
	"sync"

	"github.com/sarchlab/meshsim/internal/common"
)

// Thread selects which of the two cycle counters a caller means.
type Thread int

const (
	AppThread Thread = iota
	SimThread
	numThreads
)

// Model is a per-core ShmemPerfModel: two cycle counters (app/sim thread),
// an enable flag, and a latency accumulator. Every method, readers
// included, takes the mutex; there is no lock-free reader.
type Model struct {
	mu sync.Mutex

	cycles    [numThreads]common.Time
	enabled   bool
	numAccess uint64
	totalLat  common.Time
}

// New builds a disabled Model with both counters at zero.
func New() *Model {
	return &Model{}
}

// Enable turns on latency accounting.
func (m *Model) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}

// Disable turns off latency accounting without resetting counters.
func (m *Model) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// IsEnabled reports the current enable state.
func (m *Model) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Reset zeroes the latency accumulators without touching the enable flag.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.numAccess = 0
	m.totalLat = 0
}

// SetCycleCount sets thread's counter to an absolute value.
func (m *Model) SetCycleCount(thread Thread, count common.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles[thread] = count
}

// GetCycleCount reads thread's counter.
func (m *Model) GetCycleCount(thread Thread) common.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles[thread]
}

// IncrCycleCount adds count cycles to thread's counter. It is a
// programming error for this to move the counter backwards (it can't,
// count is unsigned), mirroring the original's LOG_ASSERT_ERROR check.
func (m *Model) IncrCycleCount(thread Thread, count common.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles[thread] += count
}

// UpdateCycleCount raises thread's counter to max(current, count) — the
// "raise-to" monotonic mutator spec §4.2 names.
func (m *Model) UpdateCycleCount(thread Thread, count common.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if count > m.cycles[thread] {
		m.cycles[thread] = count
	}
}

// IncrTotalMemoryAccessLatency is the exclusive way to account a completed
// access; it is a no-op while the model is disabled.
func (m *Model) IncrTotalMemoryAccessLatency(latency common.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return
	}
	m.numAccess++
	m.totalLat += latency
}

// Summary reports the counters needed for the §6.3 output block.
type Summary struct {
	NumAccesses      uint64
	AverageLatency   float64
}

// Summarize computes the outputSummary numbers.
func (m *Model) Summarize() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.numAccess == 0 {
		return Summary{}
	}
	return Summary{
		NumAccesses:    m.numAccess,
		AverageLatency: float64(m.totalLat) / float64(m.numAccess),
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("accesses=%d avg_latency=%.3f", s.NumAccesses, s.AverageLatency)
}

// TimeNormalizer converts a core-local cycle count into a common reference
// time base. Two strategies are supplemented from the original
// implementation (spec_full §6): Eternity never resynchronizes (fine for
// single-frequency runs) and Epoch periodically re-derives the reference
// point from a designated core, bounding drift for multi-frequency configs.
type TimeNormalizer interface {
	// Normalize converts localTime (at localFreq) into the reference time
	// base.
	Normalize(localTime common.Time, localFreq common.Freq) common.Time
}

// EternityNormalizer treats the first-seen frequency as the reference base
// for the lifetime of the run: it never resyncs.
type EternityNormalizer struct {
	mu        sync.Mutex
	refFreq   common.Freq
	haveRef   bool
}

// NewEternityNormalizer builds a normalizer with no reference frequency
// yet; the first call to Normalize fixes it.
func NewEternityNormalizer() *EternityNormalizer {
	return &EternityNormalizer{}
}

// Normalize implements TimeNormalizer.
func (n *EternityNormalizer) Normalize(localTime common.Time, localFreq common.Freq) common.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.haveRef {
		n.refFreq = localFreq
		n.haveRef = true
	}
	return common.ConvertCycleCount(localTime, localFreq, n.refFreq)
}

// EpochNormalizer re-derives the reference frequency every epoch cycles of
// reference time from whatever frequency is currently reported, bounding
// how stale the conversion ratio can get across a long multi-frequency run.
type EpochNormalizer struct {
	mu          sync.Mutex
	epoch       common.Time
	refFreq     common.Freq
	lastEpochAt common.Time
}

// NewEpochNormalizer builds a normalizer that re-anchors every epoch
// cycles, starting from refFreq.
func NewEpochNormalizer(refFreq common.Freq, epoch common.Time) *EpochNormalizer {
	return &EpochNormalizer{refFreq: refFreq, epoch: epoch}
}

// Normalize implements TimeNormalizer.
func (n *EpochNormalizer) Normalize(localTime common.Time, localFreq common.Freq) common.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	converted := common.ConvertCycleCount(localTime, localFreq, n.refFreq)
	if converted-n.lastEpochAt >= n.epoch {
		n.refFreq = localFreq
		n.lastEpochAt = converted
	}
	return converted
}
