// Package clockskew implements the three clock-skew minimization strategies
// of spec §4.3: none, barrier, and random-pairs. Each exposes a Synchronize
// call invoked at every accessMemory boundary (spec §4.3); a disabled
// client fails quietly.
//
// The original ties this to the system network and real OS-thread
// blocking (condition variables, usleep). Since this simulator drives cores
// cooperatively from one event-driven engine rather than one OS thread per
// core (spec §5), "blocking" is expressed as Synchronize returning a
// nonzero wait, which the caller (internal/core.Core) turns into simulated
// idle cycles instead of an OS-level sleep — except random-pairs, which
// supplements the original's real wall-clock throttling via
// an actual time.Sleep, because its whole purpose is to rate-limit a host
// thread that is running suspiciously far ahead of simulated real time.
package clockskew

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sarchlab/meshsim/internal/common"
)

// ThreadState is the run state of a simulated core's application thread,
// consulted by the barrier scheme's StateError check (spec §4.3, §7).
type ThreadState int

const (
	Stopped ThreadState = iota
	Initializing
	Running
	Sleeping
)

// Client is the per-core handle every coherence-access path calls.
type Client interface {
	// Synchronize reports the core's current simulated time and returns
	// the number of cycles the caller should treat as elapsed idle time
	// before proceeding. A disabled client always returns 0 immediately.
	Synchronize(core common.CoreId, t common.Time) common.Time
	// Enable/Disable mirror spec §4.3's "fails quietly if disabled".
	Enable()
	Disable()
}

// None is the no-op clock-skew scheme.
type None struct{}

// NewNone builds the None scheme.
func NewNone() None { return None{} }

// Synchronize implements Client: always a no-op.
func (None) Synchronize(common.CoreId, common.Time) common.Time { return 0 }

// Enable implements Client.
func (None) Enable() {}

// Disable implements Client.
func (None) Disable() {}

// Barrier holds every registered core to within quantum cycles of the
// slowest core, the way spec §4.3's barrier scheme describes: a core that
// has run more than quantum cycles ahead of the pack must treat the
// difference as idle time before its access is allowed to proceed.
type Barrier struct {
	quantum common.Time

	mu      sync.Mutex
	times   map[common.CoreId]common.Time
	enabled bool
}

// NewBarrier builds a Barrier client shared by every core in the system
// (the same *Barrier value must be handed to each Core).
func NewBarrier(quantum common.Time) *Barrier {
	return &Barrier{quantum: quantum, times: make(map[common.CoreId]common.Time), enabled: true}
}

// Synchronize implements Client.
func (b *Barrier) Synchronize(core common.CoreId, t common.Time) common.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled {
		return 0
	}

	b.times[core] = t
	min := t
	for _, other := range b.times {
		if other < min {
			min = other
		}
	}

	if t-min > b.quantum {
		return t - min - b.quantum
	}
	return 0
}

// Enable implements Client.
func (b *Barrier) Enable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = true
}

// Disable implements Client.
func (b *Barrier) Disable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = false
}

// RandomPairs compares each core against a randomly chosen partner instead
// of the global minimum, the way spec §4.3's random-pairs scheme describes.
// A core running more than slack+quantum cycles ahead of its partner is
// throttled; sleepFraction additionally sleeps the host thread for a
// fraction of the computed wait, supplementing the original's real
// wall-clock throttling of runaway simulation threads, since
// this simulator otherwise has no host-thread-per-core notion to slow down.
type RandomPairs struct {
	slack         common.Time
	quantum       common.Time
	sleepFraction float64

	mu      sync.Mutex
	times   map[common.CoreId]common.Time
	enabled bool
	rng     *rand.Rand
}

// NewRandomPairs builds a RandomPairs client shared by every core in the
// system (the same *RandomPairs value must be handed to each Core).
func NewRandomPairs(slack, quantum common.Time, sleepFraction float64) *RandomPairs {
	return &RandomPairs{
		slack:         slack,
		quantum:       quantum,
		sleepFraction: sleepFraction,
		times:         make(map[common.CoreId]common.Time),
		enabled:       true,
		rng:           rand.New(rand.NewSource(1)),
	}
}

// Synchronize implements Client.
func (r *RandomPairs) Synchronize(core common.CoreId, t common.Time) common.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return 0
	}

	r.times[core] = t
	partner, ok := r.randomPartner(core)
	if !ok {
		return 0
	}

	diff := t - partner
	if diff <= r.slack+r.quantum {
		return 0
	}

	wait := diff - r.slack
	if r.sleepFraction > 0 {
		time.Sleep(time.Duration(float64(wait) * r.sleepFraction))
	}
	return wait
}

func (r *RandomPairs) randomPartner(self common.CoreId) (common.Time, bool) {
	others := make([]common.CoreId, 0, len(r.times))
	for id := range r.times {
		if id != self {
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return 0, false
	}
	pick := others[r.rng.Intn(len(others))]
	return r.times[pick], true
}

// Enable implements Client.
func (r *RandomPairs) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = true
}

// Disable implements Client.
func (r *RandomPairs) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
}
