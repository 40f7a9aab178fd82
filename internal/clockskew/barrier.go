package clockskew

import (
	"sync"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/simerr"
)

// BarrierServer implements the Barrier strategy of spec §4.3: simulated
// time is divided into quanta of size Q; the server tracks each core's
// most-recently-reported time and whether it has reached the current
// barrier, and advances the barrier by Q once every running core has
// reported t >= next barrier time, releasing everyone below the new
// barrier. Ported from
// original_source/common/system/clock_skew_minimization/barrier_sync_server.cc.
type BarrierServer struct {
	mu sync.Mutex

	quantum         common.Time
	nextBarrierTime common.Time

	clocks []common.Time
	waiting  []bool
	state    []ThreadState
}

// NewBarrierServer builds a server for numCores cores with the given
// quantum.
func NewBarrierServer(numCores int, quantum common.Time) *BarrierServer {
	s := &BarrierServer{
		quantum:         quantum,
		nextBarrierTime: quantum,
		clocks:          make([]common.Time, numCores),
		waiting:         make([]bool, numCores),
		state:           make([]ThreadState, numCores),
	}
	for i := range s.state {
		s.state[i] = Initializing
	}
	return s
}

// SetState updates a core's run state, consulted by reported() for the
// StateError check.
func (s *BarrierServer) SetState(core common.CoreId, st ThreadState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[core] = st
}

// barrierReached reports whether at least one core (in any state) has
// reported a time at or past nextBarrierTime, while no running core is
// still behind it — mirroring isBarrierReached()'s
// "all-caught-up-or-not-running" loop.
func (s *BarrierServer) barrierReached() bool {
	reached := false
	for id, t := range s.clocks {
		if t < s.nextBarrierTime {
			if s.state[id] == Running {
				return false
			}
			continue
		}
		reached = true
	}
	return reached
}

// release advances nextBarrierTime until at least one waiting core can be
// unblocked, mirroring barrierRelease()'s "keep advancing until forward
// progress exists" loop, and returns the set of core ids released.
func (s *BarrierServer) release() []common.CoreId {
	var released []common.CoreId
	for len(released) == 0 {
		s.nextBarrierTime += s.quantum
		for id, t := range s.clocks {
			if t < s.nextBarrierTime && s.waiting[id] {
				s.waiting[id] = false
				released = append(released, common.CoreId(id))
			}
		}
	}
	return released
}

// Report is called by a core's client with its current time; it returns
// true if the core may proceed immediately, false if it must wait for a
// subsequent barrier advance (the caller is expected to poll, or to treat
// this synchronously within a single-threaded engine tick).
func (s *BarrierServer) Report(core common.CoreId, t common.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state[core] != Running && s.state[core] != Initializing {
		simerr.Fatal(simerr.State, "barrier report from core %v while not RUNNING/INITIALIZING", core)
	}

	if t < s.nextBarrierTime {
		return true
	}

	s.clocks[core] = t
	s.waiting[core] = true

	if s.barrierReached() {
		s.release()
	}

	return !s.waiting[core]
}

// BarrierClient is the per-core handle bound to a shared BarrierServer.
type BarrierClient struct {
	core    common.CoreId
	server  *BarrierServer
	enabled bool
}

// NewBarrierClient builds a client for core against the shared server.
func NewBarrierClient(core common.CoreId, server *BarrierServer) *BarrierClient {
	return &BarrierClient{core: core, server: server}
}

// Synchronize implements Client.
func (c *BarrierClient) Synchronize(core common.CoreId, t common.Time) common.Time {
	if !c.enabled {
		return 0
	}
	c.server.SetState(core, Running)
	if c.server.Report(core, t) {
		return 0
	}
	// The core has reached the barrier and must wait; it is charged one
	// quantum of simulated idle time, the granularity at which the server
	// advances the barrier.
	return c.server.quantum
}

// Enable implements Client.
func (c *BarrierClient) Enable() { c.enabled = true }

// Disable implements Client.
func (c *BarrierClient) Disable() { c.enabled = false }
