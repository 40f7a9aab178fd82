package clockskew

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sarchlab/meshsim/internal/common"
)

// RandomPairsHub is the shared peer-lookup/rendezvous point every
// RandomPairsClient registers with; it plays the role the system network
// plays in original_source/.../random_pairs_sync_client.cc, where REQ/ACK
// messages travel between cores. Here, with all cores living in one
// process, the hub is a plain registry of clients by CoreId.
type RandomPairsHub struct {
	mu      sync.Mutex
	clients map[common.CoreId]*RandomPairsClient
}

// NewRandomPairsHub builds an empty hub.
func NewRandomPairsHub() *RandomPairsHub {
	return &RandomPairsHub{clients: make(map[common.CoreId]*RandomPairsClient)}
}

func (h *RandomPairsHub) register(c *RandomPairsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.core] = c
}

func (h *RandomPairsHub) numCores() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *RandomPairsHub) peer(id common.CoreId) *RandomPairsClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients[id]
}

// RandomPairsClient implements the Random-pairs strategy of spec §4.3:
// every quantum cycles of its own clock, a core picks a uniform peer in
// [1,(N-1)/2] offset and compares clocks: if the peer is ahead by more
// than slack the requester is told to wait the difference, and if the
// requester is ahead by more than slack the peer throttles itself. Ported from
// original_source/.../random_pairs_sync_client.cc's synchronize/
// processSyncReq.
type RandomPairsClient struct {
	mu sync.Mutex

	core      common.CoreId
	hub       *RandomPairsHub
	quantum   common.Time
	slack     common.Time
	sleepFrac float64

	lastSyncTime common.Time
	rng          *rand.Rand
	enabled      bool

	startWall time.Time
}

// NewRandomPairsClient builds and registers a client with hub. quantum,
// slack and sleepFraction come straight from spec §6.1's
// clock_skew_minimization/random_pairs/{quantum,slack,sleep_fraction}.
func NewRandomPairsClient(core common.CoreId, hub *RandomPairsHub, quantum, slack common.Time, sleepFraction float64) *RandomPairsClient {
	c := &RandomPairsClient{
		core:      core,
		hub:       hub,
		quantum:   quantum,
		slack:     slack,
		sleepFrac: sleepFraction,
		// Deterministic per-core seed: reproducible runs, distinct
		// peer choices per core, matching the original's seed(1) call
		// (one RNG per client, not one shared RNG).
		rng:       rand.New(rand.NewSource(int64(core) + 1)),
		startWall: time.Time{},
	}
	hub.register(c)
	return c
}

// Enable implements Client.
func (c *RandomPairsClient) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
	c.lastSyncTime = 0
	c.startWall = time.Now()
}

// Disable implements Client.
func (c *RandomPairsClient) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
}

// Synchronize implements Client: if at least quantum cycles have elapsed
// since the last sync point, pick a random peer, compare clocks, and
// return the number of simulated cycles this core should treat as idle.
func (c *RandomPairsClient) Synchronize(core common.CoreId, t common.Time) common.Time {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return 0
	}
	if t-c.lastSyncTime < c.quantum {
		c.mu.Unlock()
		return 0
	}
	c.lastSyncTime = (t / c.quantum) * c.quantum
	n := c.hub.numCores()
	var peerID common.CoreId
	if n >= 3 {
		offset := 1 + c.rng.Int63n(int64((n-1)/2))
		peerID = common.CoreId((int(core) + int(offset)) % n)
	} else {
		peerID = core
	}
	c.mu.Unlock()

	if peerID == core {
		return 0
	}
	peer := c.hub.peer(peerID)
	if peer == nil {
		return 0
	}

	wait := peer.processSyncReq(core, t, c.slack)
	if wait > 0 {
		c.sleepWallClock(wait, t)
	}
	return wait
}

// processSyncReq is invoked on the peer side of a sync request: it is the
// Go analogue of netProcessSyncMsg dispatching to processSyncReq in the
// original. It both tells the caller how long to wait (if the caller is
// ahead) and self-queues its own wait (if the peer itself is ahead),
// mirroring the three-way branch in spec §4.3.
func (c *RandomPairsClient) processSyncReq(requester common.CoreId, requesterTime, slack common.Time) common.Time {
	c.mu.Lock()
	myTime := c.lastSyncTime
	c.mu.Unlock()

	switch {
	case myTime > requesterTime+slack:
		// The peer is ahead; tell the requester to wait.
		return myTime - requesterTime
	case requesterTime > myTime+slack:
		// The requester is ahead; the peer must throttle itself, but
		// replies ACK(0) to the requester (spec §4.3).
		c.sleepWallClock(requesterTime-myTime, myTime)
		return 0
	default:
		return 0
	}
}

// sleepWallClock rate-limits this host thread proportional to the
// accumulated simulated slack, per spec §4.3's "sleeping wall-clock
// proportional to the chosen sleep_fraction".
func (c *RandomPairsClient) sleepWallClock(simCyclesBehind common.Time, nowSim common.Time) {
	c.mu.Lock()
	elapsedWall := time.Since(c.startWall)
	c.mu.Unlock()

	if nowSim == 0 || elapsedWall <= 0 {
		return
	}
	wallPerSimCycle := float64(elapsedWall) / float64(nowSim)
	sleepDur := time.Duration(c.sleepFrac * wallPerSimCycle * float64(simCyclesBehind))
	const cap = 1 * time.Second
	if sleepDur > cap {
		sleepDur = cap
	}
	if sleepDur > 0 {
		time.Sleep(sleepDur)
	}
}
