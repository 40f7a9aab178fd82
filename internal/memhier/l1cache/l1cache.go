// Package l1cache implements the L1 controller of spec §4.4.2: L1-I and
// L1-D caches, MSHR coalescing per component, and the lock discipline that
// keeps an L1 from serving unrelated requests during an outstanding miss.
package l1cache

import (
	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/cache"
	"github.com/sarchlab/meshsim/internal/memhier/l2cache"
	"github.com/sarchlab/meshsim/internal/simerr"
)

// Outcome is the result of InitiateAccess.
type Outcome struct {
	Hit        bool
	Data       []byte
	Delay      common.Time
	Coalesced  bool          // a miss was already pending for this block; this access just enqueued
	ToL2       *l2cache.Action // set when the access missed in both L1 and L2
}

type parked struct {
	op        common.OpType
	requester common.CoreId
}

type mshrEntry struct {
	primary parked
	queue   []parked
}

// Controller owns one core's L1-I and L1-D caches.
type Controller struct {
	core common.CoreId
	l2   *l2cache.Controller

	caches map[common.MemComponent]*cache.Cache
	mshr   map[common.MemComponent]map[common.Address]*mshrEntry

	locked map[common.MemComponent]bool
}

// New builds an L1 controller backed by l2 (the core's local L2 slice).
func New(core common.CoreId, l2 *l2cache.Controller, iCfg, dCfg cache.Config) *Controller {
	return &Controller{
		core: core,
		l2:   l2,
		caches: map[common.MemComponent]*cache.Cache{
			common.L1I: cache.New(iCfg),
			common.L1D: cache.New(dCfg),
		},
		mshr: map[common.MemComponent]map[common.Address]*mshrEntry{
			common.L1I: make(map[common.Address]*mshrEntry),
			common.L1D: make(map[common.Address]*mshrEntry),
		},
		locked: make(map[common.MemComponent]bool),
	}
}

// IsLocked reports whether comp has an outstanding miss (spec §4.4.2's lock
// discipline: "the L1 may not serve unrelated requests during an
// outstanding miss").
func (c *Controller) IsLocked(comp common.MemComponent) bool { return c.locked[comp] }

// InitiateAccess serves one access arriving at comp (L1-I or L1-D).
func (c *Controller) InitiateAccess(comp common.MemComponent, addr common.Address, op common.OpType, requester common.CoreId, now common.Time) *Outcome {
	cch := c.caches[comp]
	blockAddr := common.BlockAddress(addr, cch.BlockSize())

	if blk, ok := cch.Lookup(blockAddr); ok {
		satisfied := blk.State.Readable()
		if op.IsWrite() {
			satisfied = blk.State.Writable()
		}
		if satisfied {
			delay := cch.DataAccessTime() + cch.TagsAccessTime()
			if op.IsWrite() {
				l2res := c.l2.Access(comp, blockAddr, op, requester, now)
				delay += l2res.Delay
			}
			return &Outcome{Hit: true, Data: blk.Data, Delay: delay}
		}
	}

	delay := cch.TagsAccessTime()
	if m, ok := c.mshr[comp][blockAddr]; ok {
		m.queue = append(m.queue, parked{op: op, requester: requester})
		return &Outcome{Hit: false, Coalesced: true, Delay: delay}
	}

	c.locked[comp] = true
	l2res := c.l2.Access(comp, blockAddr, op, requester, now)
	delay += l2res.Delay

	if l2res.EndedInL2 {
		cch.Install(blockAddr, l2res.State, l2res.Data)
		c.locked[comp] = false
		return &Outcome{Hit: true, Data: l2res.Data, Delay: delay}
	}

	c.mshr[comp][blockAddr] = &mshrEntry{primary: parked{op: op, requester: requester}}
	return &Outcome{Hit: false, Delay: delay, ToL2: l2res.ToDir}
}

// Replay is the result of a single replayed access once SignalDataReady
// fires, for the caller to turn into a completion event.
type Replay struct {
	Requester common.CoreId
	Delay     common.Time // cycles after the primary completion this replay fires at
}

// SignalDataReady completes the MSHR at comp/addr: the primary access
// replays immediately (now guaranteed hit), then each coalesced access
// replays with a one-cycle skew, per spec §4.4.2.
func (c *Controller) SignalDataReady(comp common.MemComponent, addr common.Address, state common.CacheBlockState, data []byte) []Replay {
	blockAddr := common.BlockAddress(addr, c.caches[comp].BlockSize())
	entry, ok := c.mshr[comp][blockAddr]
	if !ok {
		simerr.ProtocolErrorf("signalDataReady for untracked MSHR at %v/%v", comp, blockAddr)
	}
	delete(c.mshr[comp], blockAddr)
	c.caches[comp].Install(blockAddr, state, data)
	c.locked[comp] = false

	replays := []Replay{{Requester: entry.primary.requester, Delay: 0}}
	for i, p := range entry.queue {
		replays = append(replays, Replay{Requester: p.requester, Delay: common.Time(i + 1)})
	}
	return replays
}

// Invalidate drops comp's copy of addr, used by the L2 controller's
// inclusion enforcement (INV_REQ/FLUSH_REQ/eviction).
func (c *Controller) Invalidate(comp common.MemComponent, addr common.Address) {
	cch := c.caches[comp]
	cch.Invalidate(common.BlockAddress(addr, cch.BlockSize()))
}

// Stats reports hit/miss counters for comp.
func (c *Controller) Stats(comp common.MemComponent) (hits, misses uint64) {
	cch := c.caches[comp]
	return cch.Hits, cch.Misses
}
