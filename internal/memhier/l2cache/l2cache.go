// Package l2cache implements the L2 controller of spec §4.4.3: write-through,
// inclusive over L1, with a single MissStatusMap keyed by block address and
// a pending_dram_directory_req_list used while an L1-induced miss is
// outstanding.
package l2cache

import (
	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/cache"
	"github.com/sarchlab/meshsim/internal/memhier/msg"
	"github.com/sarchlab/meshsim/internal/memhier/queuemodel"
	"github.com/sarchlab/meshsim/internal/simerr"
)

// Action is an outbound ShmemMsg the caller must deliver over the memory
// network to Dest (a directory core).
type Action struct {
	Dest common.CoreId
	Msg  *msg.ShmemMsg
}

// LocalResult is the outcome of a request arriving from the local L1.
type LocalResult struct {
	EndedInL2 bool
	State     common.CacheBlockState
	Data      []byte
	Delay     common.Time
	ToDir     *Action // set when EndedInL2 is false: forward to the directory
}

type missStatus struct {
	requester common.CoreId
	l1        common.MemComponent
	op        common.OpType
}

// Controller is one core's L2 slice.
type Controller struct {
	core  common.CoreId
	cache *cache.Cache

	missMap map[common.Address]*missStatus

	locked  bool
	pending []queuedDirMsg

	contention *queuemodel.Simple
	home       HomeLookup
}

// HomeLookup resolves an address to its directory-owning core, satisfied by
// directory.AddressHomeLookup.
type HomeLookup interface {
	Home(addr common.Address) common.CoreId
}

type queuedDirMsg struct {
	sender common.CoreId
	m      *msg.ShmemMsg
}

// New builds an L2 controller.
func New(core common.CoreId, cfg cache.Config, home HomeLookup) *Controller {
	return &Controller{
		core:       core,
		cache:      cache.New(cfg),
		missMap:    make(map[common.Address]*missStatus),
		contention: queuemodel.NewSimple(),
		home:       home,
	}
}

// Access serves a request forwarded synchronously from the local L1.
func (c *Controller) Access(l1 common.MemComponent, addr common.Address, op common.OpType, requester common.CoreId, now common.Time) *LocalResult {
	blockAddr := common.BlockAddress(addr, c.cache.BlockSize())
	delay := c.cache.TagsAccessTime()

	if blk, ok := c.cache.Lookup(blockAddr); ok {
		satisfied := blk.State.Readable()
		if op.IsWrite() {
			satisfied = blk.State.Writable()
		}
		if satisfied {
			delay += c.cache.DataAccessTime()
			return &LocalResult{EndedInL2: true, State: blk.State, Data: blk.Data, Delay: delay}
		}
	}

	if _, already := c.missMap[blockAddr]; already {
		simerr.ProtocolErrorf("L2 at %v: second outstanding miss for block %v", c.core, blockAddr)
	}
	delay += c.cache.DataAccessTime()
	c.missMap[blockAddr] = &missStatus{requester: requester, l1: l1, op: op}
	c.locked = true

	if blk, ok := c.cache.Peek(blockAddr); ok && blk.State == common.Shared && op.IsWrite() {
		c.cache.Invalidate(blockAddr)
	}

	mt := msg.ShReq
	if op.IsWrite() {
		mt = msg.ExReq
	}
	dest := c.home.Home(addr)
	act := &Action{Dest: dest, Msg: &msg.ShmemMsg{Type: mt, Sender: common.L2, Receiver: common.DramDir, Requester: requester, Address: blockAddr}}
	return &LocalResult{EndedInL2: false, Delay: delay, ToDir: act}
}

// Completion is returned when a directory reply completes an outstanding
// L1-induced miss, telling the caller to signal the waiting L1.
type Completion struct {
	L1        common.MemComponent
	Addr      common.Address
	State     common.CacheBlockState
	Data      []byte
}

// HandleDirectoryMsg processes (or, while locked, queues) a message arriving
// from sender (the home directory, or a sharer/owner peer for broadcast
// INV_REQ delivery).
func (c *Controller) HandleDirectoryMsg(sender common.CoreId, m *msg.ShmemMsg, now common.Time) ([]Action, *Completion) {
	if c.locked && m.Type != msg.ExRep && m.Type != msg.ShRep {
		c.pending = append(c.pending, queuedDirMsg{sender: sender, m: m})
		return nil, nil
	}
	return c.process(sender, m, now)
}

func (c *Controller) process(sender common.CoreId, m *msg.ShmemMsg, now common.Time) ([]Action, *Completion) {
	switch m.Type {
	case msg.ExRep, msg.ShRep:
		ms, ok := c.missMap[m.Address]
		if !ok {
			simerr.ProtocolErrorf("L2 at %v: reply %v for untracked miss at %v", c.core, m.Type, m.Address)
		}
		state := common.Shared
		if m.Type == msg.ExRep {
			state = common.Modified
		}
		c.cache.Install(m.Address, state, m.Block)
		delete(c.missMap, m.Address)
		c.locked = false
		comp := &Completion{L1: ms.l1, Addr: m.Address, State: state, Data: m.Block}
		return c.drainPending(now), comp

	case msg.InvReq:
		blk, ok := c.cache.Peek(m.Address)
		if !ok || blk.State == common.Invalid {
			return nil, nil
		}
		c.cache.Invalidate(m.Address)
		return []Action{{Dest: sender, Msg: &msg.ShmemMsg{Type: msg.InvRep, Sender: common.L2, Receiver: common.DramDir, Address: m.Address}}}, nil

	case msg.FlushReq:
		blk, ok := c.cache.Peek(m.Address)
		if !ok || blk.State != common.Modified {
			simerr.ProtocolErrorf("FLUSH_REQ for non-MODIFIED block %v at %v", m.Address, c.core)
		}
		data := blk.Data
		c.cache.Invalidate(m.Address)
		return []Action{{Dest: sender, Msg: &msg.ShmemMsg{Type: msg.FlushRep, Sender: common.L2, Receiver: common.DramDir, Address: m.Address, Block: data}}}, nil

	case msg.WbReq:
		blk, ok := c.cache.Peek(m.Address)
		if !ok || blk.State != common.Modified {
			simerr.ProtocolErrorf("WB_REQ for non-MODIFIED block %v at %v", m.Address, c.core)
		}
		blk.State = common.Shared
		return []Action{{Dest: sender, Msg: &msg.ShmemMsg{Type: msg.WbRep, Sender: common.L2, Receiver: common.DramDir, Address: m.Address, Block: blk.Data}}}, nil

	default:
		simerr.ProtocolErrorf("L2 at %v: unexpected directory message %v", c.core, m.Type)
		return nil, nil
	}
}

// drainPending re-schedules the queued FIFO at one message per cycle of
// contention-model throughput, per spec §4.4.3; it processes exactly the
// head entry now and leaves the rest queued for the caller to drive on
// subsequent cycles via Tick.
func (c *Controller) drainPending(now common.Time) []Action {
	if len(c.pending) == 0 {
		return nil
	}
	head := c.pending[0]
	c.pending = c.pending[1:]
	c.contention.ComputeQueueDelay(now, 1)
	acts, _ := c.process(head.sender, head.m, now)
	return acts
}

// Tick drives one queued pending directory message forward, if any and the
// controller is unlocked; callers invoke this once per cycle from the
// owning core's tick loop.
func (c *Controller) Tick(now common.Time) []Action {
	if c.locked || len(c.pending) == 0 {
		return nil
	}
	return c.drainPending(now)
}

// EvictVictim is called by the caller-driven replacement path when the L2
// needs room: it invalidates the L2 copy and reports the message the
// evicted state requires sending to the home directory. The L1 copy is not
// invalidated here; this controller holds no reference to the L1.
func (c *Controller) EvictVictim(addr common.Address, home common.CoreId) *Action {
	blk, ok := c.cache.Peek(addr)
	if !ok {
		return nil
	}
	state := blk.State
	data := blk.Data
	c.cache.Invalidate(addr)
	switch state {
	case common.Modified:
		return &Action{Dest: home, Msg: &msg.ShmemMsg{Type: msg.FlushRep, Sender: common.L2, Receiver: common.DramDir, Address: addr, Block: data}}
	case common.Shared, common.Owned:
		return &Action{Dest: home, Msg: &msg.ShmemMsg{Type: msg.InvRep, Sender: common.L2, Receiver: common.DramDir, Address: addr}}
	default:
		return nil
	}
}

// SharerState reports the current resident state of addr, used by the L1
// controller to decide whether to install the block with write permission.
func (c *Controller) SharerState(addr common.Address) (common.CacheBlockState, bool) {
	blk, ok := c.cache.Peek(addr)
	if !ok {
		return common.Invalid, false
	}
	return blk.State, true
}

// Stats reports hit/miss counters for this L2 slice.
func (c *Controller) Stats() (hits, misses uint64) {
	return c.cache.Hits, c.cache.Misses
}
