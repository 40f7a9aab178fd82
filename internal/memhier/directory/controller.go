package directory

import (
	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/msg"
	"github.com/sarchlab/meshsim/internal/memhier/queuemodel"
	"github.com/sarchlab/meshsim/internal/simerr"
)

// Action is an outgoing ShmemMsg the caller (internal/core's wiring layer)
// must deliver to Dest over the memory network.
type Action struct {
	Dest common.CoreId
	Msg  *msg.ShmemMsg
}

// request is one queued EX_REQ/SH_REQ, with the continuation state needed
// to resume a multi-step transaction once its dependent replies arrive.
type request struct {
	sender  common.CoreId
	m       *msg.ShmemMsg
	waitingInv   int // remaining INV_REP this request is waiting for
	waitingFlush bool
	waitingDram  bool
	dataBuf      []byte // data returned by a flush/wb/dram read, pending serve
}

type slot struct {
	entry Entry
	queue []*request
}

// Config bundles the per-controller parameters of spec §6.1's
// perf_model/dram_directory block.
type Config struct {
	Kind          Kind
	MaxHwSharers  int
	TotalEntries  int
	CacheAccessTime common.Time
	Protocol      common.Protocol
}

// Controller implements the directory state machine of spec §4.4.4: one
// slice of the global directory and a per-address request queue with at
// most one active request per address. Its one-cycle-per-request
// contention model is exposed through QueueDelay; HandleRequest does not
// charge it, so requests take effect without any queueing delay.
type Controller struct {
	core common.CoreId
	cfg  Config

	slots      map[common.Address]*slot
	contention *queuemodel.Simple
}

// New builds a Controller owned by core.
func New(core common.CoreId, cfg Config) *Controller {
	return &Controller{
		core:       core,
		cfg:        cfg,
		slots:      make(map[common.Address]*slot),
		contention: queuemodel.NewSimple(),
	}
}

// QueueDelay charges the contention model for one request arriving at t
// with one cycle of service time and returns the resulting queueing delay.
func (c *Controller) QueueDelay(t common.Time) common.Time {
	return c.contention.ComputeQueueDelay(t, 1)
}

// HandleRequest processes an EX_REQ or SH_REQ arriving from sender
// (normally an L2 controller, forwarded on behalf of requester inside m).
func (c *Controller) HandleRequest(sender common.CoreId, m *msg.ShmemMsg) []Action {
	sl, acts := c.getOrAllocate(m.Address)
	req := &request{sender: sender, m: m}

	if len(sl.queue) > 0 {
		sl.queue = append(sl.queue, req)
		return acts
	}
	sl.queue = append(sl.queue, req)
	return append(acts, c.dispatch(sl, req)...)
}

// getOrAllocate returns the slot for addr, allocating (and, if the
// directory is at capacity, evicting via a synthesized NULLIFY_REQ) as
// needed.
func (c *Controller) getOrAllocate(addr common.Address) (*slot, []Action) {
	if sl, ok := c.slots[addr]; ok {
		return sl, nil
	}

	var acts []Action
	if len(c.slots) >= c.cfg.TotalEntries && c.cfg.TotalEntries > 0 {
		victimAddr, ok := c.pickReplacementVictim()
		if !ok {
			simerr.ProtocolErrorf("directory full: no empty-queue eviction candidate at core %v", c.core)
		}
		acts = append(acts, c.beginNullify(victimAddr)...)
	}

	sl := &slot{entry: New(c.cfg.Kind, addr, c.cfg.MaxHwSharers)}
	sl.entry.SetState(common.Uncached)
	c.slots[addr] = sl
	return sl, acts
}

// pickReplacementVictim picks the candidate with the strictly fewest
// sharers among entries with an empty request queue. Among candidates with
// equal sharer counts it keeps the first one the slots map yields; Go
// randomizes map iteration order, so which of several tied candidates is
// chosen is not deterministic.
func (c *Controller) pickReplacementVictim() (common.Address, bool) {
	var best common.Address
	bestSharers := -1
	found := false
	for addr, sl := range c.slots {
		if len(sl.queue) != 0 {
			continue
		}
		n := sl.entry.NumSharers()
		if !found || n < bestSharers {
			best = addr
			bestSharers = n
			found = true
		}
	}
	return best, found
}

// beginNullify forces addr to UNCACHED: flush a MODIFIED owner, invalidate
// all sharers, and on reply delete the entry (spec §4.4.4's NULLIFY_REQ).
func (c *Controller) beginNullify(addr common.Address) []Action {
	sl := c.slots[addr]
	req := &request{m: &msg.ShmemMsg{Type: msg.NullifyReq, Address: addr}}
	sl.queue = append([]*request{req}, sl.queue...)
	return c.dispatch(sl, req)
}

// dispatch begins servicing the front request of sl assuming it has just
// become the active (front) request.
func (c *Controller) dispatch(sl *slot, req *request) []Action {
	switch req.m.Type {
	case msg.ExReq:
		return c.processExReq(sl, req)
	case msg.ShReq:
		return c.processShReq(sl, req)
	case msg.NullifyReq:
		return c.processNullify(sl, req)
	default:
		simerr.ProtocolErrorf("directory cannot dispatch message type %v", req.m.Type)
		return nil
	}
}

func (c *Controller) processExReq(sl *slot, req *request) []Action {
	e := sl.entry
	switch e.State() {
	case common.DirModified:
		owner, _ := e.Owner()
		if owner == req.m.Requester {
			// Already the exclusive owner: trivially serve (upgrade
			// case, not separately modeled since MSI has no distinct
			// S->M transition message beyond EX_REQ).
			return c.serveEx(sl, req, nil)
		}
		req.waitingFlush = true
		return []Action{{Dest: owner, Msg: &msg.ShmemMsg{Type: msg.FlushReq, Sender: common.DramDir, Receiver: common.L2, Address: req.m.Address, Requester: req.m.Requester}}}

	case common.DirShared:
		broadcast, sharers := e.Sharers()
		if broadcast {
			req.waitingInv = -1 // -1: broadcast, count unknown until acks stop mattering; treated as "wait for all known sharers"
		}
		req.waitingInv = len(sharers)
		if req.waitingInv == 0 {
			e.SetState(common.Uncached)
			return c.continueExReq(sl, req)
		}
		var acts []Action
		if broadcast {
			acts = append(acts, Action{Dest: common.Broadcast, Msg: &msg.ShmemMsg{Type: msg.InvReq, Sender: common.DramDir, Receiver: common.L2, Address: req.m.Address, Requester: req.m.Requester}})
		} else {
			for _, s := range sharers {
				acts = append(acts, Action{Dest: s, Msg: &msg.ShmemMsg{Type: msg.InvReq, Sender: common.DramDir, Receiver: common.L2, Address: req.m.Address, Requester: req.m.Requester}})
			}
		}
		return acts

	case common.Uncached:
		return c.continueExReq(sl, req)

	default:
		simerr.ProtocolErrorf("EX_REQ in unreachable directory state %v", e.State())
		return nil
	}
}

// continueExReq is reached once the directory is certain no sharer/owner
// still holds the block: serve from dataBuf if a flush/wb already supplied
// it, else fetch from DRAM.
func (c *Controller) continueExReq(sl *slot, req *request) []Action {
	if req.dataBuf != nil {
		return c.serveEx(sl, req, req.dataBuf)
	}
	req.waitingDram = true
	return []Action{{Dest: c.core, Msg: &msg.ShmemMsg{Type: msg.GetDataReq, Sender: common.DramDir, Receiver: common.Dram, Address: req.m.Address, Requester: req.m.Requester}}}
}

func (c *Controller) serveEx(sl *slot, req *request, data []byte) []Action {
	sl.entry.SetState(common.DirModified)
	sl.entry.ClearOwner()
	sl.entry.SetOwner(req.m.Requester)
	act := Action{Dest: req.sender, Msg: &msg.ShmemMsg{Type: msg.ExRep, Sender: common.DramDir, Receiver: common.L2, Address: req.m.Address, Requester: req.m.Requester, Block: data}}
	return append([]Action{act}, c.dequeue(sl)...)
}

func (c *Controller) processShReq(sl *slot, req *request) []Action {
	e := sl.entry
	switch e.State() {
	case common.DirModified:
		owner, _ := e.Owner()
		if c.cfg.Protocol == common.MOSI {
			// MOSI takes the same path as MSI here: the owner gets a
			// WB_REQ and its WB_REP demotes it to a sharer (see the
			// WbRep case of HandleReply). No OWNED state is kept.
		}
		req.waitingFlush = true
		return []Action{{Dest: owner, Msg: &msg.ShmemMsg{Type: msg.WbReq, Sender: common.DramDir, Receiver: common.L2, Address: req.m.Address, Requester: req.m.Requester}}}

	case common.DirShared:
		if e.AddSharer(req.m.Requester) {
			return c.continueShReq(sl, req)
		}
		victim, ok := e.GetOneSharer()
		if !ok {
			simerr.ProtocolErrorf("SHARED directory entry has no room and no evictable sharer")
		}
		req.waitingInv = 1
		return []Action{{Dest: victim, Msg: &msg.ShmemMsg{Type: msg.InvReq, Sender: common.DramDir, Receiver: common.L2, Address: req.m.Address}}}

	case common.Uncached:
		e.SetState(common.DirShared)
		e.AddSharer(req.m.Requester)
		return c.continueShReq(sl, req)

	default:
		simerr.ProtocolErrorf("SH_REQ in unreachable directory state %v", e.State())
		return nil
	}
}

func (c *Controller) continueShReq(sl *slot, req *request) []Action {
	if req.dataBuf != nil {
		return c.serveSh(sl, req, req.dataBuf)
	}
	req.waitingDram = true
	return []Action{{Dest: c.core, Msg: &msg.ShmemMsg{Type: msg.GetDataReq, Sender: common.DramDir, Receiver: common.Dram, Address: req.m.Address, Requester: req.m.Requester}}}
}

func (c *Controller) serveSh(sl *slot, req *request, data []byte) []Action {
	act := Action{Dest: req.sender, Msg: &msg.ShmemMsg{Type: msg.ShRep, Sender: common.DramDir, Receiver: common.L2, Address: req.m.Address, Requester: req.m.Requester, Block: data}}
	return append([]Action{act}, c.dequeue(sl)...)
}

func (c *Controller) processNullify(sl *slot, req *request) []Action {
	e := sl.entry
	switch e.State() {
	case common.DirModified:
		owner, _ := e.Owner()
		req.waitingFlush = true
		return []Action{{Dest: owner, Msg: &msg.ShmemMsg{Type: msg.FlushReq, Sender: common.DramDir, Receiver: common.L2, Address: req.m.Address}}}
	case common.DirShared:
		_, sharers := e.Sharers()
		req.waitingInv = len(sharers)
		if req.waitingInv == 0 {
			return c.finishNullify(sl, req)
		}
		var acts []Action
		for _, s := range sharers {
			acts = append(acts, Action{Dest: s, Msg: &msg.ShmemMsg{Type: msg.InvReq, Sender: common.DramDir, Receiver: common.L2, Address: req.m.Address}})
		}
		return acts
	case common.Uncached:
		return c.finishNullify(sl, req)
	default:
		simerr.ProtocolErrorf("NULLIFY_REQ in unreachable directory state %v", e.State())
		return nil
	}
}

func (c *Controller) finishNullify(sl *slot, req *request) []Action {
	var acts []Action
	if req.dataBuf != nil {
		acts = append(acts, Action{Dest: c.core, Msg: &msg.ShmemMsg{Type: msg.PutDataReq, Sender: common.DramDir, Receiver: common.Dram, Address: req.m.Address, Block: req.dataBuf}})
	}
	delete(c.slots, req.m.Address)
	return append(acts, c.dequeueByAddr(req.m.Address)...)
}

// HandleReply processes INV_REP, FLUSH_REP, WB_REP or GET_DATA_REP
// arriving from sender.
func (c *Controller) HandleReply(sender common.CoreId, m *msg.ShmemMsg) []Action {
	sl, ok := c.slots[m.Address]
	if !ok {
		simerr.ProtocolErrorf("reply %v for untracked address %v", m.Type, m.Address)
	}
	if len(sl.queue) == 0 {
		simerr.ProtocolErrorf("reply %v for address %v with no active request", m.Type, m.Address)
	}
	req := sl.queue[0]

	switch m.Type {
	case msg.InvRep:
		sl.entry.RemoveSharer(sender)
		if req.waitingInv > 0 {
			req.waitingInv--
		}
		if req.waitingInv != 0 {
			return nil
		}
		return c.resumeAfterInv(sl, req)

	case msg.FlushRep:
		req.waitingFlush = false
		req.dataBuf = m.Block
		sl.entry.SetState(common.Uncached)
		sl.entry.ClearOwner()
		return c.resumeAfterOwnerReply(sl, req)

	case msg.WbRep:
		req.waitingFlush = false
		req.dataBuf = m.Block
		if c.cfg.Protocol == common.MOSI && req.m.Type == msg.ShReq {
			// Same as MSI: the entry becomes SHARED and the former
			// owner is kept only as a sharer.
			sl.entry.SetState(common.DirShared)
		} else {
			sl.entry.SetState(common.DirShared)
		}
		sl.entry.AddSharer(req.sender)
		if owner, hasOwner := sl.entry.Owner(); hasOwner {
			sl.entry.AddSharer(owner)
		}
		sl.entry.ClearOwner()
		return c.resumeAfterOwnerReply(sl, req)

	case msg.GetDataRep:
		req.waitingDram = false
		req.dataBuf = m.Block
		return c.resumeAfterDram(sl, req)

	default:
		simerr.ProtocolErrorf("unexpected reply type %v at directory", m.Type)
		return nil
	}
}

func (c *Controller) resumeAfterInv(sl *slot, req *request) []Action {
	switch req.m.Type {
	case msg.ExReq:
		sl.entry.SetState(common.Uncached)
		return c.continueExReq(sl, req)
	case msg.ShReq:
		sl.entry.AddSharer(req.m.Requester)
		return c.continueShReq(sl, req)
	case msg.NullifyReq:
		return c.finishNullify(sl, req)
	default:
		simerr.ProtocolErrorf("INV_REP resumed unknown request type %v", req.m.Type)
		return nil
	}
}

func (c *Controller) resumeAfterOwnerReply(sl *slot, req *request) []Action {
	switch req.m.Type {
	case msg.ExReq:
		return c.continueExReq(sl, req)
	case msg.ShReq:
		return c.continueShReq(sl, req)
	case msg.NullifyReq:
		return c.finishNullify(sl, req)
	default:
		simerr.ProtocolErrorf("owner reply resumed unknown request type %v", req.m.Type)
		return nil
	}
}

func (c *Controller) resumeAfterDram(sl *slot, req *request) []Action {
	switch req.m.Type {
	case msg.ExReq:
		return c.serveEx(sl, req, req.dataBuf)
	case msg.ShReq:
		return c.serveSh(sl, req, req.dataBuf)
	default:
		simerr.ProtocolErrorf("GET_DATA_REP resumed unknown request type %v", req.m.Type)
		return nil
	}
}

// dequeue pops the now-completed front request of sl and, if another is
// queued, dispatches it.
func (c *Controller) dequeue(sl *slot) []Action {
	if len(sl.queue) == 0 {
		return nil
	}
	sl.queue = sl.queue[1:]
	if len(sl.queue) == 0 {
		return nil
	}
	return c.dispatch(sl, sl.queue[0])
}

func (c *Controller) dequeueByAddr(addr common.Address) []Action {
	sl, ok := c.slots[addr]
	if !ok {
		return nil
	}
	return c.dequeue(sl)
}

// SharerHistogram reports, for every tracked address, the current sharer
// count, feeding the §6.3 "directory sharer-count histogram" output.
func (c *Controller) SharerHistogram() map[int]int {
	hist := make(map[int]int)
	for _, sl := range c.slots {
		hist[sl.entry.NumSharers()]++
	}
	return hist
}
