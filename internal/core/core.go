// Package core implements the Core façade of spec §2's module table: one
// akita TickingComponent per simulated core, tying together the event
// queue, memory hierarchy, network and clock-skew minimization pieces
// built by the internal/* packages below it. Modeled directly on the
// teacher's core.Core/cgra.Tile TickingComponent pattern.
package core

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/meshsim/internal/clockskew"
	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/eventq"
	"github.com/sarchlab/meshsim/internal/memhier/directory"
	"github.com/sarchlab/meshsim/internal/memhier/dramcntlr"
	"github.com/sarchlab/meshsim/internal/memhier/manager"
	"github.com/sarchlab/meshsim/internal/memhier/msg"
	"github.com/sarchlab/meshsim/internal/network"
	"github.com/sarchlab/meshsim/internal/network/netmsg"
	"github.com/sarchlab/meshsim/internal/perfclock"
)

// Core is one simulated core: app-thread instruction feed (driven
// externally via IssueAccess/IssueNetSend), memory hierarchy, network
// façade, clock-skew client and per-core event queue.
type Core struct {
	*sim.TickingComponent

	ID common.CoreId

	MemPort sim.Port
	NetPort sim.Port

	Manager *manager.Manager
	Dir     *directory.Controller
	Dram    *dramcntlr.Controller
	Perf    *perfclock.Model
	Events  *eventq.Dispatcher
	Skew    clockskew.Client
	Net     *network.Facade

	Home directory.AddressHomeLookup

	memRemotes map[common.CoreId]sim.RemotePort
	netRemotes map[common.CoreId]sim.RemotePort

	cycle common.Time
}

// SetMemRemote records the peer core's MemPort address for dest, used to
// route directory/L2/DRAM traffic over the memory network. Populated by
// SystemBuilder once every core's ports are plugged into a connection.
func (c *Core) SetMemRemote(dest common.CoreId, p sim.RemotePort) {
	c.memRemotes[dest] = p
}

// SetNetRemote records the peer core's NetPort address for dest.
func (c *Core) SetNetRemote(dest common.CoreId, p sim.RemotePort) {
	c.netRemotes[dest] = p
}

// Tick implements sim.Ticker. Each cycle: drain arriving coherence
// messages on MemPort (dispatch to the directory or local L2/manager),
// drain arriving packets on NetPort (network façade reassembly), then
// flush the event queue's due completions.
func (c *Core) Tick(now sim.VTimeInSec) (madeProgress bool) {
	c.cycle++

	for {
		item := c.MemPort.PeekIncoming()
		if item == nil {
			break
		}
		env, ok := item.(*ShmemEnvelope)
		if !ok {
			break
		}
		c.MemPort.RetrieveIncoming()
		c.handleShmem(env, now)
		madeProgress = true
	}

	for {
		item := c.NetPort.PeekIncoming()
		if item == nil {
			break
		}
		env, ok := item.(*PacketEnvelope)
		if !ok {
			break
		}
		c.NetPort.RetrieveIncoming()
		c.Net.DeliverDirect(env.Payload)
		madeProgress = true
	}

	if c.Events.Drain(c.ID, c.cycle) > 0 {
		madeProgress = true
	}

	return madeProgress
}

// handleShmem routes an arriving coherence message by its Receiver
// component: the directory, the DRAM controller, or the local L2/manager.
// Whether this core is the address's home is not checked.
func (c *Core) handleShmem(env *ShmemEnvelope, now sim.VTimeInSec) {
	m := env.Payload
	sender := envelopeSrcCore(env)
	switch m.Receiver {
	case common.DramDir:
		c.routeToDirectory(sender, m)
	case common.Dram:
		c.routeToDram(sender, m)
	case common.L2:
		c.routeToL2(sender, m)
	}
}

func (c *Core) routeToDirectory(sender common.CoreId, m *msg.ShmemMsg) {
	var acts []directory.Action
	switch m.Type {
	case msg.ExReq, msg.ShReq, msg.NullifyReq:
		acts = c.Dir.HandleRequest(sender, m)
	default:
		acts = c.Dir.HandleReply(sender, m)
	}
	c.sendAll(acts)
}

func (c *Core) routeToDram(sender common.CoreId, m *msg.ShmemMsg) {
	switch m.Type {
	case msg.GetDataReq:
		data, latency := c.Dram.Get(m.Address, c.cycle, m.Requester)
		c.cycle += latency
		reply := &msg.ShmemMsg{Type: msg.GetDataRep, Sender: common.Dram, Receiver: common.DramDir, Address: m.Address, Requester: m.Requester, Block: data}
		c.send(sender, reply)
	case msg.PutDataReq:
		latency := c.Dram.Put(m.Address, m.Block, c.cycle, m.Requester)
		c.cycle += latency
	}
}

func (c *Core) routeToL2(sender common.CoreId, m *msg.ShmemMsg) {
	acts, results := c.Manager.HandleL2DirectoryMsg(sender, m, c.cycle)
	for _, a := range acts {
		c.send(a.Dest, a.Msg)
	}
	for _, r := range results {
		c.handleDriveResult(r)
	}
}

func (c *Core) handleDriveResult(r manager.Result) {
	for _, a := range r.Actions {
		c.send(a.Dest, a.Msg)
	}
}

func (c *Core) sendAll(acts []directory.Action) {
	for _, a := range acts {
		c.send(a.Dest, a.Msg)
	}
}

// send transmits m to dest; dest == common.Broadcast fans out to every
// known remote (spec §4.4.4's broadcastMsg). A message addressed to this
// core itself (the common case for a directory talking to its co-located
// DRAM controller, or an L2 talking to its co-located directory shard) is
// dispatched in-process rather than round-tripped through MemPort, since
// both live in the same Core.
func (c *Core) send(dest common.CoreId, m *msg.ShmemMsg) {
	if dest == common.Broadcast {
		for d := range c.memRemotes {
			c.sendOne(d, m)
		}
		return
	}
	if dest == c.ID {
		c.dispatchLocal(m)
		return
	}
	c.sendOne(dest, m)
}

// dispatchLocal handles a ShmemMsg whose destination is this very core,
// without involving MemPort at all.
func (c *Core) dispatchLocal(m *msg.ShmemMsg) {
	switch m.Receiver {
	case common.DramDir:
		c.routeToDirectory(c.ID, m)
	case common.Dram:
		c.routeToDram(c.ID, m)
	case common.L2:
		c.routeToL2(c.ID, m)
	}
}

func (c *Core) sendOne(dest common.CoreId, m *msg.ShmemMsg) {
	remote, ok := c.memRemotes[dest]
	if !ok {
		return
	}
	env := ShmemEnvelopeBuilder{}.
		WithSrc(c.MemPort).
		WithDst(remote).
		WithPayload(m).
		Build()
	c.MemPort.Send(env)
}

// IssueAccess drives one spec §4.4.1 accessMemory call from this core's
// (externally simulated) app thread.
func (c *Core) IssueAccess(op common.OpType, addr common.Address, size uint32, lock common.LockSignal, modeled bool) manager.Result {
	res := c.Manager.AccessMemory(op, addr, size, lock, modeled, c.cycle)
	for _, a := range res.Actions {
		c.send(a.Dest, a.Msg)
	}
	return res
}

// IssueNetSend drives one spec §4.5.1 netSend call.
func (c *Core) IssueNetSend(p *netmsg.Packet) common.Time {
	deliverAt := c.Net.Send(p, c.cycle)
	if p.Sender == p.Receiver {
		c.Net.DeliverDirect(p)
		return deliverAt
	}
	remote, ok := c.netRemotes[p.Receiver]
	if ok {
		env := &PacketEnvelope{Payload: p}
		env.MsgMeta = sim.MsgMeta{
			ID:  sim.GetIDGenerator().Generate(),
			Src: c.NetPort.AsRemote(),
			Dst: remote,
		}
		c.NetPort.Send(env)
	}
	return deliverAt
}

// envelopeSrcCore identifies which core a directory/L2 message effectively
// came from for reply-routing purposes: the requester named in the
// payload, not the akita port it arrived on.
func envelopeSrcCore(env *ShmemEnvelope) common.CoreId {
	return env.Payload.Requester
}
