// Package network implements the network façade of spec §4.6: five
// logical networks, netSend/netRecv, and the receiver-side reassembly
// buffer of spec §4.5.4 that guarantees per-(source,destination)
// packet-order delivery regardless of per-flit path.
package network

import (
	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/network/model"
	"github.com/sarchlab/meshsim/internal/network/netmsg"
	"github.com/sarchlab/meshsim/internal/simerr"
)

// Logical names the five networks of spec §4.6.
type Logical int

const (
	User1 Logical = iota
	User2
	Memory1
	Memory2
	System
)

// Match selects which arrived packets netRecv should accept: a sender set
// (nil means any) crossed with a packet-type set (nil means any).
type Match struct {
	Senders map[common.CoreId]bool
	Types   map[netmsg.PacketType]bool
}

func (m Match) accepts(p *netmsg.Packet) bool {
	if m.Senders != nil && !m.Senders[p.Sender] {
		return false
	}
	if m.Types != nil && !m.Types[p.Type] {
		return false
	}
	return true
}

type flitAccum struct {
	lastTime common.Time
	done     bool
}

type rawEntry struct {
	pkt *netmsg.Packet
	seq uint32
}

type pairKey struct {
	src, dst common.CoreId
}

type pairState struct {
	nextRawSeq   uint32
	nextExpected uint32
	pending      map[uint32]*netmsg.Packet
}

// Facade is one core's view of the network: the five logical networks it
// can send on, and the reassembly state for packets arriving at it.
type Facade struct {
	core common.CoreId
	nets map[Logical]model.Model

	flitWidthBits uint32

	flitAcc map[uint64]*flitAccum
	rawByID map[uint64]rawEntry
	pairs   map[pairKey]*pairState

	ready        []*netmsg.Packet
	senderSeq    map[common.CoreId]uint32 // only relevant when core == sender
	asyncRecv    map[netmsg.PacketType]func(*netmsg.Packet)

	sentCount map[Logical]uint64
}

// New builds a Facade owned by core.
func New(core common.CoreId, nets map[Logical]model.Model, flitWidthBits uint32) *Facade {
	return &Facade{
		core:          core,
		nets:          nets,
		flitWidthBits: flitWidthBits,
		flitAcc:       make(map[uint64]*flitAccum),
		rawByID:       make(map[uint64]rawEntry),
		pairs:         make(map[pairKey]*pairState),
		senderSeq:     make(map[common.CoreId]uint32),
		asyncRecv:     make(map[netmsg.PacketType]func(*netmsg.Packet)),
		sentCount:     make(map[Logical]uint64),
	}
}

// SentCounts reports how many packets this core has sent on each logical
// network, feeding spec §6.3's per-network counters.
func (f *Facade) SentCounts() map[Logical]uint64 {
	out := make(map[Logical]uint64, len(f.sentCount))
	for k, v := range f.sentCount {
		out[k] = v
	}
	return out
}

// logicalFor chooses the network a packet type sends on (spec §4.6:
// "netSend chooses the network by packet type"). USER_1/USER_2 and
// MEMORY_1/MEMORY_2 split load by parity of the sender's per-destination
// sequence number, matching the original's alternating dual-network use
// for bandwidth doubling.
func logicalFor(t netmsg.PacketType, seq uint32) Logical {
	switch t {
	case netmsg.UserPacket:
		if seq%2 == 0 {
			return User1
		}
		return User2
	case netmsg.SharedMemPacket:
		if seq%2 == 0 {
			return Memory1
		}
		return Memory2
	case netmsg.SystemPacket:
		return System
	default:
		simerr.ConfigErrorf("unknown packet type %d", t)
		return System
	}
}

// Send implements netSend (spec §4.5.1/§4.6): assigns the per-sender
// sequence number, special-cases self-delivery, and otherwise hands the
// packet to the chosen NetworkModel.
func (f *Facade) Send(p *netmsg.Packet, now common.Time) common.Time {
	if p.Length == 0 {
		simerr.Fatal(simerr.Length, "netSend: zero-length packet to %v", p.Receiver)
	}

	seq := f.senderSeq[p.Receiver]
	f.senderSeq[p.Receiver] = seq + 1
	p.SequenceNum = seq
	p.StartTime = now

	if p.Sender == p.Receiver {
		p.Time = now
		return now
	}

	logical := logicalFor(p.Type, seq)
	f.sentCount[logical]++
	net := f.nets[logical]
	out := net.Send(p, now)
	p.Time = out.DeliverAt
	return out.DeliverAt
}

// DeliverFlit feeds one arriving flit into the reassembly accumulator
// (spec §4.5.4): the HEAD registers the packet id, subsequent flits extend
// its time, and a TAIL/HEAD|TAIL marks it done.
func (f *Facade) DeliverFlit(flit *netmsg.Flit, now common.Time) {
	id := flit.ID()
	acc, ok := f.flitAcc[id]
	if !ok {
		acc = &flitAccum{}
		f.flitAcc[id] = acc
	}
	if flit.NormalizedTime > acc.lastTime {
		acc.lastTime = flit.NormalizedTime
	}
	if flit.Kind == netmsg.Tail || flit.Kind == netmsg.HeadTail {
		acc.done = true
		f.tryFinalize(id)
	}
}

func (f *Facade) pairFor(src, dst common.CoreId) *pairState {
	key := pairKey{src: src, dst: dst}
	ps := f.pairs[key]
	if ps == nil {
		ps = &pairState{pending: make(map[uint32]*netmsg.Packet)}
		f.pairs[key] = ps
	}
	return ps
}

// DeliverRaw registers the out-of-band raw packet matching a flit stream
// (spec §4.5.4): the packet only reaches `ready`/`Recv` once a matching
// `DeliverFlit` sequence for the same (sender, senderSeq) has also marked
// itself done. Used by genuine flit-level producers (router.Router, once
// wired) and by tests exercising that rendezvous directly.
func (f *Facade) DeliverRaw(p *netmsg.Packet) {
	id := (uint64(uint32(p.Sender)) << 32) | uint64(p.SequenceNum)
	ps := f.pairFor(p.Sender, p.Receiver)
	seq := ps.nextRawSeq
	ps.nextRawSeq++
	f.rawByID[id] = rawEntry{pkt: p, seq: seq}
	f.tryFinalize(id)
}

// DeliverDirect releases a packet straight into the per-pair ordering
// machinery without waiting on a flit rendezvous: used by Core for every
// packet it actually routes (self-delivery and cross-core arrivals
// alike), since none of the analytical network models (Magic,
// EMeshHopCounter, FiniteBuffer — see internal/network/model) ever
// produces individual flits for DeliverFlit to consume. p.Time is
// whatever Send already computed; DeliverDirect does not recompute it,
// since the serialization term tryFinalize adds is specific to
// reconstructing a packet's completion time out of a genuine flit
// stream's NormalizedTime values.
func (f *Facade) DeliverDirect(p *netmsg.Packet) {
	ps := f.pairFor(p.Sender, p.Receiver)
	seq := ps.nextRawSeq
	ps.nextRawSeq++
	ps.pending[seq] = p
	f.drain(ps)
}

func (f *Facade) tryFinalize(id uint64) {
	acc, ok := f.flitAcc[id]
	if !ok || !acc.done {
		return
	}
	raw, ok2 := f.rawByID[id]
	if !ok2 {
		return
	}
	delete(f.flitAcc, id)
	delete(f.rawByID, id)

	ser := netmsg.SerializationLatency(raw.pkt.Length, f.flitWidthBits)
	raw.pkt.Time = acc.lastTime + ser - 1

	ps := f.pairFor(raw.pkt.Sender, raw.pkt.Receiver)
	ps.pending[raw.seq] = raw.pkt
	f.drain(ps)
}

// drain pops the longest ready prefix (contiguous from nextExpected) and
// stamps every packet in it with the max time among them (spec §4.5.4:
// "all items released simultaneously share the time of the latest").
func (f *Facade) drain(ps *pairState) {
	var batch []*netmsg.Packet
	for {
		p, ok := ps.pending[ps.nextExpected]
		if !ok {
			break
		}
		batch = append(batch, p)
		delete(ps.pending, ps.nextExpected)
		ps.nextExpected++
	}
	if len(batch) == 0 {
		return
	}
	max := batch[0].Time
	for _, p := range batch[1:] {
		if p.Time > max {
			max = p.Time
		}
	}
	for _, p := range batch {
		p.Time = max
		if cb, ok := f.asyncRecv[p.Type]; ok {
			cb(p)
			continue
		}
		f.ready = append(f.ready, p)
	}
}

// RegisterAsyncRecv installs a callback invoked on the delivery thread for
// every arriving packet of type t (spec §4.6); it must not block.
func (f *Facade) RegisterAsyncRecv(t netmsg.PacketType, cb func(*netmsg.Packet)) {
	f.asyncRecv[t] = cb
}

// Recv implements netRecv: pop the oldest ready packet matching m, if any.
// The caller (the owning core's app-thread emulation) is responsible for
// the "blocks until a match arrives" suspension semantics named in spec
// §5 — Recv itself is non-blocking so it can be polled from a ticking
// component.
func (f *Facade) Recv(m Match) (*netmsg.Packet, bool) {
	for i, p := range f.ready {
		if m.accepts(p) {
			f.ready = append(f.ready[:i], f.ready[i+1:]...)
			return p, true
		}
	}
	return nil, false
}
