package core

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/meshsim/internal/memhier/msg"
	"github.com/sarchlab/meshsim/internal/network/netmsg"
)

// ShmemEnvelope carries one coherence ShmemMsg over an akita connection
// between two cores' memory ports (spec §3.4/§6.2).
type ShmemEnvelope struct {
	sim.MsgMeta
	Payload *msg.ShmemMsg
}

// Meta implements sim.Msg.
func (m *ShmemEnvelope) Meta() *sim.MsgMeta { return &m.MsgMeta }

// ShmemEnvelopeBuilder builds ShmemEnvelopes, matching the teacher's
// MoveMsgBuilder fluent style. Src/Dst are remote-port names (not port
// objects): a component only ever holds its peers' AsRemote() addresses,
// matching how config.DeviceBuilder wires tiles via SetRemotePort.
type ShmemEnvelopeBuilder struct {
	src, dst sim.RemotePort
	sendTime sim.VTimeInSec
	payload  *msg.ShmemMsg
}

func (b ShmemEnvelopeBuilder) WithSrc(src sim.Port) ShmemEnvelopeBuilder {
	b.src = src.AsRemote()
	return b
}
func (b ShmemEnvelopeBuilder) WithDst(dst sim.RemotePort) ShmemEnvelopeBuilder {
	b.dst = dst
	return b
}
func (b ShmemEnvelopeBuilder) WithSendTime(t sim.VTimeInSec) ShmemEnvelopeBuilder {
	b.sendTime = t
	return b
}
func (b ShmemEnvelopeBuilder) WithPayload(p *msg.ShmemMsg) ShmemEnvelopeBuilder {
	b.payload = p
	return b
}

func (b ShmemEnvelopeBuilder) Build() *ShmemEnvelope {
	return &ShmemEnvelope{
		MsgMeta: sim.MsgMeta{
			ID:       sim.GetIDGenerator().Generate(),
			Src:      b.src,
			Dst:      b.dst,
			SendTime: b.sendTime,
		},
		Payload: b.payload,
	}
}

// PacketEnvelope carries one raw NetPacket over an akita connection
// between a core's network port and its peers (spec §4.5.1/§6.2).
type PacketEnvelope struct {
	sim.MsgMeta
	Payload *netmsg.Packet
}

func (m *PacketEnvelope) Meta() *sim.MsgMeta { return &m.MsgMeta }
