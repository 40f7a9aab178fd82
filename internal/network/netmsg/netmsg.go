// Package netmsg defines the raw packet and flit types carried by the
// finite-buffer network (spec §4.5, §6.2).
package netmsg

import "github.com/sarchlab/meshsim/internal/common"

// PacketType selects which family of logical networks (spec §4.6) a packet
// is sent on: USER, MEMORY or SYSTEM.
type PacketType uint16

const (
	UserPacket PacketType = iota
	SharedMemPacket
	SystemPacket
)

// Packet is the raw, application-visible unit the network delivers (spec
// §6.2's NetPacket wire prefix).
type Packet struct {
	StartTime    common.Time
	Time         common.Time
	Type         PacketType
	Sender       common.CoreId
	Receiver     common.CoreId
	Length       uint32
	IsRaw        bool
	SequenceNum  uint32

	Payload []byte
}

// Wire serializes the NetPacket header named in spec §6.2:
// {start_time:u64, time:u64, type:u16, sender:i32, receiver:i32,
// length:u32, is_raw:u8, sequence_num:u32}. Payload is carried
// out-of-band (spec §4.5.4) and is not part of this header.
func (p *Packet) Wire() []byte {
	buf := make([]byte, 0, 8+8+2+4+4+4+1+4)
	buf = appendU64(buf, uint64(p.StartTime))
	buf = appendU64(buf, uint64(p.Time))
	buf = append(buf, byte(p.Type), byte(p.Type>>8))
	buf = appendU32(buf, uint32(int32(p.Sender)))
	buf = appendU32(buf, uint32(int32(p.Receiver)))
	buf = appendU32(buf, p.Length)
	if p.IsRaw {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendU32(buf, p.SequenceNum)
	return buf
}

// FlitKind distinguishes a packet's head, body and tail flits (spec
// §4.5.1).
type FlitKind int

const (
	Head FlitKind = iota
	Body
	Tail
	HeadTail // single-flit packet: length <= 1 flit
)

// Flit is one network-level unit emitted by splitting a Packet per spec
// §4.5.1 step 4.
type Flit struct {
	Kind FlitKind

	Sender      common.CoreId
	Receiver    common.CoreId
	SenderSeq   uint32 // sender_sequence_num: identifies the packet this flit belongs to
	NumPhits    uint32

	NormalizedTime common.Time
}

// ID is the (sender<<32)|sender_seq packet identifier used by receiver-side
// reassembly (spec §4.5.4).
func (f *Flit) ID() uint64 {
	return (uint64(uint32(f.Sender)) << 32) | uint64(f.SenderSeq)
}

// SerializationLatency is ceil(lengthBytes*8/flitWidthBits), the contention
// charge named in spec §4.5.1 step 3.
func SerializationLatency(lengthBytes uint32, flitWidthBits uint32) common.Time {
	bits := uint64(lengthBytes) * 8
	return common.Time((bits + uint64(flitWidthBits) - 1) / uint64(flitWidthBits))
}

// Split breaks a Length-byte packet travelling at flitWidthBits into its
// constituent flits, per spec §4.5.1 step 4.
func Split(p *Packet, flitWidthBits uint32) []Flit {
	n := SerializationLatency(p.Length, flitWidthBits)
	if n <= 1 {
		return []Flit{{Kind: HeadTail, Sender: p.Sender, Receiver: p.Receiver, SenderSeq: p.SequenceNum, NumPhits: 1}}
	}
	flits := make([]Flit, 0, n)
	flits = append(flits, Flit{Kind: Head, Sender: p.Sender, Receiver: p.Receiver, SenderSeq: p.SequenceNum, NumPhits: 1})
	for i := common.Time(1); i < n-1; i++ {
		flits = append(flits, Flit{Kind: Body, Sender: p.Sender, Receiver: p.Receiver, SenderSeq: p.SequenceNum, NumPhits: 1})
	}
	flits = append(flits, Flit{Kind: Tail, Sender: p.Sender, Receiver: p.Receiver, SenderSeq: p.SequenceNum, NumPhits: 1})
	return flits
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU64(buf []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}
