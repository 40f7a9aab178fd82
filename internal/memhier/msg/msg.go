// Package msg defines ShmemMsg (spec §3.4), the coherence message tagged
// union carried between L1, L2, directory and DRAM controllers over the
// memory network.
package msg

import "github.com/sarchlab/meshsim/internal/common"

// Type enumerates every coherence message kind spec §3.4 names.
type Type int

const (
	ExReq Type = iota
	ShReq
	InvReq
	FlushReq
	WbReq
	ExRep
	ShRep
	UpgradeRep
	InvRep
	FlushRep
	WbRep
	NullifyReq
	GetDataReq
	PutDataReq
	GetDataRep
)

func (t Type) String() string {
	switch t {
	case ExReq:
		return "EX_REQ"
	case ShReq:
		return "SH_REQ"
	case InvReq:
		return "INV_REQ"
	case FlushReq:
		return "FLUSH_REQ"
	case WbReq:
		return "WB_REQ"
	case ExRep:
		return "EX_REP"
	case ShRep:
		return "SH_REP"
	case UpgradeRep:
		return "UPGRADE_REP"
	case InvRep:
		return "INV_REP"
	case FlushRep:
		return "FLUSH_REP"
	case WbRep:
		return "WB_REP"
	case NullifyReq:
		return "NULLIFY_REQ"
	case GetDataReq:
		return "GET_DATA_REQ"
	case PutDataReq:
		return "PUT_DATA_REQ"
	case GetDataRep:
		return "GET_DATA_REP"
	default:
		return "UNKNOWN_MSG"
	}
}

// ShmemMsg is the coherence message tagged union of spec §3.4. Block is
// nil when the message carries no payload (e.g. a bare EX_REQ).
type ShmemMsg struct {
	Type      Type
	Sender    common.MemComponent
	Receiver  common.MemComponent
	Requester common.CoreId
	Address   common.Address
	Block     []byte
	ReplyExpected bool
}

// Wire is the stable on-wire representation named in spec §6.2:
// {msg_type:u32, sender_mc:u8, receiver_mc:u8, requester:i32, address:u64,
// reply_expected:u8, data_len:u32, data[data_len]}.
func (m *ShmemMsg) Wire() []byte {
	buf := make([]byte, 0, 19+len(m.Block))
	buf = appendU32(buf, uint32(m.Type))
	buf = append(buf, byte(m.Sender), byte(m.Receiver))
	buf = appendU32(buf, uint32(int32(m.Requester)))
	buf = appendU64(buf, uint64(m.Address))
	if m.ReplyExpected {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendU32(buf, uint32(len(m.Block)))
	buf = append(buf, m.Block...)
	return buf
}

// ParseWire is the inverse of Wire, used when a ShmemMsg crosses a core
// boundary and must be deserialized by the receiver (spec §3.7's "Lifetimes"
// note: messages crossing cores are serialized into byte buffers).
func ParseWire(b []byte) *ShmemMsg {
	if len(b) < 23 {
		return nil
	}
	m := &ShmemMsg{}
	m.Type = Type(readU32(b[0:4]))
	m.Sender = common.MemComponent(b[4])
	m.Receiver = common.MemComponent(b[5])
	m.Requester = common.CoreId(int32(readU32(b[6:10])))
	m.Address = common.Address(readU64(b[10:18]))
	m.ReplyExpected = b[18] != 0
	dataLen := readU32(b[19:23])
	if dataLen > 0 && len(b) >= 23+int(dataLen) {
		m.Block = append([]byte(nil), b[23:23+dataLen]...)
	}
	return m
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

func readU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func readU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
