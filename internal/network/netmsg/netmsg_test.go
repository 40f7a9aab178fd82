package netmsg_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/meshsim/internal/network/netmsg"
)

func TestNetMsg(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "NetMsg Suite")
}

var _ = Describe("SerializationLatency", func() {
	It("rounds up to the nearest whole flit", func() {
		Expect(netmsg.SerializationLatency(9, 8)).To(BeNumerically("==", 9))
		Expect(netmsg.SerializationLatency(8, 8)).To(BeNumerically("==", 8))
		Expect(netmsg.SerializationLatency(1, 8)).To(BeNumerically("==", 1))
	})
})

var _ = Describe("Split", func() {
	It("produces a single HEAD_TAIL flit for a one-flit packet", func() {
		p := &netmsg.Packet{Length: 1, Sender: 1, Receiver: 2, SequenceNum: 7}
		flits := netmsg.Split(p, 8)
		Expect(flits).To(HaveLen(1))
		Expect(flits[0].Kind).To(Equal(netmsg.HeadTail))
	})

	It("produces head, body*, tail for a multi-flit packet", func() {
		p := &netmsg.Packet{Length: 4, Sender: 1, Receiver: 2, SequenceNum: 3}
		flits := netmsg.Split(p, 8)
		Expect(flits).To(HaveLen(4))
		Expect(flits[0].Kind).To(Equal(netmsg.Head))
		Expect(flits[1].Kind).To(Equal(netmsg.Body))
		Expect(flits[2].Kind).To(Equal(netmsg.Body))
		Expect(flits[3].Kind).To(Equal(netmsg.Tail))
		for _, f := range flits {
			Expect(f.SenderSeq).To(Equal(uint32(3)))
		}
	})
})

var _ = Describe("Flit.ID", func() {
	It("combines sender and sender-sequence into one identifier", func() {
		f := &netmsg.Flit{Sender: 5, SenderSeq: 9}
		Expect(f.ID()).To(Equal(uint64(5)<<32 | 9))
	})
})

var _ = Describe("Packet.Wire", func() {
	It("serializes the fixed-size header", func() {
		p := &netmsg.Packet{StartTime: 1, Time: 2, Type: netmsg.SharedMemPacket, Sender: 1, Receiver: 2, Length: 64, IsRaw: true, SequenceNum: 9}
		wire := p.Wire()
		Expect(wire).To(HaveLen(8 + 8 + 2 + 4 + 4 + 4 + 1 + 4))
	})
})
