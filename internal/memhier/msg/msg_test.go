package msg_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/msg"
)

func TestMsg(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Msg Suite")
}

var _ = Describe("Type.String", func() {
	It("names every defined message type", func() {
		Expect(msg.ExReq.String()).To(Equal("EX_REQ"))
		Expect(msg.GetDataRep.String()).To(Equal("GET_DATA_REP"))
	})

	It("falls back to UNKNOWN_MSG for an out-of-range value", func() {
		Expect(msg.Type(999).String()).To(Equal("UNKNOWN_MSG"))
	})
})

var _ = Describe("ShmemMsg wire round trip", func() {
	It("round-trips a message carrying a data block", func() {
		m := &msg.ShmemMsg{
			Type:          msg.ExRep,
			Sender:        common.L2,
			Receiver:      common.DramDir,
			Requester:     7,
			Address:       0x1234,
			Block:         []byte{1, 2, 3, 4},
			ReplyExpected: true,
		}
		got := msg.ParseWire(m.Wire())
		Expect(got.Type).To(Equal(m.Type))
		Expect(got.Sender).To(Equal(m.Sender))
		Expect(got.Receiver).To(Equal(m.Receiver))
		Expect(got.Requester).To(Equal(m.Requester))
		Expect(got.Address).To(Equal(m.Address))
		Expect(got.Block).To(Equal(m.Block))
		Expect(got.ReplyExpected).To(BeTrue())
	})

	It("round-trips a message with no payload", func() {
		m := &msg.ShmemMsg{Type: msg.ExReq, Address: 0x10, Requester: 2}
		got := msg.ParseWire(m.Wire())
		Expect(got.Type).To(Equal(msg.ExReq))
		Expect(got.Block).To(BeEmpty())
	})

	It("returns nil for a truncated buffer", func() {
		Expect(msg.ParseWire([]byte{1, 2, 3})).To(BeNil())
	})
})
