package model_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/meshsim/internal/network/model"
	"github.com/sarchlab/meshsim/internal/network/netmsg"
	"github.com/sarchlab/meshsim/internal/network/router"
	"github.com/sarchlab/meshsim/internal/network/topology"
)

func TestModel(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Model Suite")
}

var mesh = topology.EMesh{Width: 4, Height: 4, Broadcast: true}

var _ = Describe("Magic", func() {
	It("delivers instantly with no hops", func() {
		m := model.New(model.Magic, mesh.HopCount, mesh, 8, 1, router.StoreAndForward)
		out := m.Send(&netmsg.Packet{Sender: 0, Receiver: 15, Length: 64}, 10)
		Expect(out.DeliverAt).To(BeNumerically("==", 10))
		Expect(out.Hops).To(Equal(0))
	})
})

var _ = Describe("EMeshHopCounter", func() {
	It("charges hopCount*perHopDelay plus serialization", func() {
		m := model.New(model.EMeshHopCounter, mesh.HopCount, mesh, 8, 2, router.StoreAndForward)
		// sender 0 = (0,0); receiver 5 = (1,1): hops = 2
		out := m.Send(&netmsg.Packet{Sender: 0, Receiver: 5, Length: 8}, 0)
		Expect(out.Hops).To(Equal(2))
		Expect(out.DeliverAt).To(BeNumerically("==", 2*2+8)) // hops*perHopDelay + serialization
	})
})

var _ = Describe("FiniteBuffer", func() {
	It("charges serialization, contention and pipeline delay", func() {
		m := model.New(model.FiniteBufferEMesh, mesh.HopCount, mesh, 8, 1, router.StoreAndForward)
		out := m.Send(&netmsg.Packet{Sender: 0, Receiver: 5, Length: 8}, 0)
		Expect(out.Hops).To(Equal(2))
		Expect(out.Contention).To(BeNumerically("==", 0))
	})

	It("serializes a second packet behind the first's contention", func() {
		m := model.New(model.FiniteBufferEMesh, mesh.HopCount, mesh, 8, 1, router.StoreAndForward)
		m.Send(&netmsg.Packet{Sender: 0, Receiver: 5, Length: 8}, 0)
		out := m.Send(&netmsg.Packet{Sender: 1, Receiver: 6, Length: 8}, 1)
		Expect(out.Contention).To(BeNumerically(">", 0))
	})
})
